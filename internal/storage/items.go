package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/civilian24601/amon-hen/internal/core/domain"
)

const itemColumns = `id, source_type, source_name, source_url, title,
	published_at, ingested_at, language, summary, entities_json, claims_json,
	framing, sentiment, topic_tags_json, embedding_id, embedding_model,
	cluster_id, cluster_label, archived, enrichment_model, enrichment_cost_usd`

const defaultItemLimit = 100

// InsertItem persists an enriched item. A second item with the same
// canonical URL returns ErrDuplicateURL and leaves the stored row untouched.
func (s *Store) InsertItem(ctx context.Context, item domain.EnrichedItem) error {
	entities, err := json.Marshal(item.Entities)
	if err != nil {
		return fmt.Errorf("marshal entities: %w", err)
	}

	claims, err := json.Marshal(item.Claims)
	if err != nil {
		return fmt.Errorf("marshal claims: %w", err)
	}

	tags, err := json.Marshal(item.TopicTags)
	if err != nil {
		return fmt.Errorf("marshal topic tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO items (
			id, source_type, source_name, source_url, title,
			published_at, ingested_at, language, summary, entities_json,
			claims_json, framing, sentiment, topic_tags_json, embedding_id,
			embedding_model, cluster_id, cluster_label, archived,
			enrichment_model, enrichment_cost_usd
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, string(item.SourceType), item.SourceName, item.SourceURL,
		nullString(item.Title), formatTime(item.PublishedAt),
		formatTime(item.IngestedAt), item.Language, item.Summary,
		string(entities), string(claims), item.Framing, item.Sentiment,
		string(tags), item.EmbeddingID, item.EmbeddingModel,
		item.ClusterID, item.ClusterLabel, item.Archived,
		item.EnrichmentModel, item.EnrichmentCostUSD,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateURL
		}

		return fmt.Errorf("insert item: %w", err)
	}

	return nil
}

// GetItem loads one item by id. Archived items are still returned; point
// lookups are used by the clusterer which works off the vector window.
func (s *Store) GetItem(ctx context.Context, id string) (*domain.EnrichedItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id)

	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("get item: %w", err)
	}

	return item, nil
}

// GetItems lists non-archived items newest first. A nil since means no lower
// bound; an empty sourceType means all families; limit <= 0 applies the
// default.
func (s *Store) GetItems(ctx context.Context, since *time.Time, limit int, sourceType string) ([]domain.EnrichedItem, error) {
	if limit <= 0 {
		limit = defaultItemLimit
	}

	query := `SELECT ` + itemColumns + ` FROM items WHERE archived = 0`
	args := make([]any, 0, 3)

	if since != nil {
		query += ` AND published_at >= ?`
		args = append(args, formatTime(*since))
	}

	if sourceType != "" {
		query += ` AND source_type = ?`
		args = append(args, sourceType)
	}

	query += ` ORDER BY published_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

// GetItemsByCluster lists non-archived members of a cluster newest first.
func (s *Store) GetItemsByCluster(ctx context.Context, clusterID string) ([]domain.EnrichedItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items
		 WHERE cluster_id = ? AND archived = 0
		 ORDER BY published_at DESC`, clusterID)
	if err != nil {
		return nil, fmt.Errorf("query cluster items: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

// ItemURLExists reports whether the canonical URL is already stored,
// archived or not.
func (s *Store) ItemURLExists(ctx context.Context, url string) (bool, error) {
	var one int

	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM items WHERE source_url = ?`, url).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("check item url: %w", err)
	}

	return true, nil
}

// UpdateItemCluster writes the denormalised cluster assignment onto an item
// row.
func (s *Store) UpdateItemCluster(ctx context.Context, itemID, clusterID, clusterLabel string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE items SET cluster_id = ?, cluster_label = ? WHERE id = ?`,
		clusterID, clusterLabel, itemID)
	if err != nil {
		return fmt.Errorf("update item cluster: %w", err)
	}

	return nil
}

// ArchiveOlderThan flags items published before cutoff and returns how many
// rows changed. Archived items keep their rows but drop out of reads.
func (s *Store) ArchiveOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE items SET archived = 1 WHERE published_at < ? AND archived = 0`,
		formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("archive items: %w", err)
	}

	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("archive rows affected: %w", err)
	}

	return count, nil
}

// CountItems counts non-archived items.
func (s *Store) CountItems(ctx context.Context) (int, error) {
	var count int

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE archived = 0`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}

	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*domain.EnrichedItem, error) {
	var (
		item                              domain.EnrichedItem
		sourceType                        string
		title                             sql.NullString
		publishedAt, ingestedAt           string
		entitiesJSON, claimsJSON, tagJSON string
		clusterID, clusterLabel           sql.NullString
	)

	err := row.Scan(
		&item.ID, &sourceType, &item.SourceName, &item.SourceURL, &title,
		&publishedAt, &ingestedAt, &item.Language, &item.Summary,
		&entitiesJSON, &claimsJSON, &item.Framing, &item.Sentiment, &tagJSON,
		&item.EmbeddingID, &item.EmbeddingModel, &clusterID, &clusterLabel,
		&item.Archived, &item.EnrichmentModel, &item.EnrichmentCostUSD,
	)
	if err != nil {
		return nil, err
	}

	item.SourceType = domain.SourceType(sourceType)
	item.Title = title.String

	if item.PublishedAt, err = parseTime(publishedAt); err != nil {
		return nil, fmt.Errorf("parse published_at: %w", err)
	}

	if item.IngestedAt, err = parseTime(ingestedAt); err != nil {
		return nil, fmt.Errorf("parse ingested_at: %w", err)
	}

	if err := json.Unmarshal([]byte(entitiesJSON), &item.Entities); err != nil {
		return nil, fmt.Errorf("unmarshal entities: %w", err)
	}

	if err := json.Unmarshal([]byte(claimsJSON), &item.Claims); err != nil {
		return nil, fmt.Errorf("unmarshal claims: %w", err)
	}

	if err := json.Unmarshal([]byte(tagJSON), &item.TopicTags); err != nil {
		return nil, fmt.Errorf("unmarshal topic tags: %w", err)
	}

	if clusterID.Valid {
		item.ClusterID = &clusterID.String
	}

	if clusterLabel.Valid {
		item.ClusterLabel = &clusterLabel.String
	}

	return &item, nil
}

func collectItems(rows *sql.Rows) ([]domain.EnrichedItem, error) {
	items := make([]domain.EnrichedItem, 0)

	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}

		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}

	return items, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}

	return s
}
