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

const clusterColumns = `id, label, summary, item_count, first_seen,
	last_updated, centroid_json, source_distribution_json,
	sentiment_distribution_json, key_entities_json, key_claims_json, status,
	parent_cluster_id`

// UpsertCluster inserts or fully replaces a cluster row. Clustering runs
// rebuild clusters from scratch, so replacement is the intended write mode.
func (s *Store) UpsertCluster(ctx context.Context, cluster domain.NarrativeCluster) error {
	centroid, err := json.Marshal(cluster.Centroid)
	if err != nil {
		return fmt.Errorf("marshal centroid: %w", err)
	}

	sourceDist, err := json.Marshal(cluster.SourceDistribution)
	if err != nil {
		return fmt.Errorf("marshal source distribution: %w", err)
	}

	sentimentDist, err := json.Marshal(cluster.SentimentDistribution)
	if err != nil {
		return fmt.Errorf("marshal sentiment distribution: %w", err)
	}

	entities, err := json.Marshal(cluster.KeyEntities)
	if err != nil {
		return fmt.Errorf("marshal key entities: %w", err)
	}

	claims, err := json.Marshal(cluster.KeyClaims)
	if err != nil {
		return fmt.Errorf("marshal key claims: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO clusters (
			id, label, summary, item_count, first_seen, last_updated,
			centroid_json, source_distribution_json,
			sentiment_distribution_json, key_entities_json, key_claims_json,
			status, parent_cluster_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cluster.ID, cluster.Label, cluster.Summary, cluster.ItemCount,
		formatTime(cluster.FirstSeen), formatTime(cluster.LastUpdated),
		string(centroid), string(sourceDist), string(sentimentDist),
		string(entities), string(claims), string(cluster.Status),
		cluster.ParentClusterID,
	)
	if err != nil {
		return fmt.Errorf("upsert cluster: %w", err)
	}

	return nil
}

// GetCluster loads one cluster by id.
func (s *Store) GetCluster(ctx context.Context, id string) (*domain.NarrativeCluster, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+clusterColumns+` FROM clusters WHERE id = ?`, id)

	cluster, err := scanCluster(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("get cluster: %w", err)
	}

	return cluster, nil
}

// GetActiveClusters lists emerging and active clusters, largest first.
func (s *Store) GetActiveClusters(ctx context.Context) ([]domain.NarrativeCluster, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+clusterColumns+` FROM clusters
		 WHERE status IN ('emerging', 'active')
		 ORDER BY item_count DESC`)
	if err != nil {
		return nil, fmt.Errorf("query active clusters: %w", err)
	}
	defer rows.Close()

	clusters := make([]domain.NarrativeCluster, 0)

	for rows.Next() {
		cluster, err := scanCluster(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cluster: %w", err)
		}

		clusters = append(clusters, *cluster)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clusters: %w", err)
	}

	return clusters, nil
}

// UpdateClusterStatus moves a cluster through its lifecycle.
func (s *Store) UpdateClusterStatus(ctx context.Context, id string, status domain.ClusterStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE clusters SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("update cluster status: %w", err)
	}

	return nil
}

// SetClusterMembership records one item-cluster assignment with the current
// time.
func (s *Store) SetClusterMembership(ctx context.Context, itemID, clusterID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO cluster_membership (item_id, cluster_id, assigned_at)
		VALUES (?, ?, ?)`,
		itemID, clusterID, formatTime(time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("set cluster membership: %w", err)
	}

	return nil
}

// ClearAllMemberships wipes the membership table ahead of a full rebuild.
func (s *Store) ClearAllMemberships(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cluster_membership`); err != nil {
		return fmt.Errorf("clear memberships: %w", err)
	}

	return nil
}

// CountClusters counts all cluster rows regardless of status.
func (s *Store) CountClusters(ctx context.Context) (int, error) {
	var count int

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clusters`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count clusters: %w", err)
	}

	return count, nil
}

func scanCluster(row rowScanner) (*domain.NarrativeCluster, error) {
	var (
		cluster                     domain.NarrativeCluster
		firstSeen, lastUpdated      string
		centroidJSON, sourceJSON    string
		sentimentJSON, entitiesJSON string
		claimsJSON, status          string
		parentClusterID             sql.NullString
	)

	err := row.Scan(
		&cluster.ID, &cluster.Label, &cluster.Summary, &cluster.ItemCount,
		&firstSeen, &lastUpdated, &centroidJSON, &sourceJSON, &sentimentJSON,
		&entitiesJSON, &claimsJSON, &status, &parentClusterID,
	)
	if err != nil {
		return nil, err
	}

	cluster.Status = domain.ClusterStatus(status)

	if cluster.FirstSeen, err = parseTime(firstSeen); err != nil {
		return nil, fmt.Errorf("parse first_seen: %w", err)
	}

	if cluster.LastUpdated, err = parseTime(lastUpdated); err != nil {
		return nil, fmt.Errorf("parse last_updated: %w", err)
	}

	if err := json.Unmarshal([]byte(centroidJSON), &cluster.Centroid); err != nil {
		return nil, fmt.Errorf("unmarshal centroid: %w", err)
	}

	if err := json.Unmarshal([]byte(sourceJSON), &cluster.SourceDistribution); err != nil {
		return nil, fmt.Errorf("unmarshal source distribution: %w", err)
	}

	if err := json.Unmarshal([]byte(sentimentJSON), &cluster.SentimentDistribution); err != nil {
		return nil, fmt.Errorf("unmarshal sentiment distribution: %w", err)
	}

	if err := json.Unmarshal([]byte(entitiesJSON), &cluster.KeyEntities); err != nil {
		return nil, fmt.Errorf("unmarshal key entities: %w", err)
	}

	if err := json.Unmarshal([]byte(claimsJSON), &cluster.KeyClaims); err != nil {
		return nil, fmt.Errorf("unmarshal key claims: %w", err)
	}

	if parentClusterID.Valid {
		cluster.ParentClusterID = &parentClusterID.String
	}

	return &cluster, nil
}
