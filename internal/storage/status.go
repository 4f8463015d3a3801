package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/civilian24601/amon-hen/internal/core/domain"
)

// UpsertSourceStatus replaces the health row for one source family.
func (s *Store) UpsertSourceStatus(ctx context.Context, status domain.SourceStatus) error {
	var lastFetch, lastSuccess any

	if status.LastFetchAt != nil {
		lastFetch = formatTime(*status.LastFetchAt)
	}

	if status.LastSuccessAt != nil {
		lastSuccess = formatTime(*status.LastSuccessAt)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO source_status (
			source_name, source_type, last_fetch_at, last_success_at,
			items_fetched, error_count, last_error
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		status.SourceName, string(status.SourceType), lastFetch, lastSuccess,
		status.ItemsFetched, status.ErrorCount, nullString(status.LastError))
	if err != nil {
		return fmt.Errorf("upsert source status: %w", err)
	}

	return nil
}

// GetAllSourceStatus lists every source health row ordered by name.
func (s *Store) GetAllSourceStatus(ctx context.Context) ([]domain.SourceStatus, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_name, source_type, last_fetch_at, last_success_at,
		       items_fetched, error_count, last_error
		FROM source_status ORDER BY source_name`)
	if err != nil {
		return nil, fmt.Errorf("query source status: %w", err)
	}
	defer rows.Close()

	statuses := make([]domain.SourceStatus, 0)

	for rows.Next() {
		var (
			status                 domain.SourceStatus
			sourceType             string
			lastFetch, lastSuccess sql.NullString
			lastError              sql.NullString
		)

		err := rows.Scan(&status.SourceName, &sourceType, &lastFetch,
			&lastSuccess, &status.ItemsFetched, &status.ErrorCount, &lastError)
		if err != nil {
			return nil, fmt.Errorf("scan source status: %w", err)
		}

		status.SourceType = domain.SourceType(sourceType)
		status.LastError = lastError.String

		if lastFetch.Valid {
			t, err := parseTime(lastFetch.String)
			if err != nil {
				return nil, fmt.Errorf("parse last_fetch_at: %w", err)
			}

			status.LastFetchAt = &t
		}

		if lastSuccess.Valid {
			t, err := parseTime(lastSuccess.String)
			if err != nil {
				return nil, fmt.Errorf("parse last_success_at: %w", err)
			}

			status.LastSuccessAt = &t
		}

		statuses = append(statuses, status)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source status: %w", err)
	}

	return statuses, nil
}
