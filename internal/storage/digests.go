package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/civilian24601/amon-hen/internal/core/domain"
)

// InsertDigest persists a generated digest.
func (s *Store) InsertDigest(ctx context.Context, digest domain.DailyDigest) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO digests (id, generated_at, content, cluster_count, item_count, model)
		VALUES (?, ?, ?, ?, ?, ?)`,
		digest.ID, formatTime(digest.GeneratedAt), digest.Content,
		digest.ClusterCount, digest.ItemCount, digest.Model)
	if err != nil {
		return fmt.Errorf("insert digest: %w", err)
	}

	return nil
}

// GetLatestDigest returns the most recently generated digest, or ErrNotFound
// when none has been generated yet.
func (s *Store) GetLatestDigest(ctx context.Context) (*domain.DailyDigest, error) {
	var (
		digest      domain.DailyDigest
		generatedAt string
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT id, generated_at, content, cluster_count, item_count, model
		FROM digests ORDER BY generated_at DESC LIMIT 1`).
		Scan(&digest.ID, &generatedAt, &digest.Content, &digest.ClusterCount,
			&digest.ItemCount, &digest.Model)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("get latest digest: %w", err)
	}

	if digest.GeneratedAt, err = parseTime(generatedAt); err != nil {
		return nil, fmt.Errorf("parse generated_at: %w", err)
	}

	return &digest, nil
}
