package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/civilian24601/amon-hen/internal/core/domain"
)

// AppendCostLog records one LLM call chain in the spend ledger.
func (s *Store) AppendCostLog(ctx context.Context, entry domain.CostLogEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cost_log (item_id, model, input_tokens, output_tokens, cost_usd, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ItemID, entry.Model, entry.InputTokens, entry.OutputTokens,
		entry.CostUSD, formatTime(entry.Timestamp))
	if err != nil {
		return fmt.Errorf("append cost log: %w", err)
	}

	return nil
}

// DailyCostUSD sums spend over the UTC calendar day containing t. The
// budget gate reads this before every enrichment call.
func (s *Store) DailyCostUSD(ctx context.Context, t time.Time) (float64, error) {
	day := t.UTC()
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 0, time.UTC)

	var total float64

	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(cost_usd), 0.0) FROM cost_log
		WHERE timestamp >= ? AND timestamp <= ?`,
		formatTime(dayStart), formatTime(dayEnd)).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("daily cost: %w", err)
	}

	return total, nil
}

// TotalCostUSD sums spend across the whole ledger.
func (s *Store) TotalCostUSD(ctx context.Context) (float64, error) {
	var total float64

	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(cost_usd), 0.0) FROM cost_log`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("total cost: %w", err)
	}

	return total, nil
}
