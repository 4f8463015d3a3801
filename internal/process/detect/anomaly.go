package detect

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/civilian24601/amon-hen/internal/core/domain"
	"github.com/civilian24601/amon-hen/internal/platform/observability"
)

// AnomalyDetector runs three independent scans over the current window:
// volume spikes and sentiment shifts per cluster, entity surges across all
// recent items.
type AnomalyDetector struct {
	store  MetaStore
	logger zerolog.Logger
}

// NewAnomalyDetector builds a detector over the metadata store.
func NewAnomalyDetector(store MetaStore, logger zerolog.Logger) *AnomalyDetector {
	return &AnomalyDetector{
		store:  store,
		logger: logger.With().Str(logKeyComponent, componentName).Logger(),
	}
}

// DetectAll runs every scan and concatenates the results in scan order:
// volume spikes, sentiment shifts, entity surges. Scan failures are logged
// and yield no records, never aborting the run.
func (a *AnomalyDetector) DetectAll(ctx context.Context, clusters []domain.NarrativeCluster) []Anomaly {
	anomalies := a.DetectVolumeSpikes(ctx, clusters)
	anomalies = append(anomalies, a.DetectSentimentShifts(ctx, clusters)...)

	surges, err := a.DetectEntitySurges(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("entity surge scan failed")
	} else {
		anomalies = append(anomalies, surges...)
	}

	for _, anomaly := range anomalies {
		observability.AnomaliesDetected.WithLabelValues(anomaly.Kind).Inc()
	}

	a.logger.Info().Int(logKeyAnomalies, len(anomalies)).Msg("Anomaly detection complete")

	return anomalies
}

// DetectVolumeSpikes flags clusters whose six-hour intake runs more than
// three times their hourly rate over the trailing week.
func (a *AnomalyDetector) DetectVolumeSpikes(ctx context.Context, clusters []domain.NarrativeCluster) []Anomaly {
	anomalies := make([]Anomaly, 0)

	now := time.Now().UTC()
	sixHoursAgo := now.Add(-spikeWindowHours * time.Hour)
	sevenDaysAgo := now.Add(-spikeBaselineDays * hoursPerDay * time.Hour)

	for _, cluster := range clusters {
		items, err := a.store.GetItemsByCluster(ctx, cluster.ID)
		if err != nil {
			a.logger.Warn().Err(err).Str(logKeyClusterID, cluster.ID).Msg("volume spike check failed")

			continue
		}

		if len(items) == 0 {
			continue
		}

		recentCount := 0
		weekCount := 0

		for _, item := range items {
			if !item.PublishedAt.Before(sixHoursAgo) {
				recentCount++
			}

			if !item.PublishedAt.Before(sevenDaysAgo) {
				weekCount++
			}
		}

		avgHourly := float64(weekCount) / (spikeBaselineDays * hoursPerDay)
		sixHourRate := float64(recentCount) / spikeWindowHours

		if avgHourly > 0 && sixHourRate > spikeFactor*avgHourly {
			anomalies = append(anomalies, Anomaly{
				Kind:          AnomalyVolumeSpike,
				ClusterID:     cluster.ID,
				ClusterLabel:  cluster.Label,
				Recent6hCount: recentCount,
				AvgHourly7d:   round(avgHourly, 2),
				SpikeRatio:    round(sixHourRate/avgHourly, 2),
				Description: fmt.Sprintf("Volume spike in '%s': %d items in 6h vs %.1f/h avg",
					cluster.Label, recentCount, avgHourly),
			})
		}
	}

	return anomalies
}

// DetectSentimentShifts flags clusters whose mean sentiment over the last
// 24 hours moved more than the threshold against the preceding 24 hours.
func (a *AnomalyDetector) DetectSentimentShifts(ctx context.Context, clusters []domain.NarrativeCluster) []Anomaly {
	anomalies := make([]Anomaly, 0)

	now := time.Now().UTC()
	oneDayAgo := now.Add(-shiftWindowHours * time.Hour)
	twoDaysAgo := now.Add(-2 * shiftWindowHours * time.Hour)

	for _, cluster := range clusters {
		items, err := a.store.GetItemsByCluster(ctx, cluster.ID)
		if err != nil {
			a.logger.Warn().Err(err).Str(logKeyClusterID, cluster.ID).Msg("sentiment shift check failed")

			continue
		}

		var (
			recentSum, olderSum     float64
			recentCount, olderCount int
		)

		for _, item := range items {
			switch {
			case !item.PublishedAt.Before(oneDayAgo):
				recentSum += item.Sentiment
				recentCount++
			case !item.PublishedAt.Before(twoDaysAgo):
				olderSum += item.Sentiment
				olderCount++
			}
		}

		if recentCount == 0 || olderCount == 0 {
			continue
		}

		avgRecent := recentSum / float64(recentCount)
		avgOlder := olderSum / float64(olderCount)
		shift := avgRecent - avgOlder

		if shift > shiftThreshold || shift < -shiftThreshold {
			anomalies = append(anomalies, Anomaly{
				Kind:            AnomalySentimentShift,
				ClusterID:       cluster.ID,
				ClusterLabel:    cluster.Label,
				SentimentBefore: round(avgOlder, 3),
				SentimentAfter:  round(avgRecent, 3),
				Shift:           round(shift, 3),
				Description: fmt.Sprintf("Sentiment shift in '%s': %.2f -> %.2f (%+.2f)",
					cluster.Label, avgOlder, avgRecent, shift),
			})
		}
	}

	return anomalies
}

// DetectEntitySurges flags entity names appearing in more than ten items
// published within the last six hours, scanning at most a thousand items.
func (a *AnomalyDetector) DetectEntitySurges(ctx context.Context) ([]Anomaly, error) {
	now := time.Now().UTC()
	sixHoursAgo := now.Add(-surgeWindowHours * time.Hour)

	items, err := a.store.GetItems(ctx, &sixHoursAgo, surgeScanLimit, "")
	if err != nil {
		return nil, fmt.Errorf("scan recent items: %w", err)
	}

	counts := make(map[string]int)
	order := make([]string, 0)

	for _, item := range items {
		for _, entity := range item.Entities {
			if _, seen := counts[entity.Name]; !seen {
				order = append(order, entity.Name)
			}

			counts[entity.Name]++
		}
	}

	anomalies := make([]Anomaly, 0)

	for _, name := range order {
		count := counts[name]
		if count <= surgeMinCount {
			continue
		}

		anomalies = append(anomalies, Anomaly{
			Kind:        AnomalyEntitySurge,
			EntityName:  name,
			Count6h:     count,
			Description: fmt.Sprintf("Entity surge: '%s' in %d items in 6h", name, count),
		})
	}

	return anomalies, nil
}
