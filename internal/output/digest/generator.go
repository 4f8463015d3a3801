// Package digest composes the daily intelligence briefing from the current
// clusters, divergences, and anomalies, preferring an LLM-written briefing
// with a deterministic markdown fallback.
package digest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/civilian24601/amon-hen/internal/core/domain"
	"github.com/civilian24601/amon-hen/internal/platform/observability"
	"github.com/civilian24601/amon-hen/internal/process/detect"
)

// Repository is the storage surface the generator writes to.
type Repository interface {
	InsertDigest(ctx context.Context, digest domain.DailyDigest) error
}

// LLM writes the briefing through a synthetic enrichment call.
type LLM interface {
	Enrich(ctx context.Context, item domain.RawItem) (domain.EnrichmentResult, domain.CostLogEntry, error)
	Model() string
}

// Generator builds and persists daily digests.
type Generator struct {
	store  Repository
	llm    LLM // nil forces the markdown fallback
	logger zerolog.Logger
}

// New builds a generator. A nil LLM is allowed and produces fallback
// digests only.
func New(store Repository, llmClient LLM, logger zerolog.Logger) *Generator {
	return &Generator{
		store:  store,
		llm:    llmClient,
		logger: logger.With().Str(logKeyComponent, componentName).Logger(),
	}
}

// Generate composes a digest over the given analysis results, persists it,
// and returns it. LLM failure degrades to the markdown fallback rather than
// failing the run; only a storage error is returned.
func (g *Generator) Generate(ctx context.Context, clusters []domain.NarrativeCluster, divergences []detect.Divergence, anomalies []detect.Anomaly) (*domain.DailyDigest, error) {
	content, model := g.compose(ctx, clusters, divergences, anomalies)

	totalItems := 0
	for _, cluster := range clusters {
		totalItems += cluster.ItemCount
	}

	digest := domain.DailyDigest{
		ID:           uuid.NewString(),
		GeneratedAt:  time.Now().UTC(),
		Content:      content,
		ClusterCount: len(clusters),
		ItemCount:    totalItems,
		Model:        model,
	}

	if err := g.store.InsertDigest(ctx, digest); err != nil {
		observability.DigestsGenerated.WithLabelValues(statusError).Inc()

		return nil, fmt.Errorf("insert digest: %w", err)
	}

	observability.DigestsGenerated.WithLabelValues(statusOK).Inc()

	g.logger.Info().
		Int(logKeyClusters, digest.ClusterCount).
		Int(logKeyItems, digest.ItemCount).
		Str(logKeyModel, model).
		Msg("Digest generated")

	return &digest, nil
}

// compose returns the digest body and the model name that produced it.
func (g *Generator) compose(ctx context.Context, clusters []domain.NarrativeCluster, divergences []detect.Divergence, anomalies []detect.Anomaly) (string, string) {
	if g.llm == nil {
		return renderFallback(clusters, divergences, anomalies), fallbackModel
	}

	prompt := domain.NewRawItem(domain.SourceRSS, digestSourceName, digestSourceURL)
	prompt.ContentText = buildPrompt(clusters, divergences, anomalies)
	prompt.PublishedAt = time.Now().UTC()

	result, _, err := g.llm.Enrich(ctx, prompt)
	if err != nil {
		g.logger.Error().Err(err).Msg("digest generation failed, rendering fallback")

		return renderFallback(clusters, divergences, anomalies), fallbackModel
	}

	return result.Summary, g.llm.Model()
}

func buildPrompt(clusters []domain.NarrativeCluster, divergences []detect.Divergence, anomalies []detect.Anomaly) string {
	var clusterText strings.Builder

	for _, cluster := range capClusters(clusters) {
		entities := cluster.KeyEntities
		if len(entities) > promptEntityLimit {
			entities = entities[:promptEntityLimit]
		}

		fmt.Fprintf(&clusterText, "\n- %s (%d items, status=%s)\n  Summary: %s\n  Sources: %s\n  Key entities: %s\n",
			cluster.Label, cluster.ItemCount, cluster.Status, cluster.Summary,
			formatDistribution(cluster.SourceDistribution), strings.Join(entities, ", "))
	}

	var divergenceText strings.Builder

	for i, d := range divergences {
		if i == promptSectionLimit {
			break
		}

		fmt.Fprintf(&divergenceText, "\n- %s", d.Description)
	}

	var anomalyText strings.Builder

	for i, a := range anomalies {
		if i == promptSectionLimit {
			break
		}

		fmt.Fprintf(&anomalyText, "\n- %s", a.Description)
	}

	return fmt.Sprintf(digestPromptFormat,
		orDefault(clusterText.String(), "No active clusters."),
		orDefault(divergenceText.String(), "No divergences detected."),
		orDefault(anomalyText.String(), "No anomalies detected."))
}

// renderFallback writes a plain markdown briefing used when no LLM is
// available or the call fails.
func renderFallback(clusters []domain.NarrativeCluster, divergences []detect.Divergence, anomalies []detect.Anomaly) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Intelligence Digest — %s\n", time.Now().UTC().Format("2006-01-02"))
	fmt.Fprintf(&b, "\n## Active Narratives (%d clusters)\n", len(clusters))

	for _, cluster := range capClusters(clusters) {
		fmt.Fprintf(&b, "- **%s** (%d items): %s\n", cluster.Label, cluster.ItemCount, cluster.Summary)
	}

	if len(divergences) > 0 {
		fmt.Fprintf(&b, "\n## Source Divergences (%d)\n", len(divergences))

		for i, d := range divergences {
			if i == promptSectionLimit {
				break
			}

			fmt.Fprintf(&b, "- %s\n", d.Description)
		}
	}

	if len(anomalies) > 0 {
		fmt.Fprintf(&b, "\n## Anomalies (%d)\n", len(anomalies))

		for i, a := range anomalies {
			if i == promptSectionLimit {
				break
			}

			fmt.Fprintf(&b, "- %s\n", a.Description)
		}
	}

	return b.String()
}

func capClusters(clusters []domain.NarrativeCluster) []domain.NarrativeCluster {
	if len(clusters) > promptClusterLimit {
		return clusters[:promptClusterLimit]
	}

	return clusters
}

func formatDistribution(dist map[string]int) string {
	encoded, err := json.Marshal(dist)
	if err != nil {
		return "{}"
	}

	return string(encoded)
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}

	return s
}
