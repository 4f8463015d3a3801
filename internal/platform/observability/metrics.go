package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ItemsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "narrative_items_ingested_total",
		Help: "The total number of ingested items",
	}, []string{"source"})

	SourceErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "narrative_source_errors_total",
		Help: "Total number of source fetch errors",
	}, []string{"source"})

	ItemsEnriched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "narrative_items_enriched_total",
		Help: "The total number of items processed by the enricher",
	}, []string{"status"})

	EnrichmentRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "narrative_enrichment_request_duration_seconds",
		Help:    "Duration of enrichment LLM requests",
		Buckets: prometheus.DefBuckets,
	})

	EnrichmentCostUSD = promauto.NewCounter(prometheus.CounterOpts{
		Name: "narrative_enrichment_cost_usd_total",
		Help: "Accumulated enrichment spend in US dollars",
	})

	DailySpendUSD = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "narrative_daily_spend_usd",
		Help: "Enrichment spend for the current UTC day in US dollars",
	})

	EmbeddingRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "narrative_embedding_requests_total",
		Help: "Total number of embedding requests",
	}, []string{"model", "status"})

	ClustersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "narrative_clusters_active",
		Help: "Number of clusters after the most recent clustering run",
	})

	ClusteringRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "narrative_clustering_runs_total",
		Help: "Total number of clustering runs",
	}, []string{"status"})

	ClusteringDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "narrative_clustering_duration_seconds",
		Help:    "Duration in seconds of a full clustering run",
		Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
	})

	DivergencesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "narrative_divergences_detected_total",
		Help: "Total number of cross-source divergences detected",
	})

	AnomaliesDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "narrative_anomalies_detected_total",
		Help: "Total number of anomalies detected by kind",
	}, []string{"kind"})

	DigestsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "narrative_digests_generated_total",
		Help: "The total number of daily digests generated",
	}, []string{"status"})

	ItemsArchived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "narrative_items_archived_total",
		Help: "Total number of items archived out of the rolling window",
	})
)
