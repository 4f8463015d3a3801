// Package app provides the application bootstrap and runtime orchestration.
//
// The App type wires together all dependencies and exposes one method per
// operational mode:
//
//   - Service mode: ingestion, enrichment, clustering, detection, digest
//     generation, and the read API in one process
//   - API mode: standalone read API over an existing database
//   - One-shot modes: ingest, enrich, recluster, digest, seed, status,
//     search, and validate-sources for operators and cron jobs
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/civilian24601/amon-hen/internal/api"
	"github.com/civilian24601/amon-hen/internal/config"
	"github.com/civilian24601/amon-hen/internal/core/domain"
	"github.com/civilian24601/amon-hen/internal/core/embeddings"
	"github.com/civilian24601/amon-hen/internal/core/llm"
	"github.com/civilian24601/amon-hen/internal/output/digest"
	"github.com/civilian24601/amon-hen/internal/platform/observability"
	"github.com/civilian24601/amon-hen/internal/platform/worker"
	"github.com/civilian24601/amon-hen/internal/process/cluster"
	"github.com/civilian24601/amon-hen/internal/process/detect"
	"github.com/civilian24601/amon-hen/internal/process/enrich"
	"github.com/civilian24601/amon-hen/internal/sources"
	"github.com/civilian24601/amon-hen/internal/storage"
	"github.com/civilian24601/amon-hen/internal/vector"
)

const (
	serviceLoopName    = "service"
	dailyCheckInterval = time.Minute

	taskIngest  = "ingest"
	taskCluster = "cluster"
	taskDaily   = "daily"
	taskDigest  = "digest"
	taskArchive = "archive"

	defaultSeedDays    = 7
	defaultSearchLimit = 10

	logKeyItems       = "items"
	logKeyClusters    = "clusters"
	logKeyDivergences = "divergences"
	logKeyAnomalies   = "anomalies"
	logKeyArchived    = "archived"
	logKeyCutoff      = "cutoff"
	logKeyDays        = "days"
	logKeyDigestID    = "digest_id"
)

// App holds the application dependencies and provides methods to run
// different modes.
type App struct {
	cfg    *config.Config
	store  *storage.Store
	logger *zerolog.Logger
}

// New creates a new App instance with the given dependencies.
func New(cfg *config.Config, store *storage.Store, logger *zerolog.Logger) *App {
	return &App{
		cfg:    cfg,
		store:  store,
		logger: logger,
	}
}

// pipeline bundles the stages the service loop and the one-shot commands
// drive. Ingestion sources are built separately because only the fetching
// modes need the sources config file.
type pipeline struct {
	index      vector.Index
	embedder   embeddings.Embedder
	enricher   *enrich.Enricher
	clusterer  *cluster.Clusterer
	divergence *detect.DivergenceDetector
	anomaly    *detect.AnomalyDetector
	digest     *digest.Generator
}

func (p *pipeline) Close() {
	_ = p.index.Close()
}

func (a *App) buildPipeline(ctx context.Context) (*pipeline, error) {
	index, err := a.newVectorIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("vector index init: %w", err)
	}

	embedder, err := a.newEmbedder()
	if err != nil {
		_ = index.Close()

		return nil, fmt.Errorf("embedder init: %w", err)
	}

	llmClient := a.newLLMClient()

	return &pipeline{
		index:    index,
		embedder: embedder,
		enricher: enrich.New(enrich.Config{
			Concurrency:    a.cfg.EnrichmentConcurrency,
			DailyBudgetUSD: a.cfg.DailyBudgetUSD,
			TrackCosts:     a.cfg.TrackCosts,
		}, a.store, index, llmClient, embedder, *a.logger),
		clusterer: cluster.New(cluster.Config{
			MinClusterSize:    a.cfg.MinClusterSize,
			MinSamples:        a.cfg.MinSamples,
			Epsilon:           a.cfg.ClusterEpsilon,
			RollingWindowDays: a.cfg.RollingWindowDays,
		}, a.store, index, llmClient, *a.logger),
		divergence: detect.NewDivergenceDetector(a.cfg.DivergenceThreshold, a.store, index, *a.logger),
		anomaly:    detect.NewAnomalyDetector(a.store, *a.logger),
		digest:     digest.New(a.store, llmClient, *a.logger),
	}, nil
}

// Run starts the full service: periodic ingestion and clustering, daily
// digest and archive tasks, and the HTTP server with probes, metrics, and
// the read API. It blocks until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info().Msg("Starting service mode")

	pipe, err := a.buildPipeline(ctx)
	if err != nil {
		return err
	}
	defer pipe.Close()

	manager, err := a.newSourceManager()
	if err != nil {
		return err
	}

	go a.serveHTTP(ctx, pipe)

	sched := worker.NewDailyScheduler(a.logger)
	sched.AddTask(&worker.DailyTask{
		Name: taskDigest,
		Hour: a.cfg.DigestHourUTC,
		Run: func(ctx context.Context, logger *zerolog.Logger) error {
			d, err := a.runDigestOnce(ctx, pipe)
			if err != nil {
				return err
			}

			logger.Info().
				Str(logKeyDigestID, d.ID).
				Int(logKeyClusters, d.ClusterCount).
				Int(logKeyItems, d.ItemCount).
				Msg("Daily digest generated")

			return nil
		},
	})
	sched.AddTask(&worker.DailyTask{
		Name: taskArchive,
		Hour: a.cfg.ArchiveHourUTC,
		Run: func(ctx context.Context, _ *zerolog.Logger) error {
			return a.archiveExpired(ctx)
		},
	})

	tasks := []worker.TickerTask{
		{
			Name:     taskIngest,
			Interval: a.cfg.IngestInterval,
			Run: func(ctx context.Context) {
				if _, err := a.runIngestCycle(ctx, manager, pipe.enricher); err != nil {
					a.logger.Error().Err(err).Msg("Ingestion cycle failed")
				}
			},
		},
		{
			Name:     taskCluster,
			Interval: a.cfg.ClusterInterval,
			Run: func(ctx context.Context) {
				if _, err := a.runIntelligence(ctx, pipe); err != nil {
					a.logger.Error().Err(err).Msg("Intelligence cycle failed")
				}
			},
		},
		{
			Name:     taskDaily,
			Interval: dailyCheckInterval,
			Run:      sched.CheckAndRun,
		},
	}

	return worker.TickerLoop(ctx, worker.TickerConfig{
		Name:   serviceLoopName,
		Tasks:  tasks,
		Logger: a.logger,
	})
}

// RunAPI serves the read API, probes, and metrics without the pipeline
// workers. Useful for read replicas pointed at an existing database.
func (a *App) RunAPI(ctx context.Context) error {
	a.logger.Info().Msg("Starting API mode")

	index, err := a.newVectorIndex(ctx)
	if err != nil {
		return fmt.Errorf("vector index init: %w", err)
	}

	defer func() { _ = index.Close() }()

	embedder, err := a.newEmbedder()
	if err != nil {
		return fmt.Errorf("embedder init: %w", err)
	}

	handler := api.New(a.store, index, embedder, *a.logger)

	return observability.NewServerWithAPI(a.store, a.cfg.APIPort, handler, a.logger).Start(ctx)
}

// RunIngest fetches from all configured sources once and reports how many
// new items arrived. Nothing is persisted; persistence happens at
// enrichment.
func (a *App) RunIngest(ctx context.Context) error {
	a.logger.Info().Msg("Starting ingest mode")

	manager, err := a.newSourceManager()
	if err != nil {
		return err
	}

	items, err := manager.Run(ctx)
	if err != nil {
		return fmt.Errorf("ingestion run: %w", err)
	}

	fmt.Printf("Fetched %d new items (enrich mode or the service loop persists them)\n", len(items))

	return nil
}

// RunEnrich runs one full ingest and enrich cycle.
func (a *App) RunEnrich(ctx context.Context) error {
	a.logger.Info().Msg("Starting enrich mode")

	pipe, err := a.buildPipeline(ctx)
	if err != nil {
		return err
	}
	defer pipe.Close()

	manager, err := a.newSourceManager()
	if err != nil {
		return err
	}

	count, err := a.runIngestCycle(ctx, manager, pipe.enricher)
	if err != nil {
		return err
	}

	fmt.Printf("Enriched %d items\n", count)

	return nil
}

// RunRecluster runs one intelligence cycle: clustering, divergence
// detection, and anomaly detection.
func (a *App) RunRecluster(ctx context.Context) error {
	a.logger.Info().Msg("Starting recluster mode")

	pipe, err := a.buildPipeline(ctx)
	if err != nil {
		return err
	}
	defer pipe.Close()

	report, err := a.runIntelligence(ctx, pipe)
	if err != nil {
		return err
	}

	fmt.Printf("Clusters: %d\nDivergences: %d\nAnomalies: %d\n",
		len(report.clusters), len(report.divergences), len(report.anomalies))

	return nil
}

// RunDigest runs one intelligence cycle, generates a digest from it, and
// prints the digest to stdout.
func (a *App) RunDigest(ctx context.Context) error {
	a.logger.Info().Msg("Starting digest mode")

	pipe, err := a.buildPipeline(ctx)
	if err != nil {
		return err
	}
	defer pipe.Close()

	d, err := a.runDigestOnce(ctx, pipe)
	if err != nil {
		return err
	}

	fmt.Println(d.Content)

	return nil
}

// RunSeed backfills historical GDELT articles and enriches the ones not yet
// stored. Intended for first deployments so clustering has a window to work
// with.
func (a *App) RunSeed(ctx context.Context, days int) error {
	if days <= 0 {
		days = defaultSeedDays
	}

	a.logger.Info().Int(logKeyDays, days).Msg("Starting seed mode")

	srcCfg, err := a.loadSourcesConfig()
	if err != nil {
		return err
	}

	if len(srcCfg.GDELT.Queries) == 0 {
		return errors.New("seed needs at least one gdelt query in the sources config")
	}

	gdelt := sources.NewGDELTSource(srcCfg.GDELT, *a.logger)

	items, err := gdelt.Backfill(ctx, days)
	if err != nil {
		return fmt.Errorf("gdelt backfill: %w", err)
	}

	pipe, err := a.buildPipeline(ctx)
	if err != nil {
		return err
	}
	defer pipe.Close()

	manager := sources.NewManager(a.store, *a.logger)

	fresh, err := manager.Deduplicate(ctx, items)
	if err != nil {
		return fmt.Errorf("deduplicate backfill: %w", err)
	}

	enriched := pipe.enricher.EnrichBatch(ctx, fresh)

	fmt.Printf("Backfilled %d articles, %d new, %d enriched\n",
		len(items), len(fresh), len(enriched))

	return nil
}

// RunStatus prints item and cluster counts, spend, per-source health, and
// the latest digest.
func (a *App) RunStatus(ctx context.Context) error {
	items, err := a.store.CountItems(ctx)
	if err != nil {
		return fmt.Errorf("count items: %w", err)
	}

	clusters, err := a.store.CountClusters(ctx)
	if err != nil {
		return fmt.Errorf("count clusters: %w", err)
	}

	daily, err := a.store.DailyCostUSD(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("daily cost: %w", err)
	}

	total, err := a.store.TotalCostUSD(ctx)
	if err != nil {
		return fmt.Errorf("total cost: %w", err)
	}

	fmt.Printf("Items:       %d\n", items)
	fmt.Printf("Clusters:    %d\n", clusters)
	fmt.Printf("Spend today: $%.4f\n", daily)
	fmt.Printf("Spend total: $%.4f\n", total)

	statuses, err := a.store.GetAllSourceStatus(ctx)
	if err != nil {
		return fmt.Errorf("source status: %w", err)
	}

	if len(statuses) > 0 {
		fmt.Println("\nSources:")

		for _, st := range statuses {
			last := "never"
			if st.LastSuccessAt != nil {
				last = st.LastSuccessAt.UTC().Format(time.RFC3339)
			}

			fmt.Printf("  %-20s %-8s items=%-6d errors=%-4d last_success=%s\n",
				st.SourceName, st.SourceType, st.ItemsFetched, st.ErrorCount, last)
		}
	}

	d, err := a.store.GetLatestDigest(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("latest digest: %w", err)
		}

		fmt.Println("\nLatest digest: none")

		return nil
	}

	fmt.Printf("\nLatest digest: %s (%d clusters, %d items)\n",
		d.GeneratedAt.UTC().Format(time.RFC3339), d.ClusterCount, d.ItemCount)

	return nil
}

// RunSearch embeds the query and prints the nearest stored items.
func (a *App) RunSearch(ctx context.Context, query string, limit int) error {
	if query == "" {
		return errors.New("search needs a query")
	}

	if limit <= 0 {
		limit = defaultSearchLimit
	}

	index, err := a.newVectorIndex(ctx)
	if err != nil {
		return fmt.Errorf("vector index init: %w", err)
	}

	defer func() { _ = index.Close() }()

	embedder, err := a.newEmbedder()
	if err != nil {
		return fmt.Errorf("embedder init: %w", err)
	}

	vec, err := embedder.Embed(ctx, query)
	if err != nil {
		return fmt.Errorf("embed query: %w", err)
	}

	hits, err := index.Search(ctx, vec, limit, "", nil)
	if err != nil {
		return fmt.Errorf("vector search: %w", err)
	}

	if len(hits) == 0 {
		fmt.Println("No results")

		return nil
	}

	for _, hit := range hits {
		title := payloadString(hit.Payload, vector.PayloadTitle)
		if title == "" {
			title = payloadString(hit.Payload, vector.PayloadSummary)
		}

		fmt.Printf("%.3f  [%s] %s\n", hit.Score,
			payloadString(hit.Payload, vector.PayloadSourceName), title)
	}

	return nil
}

// RunValidateSources probes every configured RSS feed and reports liveness.
func (a *App) RunValidateSources(ctx context.Context) error {
	srcCfg, err := a.loadSourcesConfig()
	if err != nil {
		return err
	}

	if len(srcCfg.RSS) == 0 {
		fmt.Println("No RSS feeds configured")

		return nil
	}

	checks := sources.ValidateFeeds(ctx, srcCfg.RSS)

	alive := 0

	for _, check := range checks {
		if check.Alive {
			alive++

			fmt.Printf("OK   %-24s %s\n", check.Name, check.URL)

			continue
		}

		fmt.Printf("FAIL %-24s %s (%s)\n", check.Name, check.URL, check.Reason)
	}

	fmt.Printf("\n%d/%d feeds alive\n", alive, len(checks))

	return nil
}

// runIngestCycle fetches new items from all sources and enriches them.
// Returns how many items survived enrichment.
func (a *App) runIngestCycle(ctx context.Context, manager *sources.Manager, enricher *enrich.Enricher) (int, error) {
	items, err := manager.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("ingestion run: %w", err)
	}

	if len(items) == 0 {
		a.logger.Info().Msg("No new items to enrich")

		return 0, nil
	}

	enriched := enricher.EnrichBatch(ctx, items)
	a.logger.Info().Int(logKeyItems, len(enriched)).Msg("Enrichment cycle complete")

	return len(enriched), nil
}

// intelligenceReport is the output of one intelligence cycle.
type intelligenceReport struct {
	clusters    []domain.NarrativeCluster
	divergences []detect.Divergence
	anomalies   []detect.Anomaly
}

// runIntelligence reclusters the current window, then scans the clusters
// for divergences and anomalies.
func (a *App) runIntelligence(ctx context.Context, pipe *pipeline) (intelligenceReport, error) {
	clusters, err := pipe.clusterer.Run(ctx)
	if err != nil {
		return intelligenceReport{}, fmt.Errorf("clustering run: %w", err)
	}

	report := intelligenceReport{
		clusters:    clusters,
		divergences: pipe.divergence.Detect(ctx, clusters),
	}
	report.anomalies = pipe.anomaly.DetectAll(ctx, clusters)

	a.logger.Info().
		Int(logKeyClusters, len(report.clusters)).
		Int(logKeyDivergences, len(report.divergences)).
		Int(logKeyAnomalies, len(report.anomalies)).
		Msg("Intelligence cycle complete")

	return report, nil
}

// runDigestOnce re-runs the intelligence cycle so the digest reflects the
// latest items, then generates and persists the digest.
func (a *App) runDigestOnce(ctx context.Context, pipe *pipeline) (*domain.DailyDigest, error) {
	report, err := a.runIntelligence(ctx, pipe)
	if err != nil {
		return nil, err
	}

	return pipe.digest.Generate(ctx, report.clusters, report.divergences, report.anomalies)
}

// archiveExpired flags items older than the rolling window. Vectors stay in
// the index; the clusterer scrolls with a time filter so archived points
// never re-enter clustering.
func (a *App) archiveExpired(ctx context.Context) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.RollingWindowDays)

	count, err := a.store.ArchiveOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archive items: %w", err)
	}

	observability.ItemsArchived.Add(float64(count))
	a.logger.Info().
		Int64(logKeyArchived, count).
		Time(logKeyCutoff, cutoff).
		Msg("Archive pass complete")

	return nil
}

func (a *App) serveHTTP(ctx context.Context, pipe *pipeline) {
	handler := api.New(a.store, pipe.index, pipe.embedder, *a.logger)
	server := observability.NewServerWithAPI(a.store, a.cfg.APIPort, handler, a.logger)

	if err := server.Start(ctx); err != nil {
		a.logger.Error().Err(err).Msg("HTTP server stopped")
	}
}

// newVectorIndex connects the configured vector backend.
func (a *App) newVectorIndex(ctx context.Context) (vector.Index, error) {
	return vector.New(ctx, vector.Config{
		Mode:       a.cfg.QdrantMode,
		Host:       a.cfg.QdrantHost,
		Port:       a.cfg.QdrantPort,
		URL:        a.cfg.QdrantURL,
		APIKey:     a.cfg.QdrantAPIKey,
		Collection: a.cfg.QdrantCollection,
		Dimensions: a.cfg.EmbeddingDim,
	}, *a.logger)
}

// newLLMClient creates the enrichment LLM client for the configured
// provider.
func (a *App) newLLMClient() *llm.Client {
	return llm.New(llm.Config{
		Provider:        a.cfg.EnrichmentProvider,
		Model:           a.cfg.EnrichmentModel,
		AnthropicAPIKey: a.cfg.AnthropicAPIKey,
		OllamaURL:       a.cfg.OllamaURL,
		OllamaModel:     a.cfg.OllamaModel,
		MaxTokens:       a.cfg.EnrichmentMaxTokens,
		RateLimitRPS:    a.cfg.LLMRateLimitRPS,
	}, *a.logger)
}

// newEmbedder creates the embedding client for the configured provider.
func (a *App) newEmbedder() (embeddings.Embedder, error) {
	return embeddings.New(embeddings.Config{
		Provider:   a.cfg.EmbeddingProvider,
		Model:      a.cfg.EmbeddingModel,
		Dimensions: a.cfg.EmbeddingDim,
		BaseURL:    a.cfg.EmbeddingBaseURL,
		APIKey:     a.cfg.EmbeddingAPIKey,
	}, *a.logger)
}

// loadSourcesConfig reads sources.yaml and injects the credentials that
// live in the environment rather than the file.
func (a *App) loadSourcesConfig() (sources.Config, error) {
	cfg, err := sources.LoadConfig(a.cfg.SourcesConfig)
	if err != nil {
		return sources.Config{}, err
	}

	cfg.Bluesky.Handle = a.cfg.BlueskyHandle
	cfg.Bluesky.AppPassword = a.cfg.BlueskyAppPassword
	cfg.Reddit.UserAgent = a.cfg.RedditUserAgent

	return cfg, nil
}

func (a *App) newSourceManager() (*sources.Manager, error) {
	cfg, err := a.loadSourcesConfig()
	if err != nil {
		return nil, err
	}

	return sources.FromConfig(cfg, a.store, *a.logger), nil
}

func payloadString(payload map[string]any, key string) string {
	s, _ := payload[key].(string)

	return s
}
