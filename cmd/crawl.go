package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	gcsclient "cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	pubsubclient "cloud.google.com/go/pubsub"

	"github.com/formpick/picklist-crawler/internal/api"
	"github.com/formpick/picklist-crawler/internal/catalog"
	"github.com/formpick/picklist-crawler/internal/config"
	"github.com/formpick/picklist-crawler/internal/crawler"
	"github.com/formpick/picklist-crawler/internal/download"
	"github.com/formpick/picklist-crawler/internal/extractor"
	"github.com/formpick/picklist-crawler/internal/fetcher"
	collyfetcher "github.com/formpick/picklist-crawler/internal/fetcher/colly"
	"github.com/formpick/picklist-crawler/internal/logging"
	"github.com/formpick/picklist-crawler/internal/progress"
	"github.com/formpick/picklist-crawler/internal/progress/sinks"
	"github.com/formpick/picklist-crawler/internal/publisher"
	pubsubpublisher "github.com/formpick/picklist-crawler/internal/publisher/pubsub"
	"github.com/formpick/picklist-crawler/internal/report"
	"github.com/formpick/picklist-crawler/internal/storage"
	"github.com/formpick/picklist-crawler/internal/storage/gcs"
	"github.com/formpick/picklist-crawler/internal/storage/local"
	"github.com/formpick/picklist-crawler/internal/storage/memory"
	"github.com/formpick/picklist-crawler/internal/storage/postgres"
)

// newCrawlCmd creates and configures the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Runs one crawl of the configured listing",
		Long: `Walks the configured listing page by page until an empty page, folds every
row into the catalog aggregate, downloads artifacts for rows inside the year
window, and writes the aggregated snapshot to the configured sinks.`,
		RunE: runCrawlCommand,
	}
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.ErrorLogPath)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	promSink, err := sinks.NewPrometheusSink(registry)
	if err != nil {
		return fmt.Errorf("init prometheus sink: %w", err)
	}
	hub := progress.NewHub(
		progress.Config{Logger: logger},
		sinks.NewLogSink(logger.Named("progress")),
		promSink,
	)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if cerr := hub.Close(closeCtx); cerr != nil {
			logger.Warn("progress hub close failed", zap.Error(cerr))
		}
	}()

	blobStore, err := buildBlobStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init blob store: %w", err)
	}

	crawlID := uuid.New()
	logger.Info("starting crawl",
		zap.String("crawl_id", crawlID.String()),
		zap.String("listing", cfg.Listing.BaseURL),
		zap.Int("min_year", cfg.Window.MinYear),
		zap.Int("max_year", cfg.Window.MaxYear),
	)

	baseFetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.HTTPTimeout(),
	})
	listingFetcher := fetcher.NewRetryingFetcher(
		baseFetcher,
		fetcher.NewExponentialRetryPolicy(cfg.HTTP.MaxRetries, cfg.BackoffInitial(), cfg.BackoffMax()),
	)

	aggregator := catalog.NewAggregator()
	downloader := download.New(baseFetcher, blobStore, cfg.Window, hub, logger, crawlID)
	engine := crawler.NewEngine(
		crawler.Config{Listing: cfg.Listing, Concurrency: cfg.Crawler.Concurrency},
		listingFetcher,
		extractor.New(logger),
		aggregator,
		downloader,
		hub,
		logger,
		crawlID,
	)

	shutdownAPI := startAPIServer(cfg, aggregator, registry, logger)
	defer shutdownAPI()

	records, err := engine.Run(ctx)
	if err != nil {
		return fmt.Errorf("run crawl: %w", err)
	}
	logger.Info("crawl finished", zap.Int("records", len(records)))

	return fanOutSnapshot(ctx, cfg, crawlID, records, logger)
}

func buildBlobStore(ctx context.Context, cfg config.Config) (storage.BlobStore, error) {
	switch cfg.Storage.Backend {
	case "local":
		return local.New(cfg.Storage.Local)
	case "gcs":
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		return gcs.New(client, gcs.Config{
			Bucket: cfg.Storage.GCS.Bucket,
			Prefix: cfg.Storage.GCS.Prefix,
		})
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// startAPIServer serves health, metrics, and the live snapshot when a port is
// configured. The returned func shuts the server down.
func startAPIServer(
	cfg config.Config,
	aggregator *catalog.Aggregator,
	registry *prometheus.Registry,
	logger *zap.Logger,
) func() {
	if cfg.Server.Port <= 0 {
		return func() {}
	}
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewServer(aggregator, registry, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("api server stopped", zap.Error(err))
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("api server shutdown failed", zap.Error(err))
		}
	}
}

// fanOutSnapshot writes the aggregated records to every configured
// destination: the JSON report always, Postgres and Pub/Sub when configured.
func fanOutSnapshot(
	ctx context.Context,
	cfg config.Config,
	crawlID uuid.UUID,
	records []catalog.Record,
	logger *zap.Logger,
) error {
	if err := report.Write(cfg.Output.Path, records); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if cfg.DB.DSN != "" {
		store, err := postgres.NewRecordStore(ctx, postgres.RecordStoreConfig{
			DSN:      cfg.DB.DSN,
			Table:    cfg.DB.Table,
			MaxConns: cfg.DB.MaxConns,
			MinConns: cfg.DB.MinConns,
		})
		if err != nil {
			return fmt.Errorf("init record store: %w", err)
		}
		defer store.Close()
		if err := store.StoreSnapshot(ctx, crawlID, records); err != nil {
			return fmt.Errorf("store snapshot: %w", err)
		}
		logger.Info("snapshot stored", zap.Int("records", len(records)))
	}

	if cfg.PubSub.TopicName != "" {
		client, err := pubsubclient.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return fmt.Errorf("init pubsub client: %w", err)
		}
		defer func() { _ = client.Close() }()
		var pub publisher.Publisher = pubsubpublisher.New(client)
		id, err := pub.Publish(ctx, cfg.PubSub.TopicName, map[string]any{
			"crawl_id": crawlID.String(),
			"records":  records,
		})
		if err != nil {
			return fmt.Errorf("publish snapshot: %w", err)
		}
		logger.Info("snapshot published", zap.String("message_id", id))
	}

	return nil
}
