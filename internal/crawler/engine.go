// Package crawler drives the paginated listing crawl: it walks listing pages
// in cursor order, folds extracted rows into the catalog aggregate, and fans
// out artifact downloads.
package crawler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/formpick/picklist-crawler/internal/catalog"
	"github.com/formpick/picklist-crawler/internal/fetcher"
	"github.com/formpick/picklist-crawler/internal/progress"
)

// RowExtractor parses catalog rows out of a listing page.
type RowExtractor interface {
	Extract(pageURL string, body []byte) ([]catalog.Row, int, error)
}

// ArtifactDownloader conditionally persists a row's artifact. Implementations
// contain their own failures; the engine never sees them.
type ArtifactDownloader interface {
	MaybeDownload(ctx context.Context, row catalog.Row)
}

// Config controls engine behavior.
type Config struct {
	Listing ListingConfig
	// Concurrency bounds the per-page row fan-out (default 8).
	Concurrency int
}

// Engine is the crawl orchestrator. It has two states: paging, where listing
// pages are fetched strictly in cursor order, and done, reached when a page
// holds no data rows at all. Page N+1 is only requested after page N's rows are
// extracted, so the empty-page termination signal can never race ahead of an
// earlier page.
type Engine struct {
	cfg        Config
	fetcher    fetcher.Fetcher
	extractor  RowExtractor
	aggregator *catalog.Aggregator
	downloader ArtifactDownloader
	emitter    progress.Emitter
	logger     *zap.Logger
	crawlID    uuid.UUID
}

// NewEngine constructs an Engine. The fetcher should already carry the retry
// policy for listing pages: a page fetch that fails here aborts the crawl
// rather than being mistaken for end-of-listing.
func NewEngine(
	cfg Config,
	f fetcher.Fetcher,
	extractor RowExtractor,
	aggregator *catalog.Aggregator,
	downloader ArtifactDownloader,
	emitter progress.Emitter,
	logger *zap.Logger,
	crawlID uuid.UUID,
) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if emitter == nil {
		emitter = nopEmitter{}
	}
	return &Engine{
		cfg:        cfg,
		fetcher:    f,
		extractor:  extractor,
		aggregator: aggregator,
		downloader: downloader,
		emitter:    emitter,
		logger:     logger,
		crawlID:    crawlID,
	}
}

// Run walks the listing until an empty page, waits for in-flight row work,
// and returns the aggregated snapshot. Partial results remain valid on
// cancellation: the fold is monotonic and artifact files are independently
// named.
func (e *Engine) Run(ctx context.Context) ([]catalog.Record, error) {
	start := time.Now()
	e.emit(progress.Event{Stage: progress.StageCrawlStart})

	g := new(errgroup.Group)
	g.SetLimit(e.cfg.Concurrency)

	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			_ = g.Wait()
			e.finish(start, err)
			return e.aggregator.Snapshot(), fmt.Errorf("crawl canceled: %w", err)
		}

		rows, skipped, err := e.processPage(ctx, g, offset)
		if err != nil {
			// Let in-flight row work for earlier pages settle first.
			_ = g.Wait()
			e.finish(start, err)
			return e.aggregator.Snapshot(), err
		}
		if rows == 0 && skipped == 0 {
			break
		}
		offset += e.cfg.Listing.PageSize
	}

	if err := g.Wait(); err != nil {
		e.finish(start, err)
		return e.aggregator.Snapshot(), err
	}
	e.finish(start, nil)
	return e.aggregator.Snapshot(), nil
}

// processPage fetches and extracts one listing page and dispatches its rows.
// It returns the parsed and skipped row counts; both zero means the page held
// no data rows at all, which signals termination. A page whose rows all
// failed to parse is not the end of the listing.
func (e *Engine) processPage(ctx context.Context, g *errgroup.Group, offset int) (int, int, error) {
	pageURL, err := e.cfg.Listing.PageURL(offset)
	if err != nil {
		return 0, 0, err
	}

	resp, err := e.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		// A failed listing fetch is escalated, never treated as an empty
		// page: conflating the two silently truncates the crawl.
		return 0, 0, fmt.Errorf("listing page at offset %d: %w", offset, err)
	}

	rows, skipped, err := e.extractor.Extract(pageURL, resp.Body)
	if err != nil {
		return 0, 0, fmt.Errorf("extract listing page at offset %d: %w", offset, err)
	}

	e.emit(progress.Event{
		Stage:       progress.StagePageDone,
		URL:         pageURL,
		Rows:        len(rows),
		Skipped:     skipped,
		Bytes:       int64(len(resp.Body)),
		StatusClass: progress.ClassifyStatus(resp.StatusCode),
		Dur:         resp.Duration,
	})
	e.logger.Debug("listing page processed",
		zap.Int("offset", offset),
		zap.Int("rows", len(rows)),
		zap.Int("skipped", skipped),
	)

	if len(rows) == 0 {
		return 0, skipped, nil
	}

	pageRows := rows
	g.Go(func() error {
		e.aggregator.Fold(pageRows)
		return nil
	})
	for _, row := range rows {
		row := row
		g.Go(func() error {
			e.downloader.MaybeDownload(ctx, row)
			return nil
		})
	}
	return len(rows), skipped, nil
}

func (e *Engine) finish(start time.Time, err error) {
	evt := progress.Event{
		Stage: progress.StageCrawlDone,
		Dur:   time.Since(start),
	}
	if err != nil {
		evt.Stage = progress.StageCrawlError
		evt.Note = err.Error()
	}
	e.emit(evt)
}

func (e *Engine) emit(evt progress.Event) {
	evt.CrawlID = progress.UUIDToBytes(e.crawlID)
	evt.TS = time.Now().UTC()
	e.emitter.Emit(evt)
}

type nopEmitter struct{}

func (nopEmitter) Emit(progress.Event) {}
