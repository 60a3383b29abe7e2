// Package download persists artifacts for rows inside the configured year
// window.
package download

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/formpick/picklist-crawler/internal/catalog"
	"github.com/formpick/picklist-crawler/internal/fetcher"
	"github.com/formpick/picklist-crawler/internal/progress"
	"github.com/formpick/picklist-crawler/internal/storage"
)

const artifactContentType = "application/pdf"

// Window is the closed year range for which artifacts are downloaded.
type Window struct {
	MinYear int `mapstructure:"min_year"`
	MaxYear int `mapstructure:"max_year"`
}

// Contains reports whether year falls inside the window.
func (w Window) Contains(year int) bool {
	return year >= w.MinYear && year <= w.MaxYear
}

// DownloadError reports a failed artifact fetch or persist. It is always
// contained at the row level: logged, counted, never escalated.
type DownloadError struct {
	Key  string
	Year int
	Err  error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download artifact %s/%d: %v", e.Key, e.Year, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// Downloader fetches and persists row artifacts. It holds no state between
// rows; every download is independent.
type Downloader struct {
	fetcher fetcher.Fetcher
	store   storage.BlobStore
	window  Window
	emitter progress.Emitter
	logger  *zap.Logger
	crawlID uuid.UUID
}

// New builds a Downloader. A nil emitter or logger is replaced with a no-op.
func New(
	f fetcher.Fetcher,
	store storage.BlobStore,
	window Window,
	emitter progress.Emitter,
	logger *zap.Logger,
	crawlID uuid.UUID,
) *Downloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if emitter == nil {
		emitter = nopEmitter{}
	}
	return &Downloader{
		fetcher: f,
		store:   store,
		window:  window,
		emitter: emitter,
		logger:  logger,
		crawlID: crawlID,
	}
}

// MaybeDownload persists the row's artifact when its year lies inside the
// window. Failures are logged and reported as events but never returned;
// sibling rows must not be affected.
func (d *Downloader) MaybeDownload(ctx context.Context, row catalog.Row) {
	if !d.window.Contains(row.Year) {
		return
	}
	start := time.Now()
	if err := d.download(ctx, row); err != nil {
		derr := &DownloadError{Key: row.Key, Year: row.Year, Err: err}
		d.logger.Error("artifact download failed",
			zap.String("key", row.Key),
			zap.Int("year", row.Year),
			zap.String("url", row.ArtifactURL),
			zap.Error(derr),
		)
		d.emitter.Emit(progress.Event{
			CrawlID: progress.UUIDToBytes(d.crawlID),
			TS:      time.Now().UTC(),
			Stage:   progress.StageArtifactError,
			URL:     row.ArtifactURL,
			Key:     row.Key,
			Year:    row.Year,
			Dur:     time.Since(start),
			Note:    derr.Error(),
		})
	}
}

func (d *Downloader) download(ctx context.Context, row catalog.Row) error {
	if !ValidKey(row.Key) {
		return fmt.Errorf("key %q is not usable as a directory name", row.Key)
	}
	resp, err := d.fetcher.Fetch(ctx, row.ArtifactURL)
	if err != nil {
		return err
	}
	uri, err := d.store.PutObject(ctx, ArtifactPath(row.Key, row.Year), artifactContentType, resp.Body)
	if err != nil {
		return err
	}
	d.emitter.Emit(progress.Event{
		CrawlID:     progress.UUIDToBytes(d.crawlID),
		TS:          time.Now().UTC(),
		Stage:       progress.StageArtifactDone,
		URL:         row.ArtifactURL,
		Key:         row.Key,
		Year:        row.Year,
		Bytes:       int64(len(resp.Body)),
		StatusClass: progress.ClassifyStatus(resp.StatusCode),
		Dur:         resp.Duration,
		Note:        uri,
	})
	return nil
}

// ArtifactPath is the deterministic blob path for a record's artifact:
// a directory named after the key holding one file per year.
func ArtifactPath(key string, year int) string {
	return fmt.Sprintf("%s/%s_%d.pdf", key, key, year)
}

// ValidKey rejects keys that cannot serve as a directory name.
func ValidKey(key string) bool {
	if key == "" || key == "." || key == ".." {
		return false
	}
	return !strings.ContainsAny(key, "/\\")
}

type nopEmitter struct{}

func (nopEmitter) Emit(progress.Event) {}
