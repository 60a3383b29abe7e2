package download_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/formpick/picklist-crawler/internal/catalog"
	"github.com/formpick/picklist-crawler/internal/download"
	"github.com/formpick/picklist-crawler/internal/fetcher"
	"github.com/formpick/picklist-crawler/internal/progress"
	"github.com/formpick/picklist-crawler/internal/storage/memory"
)

// stubFetcher serves canned bodies by URL.
type stubFetcher struct {
	bodies map[string][]byte
	calls  int
}

func (s *stubFetcher) Fetch(_ context.Context, url string) (fetcher.Response, error) {
	s.calls++
	body, ok := s.bodies[url]
	if !ok {
		return fetcher.Response{}, &fetcher.FetchError{URL: url, StatusCode: 404, Err: errors.New("not found")}
	}
	return fetcher.Response{URL: url, StatusCode: 200, Body: body}, nil
}

// captureEmitter collects emitted events.
type captureEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (c *captureEmitter) Emit(evt progress.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
}

func (c *captureEmitter) byStage(stage progress.Stage) []progress.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []progress.Event
	for _, evt := range c.events {
		if evt.Stage == stage {
			out = append(out, evt)
		}
	}
	return out
}

func TestMaybeDownload(t *testing.T) {
	window := download.Window{MinYear: 2018, MaxYear: 2020}

	t.Run("DownloadsInsideWindow", func(t *testing.T) {
		pdf := []byte("%PDF-1.4 fake")
		f := &stubFetcher{bodies: map[string][]byte{
			"https://example.com/f1040--2019.pdf": pdf,
		}}
		store := memory.New()
		emitter := &captureEmitter{}
		d := download.New(f, store, window, emitter, zap.NewNop(), uuid.New())

		d.MaybeDownload(context.Background(), catalog.Row{
			Key:         "Form 1040",
			Year:        2019,
			ArtifactURL: "https://example.com/f1040--2019.pdf",
		})

		got, ok := store.Object("Form 1040/Form 1040_2019.pdf")
		require.True(t, ok)
		assert.Equal(t, pdf, got)

		done := emitter.byStage(progress.StageArtifactDone)
		require.Len(t, done, 1)
		assert.Equal(t, "Form 1040", done[0].Key)
		assert.Equal(t, 2019, done[0].Year)
		assert.Equal(t, int64(len(pdf)), done[0].Bytes)
	})

	t.Run("SkipsOutsideWindow", func(t *testing.T) {
		f := &stubFetcher{bodies: map[string][]byte{}}
		store := memory.New()
		d := download.New(f, store, window, nil, zap.NewNop(), uuid.New())

		for _, year := range []int{2017, 2021, 1999} {
			d.MaybeDownload(context.Background(), catalog.Row{
				Key:         "Form 1040",
				Year:        year,
				ArtifactURL: "https://example.com/old.pdf",
			})
		}

		assert.Zero(t, f.calls)
		assert.Zero(t, store.Len())
	})

	t.Run("WindowBoundariesInclusive", func(t *testing.T) {
		f := &stubFetcher{bodies: map[string][]byte{
			"https://example.com/lo.pdf": []byte("lo"),
			"https://example.com/hi.pdf": []byte("hi"),
		}}
		store := memory.New()
		d := download.New(f, store, window, nil, zap.NewNop(), uuid.New())

		d.MaybeDownload(context.Background(), catalog.Row{Key: "A", Year: 2018, ArtifactURL: "https://example.com/lo.pdf"})
		d.MaybeDownload(context.Background(), catalog.Row{Key: "A", Year: 2020, ArtifactURL: "https://example.com/hi.pdf"})

		assert.Equal(t, 2, store.Len())
	})

	t.Run("FetchFailureIsContained", func(t *testing.T) {
		f := &stubFetcher{bodies: map[string][]byte{}}
		store := memory.New()
		emitter := &captureEmitter{}
		d := download.New(f, store, window, emitter, zap.NewNop(), uuid.New())

		d.MaybeDownload(context.Background(), catalog.Row{
			Key:         "Form 941",
			Year:        2019,
			ArtifactURL: "https://example.com/missing.pdf",
		})

		assert.Zero(t, store.Len())
		errs := emitter.byStage(progress.StageArtifactError)
		require.Len(t, errs, 1)
		assert.Equal(t, "Form 941", errs[0].Key)
		assert.Contains(t, errs[0].Note, "Form 941/2019")
	})

	t.Run("UnusableKeyNeverFetched", func(t *testing.T) {
		f := &stubFetcher{bodies: map[string][]byte{}}
		store := memory.New()
		emitter := &captureEmitter{}
		d := download.New(f, store, window, emitter, zap.NewNop(), uuid.New())

		d.MaybeDownload(context.Background(), catalog.Row{
			Key:         "../escape",
			Year:        2019,
			ArtifactURL: "https://example.com/x.pdf",
		})

		assert.Zero(t, f.calls)
		assert.Zero(t, store.Len())
		require.Len(t, emitter.byStage(progress.StageArtifactError), 1)
	})
}

func TestArtifactPath(t *testing.T) {
	assert.Equal(t, "Form 1040/Form 1040_2019.pdf", download.ArtifactPath("Form 1040", 2019))
	assert.Equal(t, "Form W-2/Form W-2_2020.pdf", download.ArtifactPath("Form W-2", 2020))
}

func TestValidKey(t *testing.T) {
	assert.True(t, download.ValidKey("Form 1040"))
	assert.True(t, download.ValidKey("Form W-2"))
	assert.False(t, download.ValidKey(""))
	assert.False(t, download.ValidKey("."))
	assert.False(t, download.ValidKey(".."))
	assert.False(t, download.ValidKey("a/b"))
	assert.False(t, download.ValidKey(`a\b`))
}
