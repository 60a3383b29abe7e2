// Package progress defines the event stream emitted during a crawl and the
// hub that fans it out to sinks.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageCrawlStart    Stage = "CRAWL_START"
	StageCrawlDone     Stage = "CRAWL_DONE"
	StageCrawlError    Stage = "CRAWL_ERROR"
	StagePageDone      Stage = "PAGE_DONE"
	StageArtifactDone  Stage = "ARTIFACT_DONE"
	StageArtifactError Stage = "ARTIFACT_ERROR"
)

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Supported HTTP status classes.
const (
	Status2xx   StatusClass = "2xx"
	Status3xx   StatusClass = "3xx"
	Status4xx   StatusClass = "4xx"
	Status5xx   StatusClass = "5xx"
	StatusOther StatusClass = "other"
)

// Event captures a single crawl milestone.
type Event struct {
	// CrawlID identifies the crawl run in 16-byte UUID form.
	CrawlID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// URL is the listing page or artifact URL, where applicable.
	URL string
	// Key and Year scope artifact events to a record.
	Key  string
	Year int
	// Rows and Skipped count extracted and discarded rows for a page event.
	Rows    int
	Skipped int
	// Bytes carries the response size for page and artifact fetches.
	Bytes int64
	// StatusClass groups the HTTP status of the fetch.
	StatusClass StatusClass
	// Dur captures fetch latency, or total runtime on crawl completion.
	Dur time.Duration
	// Note attaches low-volume context such as error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.CrawlID == [16]byte{} {
		return errors.New("crawl id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageCrawlStart, StageCrawlDone, StageCrawlError:
	case StagePageDone:
		if e.URL == "" {
			return errors.New("page event requires url")
		}
	case StageArtifactDone, StageArtifactError:
		if e.Key == "" {
			return errors.New("artifact event requires key")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// CrawlUUID converts the binary crawl ID to uuid.UUID.
func (e Event) CrawlUUID() uuid.UUID {
	return uuid.UUID(e.CrawlID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

// ClassifyStatus groups HTTP status codes for fetch events.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusOther
	}
}
