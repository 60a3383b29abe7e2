package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/formpick/picklist-crawler/internal/progress"
)

// PrometheusSink exports crawl progress metrics. It owns the collectors for
// crawl lifecycle, listing pages, and artifact downloads.
type PrometheusSink struct {
	crawlsStarted   prometheus.Counter
	crawlsCompleted *prometheus.CounterVec
	crawlRuntime    *prometheus.HistogramVec

	pagesFetched *prometheus.CounterVec
	rowsParsed   *prometheus.CounterVec
	pageDuration prometheus.Histogram

	artifacts     *prometheus.CounterVec
	artifactBytes prometheus.Counter
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		crawlsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "picklist_crawls_started_total",
			Help: "Total crawl runs started.",
		}),
		crawlsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "picklist_crawls_completed_total",
			Help: "Total crawl runs completed partitioned by result.",
		}, []string{"result"}),
		crawlRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "picklist_crawl_runtime_seconds",
			Help:    "Wall time per completed crawl.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"result"}),
		pagesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "picklist_pages_fetched_total",
			Help: "Listing pages processed partitioned by status class.",
		}, []string{"status_class"}),
		rowsParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "picklist_rows_total",
			Help: "Listing rows partitioned by parse result.",
		}, []string{"result"}),
		pageDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "picklist_page_fetch_duration_seconds",
			Help:    "Listing page fetch duration.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		}),
		artifacts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "picklist_artifacts_total",
			Help: "Artifact downloads partitioned by result.",
		}, []string{"result"}),
		artifactBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "picklist_artifact_bytes_total",
			Help: "Bytes of artifact content persisted.",
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.crawlsStarted,
		s.crawlsCompleted,
		s.crawlRuntime,
		s.pagesFetched,
		s.rowsParsed,
		s.pageDuration,
		s.artifacts,
		s.artifactBytes,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors using the provided batch. Safe for
// concurrent use.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageCrawlStart:
		s.crawlsStarted.Inc()
	case progress.StageCrawlDone:
		s.crawlsCompleted.WithLabelValues("success").Inc()
		s.observeRuntime(evt, "success")
	case progress.StageCrawlError:
		s.crawlsCompleted.WithLabelValues("error").Inc()
		s.observeRuntime(evt, "error")
	case progress.StagePageDone:
		s.handlePageEvent(evt)
	case progress.StageArtifactDone:
		s.artifacts.WithLabelValues("success").Inc()
		if evt.Bytes > 0 {
			s.artifactBytes.Add(float64(evt.Bytes))
		}
	case progress.StageArtifactError:
		s.artifacts.WithLabelValues("error").Inc()
	}
}

func (s *PrometheusSink) observeRuntime(evt progress.Event, label string) {
	if evt.Dur > 0 {
		s.crawlRuntime.WithLabelValues(label).Observe(evt.Dur.Seconds())
	}
}

func (s *PrometheusSink) handlePageEvent(evt progress.Event) {
	statusClass := string(evt.StatusClass)
	if statusClass == "" {
		statusClass = string(progress.StatusOther)
	}
	s.pagesFetched.WithLabelValues(statusClass).Inc()
	if evt.Rows > 0 {
		s.rowsParsed.WithLabelValues("parsed").Add(float64(evt.Rows))
	}
	if evt.Skipped > 0 {
		s.rowsParsed.WithLabelValues("skipped").Add(float64(evt.Skipped))
	}
	if evt.Dur > 0 {
		s.pageDuration.Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
