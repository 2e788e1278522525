package journal

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mcdev12/quizlive/go/internal/session"
)

// MetricPublisher wraps a journal with publish counters and latency.
type MetricPublisher struct {
	journal  session.Journal
	total    *prometheus.CounterVec
	duration prometheus.Histogram
}

func NewMetricPublisher(journal session.Journal, reg prometheus.Registerer) *MetricPublisher {
	factory := promauto.With(reg)
	return &MetricPublisher{
		journal: journal,
		total: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quizlive",
			Subsystem: "journal",
			Name:      "published_total",
			Help:      "Journal publish attempts by event and result.",
		}, []string{"event", "result"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quizlive",
			Subsystem: "journal",
			Name:      "publish_duration_seconds",
			Help:      "Time spent publishing one event.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (p *MetricPublisher) Publish(ctx context.Context, rec session.Record) error {
	start := time.Now()
	err := p.journal.Publish(ctx, rec)
	p.duration.Observe(time.Since(start).Seconds())

	result := "ok"
	if err != nil {
		result = "error"
	}
	p.total.WithLabelValues(string(rec.Event), result).Inc()
	return err
}
