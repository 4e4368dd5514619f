package crawler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for crawl progress.
var (
	unitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crawler_units_total",
		Help: "Units of work by kind and status",
	}, []string{"kind", "status"})

	recordsWrittenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crawler_records_written_total",
		Help: "Records handed to the store by table",
	}, []string{"table"})

	dictionaryPagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crawler_dictionary_pages_total",
		Help: "Dictionary value pages fetched and written",
	})

	phaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crawler_phase_duration_seconds",
		Help:    "Wall time of each crawl phase",
		Buckets: []float64{1, 10, 60, 300, 900, 1800, 3600, 7200},
	}, []string{"phase"})

	shardsActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "crawler_shards_active",
		Help: "Shard tasks currently running by phase",
	}, []string{"phase"})
)
