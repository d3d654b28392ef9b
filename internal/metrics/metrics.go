package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "purge_scans_total", Help: "Completed history scans by result"},
		[]string{"result"},
	)
	ScannedMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "purge_scanned_messages_total", Help: "Messages read by successful scans"},
	)
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "purge_queries_total", Help: "Purge queries by outcome"},
		[]string{"outcome"},
	)
	DeletionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "purge_deletions_total", Help: "Messages sent for deletion by path and result"},
		[]string{"path", "result"},
	)
	SnapshotMessages = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "purge_snapshot_messages", Help: "Messages in the current snapshot"},
	)
)

var initOnce sync.Once

// Init registers the collectors with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(ScansTotal)
		prometheus.MustRegister(ScannedMessagesTotal)
		prometheus.MustRegister(QueriesTotal)
		prometheus.MustRegister(DeletionsTotal)
		prometheus.MustRegister(SnapshotMessages)
	})
}

// ObserveDeletion counts n messages deleted (ok) or failed along path
func ObserveDeletion(path string, ok bool, n int) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	DeletionsTotal.WithLabelValues(path, result).Add(float64(n))
}
