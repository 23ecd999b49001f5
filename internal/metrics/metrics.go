// Package metrics exposes Prometheus counters for the processing pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pdb_processor"

var (
	downloads = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "downloads_total",
		Help:      "Structure files newly downloaded.",
	})
	downloadsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "downloads_skipped_total",
		Help:      "Downloads skipped because the file already existed.",
	})
	downloadFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "download_failures_total",
		Help:      "Downloads that exhausted both formats.",
	})
	retryAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "retry_attempts_total",
		Help:      "Transient fetch failures that consumed a retry attempt.",
	})
	splits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "splits_total",
		Help:      "Structures successfully split into antigen/antibody files.",
	})
	splitFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "split_failures_total",
		Help:      "Split attempts that failed after a successful download.",
	})
	entriesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "entries_processed_total",
		Help:      "Index entries fully processed (any outcome).",
	})
	ledgerRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_retries_total",
		Help:      "Failure-ledger entries reattempted by the retry command.",
	})
)

func IncDownloads()        { downloads.Inc() }
func IncDownloadsSkipped() { downloadsSkipped.Inc() }
func IncDownloadFailures() { downloadFailures.Inc() }
func IncRetryAttempts()    { retryAttempts.Inc() }
func IncSplits()           { splits.Inc() }
func IncSplitFailures()    { splitFailures.Inc() }
func IncEntriesProcessed() { entriesProcessed.Inc() }
func IncLedgerRetries()    { ledgerRetries.Inc() }

// Serve exposes /metrics on addr in a background goroutine.
func Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		// The listener lives for the whole process; errors here must not
		// take the pipeline down.
		_ = http.ListenAndServe(addr, mux)
	}()
}
