// Package metrics exposes prometheus counters for the indexer and the
// content store, with an optional HTTP endpoint.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"driftfs/internal/drift"
)

// Collector owns a private registry so tests can create as many instances
// as they like without default-registry collisions.
type Collector struct {
	registry *prometheus.Registry

	filesIndexed    prometheus.Counter
	indexFailures   prometheus.Counter
	scansRun        prometheus.Counter
	scanQueued      prometheus.Counter
	blocksStored    prometheus.Counter
	blockBytes      prometheus.Counter
	blocksFetched   prometheus.Counter
	contentAnnounce prometheus.Counter

	server *http.Server
}

var _ drift.IndexerStats = (*Collector)(nil)

// NewCollector creates and registers all counters.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	counter := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "driftfs",
			Name:      name,
			Help:      help,
		})
		registry.MustRegister(c)
		return c
	}

	return &Collector{
		registry:        registry,
		filesIndexed:    counter("indexer_files_indexed_total", "Files whose text extraction completed."),
		indexFailures:   counter("indexer_failures_total", "Indexing attempts that failed."),
		scansRun:        counter("indexer_scans_total", "Database scans for unindexed files."),
		scanQueued:      counter("indexer_scan_queued_total", "Files enqueued by scans."),
		blocksStored:    counter("content_blocks_stored_total", "Blocks written to the local store."),
		blockBytes:      counter("content_block_bytes_total", "Plaintext bytes written to the local store."),
		blocksFetched:   counter("content_blocks_fetched_total", "Blocks obtained from the network or mirror."),
		contentAnnounce: counter("content_announced_total", "Content identifiers announced on the DHT."),
	}
}

func (c *Collector) FileIndexed()       { c.filesIndexed.Inc() }
func (c *Collector) IndexFailed()       { c.indexFailures.Inc() }
func (c *Collector) ScanRan(queued int) { c.scansRun.Inc(); c.scanQueued.Add(float64(queued)) }

func (c *Collector) BlockStored(size int) {
	c.blocksStored.Inc()
	c.blockBytes.Add(float64(size))
}
func (c *Collector) BlockFetched()     { c.blocksFetched.Inc() }
func (c *Collector) ContentAnnounced() { c.contentAnnounce.Inc() }

// Serve starts an HTTP listener exposing /metrics. Returns immediately;
// the server runs until Stop.
func (c *Collector) Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))

	c.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
	}
	go func() {
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()
}

// Stop shuts the metrics listener down. Safe to call when Serve was never
// called.
func (c *Collector) Stop(ctx context.Context) error {
	if c.server == nil {
		return nil
	}
	return c.server.Shutdown(ctx)
}
