package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorCounters(t *testing.T) {
	c := NewCollector()

	c.FileIndexed()
	c.FileIndexed()
	c.IndexFailed()
	c.ScanRan(3)
	c.BlockStored(1024)
	c.BlockFetched()
	c.ContentAnnounced()

	if got := testutil.ToFloat64(c.filesIndexed); got != 2 {
		t.Errorf("files indexed = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.indexFailures); got != 1 {
		t.Errorf("index failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.scansRun); got != 1 {
		t.Errorf("scans = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.scanQueued); got != 3 {
		t.Errorf("scan queued = %v, want 3", got)
	}
	if got := testutil.ToFloat64(c.blocksStored); got != 1 {
		t.Errorf("blocks stored = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.blockBytes); got != 1024 {
		t.Errorf("block bytes = %v, want 1024", got)
	}
	if got := testutil.ToFloat64(c.blocksFetched); got != 1 {
		t.Errorf("blocks fetched = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.contentAnnounce); got != 1 {
		t.Errorf("announced = %v, want 1", got)
	}
}

func TestCollectorsAreIndependent(t *testing.T) {
	a := NewCollector()
	b := NewCollector()

	a.FileIndexed()
	if got := testutil.ToFloat64(b.filesIndexed); got != 0 {
		t.Errorf("counter leaked across registries: %v", got)
	}
}
