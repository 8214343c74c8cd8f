package drift_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"driftfs/internal/drift"
)

// stubExtractor upper-cases text files and reports no content for
// everything else.
type stubExtractor struct {
	failFor string
}

func (e *stubExtractor) Extract(_ context.Context, data []byte, mimeType string) (string, error) {
	if e.failFor != "" && mimeType == e.failFor {
		return "", errors.New("extractor boom")
	}
	if strings.HasPrefix(mimeType, "text/") {
		return strings.ToUpper(string(data)), nil
	}
	return "", nil
}

func newIndexerFixture(t *testing.T, extractor drift.TextExtractor) (*drift.Indexer, *fsFixture) {
	t.Helper()
	f := newFixture(t)
	ix := drift.NewIndexer(f.meta, f.fs, extractor, f.logger, nil, time.Hour, 10)
	return ix, f
}

// waitForText polls until the entry's extracted text is set or the
// deadline passes.
func waitForText(t *testing.T, f *fsFixture, path, wallet string) *string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		entry, err := f.meta.GetFileEntry(path, wallet)
		if err != nil {
			t.Fatalf("lookup: %v", err)
		}
		if entry.ExtractedText != nil {
			return entry.ExtractedText
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("extracted text never set for %s", path)
	return nil
}

func TestIndexerProcessesEnqueuedFile(t *testing.T) {
	ix, f := newIndexerFixture(t, &stubExtractor{})
	ctx := context.Background()

	if _, err := f.fs.Write(ctx, "/notes.txt", []byte("hello"), "alice", drift.WriteOptions{}); err != nil {
		t.Fatal(err)
	}

	ix.Start(ctx)
	defer ix.Stop()
	ix.Enqueue("/notes.txt", "alice", 5)

	text := waitForText(t, f, "/notes.txt", "alice")
	if *text != "HELLO" {
		t.Errorf("extracted text = %q, want %q", *text, "HELLO")
	}
}

func TestIndexerScanFindsUnindexedFiles(t *testing.T) {
	ix, f := newIndexerFixture(t, &stubExtractor{})
	ctx := context.Background()

	// Written before the indexer starts; only the scan can find it.
	if _, err := f.fs.Write(ctx, "/scanned.txt", []byte("via scan"), "alice", drift.WriteOptions{}); err != nil {
		t.Fatal(err)
	}

	ix.Start(ctx)
	defer ix.Stop()

	text := waitForText(t, f, "/scanned.txt", "alice")
	if *text != "VIA SCAN" {
		t.Errorf("extracted text = %q", *text)
	}
}

func TestIndexerMarksNoContentAsIndexed(t *testing.T) {
	ix, f := newIndexerFixture(t, &stubExtractor{})
	ctx := context.Background()

	if _, err := f.fs.Write(ctx, "/photo.png", []byte{0x89, 0x50}, "alice", drift.WriteOptions{}); err != nil {
		t.Fatal(err)
	}

	ix.Start(ctx)
	defer ix.Stop()
	ix.Enqueue("/photo.png", "alice", 1)

	text := waitForText(t, f, "/photo.png", "alice")
	if *text != "" {
		t.Errorf("extracted text = %q, want empty marker", *text)
	}

	// An indexed empty marker keeps the file out of future scans.
	entries, err := f.meta.ListUnindexedFiles(10)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Path == "/photo.png" {
			t.Error("file with empty marker still listed as unindexed")
		}
	}
}

func TestIndexerSurvivesExtractionFailure(t *testing.T) {
	ix, f := newIndexerFixture(t, &stubExtractor{failFor: "application/pdf"})
	ctx := context.Background()

	if _, err := f.fs.Write(ctx, "/bad.pdf", []byte("not a pdf"), "alice", drift.WriteOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.fs.Write(ctx, "/good.txt", []byte("fine"), "alice", drift.WriteOptions{}); err != nil {
		t.Fatal(err)
	}

	ix.Start(ctx)
	defer ix.Stop()
	ix.Enqueue("/bad.pdf", "alice", 9)
	ix.Enqueue("/good.txt", "alice", 1)

	// The failing file must not take the loop down.
	text := waitForText(t, f, "/good.txt", "alice")
	if *text != "FINE" {
		t.Errorf("extracted text = %q", *text)
	}
}

func TestIndexerStopIsPrompt(t *testing.T) {
	ix, _ := newIndexerFixture(t, &stubExtractor{})

	ix.Start(context.Background())
	// Let the loop reach its idle wait (the rescan interval is an hour).
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	ix.Stop()
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Stop took %v, want prompt interruption of the idle wait", elapsed)
	}
	if ix.Running() {
		t.Error("indexer still running after Stop")
	}
}

func TestIndexerQueueReplacesDuplicates(t *testing.T) {
	ix, _ := newIndexerFixture(t, &stubExtractor{})

	ix.Enqueue("/a.txt", "alice", 1)
	ix.Enqueue("/a.txt", "alice", 7)
	ix.Enqueue("/b.txt", "alice", 3)

	if got := ix.QueueLen(); got != 2 {
		t.Errorf("queue length = %d, want 2 (duplicate replaced)", got)
	}
}
