package drift

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// IndexerStats receives indexing events. Implemented by the metrics
// package; a nil value disables reporting.
type IndexerStats interface {
	FileIndexed()
	IndexFailed()
	ScanRan(queued int)
}

// indexTask is one pending extraction, keyed by (path, wallet).
type indexTask struct {
	path     string
	wallet   string
	priority int
}

// Indexer asynchronously populates extracted_text for files so they become
// searchable, without blocking foreground reads and writes.
//
// While running it drains a priority queue of explicit tasks; when the
// queue is empty it scans the metadata store for a bounded batch of
// unindexed files, enqueues them at default priority, and waits for the
// rescan interval. Stop is cooperative: an in-flight extraction finishes
// before the loop exits, but the rescan wait is interrupted immediately.
type Indexer struct {
	meta      MetadataStore
	fs        *Filesystem
	extractor TextExtractor
	logger    Logger
	stats     IndexerStats
	interval  time.Duration
	batchSize int

	mu       sync.Mutex
	queue    []indexTask
	inflight map[string]bool
	running  bool
	cancel   context.CancelFunc
	wake     chan struct{}
	done     chan struct{}
}

// NewIndexer creates an Indexer. stats may be nil.
func NewIndexer(meta MetadataStore, fs *Filesystem, extractor TextExtractor, logger Logger, stats IndexerStats, interval time.Duration, batchSize int) *Indexer {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 20
	}
	return &Indexer{
		meta:      meta,
		fs:        fs,
		extractor: extractor,
		logger:    logger,
		stats:     stats,
		interval:  interval,
		batchSize: batchSize,
		inflight:  make(map[string]bool),
		wake:      make(chan struct{}, 1),
	}
}

func taskKey(path, wallet string) string { return wallet + "\x00" + path }

// Running reports whether the worker loop is active.
func (ix *Indexer) Running() bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.running
}

// Start launches the background loop. No-op when already running.
func (ix *Indexer) Start(ctx context.Context) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.running {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	ix.cancel = cancel
	ix.running = true
	ix.done = make(chan struct{})
	go ix.loop(loopCtx)
	ix.logger.Info("indexer started", "interval", ix.interval, "batch_size", ix.batchSize)
}

// Stop signals the loop to exit and waits for it. An extraction already in
// flight is allowed to finish. No-op when not running.
func (ix *Indexer) Stop() {
	ix.mu.Lock()
	if !ix.running {
		ix.mu.Unlock()
		return
	}
	cancel := ix.cancel
	done := ix.done
	ix.mu.Unlock()

	cancel()
	<-done

	ix.mu.Lock()
	ix.running = false
	ix.mu.Unlock()
	ix.logger.Info("indexer stopped")
}

// Enqueue adds a (path, wallet) task. A queued entry for the same key is
// replaced (the higher request wins on priority); a key currently in
// flight is skipped. Higher priority drains first.
func (ix *Indexer) Enqueue(path, wallet string, priority int) {
	path = NormalizePath(path)
	ix.mu.Lock()
	if ix.inflight[taskKey(path, wallet)] {
		ix.mu.Unlock()
		return
	}
	replaced := false
	for i := range ix.queue {
		if ix.queue[i].path == path && ix.queue[i].wallet == wallet {
			ix.queue[i].priority = priority
			replaced = true
			break
		}
	}
	if !replaced {
		ix.queue = append(ix.queue, indexTask{path: path, wallet: wallet, priority: priority})
	}
	sort.SliceStable(ix.queue, func(i, j int) bool {
		return ix.queue[i].priority > ix.queue[j].priority
	})
	ix.mu.Unlock()

	select {
	case ix.wake <- struct{}{}:
	default:
	}
}

// QueueLen returns the number of queued (not in-flight) tasks.
func (ix *Indexer) QueueLen() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.queue)
}

func (ix *Indexer) loop(ctx context.Context) {
	defer close(ix.done)
	timer := time.NewTimer(0)
	defer timer.Stop()
	if !timer.Stop() {
		<-timer.C
	}

	for {
		if ctx.Err() != nil {
			return
		}

		task, ok := ix.pop()
		if ok {
			ix.process(ctx, task)
			continue
		}

		queued := ix.scan(ctx)
		if queued > 0 {
			continue
		}

		timer.Reset(ix.interval)
		select {
		case <-ctx.Done():
			return
		case <-ix.wake:
			if !timer.Stop() {
				<-timer.C
			}
		case <-timer.C:
		}
	}
}

// pop removes the highest-priority task and marks its key in flight.
func (ix *Indexer) pop() (indexTask, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if len(ix.queue) == 0 {
		return indexTask{}, false
	}
	task := ix.queue[0]
	ix.queue = ix.queue[1:]
	ix.inflight[taskKey(task.path, task.wallet)] = true
	return task, true
}

// process extracts text for one file and writes it back. Per-file failures
// are logged and swallowed; the loop must never die on a bad file.
func (ix *Indexer) process(ctx context.Context, task indexTask) {
	defer func() {
		ix.mu.Lock()
		delete(ix.inflight, taskKey(task.path, task.wallet))
		ix.mu.Unlock()
	}()

	entry, err := ix.meta.GetFileEntry(task.path, task.wallet)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			ix.logger.Warn("indexer lookup failed", "path", task.path, "error", err)
		}
		return
	}
	if entry.IsDir || entry.MimeType == nil {
		return
	}

	data, err := ix.fs.Read(ctx, task.path, task.wallet)
	if err != nil {
		ix.logger.Warn("indexer read failed", "path", task.path, "error", err)
		if ix.stats != nil {
			ix.stats.IndexFailed()
		}
		return
	}

	text, err := ix.extractor.Extract(ctx, data, *entry.MimeType)
	if err != nil {
		ix.logger.Warn("text extraction failed", "path", task.path, "mime", *entry.MimeType, "error", err)
		if ix.stats != nil {
			ix.stats.IndexFailed()
		}
		return
	}

	if err := ix.meta.SetExtractedText(task.path, task.wallet, text); err != nil {
		ix.logger.Warn("storing extracted text failed", "path", task.path, "error", err)
		if ix.stats != nil {
			ix.stats.IndexFailed()
		}
		return
	}

	if ix.stats != nil {
		ix.stats.FileIndexed()
	}
	ix.logger.Debug("file indexed", "path", task.path, "wallet", task.wallet, "chars", len(text))
}

// scan enqueues a bounded batch of files that still lack extracted text.
// Returns how many tasks were queued.
func (ix *Indexer) scan(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}
	entries, err := ix.meta.ListUnindexedFiles(ix.batchSize)
	if err != nil {
		ix.logger.Warn("indexer scan failed", "error", err)
		return 0
	}
	for _, e := range entries {
		ix.Enqueue(e.Path, e.WalletAddress, 0)
	}
	if ix.stats != nil {
		ix.stats.ScanRan(len(entries))
	}
	return len(entries)
}
