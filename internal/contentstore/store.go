package contentstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ipfs/go-cid"

	"driftfs/internal/config"
	"driftfs/internal/drift"
)

// Initialization failures are classified so callers can react differently
// to a busy port, a missing encryption key, and on-disk damage.
var (
	ErrAddressInUse   = errors.New("listen address already in use")
	ErrRepoCorrupt    = errors.New("content repository is corrupt")
	ErrKeyUnavailable = errors.New("block encryption key unavailable")
)

// ErrNotFileNode is returned when an identifier resolves to a block that is
// not a file manifest.
var ErrNotFileNode = errors.New("content id does not reference a file node")

// Stats receives content store activity counters. Implementations must be
// safe for concurrent use.
type Stats interface {
	BlockStored(size int)
	BlockFetched()
	ContentAnnounced()
}

// NopStats discards all counters.
type NopStats struct{}

func (NopStats) BlockStored(int)   {}
func (NopStats) BlockFetched()     {}
func (NopStats) ContentAnnounced() {}

// Store is the content-addressed object store. Payloads are split into raw
// chunks plus a manifest block; the manifest CID is the content identifier.
// In public and hybrid modes a libp2p node provides remote fetch, and in
// public mode stored content is announced on the DHT.
type Store struct {
	cfg    config.ContentConfig
	mode   drift.NetworkMode
	logger drift.Logger
	stats  Stats

	mu     sync.RWMutex
	ready  bool
	blocks *blockDir
	meta   *metaStore
	node   *p2pNode
	mirror *s3Mirror

	fetched   atomic.Int64
	announced atomic.Int64
}

var _ drift.ContentStore = (*Store)(nil)

// New creates a Store from configuration. The store is not usable until
// Initialize succeeds.
func New(cfg config.ContentConfig, logger drift.Logger, stats Stats) *Store {
	if logger == nil {
		logger = &drift.NopLogger{}
	}
	if stats == nil {
		stats = NopStats{}
	}
	return &Store{
		cfg:    cfg,
		mode:   drift.NetworkMode(cfg.Mode),
		logger: logger,
		stats:  stats,
	}
}

// Initialize opens the block directory and datastore and, outside private
// mode, starts the p2p node. Idempotent. On partial failure every resource
// created so far is torn down and the store stays not ready.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}

	var teardown []func()
	success := false
	defer func() {
		if !success {
			for i := len(teardown) - 1; i >= 0; i-- {
				teardown[i]()
			}
		}
	}()

	if err := os.MkdirAll(s.cfg.RepoDir, 0755); err != nil {
		return fmt.Errorf("creating repository directory: %w", err)
	}

	blocksPath := filepath.Join(s.cfg.RepoDir, "blocks")
	if info, err := os.Stat(blocksPath); err == nil && !info.IsDir() {
		return fmt.Errorf("%s is not a directory: %w", blocksPath, ErrRepoCorrupt)
	}

	var cipher *blockCipher
	if s.mode == drift.ModePrivate && s.cfg.KeyPath != "" {
		var err error
		cipher, err = loadBlockCipher(s.cfg.KeyPath)
		if err != nil {
			return fmt.Errorf("%v: %w", err, ErrKeyUnavailable)
		}
	}

	blocks, err := newBlockDir(blocksPath, cipher)
	if err != nil {
		return err
	}

	meta, err := openMetaStore(filepath.Join(s.cfg.RepoDir, "datastore"))
	if err != nil {
		return fmt.Errorf("%v: %w", err, ErrRepoCorrupt)
	}
	teardown = append(teardown, func() { meta.Close() })

	var node *p2pNode
	if s.mode != drift.ModePrivate {
		serve := s.mode == drift.ModePublic
		node, err = newP2PNode(ctx, s.cfg.ListenAddrs, s.cfg.BootstrapPeers, serve, blocks, s.logger)
		if err != nil {
			if strings.Contains(err.Error(), "address already in use") {
				return fmt.Errorf("%v: %w", err, ErrAddressInUse)
			}
			return err
		}
		teardown = append(teardown, func() { node.Close() })
	}

	var mirror *s3Mirror
	if s.cfg.Mirror.Enabled {
		mirror, err = newS3Mirror(ctx, s.cfg.Mirror)
		if err != nil {
			return err
		}
	}

	s.blocks = blocks
	s.meta = meta
	s.node = node
	s.mirror = mirror
	s.ready = true
	success = true

	s.logger.Info("content store initialized", "mode", string(s.mode), "repo", s.cfg.RepoDir)
	return nil
}

func (s *Store) requireReady() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready {
		return fmt.Errorf("content store: %w", drift.ErrNotInitialized)
	}
	return nil
}

// Store chunks the payload, writes every block that is not already present,
// and returns the manifest identifier. Identical bytes always produce the
// same identifier.
func (s *Store) Store(ctx context.Context, data []byte, opts drift.StoreOptions) (string, error) {
	if err := s.requireReady(); err != nil {
		return "", err
	}

	chunks := splitChunks(data)
	chunkIDs := make([]string, 0, len(chunks))
	written := make(map[string][]byte)

	for _, chunk := range chunks {
		c, err := rawCID(chunk)
		if err != nil {
			return "", err
		}
		id := c.String()
		chunkIDs = append(chunkIDs, id)
		if err := s.putBlock(id, chunk); err != nil {
			return "", err
		}
		written[id] = chunk
	}

	encoded, c, err := encodeManifest(&manifest{
		Kind:   manifestKindFile,
		Size:   int64(len(data)),
		Chunks: chunkIDs,
	})
	if err != nil {
		return "", err
	}
	contentID := c.String()
	if err := s.putBlock(contentID, encoded); err != nil {
		return "", err
	}
	written[contentID] = encoded

	if opts.Pin {
		if err := s.meta.SetPin(contentID); err != nil {
			return "", err
		}
		s.mirrorBlocks(ctx, written)
	}

	if s.mode == drift.ModePublic && s.node != nil {
		if err := s.node.Announce(ctx, c); err != nil {
			s.logger.Warn("failed to announce content", "content_id", contentID, "error", err)
		} else {
			s.announced.Add(1)
			s.stats.ContentAnnounced()
		}
	}

	return contentID, nil
}

func (s *Store) putBlock(id string, data []byte) error {
	if err := s.blocks.Put(id, data); err != nil {
		return err
	}
	if err := s.meta.RecordBlock(id, int64(len(data))); err != nil {
		return err
	}
	s.stats.BlockStored(len(data))
	return nil
}

// mirrorBlocks uploads blocks to the S3 mirror. Best-effort: failures are
// logged, never surfaced.
func (s *Store) mirrorBlocks(ctx context.Context, blocks map[string][]byte) {
	if s.mirror == nil {
		return
	}
	for id, data := range blocks {
		if err := s.mirror.Put(ctx, id, data); err != nil {
			s.logger.Warn("failed to mirror block", "block", id, "error", err)
		}
	}
}

// loadBlock returns a block from the local store, falling back to the
// network and then the mirror. Remotely obtained blocks are persisted
// locally before returning.
func (s *Store) loadBlock(ctx context.Context, id string) ([]byte, error) {
	ok, err := s.blocks.Has(id)
	if err != nil {
		return nil, err
	}
	if ok {
		return s.blocks.Get(id)
	}

	if s.node != nil {
		data, err := s.node.FetchBlock(ctx, id)
		if err == nil {
			if err := s.putBlock(id, data); err != nil {
				return nil, err
			}
			s.fetched.Add(1)
			s.stats.BlockFetched()
			return data, nil
		}
		s.logger.Debug("network fetch failed", "block", id, "error", err)
	}

	if s.mirror != nil {
		data, err := s.mirror.Get(ctx, id)
		if err == nil {
			if err := s.putBlock(id, data); err != nil {
				return nil, err
			}
			s.fetched.Add(1)
			s.stats.BlockFetched()
			return data, nil
		}
		s.logger.Debug("mirror fetch failed", "block", id, "error", err)
	}

	return nil, fmt.Errorf("block %s: %w", id, drift.ErrContentUnavailable)
}

// resolveManifest fetches and validates the manifest for a content
// identifier.
func (s *Store) resolveManifest(ctx context.Context, contentID string) (*manifest, error) {
	c, err := cid.Decode(contentID)
	if err != nil {
		return nil, fmt.Errorf("parsing content id %q: %w", contentID, err)
	}
	if c.Prefix().Codec != cid.DagJSON {
		return nil, fmt.Errorf("%s: %w", contentID, ErrNotFileNode)
	}

	encoded, err := s.loadBlock(ctx, contentID)
	if err != nil {
		return nil, err
	}
	m, err := decodeManifest(encoded)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", contentID, ErrNotFileNode)
	}
	if m.Kind != manifestKindFile {
		return nil, fmt.Errorf("%s has kind %q: %w", contentID, m.Kind, ErrNotFileNode)
	}
	if len(m.Chunks) == 0 {
		return nil, fmt.Errorf("manifest %s lists no chunks", contentID)
	}
	return m, nil
}

// Get reconstructs the payload for a content identifier.
func (s *Store) Get(ctx context.Context, contentID string) ([]byte, error) {
	if err := s.requireReady(); err != nil {
		return nil, err
	}

	m, err := s.resolveManifest(ctx, contentID)
	if err != nil {
		return nil, err
	}

	data := make([]byte, 0, m.Size)
	for _, chunkID := range m.Chunks {
		chunk, err := s.loadBlock(ctx, chunkID)
		if err != nil {
			return nil, err
		}
		data = append(data, chunk...)
	}
	if int64(len(data)) != m.Size {
		return nil, fmt.Errorf("content %s: reassembled %d bytes, manifest says %d: %w",
			contentID, len(data), m.Size, ErrRepoCorrupt)
	}
	return data, nil
}

// Exists reports whether the content's manifest block is present locally.
func (s *Store) Exists(ctx context.Context, contentID string) (bool, error) {
	if err := s.requireReady(); err != nil {
		return false, err
	}
	if _, err := cid.Decode(contentID); err != nil {
		return false, fmt.Errorf("parsing content id %q: %w", contentID, err)
	}
	return s.blocks.Has(contentID)
}

func (s *Store) Pin(ctx context.Context, contentID string) error {
	if err := s.requireReady(); err != nil {
		return err
	}
	return s.meta.SetPin(contentID)
}

func (s *Store) Unpin(ctx context.Context, contentID string) error {
	if err := s.requireReady(); err != nil {
		return err
	}
	return s.meta.RemovePin(contentID)
}

// FetchRemote pulls a payload's manifest and chunks into the local store.
func (s *Store) FetchRemote(ctx context.Context, contentID string) (*drift.RemoteFetchResult, error) {
	if err := s.requireReady(); err != nil {
		return nil, err
	}
	if s.mode == drift.ModePrivate {
		return nil, fmt.Errorf("remote fetch: %w", drift.ErrNetworkMode)
	}

	m, err := s.resolveManifest(ctx, contentID)
	if err != nil {
		return nil, err
	}
	for _, chunkID := range m.Chunks {
		if _, err := s.loadBlock(ctx, chunkID); err != nil {
			return nil, err
		}
	}

	return &drift.RemoteFetchResult{Size: m.Size, ChunkCount: len(m.Chunks)}, nil
}

func (s *Store) ConnectedPeers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.node == nil {
		return nil
	}
	return s.node.Peers()
}

func (s *Store) NetworkStats() drift.NetworkStats {
	stats := drift.NetworkStats{
		Mode:            s.mode,
		BlocksFetched:   s.fetched.Load(),
		BlocksAnnounced: s.announced.Load(),
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready {
		return stats
	}
	if s.node != nil {
		stats.ConnectedPeers = len(s.node.Peers())
	}
	count, bytes, err := s.meta.BlockStats()
	if err != nil {
		s.logger.Warn("failed to read block stats", "error", err)
		return stats
	}
	stats.BlocksStored = count
	stats.BytesStored = bytes
	return stats
}

func (s *Store) NodeInfo() drift.NodeInfo {
	return drift.NodeInfo{
		ID:              s.NodeID(),
		Mode:            s.mode,
		ListenAddresses: s.ListenAddresses(),
		RepoPath:        s.cfg.RepoDir,
	}
}

func (s *Store) NodeID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.node == nil {
		return ""
	}
	return s.node.ID()
}

func (s *Store) ListenAddresses() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.node == nil {
		return nil
	}
	return s.node.ListenAddresses()
}

// Shutdown stops the p2p node and closes the datastore. Safe to call when
// not initialized.
func (s *Store) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return nil
	}

	var errs []error
	if s.node != nil {
		if err := s.node.Close(); err != nil {
			errs = append(errs, err)
		}
		s.node = nil
	}
	if err := s.meta.Close(); err != nil {
		errs = append(errs, err)
	}
	s.meta = nil
	s.blocks = nil
	s.mirror = nil
	s.ready = false

	s.logger.Info("content store shut down")
	return errors.Join(errs...)
}

func (s *Store) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}
