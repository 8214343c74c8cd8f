package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"driftfs/internal/drift"
)

// MemContentStore is an in-memory drift.ContentStore double. Identifiers
// are sha256 hex of the payload, so dedup behaves like the real store.
type MemContentStore struct {
	mu      sync.Mutex
	ready   bool
	objects map[string][]byte
	pins    map[string]bool

	// StoreErr and GetErr, when set, are returned by the corresponding
	// method to simulate failures.
	StoreErr error
	GetErr   error
}

var _ drift.ContentStore = (*MemContentStore)(nil)

// NewMemContentStore returns an already initialized store.
func NewMemContentStore() *MemContentStore {
	return &MemContentStore{
		ready:   true,
		objects: make(map[string][]byte),
		pins:    make(map[string]bool),
	}
}

func (m *MemContentStore) requireReady() error {
	if !m.ready {
		return fmt.Errorf("content store: %w", drift.ErrNotInitialized)
	}
	return nil
}

func (m *MemContentStore) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = true
	return nil
}

func (m *MemContentStore) Store(ctx context.Context, data []byte, opts drift.StoreOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireReady(); err != nil {
		return "", err
	}
	if m.StoreErr != nil {
		return "", m.StoreErr
	}
	sum := sha256.Sum256(data)
	id := hex.EncodeToString(sum[:])
	m.objects[id] = append([]byte(nil), data...)
	if opts.Pin {
		m.pins[id] = true
	}
	return id, nil
}

func (m *MemContentStore) Get(ctx context.Context, contentID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireReady(); err != nil {
		return nil, err
	}
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	data, ok := m.objects[contentID]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", contentID, drift.ErrContentUnavailable)
	}
	return append([]byte(nil), data...), nil
}

func (m *MemContentStore) Exists(ctx context.Context, contentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireReady(); err != nil {
		return false, err
	}
	_, ok := m.objects[contentID]
	return ok, nil
}

func (m *MemContentStore) Pin(ctx context.Context, contentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireReady(); err != nil {
		return err
	}
	m.pins[contentID] = true
	return nil
}

func (m *MemContentStore) Unpin(ctx context.Context, contentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireReady(); err != nil {
		return err
	}
	delete(m.pins, contentID)
	return nil
}

func (m *MemContentStore) FetchRemote(ctx context.Context, contentID string) (*drift.RemoteFetchResult, error) {
	return nil, fmt.Errorf("remote fetch: %w", drift.ErrNetworkMode)
}

func (m *MemContentStore) ConnectedPeers() []string { return nil }

func (m *MemContentStore) NetworkStats() drift.NetworkStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	var bytes int64
	for _, data := range m.objects {
		bytes += int64(len(data))
	}
	return drift.NetworkStats{
		Mode:         drift.ModePrivate,
		BlocksStored: int64(len(m.objects)),
		BytesStored:  bytes,
	}
}

func (m *MemContentStore) NodeInfo() drift.NodeInfo {
	return drift.NodeInfo{Mode: drift.ModePrivate}
}

func (m *MemContentStore) NodeID() string { return "" }
func (m *MemContentStore) ListenAddresses() []string { return nil }

func (m *MemContentStore) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = false
	return nil
}

func (m *MemContentStore) IsReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

// Pinned reports whether an identifier is currently pinned.
func (m *MemContentStore) Pinned(contentID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pins[contentID]
}
