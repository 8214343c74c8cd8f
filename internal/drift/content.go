package drift

import "context"

// NetworkMode selects how the content store participates in the
// peer-to-peer network.
type NetworkMode string

const (
	// ModePrivate runs without networking; blocks are local-only.
	ModePrivate NetworkMode = "private"
	// ModePublic joins the DHT and announces stored content.
	ModePublic NetworkMode = "public"
	// ModeHybrid joins the network for peer discovery but never
	// announces local content.
	ModeHybrid NetworkMode = "hybrid"
)

// StoreOptions controls a content store write.
type StoreOptions struct {
	// Pin prevents local garbage collection of the stored object.
	Pin bool
}

// DefaultStoreOptions pins by default.
func DefaultStoreOptions() StoreOptions { return StoreOptions{Pin: true} }

// RemoteFetchResult describes content pulled from the network into the
// local store.
type RemoteFetchResult struct {
	Size       int64 `json:"size"`
	ChunkCount int   `json:"chunk_count"`
}

// NetworkStats is a snapshot of the store's network activity.
type NetworkStats struct {
	Mode            NetworkMode `json:"mode"`
	ConnectedPeers  int         `json:"connected_peers"`
	BlocksStored    int64       `json:"blocks_stored"`
	BytesStored     int64       `json:"bytes_stored"`
	BlocksFetched   int64       `json:"blocks_fetched"`
	BlocksAnnounced int64       `json:"blocks_announced"`
}

// NodeInfo identifies the local node.
type NodeInfo struct {
	ID              string      `json:"id"`
	Mode            NetworkMode `json:"mode"`
	ListenAddresses []string    `json:"listen_addresses"`
	RepoPath        string      `json:"repo_path"`
}

// ContentStore stores and retrieves byte payloads by content-derived
// identifier. Identical bytes always map to the same identifier, so
// duplicate writes collapse to one stored object. Implementations must
// return ErrNotInitialized (wrapped) before Initialize has succeeded and
// ErrContentUnavailable (wrapped) when a fetch fails.
type ContentStore interface {
	// Initialize brings up the local block store and, outside private
	// mode, the peer-to-peer transport. Idempotent. On partial failure
	// every created resource is torn down and the store stays not ready.
	Initialize(ctx context.Context) error

	// Store chunks and writes the payload, returning its content
	// identifier.
	Store(ctx context.Context, data []byte, opts StoreOptions) (string, error)

	// Get reconstructs a multi-chunk payload in order and returns the
	// concatenated bytes.
	Get(ctx context.Context, contentID string) ([]byte, error)

	Exists(ctx context.Context, contentID string) (bool, error)
	Pin(ctx context.Context, contentID string) error
	// Unpin is advisory; reclamation happens via a separate collection
	// process.
	Unpin(ctx context.Context, contentID string) error

	// FetchRemote pulls content from the network into the local store.
	// Returns ErrNetworkMode in private mode.
	FetchRemote(ctx context.Context, contentID string) (*RemoteFetchResult, error)

	ConnectedPeers() []string
	NetworkStats() NetworkStats
	NodeInfo() NodeInfo
	NodeID() string
	ListenAddresses() []string

	// Shutdown stops networking and releases local resources. Safe to
	// call when not initialized.
	Shutdown(ctx context.Context) error
	IsReady() bool
}
