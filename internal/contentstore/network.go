package contentstore

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"

	"driftfs/internal/drift"
)

// blockProtocolID is the stream protocol for fetching single blocks.
// Request: the block CID followed by a newline. Response: one status byte
// (1 found, 0 not found), then for found blocks an 8-byte big-endian
// length and the block bytes.
const blockProtocolID = protocol.ID("/driftfs/blocks/1.0.0")

// maxBlockWire bounds a single block response. Raw chunks are capped at
// ChunkSize; manifests for very large payloads can run longer, so leave
// generous headroom before calling a peer misbehaving.
const maxBlockWire = 8 << 20

const streamTimeout = 30 * time.Second

// p2pNode wraps the libp2p host and the kademlia DHT. Created only in
// public and hybrid modes. Blocks are served to peers only when serve is
// set (public mode); hybrid nodes fetch but never serve or announce.
type p2pNode struct {
	host   host.Host
	dht    *dht.IpfsDHT
	blocks *blockDir
	serve  bool
	logger drift.Logger
}

func newP2PNode(ctx context.Context, listenAddrs, bootstrapPeers []string, serve bool, blocks *blockDir, logger drift.Logger) (*p2pNode, error) {
	h, err := libp2p.New(libp2p.ListenAddrStrings(listenAddrs...))
	if err != nil {
		return nil, fmt.Errorf("creating p2p host: %w", err)
	}

	mode := dht.ModeClient
	if serve {
		mode = dht.ModeServer
	}
	d, err := dht.New(ctx, h, dht.Mode(mode))
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("creating dht: %w", err)
	}

	n := &p2pNode{host: h, dht: d, blocks: blocks, serve: serve, logger: logger}
	if serve {
		h.SetStreamHandler(blockProtocolID, n.handleBlockRequest)
	}

	for _, addr := range bootstrapPeers {
		ai, err := peer.AddrInfoFromString(addr)
		if err != nil {
			logger.Warn("skipping invalid bootstrap peer", "addr", addr, "error", err)
			continue
		}
		if err := h.Connect(ctx, *ai); err != nil {
			logger.Warn("bootstrap peer unreachable", "addr", addr, "error", err)
		}
	}
	if err := d.Bootstrap(ctx); err != nil {
		logger.Warn("dht bootstrap failed", "error", err)
	}

	return n, nil
}

func (n *p2pNode) Close() error {
	if err := n.dht.Close(); err != nil {
		n.host.Close()
		return fmt.Errorf("closing dht: %w", err)
	}
	if err := n.host.Close(); err != nil {
		return fmt.Errorf("closing host: %w", err)
	}
	return nil
}

func (n *p2pNode) ID() string {
	return n.host.ID().String()
}

func (n *p2pNode) ListenAddresses() []string {
	var addrs []string
	for _, a := range n.host.Addrs() {
		addrs = append(addrs, a.String())
	}
	return addrs
}

func (n *p2pNode) Peers() []string {
	var peers []string
	for _, p := range n.host.Network().Peers() {
		peers = append(peers, p.String())
	}
	return peers
}

// Announce advertises the identifier on the DHT so other nodes can find
// this one as a provider.
func (n *p2pNode) Announce(ctx context.Context, c cid.Cid) error {
	if err := n.dht.Provide(ctx, c, true); err != nil {
		return fmt.Errorf("announcing %s: %w", c, err)
	}
	return nil
}

func (n *p2pNode) handleBlockRequest(s network.Stream) {
	defer s.Close()
	s.SetDeadline(time.Now().Add(streamTimeout))

	id, err := bufio.NewReader(s).ReadString('\n')
	if err != nil {
		return
	}
	id = strings.TrimSpace(id)
	if _, err := cid.Decode(id); err != nil {
		return
	}

	data, err := n.blocks.Get(id)
	if err != nil {
		s.Write([]byte{0})
		return
	}

	header := make([]byte, 9)
	header[0] = 1
	binary.BigEndian.PutUint64(header[1:], uint64(len(data)))
	if _, err := s.Write(header); err != nil {
		return
	}
	s.Write(data)
}

// FetchBlock retrieves one block from the network, trying DHT providers
// first and falling back to already-connected peers.
func (n *p2pNode) FetchBlock(ctx context.Context, id string) ([]byte, error) {
	c, err := cid.Decode(id)
	if err != nil {
		return nil, fmt.Errorf("parsing block id: %w", err)
	}

	tried := make(map[peer.ID]bool)

	provCtx, cancel := context.WithTimeout(ctx, streamTimeout)
	defer cancel()
	for ai := range n.dht.FindProvidersAsync(provCtx, c, 8) {
		if ai.ID == n.host.ID() || tried[ai.ID] {
			continue
		}
		tried[ai.ID] = true
		if data, err := n.fetchFromPeer(ctx, ai.ID, id); err == nil {
			return data, nil
		}
	}

	for _, p := range n.host.Network().Peers() {
		if tried[p] {
			continue
		}
		tried[p] = true
		if data, err := n.fetchFromPeer(ctx, p, id); err == nil {
			return data, nil
		}
	}

	return nil, fmt.Errorf("block %s: %w", id, drift.ErrContentUnavailable)
}

func (n *p2pNode) fetchFromPeer(ctx context.Context, p peer.ID, id string) ([]byte, error) {
	s, err := n.host.NewStream(ctx, p, blockProtocolID)
	if err != nil {
		return nil, fmt.Errorf("opening stream to %s: %w", p, err)
	}
	defer s.Close()
	s.SetDeadline(time.Now().Add(streamTimeout))

	if _, err := s.Write([]byte(id + "\n")); err != nil {
		return nil, fmt.Errorf("sending block request: %w", err)
	}

	header := make([]byte, 9)
	if _, err := io.ReadFull(s, header[:1]); err != nil {
		return nil, fmt.Errorf("reading response status: %w", err)
	}
	if header[0] == 0 {
		return nil, fmt.Errorf("peer %s does not have block %s", p, id)
	}
	if _, err := io.ReadFull(s, header[1:]); err != nil {
		return nil, fmt.Errorf("reading response length: %w", err)
	}
	size := binary.BigEndian.Uint64(header[1:])
	if size > maxBlockWire {
		return nil, fmt.Errorf("peer %s sent oversized block (%d bytes)", p, size)
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(s, data); err != nil {
		return nil, fmt.Errorf("reading block data: %w", err)
	}

	// Verify the bytes actually hash to the requested identifier.
	c, err := cid.Decode(id)
	if err != nil {
		return nil, err
	}
	var got cid.Cid
	if c.Prefix().Codec == cid.DagJSON {
		got, err = manifestCID(data)
	} else {
		got, err = rawCID(data)
	}
	if err != nil {
		return nil, err
	}
	if !got.Equals(c) {
		return nil, fmt.Errorf("peer %s sent corrupt block for %s", p, id)
	}

	return data, nil
}
