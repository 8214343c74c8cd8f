package contentstore

import (
	"encoding/json"
	"fmt"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

// ChunkSize is the maximum raw block payload. Matches the common unixfs
// chunking size so identical bytes produce identical block sets.
const ChunkSize = 256 * 1024

// manifest is the root node written for every stored payload. It lists the
// raw chunk identifiers in order; the manifest's own CID (dag-json codec)
// is the content identifier handed to callers.
type manifest struct {
	Kind   string   `json:"kind"`
	Size   int64    `json:"size"`
	Chunks []string `json:"chunks"`
}

const manifestKindFile = "file"

// splitChunks cuts data into ChunkSize pieces. An empty payload yields one
// empty chunk so empty files still round-trip through Get.
func splitChunks(data []byte) [][]byte {
	if len(data) == 0 {
		return [][]byte{{}}
	}
	var chunks [][]byte
	for len(data) > 0 {
		n := len(data)
		if n > ChunkSize {
			n = ChunkSize
		}
		chunks = append(chunks, data[:n])
		data = data[n:]
	}
	return chunks
}

// rawCID derives the identifier for a raw chunk: CIDv1, sha2-256.
func rawCID(data []byte) (cid.Cid, error) {
	h, err := mh.Sum(data, mh.SHA2_256, -1)
	if err != nil {
		return cid.Undef, fmt.Errorf("hashing chunk: %w", err)
	}
	return cid.NewCidV1(cid.Raw, h), nil
}

// manifestCID derives the identifier for an encoded manifest node.
func manifestCID(encoded []byte) (cid.Cid, error) {
	h, err := mh.Sum(encoded, mh.SHA2_256, -1)
	if err != nil {
		return cid.Undef, fmt.Errorf("hashing manifest: %w", err)
	}
	return cid.NewCidV1(cid.DagJSON, h), nil
}

// encodeManifest produces the canonical manifest block and its CID.
func encodeManifest(m *manifest) ([]byte, cid.Cid, error) {
	encoded, err := json.Marshal(m)
	if err != nil {
		return nil, cid.Undef, fmt.Errorf("encoding manifest: %w", err)
	}
	c, err := manifestCID(encoded)
	if err != nil {
		return nil, cid.Undef, err
	}
	return encoded, c, nil
}

// decodeManifest parses a manifest block.
func decodeManifest(data []byte) (*manifest, error) {
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	return &m, nil
}
