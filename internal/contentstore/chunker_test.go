package contentstore

import (
	"bytes"
	"testing"

	"github.com/ipfs/go-cid"
)

func TestSplitChunks(t *testing.T) {
	tests := []struct {
		name  string
		size  int
		want  int
		tails int
	}{
		{"empty", 0, 1, 0},
		{"one byte", 1, 1, 1},
		{"exactly one chunk", ChunkSize, 1, ChunkSize},
		{"one chunk plus one byte", ChunkSize + 1, 2, 1},
		{"three full chunks", 3 * ChunkSize, 3, ChunkSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := bytes.Repeat([]byte{0xAB}, tt.size)
			chunks := splitChunks(data)
			if len(chunks) != tt.want {
				t.Fatalf("chunk count = %d, want %d", len(chunks), tt.want)
			}
			if got := len(chunks[len(chunks)-1]); got != tt.tails {
				t.Errorf("last chunk size = %d, want %d", got, tt.tails)
			}
			var total int
			for _, c := range chunks {
				total += len(c)
			}
			if total != tt.size {
				t.Errorf("chunks sum to %d bytes, want %d", total, tt.size)
			}
		})
	}
}

func TestRawCIDDeterministic(t *testing.T) {
	a, err := rawCID([]byte("hello"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := rawCID([]byte("hello"))
	if err != nil {
		t.Fatal(err)
	}
	if !a.Equals(b) {
		t.Error("same bytes produced different identifiers")
	}

	c, err := rawCID([]byte("other"))
	if err != nil {
		t.Fatal(err)
	}
	if a.Equals(c) {
		t.Error("different bytes produced the same identifier")
	}
	if a.Prefix().Codec != cid.Raw {
		t.Errorf("chunk codec = %d, want raw", a.Prefix().Codec)
	}
}

func TestManifestRoundTrip(t *testing.T) {
	m := &manifest{
		Kind:   manifestKindFile,
		Size:   1234,
		Chunks: []string{"chunk-a", "chunk-b"},
	}
	encoded, c, err := encodeManifest(m)
	if err != nil {
		t.Fatal(err)
	}
	if c.Prefix().Codec != cid.DagJSON {
		t.Errorf("manifest codec = %d, want dag-json", c.Prefix().Codec)
	}

	got, err := decodeManifest(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind != m.Kind || got.Size != m.Size || len(got.Chunks) != 2 {
		t.Errorf("decoded manifest = %+v, want %+v", got, m)
	}

	// A manifest and a raw chunk of identical bytes get distinct
	// identifiers through the codec.
	raw, err := rawCID(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if raw.Equals(c) {
		t.Error("raw and manifest identifiers collide for identical bytes")
	}
}
