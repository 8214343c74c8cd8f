package contentstore

import (
	"fmt"
	"os"
	"path/filepath"
)

// blockDir stores raw blocks as files named by their CID, sharded into
// subdirectories by the identifier's trailing characters (the leading ones
// are a shared multibase prefix). Writes are atomic (temp file + rename)
// and idempotent. An optional cipher encrypts blocks at rest.
type blockDir struct {
	root   string
	cipher *blockCipher
}

func newBlockDir(root string, cipher *blockCipher) (*blockDir, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create block directory: %w", err)
	}
	return &blockDir{root: root, cipher: cipher}, nil
}

func (b *blockDir) pathFor(id string) string {
	shard := "__"
	if len(id) > 2 {
		shard = id[len(id)-2:]
	}
	return filepath.Join(b.root, shard, id)
}

// Has reports whether a block is present locally.
func (b *blockDir) Has(id string) (bool, error) {
	_, err := os.Stat(b.pathFor(id))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("checking block %s: %w", id, err)
}

// Put stores a block. Storing the same identifier twice is a no-op.
func (b *blockDir) Put(id string, data []byte) error {
	destPath := b.pathFor(id)
	if _, err := os.Stat(destPath); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create shard directory: %w", err)
	}

	if b.cipher != nil {
		var err error
		data, err = b.cipher.encrypt(data)
		if err != nil {
			return fmt.Errorf("encrypting block %s: %w", id, err)
		}
	}

	// Temp file in the same directory so the rename is atomic.
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write block: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// Get reads a block. Returns os.ErrNotExist (wrapped) when absent.
func (b *blockDir) Get(id string) ([]byte, error) {
	data, err := os.ReadFile(b.pathFor(id))
	if err != nil {
		return nil, fmt.Errorf("reading block %s: %w", id, err)
	}
	if b.cipher != nil {
		data, err = b.cipher.decrypt(data)
		if err != nil {
			return nil, fmt.Errorf("decrypting block %s: %w", id, err)
		}
	}
	return data, nil
}
