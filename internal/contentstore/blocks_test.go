package contentstore

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestBlockDirRoundTrip(t *testing.T) {
	dir, err := newBlockDir(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}

	const id = "bafyexampleblockid"
	payload := []byte("block payload")

	if ok, _ := dir.Has(id); ok {
		t.Fatal("Has reported a block that was never stored")
	}
	if err := dir.Put(id, payload); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if ok, _ := dir.Has(id); !ok {
		t.Error("Has = false after Put")
	}

	got, err := dir.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Get = %q, want %q", got, payload)
	}

	// A second Put of the same identifier is a no-op, not an error.
	if err := dir.Put(id, payload); err != nil {
		t.Errorf("idempotent Put: %v", err)
	}
}

func TestBlockDirSharding(t *testing.T) {
	root := t.TempDir()
	dir, err := newBlockDir(root, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := dir.Put("bafyabc", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, "bc", "bafyabc")); err != nil {
		t.Errorf("block not sharded by trailing characters: %v", err)
	}
}

func TestBlockDirEncryptedAtRest(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "block.key")
	if err := GenerateKeyFile(keyPath); err != nil {
		t.Fatalf("GenerateKeyFile: %v", err)
	}
	cipher, err := loadBlockCipher(keyPath)
	if err != nil {
		t.Fatalf("loadBlockCipher: %v", err)
	}

	root := t.TempDir()
	dir, err := newBlockDir(root, cipher)
	if err != nil {
		t.Fatal(err)
	}

	const id = "bafyencrypted"
	payload := []byte("secret bytes that must not appear on disk")
	if err := dir.Put(id, payload); err != nil {
		t.Fatal(err)
	}

	onDisk, err := os.ReadFile(dir.pathFor(id))
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(onDisk, payload) {
		t.Error("plaintext found in on-disk block")
	}

	got, err := dir.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("decrypted Get = %q, want %q", got, payload)
	}
}

func TestGenerateKeyFileRefusesOverwrite(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "block.key")
	if err := GenerateKeyFile(keyPath); err != nil {
		t.Fatal(err)
	}
	if err := GenerateKeyFile(keyPath); err == nil {
		t.Error("GenerateKeyFile overwrote an existing key")
	}
}

func TestExportKeyFile(t *testing.T) {
	base := t.TempDir()
	keyPath := filepath.Join(base, "block.key")
	exportPath := filepath.Join(base, "backup.age")
	if err := GenerateKeyFile(keyPath); err != nil {
		t.Fatal(err)
	}

	if err := ExportKeyFile(keyPath, exportPath, "correct horse"); err != nil {
		t.Fatalf("ExportKeyFile: %v", err)
	}

	original, _ := os.ReadFile(keyPath)
	exported, err := os.ReadFile(exportPath)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(exported, bytes.TrimSpace(original)) {
		t.Error("exported backup contains the unencrypted identity")
	}
}
