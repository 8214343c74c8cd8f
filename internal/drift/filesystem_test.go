package drift_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"driftfs/internal/drift"
	"driftfs/internal/testutil"
)

type fsFixture struct {
	fs      *drift.Filesystem
	meta    *testStoreWrapper
	content *testutil.MemContentStore
	clock   *testutil.StubClock
	logger  *testutil.CapturingLogger
}

// testStoreWrapper gives tests direct access to the underlying store while
// keeping the fixture struct tidy.
type testStoreWrapper struct {
	drift.MetadataStore
}

func newFixture(t *testing.T) *fsFixture {
	t.Helper()
	meta := testutil.NewTestStore(t)
	content := testutil.NewMemContentStore()
	clock := testutil.FixedClock()
	logger := testutil.NewCapturingLogger()
	fs := drift.NewFilesystem(meta, content, nil, logger, clock)
	return &fsFixture{
		fs:      fs,
		meta:    &testStoreWrapper{meta},
		content: content,
		clock:   clock,
		logger:  logger,
	}
}

func TestWriteAndRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry, err := f.fs.Write(ctx, "/docs/readme.txt", []byte("hello world"), "alice", drift.WriteOptions{})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if entry.Path != "/docs/readme.txt" {
		t.Errorf("path = %q", entry.Path)
	}
	if entry.ContentID == nil {
		t.Fatal("content id not set")
	}
	if entry.MimeType == nil || *entry.MimeType != "text/plain" {
		t.Errorf("mime type = %v, want text/plain", entry.MimeType)
	}
	if entry.Size != 11 {
		t.Errorf("size = %d, want 11", entry.Size)
	}

	// The ancestor directory was created.
	dir, err := f.meta.GetFileEntry("/docs", "alice")
	if err != nil {
		t.Fatalf("ancestor not created: %v", err)
	}
	if !dir.IsDir || dir.ContentID != nil || dir.Size != 0 {
		t.Errorf("ancestor is not a proper directory entry: %+v", dir)
	}

	data, err := f.fs.Read(ctx, "docs/readme.txt", "alice")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "hello world" {
		t.Errorf("read %q, want %q", data, "hello world")
	}
}

func TestWriteDeduplicatesContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.fs.Write(ctx, "/a.txt", []byte("same bytes"), "alice", drift.WriteOptions{})
	if err != nil {
		t.Fatal(err)
	}
	b, err := f.fs.Write(ctx, "/b.txt", []byte("same bytes"), "alice", drift.WriteOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if *a.ContentID != *b.ContentID {
		t.Errorf("identical bytes produced different content ids: %s vs %s", *a.ContentID, *b.ContentID)
	}
	if got := f.content.NetworkStats().BlocksStored; got != 1 {
		t.Errorf("stored objects = %d, want 1", got)
	}
}

func TestWritePreservesCreatedAt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.fs.Write(ctx, "/note.txt", []byte("v1"), "alice", drift.WriteOptions{})
	if err != nil {
		t.Fatal(err)
	}

	f.clock.Advance(time.Hour)
	second, err := f.fs.Write(ctx, "/note.txt", []byte("v2"), "alice", drift.WriteOptions{})
	if err != nil {
		t.Fatal(err)
	}

	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("created_at changed on overwrite: %v -> %v", first.CreatedAt, second.CreatedAt)
	}
	if !second.UpdatedAt.After(first.UpdatedAt) {
		t.Errorf("updated_at did not advance: %v -> %v", first.UpdatedAt, second.UpdatedAt)
	}
}

func TestWriteOntoDirectoryFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.fs.CreateDirectory("/docs", "alice"); err != nil {
		t.Fatal(err)
	}
	_, err := f.fs.Write(ctx, "/docs", []byte("x"), "alice", drift.WriteOptions{})
	if !errors.Is(err, drift.ErrIsADirectory) {
		t.Errorf("err = %v, want ErrIsADirectory", err)
	}

	if _, err := f.fs.Write(ctx, "/", []byte("x"), "alice", drift.WriteOptions{}); !errors.Is(err, drift.ErrIsADirectory) {
		t.Errorf("writing to root: err = %v, want ErrIsADirectory", err)
	}
}

func TestCreateDirectory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.fs.CreateDirectory("/a/b/c", "alice"); err != nil {
		t.Fatalf("CreateDirectory: %v", err)
	}
	// Idempotent.
	if _, err := f.fs.CreateDirectory("/a/b/c", "alice"); err != nil {
		t.Fatalf("second CreateDirectory: %v", err)
	}

	// A file at the path is a conflict.
	if _, err := f.fs.Write(ctx, "/file.txt", []byte("x"), "alice", drift.WriteOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.fs.CreateDirectory("/file.txt", "alice"); !errors.Is(err, drift.ErrAlreadyExists) {
		t.Errorf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestListDirectoryDirectChildrenOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, p := range []string{"/dir/a.txt", "/dir/sub/deep.txt", "/other/b.txt"} {
		if _, err := f.fs.Write(ctx, p, []byte("x"), "alice", drift.WriteOptions{}); err != nil {
			t.Fatal(err)
		}
	}

	children, err := f.fs.ListDirectory("/dir", "alice")
	if err != nil {
		t.Fatalf("ListDirectory: %v", err)
	}
	got := make(map[string]bool)
	for _, c := range children {
		got[c.Path] = true
	}
	if len(children) != 2 || !got["/dir/a.txt"] || !got["/dir/sub"] {
		t.Errorf("children = %v, want /dir/a.txt and /dir/sub", got)
	}

	// Listing a file fails.
	if _, err := f.fs.ListDirectory("/dir/a.txt", "alice"); !errors.Is(err, drift.ErrNotADirectory) {
		t.Errorf("err = %v, want ErrNotADirectory", err)
	}
	// Listing a missing path fails.
	if _, err := f.fs.ListDirectory("/nope", "alice"); !errors.Is(err, drift.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry, err := f.fs.Write(ctx, "/dir/file.txt", []byte("x"), "alice", drift.WriteOptions{})
	if err != nil {
		t.Fatal(err)
	}

	// Non-empty directory refuses deletion.
	if err := f.fs.Delete(ctx, "/dir", "alice"); !errors.Is(err, drift.ErrDirectoryNotEmpty) {
		t.Errorf("err = %v, want ErrDirectoryNotEmpty", err)
	}

	if err := f.fs.Delete(ctx, "/dir/file.txt", "alice"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := f.meta.GetFileEntry("/dir/file.txt", "alice"); !errors.Is(err, drift.ErrNotFound) {
		t.Errorf("entry still present after delete: %v", err)
	}
	if f.content.Pinned(*entry.ContentID) {
		t.Error("content still pinned after delete")
	}

	// Now the directory is empty and deletable.
	if err := f.fs.Delete(ctx, "/dir", "alice"); err != nil {
		t.Fatalf("deleting empty directory: %v", err)
	}
}

func TestMove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.fs.Write(ctx, "/old.txt", []byte("payload"), "alice", drift.WriteOptions{Snapshot: true}); err != nil {
		t.Fatal(err)
	}

	if err := f.fs.Move(ctx, "/old.txt", "/archive/new.txt", "alice"); err != nil {
		t.Fatalf("Move: %v", err)
	}

	if _, err := f.meta.GetFileEntry("/old.txt", "alice"); !errors.Is(err, drift.ErrNotFound) {
		t.Errorf("source still exists: %v", err)
	}
	moved, err := f.meta.GetFileEntry("/archive/new.txt", "alice")
	if err != nil {
		t.Fatalf("destination missing: %v", err)
	}
	if moved.IsDir {
		t.Error("moved entry became a directory")
	}

	// Version history followed the move.
	versions, err := f.meta.ListFileVersions("/archive/new.txt", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 1 {
		t.Errorf("versions at new path = %d, want 1", len(versions))
	}

	// Destination conflicts are rejected.
	if _, err := f.fs.Write(ctx, "/other.txt", []byte("y"), "alice", drift.WriteOptions{}); err != nil {
		t.Fatal(err)
	}
	if err := f.fs.Move(ctx, "/other.txt", "/archive/new.txt", "alice"); !errors.Is(err, drift.ErrAlreadyExists) {
		t.Errorf("err = %v, want ErrAlreadyExists", err)
	}
	// Missing sources are rejected.
	if err := f.fs.Move(ctx, "/ghost.txt", "/elsewhere.txt", "alice"); !errors.Is(err, drift.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCopySharesContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	src, err := f.fs.Write(ctx, "/src.txt", []byte("shared"), "alice", drift.WriteOptions{})
	if err != nil {
		t.Fatal(err)
	}
	dst, err := f.fs.Copy(ctx, "/src.txt", "/copies/dst.txt", "alice")
	if err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if *dst.ContentID != *src.ContentID {
		t.Errorf("copy has different content id")
	}
	if got := f.content.NetworkStats().BlocksStored; got != 1 {
		t.Errorf("stored objects = %d, want 1 (no byte duplication)", got)
	}
}

func TestPublicVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pub, err := f.fs.Write(ctx, "/alice/Public/readme.txt", []byte("hello"), "alice", drift.WriteOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !pub.IsPublic {
		t.Error("entry under Public segment is not public")
	}
	if ok, err := f.meta.IsContentIDPublic(*pub.ContentID); err != nil || !ok {
		t.Errorf("IsContentIDPublic = %v, %v; want true", ok, err)
	}

	priv, err := f.fs.Write(ctx, "/alice/Private/readme.txt", []byte("hello"), "alice", drift.WriteOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if priv.IsPublic {
		t.Error("entry under Private path marked public")
	}

	entries, err := f.meta.ListPublicFileEntries("alice", "")
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Path == "/alice/Private/readme.txt" {
			t.Error("private path leaked into public listing")
		}
	}
}

func TestVersionSnapshotAndRestore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v1, err := f.fs.Write(ctx, "/doc.txt", []byte("first"), "alice", drift.WriteOptions{Snapshot: true})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.fs.Write(ctx, "/doc.txt", []byte("second"), "alice", drift.WriteOptions{Snapshot: true}); err != nil {
		t.Fatal(err)
	}

	restored, err := f.fs.RestoreVersion(ctx, "/doc.txt", "alice", 1)
	if err != nil {
		t.Fatalf("RestoreVersion: %v", err)
	}
	if *restored.ContentID != *v1.ContentID {
		t.Error("restore did not repoint to version 1 content")
	}
	data, err := f.fs.Read(ctx, "/doc.txt", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "first" {
		t.Errorf("read after restore = %q, want %q", data, "first")
	}

	// The restore itself was snapshotted.
	versions, err := f.meta.ListFileVersions("/doc.txt", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 3 {
		t.Errorf("versions = %d, want 3", len(versions))
	}
}

func TestVersionNumbersNeverReused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.fs.Write(ctx, "/doc.txt", []byte("a"), "alice", drift.WriteOptions{Snapshot: true}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.fs.Write(ctx, "/doc.txt", []byte("b"), "alice", drift.WriteOptions{Snapshot: true}); err != nil {
		t.Fatal(err)
	}

	if err := f.fs.Delete(ctx, "/doc.txt", "alice"); err != nil {
		t.Fatal(err)
	}

	if _, err := f.fs.Write(ctx, "/doc.txt", []byte("c"), "alice", drift.WriteOptions{Snapshot: true}); err != nil {
		t.Fatal(err)
	}
	versions, err := f.meta.ListFileVersions("/doc.txt", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 1 {
		t.Fatalf("versions = %d, want 1", len(versions))
	}
	if versions[0].VersionNumber != 3 {
		t.Errorf("version number after delete = %d, want 3 (numbers are never reused)", versions[0].VersionNumber)
	}
}

func TestWalletIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.fs.Write(ctx, "/secret.txt", []byte("alice only"), "alice", drift.WriteOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.fs.Read(ctx, "/secret.txt", "bob"); !errors.Is(err, drift.ErrNotFound) {
		t.Errorf("bob reading alice's file: err = %v, want ErrNotFound", err)
	}
}
