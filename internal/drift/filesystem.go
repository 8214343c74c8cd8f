package drift

import (
	"context"
	"errors"
	"fmt"

	"driftfs/internal/model"
)

// Filesystem is the path-semantics layer. It composes the MetadataStore and
// the ContentStore: every write becomes a (content store write, metadata
// upsert) pair, every read a (metadata lookup, content fetch) pair. All
// incoming paths are normalized to start with "/".
type Filesystem struct {
	meta    MetadataStore
	content ContentStore
	thumbs  Thumbnailer
	logger  Logger
	clock   Clock
}

// NewFilesystem creates a Filesystem. thumbs may be nil to disable
// thumbnail generation.
func NewFilesystem(meta MetadataStore, content ContentStore, thumbs Thumbnailer, logger Logger, clock Clock) *Filesystem {
	return &Filesystem{
		meta:    meta,
		content: content,
		thumbs:  thumbs,
		logger:  logger,
		clock:   clock,
	}
}

// WriteOptions controls a filesystem write.
type WriteOptions struct {
	// MimeType overrides extension-based inference when non-empty.
	MimeType string
	// IsPublic overrides path-derived visibility when non-nil.
	IsPublic *bool
	// Snapshot records a FileVersion alongside the write.
	Snapshot bool
	// CreatedBy and Comment annotate the snapshot when Snapshot is set.
	CreatedBy string
	Comment   string
}

// Write stores bytes at a path for a wallet. Missing ancestor directories
// are created, the mime type is inferred from the extension when not
// supplied, and a thumbnail is attempted for eligible mime types (failures
// are logged, never fatal). If the path already existed its created_at is
// preserved. Returns the resulting entry.
func (f *Filesystem) Write(ctx context.Context, path string, data []byte, wallet string, opts WriteOptions) (*model.FileEntry, error) {
	path = NormalizePath(path)
	if path == "/" {
		return nil, fmt.Errorf("write %q: %w", path, ErrIsADirectory)
	}

	existing, err := f.meta.GetFileEntry(path, wallet)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("checking existing entry: %w", err)
	}
	if existing != nil && existing.IsDir {
		return nil, fmt.Errorf("write %q: %w", path, ErrIsADirectory)
	}

	if err := f.ensureAncestors(path, wallet); err != nil {
		return nil, err
	}

	contentID, err := f.content.Store(ctx, data, DefaultStoreOptions())
	if err != nil {
		return nil, fmt.Errorf("storing content: %w", err)
	}

	mimeType := opts.MimeType
	if mimeType == "" {
		mimeType = MimeFromPath(path)
	}

	var thumb string
	if f.thumbs != nil && f.thumbs.Eligible(mimeType) {
		thumb = f.thumbs.Generate(ctx, data, mimeType)
	}

	now := f.clock.Now().UTC()
	entry := &model.FileEntry{
		Path:          path,
		WalletAddress: wallet,
		ContentID:     &contentID,
		Size:          int64(len(data)),
		IsDir:         false,
		IsPublic:      IsPublicPath(path),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if mimeType != "" {
		entry.MimeType = &mimeType
	}
	if thumb != "" {
		entry.ThumbnailDataURI = &thumb
	}
	if opts.IsPublic != nil {
		entry.IsPublic = *opts.IsPublic
	}
	if existing != nil {
		entry.CreatedAt = existing.CreatedAt
		entry.ExtractedText = nil // content changed; re-index
	}

	if err := f.meta.UpsertFileEntry(entry); err != nil {
		return nil, fmt.Errorf("upserting entry: %w", err)
	}

	if opts.Snapshot {
		if err := f.snapshotVersion(entry, opts); err != nil {
			return nil, err
		}
	}

	f.audit(wallet, "write", path, fmt.Sprintf("size=%d", len(data)))
	f.logger.Debug("file written", "path", path, "wallet", wallet, "content_id", contentID, "size", len(data))
	return entry, nil
}

// snapshotVersion appends a FileVersion for the just-written entry.
func (f *Filesystem) snapshotVersion(entry *model.FileEntry, opts WriteOptions) error {
	n, err := f.meta.NextVersionNumber(entry.Path, entry.WalletAddress)
	if err != nil {
		return fmt.Errorf("next version number: %w", err)
	}
	v := &model.FileVersion{
		FilePath:      entry.Path,
		WalletAddress: entry.WalletAddress,
		VersionNumber: n,
		ContentID:     *entry.ContentID,
		Size:          entry.Size,
		MimeType:      entry.MimeType,
		CreatedAt:     f.clock.Now().UTC(),
	}
	if opts.CreatedBy != "" {
		v.CreatedBy = &opts.CreatedBy
	}
	if opts.Comment != "" {
		v.Comment = &opts.Comment
	}
	if err := f.meta.CreateFileVersion(v); err != nil {
		return fmt.Errorf("creating file version: %w", err)
	}
	return nil
}

// Read resolves the entry at path and fetches its bytes from the content
// store. Fails with ErrNotFound, ErrIsADirectory, or ErrNoContent
// depending on what it finds.
func (f *Filesystem) Read(ctx context.Context, path, wallet string) ([]byte, error) {
	path = NormalizePath(path)
	entry, err := f.meta.GetFileEntry(path, wallet)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}
	if entry.IsDir {
		return nil, fmt.Errorf("read %q: %w", path, ErrIsADirectory)
	}
	if entry.ContentID == nil {
		return nil, fmt.Errorf("read %q: %w", path, ErrNoContent)
	}
	data, err := f.content.Get(ctx, *entry.ContentID)
	if err != nil {
		return nil, fmt.Errorf("fetching content for %q: %w", path, err)
	}
	return data, nil
}

// ListDirectory returns only the direct children of path: entries whose
// path, with the directory prefix stripped, contains no further separator.
func (f *Filesystem) ListDirectory(path, wallet string) ([]*model.FileEntry, error) {
	path = NormalizePath(path)
	if path != "/" {
		entry, err := f.meta.GetFileEntry(path, wallet)
		if err != nil {
			return nil, fmt.Errorf("list %q: %w", path, err)
		}
		if !entry.IsDir {
			return nil, fmt.Errorf("list %q: %w", path, ErrNotADirectory)
		}
	}

	prefix := path
	if prefix != "/" {
		prefix += "/"
	}
	all, err := f.meta.ListFileEntriesUnderPrefix(prefix, wallet)
	if err != nil {
		return nil, fmt.Errorf("listing under %q: %w", prefix, err)
	}

	children := make([]*model.FileEntry, 0, len(all))
	for _, e := range all {
		if _, ok := DirectChild(path, e.Path); ok {
			children = append(children, e)
		}
	}
	return children, nil
}

// CreateDirectory creates a directory entry at path, creating missing
// ancestors first. Idempotent when the path already exists as a directory;
// fails with ErrAlreadyExists when it exists as a file.
func (f *Filesystem) CreateDirectory(path, wallet string) (*model.FileEntry, error) {
	path = NormalizePath(path)
	if path == "/" {
		return nil, fmt.Errorf("create directory %q: %w", path, ErrAlreadyExists)
	}
	if err := f.ensureAncestors(path, wallet); err != nil {
		return nil, err
	}
	entry, err := f.ensureDirectory(path, wallet)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ensureAncestors walks from the root to the leaf's parent, creating each
// missing directory in order. Iterative on purpose: no recursion, and the
// "already a directory" short-circuit is a single cheap lookup per level.
func (f *Filesystem) ensureAncestors(path, wallet string) error {
	for _, ancestor := range Ancestors(path) {
		if _, err := f.ensureDirectory(ancestor, wallet); err != nil {
			return err
		}
	}
	return nil
}

// ensureDirectory returns the directory entry at path, creating it if
// absent. A file at the same path is a type conflict.
func (f *Filesystem) ensureDirectory(path, wallet string) (*model.FileEntry, error) {
	existing, err := f.meta.GetFileEntry(path, wallet)
	if err == nil {
		if !existing.IsDir {
			return nil, fmt.Errorf("create directory %q: %w", path, ErrAlreadyExists)
		}
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("checking directory %q: %w", path, err)
	}

	now := f.clock.Now().UTC()
	entry := &model.FileEntry{
		Path:          path,
		WalletAddress: wallet,
		Size:          0,
		IsDir:         true,
		IsPublic:      IsPublicPath(path),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := f.meta.UpsertFileEntry(entry); err != nil {
		return nil, fmt.Errorf("creating directory %q: %w", path, err)
	}
	return entry, nil
}

// Delete removes the entry at path. Directories must have no direct
// children; the caller owns recursive deletion semantics. For files the
// content is unpinned best-effort and the version history is discarded.
func (f *Filesystem) Delete(ctx context.Context, path, wallet string) error {
	path = NormalizePath(path)
	entry, err := f.meta.GetFileEntry(path, wallet)
	if err != nil {
		return fmt.Errorf("delete %q: %w", path, err)
	}

	if entry.IsDir {
		children, err := f.ListDirectory(path, wallet)
		if err != nil {
			return err
		}
		if len(children) > 0 {
			return fmt.Errorf("delete %q: %w", path, ErrDirectoryNotEmpty)
		}
	}

	if err := f.meta.DeleteFileEntry(path, wallet); err != nil {
		return fmt.Errorf("deleting entry %q: %w", path, err)
	}

	if !entry.IsDir {
		if err := f.meta.DeleteFileVersions(path, wallet); err != nil {
			f.logger.Warn("deleting version history failed", "path", path, "error", err)
		}
		if entry.ContentID != nil {
			if err := f.content.Unpin(ctx, *entry.ContentID); err != nil {
				f.logger.Warn("unpin failed", "content_id", *entry.ContentID, "error", err)
			}
		}
	}

	f.audit(wallet, "delete", path, "")
	f.logger.Debug("entry deleted", "path", path, "wallet", wallet)
	return nil
}

// Move renames an entry. Fails when the source is missing or the
// destination already exists. The destination's parent is created if
// needed; the metadata row is moved and the version history repointed in a
// single store transaction.
func (f *Filesystem) Move(ctx context.Context, oldPath, newPath, wallet string) error {
	oldPath = NormalizePath(oldPath)
	newPath = NormalizePath(newPath)

	if _, err := f.meta.GetFileEntry(oldPath, wallet); err != nil {
		return fmt.Errorf("move source %q: %w", oldPath, err)
	}
	if _, err := f.meta.GetFileEntry(newPath, wallet); err == nil {
		return fmt.Errorf("move destination %q: %w", newPath, ErrAlreadyExists)
	} else if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("checking move destination: %w", err)
	}

	if err := f.ensureAncestors(newPath, wallet); err != nil {
		return err
	}

	if err := f.meta.MoveFileEntry(oldPath, newPath, wallet, f.clock.Now().UTC()); err != nil {
		return fmt.Errorf("moving %q to %q: %w", oldPath, newPath, err)
	}

	f.audit(wallet, "move", oldPath, "to="+newPath)
	f.logger.Debug("entry moved", "from", oldPath, "to", newPath, "wallet", wallet)
	return nil
}

// Copy duplicates the metadata row at sourcePath under destPath. The
// destination references the same content identifier; no bytes are
// duplicated in the content store.
func (f *Filesystem) Copy(ctx context.Context, sourcePath, destPath, wallet string) (*model.FileEntry, error) {
	sourcePath = NormalizePath(sourcePath)
	destPath = NormalizePath(destPath)

	src, err := f.meta.GetFileEntry(sourcePath, wallet)
	if err != nil {
		return nil, fmt.Errorf("copy source %q: %w", sourcePath, err)
	}
	if src.IsDir {
		return nil, fmt.Errorf("copy source %q: %w", sourcePath, ErrIsADirectory)
	}
	if _, err := f.meta.GetFileEntry(destPath, wallet); err == nil {
		return nil, fmt.Errorf("copy destination %q: %w", destPath, ErrAlreadyExists)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("checking copy destination: %w", err)
	}

	if err := f.ensureAncestors(destPath, wallet); err != nil {
		return nil, err
	}

	now := f.clock.Now().UTC()
	dst := &model.FileEntry{
		Path:             destPath,
		WalletAddress:    wallet,
		ContentID:        src.ContentID,
		Size:             src.Size,
		MimeType:         src.MimeType,
		ThumbnailDataURI: src.ThumbnailDataURI,
		ExtractedText:    src.ExtractedText,
		IsDir:            false,
		IsPublic:         IsPublicPath(destPath),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := f.meta.UpsertFileEntry(dst); err != nil {
		return nil, fmt.Errorf("copying to %q: %w", destPath, err)
	}
	if src.ContentID != nil {
		if err := f.content.Pin(ctx, *src.ContentID); err != nil {
			f.logger.Warn("pin on copy failed", "content_id", *src.ContentID, "error", err)
		}
	}

	f.audit(wallet, "copy", sourcePath, "to="+destPath)
	return dst, nil
}

// RestoreVersion re-points the live entry at path to a recorded version's
// content. The restore itself is snapshotted so history stays append-only.
func (f *Filesystem) RestoreVersion(ctx context.Context, path, wallet string, n int64) (*model.FileEntry, error) {
	path = NormalizePath(path)
	entry, err := f.meta.GetFileEntry(path, wallet)
	if err != nil {
		return nil, fmt.Errorf("restore %q: %w", path, err)
	}
	if entry.IsDir {
		return nil, fmt.Errorf("restore %q: %w", path, ErrIsADirectory)
	}
	v, err := f.meta.GetFileVersion(path, wallet, n)
	if err != nil {
		return nil, fmt.Errorf("restore %q version %d: %w", path, n, err)
	}

	entry.ContentID = &v.ContentID
	entry.Size = v.Size
	entry.MimeType = v.MimeType
	entry.ExtractedText = nil
	entry.UpdatedAt = f.clock.Now().UTC()
	if err := f.meta.UpsertFileEntry(entry); err != nil {
		return nil, fmt.Errorf("restoring %q: %w", path, err)
	}
	if err := f.snapshotVersion(entry, WriteOptions{Comment: fmt.Sprintf("restored from version %d", n)}); err != nil {
		return nil, err
	}

	f.audit(wallet, "restore", path, fmt.Sprintf("version=%d", n))
	return entry, nil
}

// audit appends an audit row best-effort; failures are logged only.
func (f *Filesystem) audit(wallet, action, target, detail string) {
	entry := &model.AuditLogEntry{
		WalletAddress: wallet,
		Action:        action,
		Target:        target,
		CreatedAt:     f.clock.Now().UTC(),
	}
	if detail != "" {
		entry.Detail = &detail
	}
	if err := f.meta.AppendAuditLog(entry); err != nil {
		f.logger.Warn("audit log append failed", "action", action, "target", target, "error", err)
	}
}
