package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"driftfs/internal/drift"
	"driftfs/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements drift.MetadataStore using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens a SQLite metadata store.
// path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite connection with appropriate
// PRAGMAs. Exported for tools and tests that need a properly configured
// connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Foreign keys are OFF by default in SQLite for backward compatibility.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// ready guards every operation against use before the store is opened.
func (s *SQLiteStore) ready() error {
	if s == nil || s.db == nil {
		return fmt.Errorf("metadata store: %w", drift.ErrNotInitialized)
	}
	return nil
}

// escapeLike escapes LIKE wildcards in a literal prefix so user paths
// containing % or _ match themselves only. Used with ESCAPE '\'.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

func nullStr(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func strPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	v := n.Time
	return &v
}

// User operations

func (s *SQLiteStore) UpsertUser(wallet string, smartAccount *string) (*model.User, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	_, err := s.db.Exec(`
		INSERT INTO users (wallet_address, smart_account_address, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(wallet_address) DO UPDATE SET
			smart_account_address = COALESCE(excluded.smart_account_address, users.smart_account_address)`,
		wallet, nullStr(smartAccount), time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("upserting user: %w", err)
	}
	return s.GetUser(wallet)
}

func (s *SQLiteStore) GetUser(wallet string) (*model.User, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var u model.User
	var smart sql.NullString
	var lastLogin sql.NullTime
	err := s.db.QueryRow(`
		SELECT wallet_address, smart_account_address, created_at, last_login
		FROM users WHERE wallet_address = ?`, wallet).
		Scan(&u.WalletAddress, &smart, &u.CreatedAt, &lastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", wallet, drift.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	u.SmartAccountAddress = strPtr(smart)
	u.LastLogin = timePtr(lastLogin)
	return &u, nil
}

func (s *SQLiteStore) TouchLastLogin(wallet string) error {
	if err := s.ready(); err != nil {
		return err
	}
	res, err := s.db.Exec(`UPDATE users SET last_login = ? WHERE wallet_address = ?`,
		time.Now().UTC(), wallet)
	if err != nil {
		return fmt.Errorf("touching last login: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s: %w", wallet, drift.ErrNotFound)
	}
	return nil
}

// Session operations

func (s *SQLiteStore) CreateSession(session *model.Session) error {
	if err := s.ready(); err != nil {
		return err
	}
	_, err := s.db.Exec(`
		INSERT INTO sessions (token, wallet_address, smart_account_address, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)`,
		session.Token, session.WalletAddress, nullStr(session.SmartAccountAddress),
		session.CreatedAt.UTC(), session.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	return nil
}

func scanSessionRow(row *sql.Row) (*model.Session, error) {
	var sess model.Session
	var smart sql.NullString
	err := row.Scan(&sess.Token, &sess.WalletAddress, &smart, &sess.CreatedAt, &sess.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session: %w", drift.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning session: %w", err)
	}
	sess.SmartAccountAddress = strPtr(smart)
	return &sess, nil
}

func (s *SQLiteStore) GetSession(token string) (*model.Session, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return scanSessionRow(s.db.QueryRow(`
		SELECT token, wallet_address, smart_account_address, created_at, expires_at
		FROM sessions WHERE token = ?`, token))
}

func (s *SQLiteStore) GetLatestActiveSession(wallet string) (*model.Session, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return scanSessionRow(s.db.QueryRow(`
		SELECT token, wallet_address, smart_account_address, created_at, expires_at
		FROM sessions
		WHERE wallet_address = ? AND expires_at > ?
		ORDER BY expires_at DESC LIMIT 1`, wallet, time.Now().UTC()))
}

func (s *SQLiteStore) ListActiveSessions() ([]*model.Session, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`
		SELECT token, wallet_address, smart_account_address, created_at, expires_at
		FROM sessions WHERE expires_at > ? ORDER BY created_at DESC`, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []*model.Session
	for rows.Next() {
		var sess model.Session
		var smart sql.NullString
		if err := rows.Scan(&sess.Token, &sess.WalletAddress, &smart, &sess.CreatedAt, &sess.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sess.SmartAccountAddress = strPtr(smart)
		out = append(out, &sess)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteSession(token string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if _, err := s.db.Exec(`DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) PurgeExpiredSessions() (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	res, err := s.db.Exec(`DELETE FROM sessions WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("purging sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting purged sessions: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) ExtendSession(token string, newExpiry time.Time) error {
	if err := s.ready(); err != nil {
		return err
	}
	res, err := s.db.Exec(`UPDATE sessions SET expires_at = ? WHERE token = ?`, newExpiry.UTC(), token)
	if err != nil {
		return fmt.Errorf("extending session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session: %w", drift.ErrNotFound)
	}
	return nil
}

// FileEntry operations

const fileColumns = `path, wallet_address, content_id, size, mime_type,
	thumbnail_data_uri, extracted_text, is_dir, is_public, created_at, updated_at`

func scanFileEntry(scan func(dest ...any) error) (*model.FileEntry, error) {
	var e model.FileEntry
	var contentID, mimeType, thumb, text sql.NullString
	err := scan(&e.Path, &e.WalletAddress, &contentID, &e.Size, &mimeType,
		&thumb, &text, &e.IsDir, &e.IsPublic, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.ContentID = strPtr(contentID)
	e.MimeType = strPtr(mimeType)
	e.ThumbnailDataURI = strPtr(thumb)
	e.ExtractedText = strPtr(text)
	return &e, nil
}

func (s *SQLiteStore) UpsertFileEntry(entry *model.FileEntry) error {
	if err := s.ready(); err != nil {
		return err
	}
	_, err := s.db.Exec(`
		INSERT INTO files (`+fileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path, wallet_address) DO UPDATE SET
			content_id = excluded.content_id,
			size = excluded.size,
			mime_type = excluded.mime_type,
			thumbnail_data_uri = excluded.thumbnail_data_uri,
			extracted_text = excluded.extracted_text,
			is_dir = excluded.is_dir,
			is_public = excluded.is_public,
			updated_at = excluded.updated_at`,
		entry.Path, entry.WalletAddress, nullStr(entry.ContentID), entry.Size,
		nullStr(entry.MimeType), nullStr(entry.ThumbnailDataURI), nullStr(entry.ExtractedText),
		entry.IsDir, entry.IsPublic, entry.CreatedAt.UTC(), entry.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upserting file entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetFileEntry(path, wallet string) (*model.FileEntry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	entry, err := scanFileEntry(s.db.QueryRow(`
		SELECT `+fileColumns+` FROM files WHERE path = ? AND wallet_address = ?`,
		path, wallet).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("file entry %s: %w", path, drift.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting file entry: %w", err)
	}
	return entry, nil
}

func (s *SQLiteStore) queryFileEntries(query string, args ...any) ([]*model.FileEntry, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying file entries: %w", err)
	}
	defer rows.Close()

	var out []*model.FileEntry
	for rows.Next() {
		entry, err := scanFileEntry(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning file entry: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListFileEntriesUnderPrefix(pathPrefix, wallet string) ([]*model.FileEntry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.queryFileEntries(`
		SELECT `+fileColumns+` FROM files
		WHERE wallet_address = ? AND path LIKE ? ESCAPE '\'
		ORDER BY is_dir DESC, path ASC`,
		wallet, escapeLike(pathPrefix)+"%")
}

func (s *SQLiteStore) DeleteFileEntry(path, wallet string) error {
	if err := s.ready(); err != nil {
		return err
	}
	res, err := s.db.Exec(`DELETE FROM files WHERE path = ? AND wallet_address = ?`, path, wallet)
	if err != nil {
		return fmt.Errorf("deleting file entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("file entry %s: %w", path, drift.ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) DeleteAllFileEntriesForWallet(wallet string) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	res, err := s.db.Exec(`DELETE FROM files WHERE wallet_address = ?`, wallet)
	if err != nil {
		return 0, fmt.Errorf("deleting wallet entries: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// MoveFileEntry renames the row at oldPath to newPath and repoints its
// version history inside one transaction, preserving every field except
// path and updated_at.
func (s *SQLiteStore) MoveFileEntry(oldPath, newPath, wallet string, now time.Time) error {
	if err := s.ready(); err != nil {
		return err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE files SET path = ?, updated_at = ?
		WHERE path = ? AND wallet_address = ?`,
		newPath, now.UTC(), oldPath, wallet)
	if err != nil {
		return fmt.Errorf("moving file entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("file entry %s: %w", oldPath, drift.ErrNotFound)
	}

	if _, err := tx.Exec(`
		UPDATE file_versions SET file_path = ?
		WHERE file_path = ? AND wallet_address = ?`,
		newPath, oldPath, wallet); err != nil {
		return fmt.Errorf("repointing versions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing move: %w", err)
	}
	return nil
}

// Public gateway lookups

func (s *SQLiteStore) GetFileEntryByContentID(contentID string) (*model.FileEntry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	entry, err := scanFileEntry(s.db.QueryRow(`
		SELECT `+fileColumns+` FROM files WHERE content_id = ?
		ORDER BY created_at ASC LIMIT 1`, contentID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("content %s: %w", contentID, drift.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting entry by content id: %w", err)
	}
	return entry, nil
}

func (s *SQLiteStore) ListPublicFileEntries(wallet, basePath string) ([]*model.FileEntry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if basePath == "" {
		return s.queryFileEntries(`
			SELECT `+fileColumns+` FROM files
			WHERE wallet_address = ? AND is_public = 1 AND is_dir = 0
			ORDER BY path ASC`, wallet)
	}
	prefix := strings.TrimSuffix(basePath, "/") + "/"
	return s.queryFileEntries(`
		SELECT `+fileColumns+` FROM files
		WHERE wallet_address = ? AND is_public = 1 AND is_dir = 0 AND path LIKE ? ESCAPE '\'
		ORDER BY path ASC`, wallet, escapeLike(prefix)+"%")
}

func (s *SQLiteStore) PublicStats() (*model.PublicStats, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var stats model.PublicStats
	err := s.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(size), 0) FROM files
		WHERE is_public = 1 AND is_dir = 0`).
		Scan(&stats.Count, &stats.TotalSize)
	if err != nil {
		return nil, fmt.Errorf("computing public stats: %w", err)
	}
	return &stats, nil
}

func (s *SQLiteStore) IsContentIDPublic(contentID string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	var n int64
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM files WHERE content_id = ? AND is_public = 1`, contentID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking content visibility: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) SearchFiles(wallet, query string, limit int) ([]*model.FileEntry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	pattern := "%" + escapeLike(query) + "%"
	return s.queryFileEntries(`
		SELECT `+fileColumns+` FROM files
		WHERE wallet_address = ? AND is_dir = 0
		  AND (path LIKE ? ESCAPE '\' OR extracted_text LIKE ? ESCAPE '\')
		ORDER BY updated_at DESC LIMIT ?`,
		wallet, pattern, pattern, limit)
}

// FileVersion operations

const versionColumns = `file_path, wallet_address, version_number, content_id,
	size, mime_type, created_at, created_by, comment`

func (s *SQLiteStore) CreateFileVersion(version *model.FileVersion) error {
	if err := s.ready(); err != nil {
		return err
	}
	_, err := s.db.Exec(`
		INSERT INTO file_versions (`+versionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		version.FilePath, version.WalletAddress, version.VersionNumber,
		version.ContentID, version.Size, nullStr(version.MimeType),
		version.CreatedAt.UTC(), nullStr(version.CreatedBy), nullStr(version.Comment))
	if err != nil {
		return fmt.Errorf("creating file version: %w", err)
	}
	return nil
}

func scanFileVersion(scan func(dest ...any) error) (*model.FileVersion, error) {
	var v model.FileVersion
	var mimeType, createdBy, comment sql.NullString
	err := scan(&v.FilePath, &v.WalletAddress, &v.VersionNumber, &v.ContentID,
		&v.Size, &mimeType, &v.CreatedAt, &createdBy, &comment)
	if err != nil {
		return nil, err
	}
	v.MimeType = strPtr(mimeType)
	v.CreatedBy = strPtr(createdBy)
	v.Comment = strPtr(comment)
	return &v, nil
}

func (s *SQLiteStore) ListFileVersions(path, wallet string) ([]*model.FileVersion, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`
		SELECT `+versionColumns+` FROM file_versions
		WHERE file_path = ? AND wallet_address = ?
		ORDER BY version_number DESC`, path, wallet)
	if err != nil {
		return nil, fmt.Errorf("listing versions: %w", err)
	}
	defer rows.Close()

	var out []*model.FileVersion
	for rows.Next() {
		v, err := scanFileVersion(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning version: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetFileVersion(path, wallet string, n int64) (*model.FileVersion, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	v, err := scanFileVersion(s.db.QueryRow(`
		SELECT `+versionColumns+` FROM file_versions
		WHERE file_path = ? AND wallet_address = ? AND version_number = ?`,
		path, wallet, n).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("version %d of %s: %w", n, path, drift.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting version: %w", err)
	}
	return v, nil
}

// NextVersionNumber consults both live history and the per-path high-water
// counter, which outlives deleted history so numbers are never reused.
func (s *SQLiteStore) NextVersionNumber(path, wallet string) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	var maxSeen sql.NullInt64
	err := s.db.QueryRow(`
		SELECT MAX(n) FROM (
			SELECT MAX(version_number) AS n FROM file_versions
				WHERE file_path = ? AND wallet_address = ?
			UNION ALL
			SELECT last_version AS n FROM version_counters
				WHERE file_path = ? AND wallet_address = ?
		)`, path, wallet, path, wallet).Scan(&maxSeen)
	if err != nil {
		return 0, fmt.Errorf("computing next version number: %w", err)
	}
	if !maxSeen.Valid {
		return 1, nil
	}
	return maxSeen.Int64 + 1, nil
}

func (s *SQLiteStore) DeleteFileVersions(path, wallet string) error {
	if err := s.ready(); err != nil {
		return err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	// Record the high-water mark before discarding history so version
	// numbers stay monotonic across delete/recreate cycles.
	if _, err := tx.Exec(`
		INSERT INTO version_counters (file_path, wallet_address, last_version)
		SELECT file_path, wallet_address, MAX(version_number)
			FROM file_versions WHERE file_path = ? AND wallet_address = ?
			GROUP BY file_path, wallet_address
		ON CONFLICT(file_path, wallet_address) DO UPDATE SET
			last_version = MAX(last_version, excluded.last_version)`,
		path, wallet); err != nil {
		return fmt.Errorf("recording version high-water mark: %w", err)
	}

	if _, err := tx.Exec(`
		DELETE FROM file_versions WHERE file_path = ? AND wallet_address = ?`,
		path, wallet); err != nil {
		return fmt.Errorf("deleting versions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing version delete: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RepointFileVersions(oldPath, newPath, wallet string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if _, err := s.db.Exec(`
		UPDATE file_versions SET file_path = ?
		WHERE file_path = ? AND wallet_address = ?`,
		newPath, oldPath, wallet); err != nil {
		return fmt.Errorf("repointing versions: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CountVersions(path, wallet string) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	var n int64
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM file_versions
		WHERE file_path = ? AND wallet_address = ?`, path, wallet).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting versions: %w", err)
	}
	return n, nil
}

// Path returns the database file path (or ":memory:").
func (s *SQLiteStore) Path() string { return s.path }

// DB exposes the raw connection for the migrator and tests.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteStore implements drift.MetadataStore.
var _ drift.MetadataStore = (*SQLiteStore)(nil)
