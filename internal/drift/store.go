package drift

import (
	"database/sql"
	"time"

	"driftfs/internal/model"
)

// MetadataStore provides durable, queryable state for users, sessions, file
// entries, versions, settings, and the auxiliary per-wallet records. Every
// method returns ErrNotInitialized (wrapped) when called before the store
// has been opened. Lookups return ErrNotFound when no row matches.
type MetadataStore interface {
	// User operations

	// UpsertUser creates the user on first login and refreshes the smart
	// account address on subsequent ones.
	UpsertUser(wallet string, smartAccount *string) (*model.User, error)
	GetUser(wallet string) (*model.User, error)
	TouchLastLogin(wallet string) error

	// Session operations

	CreateSession(session *model.Session) error
	GetSession(token string) (*model.Session, error)
	GetLatestActiveSession(wallet string) (*model.Session, error)
	ListActiveSessions() ([]*model.Session, error)
	DeleteSession(token string) error
	// PurgeExpiredSessions deletes all expired sessions and returns how
	// many were removed.
	PurgeExpiredSessions() (int64, error)
	ExtendSession(token string, newExpiry time.Time) error

	// FileEntry operations

	// UpsertFileEntry inserts or updates the row keyed by (path, wallet).
	// On conflict it overwrites content/size/mime/thumbnail/flags and
	// updated_at, but never created_at.
	UpsertFileEntry(entry *model.FileEntry) error
	GetFileEntry(path, wallet string) (*model.FileEntry, error)
	// ListFileEntriesUnderPrefix returns every entry whose path starts
	// with the prefix, directories first, then lexicographic by path.
	ListFileEntriesUnderPrefix(pathPrefix, wallet string) ([]*model.FileEntry, error)
	DeleteFileEntry(path, wallet string) error
	DeleteAllFileEntriesForWallet(wallet string) (int64, error)

	// Public gateway lookups

	// GetFileEntryByContentID returns the first entry referencing the
	// content identifier, regardless of wallet.
	GetFileEntryByContentID(contentID string) (*model.FileEntry, error)
	ListPublicFileEntries(wallet, basePath string) ([]*model.FileEntry, error)
	PublicStats() (*model.PublicStats, error)
	IsContentIDPublic(contentID string) (bool, error)

	// Search over extracted text and paths for one wallet.
	SearchFiles(wallet, query string, limit int) ([]*model.FileEntry, error)

	// Setting operations

	GetSetting(key string) (*model.Setting, error)
	SetSetting(key, value string) error
	DeleteSetting(key string) error
	ListSettings() ([]*model.Setting, error)

	// FileVersion operations

	CreateFileVersion(version *model.FileVersion) error
	// ListFileVersions returns versions newest first.
	ListFileVersions(path, wallet string) ([]*model.FileVersion, error)
	GetFileVersion(path, wallet string, n int64) (*model.FileVersion, error)
	// NextVersionNumber returns max(version_number)+1, starting at 1.
	// Numbers are never reused, even after DeleteFileVersions.
	NextVersionNumber(path, wallet string) (int64, error)
	DeleteFileVersions(path, wallet string) error
	// RepointFileVersions moves the version history of oldPath to newPath
	// (rows are repointed, not duplicated).
	RepointFileVersions(oldPath, newPath, wallet string) error
	CountVersions(path, wallet string) (int64, error)

	// MoveFileEntry atomically deletes the row at oldPath and recreates it
	// at newPath, repointing version history in the same transaction.
	MoveFileEntry(oldPath, newPath, wallet string, now time.Time) error

	// Indexer support

	// ListUnindexedFiles returns up to limit non-directory entries with a
	// known mime type whose extracted text is still unset. An empty string
	// counts as indexed ("no extractable content"); only NULL is pending.
	ListUnindexedFiles(limit int) ([]*model.FileEntry, error)
	SetExtractedText(path, wallet, text string) error

	// Auxiliary per-wallet records

	UpsertAIConfig(cfg *model.AIConfig) error
	GetAIConfig(wallet string) (*model.AIConfig, error)
	// MergeAPIKeys merges the given provider map into the stored one;
	// existing providers not named in the update are preserved.
	MergeAPIKeys(wallet string, providers map[string]string) error
	GetAPIKeys(wallet string) (*model.APIKeys, error)
	AppendAuditLog(entry *model.AuditLogEntry) error
	ListAuditLog(wallet string, limit int) ([]*model.AuditLogEntry, error)
	TouchRecentApp(wallet, appID string, now time.Time) error
	ListRecentApps(wallet string, limit int) ([]*model.RecentApp, error)

	// Raw escape hatch for callers needing ad hoc reads/writes.
	RawQuery(query string, args ...any) (*sql.Rows, error)
	RawExec(query string, args ...any) (sql.Result, error)

	// Close closes the underlying database connection.
	Close() error
}
