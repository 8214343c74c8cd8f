package model

import "time"

// User is the per-wallet account record. Created or refreshed on login.
type User struct {
	WalletAddress       string     `json:"wallet_address"`
	SmartAccountAddress *string    `json:"smart_account_address,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	LastLogin           *time.Time `json:"last_login,omitempty"`
}

// Session is an issued auth token. Multiple sessions per wallet are allowed;
// expired ones are purged periodically.
type Session struct {
	Token               string    `json:"token"`
	WalletAddress       string    `json:"wallet_address"`
	SmartAccountAddress *string   `json:"smart_account_address,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	ExpiresAt           time.Time `json:"expires_at"`
}

// FileEntry is the metadata row for one path owned by one wallet.
// A directory entry has a nil ContentID and zero Size; a regular file has a
// non-nil ContentID once its bytes have been stored. Path always starts
// with "/".
type FileEntry struct {
	Path             string    `json:"path"`
	WalletAddress    string    `json:"wallet_address"`
	ContentID        *string   `json:"content_id,omitempty"`
	Size             int64     `json:"size"`
	MimeType         *string   `json:"mime_type,omitempty"`
	ThumbnailDataURI *string   `json:"thumbnail,omitempty"`
	ExtractedText    *string   `json:"-"`
	IsDir            bool      `json:"is_dir"`
	IsPublic         bool      `json:"is_public"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// FileVersion is an append-only snapshot of a file at a version number.
// Version numbers are strictly increasing per (path, wallet) starting at 1
// and are never reused, even after the live entry is deleted.
type FileVersion struct {
	FilePath      string    `json:"file_path"`
	WalletAddress string    `json:"wallet_address"`
	VersionNumber int64     `json:"version_number"`
	ContentID     string    `json:"content_id"`
	Size          int64     `json:"size"`
	MimeType      *string   `json:"mime_type,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	CreatedBy     *string   `json:"created_by,omitempty"`
	Comment       *string   `json:"comment,omitempty"`
}

// Setting is a process-wide key/value pair (not wallet-scoped).
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AIConfig holds per-wallet AI panel preferences.
type AIConfig struct {
	WalletAddress string    `json:"wallet_address"`
	Provider      string    `json:"provider"`
	Model         string    `json:"model"`
	SystemPrompt  *string   `json:"system_prompt,omitempty"`
	Temperature   float64   `json:"temperature"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// APIKeys holds per-wallet provider API keys. The provider map is
// merge-updated on write, never replaced wholesale.
type APIKeys struct {
	WalletAddress string            `json:"wallet_address"`
	Providers     map[string]string `json:"providers"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// AuditLogEntry records a storage-level action for a wallet.
type AuditLogEntry struct {
	ID            int64     `json:"id"`
	WalletAddress string    `json:"wallet_address"`
	Action        string    `json:"action"`
	Target        string    `json:"target"`
	Detail        *string   `json:"detail,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// RecentApp tracks per-wallet desktop app usage.
type RecentApp struct {
	WalletAddress string    `json:"wallet_address"`
	AppID         string    `json:"app_id"`
	OpenCount     int64     `json:"open_count"`
	LastOpenedAt  time.Time `json:"last_opened_at"`
}

// PublicStats summarises publicly visible content for the gateway.
type PublicStats struct {
	Count     int64 `json:"count"`
	TotalSize int64 `json:"total_size"`
}
