package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"driftfs/internal/drift"
	"driftfs/internal/model"
)

// Setting operations

func (s *SQLiteStore) GetSetting(key string) (*model.Setting, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var out model.Setting
	err := s.db.QueryRow(`SELECT key, value, updated_at FROM settings WHERE key = ?`, key).
		Scan(&out.Key, &out.Value, &out.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("setting %s: %w", key, drift.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting setting: %w", err)
	}
	return &out, nil
}

func (s *SQLiteStore) SetSetting(key, value string) error {
	if err := s.ready(); err != nil {
		return err
	}
	_, err := s.db.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteSetting(key string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if _, err := s.db.Exec(`DELETE FROM settings WHERE key = ?`, key); err != nil {
		return fmt.Errorf("deleting setting: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListSettings() ([]*model.Setting, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`SELECT key, value, updated_at FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("listing settings: %w", err)
	}
	defer rows.Close()

	var out []*model.Setting
	for rows.Next() {
		var st model.Setting
		if err := rows.Scan(&st.Key, &st.Value, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning setting: %w", err)
		}
		out = append(out, &st)
	}
	return out, rows.Err()
}

// Indexer support

func (s *SQLiteStore) ListUnindexedFiles(limit int) ([]*model.FileEntry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	return s.queryFileEntries(`
		SELECT `+fileColumns+` FROM files
		WHERE is_dir = 0
		  AND mime_type IS NOT NULL
		  AND extracted_text IS NULL
		ORDER BY updated_at ASC LIMIT ?`, limit)
}

// SetExtractedText writes extracted text directly, bypassing the full
// entry upsert so a concurrent foreground write cannot be clobbered.
// An empty string is a valid value: it marks "no extractable content"
// and keeps the file out of future scans.
func (s *SQLiteStore) SetExtractedText(path, wallet, text string) error {
	if err := s.ready(); err != nil {
		return err
	}
	res, err := s.db.Exec(`
		UPDATE files SET extracted_text = ? WHERE path = ? AND wallet_address = ?`,
		text, path, wallet)
	if err != nil {
		return fmt.Errorf("setting extracted text: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("file entry %s: %w", path, drift.ErrNotFound)
	}
	return nil
}

// AI config

func (s *SQLiteStore) UpsertAIConfig(cfg *model.AIConfig) error {
	if err := s.ready(); err != nil {
		return err
	}
	_, err := s.db.Exec(`
		INSERT INTO ai_config (wallet_address, provider, model, system_prompt, temperature, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(wallet_address) DO UPDATE SET
			provider = excluded.provider,
			model = excluded.model,
			system_prompt = excluded.system_prompt,
			temperature = excluded.temperature,
			updated_at = excluded.updated_at`,
		cfg.WalletAddress, cfg.Provider, cfg.Model, nullStr(cfg.SystemPrompt),
		cfg.Temperature, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upserting ai config: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetAIConfig(wallet string) (*model.AIConfig, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var cfg model.AIConfig
	var prompt sql.NullString
	err := s.db.QueryRow(`
		SELECT wallet_address, provider, model, system_prompt, temperature, updated_at
		FROM ai_config WHERE wallet_address = ?`, wallet).
		Scan(&cfg.WalletAddress, &cfg.Provider, &cfg.Model, &prompt, &cfg.Temperature, &cfg.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ai config for %s: %w", wallet, drift.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting ai config: %w", err)
	}
	cfg.SystemPrompt = strPtr(prompt)
	return &cfg, nil
}

// API keys

// MergeAPIKeys merges the given provider map into the stored one. Existing
// providers not named in the update are preserved; setting a provider to
// "" removes it.
func (s *SQLiteStore) MergeAPIKeys(wallet string, providers map[string]string) error {
	if err := s.ready(); err != nil {
		return err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	merged := make(map[string]string)
	var raw string
	err = tx.QueryRow(`SELECT providers FROM api_keys WHERE wallet_address = ?`, wallet).Scan(&raw)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("loading api keys: %w", err)
	}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &merged); err != nil {
			return fmt.Errorf("decoding stored api keys: %w", err)
		}
	}
	for k, v := range providers {
		if v == "" {
			delete(merged, k)
		} else {
			merged[k] = v
		}
	}

	encoded, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("encoding api keys: %w", err)
	}
	if _, err := tx.Exec(`
		INSERT INTO api_keys (wallet_address, providers, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(wallet_address) DO UPDATE SET
			providers = excluded.providers, updated_at = excluded.updated_at`,
		wallet, string(encoded), time.Now().UTC()); err != nil {
		return fmt.Errorf("storing api keys: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing api keys: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetAPIKeys(wallet string) (*model.APIKeys, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var keys model.APIKeys
	var raw string
	err := s.db.QueryRow(`
		SELECT wallet_address, providers, updated_at FROM api_keys
		WHERE wallet_address = ?`, wallet).
		Scan(&keys.WalletAddress, &raw, &keys.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("api keys for %s: %w", wallet, drift.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting api keys: %w", err)
	}
	keys.Providers = make(map[string]string)
	if err := json.Unmarshal([]byte(raw), &keys.Providers); err != nil {
		return nil, fmt.Errorf("decoding api keys: %w", err)
	}
	return &keys, nil
}

// Audit log

func (s *SQLiteStore) AppendAuditLog(entry *model.AuditLogEntry) error {
	if err := s.ready(); err != nil {
		return err
	}
	res, err := s.db.Exec(`
		INSERT INTO audit_logs (wallet_address, action, target, detail, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		entry.WalletAddress, entry.Action, entry.Target, nullStr(entry.Detail),
		entry.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("appending audit log: %w", err)
	}
	entry.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLiteStore) ListAuditLog(wallet string, limit int) ([]*model.AuditLogEntry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`
		SELECT id, wallet_address, action, target, detail, created_at
		FROM audit_logs WHERE wallet_address = ?
		ORDER BY id DESC LIMIT ?`, wallet, limit)
	if err != nil {
		return nil, fmt.Errorf("listing audit log: %w", err)
	}
	defer rows.Close()

	var out []*model.AuditLogEntry
	for rows.Next() {
		var e model.AuditLogEntry
		var detail sql.NullString
		if err := rows.Scan(&e.ID, &e.WalletAddress, &e.Action, &e.Target, &detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		e.Detail = strPtr(detail)
		out = append(out, &e)
	}
	return out, rows.Err()
}

// Recent apps

func (s *SQLiteStore) TouchRecentApp(wallet, appID string, now time.Time) error {
	if err := s.ready(); err != nil {
		return err
	}
	_, err := s.db.Exec(`
		INSERT INTO recent_apps (wallet_address, app_id, open_count, last_opened_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(wallet_address, app_id) DO UPDATE SET
			open_count = recent_apps.open_count + 1,
			last_opened_at = excluded.last_opened_at`,
		wallet, appID, now.UTC())
	if err != nil {
		return fmt.Errorf("touching recent app: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListRecentApps(wallet string, limit int) ([]*model.RecentApp, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(`
		SELECT wallet_address, app_id, open_count, last_opened_at
		FROM recent_apps WHERE wallet_address = ?
		ORDER BY last_opened_at DESC LIMIT ?`, wallet, limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent apps: %w", err)
	}
	defer rows.Close()

	var out []*model.RecentApp
	for rows.Next() {
		var a model.RecentApp
		if err := rows.Scan(&a.WalletAddress, &a.AppID, &a.OpenCount, &a.LastOpenedAt); err != nil {
			return nil, fmt.Errorf("scanning recent app: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// Raw escape hatch

func (s *SQLiteStore) RawQuery(query string, args ...any) (*sql.Rows, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.db.Query(query, args...)
}

func (s *SQLiteStore) RawExec(query string, args ...any) (sql.Result, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.db.Exec(query, args...)
}
