package drift

import (
	"context"
	"fmt"
	"time"

	"driftfs/internal/model"
)

// DefaultSessionTTL is how long a newly issued session lives.
const DefaultSessionTTL = 24 * time.Hour

// SessionManager maintains the session table: issuing tokens, validating
// and extending them, and purging expired rows on an interval. Anything
// beyond the bare table (signature verification, wallet auth flows) belongs
// to outer layers.
type SessionManager struct {
	meta   MetadataStore
	logger Logger
	clock  Clock
	ids    IDGenerator
	ttl    time.Duration
}

func NewSessionManager(meta MetadataStore, logger Logger, clock Clock, ids IDGenerator) *SessionManager {
	return &SessionManager{
		meta:   meta,
		logger: logger,
		clock:  clock,
		ids:    ids,
		ttl:    DefaultSessionTTL,
	}
}

// Issue records the login and creates a fresh session for the wallet.
func (sm *SessionManager) Issue(wallet string, smartAccount *string) (*model.Session, error) {
	if _, err := sm.meta.UpsertUser(wallet, smartAccount); err != nil {
		return nil, fmt.Errorf("upserting user: %w", err)
	}
	if err := sm.meta.TouchLastLogin(wallet); err != nil {
		return nil, fmt.Errorf("recording login: %w", err)
	}

	now := sm.clock.Now().UTC()
	session := &model.Session{
		Token:               sm.ids.New(),
		WalletAddress:       wallet,
		SmartAccountAddress: smartAccount,
		CreatedAt:           now,
		ExpiresAt:           now.Add(sm.ttl),
	}
	if err := sm.meta.CreateSession(session); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return session, nil
}

// Validate returns the session for a token, or ErrNotFound when the token
// is unknown or expired. Expired rows are deleted on sight.
func (sm *SessionManager) Validate(token string) (*model.Session, error) {
	session, err := sm.meta.GetSession(token)
	if err != nil {
		return nil, fmt.Errorf("looking up session: %w", err)
	}
	if !session.ExpiresAt.After(sm.clock.Now().UTC()) {
		if err := sm.meta.DeleteSession(token); err != nil {
			sm.logger.Warn("deleting expired session failed", "error", err)
		}
		return nil, fmt.Errorf("session expired: %w", ErrNotFound)
	}
	return session, nil
}

// Extend pushes a session's expiry out by the configured TTL.
func (sm *SessionManager) Extend(token string) error {
	session, err := sm.Validate(token)
	if err != nil {
		return err
	}
	newExpiry := sm.clock.Now().UTC().Add(sm.ttl)
	if err := sm.meta.ExtendSession(session.Token, newExpiry); err != nil {
		return fmt.Errorf("extending session: %w", err)
	}
	return nil
}

// Revoke deletes a session.
func (sm *SessionManager) Revoke(token string) error {
	if err := sm.meta.DeleteSession(token); err != nil {
		return fmt.Errorf("revoking session: %w", err)
	}
	return nil
}

// PurgeLoop deletes expired sessions every interval until the context is
// cancelled. Runs one purge immediately on start.
func (sm *SessionManager) PurgeLoop(ctx context.Context, interval time.Duration) {
	sm.purge()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sm.purge()
		}
	}
}

func (sm *SessionManager) purge() {
	n, err := sm.meta.PurgeExpiredSessions()
	if err != nil {
		sm.logger.Warn("session purge failed", "error", err)
		return
	}
	if n > 0 {
		sm.logger.Info("purged expired sessions", "count", n)
	}
}
