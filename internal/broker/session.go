package broker

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/pquerna/otp/totp"
	"golang.org/x/sync/singleflight"

	"tradegate/internal/models"
)

// Decrypter is the credential vault contract the session layer consumes.
type Decrypter interface {
	Decrypt(ciphertext string) (string, error)
}

// istZone is the broker's local timezone, as a fixed offset.
var istZone = time.FixedZone("IST", 5*3600+30*60)

// sessionCutoffHour is the hour (IST) at which the upstream resets all
// sessions daily.
const sessionCutoffHour = 6

// sessionExpiry computes the daily-cutoff expiry for a session created at
// now: before the cutoff expires today at the cutoff, otherwise tomorrow.
func sessionExpiry(now time.Time) time.Time {
	ist := now.In(istZone)
	cutoff := time.Date(ist.Year(), ist.Month(), ist.Day(), sessionCutoffHour, 0, 0, 0, istZone)
	if !ist.Before(cutoff) {
		cutoff = cutoff.AddDate(0, 0, 1)
	}
	return cutoff
}

// SessionManager owns the per-client session cache. Sessions are keyed by
// client id: one live session per client, so switching segments replaces
// the previous segment's session rather than coexisting with it.
type SessionManager struct {
	vault   Decrypter
	gateway *Gateway

	mu       sync.RWMutex
	sessions map[int64]*Session

	// group deduplicates concurrent authentication attempts for the same
	// client so they don't race to overwrite each other's session.
	group singleflight.Group

	now func() time.Time
}

// NewSessionManager creates a SessionManager over the given vault and
// upstream gateway.
func NewSessionManager(vault Decrypter, gateway *Gateway) *SessionManager {
	return &SessionManager{
		vault:    vault,
		gateway:  gateway,
		sessions: make(map[int64]*Session),
		now:      time.Now,
	}
}

// Authenticate returns a usable session for the client, reusing the cached
// one when valid and authenticating upstream otherwise. forceRefresh skips
// the cache. Concurrent calls for the same client share one upstream
// authentication; different clients never block each other.
func (m *SessionManager) Authenticate(ctx context.Context, client *models.Client, segment string, forceRefresh bool) (*Session, error) {
	if !models.ValidSegment(segment) {
		return nil, Validationf("invalid segment %q", segment)
	}

	if !forceRefresh {
		if s := m.Cached(client.ID); s != nil && s.Segment == segment {
			return s, nil
		}
	}

	key := strconv.FormatInt(client.ID, 10)
	v, err, _ := m.group.Do(key, func() (any, error) {
		// Another caller may have finished authenticating while this one
		// waited on the flight.
		if !forceRefresh {
			if s := m.Cached(client.ID); s != nil && s.Segment == segment {
				return s, nil
			}
		}
		return m.authenticate(ctx, client, segment)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// authenticate performs one upstream login and replaces the cached session.
func (m *SessionManager) authenticate(ctx context.Context, client *models.Client, segment string) (*Session, error) {
	creds, err := m.decryptCredentials(client, segment)
	if err != nil {
		return nil, err
	}

	// TOTP codes are single-use and time-windowed: generate immediately
	// before the call, never cache.
	totpCode := ""
	if creds.TOTPSeed != "" {
		code, err := totp.GenerateCode(creds.TOTPSeed, m.now())
		if err != nil {
			log.Printf("Failed to generate TOTP code for client %s: %v", client.ClientCode, err)
		} else {
			totpCode = code
		}
	}

	token, err := m.gateway.Authenticate(ctx, creds, totpCode, client.ClientCode)
	if err != nil {
		return nil, err
	}

	now := m.now()
	session := &Session{
		ClientID:  client.ID,
		Segment:   segment,
		Token:     token,
		CreatedAt: now,
		ExpiresAt: sessionExpiry(now),
	}

	m.mu.Lock()
	m.sessions[client.ID] = session
	m.mu.Unlock()

	log.Printf("Authenticated client %s (%s), session expires at %s",
		client.ClientCode, segment, session.ExpiresAt.Format(time.RFC3339))
	return session, nil
}

// decryptCredentials re-derives plaintext credentials from ciphertext.
// Plaintext lives only for the duration of one authentication attempt.
func (m *SessionManager) decryptCredentials(client *models.Client, segment string) (Credentials, error) {
	var encFields [5]string
	switch segment {
	case models.SegmentCommodity:
		encFields = [5]string{
			client.EncAPIKeyCommodity, client.EncSecretCommodity,
			client.EncUserIDCommodity, client.EncPasswordCommodity,
			client.EncTOTPSeedCommodity,
		}
	default:
		encFields = [5]string{
			client.EncAPIKeyInteractive, client.EncSecretInteractive,
			client.EncUserIDInteractive, client.EncPasswordInteractive,
			client.EncTOTPSeedInteractive,
		}
	}

	if !client.HasCredentials(segment) {
		return Credentials{}, &CredentialsError{
			ClientCode: client.ClientCode,
			Segment:    segment,
			Msg:        "not configured",
		}
	}

	var plain [5]string
	for i, enc := range encFields {
		p, err := m.vault.Decrypt(enc)
		if err != nil {
			return Credentials{}, fmt.Errorf("decrypting %s credentials for client %s: %w", segment, client.ClientCode, err)
		}
		plain[i] = p
	}

	creds := Credentials{
		APIKey:   plain[0],
		Secret:   plain[1],
		UserID:   plain[2],
		Password: plain[3],
		TOTPSeed: plain[4],
	}
	if !creds.Valid() {
		return Credentials{}, &CredentialsError{
			ClientCode: client.ClientCode,
			Segment:    segment,
			Msg:        "decrypted credentials are incomplete",
		}
	}
	return creds, nil
}

// Cached returns the client's session when one exists and has not passed
// its expiry, evicting an expired one as a side effect.
func (m *SessionManager) Cached(clientID int64) *Session {
	m.mu.RLock()
	s, ok := m.sessions[clientID]
	m.mu.RUnlock()
	if !ok {
		return nil
	}

	if !m.now().Before(s.ExpiresAt) {
		m.mu.Lock()
		// Re-check under the write lock; a fresh session may have landed.
		if cur, ok := m.sessions[clientID]; ok && cur == s {
			delete(m.sessions, clientID)
		}
		m.mu.Unlock()
		return nil
	}
	return s
}

// Invalidate drops a cached session and reports whether one existed.
func (m *SessionManager) Invalidate(clientID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[clientID]; ok {
		delete(m.sessions, clientID)
		return true
	}
	return false
}

// Logout performs a best-effort upstream logout and always drops the
// cached session.
func (m *SessionManager) Logout(ctx context.Context, client *models.Client) error {
	s := m.Cached(client.ID)
	defer m.Invalidate(client.ID)

	if s == nil {
		return nil
	}
	if err := m.gateway.Logout(ctx, s.Token); err != nil {
		log.Printf("Upstream logout failed for client %s: %v", client.ClientCode, err)
		return err
	}
	return nil
}

// SweepExpired removes all sessions past their expiry and returns how many
// were dropped. Run daily just after the upstream cutoff.
func (m *SessionManager) SweepExpired() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	dropped := 0
	for id, s := range m.sessions {
		if !now.Before(s.ExpiresAt) {
			delete(m.sessions, id)
			dropped++
		}
	}
	return dropped
}

// SessionStatus describes the cache state for one client.
type SessionStatus struct {
	Exists    bool       `json:"exists"`
	Expired   bool       `json:"expired"`
	Segment   string     `json:"segment,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Status reports the cached-session state for a client without mutating
// the cache.
func (m *SessionManager) Status(clientID int64) SessionStatus {
	m.mu.RLock()
	s, ok := m.sessions[clientID]
	m.mu.RUnlock()

	if !ok {
		return SessionStatus{Exists: false, Expired: true}
	}
	return SessionStatus{
		Exists:    true,
		Expired:   !m.now().Before(s.ExpiresAt),
		Segment:   s.Segment,
		CreatedAt: &s.CreatedAt,
		ExpiresAt: &s.ExpiresAt,
	}
}
