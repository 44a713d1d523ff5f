package broker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tradegate/internal/models"
)

// asError is a typed shorthand for errors.As in assertions.
func asError[T error](err error, target *T) bool {
	return errors.As(err, target)
}

// plainVault is a no-op vault for tests: ciphertext is the plaintext.
type plainVault struct{}

func (plainVault) Decrypt(ciphertext string) (string, error) { return ciphertext, nil }

func testClient(id int64, code string) *models.Client {
	return &models.Client{
		ID:                     id,
		ClientCode:             code,
		IsActive:               true,
		EncAPIKeyInteractive:   "api-key",
		EncSecretInteractive:   "secret",
		EncUserIDInteractive:   "user",
		EncPasswordInteractive: "password",
	}
}

// newAuthServer returns an upstream fake whose auth endpoint succeeds with
// the given token, plus a counter of auth calls received.
func newAuthServer(t *testing.T, token string) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != pathAuth {
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		calls.Add(1)
		json.NewEncoder(w).Encode(map[string]any{"status": "success", "AuthToken": token})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestManager(t *testing.T, baseURL string) *SessionManager {
	t.Helper()
	return NewSessionManager(plainVault{}, NewGatewayURL(baseURL))
}

func TestSessionExpiry_DailyCutoff(t *testing.T) {
	testCases := []struct {
		name     string
		istTime  time.Time
		wantDay  int // day offset relative to istTime's date
		wantHour int
	}{
		{"before cutoff", time.Date(2024, 3, 12, 5, 0, 0, 0, istZone), 0, 6},
		{"at cutoff", time.Date(2024, 3, 12, 6, 0, 0, 0, istZone), 1, 6},
		{"evening", time.Date(2024, 3, 12, 23, 0, 0, 0, istZone), 1, 6},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := sessionExpiry(tc.istTime).In(istZone)
			want := time.Date(2024, 3, 12+tc.wantDay, tc.wantHour, 0, 0, 0, istZone)
			if !got.Equal(want) {
				t.Errorf("sessionExpiry(%v) = %v, want %v", tc.istTime, got, want)
			}
		})
	}
}

func TestSessionManager_Authenticate_CachesSession(t *testing.T) {
	srv, calls := newAuthServer(t, "tok-1")
	m := newTestManager(t, srv.URL)
	client := testClient(1, "MOF001")

	s1, err := m.Authenticate(context.Background(), client, models.SegmentInteractive, false)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if s1.Token != "tok-1" {
		t.Errorf("Token = %q, want %q", s1.Token, "tok-1")
	}

	s2, err := m.Authenticate(context.Background(), client, models.SegmentInteractive, false)
	if err != nil {
		t.Fatalf("second Authenticate() error = %v", err)
	}
	if s1 != s2 {
		t.Error("second Authenticate() did not return the identical cached session")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("upstream auth calls = %d, want 1", got)
	}
}

func TestSessionManager_Authenticate_ForceRefresh_ReplacesSession(t *testing.T) {
	srv, calls := newAuthServer(t, "tok-1")
	m := newTestManager(t, srv.URL)
	client := testClient(1, "MOF001")

	s1, _ := m.Authenticate(context.Background(), client, models.SegmentInteractive, false)
	s2, err := m.Authenticate(context.Background(), client, models.SegmentInteractive, true)
	if err != nil {
		t.Fatalf("Authenticate(force) error = %v", err)
	}
	if s1 == s2 {
		t.Error("forceRefresh returned the old session object")
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("upstream auth calls = %d, want 2", got)
	}
}

func TestSessionManager_Authenticate_ExpiredSession_Reauthenticates(t *testing.T) {
	srv, calls := newAuthServer(t, "tok-1")
	m := newTestManager(t, srv.URL)
	client := testClient(1, "MOF001")

	if _, err := m.Authenticate(context.Background(), client, models.SegmentInteractive, false); err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}

	// Move the clock past the cached session's expiry.
	m.now = func() time.Time { return time.Now().AddDate(0, 0, 2) }

	if _, err := m.Authenticate(context.Background(), client, models.SegmentInteractive, false); err != nil {
		t.Fatalf("Authenticate() after expiry error = %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("upstream auth calls = %d, want 2", got)
	}
}

func TestSessionManager_Authenticate_SegmentSwitch_Replaces(t *testing.T) {
	srv, calls := newAuthServer(t, "tok-1")
	m := newTestManager(t, srv.URL)
	client := testClient(1, "MOF001")
	client.EncAPIKeyCommodity = "api-key"
	client.EncSecretCommodity = "secret"
	client.EncUserIDCommodity = "user"
	client.EncPasswordCommodity = "password"

	if _, err := m.Authenticate(context.Background(), client, models.SegmentInteractive, false); err != nil {
		t.Fatalf("Authenticate(interactive) error = %v", err)
	}
	s, err := m.Authenticate(context.Background(), client, models.SegmentCommodity, false)
	if err != nil {
		t.Fatalf("Authenticate(commodity) error = %v", err)
	}
	if s.Segment != models.SegmentCommodity {
		t.Errorf("Segment = %q, want commodity", s.Segment)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("upstream auth calls = %d, want 2", got)
	}

	// Only one session per client: the interactive one is gone.
	if cached := m.Cached(client.ID); cached == nil || cached.Segment != models.SegmentCommodity {
		t.Errorf("Cached() = %+v, want the commodity session", cached)
	}
}

func TestSessionManager_Authenticate_ConcurrentSameClient_SingleUpstreamCall(t *testing.T) {
	srv, calls := newAuthServer(t, "tok-1")
	m := newTestManager(t, srv.URL)
	client := testClient(1, "MOF001")

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.Authenticate(context.Background(), client, models.SegmentInteractive, false)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("goroutine %d: Authenticate() error = %v", i, err)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("upstream auth calls = %d, want 1 (deduplicated)", got)
	}
}

func TestSessionManager_Authenticate_MissingCredentials_NoNetworkCall(t *testing.T) {
	srv, calls := newAuthServer(t, "tok-1")
	m := newTestManager(t, srv.URL)
	client := &models.Client{ID: 1, ClientCode: "MOF001", IsActive: true}

	_, err := m.Authenticate(context.Background(), client, models.SegmentInteractive, false)
	var credErr *CredentialsError
	if !asError(err, &credErr) {
		t.Fatalf("Authenticate() error = %v, want CredentialsError", err)
	}
	if got := calls.Load(); got != 0 {
		t.Errorf("upstream auth calls = %d, want 0", got)
	}
}

func TestSessionManager_Authenticate_UpstreamRejection_ReturnsAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": "failed", "message": "invalid credentials"})
	}))
	defer srv.Close()
	m := newTestManager(t, srv.URL)

	_, err := m.Authenticate(context.Background(), testClient(1, "MOF001"), models.SegmentInteractive, false)
	var authErr *AuthError
	if !asError(err, &authErr) {
		t.Fatalf("Authenticate() error = %v, want AuthError", err)
	}
	if authErr.Msg != "invalid credentials" {
		t.Errorf("AuthError.Msg = %q, want upstream message", authErr.Msg)
	}
}

func TestSessionManager_Authenticate_TOTPSeedPresent_SendsCode(t *testing.T) {
	var gotTOTP string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		json.NewDecoder(r.Body).Decode(&payload)
		gotTOTP, _ = payload["totp"].(string)
		json.NewEncoder(w).Encode(map[string]any{"status": "success", "AuthToken": "tok"})
	}))
	defer srv.Close()
	m := newTestManager(t, srv.URL)

	client := testClient(1, "MOF001")
	client.EncTOTPSeedInteractive = "JBSWY3DPEHPK3PXP"

	if _, err := m.Authenticate(context.Background(), client, models.SegmentInteractive, false); err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if len(gotTOTP) != 6 {
		t.Errorf("totp code = %q, want a 6-digit code", gotTOTP)
	}
}

func TestSessionManager_Invalidate(t *testing.T) {
	srv, _ := newAuthServer(t, "tok-1")
	m := newTestManager(t, srv.URL)
	client := testClient(1, "MOF001")

	if m.Invalidate(client.ID) {
		t.Error("Invalidate() = true with no cached session")
	}

	m.Authenticate(context.Background(), client, models.SegmentInteractive, false)
	if !m.Invalidate(client.ID) {
		t.Error("Invalidate() = false with a cached session")
	}
	if m.Cached(client.ID) != nil {
		t.Error("Cached() returned a session after Invalidate()")
	}
}

func TestSessionManager_Cached_EvictsExpired(t *testing.T) {
	srv, _ := newAuthServer(t, "tok-1")
	m := newTestManager(t, srv.URL)
	client := testClient(1, "MOF001")

	m.Authenticate(context.Background(), client, models.SegmentInteractive, false)
	m.now = func() time.Time { return time.Now().AddDate(0, 0, 2) }

	if s := m.Cached(client.ID); s != nil {
		t.Errorf("Cached() = %+v after expiry, want nil", s)
	}
	// The expired entry is evicted, not just hidden.
	status := m.Status(client.ID)
	if status.Exists {
		t.Error("Status().Exists = true after eviction")
	}
}

func TestSessionManager_SweepExpired(t *testing.T) {
	srv, _ := newAuthServer(t, "tok-1")
	m := newTestManager(t, srv.URL)

	m.Authenticate(context.Background(), testClient(1, "MOF001"), models.SegmentInteractive, false)
	m.Authenticate(context.Background(), testClient(2, "MOF002"), models.SegmentInteractive, false)

	m.now = func() time.Time { return time.Now().AddDate(0, 0, 2) }
	if dropped := m.SweepExpired(); dropped != 2 {
		t.Errorf("SweepExpired() = %d, want 2", dropped)
	}
}
