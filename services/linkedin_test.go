package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/prepdash/prepdash/config"
	"github.com/prepdash/prepdash/models"
)

type stateRow struct {
	userID    uint
	expiresAt time.Time
}

// fakeStateStore mirrors the delete-on-read contract: a token is removed on
// every Consume, valid or not.
type fakeStateStore struct {
	mu   sync.Mutex
	rows map[string]stateRow
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{rows: map[string]stateRow{}}
}

func (s *fakeStateStore) Save(_ context.Context, state string, userID uint, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[state] = stateRow{userID: userID, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *fakeStateStore) Consume(_ context.Context, state string) (uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[state]
	delete(s.rows, state)
	if !ok {
		return 0, ErrStateNotFound
	}
	if time.Now().After(row.expiresAt) {
		return 0, ErrStateExpired
	}
	return row.userID, nil
}

func (s *fakeStateStore) has(state string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rows[state]
	return ok
}

type fakeCredStore struct {
	mu    sync.Mutex
	creds map[uint]models.OAuthCredential
}

func newFakeCredStore() *fakeCredStore {
	return &fakeCredStore{creds: map[uint]models.OAuthCredential{}}
}

func (s *fakeCredStore) Upsert(_ context.Context, cred models.OAuthCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[cred.UserID] = cred
	return nil
}

func (s *fakeCredStore) ForUser(_ context.Context, userID uint) (models.OAuthCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.creds[userID]
	if !ok {
		return models.OAuthCredential{}, ErrNotConnected
	}
	return cred, nil
}

// newProviderServer stands in for the OAuth provider: token exchange, the
// userinfo profile and the share API on one listener.
func newProviderServer(t *testing.T) (*httptest.Server, *http.Request) {
	t.Helper()
	lastShare := &http.Request{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token":"tok-123","token_type":"Bearer","expires_in":3600,"refresh_token":"ref-456"}`))
		case "/userinfo":
			if r.Header.Get("Authorization") != "Bearer tok-123" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"sub":"member-789"}`))
		case "/share":
			*lastShare = *r.Clone(r.Context())
			w.WriteHeader(http.StatusCreated)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, lastShare
}

func newTestLinkedIn(t *testing.T, states StateStore, creds CredentialStore) (*LinkedIn, *http.Request) {
	t.Helper()
	srv, lastShare := newProviderServer(t)

	svc := NewLinkedIn(config.AppConfig{
		LinkedInClientID:     "client-id",
		LinkedInClientSecret: "client-secret",
		LinkedInRedirectBase: "http://localhost:8080",
	}, states, creds)
	svc.OAuth.Endpoint = oauth2.Endpoint{
		AuthURL:  srv.URL + "/authorize",
		TokenURL: srv.URL + "/token",
	}
	svc.ProfileURL = srv.URL + "/userinfo"
	svc.ShareURL = srv.URL + "/share"
	svc.Client = srv.Client()
	return svc, lastShare
}

func TestStartURLMintsState(t *testing.T) {
	states := newFakeStateStore()
	svc, _ := newTestLinkedIn(t, states, newFakeCredStore())

	url, err := svc.StartURL(context.Background(), 42)
	if err != nil {
		t.Fatalf("StartURL returned error: %v", err)
	}
	if !strings.Contains(url, "client_id=client-id") {
		t.Errorf("authorization URL missing client id: %s", url)
	}
	if !strings.Contains(url, "state=") {
		t.Errorf("authorization URL missing state: %s", url)
	}
	if len(states.rows) != 1 {
		t.Errorf("stored states = %d, want 1", len(states.rows))
	}
	for _, row := range states.rows {
		if row.userID != 42 {
			t.Errorf("state bound to user %d, want 42", row.userID)
		}
	}
}

func TestHandleCallbackHappyPath(t *testing.T) {
	states := newFakeStateStore()
	creds := newFakeCredStore()
	svc, _ := newTestLinkedIn(t, states, creds)

	states.Save(context.Background(), "state-1", 42, time.Minute)

	userID, err := svc.HandleCallback(context.Background(), "auth-code", "state-1")
	if err != nil {
		t.Fatalf("HandleCallback returned error: %v", err)
	}
	if userID != 42 {
		t.Errorf("userID = %d, want 42", userID)
	}

	cred, err := creds.ForUser(context.Background(), 42)
	if err != nil {
		t.Fatalf("credential not stored: %v", err)
	}
	if cred.ProviderMemberID != "member-789" {
		t.Errorf("ProviderMemberID = %q, want member-789", cred.ProviderMemberID)
	}
	if cred.AccessToken != "tok-123" || cred.RefreshToken != "ref-456" {
		t.Errorf("tokens = %q/%q", cred.AccessToken, cred.RefreshToken)
	}

	if states.has("state-1") {
		t.Error("state survived the callback; tokens must be single-use")
	}
}

func TestHandleCallbackUnknownState(t *testing.T) {
	svc, _ := newTestLinkedIn(t, newFakeStateStore(), newFakeCredStore())
	_, err := svc.HandleCallback(context.Background(), "auth-code", "never-issued")
	if !errors.Is(err, ErrStateNotFound) {
		t.Errorf("err = %v, want ErrStateNotFound", err)
	}
}

func TestHandleCallbackReplay(t *testing.T) {
	states := newFakeStateStore()
	svc, _ := newTestLinkedIn(t, states, newFakeCredStore())

	states.Save(context.Background(), "state-1", 42, time.Minute)

	if _, err := svc.HandleCallback(context.Background(), "auth-code", "state-1"); err != nil {
		t.Fatalf("first callback returned error: %v", err)
	}
	_, err := svc.HandleCallback(context.Background(), "auth-code", "state-1")
	if !errors.Is(err, ErrStateNotFound) {
		t.Errorf("replay err = %v, want ErrStateNotFound", err)
	}
}

func TestHandleCallbackExpiredStateIsConsumed(t *testing.T) {
	states := newFakeStateStore()
	creds := newFakeCredStore()
	svc, _ := newTestLinkedIn(t, states, creds)

	states.Save(context.Background(), "state-old", 42, -time.Minute)

	_, err := svc.HandleCallback(context.Background(), "auth-code", "state-old")
	if !errors.Is(err, ErrStateExpired) {
		t.Fatalf("err = %v, want ErrStateExpired", err)
	}
	if states.has("state-old") {
		t.Error("expired state survived; tokens are single-use even on failure")
	}
	if _, err := creds.ForUser(context.Background(), 42); !errors.Is(err, ErrNotConnected) {
		t.Error("credential stored despite failed callback")
	}
}

func TestShareNotConnected(t *testing.T) {
	svc, _ := newTestLinkedIn(t, newFakeStateStore(), newFakeCredStore())
	err := svc.Share(context.Background(), 42, "hello")
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("err = %v, want ErrNotConnected", err)
	}
}

func TestSharePostsWithStoredCredential(t *testing.T) {
	creds := newFakeCredStore()
	svc, lastShare := newTestLinkedIn(t, newFakeStateStore(), creds)

	creds.Upsert(context.Background(), models.OAuthCredential{
		UserID:           42,
		ProviderMemberID: "member-789",
		AccessToken:      "tok-123",
	})

	if err := svc.Share(context.Background(), 42, "solved two-sum today"); err != nil {
		t.Fatalf("Share returned error: %v", err)
	}

	if got := lastShare.Header.Get("Authorization"); got != "Bearer tok-123" {
		t.Errorf("Authorization = %q", got)
	}
	if got := lastShare.Header.Get("X-Restli-Protocol-Version"); got != "2.0.0" {
		t.Errorf("X-Restli-Protocol-Version = %q", got)
	}
}

func TestShareRelaysUpstreamError(t *testing.T) {
	creds := newFakeCredStore()
	creds.Upsert(context.Background(), models.OAuthCredential{
		UserID:           42,
		ProviderMemberID: "member-789",
		AccessToken:      "tok-123",
	})

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"duplicate post"}`))
	}))
	defer upstream.Close()

	svc, _ := newTestLinkedIn(t, newFakeStateStore(), creds)
	svc.ShareURL = upstream.URL
	svc.Client = upstream.Client()

	err := svc.Share(context.Background(), 42, "hello")
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v, want *UpstreamError", err)
	}
	if ue.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("StatusCode = %d, want 422", ue.StatusCode)
	}
	if string(ue.Body) != `{"message":"duplicate post"}` {
		t.Errorf("Body = %q", ue.Body)
	}
}
