package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/linkedin"

	"github.com/prepdash/prepdash/config"
	"github.com/prepdash/prepdash/models"
)

const (
	stateTTL = 10 * time.Minute

	defaultProfileURL = "https://api.linkedin.com/v2/userinfo"
	defaultShareURL   = "https://api.linkedin.com/v2/ugcPosts"
)

// UpstreamError carries a provider's non-success response so handlers can
// forward status and body unmodified.
type UpstreamError struct {
	StatusCode int
	Body       []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, e.Body)
}

// LinkedIn drives the three-legged authorization-code flow and the share API.
// The flow is a linear state machine: start mints a single-use state token,
// the callback consumes it, exchanges the code and stores the credential.
type LinkedIn struct {
	OAuth      *oauth2.Config
	ProfileURL string
	ShareURL   string
	Client     *http.Client

	states StateStore
	creds  CredentialStore
}

// NewLinkedIn builds the service from application config.
func NewLinkedIn(cfg config.AppConfig, states StateStore, creds CredentialStore) *LinkedIn {
	return &LinkedIn{
		OAuth: &oauth2.Config{
			ClientID:     cfg.LinkedInClientID,
			ClientSecret: cfg.LinkedInClientSecret,
			RedirectURL:  fmt.Sprintf("%s/api/v1/linkedin/callback", cfg.LinkedInRedirectBase),
			Scopes:       []string{"openid", "profile", "w_member_social"},
			Endpoint:     linkedin.Endpoint,
		},
		ProfileURL: defaultProfileURL,
		ShareURL:   defaultShareURL,
		Client:     &http.Client{Timeout: 15 * time.Second},
		states:     states,
		creds:      creds,
	}
}

// StartURL mints a state token bound to the user and returns the provider
// authorization URL embedding it.
func (l *LinkedIn) StartURL(ctx context.Context, userID uint) (string, error) {
	state := uuid.NewString()
	if err := l.states.Save(ctx, state, userID, stateTTL); err != nil {
		return "", err
	}
	return l.OAuth.AuthCodeURL(state), nil
}

// HandleCallback validates and consumes the state token, exchanges the code
// for tokens, resolves the provider member id and upserts the credential row.
// Returns the user the flow belongs to.
func (l *LinkedIn) HandleCallback(ctx context.Context, code, state string) (uint, error) {
	userID, err := l.states.Consume(ctx, state)
	if err != nil {
		return 0, err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, l.Client)
	token, err := l.OAuth.Exchange(ctx, code)
	if err != nil {
		return 0, fmt.Errorf("code exchange failed: %w", err)
	}

	memberID, err := l.fetchMemberID(ctx, token.AccessToken)
	if err != nil {
		return 0, err
	}

	cred := models.OAuthCredential{
		UserID:           userID,
		ProviderMemberID: memberID,
		AccessToken:      token.AccessToken,
		RefreshToken:     token.RefreshToken,
		Scope:            "openid profile w_member_social",
		ExpiresAt:        token.Expiry,
	}
	if err := l.creds.Upsert(ctx, cred); err != nil {
		return 0, err
	}
	return userID, nil
}

// Connected reports whether the user has a stored credential.
func (l *LinkedIn) Connected(ctx context.Context, userID uint) (bool, error) {
	_, err := l.creds.ForUser(ctx, userID)
	if err == ErrNotConnected {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Share posts text content on behalf of the connected user. Provider errors
// come back as *UpstreamError so callers can relay status and body.
func (l *LinkedIn) Share(ctx context.Context, userID uint, text string) error {
	cred, err := l.creds.ForUser(ctx, userID)
	if err != nil {
		return err
	}

	payload := map[string]interface{}{
		"author":         "urn:li:person:" + cred.ProviderMemberID,
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]interface{}{
			"com.linkedin.ugc.ShareContent": map[string]interface{}{
				"shareCommentary":    map[string]string{"text": text},
				"shareMediaCategory": "NONE",
			},
		},
		"visibility": map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.ShareURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := l.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &UpstreamError{StatusCode: resp.StatusCode, Body: b}
	}
	return nil
}

func (l *LinkedIn) fetchMemberID(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.ProfileURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := l.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &UpstreamError{StatusCode: resp.StatusCode, Body: b}
	}

	var profile struct {
		Sub string `json:"sub"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return "", err
	}
	if profile.Sub == "" {
		return "", fmt.Errorf("profile response missing member id")
	}
	return profile.Sub, nil
}
