// Package auth owns session continuity: it holds the short-lived access
// token and the longer-lived refresh token, persists them in the local
// metadata slot so a restart resumes the session, and renews the access
// token transparently to in-flight requests.
//
// At most one refresh runs at a time; concurrent callers share its result or
// its failure (singleflight).
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"github.com/obrasync/obrasync/internal/client/repositories/metadata"
	"github.com/obrasync/obrasync/internal/common"
	"github.com/obrasync/obrasync/internal/logging"
)

// Metadata keys for the persisted session.
const (
	metaKeyUsername     = "username"
	metaKeyAccessToken  = "access_token"
	metaKeyRefreshToken = "refresh_token"
)

// DefaultExpirySkew is how close to its exp claim an access token is still
// considered usable before a proactive refresh.
const DefaultExpirySkew = 30 * time.Second

type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Manager implements api.TokenSource.
type Manager struct {
	baseURL string
	hc      *http.Client
	meta    metadata.Repository // nil when the local store is unavailable
	log     logging.Logger
	skew    time.Duration

	mu           sync.RWMutex
	username     string
	accessToken  string
	refreshToken string

	sf singleflight.Group
}

// NewManager builds a session manager. meta may be nil; the session then
// lives only in memory for the process lifetime.
func NewManager(baseURL string, hc *http.Client, meta metadata.Repository, log logging.Logger) *Manager {
	if hc == nil {
		hc = &http.Client{}
	}
	return &Manager{baseURL: baseURL, hc: hc, meta: meta, log: log, skew: DefaultExpirySkew}
}

// LoadSession restores a persisted session from the metadata slot.
func (m *Manager) LoadSession(ctx context.Context) error {
	if m.meta == nil {
		return nil
	}
	username, err := m.meta.Get(ctx, metaKeyUsername)
	if err != nil {
		return err
	}
	access, err := m.meta.Get(ctx, metaKeyAccessToken)
	if err != nil {
		return err
	}
	refresh, err := m.meta.Get(ctx, metaKeyRefreshToken)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.username = string(username)
	m.accessToken = string(access)
	m.refreshToken = string(refresh)
	return nil
}

// Login authenticates against the server and persists the session.
func (m *Manager) Login(ctx context.Context, username, password string) error {
	body, err := json.Marshal(loginRequest{Username: username, Password: password})
	if err != nil {
		return err
	}

	pair, err := m.postJSON(ctx, "/auth/login", body)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	return m.storeSession(ctx, username, pair)
}

// Logout clears the session, in memory and at rest.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	m.username = ""
	m.accessToken = ""
	m.refreshToken = ""
	m.mu.Unlock()

	if m.meta == nil {
		return nil
	}
	return m.meta.Clear(ctx)
}

// Username returns the logged-in username, if any.
func (m *Manager) Username() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.username
}

// LoggedIn reports whether a session is present.
func (m *Manager) LoggedIn() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refreshToken != ""
}

// AccessToken returns a currently valid access token, refreshing first when
// the token's exp claim is past or within the skew window. Returns an empty
// token without error when no session exists at all.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	m.mu.RLock()
	access := m.accessToken
	refresh := m.refreshToken
	m.mu.RUnlock()

	if access == "" && refresh == "" {
		return "", nil
	}
	if access != "" && !expired(access, m.skew) {
		return access, nil
	}
	return m.Refresh(ctx)
}

// Refresh exchanges the refresh token for a new pair. Concurrent calls
// collapse into one request; all callers see the same outcome.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	token, err, _ := m.sf.Do("refresh", func() (any, error) {
		m.mu.RLock()
		refresh := m.refreshToken
		username := m.username
		m.mu.RUnlock()

		if refresh == "" {
			return "", common.ErrNoRefreshToken
		}

		body, err := json.Marshal(refreshRequest{RefreshToken: refresh})
		if err != nil {
			return "", err
		}

		pair, err := m.postJSON(ctx, "/auth/refresh", body)
		if err != nil {
			return "", fmt.Errorf("refresh: %w", err)
		}

		if err := m.storeSession(ctx, username, pair); err != nil {
			return "", err
		}
		return pair.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

func (m *Manager) storeSession(ctx context.Context, username string, pair *tokenPair) error {
	m.mu.Lock()
	m.username = username
	m.accessToken = pair.AccessToken
	m.refreshToken = pair.RefreshToken
	m.mu.Unlock()

	if m.meta == nil {
		return nil
	}
	if err := m.meta.Set(ctx, metaKeyUsername, []byte(username)); err != nil {
		return err
	}
	if err := m.meta.Set(ctx, metaKeyAccessToken, []byte(pair.AccessToken)); err != nil {
		return err
	}
	return m.meta.Set(ctx, metaKeyRefreshToken, []byte(pair.RefreshToken))
}

func (m *Manager) postJSON(ctx context.Context, endpoint string, body []byte) (*tokenPair, error) {
	u := strings.TrimRight(m.baseURL, "/") + endpoint

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, common.ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: auth returned %d", common.ErrUnavailable, resp.StatusCode)
	}

	pair := &tokenPair{}
	if err := json.Unmarshal(data, pair); err != nil {
		return nil, fmt.Errorf("decode auth response: %w", err)
	}
	return pair, nil
}

// expired reports whether the token's exp claim has passed or falls within
// the skew window. Tokens without a parseable exp claim are treated as
// usable; the server remains the authority.
func expired(token string, skew time.Duration) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return time.Now().Add(skew).After(exp.Time)
}
