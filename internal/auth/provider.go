// Package auth acquires and refreshes bearer credentials for stored accounts.
package auth

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wakeguard/wakeguard/internal/errors"
	"github.com/wakeguard/wakeguard/internal/logging"
	"github.com/wakeguard/wakeguard/internal/retry"
)

// DefaultTokenURL is the OAuth token endpoint used to refresh access tokens.
const DefaultTokenURL = "https://oauth2.googleapis.com/token"

// refreshPolicy bounds transient refresh retries: 3 attempts at 1s/2s/4s.
var refreshPolicy = retry.Policy{
	MaxAttempts: 3,
	BaseDelay:   time.Second,
	Multiplier:  2,
	Retryable: func(err error) bool {
		var refreshErr *errors.ErrTokenRefresh
		if stderrors.As(err, &refreshErr) {
			return !refreshErr.Permanent
		}
		return true
	},
}

// credentialFile mirrors the JSON the auth flow writes per account.
type credentialFile struct {
	Email        string `json:"email"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
}

// Provider loads credential handles from the auth directory. It holds no
// cached handles; callers own the handle lifetime explicitly.
type Provider struct {
	dir      string
	tokenURL string
	client   *http.Client
	logger   *logging.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithTokenURL overrides the OAuth token endpoint.
func WithTokenURL(u string) Option {
	return func(p *Provider) {
		p.tokenURL = u
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.client = c
	}
}

// NewProvider creates a provider over the given auth directory.
func NewProvider(dir string, logger *logging.Logger, opts ...Option) *Provider {
	p := &Provider{
		dir:      dir,
		tokenURL: DefaultTokenURL,
		client:   &http.Client{Timeout: 15 * time.Second},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handle loads the stored credential for an account. A missing or corrupt
// credential file is a local configuration fault and is never retried.
func (p *Provider) Handle(email string) (*Handle, error) {
	path := filepath.Join(p.dir, email+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &errors.ErrAccountNotFound{Email: email}
		}
		return nil, &errors.ErrFileRead{Path: path, Err: err}
	}

	var cred credentialFile
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, &errors.ErrStateCorrupt{Document: filepath.Base(path), Err: err}
	}
	if cred.Email == "" {
		cred.Email = email
	}
	if cred.RefreshToken == "" {
		return nil, &errors.ErrTokenRefresh{Email: email, Detail: "credential file missing refresh_token", Permanent: true}
	}

	return &Handle{provider: p, path: path, cred: cred}, nil
}

// Handle is one account's credential, refreshable in place.
type Handle struct {
	provider *Provider
	path     string
	cred     credentialFile
}

// Email returns the account the handle belongs to.
func (h *Handle) Email() string {
	return h.cred.Email
}

// Token returns the current access token.
func (h *Handle) Token() string {
	return h.cred.AccessToken
}

// Expired reports whether the stored access token has lapsed.
func (h *Handle) Expired() bool {
	if h.cred.ExpiresAt == 0 {
		return true
	}
	return time.Now().Unix() >= h.cred.ExpiresAt
}

// Refresh exchanges the refresh token for a fresh access token, retrying
// transient failures per refreshPolicy. Permanent refusals (invalid_grant,
// 400/401) fail immediately. The refreshed token is persisted back to the
// credential file best-effort.
func (h *Handle) Refresh(ctx context.Context) error {
	err := retry.Do(ctx, refreshPolicy, func(ctx context.Context) error {
		return h.refreshOnce(ctx)
	})
	if err != nil {
		return err
	}
	h.persist()
	return nil
}

func (h *Handle) refreshOnce(ctx context.Context) error {
	form := url.Values{}
	form.Set("client_id", h.cred.ClientID)
	if h.cred.ClientSecret != "" {
		form.Set("client_secret", h.cred.ClientSecret)
	}
	form.Set("refresh_token", h.cred.RefreshToken)
	form.Set("grant_type", "refresh_token")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.provider.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return &errors.ErrTokenRefresh{Email: h.cred.Email, Err: err, Permanent: true}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := h.provider.client.Do(req)
	if err != nil {
		return &errors.ErrTokenRefresh{Email: h.cred.Email, Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode != http.StatusOK {
		detail := refreshDetail(body, resp.StatusCode)
		permanent := resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized
		return &errors.ErrTokenRefresh{Email: h.cred.Email, Detail: detail, Permanent: permanent}
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return &errors.ErrTokenRefresh{Email: h.cred.Email, Err: err}
	}
	if parsed.AccessToken == "" {
		return &errors.ErrTokenRefresh{Email: h.cred.Email, Detail: "refresh response missing access_token"}
	}

	h.cred.AccessToken = parsed.AccessToken
	if parsed.ExpiresIn > 0 {
		h.cred.ExpiresAt = time.Now().Unix() + parsed.ExpiresIn
	}
	return nil
}

// refreshDetail prefers the structured OAuth error over a bare status code.
func refreshDetail(body []byte, status int) string {
	var parsed struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != "" {
		if parsed.ErrorDescription != "" {
			return fmt.Sprintf("%s: %s", parsed.Error, parsed.ErrorDescription)
		}
		return parsed.Error
	}
	return fmt.Sprintf("refresh endpoint returned status %d", status)
}

func (h *Handle) persist() {
	data, err := json.MarshalIndent(h.cred, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(h.path, data, 0o600); err != nil && h.provider.logger != nil {
		h.provider.logger.Warn("failed to persist refreshed credential",
			"account", h.cred.Email, "error", err.Error())
	}
}
