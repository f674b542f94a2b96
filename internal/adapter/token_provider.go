package adapter

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/binarjoin/syncengine/internal/logger"
	"github.com/binarjoin/syncengine/internal/utils"
	"github.com/binarjoin/syncengine/models"
)

// CredentialsConfig configures the credential token provider.
type CredentialsConfig struct {
	BaseURL  string
	Login    string
	Password string
	Timeout  time.Duration
}

// credentialTokenProvider obtains bearer tokens from the sync server with a
// stored login/password pair. Refresh performs a fresh login; when the login
// is unknown to the server the provider registers it once, so a brand new
// client becomes usable without a separate sign-up step.
type credentialTokenProvider struct {
	client *resty.Client
	creds  CredentialsConfig
	log    *logger.Logger

	mu    sync.RWMutex
	token string
}

// NewCredentialTokenProvider builds a [TokenProvider] backed by the server's
// /auth endpoints.
func NewCredentialTokenProvider(cfg CredentialsConfig, log *logger.Logger) TokenProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	cli := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout)

	return &credentialTokenProvider{client: cli, creds: cfg, log: log}
}

func (p *credentialTokenProvider) AccessToken() string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.token
}

// Refresh implements [TokenProvider]. It logs in with the stored credentials
// and keeps the issued token for subsequent requests. An unknown login is
// registered first; a rejected password is not retried here because replaying
// the same credentials cannot succeed.
func (p *credentialTokenProvider) Refresh(ctx context.Context) bool {
	token, ok := p.authenticate(ctx, "/auth/login")
	if !ok {
		token, ok = p.authenticate(ctx, "/auth/register")
	}
	if !ok {
		return false
	}

	p.mu.Lock()
	p.token = token
	p.mu.Unlock()

	return true
}

func (p *credentialTokenProvider) Logout() {
	p.mu.Lock()
	p.token = ""
	p.mu.Unlock()

	p.log.Info().Msg("session token dropped")
}

func (p *credentialTokenProvider) authenticate(ctx context.Context, route string) (string, bool) {
	user := models.User{Login: p.creds.Login, Password: p.creds.Password}

	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(user).
		Post(route)
	if err != nil {
		p.log.Err(err).Str("route", route).Msg("authentication request failed")
		return "", false
	}
	if resp.StatusCode() != http.StatusOK {
		p.log.Warn().
			Str("route", route).
			Int("status", resp.StatusCode()).
			Msg("authentication rejected")
		return "", false
	}

	token, err := utils.ParseBearerToken(resp.Header().Get("Authorization"))
	if err != nil {
		p.log.Err(err).Str("route", route).Msg("missing bearer token in authentication response")
		return "", false
	}

	return token, true
}
