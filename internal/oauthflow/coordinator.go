// Package oauthflow coordinates the browser-driven authorization flows
// for oauth-api platforms. Each platform has at most one pending flow,
// protected by a random anti-forgery state token and a TTL.
package oauthflow

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mrlokans/stagesync/internal/entities"
)

const defaultFlowTTL = 10 * time.Minute

// Status values of a platform's authorization flow.
type Status string

const (
	StatusNotStarted       Status = "not_started"
	StatusAuthorizing      Status = "authorizing"
	StatusAwaitingCallback Status = "awaiting_callback"
	StatusCompleted        Status = "completed"
	StatusFailed           Status = "failed"
	StatusExpired          Status = "expired"
)

var (
	// ErrStateMismatch indicates the callback carried a state token that
	// was never issued for the platform. Treated as a forgery attempt:
	// always fatal, always audited, and no code exchange is performed.
	ErrStateMismatch = errors.New("oauth state token mismatch")

	// ErrFlowExpired indicates the pending flow outlived its TTL and
	// must be restarted
	ErrFlowExpired = errors.New("oauth flow expired")

	// ErrNoPendingFlow indicates a callback arrived for a platform with
	// no flow awaiting one
	ErrNoPendingFlow = errors.New("no pending oauth flow")

	// ErrUnknownProvider indicates the platform has no OAuth provider
	// configuration registered
	ErrUnknownProvider = errors.New("no oauth provider configured")
)

// ProviderConfig holds the OAuth endpoints and client settings for one
// platform.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	Scopes       []string
}

// Exchanger swaps an authorization code for a platform credential.
type Exchanger interface {
	ExchangeCode(ctx context.Context, platformID, code, redirectURL string) (*entities.DecryptedCredential, error)
}

// securityAuditor records security-relevant events; satisfied by the
// audit repository.
type securityAuditor interface {
	LogSecurityEvent(platformID, action, description string) error
}

// Initiation is handed to the caller to start the browser redirect.
type Initiation struct {
	AuthURL string `json:"auth_url"`
	State   string `json:"state"`
}

type flow struct {
	status     Status
	stateToken string
	createdAt  time.Time
}

// Config holds coordinator-wide settings.
type Config struct {
	// RedirectBaseURL is the externally visible base of this service,
	// used to build per-platform callback URLs
	RedirectBaseURL string

	// FlowTTL bounds how long a pending flow may await its callback
	FlowTTL time.Duration
}

// Coordinator drives the per-platform authorization state machines.
type Coordinator struct {
	redirectBaseURL string
	ttl             time.Duration
	exchanger       Exchanger
	auditor         securityAuditor

	mu        sync.Mutex
	providers map[string]ProviderConfig
	flows     map[string]*flow
}

// NewCoordinator creates an OAuth flow coordinator.
func NewCoordinator(cfg Config, exchanger Exchanger, auditor securityAuditor) *Coordinator {
	ttl := cfg.FlowTTL
	if ttl <= 0 {
		ttl = defaultFlowTTL
	}
	return &Coordinator{
		redirectBaseURL: strings.TrimRight(cfg.RedirectBaseURL, "/"),
		ttl:             ttl,
		exchanger:       exchanger,
		auditor:         auditor,
		providers:       make(map[string]ProviderConfig),
		flows:           make(map[string]*flow),
	}
}

// RegisterProvider binds an OAuth provider configuration to a platform.
func (c *Coordinator) RegisterProvider(platformID string, cfg ProviderConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.providers[platformID] = cfg
}

// RedirectURL returns the callback URL issued to the provider for a
// platform.
func (c *Coordinator) RedirectURL(platformID string) string {
	return c.redirectBaseURL + "/api/oauth/" + platformID + "/callback"
}

// Initiate starts (or restarts) the authorization flow for a platform
// and returns the URL to send the operator's browser to.
func (c *Coordinator) Initiate(platformID string) (*Initiation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.expireStaleLocked()

	provider, ok := c.providers[platformID]
	if !ok {
		return nil, fmt.Errorf("%w for platform %q", ErrUnknownProvider, platformID)
	}

	c.flows[platformID] = &flow{status: StatusAuthorizing, createdAt: time.Now()}

	state, err := generateState()
	if err != nil {
		delete(c.flows, platformID)
		return nil, fmt.Errorf("failed to generate security state: %w", err)
	}

	authURL, err := buildAuthURL(provider, state, c.RedirectURL(platformID))
	if err != nil {
		delete(c.flows, platformID)
		return nil, err
	}

	c.flows[platformID] = &flow{
		status:     StatusAwaitingCallback,
		stateToken: state,
		createdAt:  time.Now(),
	}

	return &Initiation{AuthURL: authURL, State: state}, nil
}

// Complete handles the provider callback. The state token must match
// the one issued by Initiate; on mismatch no code exchange happens and
// a security event is recorded. On success the exchanged credential is
// returned for the caller to persist.
func (c *Coordinator) Complete(ctx context.Context, platformID, code, state string) (*entities.DecryptedCredential, error) {
	c.mu.Lock()
	pending, ok := c.flows[platformID]
	if !ok || pending.status != StatusAwaitingCallback {
		c.mu.Unlock()
		return nil, ErrNoPendingFlow
	}

	if time.Since(pending.createdAt) > c.ttl {
		pending.status = StatusExpired
		c.mu.Unlock()
		return nil, ErrFlowExpired
	}

	if state == "" || state != pending.stateToken {
		pending.status = StatusFailed
		c.mu.Unlock()

		c.auditSecurityEvent(platformID, "oauth_state_mismatch",
			"callback carried a state token that was never issued")
		return nil, ErrStateMismatch
	}
	c.mu.Unlock()

	cred, err := c.exchanger.ExchangeCode(ctx, platformID, code, c.RedirectURL(platformID))

	c.mu.Lock()
	if err != nil {
		pending.status = StatusFailed
		c.mu.Unlock()
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}
	pending.status = StatusCompleted
	c.mu.Unlock()

	return cred, nil
}

// StatusOf reports the current flow status for a platform.
func (c *Coordinator) StatusOf(platformID string) Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.expireStaleLocked()

	pending, ok := c.flows[platformID]
	if !ok {
		return StatusNotStarted
	}
	return pending.status
}

// expireStaleLocked marks pending flows past the TTL as expired.
// Callers must hold c.mu.
func (c *Coordinator) expireStaleLocked() {
	cutoff := time.Now().Add(-c.ttl)
	for _, pending := range c.flows {
		if pending.status == StatusAwaitingCallback && pending.createdAt.Before(cutoff) {
			pending.status = StatusExpired
		}
	}
}

func (c *Coordinator) auditSecurityEvent(platformID, action, description string) {
	if c.auditor == nil {
		return
	}
	if err := c.auditor.LogSecurityEvent(platformID, action, description); err != nil {
		log.Printf("Failed to record security event for %s: %v", platformID, err)
	}
}

func buildAuthURL(provider ProviderConfig, state, redirectURL string) (string, error) {
	u, err := url.Parse(provider.AuthURL)
	if err != nil {
		return "", fmt.Errorf("invalid auth URL: %w", err)
	}

	params := u.Query()
	params.Set("response_type", "code")
	params.Set("client_id", provider.ClientID)
	params.Set("redirect_uri", redirectURL)
	if len(provider.Scopes) > 0 {
		params.Set("scope", strings.Join(provider.Scopes, " "))
	}
	params.Set("state", state)
	u.RawQuery = params.Encode()

	return u.String(), nil
}

func generateState() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
