package federated

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	apperrors "github.com/agrigpt/backend/pkg/errors"
)

// DefaultIssuer is the token issuer accepted when none is configured.
const DefaultIssuer = "https://accounts.google.com"

// Identity is the set of verified claims extracted from a provider-signed
// assertion. UID is the provider's stable subject identifier.
type Identity struct {
	UID           string
	Email         string
	EmailVerified bool
	DisplayName   string
	Picture       string
}

// Verifier validates a raw identity assertion and extracts the identity it
// attests to.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (*Identity, error)
}

// Options configures the Google verifier.
type Options struct {
	// Issuer overrides the discovery issuer. Defaults to DefaultIssuer.
	Issuer string
	// ClientID, when set, is enforced as the token audience.
	ClientID string
	// ClientSecret, when set, also allows clients to submit a one-time
	// authorization code instead of an ID token. The code is exchanged at
	// the provider's token endpoint.
	ClientSecret string
	// RedirectURL is sent during code exchange when the provider requires it.
	RedirectURL string
	// HTTPClient overrides the client used for discovery and key fetches.
	HTTPClient *http.Client
	// Timeout bounds the discovery round trip.
	Timeout time.Duration
}

// GoogleVerifier validates Google-signed ID tokens against the provider's
// published keys. Discovery is performed lazily on first use so construction
// never touches the network.
type GoogleVerifier struct {
	opts Options

	mu       sync.Mutex
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
}

// NewGoogleVerifier builds a verifier for Google identity assertions.
func NewGoogleVerifier(opts Options) *GoogleVerifier {
	if strings.TrimSpace(opts.Issuer) == "" {
		opts.Issuer = DefaultIssuer
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &GoogleVerifier{opts: opts}
}

// Verify checks the assertion's signature, issuer, audience and expiry, then
// extracts the attested identity. When a client secret is configured the
// assertion may also be a one-time authorization code, which is exchanged for
// an ID token first. Any token defect maps to ErrInvalidAssertion; only
// discovery failures surface as internal errors.
func (v *GoogleVerifier) Verify(ctx context.Context, rawToken string) (*Identity, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return nil, apperrors.ErrInvalidAssertion
	}

	if !looksLikeIDToken(rawToken) {
		exchanged, err := v.exchangeCode(ctx, rawToken)
		if err != nil {
			return nil, err
		}
		rawToken = exchanged
	}

	verifier, err := v.tokenVerifier(ctx)
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	idToken, err := verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, apperrors.ErrInvalidAssertion.WithInternal(err)
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, apperrors.ErrInvalidAssertion.WithInternal(err)
	}

	if idToken.Subject == "" || claims.Email == "" {
		return nil, apperrors.ErrInvalidAssertion.WithInternal(errors.New("assertion missing subject or email"))
	}

	return &Identity{
		UID:           idToken.Subject,
		Email:         strings.ToLower(claims.Email),
		EmailVerified: claims.EmailVerified,
		DisplayName:   claims.Name,
		Picture:       claims.Picture,
	}, nil
}

// looksLikeIDToken reports whether the assertion has the three-segment shape
// of a compact JWT. Anything else is treated as an authorization code.
func looksLikeIDToken(raw string) bool {
	return strings.Count(raw, ".") == 2
}

// exchangeCode trades a one-time authorization code for the ID token embedded
// in the provider's token response.
func (v *GoogleVerifier) exchangeCode(ctx context.Context, code string) (string, error) {
	if strings.TrimSpace(v.opts.ClientSecret) == "" {
		return "", apperrors.ErrInvalidAssertion.WithInternal(errors.New("code exchange not configured"))
	}

	provider, err := v.discover(ctx)
	if err != nil {
		return "", apperrors.ErrInternalServer.WithInternal(err)
	}

	conf := &oauth2.Config{
		ClientID:     v.opts.ClientID,
		ClientSecret: v.opts.ClientSecret,
		RedirectURL:  v.opts.RedirectURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
	}

	if v.opts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, v.opts.HTTPClient)
	}
	ctx, cancel := context.WithTimeout(ctx, v.opts.Timeout)
	defer cancel()

	token, err := conf.Exchange(ctx, code)
	if err != nil {
		return "", apperrors.ErrInvalidAssertion.WithInternal(err)
	}

	rawID, ok := token.Extra("id_token").(string)
	if !ok || rawID == "" {
		return "", apperrors.ErrInvalidAssertion.WithInternal(errors.New("token response missing id_token"))
	}
	return rawID, nil
}

func (v *GoogleVerifier) tokenVerifier(ctx context.Context) (*oidc.IDTokenVerifier, error) {
	provider, err := v.discover(ctx)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.verifier == nil {
		cfg := &oidc.Config{ClientID: v.opts.ClientID}
		if strings.TrimSpace(v.opts.ClientID) == "" {
			cfg.SkipClientIDCheck = true
		}
		v.verifier = provider.Verifier(cfg)
	}
	return v.verifier, nil
}

// discover performs OIDC discovery once and caches the provider.
func (v *GoogleVerifier) discover(ctx context.Context) (*oidc.Provider, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.provider != nil {
		return v.provider, nil
	}

	if v.opts.HTTPClient != nil {
		ctx = oidc.ClientContext(ctx, v.opts.HTTPClient)
	}
	ctx, cancel := context.WithTimeout(ctx, v.opts.Timeout)
	defer cancel()

	provider, err := oidc.NewProvider(ctx, v.opts.Issuer)
	if err != nil {
		return nil, fmt.Errorf("federated: discovery failed: %w", err)
	}

	v.provider = provider
	return v.provider, nil
}

var _ Verifier = (*GoogleVerifier)(nil)
