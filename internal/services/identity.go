package services

import (
	"context"
	"errors"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/schedulesync/backend/internal/config"
	"github.com/schedulesync/backend/internal/models"
	"github.com/schedulesync/backend/pkg/logger"
)

var (
	ErrInvalidToken        = errors.New("invalid token")
	ErrUnsupportedProvider = errors.New("unsupported provider")
)

// IdentityProfile carries the claims extracted from a verified identity
// assertion. SubjectID is the provider-scoped stable identifier used as the
// durable join key to a local account.
type IdentityProfile struct {
	SubjectID string
	Email     string
	FirstName string
	LastName  string
	AvatarURL *string
}

// IdentityVerifier validates a raw federated ID token and extracts its
// profile claims. Implementations are pure: a single attempt either succeeds
// or fails, and nothing is persisted.
type IdentityVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*IdentityProfile, error)
}

const googleIssuerURL = "https://accounts.google.com"

// GoogleVerifier checks Google-issued OIDC ID tokens: signature against
// Google's published keys, expiry, and audience when a client ID is
// configured. Provider discovery happens lazily on first use and is retried
// on every call until it succeeds, so a transient failure during one attempt
// never pins later attempts to the same outcome.
type GoogleVerifier struct {
	cfg config.GoogleConfig

	mu       sync.Mutex
	verifier *oidc.IDTokenVerifier
}

func NewGoogleVerifier(cfg config.GoogleConfig) *GoogleVerifier {
	return &GoogleVerifier{cfg: cfg}
}

func (g *GoogleVerifier) idTokenVerifier(ctx context.Context) (*oidc.IDTokenVerifier, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.verifier != nil {
		return g.verifier, nil
	}

	provider, err := oidc.NewProvider(ctx, googleIssuerURL)
	if err != nil {
		return nil, err
	}

	oidcCfg := &oidc.Config{ClientID: g.cfg.ClientID}
	if g.cfg.ClientID == "" {
		oidcCfg.SkipClientIDCheck = true
	}
	g.verifier = provider.Verifier(oidcCfg)
	return g.verifier, nil
}

func (g *GoogleVerifier) Verify(ctx context.Context, rawIDToken string) (*IdentityProfile, error) {
	if rawIDToken == "" {
		return nil, ErrInvalidToken
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.VerifyTimeout)
	defer cancel()

	verifier, err := g.idTokenVerifier(ctx)
	if err != nil {
		logger.Warn("google_discovery_failed", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, ErrInvalidToken
	}

	idToken, err := verifier.Verify(ctx, rawIDToken)
	if err != nil {
		logger.Warn("google_token_rejected", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, ErrInvalidToken
	}

	var claims struct {
		Email      string `json:"email"`
		GivenName  string `json:"given_name"`
		FamilyName string `json:"family_name"`
		Picture    string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, ErrInvalidToken
	}
	if idToken.Subject == "" || claims.Email == "" {
		return nil, ErrInvalidToken
	}

	profile := &IdentityProfile{
		SubjectID: idToken.Subject,
		Email:     claims.Email,
		FirstName: claims.GivenName,
		LastName:  claims.FamilyName,
	}
	if claims.Picture != "" {
		picture := claims.Picture
		profile.AvatarURL = &picture
	}

	return profile, nil
}

// VerifierFor selects the verifier for a provider tag. The provider set is
// closed: dispatch is a switch, not a mutable registry.
func VerifierFor(provider models.AuthProvider, google IdentityVerifier) (IdentityVerifier, error) {
	switch provider {
	case models.AuthProviderGoogle:
		return google, nil
	default:
		return nil, ErrUnsupportedProvider
	}
}
