package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog/log"
)

// GoogleCertsURL serves the keys Google signs push OIDC tokens with.
const GoogleCertsURL = "https://www.googleapis.com/oauth2/v3/certs"

var googleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

var ErrUnauthorizedPush = errors.New("unauthorized push")

type pushClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	jwt.RegisteredClaims
}

// PushVerifier checks the OIDC bearer token Pub/Sub attaches to push requests.
type PushVerifier struct {
	keyfunc        jwt.Keyfunc
	audience       string
	serviceAccount string
	stop           func()
}

// NewPushVerifier verifies tokens with the given key source. An empty
// serviceAccount accepts any verified Google identity.
func NewPushVerifier(kf jwt.Keyfunc, audience, serviceAccount string) *PushVerifier {
	return &PushVerifier{keyfunc: kf, audience: audience, serviceAccount: serviceAccount, stop: func() {}}
}

// NewGooglePushVerifier fetches Google's JWKS and refreshes it in the background
// until ctx ends or Close is called.
func NewGooglePushVerifier(ctx context.Context, audience, serviceAccount string) (*PushVerifier, error) {
	jwks, err := keyfunc.Get(GoogleCertsURL, keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			log.Warn().Err(err).Msg("Failed to refresh Google JWKS")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load Google JWKS: %w", err)
	}

	v := NewPushVerifier(jwks.Keyfunc, audience, serviceAccount)
	v.stop = jwks.EndBackground
	return v, nil
}

// Verify checks an Authorization header value.
func (v *PushVerifier) Verify(authorization string) error {
	token, ok := strings.CutPrefix(authorization, "Bearer ")
	if !ok || token == "" {
		return fmt.Errorf("%w: missing bearer token", ErrUnauthorizedPush)
	}

	var claims pushClaims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	if _, err := parser.ParseWithClaims(token, &claims, v.keyfunc); err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorizedPush, err)
	}

	if !claims.VerifyAudience(v.audience, true) {
		return fmt.Errorf("%w: audience mismatch", ErrUnauthorizedPush)
	}
	if !slices.Contains(googleIssuers, claims.Issuer) {
		return fmt.Errorf("%w: unexpected issuer %q", ErrUnauthorizedPush, claims.Issuer)
	}
	if !claims.EmailVerified {
		return fmt.Errorf("%w: email not verified", ErrUnauthorizedPush)
	}
	if v.serviceAccount != "" && !strings.EqualFold(claims.Email, v.serviceAccount) {
		return fmt.Errorf("%w: unexpected service account %q", ErrUnauthorizedPush, claims.Email)
	}
	return nil
}

func (v *PushVerifier) Close() {
	v.stop()
}
