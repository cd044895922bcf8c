package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const (
	defaultSessionTTL = 24 * time.Hour
	stateTTL          = 10 * time.Minute

	purposeGmailState = "gmail_state"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

type JWTClaims struct {
	UserID  int64  `json:"userId"`
	Email   string `json:"email,omitempty"`
	Purpose string `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

// JWT issues HS256 session tokens and short-lived OAuth state tokens.
type JWT struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewJWT(secret string) *JWT {
	return &JWT{secret: []byte(secret), ttl: defaultSessionTTL, now: time.Now}
}

// WithTTL sets the session lifetime.
func (j *JWT) WithTTL(ttl time.Duration) *JWT {
	if ttl > 0 {
		j.ttl = ttl
	}
	return j
}

// TTL is the session lifetime, used for the cookie max age.
func (j *JWT) TTL() time.Duration {
	return j.ttl
}

func (j *JWT) Generate(userID int64, email string) (string, error) {
	return j.sign(JWTClaims{UserID: userID, Email: email}, j.ttl)
}

// Validate accepts session tokens only.
func (j *JWT) Validate(token string) (*JWTClaims, error) {
	claims, err := j.parse(token)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// SignState binds an OAuth consent round trip to the user who started it.
func (j *JWT) SignState(userID int64) (string, error) {
	return j.sign(JWTClaims{UserID: userID, Purpose: purposeGmailState}, stateTTL)
}

func (j *JWT) VerifyState(state string) (int64, error) {
	claims, err := j.parse(state)
	if err != nil {
		return 0, err
	}
	if claims.Purpose != purposeGmailState || claims.UserID <= 0 {
		return 0, ErrInvalidToken
	}
	return claims.UserID, nil
}

func (j *JWT) sign(claims JWTClaims, ttl time.Duration) (string, error) {
	now := j.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   strconv.FormatInt(claims.UserID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (j *JWT) parse(token string) (*JWTClaims, error) {
	var claims JWTClaims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	_, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return j.secret, nil
	})
	switch {
	case err == nil:
		return &claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
}
