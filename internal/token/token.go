package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrTokenExpired signals a structurally valid token past its expiry.
	ErrTokenExpired = errors.New("token: expired")
	// ErrTokenInvalid signals a missing, malformed or badly signed token.
	ErrTokenInvalid = errors.New("token: invalid")
)

// Identity is the single claims shape carried by both access and refresh
// tokens. Every issuance path goes through it.
type Identity struct {
	UserID  int64
	Email   string
	Role    string
	Subtype string
}

// Claims is the JWT claims bundle for session tokens.
type Claims struct {
	Email   string `json:"email"`
	Role    string `json:"role"`
	Subtype string `json:"subtype,omitempty"`
	jwt.RegisteredClaims
}

// Identity reconstructs the identity carried by the claims.
func (c *Claims) Identity() (Identity, error) {
	var userID int64
	if _, err := fmt.Sscanf(c.Subject, "%d", &userID); err != nil {
		return Identity{}, fmt.Errorf("%w: bad subject %q", ErrTokenInvalid, c.Subject)
	}
	return Identity{
		UserID:  userID,
		Email:   c.Email,
		Role:    c.Role,
		Subtype: c.Subtype,
	}, nil
}

// Pair bundles the two cookies issued at login.
type Pair struct {
	Access  string
	Refresh string
}

// Config holds token service configuration.
type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// Service issues and verifies the stateless session token pair. Tokens are
// HS256-signed claim bundles; nothing is persisted server-side, so logout
// clears cookies without revoking outstanding tokens.
type Service struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	now           func() time.Time
}

// NewService creates a new token service.
func NewService(cfg Config) *Service {
	return &Service{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		issuer:        cfg.Issuer,
		now:           time.Now,
	}
}

// WithClock overrides the clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// IssuePair mints a fresh access/refresh pair for the identity.
func (s *Service) IssuePair(id Identity) (Pair, error) {
	access, err := s.sign(id, s.accessSecret, s.accessTTL)
	if err != nil {
		return Pair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := s.sign(id, s.refreshSecret, s.refreshTTL)
	if err != nil {
		return Pair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return Pair{Access: access, Refresh: refresh}, nil
}

// VerifyAccess validates an access token and returns its claims.
func (s *Service) VerifyAccess(tokenString string) (*Claims, error) {
	return s.verify(tokenString, s.accessSecret)
}

// VerifyRefresh validates a refresh token and returns its claims.
func (s *Service) VerifyRefresh(tokenString string) (*Claims, error) {
	return s.verify(tokenString, s.refreshSecret)
}

// Renew verifies the refresh token and mints a new access token carrying the
// same identity claims. Only the request gateway calls this.
func (s *Service) Renew(refreshToken string) (string, error) {
	claims, err := s.VerifyRefresh(refreshToken)
	if err != nil {
		return "", err
	}
	id, err := claims.Identity()
	if err != nil {
		return "", err
	}
	access, err := s.sign(id, s.accessSecret, s.accessTTL)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return access, nil
}

// AccessTTL exposes the access token lifetime for cookie max-age.
func (s *Service) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL exposes the refresh token lifetime for cookie max-age.
func (s *Service) RefreshTTL() time.Duration { return s.refreshTTL }

func (s *Service) sign(id Identity, secret []byte, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		Email:   id.Email,
		Role:    id.Role,
		Subtype: id.Subtype,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", id.UserID),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (s *Service) verify(tokenString string, secret []byte) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrTokenInvalid
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
