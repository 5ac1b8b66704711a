package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kelseyhightower/envconfig"

	"github.com/ovaphlow/pitchfork/service-shift-go/internal/identity/entity"
	"github.com/ovaphlow/pitchfork/service-shift-go/pkg/apperr"
)

// Config holds token settings.
type Config struct {
	Secret     string        `envconfig:"AUTH_SECRET" required:"true"`
	Issuer     string        `envconfig:"AUTH_ISSUER" default:"shift-api"`
	AccessTTL  time.Duration `envconfig:"AUTH_ACCESS_TTL" default:"15m"`
	RefreshTTL time.Duration `envconfig:"AUTH_REFRESH_TTL" default:"720h"`
}

// ConfigFromEnv reads token settings from the environment.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("auth config: %w", err)
	}
	return cfg, nil
}

// Claims carried by an access token. Version must match the identity's
// current version for the token to be accepted.
type Claims struct {
	Username string `json:"username"`
	Version  int64  `json:"v"`
	jwt.RegisteredClaims
}

// SessionStore persists refresh sessions.
type SessionStore interface {
	Save(ctx context.Context, tokenHash, identityID string, expiresAt time.Time) (int64, error)
	Get(ctx context.Context, tokenHash string) (int64, string, time.Time, error)
	// Delete reports how many sessions were removed.
	Delete(ctx context.Context, tokenHash string) (int64, error)
}

var ErrInvalidToken = apperr.Wrap(apperr.ErrUnauthenticated, "invalid token")

// TokenService issues and verifies HS256 access tokens and opaque refresh tokens.
type TokenService struct {
	cfg      Config
	sessions SessionStore
	now      func() time.Time
}

func NewTokenService(cfg Config, sessions SessionStore) *TokenService {
	return &TokenService{cfg: cfg, sessions: sessions, now: time.Now}
}

// Issue creates an access token and a persisted refresh token for u.
func (s *TokenService) Issue(ctx context.Context, u *entity.Identity) (*TokenPair, error) {
	now := s.now()
	claims := Claims{
		Username: u.Username,
		Version:  u.Version,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTTL)),
		},
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	rtBytes := make([]byte, 32)
	if _, err := rand.Read(rtBytes); err != nil {
		return nil, err
	}
	refresh := base64.RawURLEncoding.EncodeToString(rtBytes)
	if _, err := s.sessions.Save(ctx, hashToken(refresh), u.ID, now.Add(s.cfg.RefreshTTL)); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.cfg.AccessTTL.Seconds()),
	}, nil
}

// ParseAccess verifies signature, issuer and expiry of an access token.
func (s *TokenService) ParseAccess(token string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithTimeFunc(s.now),
	)
	claims := &Claims{}
	tkn, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(s.cfg.Secret), nil
	})
	if err != nil || !tkn.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Consume validates a refresh token and revokes it, returning the owning
// identity id. The caller issues a new pair (rotation).
func (s *TokenService) Consume(ctx context.Context, refresh string) (string, error) {
	h := hashToken(refresh)
	_, identityID, expiresAt, err := s.sessions.Get(ctx, h)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrInvalidToken
		}
		return "", err
	}
	rows, err := s.sessions.Delete(ctx, h)
	if err != nil {
		return "", err
	}
	// a concurrent refresh already rotated this token
	if rows == 0 {
		return "", ErrInvalidToken
	}
	if expiresAt.Before(s.now()) {
		return "", ErrInvalidToken
	}
	return identityID, nil
}

// Revoke removes a refresh token. Unknown tokens are not an error.
func (s *TokenService) Revoke(ctx context.Context, refresh string) error {
	_, err := s.sessions.Delete(ctx, hashToken(refresh))
	return err
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
