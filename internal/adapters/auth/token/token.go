// Package token implementa emisión y verificación de tokens de sesión
// HS256 con una lista de revocación en memoria para sign-out.
package token

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"medpal/internal/ports/auth"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrTokenEmpty   = errors.New("token is empty")
	ErrTokenInvalid = errors.New("token is invalid or expired")
	ErrTokenRevoked = errors.New("token has been revoked")
)

type Config struct {
	Secret []byte
	TTL    time.Duration // default 24h
}

type sessionClaims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Service implementa auth.TokenIssuer, auth.AuthVerifier y auth.TokenRevoker.
type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time // jti -> expiración del token revocado
}

func New(cfg Config) *Service {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		secret:  cfg.Secret,
		ttl:     ttl,
		now:     time.Now,
		revoked: make(map[string]time.Time),
	}
}

// WithNow inyecta el reloj (para tests).
func (s *Service) WithNow(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Service) Issue(ctx context.Context, in auth.IssueInput) (string, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return "", errors.New("user id required")
	}

	now := s.now()
	claims := sessionClaims{
		Email: in.Email,
		Name:  in.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   in.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.secret)
}

func (s *Service) Verify(ctx context.Context, tokenStr string) (auth.Claims, error) {
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return auth.Claims{}, ErrTokenEmpty
	}

	claims := &sessionClaims{}
	t, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !t.Valid {
		return auth.Claims{}, ErrTokenInvalid
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return auth.Claims{}, ErrTokenInvalid
	}

	s.mu.Lock()
	_, revoked := s.revoked[claims.ID]
	s.mu.Unlock()
	if revoked {
		return auth.Claims{}, ErrTokenRevoked
	}

	return auth.Claims{
		UserID:      claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.Name,
		TokenID:     claims.ID,
	}, nil
}

// Revoke invalida el token hasta que expire solo. La lista vive en memoria:
// un restart limpia las revocaciones junto con las sesiones que protegían.
func (s *Service) Revoke(ctx context.Context, tokenID string) error {
	if strings.TrimSpace(tokenID) == "" {
		return nil
	}

	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Prune oportunista de entradas ya vencidas.
	for id, exp := range s.revoked {
		if exp.Before(now) {
			delete(s.revoked, id)
		}
	}

	s.revoked[tokenID] = now.Add(s.ttl)
	return nil
}
