package auth

import "context"

// AuthVerifier verifica un token y devuelve claims o error.
type AuthVerifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}

// TokenRevoker invalida un token emitido (sign-out).
type TokenRevoker interface {
	Revoke(ctx context.Context, tokenID string) error
}
