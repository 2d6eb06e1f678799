package auth

import "context"

type IssueInput struct {
	UserID      string
	Email       string
	DisplayName string
}

// TokenIssuer emite un token de sesión para un usuario autenticado.
type TokenIssuer interface {
	Issue(ctx context.Context, in IssueInput) (string, error)
}
