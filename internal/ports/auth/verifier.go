package auth

import (
	"context"
	"time"
)

// AuthVerifier verifica un token y devuelve claims o error.
type AuthVerifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}

// TokenIssuer emite tokens de acceso para claims ya autenticados.
// El refresh token solo lleva el user id; al canjearlo se recargan los claims.
type TokenIssuer interface {
	Issue(ctx context.Context, claims Claims) (token string, expiresAt time.Time, err error)
	IssueRefresh(ctx context.Context, userID string) (token string, expiresAt time.Time, err error)
	VerifyRefresh(ctx context.Context, token string) (userID string, err error)
}
