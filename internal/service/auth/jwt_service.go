package auth

import (
	"context"
	"time"
)

// JWTService defines operations for managing JWT access tokens.
// The comment channel only validates tokens; issuing them is the job of the
// login flow and of the developer CLI.
type JWTService interface {
	// GenerateToken creates a signed JWT access token for userID.
	GenerateToken(ctx context.Context, userID int64) (string, error)

	// ValidateToken validates the provided access token string and extracts the claims.
	// Returns ErrMissingToken for an empty string, ErrExpiredToken for an expired
	// token and ErrInvalidToken for anything else that does not verify.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims holds the validated contents of an access token.
type Claims struct {
	// UserID is parsed from the subject claim.
	UserID int64

	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	ID        string
}
