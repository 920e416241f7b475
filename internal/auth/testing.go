package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
)

// WithClaims returns a new context carrying the given claims.
// This is primarily for testing purposes.
func WithClaims(ctx context.Context, claims *UserClaims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// NewTestClaims creates UserClaims for the given user and tenant.
// This is primarily for testing purposes.
func NewTestClaims(userID, tenantID string) *UserClaims {
	return &UserClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: userID,
		},
		TenantID: tenantID,
	}
}
