package models

import "github.com/golang-jwt/jwt/v5"

// IdentityClaims represents the JWT claims this service reads from the
// external identity provider's bearer tokens.
type IdentityClaims struct {
	jwt.RegisteredClaims        // Standard JWT claims (sub, iss, aud, exp, iat, etc.)
	Email                string `json:"email"`
	Name                 string `json:"name"`
	PreferredUsername    string `json:"preferred_username"`
}

// GetUserID returns the user ID from the JWT subject claim.
// This is the primary identifier for the authenticated user.
func (c *IdentityClaims) GetUserID() string {
	return c.Subject
}
