package domain

import (
	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims are the claims of the session token issued after a Firebase login
type SessionClaims struct {
	UserID string `json:"user_id"` // Firebase UID, also the state document id
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}
