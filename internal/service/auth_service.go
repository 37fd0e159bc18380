package service

import (
	"context"
	"fmt"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/mansoorceksport/nutritico/internal/config"
	"github.com/mansoorceksport/nutritico/internal/domain"
)

// FirebaseAuthClient defines the interface for Firebase Auth operations
// This allows mocking for tests
type FirebaseAuthClient interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// AuthService exchanges Firebase ID tokens for session tokens
type AuthService struct {
	authClient FirebaseAuthClient
	jwtConfig  config.JWTConfig
	now        func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(authClient FirebaseAuthClient, jwtConfig config.JWTConfig) *AuthService {
	return &AuthService{
		authClient: authClient,
		jwtConfig:  jwtConfig,
		now:        time.Now,
	}
}

// LoginResponse is returned to the app after a successful login
type LoginResponse struct {
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"` // seconds
}

// Login verifies a Firebase ID token and issues a session token for its uid
func (s *AuthService) Login(ctx context.Context, firebaseToken string) (*LoginResponse, error) {
	if firebaseToken == "" {
		return nil, fmt.Errorf("firebase token is required")
	}

	token, err := s.authClient.VerifyIDToken(ctx, firebaseToken)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	email, _ := token.Claims["email"].(string)
	name, _ := token.Claims["name"].(string)

	sessionToken, err := s.GenerateSessionToken(token.UID, name, email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &LoginResponse{
		UserID:    token.UID,
		Name:      name,
		Email:     email,
		Token:     sessionToken,
		ExpiresIn: int64(s.jwtConfig.AccessTokenExpiry.Seconds()),
	}, nil
}

// GenerateSessionToken creates an HS256 session token for a user
func (s *AuthService) GenerateSessionToken(userID, name, email string) (string, error) {
	now := s.now()
	claims := domain.SessionClaims{
		UserID: userID,
		Name:   name,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtConfig.AccessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(s.jwtConfig.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}
