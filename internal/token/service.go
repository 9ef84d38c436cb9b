// Package token issues and validates the bearer credentials the API
// accepts. Locally issued tokens are HS256 JWTs; when a Firebase auth
// client is configured, Firebase ID tokens are accepted as well.
package token

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v4"

	"github.com/jredh-dev/surpluserve/pkg/models"
)

// Service handles JWT generation and validation.
type Service struct {
	signingKey []byte
	issuer     string
	authClient *auth.Client // optional; nil disables Firebase verification
}

// Claims are the JWT claims carried by locally issued tokens.
type Claims struct {
	UserID string      `json:"uid"`
	Role   models.Role `json:"role"`
	Name   string      `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// New creates a new token service. authClient may be nil.
func New(signingKey, issuer string, authClient *auth.Client) *Service {
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		authClient: authClient,
	}
}

// GenerateSigningKey generates a secure random signing key.
func GenerateSigningKey() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate signing key: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// GenerateToken creates a JWT for an authenticated account.
func (s *Service) GenerateToken(u *models.User, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: u.ID,
		Role:   u.Role,
		Name:   u.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.signingKey)
}

// ValidateToken validates a locally issued JWT and returns its claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}

// ValidateFirebaseToken verifies a Firebase ID token and maps it onto the
// same claims shape. The role comes from a "role" custom claim; tokens
// without one are rejected rather than guessed at.
func (s *Service) ValidateFirebaseToken(ctx context.Context, idToken string) (*Claims, error) {
	if s.authClient == nil {
		return nil, fmt.Errorf("firebase verification not configured")
	}
	token, err := s.authClient.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("invalid Firebase token: %w", err)
	}

	role, _ := token.Claims["role"].(string)
	if role == "" {
		return nil, fmt.Errorf("firebase token has no role claim")
	}
	name, _ := token.Claims["name"].(string)

	return &Claims{
		UserID: token.UID,
		Role:   models.Role(role),
		Name:   name,
	}, nil
}
