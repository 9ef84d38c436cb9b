// Package auth handles account registration and login.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/jredh-dev/surpluserve/internal/store"
	"github.com/jredh-dev/surpluserve/pkg/identity"
	"github.com/jredh-dev/surpluserve/pkg/models"
)

const bcryptCost = 12

// Service handles authentication operations.
type Service struct {
	store store.Store
}

// New creates a new auth service.
func New(st store.Store) *Service {
	return &Service{store: st}
}

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func CheckPassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// RegisterInput is the validated registration request.
type RegisterInput struct {
	Email        string
	Password     string
	Name         string
	Role         models.Role
	Organization string
	Phone        string
}

// Register creates a new donor or recipient account. Duplicate detection
// runs on the normalized email hash, so Gmail aliasing tricks do not mint
// second accounts.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if in.Email == "" || in.Password == "" || in.Name == "" {
		return nil, ErrInvalidInput
	}
	if in.Role != models.RoleDonor && in.Role != models.RoleRecipient {
		return nil, ErrInvalidInput
	}

	hash := identity.EmailHash(in.Email)
	existing, err := s.store.GetUserByEmailHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	pwHash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New().String(),
		Email:        identity.NormalizeEmail(in.Email),
		EmailHash:    hash,
		Name:         in.Name,
		Organization: in.Organization,
		Phone:        identity.NormalizePhone(in.Phone),
		Role:         in.Role,
		PasswordHash: pwHash,
		CreatedAt:    now,
		LastLoginAt:  now,
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Login verifies credentials and returns the account.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.store.GetUserByEmailHash(ctx, identity.EmailHash(email))
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if err := CheckPassword(password, user.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := s.store.UpdateLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("update last login: %w", err)
	}
	return user, nil
}
