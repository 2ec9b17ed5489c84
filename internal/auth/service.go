package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// SessionIssuer creates sessions for authenticated identities.
type SessionIssuer interface {
	IssueSession(ctx context.Context, identity domain.Identity) (string, error)
}

// AccountService handles sign-up and sign-in.
type AccountService struct {
	users    repository.UserRepository
	profiles repository.ProfileRepository
	issuer   SessionIssuer
	log      *zap.Logger
}

// NewAccountService creates a new AccountService.
func NewAccountService(
	users repository.UserRepository,
	profiles repository.ProfileRepository,
	issuer SessionIssuer,
	log *zap.Logger,
) *AccountService {
	return &AccountService{
		users:    users,
		profiles: profiles,
		issuer:   issuer,
		log:      log,
	}
}

// SignUpRequest contains the parameters for creating a driver account.
type SignUpRequest struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
}

// SignUp creates the account and its driver profile, then signs in.
// The user and profile rows are written independently; a profile failure
// leaves the account without a profile, and the dashboard will refuse it.
func (s *AccountService) SignUp(ctx context.Context, req SignUpRequest) (string, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if name == "" || email == "" || req.Password == "" || req.ConfirmPassword == "" {
		return "", fmt.Errorf("%w: all fields are required", ErrValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("%w: invalid email", ErrValidation)
	}
	if req.Password != req.ConfirmPassword {
		return "", fmt.Errorf("%w: passwords do not match", ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return "", ErrEmailTaken
		}
		s.log.Error("failed to create user", zap.Error(err))
		return "", fmt.Errorf("create user: %w", err)
	}

	profile := &domain.Profile{
		UserID:      user.ID,
		Name:        name,
		Status:      domain.ProfileStatusActive,
		OrdersToday: 0,
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		s.log.Error("failed to create profile", zap.String("user_id", user.ID), zap.Error(err))
		return "", fmt.Errorf("create profile: %w", err)
	}

	s.log.Info("driver signed up", zap.String("user_id", user.ID))
	return s.issuer.IssueSession(ctx, domain.Identity{ID: user.ID, Email: user.Email})
}

// SignIn verifies credentials and returns a new session token.
func (s *AccountService) SignIn(ctx context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("lookup user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	return s.issuer.IssueSession(ctx, domain.Identity{ID: user.ID, Email: user.Email})
}
