package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/imprecode/gestion-visitas/internal/directory"
	"github.com/imprecode/gestion-visitas/internal/models"
	"github.com/imprecode/gestion-visitas/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials signals a failed login, local or directory.
	ErrInvalidCredentials = errors.New("identity: invalid credentials")
	// ErrUserDisabled signals a soft-deleted account.
	ErrUserDisabled = errors.New("identity: user disabled")
	// ErrWeakPassword signals a password below the minimum length.
	ErrWeakPassword = errors.New("identity: password must be at least 8 characters")
)

// Service resolves logins against the directory (or the bypass stub) and
// provisions user records on first login.
type Service struct {
	userRepo *repository.UserRepository
	resolver directory.Resolver
	rules    []directory.Rule
	logger   *zap.Logger
}

// NewService creates a new identity service.
func NewService(
	userRepo *repository.UserRepository,
	resolver directory.Resolver,
	rules []directory.Rule,
	logger *zap.Logger,
) *Service {
	if rules == nil {
		rules = directory.DefaultRules()
	}
	return &Service{
		userRepo: userRepo,
		resolver: resolver,
		rules:    rules,
		logger:   logger,
	}
}

// Login authenticates the email/password pair. Accounts created by an admin
// carry a local password hash and are checked with bcrypt; everyone else goes
// through the directory. The first successful directory login provisions the
// user record; the stored role stays sticky even if the directory title
// changes later.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, error) {
	existing, err := s.userRepo.GetByEmail(email)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if existing != nil && existing.DeletedAt != nil {
		return nil, ErrUserDisabled
	}

	if existing != nil && existing.PasswordHash != "" {
		if bcrypt.CompareHashAndPassword([]byte(existing.PasswordHash), []byte(password)) != nil {
			return nil, ErrInvalidCredentials
		}
		return existing, nil
	}

	attrs, err := s.resolver.Authenticate(ctx, email, password)
	if err != nil {
		if errors.Is(err, directory.ErrAuth) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("directory authenticate: %w", err)
	}

	if existing != nil {
		// Role provisioned on first login is authoritative from then on.
		return existing, nil
	}

	role, subtype := directory.MapTitle(attrs.Title, s.rules)
	user := &models.User{
		Email:      email,
		Name:       attrs.DisplayName,
		Role:       role,
		Subtype:    subtype,
		Department: attrs.Department,
		Phone:      attrs.Phone,
	}
	if err := s.userRepo.Create(nil, user); err != nil {
		return nil, fmt.Errorf("provision user: %w", err)
	}

	s.logger.Info("Provisioned user from directory",
		zap.String("email", email),
		zap.String("title", attrs.Title),
		zap.String("role", role),
		zap.String("subtype", subtype))

	return user, nil
}

// CreateUser creates a local account with a bcrypt password hash. Admin use.
func (s *Service) CreateUser(ctx context.Context, user *models.User, password string) error {
	if len(password) < 8 {
		return ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = string(hash)
	if user.Role == "" {
		user.Role = models.RoleSinAsignar
	}
	if err := s.userRepo.Create(nil, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("Created local user",
		zap.String("email", user.Email),
		zap.String("role", user.Role))
	return nil
}

// ChangePassword verifies the current password and stores a new hash.
func (s *Service) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if user == nil || user.PasswordHash == "" {
		return ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)) != nil {
		return ErrInvalidCredentials
	}
	if len(next) < 8 {
		return ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.userRepo.UpdatePassword(nil, userID, string(hash))
}
