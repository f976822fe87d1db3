package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketplace/internal/auth"
	"marketplace/internal/config"
	"marketplace/internal/database"
	"marketplace/internal/domain"
	"marketplace/internal/models"

	"github.com/rs/zerolog"
)

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Phone    string
}

// Session is the result of a successful login.
type Session struct {
	User           *models.User
	AccessToken    string
	AccessExpires  time.Time
	RefreshToken   string
	RefreshExpires time.Time
}

type AuthService struct {
	users   domain.UserRepository
	tokens  *auth.TokenManager
	hasher  *auth.PasswordHasher
	limiter domain.RateLimiter
	config  config.AuthConfig
	logger  *zerolog.Logger
}

func NewAuthService(
	users domain.UserRepository,
	tokens *auth.TokenManager,
	hasher *auth.PasswordHasher,
	limiter domain.RateLimiter,
	cfg config.AuthConfig,
	logger *zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:   users,
		tokens:  tokens,
		hasher:  hasher,
		limiter: limiter,
		config:  cfg,
		logger:  logger,
	}
}

// Register creates an account with the given role. Phone is kept for
// providers only.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, role string) (*models.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Name == "" || in.Email == "" || in.Password == "" {
		return nil, validationf("All fields are required")
	}
	if len(in.Password) < models.MinPasswordLength {
		return nil, validationf("Password must be at least %d characters", models.MinPasswordLength)
	}
	if role != models.RoleCustomer && role != models.RoleProvider {
		return nil, validationf("Unknown role %q", role)
	}

	exists, err := s.users.EmailExists(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, database.ErrEmailTaken
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         role,
	}
	if user.IsProvider() {
		user.Phone = strings.TrimSpace(in.Phone)
	}

	// the unique index still catches a concurrent registration with the same email
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("user_id", user.ID).Str("role", role).Msg("User registered")
	return user, nil
}

// Login verifies credentials and starts a new session. Storing the new
// refresh token invalidates any earlier one for the same user.
func (s *AuthService) Login(ctx context.Context, email, password, clientKey string) (*Session, error) {
	if err := s.throttle(ctx, clientKey); err != nil {
		return nil, err
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, validationf("Email and password are required")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	ok, err := s.hasher.Check(user.PasswordHash, password)
	if err != nil {
		s.logger.Warn().Err(err).Int64("user_id", user.ID).Msg("Stored password hash is unreadable")
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	access, accessExp, err := s.tokens.IssueAccess(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := s.tokens.IssueRefresh(user.ID, user.Role)
	if err != nil {
		return nil, err
	}

	if err := s.users.SetRefreshToken(ctx, user.ID, &refresh); err != nil {
		return nil, err
	}
	user.RefreshToken = &refresh

	s.logger.Info().Int64("user_id", user.ID).Msg("User logged in")
	return &Session{
		User:           user,
		AccessToken:    access,
		AccessExpires:  accessExp,
		RefreshToken:   refresh,
		RefreshExpires: refreshExp,
	}, nil
}

// Refresh issues a new access token for a refresh token that is both valid
// and the one currently stored for its user.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	if refreshToken == "" {
		return "", time.Time{}, ErrMissingRefreshToken
	}

	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return "", time.Time{}, ErrInvalidRefreshToken
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if errors.Is(err, database.ErrNotFound) {
		return "", time.Time{}, ErrInvalidRefreshToken
	}
	if err != nil {
		return "", time.Time{}, err
	}
	if user.RefreshToken == nil || *user.RefreshToken != refreshToken {
		return "", time.Time{}, ErrInvalidRefreshToken
	}

	return s.tokens.IssueAccess(user.ID, user.Role)
}

// Logout revokes the stored refresh token.
func (s *AuthService) Logout(ctx context.Context, userID int64) error {
	err := s.users.SetRefreshToken(ctx, userID, nil)
	if errors.Is(err, database.ErrNotFound) {
		return nil
	}
	return err
}

func (s *AuthService) throttle(ctx context.Context, clientKey string) error {
	if s.limiter == nil || clientKey == "" {
		return nil
	}
	allowed, err := s.limiter.CheckRateLimit(ctx, "login:"+clientKey, s.config.LoginAttempts, s.config.LoginWindow)
	if err != nil {
		// counter unavailable: let the attempt through
		s.logger.Warn().Err(err).Msg("Login rate limit check failed")
		return nil
	}
	if !allowed {
		return ErrTooManyAttempts
	}
	return nil
}
