package services

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bankcore/internal/dto"
	"bankcore/internal/models"
	"bankcore/internal/repositories"
)

var ErrInvalidCredentials = errors.New("invalid username or password")

// AuthService handles session authentication
type AuthService struct {
	userRepo        repositories.UserRepositoryInterface
	auditRepo       repositories.AuditLogRepositoryInterface
	passwordService PasswordServiceInterface
	tokenService    TokenServiceInterface
	metrics         MetricsRecorderInterface
	logger          *slog.Logger
}

// NewAuthService creates a new authentication service
func NewAuthService(
	userRepo repositories.UserRepositoryInterface,
	auditRepo repositories.AuditLogRepositoryInterface,
	passwordService PasswordServiceInterface,
	tokenService TokenServiceInterface,
	metrics MetricsRecorderInterface,
	logger *slog.Logger,
) AuthServiceInterface {
	return &AuthService{
		userRepo:        userRepo,
		auditRepo:       auditRepo,
		passwordService: passwordService,
		tokenService:    tokenService,
		metrics:         metrics,
		logger:          logger,
	}
}

// Login authenticates a user and returns a session token. Unknown username
// and wrong password produce the identical error.
func (s *AuthService) Login(req *dto.LoginRequest, ipAddress, userAgent string) (*dto.TokenResponse, error) {
	user, err := s.userRepo.GetByUsername(req.Username)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			s.auditFailedLogin(req.Username, ipAddress, userAgent, "user_not_found")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !s.passwordService.ComparePassword(req.Password, user.PasswordHash) {
		s.auditFailedLogin(req.Username, ipAddress, userAgent, "invalid_password")
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokenService.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	now := time.Now()
	if err := s.userRepo.UpdateLastLogin(user.ID, now); err != nil {
		// Non-critical: a bookkeeping failure shouldn't block login
		s.logger.Warn("failed to update last login",
			slog.String("user_id", user.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	s.auditSuccessfulLogin(user, ipAddress, userAgent)
	s.metrics.IncrementCounter("authentication_event", map[string]string{"event_type": "login_success"})

	return &dto.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
	}, nil
}

func (s *AuthService) auditSuccessfulLogin(user *models.User, ipAddress, userAgent string) {
	uid := user.ID
	s.writeAudit(&models.AuditLog{
		UserID:    &uid,
		Action:    models.AuditActionLoginSuccess,
		Resource:  "session",
		IPAddress: ipAddress,
		UserAgent: userAgent,
	})
}

func (s *AuthService) auditFailedLogin(username, ipAddress, userAgent, reason string) {
	s.metrics.IncrementCounter("authentication_event", map[string]string{"event_type": "login_failed"})
	s.writeAudit(&models.AuditLog{
		Action:    models.AuditActionLoginFailed,
		Resource:  "session",
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Metadata: models.JSONBMap{
			"username": username,
			"reason":   reason,
		},
	})
}

func (s *AuthService) writeAudit(entry *models.AuditLog) {
	if err := s.auditRepo.Create(entry); err != nil {
		s.logger.Error("failed to write audit log",
			slog.String("action", entry.Action),
			slog.String("error", err.Error()),
		)
	}
}
