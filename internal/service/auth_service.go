package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/isml-edu/student-portal-api/internal/models"
	appErrors "github.com/isml-edu/student-portal-api/pkg/errors"
)

type authUpstream interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error)
	ForgotPassword(ctx context.Context, registrationNumber string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	StudentDetails(ctx context.Context, studentID string) (*models.StudentDetails, error)
	States(ctx context.Context) ([]models.State, error)
	Centers(ctx context.Context, stateID string) ([]models.Center, error)
}

// AuthConfig defines verification material for student tokens. Tokens are
// issued upstream; the portal only validates them.
type AuthConfig struct {
	Secret string
	Issuer string
}

// AuthService proxies authentication flows to the upstream school API and
// validates the tokens it issues.
type AuthService struct {
	upstream  authUpstream
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(upstream authUpstream, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{upstream: upstream, validator: validate, logger: logger, config: config}
}

// Login authenticates a student and returns the upstream-issued token.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	res, err := s.upstream.Login(ctx, req)
	if err != nil {
		if appErr := appErrors.FromError(err); appErr.Code == appErrors.ErrUnauthorized.Code {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
		}
		return nil, err
	}

	s.logger.Info("student logged in", zap.String("registration_number", res.Student.RegistrationNumber))
	return res, nil
}

// Register creates a student account upstream.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}
	return s.upstream.Register(ctx, req)
}

// ForgotPassword initiates the upstream reset flow.
func (s *AuthService) ForgotPassword(ctx context.Context, req models.ForgotPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid forgot password payload")
	}
	return s.upstream.ForgotPassword(ctx, req.RegistrationNumber)
}

// ResetPassword completes the upstream reset flow.
func (s *AuthService) ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reset password payload")
	}
	return s.upstream.ResetPassword(ctx, req.Token, req.NewPassword)
}

// Profile fetches the student's profile from upstream.
func (s *AuthService) Profile(ctx context.Context, studentID string) (*models.StudentDetails, error) {
	return s.upstream.StudentDetails(ctx, studentID)
}

// States lists selectable states for registration.
func (s *AuthService) States(ctx context.Context) ([]models.State, error) {
	return s.upstream.States(ctx)
}

// Centers lists centers within a state.
func (s *AuthService) Centers(ctx context.Context, stateID string) ([]models.Center, error) {
	if stateID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "state_id is required")
	}
	return s.upstream.Centers(ctx, stateID)
}

// ValidateToken parses and validates a student token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	if s.config.Issuer != "" && claims.Issuer != s.config.Issuer {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token issuer")
	}

	return claims, nil
}
