package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"go-stock-ledger/internal/events"
	"go-stock-ledger/internal/model"
	"go-stock-ledger/internal/repository"
	"go-stock-ledger/pkg/jwt"
	"go-stock-ledger/pkg/validator"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserInactive       = errors.New("user account is inactive")
	ErrWrongPassword      = errors.New("current password is incorrect")
	ErrSessionReplaced    = errors.New("session expired (logged in on another device)")
	ErrSessionTimeout     = errors.New("session expired due to inactivity")
)

// sessionIdleTimeout ends sessions whose client stopped sending heartbeats.
const sessionIdleTimeout = 5 * time.Minute

type AuthService interface {
	Login(ctx context.Context, email, password string) (*LoginResponse, error)
	ResetPassword(ctx context.Context, email, oldPassword, newPassword string) error
	ValidateToken(ctx context.Context, tokenString string) (*TokenValidationResponse, error)
	Authenticate(ctx context.Context, tokenString string) (*jwt.Claims, error)
	Heartbeat(ctx context.Context, userID uuid.UUID) error
}

type LoginResponse struct {
	Token      string             `json:"token"`
	User       model.UserResponse `json:"user"`
	Role       *model.Role        `json:"role"`
	Privileges []string           `json:"privileges"`
}

type TokenValidationResponse struct {
	User       model.UserResponse `json:"user"`
	Role       *model.Role        `json:"role"`
	Privileges []string           `json:"privileges"`
}

type authService struct {
	userRepo  repository.UserRepository
	tokens    *jwt.Manager
	publisher events.Publisher
	now       func() time.Time
}

func NewAuthService(userRepo repository.UserRepository, tokens *jwt.Manager, publisher events.Publisher) AuthService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &authService{userRepo: userRepo, tokens: tokens, publisher: publisher, now: time.Now}
}

func (s *authService) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	user, err := s.userRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	if !user.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}

	roleCode := ""
	if user.Role != nil {
		roleCode = user.Role.Code
	}

	// A new token version invalidates every token issued before this login.
	version := uuid.New().String()
	if err := s.userRepo.UpdateTokenVersion(ctx, user.ID, version); err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}
	now := s.now()
	if err := s.userRepo.UpdateLastSeen(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}
	user.TokenVersion = version
	user.LastSeenAt = &now

	token, err := s.tokens.Generate(user.ID, user.Email, user.FullName, roleCode, user.PrivilegeCodes(), version)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	log.Info().Str("user_id", user.ID.String()).Msg("user logged in")
	return &LoginResponse{
		Token:      token,
		User:       user.ToResponse(),
		Role:       user.Role,
		Privileges: user.PrivilegeCodes(),
	}, nil
}

func (s *authService) ResetPassword(ctx context.Context, email, oldPassword, newPassword string) error {
	user, err := s.userRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if !user.CheckPassword(oldPassword) {
		return ErrWrongPassword
	}
	if len(newPassword) < 6 {
		return &ValidationError{Fields: []*validator.ErrorResponse{{FailedField: "new_password", Tag: "min", Value: "6"}}}
	}
	if err := user.SetPassword(newPassword); err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.userRepo.UpdatePassword(ctx, user.ID, user.Password); err != nil {
		return err
	}
	return s.userRepo.UpdateTokenVersion(ctx, user.ID, uuid.New().String())
}

// Authenticate checks the token signature and that it belongs to the user's current session.
func (s *authService) Authenticate(ctx context.Context, tokenString string) (*jwt.Claims, error) {
	claims, err := s.tokens.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	if user.TokenVersion != claims.TokenVersion {
		return nil, ErrSessionReplaced
	}
	// Privileges come from the database so revocations apply immediately.
	claims.Privileges = user.PrivilegeCodes()
	return claims, nil
}

func (s *authService) ValidateToken(ctx context.Context, tokenString string) (*TokenValidationResponse, error) {
	claims, err := s.Authenticate(ctx, tokenString)
	if err != nil {
		return nil, err
	}
	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	if user.LastSeenAt == nil || s.now().Sub(*user.LastSeenAt) > sessionIdleTimeout {
		return nil, ErrSessionTimeout
	}
	return &TokenValidationResponse{
		User:       user.ToResponse(),
		Role:       user.Role,
		Privileges: user.PrivilegeCodes(),
	}, nil
}

func (s *authService) Heartbeat(ctx context.Context, userID uuid.UUID) error {
	now := s.now()
	if err := s.userRepo.UpdateLastSeen(ctx, userID, now); err != nil {
		return err
	}

	evt := events.Event{
		Type:      events.TypeUserStatus,
		Data:      map[string]interface{}{"user_id": userID.String(), "status": "online", "last_seen_at": now},
		Timestamp: now.UTC(),
	}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), evt); err != nil {
		log.Warn().Err(err).Msg("user status publish failed")
	}
	return nil
}
