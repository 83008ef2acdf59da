package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"go-stock-ledger/internal/model"
	"go-stock-ledger/internal/repository"
)

type UserService interface {
	CreateUser(ctx context.Context, actor Actor, req *CreateUserRequest) (*model.UserResponse, error)
	UpdateUser(ctx context.Context, actor Actor, userID uuid.UUID, req *UpdateUserRequest) (*model.UserResponse, error)
	UpdateUserPrivileges(ctx context.Context, userID uuid.UUID, privilegeCodes []string) (*model.UserResponse, error)
	GetAllUsers(ctx context.Context) ([]model.UserResponse, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*model.UserResponse, error)
}

type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	FullName string `json:"full_name" validate:"required,max=255"`
	RoleID   uint   `json:"role_id" validate:"required"`
}

// UpdateUserRequest edits profile and role. Users are deactivated, never deleted,
// so ledger rows keep their author.
type UpdateUserRequest struct {
	FullName string  `json:"full_name" validate:"required,max=255"`
	Password *string `json:"password,omitempty" validate:"omitempty,min=6"`
	RoleID   uint    `json:"role_id" validate:"required"`
	IsActive *bool   `json:"is_active"`
}

type userService struct {
	userRepo      repository.UserRepository
	privilegeRepo repository.PrivilegeRepository
	roleRepo      repository.RoleRepository
}

func NewUserService(userRepo repository.UserRepository, privilegeRepo repository.PrivilegeRepository, roleRepo repository.RoleRepository) UserService {
	return &userService{
		userRepo:      userRepo,
		privilegeRepo: privilegeRepo,
		roleRepo:      roleRepo,
	}
}

func (s *userService) role(ctx context.Context, id uint) (*model.Role, error) {
	role, err := s.roleRepo.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrRoleNotFound
	}
	return role, err
}

func (s *userService) CreateUser(ctx context.Context, actor Actor, req *CreateUserRequest) (*model.UserResponse, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if _, err := s.userRepo.FindByEmail(ctx, email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	role, err := s.role(ctx, req.RoleID)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:      email,
		FullName:   strings.TrimSpace(req.FullName),
		RoleID:     &role.ID,
		IsActive:   true,
		Privileges: role.Privileges,
	}
	user.CreatedBy = actor.Label()
	user.UpdatedBy = actor.Label()
	if err := user.SetPassword(req.Password); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if repository.IsDuplicateKey(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return s.GetUserByID(ctx, user.ID)
}

func (s *userService) UpdateUser(ctx context.Context, actor Actor, userID uuid.UUID, req *UpdateUserRequest) (*model.UserResponse, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	role, err := s.role(ctx, req.RoleID)
	if err != nil {
		return nil, err
	}

	roleChanged := user.RoleID == nil || *user.RoleID != role.ID
	wasActive := user.IsActive

	user.FullName = strings.TrimSpace(req.FullName)
	user.RoleID = &role.ID
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	user.UpdatedBy = actor.Label()
	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}

	if req.Password != nil && *req.Password != "" {
		if err := user.SetPassword(*req.Password); err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		if err := s.userRepo.UpdatePassword(ctx, user.ID, user.Password); err != nil {
			return nil, err
		}
	}
	if roleChanged {
		if err := s.userRepo.UpdatePrivileges(ctx, user.ID, role.Privileges); err != nil {
			return nil, err
		}
	}
	// Deactivation ends any open session.
	if wasActive && !user.IsActive {
		if err := s.userRepo.UpdateTokenVersion(ctx, user.ID, uuid.New().String()); err != nil {
			return nil, err
		}
	}
	return s.GetUserByID(ctx, userID)
}

func (s *userService) UpdateUserPrivileges(ctx context.Context, userID uuid.UUID, privilegeCodes []string) (*model.UserResponse, error) {
	privileges, err := s.privilegeRepo.FindByCodes(ctx, privilegeCodes)
	if err != nil {
		return nil, fmt.Errorf("find privileges: %w", err)
	}
	if err := s.userRepo.UpdatePrivileges(ctx, userID, privileges); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.GetUserByID(ctx, userID)
}

func (s *userService) GetAllUsers(ctx context.Context) ([]model.UserResponse, error) {
	users, err := s.userRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	responses := make([]model.UserResponse, len(users))
	for i := range users {
		responses[i] = users[i].ToResponse()
	}
	return responses, nil
}

func (s *userService) GetUserByID(ctx context.Context, id uuid.UUID) (*model.UserResponse, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	response := user.ToResponse()
	return &response, nil
}
