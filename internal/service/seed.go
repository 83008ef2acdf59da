package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"go-stock-ledger/internal/model"
	"go-stock-ledger/internal/repository"
)

// Seeder creates the default privileges, roles and administrator.
type Seeder struct {
	privileges repository.PrivilegeRepository
	roles      repository.RoleRepository
	users      repository.UserRepository
}

func NewSeeder(privileges repository.PrivilegeRepository, roles repository.RoleRepository, users repository.UserRepository) *Seeder {
	return &Seeder{privileges: privileges, roles: roles, users: users}
}

// Seed is idempotent. MASTER_ADMIN always holds every privilege; ADMIN gets the
// non master-only ones the first time it is seen without privileges.
func (s *Seeder) Seed(ctx context.Context, adminEmail, adminPassword string) error {
	if err := s.privileges.SeedDefaults(ctx); err != nil {
		return fmt.Errorf("seed privileges: %w", err)
	}
	if err := s.roles.SeedDefaults(ctx); err != nil {
		return fmt.Errorf("seed roles: %w", err)
	}

	all, err := s.privileges.FindAll(ctx)
	if err != nil {
		return err
	}

	master, err := s.roles.FindByCode(ctx, model.RoleMasterAdmin)
	if err != nil {
		return err
	}
	if len(master.Privileges) != len(all) {
		if err := s.roles.ReplacePrivileges(ctx, master, all); err != nil {
			return err
		}
		master.Privileges = all
		log.Info().Msg("MASTER_ADMIN role assigned all privileges")
	}

	admin, err := s.roles.FindByCode(ctx, model.RoleAdmin)
	if err != nil {
		return err
	}
	if len(admin.Privileges) == 0 {
		limited := make([]model.Privilege, 0, len(all))
		for _, p := range all {
			if !p.MasterOnly() {
				limited = append(limited, p)
			}
		}
		if err := s.roles.ReplacePrivileges(ctx, admin, limited); err != nil {
			return err
		}
		log.Info().Int("privileges", len(limited)).Msg("ADMIN role assigned limited privileges")
	}

	email := strings.ToLower(strings.TrimSpace(adminEmail))
	if email == "" {
		return nil
	}
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	user := &model.User{
		Email:      email,
		FullName:   "Master Administrator",
		RoleID:     &master.ID,
		IsActive:   true,
		Privileges: master.Privileges,
	}
	user.CreatedBy = SystemActor.Label()
	user.UpdatedBy = SystemActor.Label()
	if err := user.SetPassword(adminPassword); err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	if err := s.users.Create(ctx, user); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	log.Info().Str("email", email).Msg("default admin user created")
	return nil
}
