// Command reset-password sets a user's password and ends their current session.
package main

import (
	"context"
	"flag"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"go-stock-ledger/internal/config"
	"go-stock-ledger/internal/logger"
	"go-stock-ledger/internal/repository"
	"go-stock-ledger/pkg/database"
)

func main() {
	email := flag.String("email", "", "account email (defaults to ADMIN_EMAIL)")
	password := flag.String("password", "", "new password (defaults to ADMIN_PASSWORD)")
	flag.Parse()

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logger.Setup(cfg.LogLevel, cfg.LogFormat)
	if *email == "" {
		*email = cfg.AdminEmail
	}
	if *password == "" {
		*password = cfg.AdminPassword
	}
	if len(*password) < 6 {
		log.Fatal().Msg("password must be at least 6 characters")
	}

	// 2. Setup Database
	db, err := database.Open(database.Options{DSN: cfg.DSN(), MaxOpenConns: 1})
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}
	defer database.Close(db)

	// 3. Find user
	ctx := context.Background()
	users := repository.NewUserRepo(db)
	user, err := users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(*email)))
	if err != nil {
		log.Error().Err(err).Str("email", *email).Msg("user not found")
		return
	}

	// 4. Hash and store
	if err := user.SetPassword(*password); err != nil {
		log.Error().Err(err).Msg("hash password")
		return
	}
	if err := users.UpdatePassword(ctx, user.ID, user.Password); err != nil {
		log.Error().Err(err).Msg("update password")
		return
	}
	if err := users.UpdateTokenVersion(ctx, user.ID, uuid.New().String()); err != nil {
		log.Error().Err(err).Msg("end session")
		return
	}

	log.Info().Str("email", user.Email).Msg("password reset")
}
