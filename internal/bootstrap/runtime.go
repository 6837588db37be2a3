// Package bootstrap wires the database and Redis for the server and tools.
package bootstrap

import (
	"context"
	"fmt"
	"log"
	"strings"

	"blogshive/internal/cache"
	"blogshive/internal/config"
	"blogshive/internal/database"
	"blogshive/internal/repository"
	"blogshive/internal/seed"
	"blogshive/internal/service"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedPreset names a built-in preset or a YAML preset file to apply
	// after connecting. Empty skips seeding.
	SeedPreset string
}

// InitRuntime connects to DB and Redis, bootstraps the development root
// admin and optionally seeds demo data.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Init Redis (may result in nil client if unreachable)
	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if err := ensureDevRootAdmin(context.Background(), cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development root admin: %w", err)
	}

	if opts.SeedPreset != "" {
		preset, err := seed.ResolvePreset(opts.SeedPreset)
		if err != nil {
			return nil, nil, err
		}
		if _, err := seed.NewSeeder(db, seed.Options{}).Run(preset); err != nil {
			return nil, nil, fmt.Errorf("failed to seed preset %q: %w", preset.Name, err)
		}
	}

	return db, r, nil
}

func ensureDevRootAdmin(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") || !cfg.DevBootstrapRoot {
		return nil
	}

	username := strings.TrimSpace(cfg.DevRootUsername)
	if username == "" {
		username = "root"
	}
	email := strings.TrimSpace(strings.ToLower(cfg.DevRootEmail))
	if email == "" {
		email = "root@blogshive.local"
	}
	if cfg.DevRootPassword == "" {
		return fmt.Errorf("DEV_ROOT_PASSWORD must be set when DEV_BOOTSTRAP_ROOT is enabled")
	}

	users := service.NewUserService(repository.NewUserRepository(db), nil)
	root, err := users.EnsureRootAdmin(ctx, username, email, cfg.DevRootPassword)
	if err != nil {
		return err
	}

	log.Printf("development root admin bootstrap ensured for user ID %d (%s)", root.ID, root.Email)
	return nil
}
