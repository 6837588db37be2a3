// Package main provides admin management utilities for BlogsHive.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"blogshive/internal/config"
	"blogshive/internal/database"
	"blogshive/internal/models"
	"blogshive/internal/repository"
	"blogshive/internal/service"

	"gorm.io/gorm"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage:")
		fmt.Println("  go run ./cmd/admin/main.go promote <user_id>      - Promote user to admin")
		fmt.Println("  go run ./cmd/admin/main.go demote <user_id>       - Demote user from admin")
		fmt.Println("  go run ./cmd/admin/main.go member <user_id> <on|off> - Set membership flag")
		fmt.Println("  go run ./cmd/admin/main.go list-admins            - List all admins")
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()
	repo := repository.NewUserRepository(db)
	users := service.NewUserService(repo, nil)

	switch command := os.Args[1]; command {
	case "promote", "demote":
		id := userIDArg(3, "Usage: go run ./cmd/admin/main.go "+command+" <user_id>")
		setAdmin(ctx, repo, id, command == "promote")

	case "member":
		id := userIDArg(4, "Usage: go run ./cmd/admin/main.go member <user_id> <on|off>")
		on := os.Args[3] == "on"
		user, err := users.SetMembership(ctx, id, on)
		if err != nil {
			log.Fatalf("Failed to update membership: %v", err)
		}
		fmt.Printf("✅ %s (ID: %d) membership is now %t\n", user.Username, user.ID, user.IsMember)

	case "list-admins":
		listAdmins(ctx, db)

	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}
}

func userIDArg(argc int, usage string) uint {
	if len(os.Args) < argc {
		fmt.Println(usage)
		os.Exit(1)
	}
	id, err := strconv.ParseUint(os.Args[2], 10, 32)
	if err != nil || id == 0 {
		fmt.Printf("Invalid user ID %q\n", os.Args[2])
		os.Exit(1)
	}
	return uint(id)
}

func setAdmin(ctx context.Context, repo repository.UserRepository, id uint, admin bool) {
	user, err := repo.GetByID(ctx, id)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			fmt.Printf("User with ID %d not found\n", id)
			os.Exit(1)
		}
		log.Fatalf("Database error: %v", err)
	}

	if user.IsAdmin == admin {
		fmt.Printf("User %s (ID: %d) already has is_admin=%t\n", user.Username, user.ID, admin)
		return
	}
	if err := repo.SetAdmin(ctx, id, admin); err != nil {
		log.Fatalf("Failed to update user: %v", err)
	}
	fmt.Printf("✅ Successfully set is_admin=%t for %s (ID: %d)\n", admin, user.Username, user.ID)
}

func listAdmins(ctx context.Context, db *gorm.DB) {
	var admins []models.User
	if err := db.WithContext(ctx).Where("is_admin = ?", true).Order("id").Find(&admins).Error; err != nil {
		log.Fatalf("Failed to fetch admins: %v", err)
	}

	if len(admins) == 0 {
		fmt.Println("No admins found in the system")
		return
	}

	fmt.Println("\n📋 Current Admins:")
	fmt.Println("─────────────────────────────────────")
	for _, admin := range admins {
		fmt.Printf("ID: %d | Username: %s | Email: %s\n", admin.ID, admin.Username, admin.Email)
	}
	fmt.Println("─────────────────────────────────────")
}
