// Command migrate runs schema operations for the backend.
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"blogshive/internal/config"
	"blogshive/internal/database"

	"gorm.io/gorm"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func usage() error {
	return fmt.Errorf("usage: go run ./cmd/migrate/main.go <up|status>")
}

func run() error {
	flag.Parse()
	if flag.NArg() < 1 {
		return usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Connect applies AutoMigrate for every persistent model.
	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(flag.Arg(0))) {
	case "up":
		log.Println("automigrations applied")
	case "status":
		return status(db)
	default:
		return usage()
	}
	return nil
}

func status(db *gorm.DB) error {
	migrator := db.Migrator()
	for _, m := range database.PersistentModels() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(m); err != nil {
			return fmt.Errorf("parse %T: %w", m, err)
		}
		var rows int64
		if err := db.Model(m).Count(&rows).Error; err != nil {
			return fmt.Errorf("count %s: %w", stmt.Schema.Table, err)
		}
		log.Printf("table=%s present=%t rows=%d", stmt.Schema.Table, migrator.HasTable(m), rows)
	}
	return nil
}
