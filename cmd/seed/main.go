// Command main runs the database seeder for BlogsHive.
package main

import (
	"flag"
	"log"

	"blogshive/internal/config"
	"blogshive/internal/database"
	"blogshive/internal/seed"
)

func main() {
	preset := flag.String("preset", "demo", "Built-in preset (small, demo, large) or path to a YAML preset file")
	numUsers := flag.Int("users", 0, "Override the preset's user count")
	postsPerUser := flag.Int("posts", 0, "Override the preset's posts per user")
	shouldClean := flag.Bool("clean", false, "Clean database before seeding, regardless of the preset")
	randSeed := flag.Int64("rand-seed", 0, "Fix the random seed for reproducible data")
	fastHash := flag.Bool("fast-hash", false, "Hash the shared password at minimum bcrypt cost")
	dryRun := flag.Bool("dry-run", false, "Generate data without writing it")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")

	p, err := seed.ResolvePreset(*preset)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	if *numUsers > 0 {
		p.Users = *numUsers
	}
	if *postsPerUser > 0 {
		p.PostsPerUser = *postsPerUser
	}
	if *shouldClean {
		p.Clean = true
	}
	log.Printf("Preset %q: %d users, %d posts each, clean=%v\n", p.Name, p.Users, p.PostsPerUser, p.Clean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	s := seed.NewSeeder(db, seed.Options{
		RandSeed: *randSeed,
		FastHash: *fastHash,
		DryRun:   *dryRun,
	})
	summary, err := s.Run(p)
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Printf("✨ All done! %s", summary)
	log.Printf("📧 All seeded users have the password: %s", p.Password)
}
