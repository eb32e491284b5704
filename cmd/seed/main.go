// Command main runs the database seeder for CivicPulse.
package main

import (
	"context"
	"flag"
	"log"

	"civicpulse/internal/config"
	"civicpulse/internal/database"
	"civicpulse/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 50, "Number of users to create")
	numPosts := flag.Int("posts", 200, "Number of posts to create")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	maxDays := flag.Int("days", 90, "Spread created_at over this many past days")
	fast := flag.Bool("fast", false, "Skip bcrypt for bulk load tests; seeded accounts cannot log in")
	dryRun := flag.Bool("dry-run", false, "Build the data without writing it")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")
	log.Printf("Target: %d users, %d posts, clean=%v\n", *numUsers, *numPosts, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = database.Close(db) }()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}

	s := seed.NewSeeder(db, seed.Options{
		NumUsers:    *numUsers,
		NumPosts:    *numPosts,
		ShouldClean: *shouldClean,
		MaxDays:     *maxDays,
		SkipBcrypt:  *fast,
		DryRun:      *dryRun,
	})
	sum, err := s.Run(ctx)
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Printf("✨ All done! %+v", *sum)
	log.Printf("📧 All seeded users have the password: %s", seed.DefaultPassword)
}
