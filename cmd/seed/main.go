// Command seed populates the development database with demo members.
package main

import (
	"flag"
	"log"

	"github.com/inner-byte/i2bt-v1/internal/config"
	"github.com/inner-byte/i2bt-v1/internal/database"
	"github.com/inner-byte/i2bt-v1/internal/seed"
)

func main() {
	numMembers := flag.Int("members", 25, "Number of demo members to create")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	skipBcrypt := flag.Bool("skip-bcrypt", false, "Store plaintext demo passwords (fast local reseeding)")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Env == "production" || cfg.Env == "prod" {
		log.Fatal("refusing to seed a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := seed.Seed(db, seed.Options{
		NumMembers:  *numMembers,
		ShouldClean: *shouldClean,
		SkipBcrypt:  *skipBcrypt,
	}); err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Println("✨ All done! Demo members use the password: Password123!demo")
}
