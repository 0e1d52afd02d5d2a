// Command migrate applies the database schema. Production deploys run this
// explicitly instead of relying on startup auto-migration.
package main

import (
	"log"

	"github.com/inner-byte/i2bt-v1/internal/config"
	"github.com/inner-byte/i2bt-v1/internal/database"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("✓ migration complete")
}
