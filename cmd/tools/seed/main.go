// Development tool: fills the database with synthetic analytics data.
package main

import (
	"flag"
	"log"

	"github.com/joho/godotenv"

	"beaconly/internal/config"
	"beaconly/internal/database"
	"beaconly/internal/logger"
	"beaconly/internal/seeder"
)

func main() {
	eventCount := flag.Int("events", 5000, "number of events to seed")
	days := flag.Int("days", 7, "spread events over this many trailing days")
	flag.Parse()

	_ = godotenv.Load()

	cfg := config.GetConfig()
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	slogger := logger.New(cfg)
	manager := database.NewManager(cfg, slogger)
	db, err := manager.Connect()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer manager.Close()

	if err := manager.Migrate(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	if err := seeder.NewSeeder(db, slogger, *eventCount, *days).Seed(); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
}
