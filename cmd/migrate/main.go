package main

import (
	"log"
	"log/slog"

	"relay-service/internal/config"
	"relay-service/internal/database"
	"relay-service/internal/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	if err := logger.Setup(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format}); err != nil {
		log.Fatal("Failed to configure logger:", err)
	}

	slog.Info("Starting database migration...", "driver", cfg.Database.Driver)

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		log.Fatal("Migration failed:", err)
	}

	slog.Info("Database migration completed successfully!")
}
