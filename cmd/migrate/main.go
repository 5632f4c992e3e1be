package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun"

	"ticketing-engine/internal/config"
	"ticketing-engine/internal/logger"
	"ticketing-engine/internal/storage"
)

func main() {
	envFlag := flag.String("env", "dev", "Environment (dev, test, prod)")
	envFileFlag := flag.String("env-file", "", "Path to .env file")
	sqlFlag := flag.String("sql", "", "Optional SQL file applied after the schema")
	flag.Parse()

	log := logger.NewLogger()
	defer log.Close()

	loadEnv(log, *envFlag, *envFileFlag)
	cfg := config.Load()

	log.LogProcess("MIGRATE", fmt.Sprintf("Connecting to MySQL at %s:%s as %s", cfg.Database.Host, cfg.Database.Port, cfg.Database.Username))
	db, err := storage.OpenMySQL(cfg.Database)
	if err != nil {
		log.Fatal("MIGRATE", err.Error())
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := storage.CreateSchema(ctx, db, log); err != nil {
		log.Fatal("MIGRATE", err.Error())
	}

	if *sqlFlag != "" {
		if err := applyFile(ctx, db, *sqlFlag, log); err != nil {
			log.Fatal("MIGRATE", err.Error())
		}
	}

	log.Info("MIGRATE", "Migration completed successfully")
}

// applyFile runs each ";"-terminated statement of the file in order.
func applyFile(ctx context.Context, db *bun.DB, path string, log *logger.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	log.LogProcess("MIGRATE", fmt.Sprintf("Executing migration from %s", path))
	for _, stmt := range strings.Split(string(data), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}
	return nil
}

func loadEnv(log *logger.Logger, env string, envFile string) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err == nil {
			log.Info("ENV", fmt.Sprintf("Loaded environment from %s", envFile))
			return
		}
	}

	envSpecificFile := fmt.Sprintf(".env.%s", env)
	if err := godotenv.Load(envSpecificFile); err == nil {
		log.Info("ENV", fmt.Sprintf("Loaded environment from %s", envSpecificFile))
		return
	}

	if err := godotenv.Load(); err == nil {
		log.Info("ENV", "Loaded environment from .env")
		return
	}

	log.Warn("ENV", "No .env file found, using system environment variables")
}
