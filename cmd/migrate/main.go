package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/kicksideshop/orderapi/internal/config"
	"github.com/kicksideshop/orderapi/internal/repository/postgres"
)

// Usage: migrate [migrations-dir]
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	// First, connect to the postgres database to create the target database if needed
	if cfg.Database.URL == "" {
		if err := ensureDatabase(cfg.Database); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	}

	db, err := postgres.NewConnection(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	dir := cfg.Database.MigrationsDir
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	if err := postgres.RunMigrations(context.Background(), db, dir, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing migration: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Migration completed successfully!")
}

func ensureDatabase(dbCfg config.DatabaseConfig) error {
	target := dbCfg.DBName
	dbCfg.DBName = "postgres"

	postgresDB, err := sql.Open("postgres", dbCfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to connect to postgres database: %w", err)
	}
	defer postgresDB.Close()

	// Check if database exists, create if not
	var exists bool
	err = postgresDB.QueryRow(
		"SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", target,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check database existence: %w", err)
	}

	if !exists {
		fmt.Printf("Database '%s' does not exist. Creating...\n", target)
		if _, err := postgresDB.Exec("CREATE DATABASE " + pq.QuoteIdentifier(target)); err != nil {
			return fmt.Errorf("failed to create database: %w", err)
		}
		fmt.Printf("Database '%s' created successfully.\n", target)
	}
	return nil
}
