package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"chreosis/internal/infrastructure/postgres"
	"chreosis/internal/shared/config"
	"chreosis/internal/shared/logger"
)

const usage = `Chreosis Admin CLI - Management commands for the Chreosis API

Usage:
  admin <command> [options]

Commands:
  migrate      Apply or roll back schema migrations
  reconcile    Compare account balances with the sum of their transactions

Examples:
  # Apply all pending migrations
  admin migrate up

  # Roll back the last migration
  admin migrate down --steps=1

  # Show the current schema version
  admin migrate version

  # Report balance drift for one user
  admin reconcile --user-id=1

  # Report and repair drift for every user
  admin reconcile --all --fix
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	logger.Setup(logger.Options{Level: cfg.Log.Level, Format: "console", Service: "chreosis-admin"})

	switch command := os.Args[1]; command {
	case "migrate":
		runMigrate(cfg, os.Args[2:])
	case "reconcile":
		runReconcile(cfg, os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		fmt.Print(usage)
		os.Exit(1)
	}
}

func openDB(cfg *config.Config) *postgres.DB {
	db, err := postgres.New(cfg.Database.ConnectionString(), postgres.Pool{
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	return db
}

func runMigrate(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	steps := fs.Int("steps", 1, "Number of migrations to roll back (down only)")
	fs.Usage = func() {
		fmt.Println("Usage: admin migrate <up|down|version> [options]")
		fmt.Println("\nOptions:")
		fs.PrintDefaults()
	}

	if len(args) < 1 {
		fs.Usage()
		os.Exit(1)
	}
	action := args[0]
	if err := fs.Parse(args[1:]); err != nil {
		os.Exit(1)
	}

	db := openDB(cfg)
	defer db.Close()

	m, err := postgres.NewMigrator(db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create migrator")
	}

	switch action {
	case "up":
		err = m.Up()
	case "down":
		if *steps < 1 {
			log.Fatal().Int("steps", *steps).Msg("--steps must be at least 1")
		}
		err = m.Down(*steps)
	case "version":
	default:
		fs.Usage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatal().Err(err).Str("action", action).Msg("Migration failed")
	}

	version, dirty, err := m.Version()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read schema version")
	}
	fmt.Printf("Schema version: %d (dirty: %t)\n", version, dirty)
}

func runReconcile(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("reconcile", flag.ExitOnError)

	userID := fs.Int64("user-id", 0, "User ID to check")
	allUsers := fs.Bool("all", false, "Check every user")
	fix := fs.Bool("fix", false, "Rewrite drifted balances from their transactions")
	timeoutStr := fs.String("timeout", "10m", "Timeout for the operation (e.g., 5m, 1h)")

	fs.Usage = func() {
		fmt.Println("Usage: admin reconcile [options]")
		fmt.Println("\nOptions:")
		fs.PrintDefaults()
		fmt.Println("\nExamples:")
		fmt.Println("  admin reconcile --user-id=1")
		fmt.Println("  admin reconcile --all --fix")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if (*userID == 0) == !*allUsers {
		fmt.Println("Error: specify exactly one of --user-id or --all")
		fs.Usage()
		os.Exit(1)
	}

	timeout, err := time.ParseDuration(*timeoutStr)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid timeout format")
	}

	db := openDB(cfg)
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	reconciler := postgres.NewReconciler(db)
	startTime := time.Now()

	drifts, err := reconciler.Check(ctx, *userID)
	if err != nil {
		log.Fatal().Err(err).Msg("Balance check failed")
	}
	printDrifts("Drifted accounts", drifts)

	if *fix && len(drifts) > 0 {
		fixed, err := reconciler.Fix(ctx, drifts)
		if err != nil {
			log.Fatal().Err(err).Msg("Balance repair failed")
		}
		printDrifts("Repaired accounts", fixed)
	}

	log.Info().Dur("elapsed", time.Since(startTime)).Int("drifted", len(drifts)).Msg("Reconcile completed")
}

func printDrifts(title string, drifts []postgres.Drift) {
	fmt.Printf("\n=== %s: %d ===\n", title, len(drifts))
	for _, d := range drifts {
		fmt.Printf("  account %d (user %d): stored %s, expected %s\n",
			d.AccountID, d.UserID, d.Stored.StringFixed(2), d.Expected.StringFixed(2))
	}
}
