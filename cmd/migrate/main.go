package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"corrflow/internal/config"
	"corrflow/internal/database"
)

func main() {
	var (
		command = flag.String("command", "", "Migration command: up, down, version, force")
		steps   = flag.Int("steps", 0, "Number of migration steps (for down)")
		version = flag.Int("version", 0, "Migration version (for force)")
		source  = flag.String("source", "file://internal/database/migrations", "Migration source URL")
	)
	flag.Parse()

	if *command == "" {
		fmt.Println("Usage: go run cmd/migrate/main.go -command [up|down|version|force] [options]")
		fmt.Println("Commands:")
		fmt.Println("  up             - Apply all pending migrations")
		fmt.Println("  down           - Rollback migrations")
		fmt.Println("  version        - Show current migration version")
		fmt.Println("  force VERSION  - Force set migration version")
		os.Exit(1)
	}

	cfg := config.NewConfig()

	m, err := migrate.New(*source, database.DSN(cfg.Database))
	if err != nil {
		log.Fatalf("Failed to create migration instance: %v", err)
	}
	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			log.Printf("Failed to close migration instance: source=%v db=%v", sourceErr, dbErr)
		}
	}()

	switch *command {
	case "up":
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			log.Fatalf("Migration up failed: %v", err)
		}
		fmt.Println("Migrations applied")
	case "down":
		n := *steps
		if n == 0 {
			n = 1
		}
		if err := m.Steps(-n); err != nil {
			log.Fatalf("Migration down failed: %v", err)
		}
		fmt.Printf("Rolled back %d step(s)\n", n)
	case "version":
		v, dirty, err := m.Version()
		if err != nil {
			log.Fatalf("Failed to get migration version: %v", err)
		}
		fmt.Printf("Version: %d, dirty: %t\n", v, dirty)
	case "force":
		if err := m.Force(*version); err != nil {
			log.Fatalf("Migration force failed: %v", err)
		}
		fmt.Printf("Forced version %d\n", *version)
	default:
		log.Fatalf("Unknown command: %s", *command)
	}
}
