package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"bookstore-settlement/internal/config"
	"bookstore-settlement/pkg/logger"
)

// migrate applies the schema in ./migrations.
//
//	migrate [-dir migrations] up|down|version|force N
func main() {
	_ = godotenv.Load()
	logger.Init(os.Getenv("APP_ENV"))

	dir := flag.String("dir", "migrations", "directory holding the *.sql migrations")
	flag.Parse()

	if err := run(*dir, flag.Args()); err != nil {
		logger.Error("Migration failed", err)
		os.Exit(1)
	}
}

func run(dir string, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: migrate [-dir path] up|down|version|force N")
	}

	dbConfig, err := config.LoadDatabaseConfig()
	if err != nil {
		return err
	}

	db, err := sql.Open("postgres", dbConfig.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create postgres driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	switch args[0] {
	case "up":
		err = m.Up()
	case "down":
		err = m.Steps(-1)
	case "force":
		if len(args) < 2 {
			return errors.New("force needs a version")
		}
		var v int
		if _, err := fmt.Sscanf(args[1], "%d", &v); err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		err = m.Force(v)
	case "version":
		v, dirty, verr := m.Version()
		if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
			return verr
		}
		logger.Info("Schema version", map[string]interface{}{"version": v, "dirty": dirty})
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	logger.Info("Migration finished", map[string]interface{}{"command": args[0]})
	return nil
}
