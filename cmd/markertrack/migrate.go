package main

import (
	"flag"
	"os"

	"github.com/banshee-data/markertrack/internal/db"
)

func runMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	dbPath := fs.String("db", "markertrack.db", "Path to the sqlite database")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return db.RunMigrateCommand(fs.Args(), *dbPath, os.Stdout)
}
