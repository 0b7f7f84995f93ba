package db

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
)

// RunMigrateCommand dispatches the 'migrate' subcommand: explicit schema
// management for databases that predate the current baseline. Day-to-day use
// never needs it; NewDB creates the baseline schema itself.
func RunMigrateCommand(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	dbPath := fs.String("db", "vignette.db", "Database file")
	dir := fs.String("dir", "migrations", "Migrations directory")
	fs.Usage = printMigrateHelp
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		printMigrateHelp()
		os.Exit(1)
	}

	database, err := NewDB(*dbPath)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer database.Close()

	switch action := fs.Arg(0); action {
	case "up":
		if err := database.MigrateUp(*dir); err != nil {
			log.Fatalf("migration up failed: %v", err)
		}
		logMigrateVersion(database, *dir)

	case "down":
		if err := database.MigrateDown(*dir); err != nil {
			log.Fatalf("migration down failed: %v", err)
		}
		logMigrateVersion(database, *dir)

	case "status":
		version, dirty, err := database.MigrateVersion(*dir)
		if err != nil {
			log.Fatalf("failed to get migration status: %v", err)
		}
		fmt.Printf("version: %d\ndirty: %v\n", version, dirty)
		if dirty {
			fmt.Println("a migration failed mid-run; inspect the database, then 'migrate force <version>'")
		}

	case "version":
		if fs.NArg() < 2 {
			log.Fatal("usage: vignette-report migrate version <version>")
		}
		v, err := strconv.ParseUint(fs.Arg(1), 10, 32)
		if err != nil {
			log.Fatalf("invalid version number %q", fs.Arg(1))
		}
		if err := database.MigrateTo(*dir, uint(v)); err != nil {
			log.Fatalf("migration to version %d failed: %v", v, err)
		}
		logMigrateVersion(database, *dir)

	case "baseline":
		if fs.NArg() < 2 {
			log.Fatal("usage: vignette-report migrate baseline <version>")
		}
		v, err := strconv.ParseUint(fs.Arg(1), 10, 32)
		if err != nil {
			log.Fatalf("invalid version number %q", fs.Arg(1))
		}
		if err := database.BaselineAtVersion(uint(v)); err != nil {
			log.Fatalf("baseline failed: %v", err)
		}

	case "force":
		if fs.NArg() < 2 {
			log.Fatal("usage: vignette-report migrate force <version>")
		}
		v, err := strconv.Atoi(fs.Arg(1))
		if err != nil {
			log.Fatalf("invalid version number %q", fs.Arg(1))
		}
		if err := database.MigrateForce(*dir, v); err != nil {
			log.Fatalf("force migration failed: %v", err)
		}
		log.Printf("migration version forced to %d", v)

	case "help":
		printMigrateHelp()

	default:
		fmt.Printf("unknown migrate action: %s\n\n", action)
		printMigrateHelp()
		os.Exit(1)
	}
}

func logMigrateVersion(database *DB, dir string) {
	version, dirty, err := database.MigrateVersion(dir)
	if err != nil {
		log.Printf("failed to read migration version: %v", err)
		return
	}
	log.Printf("current version: %d (dirty: %v)", version, dirty)
}

func printMigrateHelp() {
	fmt.Println("Usage: vignette-report migrate [-db file] [-dir dir] <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  up             Apply all pending migrations")
	fmt.Println("  down           Roll back one migration")
	fmt.Println("  status         Show current migration version and dirty state")
	fmt.Println("  version <N>    Migrate up or down to version N")
	fmt.Println("  baseline <N>   Record version N without running migrations")
	fmt.Println("  force <N>      Force migration version to N (recovery only)")
	fmt.Println("  help           Show this help message")
}
