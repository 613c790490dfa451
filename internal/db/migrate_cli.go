package db

import (
	"fmt"
	"io"
)

// ErrUnknownMigrateAction is returned by RunMigrateCommand for actions it
// does not recognise.
var ErrUnknownMigrateAction = fmt.Errorf("unknown migrate action")

// RunMigrateCommand handles the 'migrate' subcommand. Progress and status
// are written to w.
func RunMigrateCommand(w io.Writer, args []string, dbPath string) error {
	if len(args) < 1 {
		PrintMigrateHelp(w)
		return fmt.Errorf("%w: none given", ErrUnknownMigrateAction)
	}

	action := args[0]
	if action == "help" {
		PrintMigrateHelp(w)
		return nil
	}

	// Open without migrating; the action decides what happens to the schema.
	database, err := OpenDB(dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	migrations := MigrationsFS()

	switch action {
	case "up":
		if err := database.MigrateUp(migrations); err != nil {
			return err
		}
		fmt.Fprintln(w, "All migrations applied")
	case "down":
		if err := database.MigrateDown(migrations); err != nil {
			return err
		}
		fmt.Fprintln(w, "Rolled back one migration")
	case "status":
	default:
		PrintMigrateHelp(w)
		return fmt.Errorf("%w: %s", ErrUnknownMigrateAction, action)
	}

	version, dirty, err := database.MigrateVersion(migrations)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	fmt.Fprintf(w, "Current version: %d\n", version)
	fmt.Fprintf(w, "Dirty: %v\n", dirty)
	if dirty {
		fmt.Fprintln(w, "WARNING: a migration failed mid-execution; inspect the database before retrying")
	}
	return nil
}

// PrintMigrateHelp writes the usage of the migrate subcommand.
func PrintMigrateHelp(w io.Writer) {
	fmt.Fprintln(w, `Usage: fusion migrate <action> [-db path]

Actions:
  up       Apply all pending migrations
  down     Roll back the most recent migration
  status   Show the current schema version
  help     Show this message`)
}
