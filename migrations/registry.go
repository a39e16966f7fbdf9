package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	donations "github.com/goliatone/go-donations"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

const rootPath = "data/sql/migrations"

// Names lists the donation schema migrations in apply order. Every dialect
// must ship an up and a down file for each of them.
var Names = []string{
	"00001_donations_core_schema",
	"00002_donations_member_directory",
}

// Source is the migration directory of one dialect.
type Source struct {
	Dialect string
	Path    string
	FS      fs.FS
}

// RegisterFunc hands a dialect's migration directory to the persistence
// client.
type RegisterFunc func(ctx context.Context, source Source) error

// DialectForDriver maps a database/sql driver name onto a migration dialect.
func DialectForDriver(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "postgresql", "pg", "pgx":
		return DialectPostgres, nil
	case "sqlite", "sqlite3", "":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("migrations: no schema for driver %q", driver)
	}
}

// Sources resolves the postgres and sqlite directories from root, or from
// the embedded tree when root is nil, and checks that both are complete.
func Sources(root fs.FS) ([]Source, error) {
	if root == nil {
		root = donations.GetMigrationsFS()
	}
	base, err := fs.Sub(root, rootPath)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve %s: %w", rootPath, err)
	}
	sqliteFS, err := fs.Sub(base, "sqlite")
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite directory: %w", err)
	}

	sources := []Source{
		{Dialect: DialectPostgres, Path: rootPath, FS: base},
		{Dialect: DialectSQLite, Path: rootPath + "/sqlite", FS: sqliteFS},
	}
	for _, source := range sources {
		if err := checkComplete(source); err != nil {
			return nil, err
		}
	}
	return sources, nil
}

// SourceFor returns the migration directory for dialect.
func SourceFor(root fs.FS, dialect string) (Source, error) {
	sources, err := Sources(root)
	if err != nil {
		return Source{}, err
	}
	dialect = strings.ToLower(strings.TrimSpace(dialect))
	for _, source := range sources {
		if source.Dialect == dialect {
			return source, nil
		}
	}
	return Source{}, fmt.Errorf("migrations: unknown dialect %q", dialect)
}

// Register resolves the schema for driver and passes it to registerFn.
func Register(ctx context.Context, driver string, registerFn RegisterFunc) (Source, error) {
	if registerFn == nil {
		return Source{}, fmt.Errorf("migrations: register function is required")
	}
	dialect, err := DialectForDriver(driver)
	if err != nil {
		return Source{}, err
	}
	source, err := SourceFor(nil, dialect)
	if err != nil {
		return Source{}, err
	}
	if err := registerFn(ctx, source); err != nil {
		return source, fmt.Errorf("migrations: register %s (%s): %w", source.Dialect, source.Path, err)
	}
	return source, nil
}

func checkComplete(source Source) error {
	var missing []string
	for _, name := range Names {
		for _, suffix := range []string{".up.sql", ".down.sql"} {
			content, err := fs.ReadFile(source.FS, name+suffix)
			if err != nil || strings.TrimSpace(string(content)) == "" {
				missing = append(missing, name+suffix)
			}
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("migrations: %s schema in %s is missing %s",
			source.Dialect, source.Path, strings.Join(missing, ", "))
	}
	return nil
}
