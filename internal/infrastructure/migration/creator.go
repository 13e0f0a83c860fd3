package migration

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"text/template"
	"time"
)

// Files in migrations/ are embedded into the binaries at build time, so a new
// pair only takes effect after a rebuild.
const migrationUpTemplate = `-- Migration: {{.Name}}
-- Created: {{.Timestamp}}
-- Description: {{.Description}}
--
-- Applied in version order by cmd/migrate and on server start-up.
-- Keep statements idempotent where PostgreSQL allows it (IF NOT EXISTS).

`

const migrationDownTemplate = `-- Migration: {{.Name}} (Rollback)
-- Created: {{.Timestamp}}
-- Description: Rollback for {{.Description}}
--
-- Must undo exactly what the up migration did; product rows are upserted
-- nightly, so dropping a column loses data until the next run.

`

const (
	versionLayout = "20060102150405"
	upSuffix      = ".up.sql"
	downSuffix    = ".down.sql"
)

var (
	nameDropChars = regexp.MustCompile(`[^a-z0-9 _-]+`)
	nameSeparator = regexp.MustCompile(`[ _-]+`)
)

// ErrEmptyMigrationName is returned when a name has no usable characters
var ErrEmptyMigrationName = errors.New("migration name must contain letters or digits")

// MigrationFile is a generated up/down pair
type MigrationFile struct {
	Version     string
	Name        string
	Description string
	Timestamp   string
	UpPath      string
	DownPath    string
}

// CreateMigration writes a new, empty migration pair named
// <version>_<sanitized name> into migrationsDir. Existing files are never
// overwritten.
func CreateMigration(migrationsDir, name, description string) (*MigrationFile, error) {
	slug := sanitizeName(name)
	if slug == "" {
		return nil, ErrEmptyMigrationName
	}
	if err := os.MkdirAll(migrationsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}

	now := time.Now().UTC()
	base := now.Format(versionLayout) + "_" + slug
	mf := &MigrationFile{
		Version:     now.Format(versionLayout),
		Name:        name,
		Description: description,
		Timestamp:   now.Format(time.RFC3339),
		UpPath:      filepath.Join(migrationsDir, base+upSuffix),
		DownPath:    filepath.Join(migrationsDir, base+downSuffix),
	}

	if err := writeTemplate(mf.UpPath, migrationUpTemplate, mf); err != nil {
		return nil, fmt.Errorf("failed to create up migration: %w", err)
	}
	if err := writeTemplate(mf.DownPath, migrationDownTemplate, mf); err != nil {
		_ = os.Remove(mf.UpPath)
		return nil, fmt.Errorf("failed to create down migration: %w", err)
	}
	return mf, nil
}

func writeTemplate(path, text string, data *MigrationFile) error {
	tmpl, err := template.New(filepath.Base(path)).Parse(text)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", path, err)
	}
	if err := tmpl.Execute(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("failed to execute template: %w", err)
	}
	return f.Close()
}

// sanitizeName lowercases name, drops anything that is not a letter, digit
// or separator, and folds separator runs into one underscore.
//
//	"Add Supplier-Sort" -> add_supplier_sort
func sanitizeName(name string) string {
	s := nameDropChars.ReplaceAllString(strings.ToLower(name), "")
	s = nameSeparator.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// ListMigrations returns the base names (without .up.sql) of the migrations
// in migrationsDir in version order. A missing directory lists nothing.
func ListMigrations(migrationsDir string) ([]string, error) {
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	names := make([]string, 0, len(entries)/2)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if base, ok := strings.CutSuffix(entry.Name(), upSuffix); ok && base != "" {
			names = append(names, base)
		}
	}
	slices.Sort(names)
	return names, nil
}
