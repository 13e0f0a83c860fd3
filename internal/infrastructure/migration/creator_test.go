package migration

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/feedsync/backend/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add products table", "add_products_table"},
		{"Add-Supplier-Sort", "add_supplier_sort"},
		{"ADD__RAW__PAYLOAD", "add_raw_payload"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "migrations")

	mf, err := CreateMigration(dir, "add product ean", "Store EAN barcodes")
	require.NoError(t, err)
	assert.Len(t, mf.Version, 14)

	upBase := strings.TrimSuffix(filepath.Base(mf.UpPath), ".up.sql")
	downBase := strings.TrimSuffix(filepath.Base(mf.DownPath), ".down.sql")
	assert.Equal(t, upBase, downBase)
	assert.True(t, strings.HasSuffix(upBase, "_add_product_ean"))

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "Store EAN barcodes")

	down, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "Rollback for Store EAN barcodes")

	listed, err := ListMigrations(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{upBase}, listed)
}

func TestCreateMigration_RejectsEmptyName(t *testing.T) {
	dir := t.TempDir()

	_, err := CreateMigration(dir, "!!!", "")
	require.ErrorIs(t, err, ErrEmptyMigrationName)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriteTemplate_DoesNotOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "1_x.up.sql")
	require.NoError(t, os.WriteFile(path, []byte("CREATE TABLE keep (id int);"), 0o644))

	err := writeTemplate(path, migrationUpTemplate, &MigrationFile{Name: "x"})
	require.Error(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE keep (id int);", string(content))
}

func TestListMigrations(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{
		"000001_init.up.sql",
		"000001_init.down.sql",
		"000002_add_index.up.sql",
		"000002_add_index.down.sql",
		"README.md",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("--"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir.up.sql"), 0o755))

	listed, err := ListMigrations(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"000001_init", "000002_add_index"}, listed)

	missing, err := ListMigrations(filepath.Join(dir, "nope"))
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(migrations.FS, "*.up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)

	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		_, err := fs.Stat(migrations.FS, down)
		assert.NoError(t, err, "missing rollback for %s", up)
	}

	products, err := fs.ReadFile(migrations.FS, "20260301120100_create_products.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(products), "UNIQUE (supplier_name, supplier_sku)")
}
