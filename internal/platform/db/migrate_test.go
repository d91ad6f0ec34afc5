package db

import (
	"testing"
	"testing/fstest"

	"github.com/rs/zerolog"
)

func TestLoad_SortsByVersion(t *testing.T) {
	files := fstest.MapFS{
		"010_indexes.sql": {Data: []byte("SELECT 10;")},
		"002_second.sql":  {Data: []byte("SELECT 2;")},
		"001_core.sql":    {Data: []byte("CREATE TABLE users (id BIGSERIAL PRIMARY KEY);")},
	}

	migrations, err := NewMigrator(nil, files, zerolog.Nop()).Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}

	wantVersions := []int{1, 2, 10}
	for i, v := range wantVersions {
		if migrations[i].Version != v {
			t.Errorf("migration %d: expected version %d, got %d", i, v, migrations[i].Version)
		}
	}
	if migrations[0].Name != "001_core.sql" {
		t.Errorf("expected 001_core.sql first, got %s", migrations[0].Name)
	}
	if migrations[0].SQL != "CREATE TABLE users (id BIGSERIAL PRIMARY KEY);" {
		t.Errorf("unexpected SQL content: %s", migrations[0].SQL)
	}
}

func TestLoad_SkipsNonMigrationFiles(t *testing.T) {
	files := fstest.MapFS{
		"001_core.sql":      {Data: []byte("SELECT 1;")},
		"README.md":         {Data: []byte("docs")},
		"notes.sql":         {Data: []byte("SELECT 0;")},
		"abc_bad.sql":       {Data: []byte("SELECT 0;")},
		"seed/001_seed.sql": {Data: []byte("SELECT 0;")},
	}

	migrations, err := NewMigrator(nil, files, zerolog.Nop()).Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(migrations) != 1 {
		t.Fatalf("expected 1 migration, got %d", len(migrations))
	}
}

func TestLoad_DuplicateVersion(t *testing.T) {
	files := fstest.MapFS{
		"001_core.sql":  {Data: []byte("SELECT 1;")},
		"001_other.sql": {Data: []byte("SELECT 1;")},
	}

	if _, err := NewMigrator(nil, files, zerolog.Nop()).Load(); err == nil {
		t.Fatal("expected error for duplicate version")
	}
}

func TestLoad_Empty(t *testing.T) {
	migrations, err := NewMigrator(nil, fstest.MapFS{}, zerolog.Nop()).Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(migrations) != 0 {
		t.Errorf("expected no migrations, got %d", len(migrations))
	}
}

func TestWithSchema(t *testing.T) {
	m := NewMigrator(nil, fstest.MapFS{}, zerolog.Nop())
	other := m.WithSchema("staging")

	if m.table() != `"public"."schema_migrations"` {
		t.Errorf("unexpected default table: %s", m.table())
	}
	if other.table() != `"staging"."schema_migrations"` {
		t.Errorf("unexpected schema table: %s", other.table())
	}
}
