package storage

import (
	"context"
	"errors"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}

	v1, err := s1.AppliedMigrations(context.Background())
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations(context.Background())
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

// TestMigrationsOrdered verifies migrations are applied in ascending numeric order.
func TestMigrationsOrdered(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations(context.Background())
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(versions) < 2 {
		t.Fatalf("expected at least two applied migrations, got %v", versions)
	}

	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("migrations not in ascending order: %v", versions)
			break
		}
	}
}

func TestParseMigrationVersion(t *testing.T) {
	v, err := parseMigrationVersion("002_kv_history.sql")
	if err != nil {
		t.Fatalf("parseMigrationVersion: %v", err)
	}
	if v != 2 {
		t.Errorf("version = %d, want 2", v)
	}

	if _, err := parseMigrationVersion("kv.sql"); err == nil {
		t.Error("expected error for filename without numeric prefix")
	}
}

func TestSetAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.Set(ctx, map[string][]byte{
		"postings":       []byte(`[{"id":"p1"}]`),
		"schema_version": []byte(`2`),
	})
	if err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := s.Get(ctx, "postings", "schema_version", "missing")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d keys, want 2: %v", len(got), got)
	}
	if string(got["postings"]) != `[{"id":"p1"}]` {
		t.Errorf("postings = %s", got["postings"])
	}
	if string(got["schema_version"]) != "2" {
		t.Errorf("schema_version = %s, want 2", got["schema_version"])
	}
	if _, ok := got["missing"]; ok {
		t.Error("missing key should be absent from result")
	}
}

func TestGetNoKeys(t *testing.T) {
	s := openTestStore(t)

	got, err := s.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %v, want empty map", got)
	}
}

func TestSetOverwritesAndRecordsHistory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, v := range []string{"1", "2", "2", "3"} {
		if err := s.Set(ctx, map[string][]byte{"schema_version": []byte(v)}); err != nil {
			t.Fatalf("Set(%s): %v", v, err)
		}
	}

	val, err := s.Value(ctx, "schema_version")
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if string(val) != "3" {
		t.Errorf("value = %s, want 3", val)
	}

	hist, err := s.History(ctx, "schema_version", 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	// Writing an identical value does not create a history row.
	if len(hist) != 2 {
		t.Fatalf("history has %d entries, want 2", len(hist))
	}
	if string(hist[0].Value) != "2" || string(hist[1].Value) != "1" {
		t.Errorf("history = [%s, %s], want [2, 1]", hist[0].Value, hist[1].Value)
	}
}

func TestValueNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Value(context.Background(), "does-not-exist")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestKeys(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, map[string][]byte{"b": []byte(`1`), "a": []byte(`2`)}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	keys, err := s.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Errorf("keys = %v, want [a b]", keys)
	}
}

func TestPersistsAcrossOpen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s1.Set(ctx, map[string][]byte{"connections": []byte(`[]`)}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	v, err := s2.Value(ctx, "connections")
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if string(v) != "[]" {
		t.Errorf("value = %s, want []", v)
	}
}
