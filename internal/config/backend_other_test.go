//go:build !darwin

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileBackendRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobtrail", "config.json")

	b := newFileBackend(path)
	if err := b.SetInt("server.port", 4300); err != nil {
		t.Fatalf("SetInt: %v", err)
	}
	if err := b.SetString("log.level", "debug"); err != nil {
		t.Fatalf("SetString: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("config file mode = %v, want 0600", info.Mode().Perm())
	}

	reopened := newFileBackend(path)
	port, ok, err := reopened.GetInt("server.port")
	if err != nil || !ok || port != 4300 {
		t.Errorf("GetInt = %d, %v, %v", port, ok, err)
	}
	level, ok, err := reopened.GetString("log.level")
	if err != nil || !ok || level != "debug" {
		t.Errorf("GetString = %q, %v, %v", level, ok, err)
	}

	if err := reopened.Delete("log.level"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := newFileBackend(path).GetString("log.level"); ok {
		t.Error("deleted key still present")
	}
}

func TestFileBackendBadInt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"server.port": 12.5}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := newFileBackend(path).GetInt("server.port"); err == nil {
		t.Error("expected error for fractional port")
	}
}

func TestFileBackendBool(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"a": "TRUE", "b": "yes", "c": 1}`), 0o600); err != nil {
		t.Fatal(err)
	}
	b := newFileBackend(path)

	if v, ok, err := b.GetBool("a"); err != nil || !ok || !v {
		t.Errorf("GetBool(a) = %v, %v, %v", v, ok, err)
	}
	if _, _, err := b.GetBool("b"); err == nil {
		t.Error("expected error for \"yes\"")
	}
	if _, _, err := b.GetBool("c"); err == nil {
		t.Error("expected error for a number")
	}
	if _, ok, err := b.GetBool("missing"); ok || err != nil {
		t.Errorf("missing key: ok=%v err=%v", ok, err)
	}

	if err := b.SetBool("migration.auto_run", false); err != nil {
		t.Fatalf("SetBool: %v", err)
	}
	v, ok, err := newFileBackend(path).GetBool("migration.auto_run")
	if err != nil || !ok || v {
		t.Errorf("reopened GetBool = %v, %v, %v", v, ok, err)
	}
}

func TestSecretsFile(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	if _, err := keychainGet("jobtrail", "api_token"); err == nil {
		t.Fatal("expected error before the secrets file exists")
	}
	if err := keychainSet("jobtrail", "api_token", "tok-1"); err != nil {
		t.Fatalf("keychainSet: %v", err)
	}
	got, err := secretStore{}.Get("jobtrail", "api_token")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "tok-1" {
		t.Errorf("token = %q, want tok-1", got)
	}
}

func TestSecretsFile_CorruptIsNotOverwritten(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)

	path := filepath.Join(dir, "jobtrail", "secrets.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := keychainSet("jobtrail", "api_token", "tok"); err == nil {
		t.Fatal("expected error for corrupt secrets file")
	}
	data, _ := os.ReadFile(path)
	if string(data) != "{not json" {
		t.Errorf("secrets file was modified: %q", data)
	}
}
