package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/keepstore/keep/internal/model"
)

func TestLoadCreatesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxSummaryLength != DefaultMaxSummaryLength {
		t.Errorf("expected default max summary length, got %d", cfg.MaxSummaryLength)
	}
	if cfg.Embedding.Name == "" {
		t.Error("expected auto-detected embedding provider")
	}
	if _, err := os.Stat(filepath.Join(dir, FileName)); err != nil {
		t.Errorf("expected %s to be persisted: %v", FileName, err)
	}
}

func TestLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Embedding = ProviderConfig{Name: "mock", Options: map[string]string{"dimension": "8"}}
	cfg.Summarization = ProviderConfig{Name: "mock"}
	cfg.DefaultTags = map[string]string{"agent": "test"}
	if err := Save(dir, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Embedding.Name != "mock" || got.Embedding.Options["dimension"] != "8" {
		t.Errorf("embedding config not round-tripped: %+v", got.Embedding)
	}
	if got.DefaultTags["agent"] != "test" {
		t.Errorf("default tags not round-tripped: %v", got.DefaultTags)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing embedding provider")
	}
	cfg.Embedding.Name = "mock"
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config: %v", err)
	}
	cfg.MaxSummaryLength = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero max summary length")
	}
}

func TestDiscoverEnvOverride(t *testing.T) {
	t.Setenv(EnvHome, "/tmp/keep-test-home")
	dir, err := Discover()
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if dir != "/tmp/keep-test-home" {
		t.Errorf("expected env override, got %q", dir)
	}
}

func TestDiscoverWalksUp(t *testing.T) {
	t.Setenv(EnvHome, "")
	os.Unsetenv(EnvHome)
	root := t.TempDir()
	store := filepath.Join(root, DirName)
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(store, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	t.Chdir(nested)

	dir, err := Discover()
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	// Resolve symlinks: macOS TMPDIR is symlinked.
	want, _ := filepath.EvalSymlinks(store)
	got, _ := filepath.EvalSymlinks(dir)
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestEnvTags(t *testing.T) {
	t.Setenv("KEEP_TAG_PROJECT", "alpha")
	t.Setenv("KEEP_TAG_BRANCH", "main")
	tags := EnvTags()
	if tags["project"] != "alpha" || tags["branch"] != "main" {
		t.Errorf("unexpected env tags %v", tags)
	}
}

func TestEnsureIdentity(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Embedding.Name = "mock"

	id := model.EmbeddingIdentity{Provider: "mock", Model: "mock-384", Dimension: 384}
	if err := cfg.EnsureIdentity(dir, id); err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	if cfg.Identity == nil || !cfg.Identity.Equal(id) {
		t.Fatalf("identity not recorded: %+v", cfg.Identity)
	}

	// Same identity passes.
	if err := cfg.EnsureIdentity(dir, id); err != nil {
		t.Errorf("same identity should pass: %v", err)
	}

	// A different identity is a hard error naming both.
	other := model.EmbeddingIdentity{Provider: "openai", Model: "text-embedding-3-small", Dimension: 1536}
	err := cfg.EnsureIdentity(dir, other)
	var mismatch *IdentityMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected IdentityMismatchError, got %v", err)
	}
	if !mismatch.Stored.Equal(id) || !mismatch.Current.Equal(other) {
		t.Errorf("mismatch error does not name both identities: %+v", mismatch)
	}
}
