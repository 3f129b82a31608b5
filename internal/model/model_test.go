package model

import (
	"strings"
	"testing"
	"time"
)

func TestContentID(t *testing.T) {
	id := ContentID([]byte("note A"))
	if !strings.HasPrefix(id, "%") {
		t.Fatalf("expected %% prefix, got %q", id)
	}
	if len(id) != 13 {
		t.Errorf("expected 12 hex chars after prefix, got %q", id)
	}
	if id != ContentID([]byte("note A")) {
		t.Error("content ID not deterministic")
	}
	if id == ContentID([]byte("note B")) {
		t.Error("distinct content produced the same ID")
	}
}

func TestContentIDEmpty(t *testing.T) {
	// sha256 of the empty string is well-defined.
	id := ContentID(nil)
	if id != "%e3b0c44298fc" {
		t.Errorf("unexpected empty-content ID %q", id)
	}
}

func TestTimestampID(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if got := TimestampID(ts); got != "mem:2024-03-01T12:00:00Z" {
		t.Errorf("unexpected timestamp ID %q", got)
	}
}

func TestIsReserved(t *testing.T) {
	for _, id := range []string{"now", ".meta/todo", ".system"} {
		if !IsReserved(id) {
			t.Errorf("expected %q to be reserved", id)
		}
	}
	for _, id := range []string{"mem:2024-01-01T00:00:00Z", "%abcdef123456", "file:///tmp/x"} {
		if IsReserved(id) {
			t.Errorf("expected %q not to be reserved", id)
		}
	}
}

func TestValidateCollection(t *testing.T) {
	for _, name := range []string{"main", "notes_2", "a"} {
		if err := ValidateCollection(name); err != nil {
			t.Errorf("expected %q valid: %v", name, err)
		}
	}
	for _, name := range []string{"", "2abc", "Main", "has-dash", "_x"} {
		if err := ValidateCollection(name); err == nil {
			t.Errorf("expected %q invalid", name)
		}
	}
}

func TestVersionKeyRoundTrip(t *testing.T) {
	key := VersionKey("%abc123def456", 3)
	if key != "%abc123def456@v3" {
		t.Fatalf("unexpected key %q", key)
	}
	base, v := SplitVersionKey(key)
	if base != "%abc123def456" || v != 3 {
		t.Errorf("split mismatch: %q v%d", base, v)
	}
	base, v = SplitVersionKey("plain-id")
	if base != "plain-id" || v != 0 {
		t.Errorf("plain split mismatch: %q v%d", base, v)
	}
}

func TestUserTags(t *testing.T) {
	tags := map[string]string{"project": "x", "_source": "inline"}
	u := UserTags(tags)
	if len(u) != 1 || u["project"] != "x" {
		t.Errorf("unexpected user tags %v", u)
	}
}

func TestMergeTags(t *testing.T) {
	out := MergeTags(
		map[string]string{"a": "1", "b": "1"},
		nil,
		map[string]string{"b": "2"},
	)
	if out["a"] != "1" || out["b"] != "2" {
		t.Errorf("unexpected merge %v", out)
	}
}

func TestUserTagsEqual(t *testing.T) {
	a := map[string]string{"project": "x", "_source": "uri"}
	b := map[string]string{"project": "x", "_source": "inline"}
	if !UserTagsEqual(a, b) {
		t.Error("expected equal user subsets")
	}
	b["project"] = "y"
	if UserTagsEqual(a, b) {
		t.Error("expected unequal user subsets")
	}
}

func TestSharedUserTags(t *testing.T) {
	a := map[string]string{"project": "x", "status": "open", "_source": "inline"}
	b := map[string]string{"project": "x", "status": "done", "_source": "inline"}
	if n := SharedUserTags(a, b); n != 1 {
		t.Errorf("expected 1 shared tag, got %d", n)
	}
}
