package store

import (
	"context"
	"testing"
)

func TestVersionOffsets(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Upsert(ctx, col, "a", "v1", nil, hash("v1"))
	s.Upsert(ctx, col, "a", "v2", nil, hash("v2"))
	s.Upsert(ctx, col, "a", "v3", nil, hash("v3"))

	// Offset 1 = most recently archived, offset 2 = the one before.
	v, _ := s.GetVersion(ctx, col, "a", 1)
	if v == nil || v.Summary != "v2" {
		t.Errorf("offset 1: expected v2, got %+v", v)
	}
	v, _ = s.GetVersion(ctx, col, "a", 2)
	if v == nil || v.Summary != "v1" {
		t.Errorf("offset 2: expected v1, got %+v", v)
	}
	v, _ = s.GetVersion(ctx, col, "a", 3)
	if v != nil {
		t.Errorf("offset beyond history should be nil, got %+v", v)
	}
}

func TestListVersionsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Upsert(ctx, col, "a", "v1", nil, hash("v1"))
	s.Upsert(ctx, col, "a", "v2", nil, hash("v2"))
	s.Upsert(ctx, col, "a", "v3", nil, hash("v3"))

	vs, err := s.ListVersions(ctx, col, "a", 10)
	if err != nil {
		t.Fatalf("list versions: %v", err)
	}
	if len(vs) != 2 || vs[0].Summary != "v2" || vs[1].Summary != "v1" {
		t.Errorf("unexpected version order %+v", vs)
	}

	empty, _ := s.ListVersions(ctx, col, "a", 0)
	if len(empty) != 0 {
		t.Errorf("limit 0 should return empty, got %d", len(empty))
	}
}

func TestVersionNav(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, sum := range []string{"v1", "v2", "v3", "v4"} {
		s.Upsert(ctx, col, "a", sum, nil, hash(sum))
	}
	// Archived versions 1..3 hold v1..v3.

	nav, err := s.GetVersionNav(ctx, col, "a", 0, 2)
	if err != nil {
		t.Fatalf("nav: %v", err)
	}
	if len(nav.Prev) != 2 || nav.Prev[0].Summary != "v3" || len(nav.Next) != 0 {
		t.Errorf("unexpected nav at current: %+v", nav)
	}

	nav, _ = s.GetVersionNav(ctx, col, "a", 2, 5)
	if len(nav.Prev) != 1 || nav.Prev[0].Summary != "v1" {
		t.Errorf("unexpected prev around v2: %+v", nav.Prev)
	}
	if len(nav.Next) != 1 || nav.Next[0].Summary != "v3" {
		t.Errorf("unexpected next around v2: %+v", nav.Next)
	}
}

func TestRestoreLatestVersion(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, _, _ := s.Upsert(ctx, col, "a", "v1", map[string]string{"k": "1"}, hash("v1"))
	s.Upsert(ctx, col, "a", "v2", map[string]string{"k": "2"}, hash("v2"))

	rec, err := s.RestoreLatestVersion(ctx, col, "a")
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if rec.Summary != "v1" || rec.Tags["k"] != "1" || rec.ContentHash != hash("v1") {
		t.Errorf("unexpected restored state %+v", rec)
	}
	if !rec.CreatedAt.Equal(first.CreatedAt) {
		t.Error("created_at not preserved on restore")
	}
	if n, _ := s.VersionCount(ctx, col, "a"); n != 0 {
		t.Errorf("restored version row should be deleted, got %d", n)
	}

	// No versions left: restore reports nothing to do.
	rec, err = s.RestoreLatestVersion(ctx, col, "a")
	if err != nil || rec != nil {
		t.Errorf("expected nil restore with no versions, got %+v, %v", rec, err)
	}
}

func TestRepeatedRestoreWalksHistoryBack(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, sum := range []string{"v1", "v2", "v3"} {
		s.Upsert(ctx, col, "a", sum, nil, hash(sum))
	}

	s.RestoreLatestVersion(ctx, col, "a")
	rec, _ := s.RestoreLatestVersion(ctx, col, "a")
	if rec.Summary != "v1" || rec.ContentHash != hash("v1") {
		t.Errorf("expected to be back at v1, got %+v", rec)
	}
}

func TestDeleteCascade(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Upsert(ctx, col, "a", "v1", nil, hash("v1"))
	s.Upsert(ctx, col, "a", "v2", nil, hash("v2"))

	if err := s.Delete(ctx, col, "a", true); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := s.Get(ctx, col, "a"); got != nil {
		t.Error("document not deleted")
	}
	if n, _ := s.VersionCount(ctx, col, "a"); n != 0 {
		t.Errorf("versions not cascaded, got %d", n)
	}
}

func TestDeleteKeepVersions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Upsert(ctx, col, "a", "v1", nil, hash("v1"))
	s.Upsert(ctx, col, "a", "v2", nil, hash("v2"))

	s.Delete(ctx, col, "a", false)
	if n, _ := s.VersionCount(ctx, col, "a"); n != 1 {
		t.Errorf("expected versions kept, got %d", n)
	}
}
