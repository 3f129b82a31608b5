package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/keepstore/keep/internal/checksum"
)

const col = "main"

func newTestStore(t *testing.T) *DocumentStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "documents.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func hash(s string) string {
	return checksum.SumString(s)
}

func TestUpsertAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec, changed, err := s.Upsert(ctx, col, "a", "alpha", map[string]string{"k": "v"}, hash("alpha"))
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if !changed {
		t.Error("first upsert should report content changed")
	}
	if rec.CreatedAt.IsZero() || !rec.CreatedAt.Equal(rec.UpdatedAt) {
		t.Errorf("expected created == updated on first write, got %v / %v", rec.CreatedAt, rec.UpdatedAt)
	}

	got, err := s.Get(ctx, col, "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Summary != "alpha" || got.Tags["k"] != "v" {
		t.Errorf("unexpected record %+v", got)
	}

	missing, err := s.Get(ctx, col, "nope")
	if err != nil || missing != nil {
		t.Errorf("expected nil for missing record, got %+v, %v", missing, err)
	}
}

func TestUpsertArchivesVersion(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, _, _ := s.Upsert(ctx, col, "a", "v1", nil, hash("v1"))
	rec, changed, err := s.Upsert(ctx, col, "a", "v2", nil, hash("v2"))
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if !changed {
		t.Error("content change not reported")
	}
	if !rec.CreatedAt.Equal(first.CreatedAt) {
		t.Error("created_at not preserved across upsert")
	}

	n, _ := s.VersionCount(ctx, col, "a")
	if n != 1 {
		t.Fatalf("expected 1 archived version, got %d", n)
	}
	v, err := s.GetVersion(ctx, col, "a", 1)
	if err != nil || v == nil {
		t.Fatalf("get version: %v", err)
	}
	if v.Summary != "v1" || v.ContentHash != hash("v1") {
		t.Errorf("unexpected archived state %+v", v)
	}
}

func TestUpsertIdenticalIsNoop(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tags := map[string]string{"k": "v"}
	first, _, _ := s.Upsert(ctx, col, "a", "same", tags, hash("same"))
	second, changed, err := s.Upsert(ctx, col, "a", "same", tags, hash("same"))
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if changed {
		t.Error("identical upsert should not report content changed")
	}
	if !second.UpdatedAt.Equal(first.UpdatedAt) {
		t.Error("identical upsert must not bump updated_at")
	}
	if n, _ := s.VersionCount(ctx, col, "a"); n != 0 {
		t.Errorf("identical upsert archived a version: %d", n)
	}
}

func TestTagOnlyChangeArchives(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Upsert(ctx, col, "a", "same", nil, hash("same"))
	_, changed, _ := s.Upsert(ctx, col, "a", "same", map[string]string{"project": "x"}, hash("same"))
	if changed {
		t.Error("tag-only change should not report content changed")
	}
	if n, _ := s.VersionCount(ctx, col, "a"); n != 1 {
		t.Errorf("tag change should archive a version, got %d", n)
	}
}

func TestUpdateSummaryDoesNotArchive(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Upsert(ctx, col, "a", "placeholder…", nil, hash("full content"))
	if err := s.UpdateSummary(ctx, col, "a", "real summary"); err != nil {
		t.Fatalf("update summary: %v", err)
	}
	got, _ := s.Get(ctx, col, "a")
	if got.Summary != "real summary" {
		t.Errorf("summary not replaced: %q", got.Summary)
	}
	if n, _ := s.VersionCount(ctx, col, "a"); n != 0 {
		t.Errorf("update summary must not archive, got %d versions", n)
	}

	err := s.UpdateSummary(ctx, col, "missing", "x")
	if err == nil {
		t.Error("expected error for missing document")
	}
}

func TestTouchBumpsAccessedOnly(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec, _, _ := s.Upsert(ctx, col, "a", "x", nil, hash("x"))
	time.Sleep(5 * time.Millisecond)
	if err := s.Touch(ctx, col, "a"); err != nil {
		t.Fatalf("touch: %v", err)
	}
	got, _ := s.Get(ctx, col, "a")
	if !got.AccessedAt.After(rec.AccessedAt) {
		t.Error("accessed_at not bumped")
	}
	if !got.UpdatedAt.Equal(rec.UpdatedAt) {
		t.Error("touch must not bump updated_at")
	}
}

func TestQueryByTagKey(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Upsert(ctx, col, "a", "x", map[string]string{"project": "alpha"}, hash("x"))
	s.Upsert(ctx, col, "b", "y", map[string]string{"project": "beta"}, hash("y"))
	s.Upsert(ctx, col, "c", "z", map[string]string{"status": "open"}, hash("z"))

	byKey, err := s.QueryByTagKey(ctx, col, "project", "", 10, nil)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(byKey) != 2 {
		t.Errorf("expected 2 docs with project key, got %d", len(byKey))
	}

	byValue, _ := s.QueryByTagKey(ctx, col, "project", "beta", 10, nil)
	if len(byValue) != 1 || byValue[0].ID != "b" {
		t.Errorf("unexpected value filter result %+v", byValue)
	}

	future := time.Now().Add(time.Hour)
	none, _ := s.QueryByTagKey(ctx, col, "project", "", 10, &future)
	if len(none) != 0 {
		t.Errorf("since filter in the future should match nothing, got %d", len(none))
	}
}

func TestQueryByTags(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Upsert(ctx, col, "d1", "x", map[string]string{"status": "open", "project": "alpha"}, hash("x"))
	s.Upsert(ctx, col, "d2", "y", map[string]string{"status": "open", "project": "beta"}, hash("y"))

	got, err := s.QueryByTags(ctx, col, map[string]string{"status": "open", "project": "alpha"}, 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 || got[0].ID != "d1" {
		t.Errorf("expected only d1, got %+v", got)
	}
}

func TestQueryByIDPrefix(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Upsert(ctx, col, ".meta/todo", "status=open", nil, hash("m1"))
	s.Upsert(ctx, col, ".meta/done", "status=done", nil, hash("m2"))
	s.Upsert(ctx, col, "plain", "x", nil, hash("x"))

	got, err := s.QueryByIDPrefix(ctx, col, ".meta/")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 meta docs, got %d", len(got))
	}
}

func TestListRecentOrdering(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Upsert(ctx, col, "old", "x", nil, hash("x"))
	time.Sleep(5 * time.Millisecond)
	s.Upsert(ctx, col, "new", "y", nil, hash("y"))

	recent, err := s.ListRecent(ctx, col, 10, OrderByUpdated)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recent) != 2 || recent[0].ID != "new" {
		t.Errorf("unexpected order %+v", recent)
	}

	// Touch flips accessed ordering.
	time.Sleep(5 * time.Millisecond)
	s.Touch(ctx, col, "old")
	byAccess, _ := s.ListRecent(ctx, col, 10, OrderByAccessed)
	if byAccess[0].ID != "old" {
		t.Errorf("expected touched doc first, got %q", byAccess[0].ID)
	}
}

func TestListTagKeysAndValues(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Upsert(ctx, col, "a", "x", map[string]string{"project": "alpha", "status": "open"}, hash("x"))
	s.Upsert(ctx, col, "b", "y", map[string]string{"project": "beta"}, hash("y"))

	keys, _ := s.ListTagKeys(ctx, col)
	if len(keys) != 2 {
		t.Errorf("expected 2 keys, got %v", keys)
	}
	values, _ := s.ListTagValues(ctx, col, "project")
	if len(values) != 2 {
		t.Errorf("expected 2 values, got %v", values)
	}
}

func TestEmptyCollectionQueries(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if recent, err := s.ListRecent(ctx, col, 10, OrderByUpdated); err != nil || len(recent) != 0 {
		t.Errorf("list recent on empty: %v %v", recent, err)
	}
	if recs, err := s.QueryByTagKey(ctx, col, "x", "", 10, nil); err != nil || len(recs) != 0 {
		t.Errorf("tag query on empty: %v %v", recs, err)
	}
	if vs, err := s.ListVersions(ctx, col, "nope", 10); err != nil || len(vs) != 0 {
		t.Errorf("versions on empty: %v %v", vs, err)
	}
	if n, err := s.Count(ctx, col); err != nil || n != 0 {
		t.Errorf("count on empty: %d %v", n, err)
	}
}
