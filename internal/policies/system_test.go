package policies_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/JaimeStill/safestack/internal/policies"
	"github.com/JaimeStill/safestack/pkg/lifecycle"
)

type memStore struct {
	mu        sync.Mutex
	versions  []policies.Document
	loads     int
	appendErr error
}

func (m *memStore) Latest(ctx context.Context) (*policies.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	if len(m.versions) == 0 {
		return &policies.Document{Policies: []policies.Policy{}}, nil
	}
	doc := m.versions[len(m.versions)-1]
	return &doc, nil
}

func (m *memStore) Append(ctx context.Context, doc policies.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	for _, v := range m.versions {
		if v.Version == doc.Version {
			return policies.ErrConflict
		}
	}
	m.versions = append(m.versions, doc)
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seeded(t *testing.T) (policies.System, *memStore) {
	t.Helper()
	store := &memStore{versions: []policies.Document{*sampleDocument()}}
	return policies.NewSystem(store, discard(), policies.Options{}), store
}

func TestCurrentCaches(t *testing.T) {
	sys, store := seeded(t)
	ctx := context.Background()

	for range 3 {
		if _, err := sys.Current(ctx); err != nil {
			t.Fatalf("Current: %v", err)
		}
	}
	if store.loads != 1 {
		t.Errorf("store loads = %d, want 1", store.loads)
	}

	sys.Invalidate()
	if _, err := sys.Current(ctx); err != nil {
		t.Fatalf("Current: %v", err)
	}
	if store.loads != 2 {
		t.Errorf("store loads after invalidate = %d, want 2", store.loads)
	}
}

func TestReviseIncrementsVersion(t *testing.T) {
	sys, _ := seeded(t)
	ctx := context.Background()

	before, err := sys.Current(ctx)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}

	doc, err := sys.Revise(ctx, 1, policies.Revision{Description: "Walkways must be clear of stored material; staged pallets inside marked bays are permitted."})
	if err != nil {
		t.Fatalf("Revise: %v", err)
	}

	if doc.Version != before.Version+1 {
		t.Errorf("version = %d, want %d", doc.Version, before.Version+1)
	}
	if !doc.UpdatedAt.After(before.UpdatedAt) {
		t.Error("updated_at not advanced")
	}

	p, err := sys.Find(ctx, 1)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if p.Description != doc.Policies[0].Description || p.Title != "Poor Housekeeping" {
		t.Errorf("Find after revise = %+v", p)
	}

	if before.Policies[0].Description != "Walkways must be clear." {
		t.Error("revise mutated the previous document")
	}
}

func TestReviseFailureKeepsVersion(t *testing.T) {
	sys, store := seeded(t)
	ctx := context.Background()

	if _, err := sys.Revise(ctx, 42, policies.Revision{Description: "x"}); !errors.Is(err, policies.ErrNotFound) {
		t.Errorf("Revise unknown id = %v, want ErrNotFound", err)
	}

	store.appendErr = errors.New("database unavailable")
	if _, err := sys.Revise(ctx, 1, policies.Revision{Description: "x"}); err == nil {
		t.Fatal("expected append error")
	}

	doc, err := sys.Current(ctx)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if doc.Version != 3 {
		t.Errorf("version = %d, want 3", doc.Version)
	}
	if p, _ := doc.Find(1); p.Description != "Walkways must be clear." {
		t.Errorf("description changed after failed revise: %q", p.Description)
	}
}

func TestCreateAndDelete(t *testing.T) {
	sys, _ := seeded(t)
	ctx := context.Background()

	p, err := sys.Create(ctx, policies.CreateCommand{Title: "Unsecured Ladder", Level: 2, Description: "Ladders must be tied off."})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.ID != 5 {
		t.Errorf("new id = %d, want 5", p.ID)
	}
	if n, _ := sys.Count(ctx); n != 5 {
		t.Errorf("count after create = %d, want 5", n)
	}

	if _, err := sys.Create(ctx, policies.CreateCommand{Title: "Unsecured Ladder", Level: 1}); !errors.Is(err, policies.ErrDuplicate) {
		t.Errorf("duplicate create = %v, want ErrDuplicate", err)
	}
	if _, err := sys.Create(ctx, policies.CreateCommand{Title: "Bad", Level: 0}); !errors.Is(err, policies.ErrInvalidPolicy) {
		t.Errorf("invalid create = %v, want ErrInvalidPolicy", err)
	}

	if err := sys.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if n, _ := sys.Count(ctx); n != 4 {
		t.Errorf("count after delete = %d, want 4", n)
	}
	if _, err := sys.Find(ctx, p.ID); !errors.Is(err, policies.ErrNotFound) {
		t.Errorf("Find deleted = %v, want ErrNotFound", err)
	}
	if err := sys.Delete(ctx, p.ID); !errors.Is(err, policies.ErrNotFound) {
		t.Errorf("Delete twice = %v, want ErrNotFound", err)
	}

	doc, _ := sys.Current(ctx)
	if doc.Version != 5 {
		t.Errorf("version after create+delete = %d, want 5", doc.Version)
	}
}

func TestDeletedIDsAreNotReused(t *testing.T) {
	sys, _ := seeded(t)
	ctx := context.Background()

	if err := sys.Delete(ctx, 4); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	ladder, err := sys.Create(ctx, policies.CreateCommand{Title: "Ladder Use", Level: 1})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ladder.ID != 5 {
		t.Errorf("id after deleting the highest = %d, want 5", ladder.ID)
	}

	if err := sys.Delete(ctx, ladder.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	spill, err := sys.Create(ctx, policies.CreateCommand{Title: "Spill", Level: 2})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if spill.ID != 6 {
		t.Errorf("id = %d, want 6", spill.ID)
	}

	if _, err := sys.Find(ctx, 4); !errors.Is(err, policies.ErrNotFound) {
		t.Errorf("Find(4) = %v, want ErrNotFound", err)
	}

	doc, _ := sys.Current(ctx)
	if doc.NextID != 7 {
		t.Errorf("next_id = %d, want 7", doc.NextID)
	}
}

func TestImportKeepsIDHighWaterMark(t *testing.T) {
	sys, _ := seeded(t)
	ctx := context.Background()

	if _, err := sys.Import(ctx, policies.Document{Version: 10, Policies: []policies.Policy{{ID: 1, Title: "Spill", Level: 2}}}); err != nil {
		t.Fatalf("Import: %v", err)
	}

	p, err := sys.Create(ctx, policies.CreateCommand{Title: "Ladder Use", Level: 1})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.ID != 5 {
		t.Errorf("id after import = %d, want 5 (ids 2..4 were used before the import)", p.ID)
	}

	if _, err := sys.Import(ctx, policies.Document{Version: 20, NextID: 50, Policies: []policies.Policy{{ID: 1, Title: "Spill", Level: 2}}}); err != nil {
		t.Fatalf("Import: %v", err)
	}
	p, err = sys.Create(ctx, policies.CreateCommand{Title: "Guard Rail", Level: 3})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.ID != 50 {
		t.Errorf("id = %d, want imported next_id 50", p.ID)
	}
}

func TestImport(t *testing.T) {
	sys, _ := seeded(t)
	ctx := context.Background()

	stale := policies.Document{Version: 3, Policies: []policies.Policy{{ID: 1, Title: "A", Level: 1}}}
	if _, err := sys.Import(ctx, stale); !errors.Is(err, policies.ErrStale) {
		t.Errorf("Import stale = %v, want ErrStale", err)
	}

	fresh := policies.Document{Version: 10, Policies: []policies.Policy{{ID: 7, Title: "Spill", Level: 2}}}
	doc, err := sys.Import(ctx, fresh)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if doc.Version != 10 || doc.UpdatedAt.IsZero() {
		t.Errorf("imported = %+v", doc)
	}

	list, _ := sys.List(ctx, nil)
	if len(list) != 1 || list[0].Title != "Spill" {
		t.Errorf("List after import = %+v", list)
	}
}

func TestStartImportsPolicyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policies.json")
	content := `{"version": 4, "policies": [{"id": 1, "title": "Poor Housekeeping", "level": 1, "description": "Keep walkways clear."}]}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	store := &memStore{}
	sys := policies.NewSystem(store, discard(), policies.Options{PolicyFile: path})

	lc := lifecycle.New()
	if err := sys.Start(lc); err != nil {
		t.Fatalf("Start: %v", err)
	}
	lc.WaitForStartup()

	doc, err := sys.Current(context.Background())
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if doc.Version != 4 || len(doc.Policies) != 1 {
		t.Errorf("document after startup = %+v", doc)
	}
}

func TestLoadFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(path, []byte("{not json"), 0644)

	if _, err := policies.LoadFile(path); !errors.Is(err, policies.ErrInvalidPolicy) {
		t.Errorf("LoadFile = %v, want ErrInvalidPolicy", err)
	}
}
