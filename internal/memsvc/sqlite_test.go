package memsvc

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	svc, err := New(Config{})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return svc
}

// writeResource persists a conversation resource file the way the bridge
// does before calling Memorize.
func writeResource(t *testing.T, messages []resourceMessage) string {
	t.Helper()
	b, err := json.Marshal(messages)
	if err != nil {
		t.Fatalf("marshal messages: %v", err)
	}
	path := filepath.Join(t.TempDir(), "conversation.json")
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("write resource: %v", err)
	}
	return path
}

func TestMemorizeAndListCategories(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	path := writeResource(t, []resourceMessage{
		{Role: "user", Content: "My name is Ada and I'm a programmer."},
		{Role: "assistant", Content: "Nice to meet you, Ada."},
	})

	res, err := svc.Memorize(ctx, MemorizeParams{ResourceURL: path, Modality: "conversation", User: "u1"})
	if err != nil {
		t.Fatalf("memorize: %v", err)
	}
	if len(res.ItemIDs) == 0 {
		t.Fatal("expected at least one item id")
	}
	if res.ResourceURL != path {
		t.Errorf("resource url = %q, want %q", res.ResourceURL, path)
	}
	if res.UserID != "u1" {
		t.Errorf("user id = %q, want u1", res.UserID)
	}

	cats, err := svc.ListCategories(ctx, nil)
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	if len(cats) == 0 {
		t.Fatal("expected categories after memorize")
	}
	total := 0
	for _, c := range cats {
		total += c.Items
	}
	if total != len(res.ItemIDs) {
		t.Errorf("category item counts sum to %d, want %d", total, len(res.ItemIDs))
	}
}

func TestListCategoriesUserFilter(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	pathA := writeResource(t, []resourceMessage{{Role: "user", Content: "I like coffee."}})
	pathB := writeResource(t, []resourceMessage{{Role: "user", Content: "I like tea."}})

	if _, err := svc.Memorize(ctx, MemorizeParams{ResourceURL: pathA, User: "alice"}); err != nil {
		t.Fatalf("memorize alice: %v", err)
	}
	if _, err := svc.Memorize(ctx, MemorizeParams{ResourceURL: pathB, User: "bob"}); err != nil {
		t.Fatalf("memorize bob: %v", err)
	}

	cats, err := svc.ListCategories(ctx, &CategoryFilter{UserID: "alice"})
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	for _, c := range cats {
		if c.UserID != "alice" {
			t.Errorf("filter leaked user %q", c.UserID)
		}
	}
	if len(cats) == 0 {
		t.Fatal("expected alice's categories")
	}
}

func TestMemorizeCategorization(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	path := writeResource(t, []resourceMessage{
		{Role: "user", Content: "I love hiking and my favorite trail is in Oregon."},
	})
	res, err := svc.Memorize(ctx, MemorizeParams{ResourceURL: path})
	if err != nil {
		t.Fatalf("memorize: %v", err)
	}
	if len(res.Categories) != 1 || res.Categories[0] != "preference" {
		t.Errorf("categories = %v, want [preference]", res.Categories)
	}
}

func TestMemorizeCustomRules(t *testing.T) {
	ctx := context.Background()
	svc, err := New(Config{
		MemorizeConfig: &MemorizeConfig{
			Categories: []CategoryRule{
				{Name: "travel", Keywords: []string{"trip", "flight"}},
				{Name: "misc"},
			},
		},
	})
	if err != nil {
		t.Fatalf("construct: %v", err)
	}

	path := writeResource(t, []resourceMessage{{Role: "user", Content: "Booked a flight to Lisbon."}})
	res, err := svc.Memorize(ctx, MemorizeParams{ResourceURL: path})
	if err != nil {
		t.Fatalf("memorize: %v", err)
	}
	if res.Categories[0] != "travel" {
		t.Errorf("categories = %v, want travel first", res.Categories)
	}
}

func TestMemorizeErrors(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	if _, err := svc.Memorize(ctx, MemorizeParams{}); err == nil {
		t.Error("expected error for missing resource_url")
	}
	if _, err := svc.Memorize(ctx, MemorizeParams{ResourceURL: "/nonexistent/file.json"}); err == nil {
		t.Error("expected error for missing file")
	}

	empty := writeResource(t, nil)
	if _, err := svc.Memorize(ctx, MemorizeParams{ResourceURL: empty}); err == nil {
		t.Error("expected error for empty resource")
	}
}

func TestProbe(t *testing.T) {
	svc := newTestService(t)
	if err := svc.Probe(context.Background()); err != nil {
		t.Errorf("probe: %v", err)
	}
}

func TestSQLiteProviderPersists(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "memu.db")
	cfg := Config{DatabaseConfig: &DatabaseConfig{MetadataStore: &MetadataStore{Provider: "sqlite", Path: dbPath}}}

	svc, err := New(cfg)
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	path := writeResource(t, []resourceMessage{{Role: "user", Content: "persist me"}})
	if _, err := svc.Memorize(ctx, MemorizeParams{ResourceURL: path}); err != nil {
		t.Fatalf("memorize: %v", err)
	}

	// A second instance over the same file sees the data.
	svc2, err := New(cfg)
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	cats, err := svc2.ListCategories(ctx, nil)
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	if len(cats) == 0 {
		t.Error("expected persisted categories in second instance")
	}
}

func TestUnsupportedProvider(t *testing.T) {
	_, err := New(Config{DatabaseConfig: &DatabaseConfig{MetadataStore: &MetadataStore{Provider: "postgres"}}})
	if err == nil || !strings.Contains(err.Error(), "postgres") {
		t.Errorf("expected unsupported provider error, got %v", err)
	}
}

func TestConstructorFor(t *testing.T) {
	if ConstructorFor("1.2.0") == nil {
		t.Error("expected constructor for 1.2.0")
	}
	if ConstructorFor("9.9") == nil {
		t.Error("expected fallback constructor for unknown version")
	}
}
