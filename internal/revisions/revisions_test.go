package revisions

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

var author = Author{Name: "Avery", Email: "avery@example.com"}

func TestCommitHistoryAndContentAt(t *testing.T) {
	svc := New(t.TempDir())

	first, err := svc.Commit("camp-1", json.RawMessage(`[{"type":"hero","props":{"title":"Hola"}}]`), author, "Initial layout")
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	second, err := svc.Commit("camp-1", json.RawMessage(`[{"type":"hero","props":{"title":"Adiós"}}]`), author, "")
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if first.Hash == second.Hash {
		t.Fatal("expected a new revision")
	}

	history, err := svc.History("camp-1", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history len = %d, want 2", len(history))
	}
	if history[0].Hash != second.Hash || history[1].Message != "Initial layout" {
		t.Fatalf("unexpected history order: %+v", history)
	}
	if history[0].Message != "Save campaign content" || history[0].Author != "Avery" {
		t.Fatalf("unexpected head revision: %+v", history[0])
	}

	content, err := svc.ContentAt("camp-1", first.Hash)
	if err != nil {
		t.Fatalf("ContentAt() error = %v", err)
	}
	var blocks []map[string]any
	if err := json.Unmarshal(content, &blocks); err != nil {
		t.Fatalf("decode content: %v", err)
	}
	if blocks[0]["props"].(map[string]any)["title"] != "Hola" {
		t.Fatalf("unexpected content: %s", content)
	}
}

func TestCommitSkipsUnchangedContent(t *testing.T) {
	svc := New(t.TempDir())
	first, err := svc.Commit("camp-1", json.RawMessage(`{"a":1}`), author, "one")
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	again, err := svc.Commit("camp-1", json.RawMessage(`{ "a" : 1 }`), author, "two")
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if again.Hash != first.Hash {
		t.Fatalf("unchanged content produced a new revision")
	}
	history, _ := svc.History("camp-1", 0)
	if len(history) != 1 {
		t.Fatalf("history len = %d, want 1", len(history))
	}
}

func TestHistoryOfUnknownCampaignIsEmpty(t *testing.T) {
	svc := New(t.TempDir())
	history, err := svc.History("missing", 5)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("history = %+v", history)
	}
}

func TestContentAtRejectsUnknownRevisions(t *testing.T) {
	svc := New(t.TempDir())
	if _, err := svc.Commit("camp-1", json.RawMessage(`[]`), author, "init"); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	for _, hash := range []string{"zzzz", "", "0000000000000000000000000000000000000000"} {
		if _, err := svc.ContentAt("camp-1", hash); !errors.Is(err, ErrRevisionNotFound) {
			t.Fatalf("ContentAt(%q) error = %v, want ErrRevisionNotFound", hash, err)
		}
	}
	if _, err := svc.ContentAt("other", "abcdef1"); !errors.Is(err, ErrRevisionNotFound) {
		t.Fatalf("ContentAt on missing repo error = %v", err)
	}
}

func TestCommitRejectsPathLikeIDs(t *testing.T) {
	svc := New(t.TempDir())
	if _, err := svc.Commit("../escape", json.RawMessage(`[]`), author, "x"); err == nil {
		t.Fatal("expected error for path-like id")
	}
}

func TestRemoveDeletesRepository(t *testing.T) {
	dir := t.TempDir()
	svc := New(dir)
	if _, err := svc.Commit("camp-1", json.RawMessage(`[]`), author, "init"); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if err := svc.Remove("camp-1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "camp-1")); !os.IsNotExist(err) {
		t.Fatalf("repo still present: %v", err)
	}
}

func TestConcurrentCommitsAreSerialized(t *testing.T) {
	svc := New(t.TempDir())
	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			content, _ := json.Marshal(map[string]int{"n": i})
			if _, err := svc.Commit("camp-1", content, author, "concurrent"); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Commit() error = %v", err)
	}
	history, err := svc.History("camp-1", 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 5 {
		t.Fatalf("history len = %d, want 5", len(history))
	}
}
