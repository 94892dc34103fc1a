package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/webcrawl/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *CrawlDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func testRecord(url, hash string) *model.PageRecord {
	return &model.PageRecord{
		URL:        url,
		Domain:     "a.test",
		Title:      "Test",
		StatusCode: 200,
		TextLength: 42,
		Hash:       hash,
		Timestamp:  time.Now(),
	}
}

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dbDir, "webcrawl.db")); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
	})

	t.Run("CreateIfNotExists=false requires existing database", func(t *testing.T) {
		t.Parallel()

		opts := DefaultOptions()
		opts.CreateIfNotExists = false
		if _, err := Open(t.TempDir(), opts); err == nil {
			t.Error("expected error for missing database")
		}
	})
}

// TestSessions tests session lifecycle and page storage.
func TestSessions(t *testing.T) {
	t.Parallel()

	t.Run("begin, save, finish, list", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		ctx := context.Background()

		id, err := db.BeginSession(ctx, "https://a.test/")
		if err != nil {
			t.Fatal(err)
		}

		if err := db.SavePage(ctx, id, testRecord("https://a.test/", "h1")); err != nil {
			t.Fatal(err)
		}
		if err := db.SavePage(ctx, id, testRecord("https://a.test/p", "h2")); err != nil {
			t.Fatal(err)
		}

		summary := &model.Summary{PagesFetched: 2, URLsVisited: 2}
		if err := db.FinishSession(ctx, id, summary); err != nil {
			t.Fatal(err)
		}

		sessions, err := db.ListSessions(ctx, "https://a.test/")
		if err != nil {
			t.Fatal(err)
		}
		if len(sessions) != 1 {
			t.Fatalf("expected 1 session, got %d", len(sessions))
		}
		if sessions[0].PagesFetched != 2 || !sessions[0].Finished {
			t.Errorf("unexpected session: %+v", sessions[0])
		}
	})

	t.Run("list filters by start URL", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		ctx := context.Background()

		if _, err := db.BeginSession(ctx, "https://a.test/"); err != nil {
			t.Fatal(err)
		}
		if _, err := db.BeginSession(ctx, "https://b.test/"); err != nil {
			t.Fatal(err)
		}

		sessions, err := db.ListSessions(ctx, "https://a.test/")
		if err != nil {
			t.Fatal(err)
		}
		if len(sessions) != 1 {
			t.Errorf("expected 1 filtered session, got %d", len(sessions))
		}

		all, err := db.ListSessions(ctx, "")
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 2 {
			t.Errorf("expected 2 sessions without filter, got %d", len(all))
		}
	})

	t.Run("saving same URL twice overwrites", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		ctx := context.Background()

		id, err := db.BeginSession(ctx, "https://a.test/")
		if err != nil {
			t.Fatal(err)
		}
		if err := db.SavePage(ctx, id, testRecord("https://a.test/", "old")); err != nil {
			t.Fatal(err)
		}
		if err := db.SavePage(ctx, id, testRecord("https://a.test/", "new")); err != nil {
			t.Fatal(err)
		}

		hashes, err := db.PageHashes(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if len(hashes) != 1 || hashes["https://a.test/"] != "new" {
			t.Errorf("expected single overwritten page, got %v", hashes)
		}
	})

	t.Run("round-trips page records", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		ctx := context.Background()

		id, err := db.BeginSession(ctx, "https://a.test/")
		if err != nil {
			t.Fatal(err)
		}
		want := testRecord("https://a.test/page", "abc")
		want.Links = []string{"https://a.test/x"}
		if err := db.SavePage(ctx, id, want); err != nil {
			t.Fatal(err)
		}

		got, err := db.GetPage(ctx, id, "https://a.test/page")
		if err != nil {
			t.Fatal(err)
		}
		if got == nil {
			t.Fatal("expected stored page")
		}
		if got.Title != want.Title || len(got.Links) != 1 {
			t.Errorf("unexpected record: %+v", got)
		}

		missing, err := db.GetPage(ctx, id, "https://a.test/absent")
		if err != nil {
			t.Fatal(err)
		}
		if missing != nil {
			t.Error("expected nil for missing page")
		}
	})
}

// TestDiffSessions tests session comparison by content hash.
func TestDiffSessions(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	oldID, err := db.BeginSession(ctx, "https://a.test/")
	if err != nil {
		t.Fatal(err)
	}
	newID, err := db.BeginSession(ctx, "https://a.test/")
	if err != nil {
		t.Fatal(err)
	}

	// old: /, /gone, /same, /edit   new: /, /same, /edit (changed), /fresh
	for _, p := range []struct {
		id   int64
		url  string
		hash string
	}{
		{oldID, "https://a.test/", "h-root"},
		{oldID, "https://a.test/gone", "h-gone"},
		{oldID, "https://a.test/same", "h-same"},
		{oldID, "https://a.test/edit", "h-before"},
		{newID, "https://a.test/", "h-root"},
		{newID, "https://a.test/same", "h-same"},
		{newID, "https://a.test/edit", "h-after"},
		{newID, "https://a.test/fresh", "h-fresh"},
	} {
		if err := db.SavePage(ctx, p.id, testRecord(p.url, p.hash)); err != nil {
			t.Fatal(err)
		}
	}

	diff, err := db.DiffSessions(ctx, oldID, newID)
	if err != nil {
		t.Fatal(err)
	}

	if len(diff.Added) != 1 || diff.Added[0] != "https://a.test/fresh" {
		t.Errorf("unexpected added: %v", diff.Added)
	}
	if len(diff.Removed) != 1 || diff.Removed[0] != "https://a.test/gone" {
		t.Errorf("unexpected removed: %v", diff.Removed)
	}
	if len(diff.Changed) != 1 || diff.Changed[0] != "https://a.test/edit" {
		t.Errorf("unexpected changed: %v", diff.Changed)
	}
	if diff.Unchanged != 2 {
		t.Errorf("expected 2 unchanged, got %d", diff.Unchanged)
	}
}

// TestSink tests the engine-facing record sink.
func TestSink(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	id, err := db.BeginSession(ctx, "https://a.test/")
	if err != nil {
		t.Fatal(err)
	}

	sink := db.NewSink(id)
	if err := sink.Write(testRecord("https://a.test/", "h")); err != nil {
		t.Fatal(err)
	}

	hashes, err := db.PageHashes(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if hashes["https://a.test/"] != "h" {
		t.Errorf("expected sink write persisted, got %v", hashes)
	}
}
