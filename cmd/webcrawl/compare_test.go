package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/webcrawl/internal/database"
	"github.com/nao1215/webcrawl/internal/model"
)

// seedSessions creates a database with two sessions for the same URL.
func seedSessions(t *testing.T, dbDir string) {
	t.Helper()

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	ctx := context.Background()
	rec := func(url, hash string) *model.PageRecord {
		return &model.PageRecord{URL: url, Domain: "example.com", Hash: hash, Timestamp: time.Now()}
	}

	oldID, err := db.BeginSession(ctx, "https://example.com/")
	if err != nil {
		t.Fatal(err)
	}
	if err := db.SavePage(ctx, oldID, rec("https://example.com/", "h1")); err != nil {
		t.Fatal(err)
	}
	if err := db.SavePage(ctx, oldID, rec("https://example.com/gone", "h2")); err != nil {
		t.Fatal(err)
	}
	if err := db.FinishSession(ctx, oldID, &model.Summary{PagesFetched: 2, URLsVisited: 2}); err != nil {
		t.Fatal(err)
	}

	newID, err := db.BeginSession(ctx, "https://example.com/")
	if err != nil {
		t.Fatal(err)
	}
	if err := db.SavePage(ctx, newID, rec("https://example.com/", "h1-changed")); err != nil {
		t.Fatal(err)
	}
	if err := db.SavePage(ctx, newID, rec("https://example.com/new", "h3")); err != nil {
		t.Fatal(err)
	}
	if err := db.FinishSession(ctx, newID, &model.Summary{PagesFetched: 2, URLsVisited: 2}); err != nil {
		t.Fatal(err)
	}
}

// TestCompareCmd tests the compare command against a seeded database.
func TestCompareCmd(t *testing.T) {
	t.Parallel()

	t.Run("requires a URL without list-all", func(t *testing.T) {
		t.Parallel()

		cmd := NewCompareCmd()
		cmd.SetArgs([]string{"--db-dir", t.TempDir()})
		if err := cmd.Execute(); err == nil {
			t.Error("expected error without start URL")
		}
	})

	t.Run("fails without a database", func(t *testing.T) {
		t.Parallel()

		cmd := NewCompareCmd()
		cmd.SetArgs([]string{"--db-dir", t.TempDir(), "https://example.com/"})
		if err := cmd.Execute(); err == nil {
			t.Error("expected error for missing database")
		}
	})

	t.Run("lists sessions", func(t *testing.T) {
		t.Parallel()

		dbDir := t.TempDir()
		seedSessions(t, dbDir)

		cmd := NewCompareCmd()
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		cmd.SetArgs([]string{"--db-dir", dbDir, "--list", "https://example.com/"})
		if err := cmd.Execute(); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "Saved sessions (2)") {
			t.Errorf("expected 2 listed sessions, got:\n%s", buf.String())
		}
	})

	t.Run("compares the latest two sessions", func(t *testing.T) {
		t.Parallel()

		dbDir := t.TempDir()
		seedSessions(t, dbDir)

		cmd := NewCompareCmd()
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		cmd.SetArgs([]string{"--db-dir", dbDir, "https://example.com/"})
		if err := cmd.Execute(); err != nil {
			t.Fatal(err)
		}

		out := buf.String()
		if !strings.Contains(out, "https://example.com/new") {
			t.Errorf("expected added URL in output:\n%s", out)
		}
		if !strings.Contains(out, "https://example.com/gone") {
			t.Errorf("expected removed URL in output:\n%s", out)
		}
		if !strings.Contains(out, "Changed (1)") {
			t.Errorf("expected changed section in output:\n%s", out)
		}
	})

	t.Run("needs two sessions for comparison", func(t *testing.T) {
		t.Parallel()

		dbDir := t.TempDir()
		db, err := database.Open(dbDir, database.DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		if _, err := db.BeginSession(context.Background(), "https://example.com/"); err != nil {
			t.Fatal(err)
		}
		db.Close()

		cmd := NewCompareCmd()
		cmd.SetArgs([]string{"--db-dir", dbDir, "https://example.com/"})
		if err := cmd.Execute(); err == nil {
			t.Error("expected error with a single session")
		}
	})
}
