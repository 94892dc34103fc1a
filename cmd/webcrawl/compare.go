package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/webcrawl/internal/config"
	"github.com/nao1215/webcrawl/internal/database"
)

// NewCompareCmd creates the compare command.
// This command compares crawl sessions stored in the database.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [url]",
		Short: "Compare saved crawl sessions",
		Long: `Compare shows how a site changed between two saved crawl sessions.

Sessions are saved with 'webcrawl crawl --save'. By default the latest
two sessions for the start URL are compared; pages are matched by URL
and changes are detected via content hashes.

Examples:
  # Compare the latest two sessions for a site
  webcrawl compare https://example.com

  # List saved sessions for a site
  webcrawl compare --list https://example.com

  # List all saved sessions
  webcrawl compare --list-all

  # Compare against a specific earlier session
  webcrawl compare --with-session 5 https://example.com`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCompareCmd,
	}

	// History listing flags
	cmd.Flags().BoolP("list", "l", false,
		"List saved sessions for the specified start URL")
	cmd.Flags().BoolP("list-all", "L", false,
		"List every saved session in the database")

	// Comparison target flag
	cmd.Flags().Int64P("with-session", "i", 0,
		"Compare with a specific session by ID (use --list to see available IDs)")

	// Storage flag
	cmd.Flags().String("db-dir", "",
		"Database directory (default: XDG data directory)")

	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	listAll, err := cmd.Flags().GetBool("list-all")
	if err != nil {
		return err
	}

	var startURL string
	if !listAll {
		if len(args) == 0 {
			return errors.New("start URL is required (use --list-all to see every saved session)")
		}
		startURL = args[0]
	}

	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	db, err := database.Open(dbDir, opts)
	if err != nil {
		return fmt.Errorf("no saved sessions (crawl with --save first): %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	if listAll {
		return listSessions(ctx, cmd, db, "")
	}

	listHistory, err := cmd.Flags().GetBool("list")
	if err != nil {
		return err
	}
	if listHistory {
		return listSessions(ctx, cmd, db, startURL)
	}

	withSession, err := cmd.Flags().GetInt64("with-session")
	if err != nil {
		return err
	}

	return runComparison(ctx, cmd, db, startURL, withSession)
}

// listSessions prints stored sessions, optionally filtered by start URL.
func listSessions(ctx context.Context, cmd *cobra.Command, db *database.CrawlDB, startURL string) error {
	sessions, err := db.ListSessions(ctx, startURL)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(sessions) == 0 {
		if startURL != "" {
			fmt.Fprintf(out, "No saved sessions for %s\n", startURL)
		} else {
			fmt.Fprintln(out, "No saved sessions in the database.")
		}
		fmt.Fprintln(out, "\nUse 'webcrawl crawl --save <url>' to save a session.")
		return nil
	}

	fmt.Fprintf(out, "Saved sessions (%d):\n\n", len(sessions))
	fmt.Fprintf(out, "  %-6s  %-20s  %-7s  %-7s  %s\n", "ID", "Started", "Pages", "URLs", "Start URL")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 70))
	for _, s := range sessions {
		started := s.StartedAt.Format("2006-01-02 15:04:05")
		if !s.Finished {
			started += " *"
		}
		fmt.Fprintf(out, "  %-6d  %-20s  %-7d  %-7d  %s\n",
			s.ID, started, s.PagesFetched, s.URLsVisited, s.StartURL)
	}
	fmt.Fprintln(out, "\nUse 'webcrawl compare <url>' to compare the latest two sessions.")

	return nil
}

// runComparison diffs the latest session against an earlier one.
func runComparison(ctx context.Context, cmd *cobra.Command, db *database.CrawlDB, startURL string, withSession int64) error {
	sessions, err := db.ListSessions(ctx, startURL)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(sessions) == 0 {
		return fmt.Errorf("no saved sessions for %s", startURL)
	}
	newest := sessions[0]

	var older database.Session
	if withSession != 0 {
		s, err := db.GetSession(ctx, withSession)
		if err != nil {
			return err
		}
		if s == nil {
			return fmt.Errorf("session %d not found", withSession)
		}
		if s.ID == newest.ID {
			return errors.New("cannot compare a session with itself")
		}
		older = *s
	} else {
		if len(sessions) < 2 {
			return fmt.Errorf("at least 2 saved sessions are required for comparison (found %d)", len(sessions))
		}
		older = sessions[1]
	}

	diff, err := db.DiffSessions(ctx, older.ID, newest.ID)
	if err != nil {
		return fmt.Errorf("failed to compare sessions: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Comparing session %d (%s) with session %d (%s)\n\n",
		older.ID, older.StartedAt.Format("2006-01-02 15:04"),
		newest.ID, newest.StartedAt.Format("2006-01-02 15:04"))

	printURLList(out, "Added", diff.Added)
	printURLList(out, "Removed", diff.Removed)
	printURLList(out, "Changed", diff.Changed)
	fmt.Fprintf(out, "Unchanged: %d pages\n", diff.Unchanged)

	if len(diff.Added) == 0 && len(diff.Removed) == 0 && len(diff.Changed) == 0 {
		fmt.Fprintln(out, "\nNo differences found.")
	}
	return nil
}

// printURLList prints one diff section, omitted when empty.
func printURLList(out io.Writer, label string, urls []string) {
	if len(urls) == 0 {
		return
	}
	fmt.Fprintf(out, "%s (%d):\n", label, len(urls))
	for _, u := range urls {
		fmt.Fprintf(out, "  %s\n", u)
	}
	fmt.Fprintln(out)
}
