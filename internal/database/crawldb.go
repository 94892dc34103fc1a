package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/webcrawl/internal/model"
)

// CrawlDB provides SQLite-based storage for crawl sessions and their
// page records.
//
// Design decision: one database file holds every session rather than one
// file per crawl. Sessions of the same start URL can then be compared
// with plain SQL, and backup is a single file copy.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB in the specified directory.
// If CreateIfNotExists is false and no database exists there, an error
// is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, "webcrawl.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite connection strings: mode=rw prevents creating
	// new files, mode=rwc allows creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- Sessions group the pages of one crawl run
	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		start_url TEXT NOT NULL,
		started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		finished_at DATETIME,
		pages_fetched INTEGER DEFAULT 0,
		urls_visited INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_start_url ON sessions(start_url);
	CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at);

	-- Pages store one record per fetched URL within a session
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id INTEGER NOT NULL REFERENCES sessions(id),
		url TEXT NOT NULL,
		domain TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		status_code INTEGER,
		title TEXT,
		text_length INTEGER,
		raw_hash TEXT,
		record TEXT NOT NULL,
		UNIQUE(session_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_session ON pages(session_id);
	CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);
	CREATE INDEX IF NOT EXISTS idx_pages_domain ON pages(domain);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// Session is one stored crawl run.
type Session struct {
	ID           int64
	StartURL     string
	StartedAt    time.Time
	FinishedAt   time.Time
	Finished     bool
	PagesFetched int
	URLsVisited  int
}

// BeginSession creates a new session row and returns its ID.
func (cdb *CrawlDB) BeginSession(ctx context.Context, startURL string) (int64, error) {
	result, err := cdb.db.ExecContext(ctx,
		`INSERT INTO sessions (start_url) VALUES (?)`, startURL)
	if err != nil {
		return 0, fmt.Errorf("failed to begin session: %w", err)
	}
	return result.LastInsertId()
}

// SavePage stores a page record under the given session.
// Uses UPSERT so re-saving the same URL within a session overwrites.
func (cdb *CrawlDB) SavePage(ctx context.Context, sessionID int64, rec *model.PageRecord) error {
	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to serialize page record: %w", err)
	}

	query := `
	INSERT INTO pages (session_id, url, domain, status_code, title, text_length, raw_hash, record)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(session_id, url) DO UPDATE SET
		status_code = excluded.status_code,
		title = excluded.title,
		text_length = excluded.text_length,
		raw_hash = excluded.raw_hash,
		record = excluded.record,
		timestamp = CURRENT_TIMESTAMP
	`

	_, err = cdb.db.ExecContext(ctx, query,
		sessionID,
		rec.URL,
		rec.Domain,
		rec.StatusCode,
		rec.Title,
		rec.TextLength,
		rec.Hash,
		string(recordJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save page: %w", err)
	}
	return nil
}

// FinishSession stamps the session with its completion time and totals.
func (cdb *CrawlDB) FinishSession(ctx context.Context, sessionID int64, summary *model.Summary) error {
	_, err := cdb.db.ExecContext(ctx,
		`UPDATE sessions SET finished_at = CURRENT_TIMESTAMP, pages_fetched = ?, urls_visited = ? WHERE id = ?`,
		summary.PagesFetched, summary.URLsVisited, sessionID)
	if err != nil {
		return fmt.Errorf("failed to finish session: %w", err)
	}
	return nil
}

// ListSessions returns stored sessions, newest first. When startURL is
// non-empty, only sessions for that start URL are returned.
func (cdb *CrawlDB) ListSessions(ctx context.Context, startURL string) ([]Session, error) {
	query := `
	SELECT id, start_url, started_at, finished_at, pages_fetched, urls_visited
	FROM sessions
	`
	args := make([]any, 0, 1)
	if startURL != "" {
		query += " WHERE start_url = ?"
		args = append(args, startURL)
	}
	query += " ORDER BY started_at DESC, id DESC"

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		var startedAt string
		var finishedAt sql.NullString

		if err := rows.Scan(&s.ID, &s.StartURL, &startedAt, &finishedAt, &s.PagesFetched, &s.URLsVisited); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		s.StartedAt = parseTimestamp(startedAt)
		if finishedAt.Valid {
			s.FinishedAt = parseTimestamp(finishedAt.String)
			s.Finished = true
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// GetSession retrieves a session by ID. Returns nil when not found.
func (cdb *CrawlDB) GetSession(ctx context.Context, sessionID int64) (*Session, error) {
	query := `
	SELECT id, start_url, started_at, finished_at, pages_fetched, urls_visited
	FROM sessions WHERE id = ?
	`

	var s Session
	var startedAt string
	var finishedAt sql.NullString

	err := cdb.db.QueryRowContext(ctx, query, sessionID).Scan(
		&s.ID, &s.StartURL, &startedAt, &finishedAt, &s.PagesFetched, &s.URLsVisited)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	s.StartedAt = parseTimestamp(startedAt)
	if finishedAt.Valid {
		s.FinishedAt = parseTimestamp(finishedAt.String)
		s.Finished = true
	}
	return &s, nil
}

// PageHashes returns url -> content hash for every page in a session.
func (cdb *CrawlDB) PageHashes(ctx context.Context, sessionID int64) (map[string]string, error) {
	rows, err := cdb.db.QueryContext(ctx,
		`SELECT url, raw_hash FROM pages WHERE session_id = ?`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query page hashes: %w", err)
	}
	defer rows.Close()

	hashes := make(map[string]string)
	for rows.Next() {
		var url, hash string
		if err := rows.Scan(&url, &hash); err != nil {
			return nil, fmt.Errorf("failed to scan page hash: %w", err)
		}
		hashes[url] = hash
	}
	return hashes, rows.Err()
}

// GetPage retrieves a stored page record by session and URL.
// Returns nil when not found.
func (cdb *CrawlDB) GetPage(ctx context.Context, sessionID int64, url string) (*model.PageRecord, error) {
	var recordJSON string
	err := cdb.db.QueryRowContext(ctx,
		`SELECT record FROM pages WHERE session_id = ? AND url = ?`, sessionID, url).Scan(&recordJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get page: %w", err)
	}

	var rec model.PageRecord
	if err := json.Unmarshal([]byte(recordJSON), &rec); err != nil {
		return nil, fmt.Errorf("failed to parse page record: %w", err)
	}
	return &rec, nil
}

// SessionDiff describes how the pages of one session differ from an
// earlier one, keyed by URL.
type SessionDiff struct {
	// Added lists URLs present only in the newer session.
	Added []string

	// Removed lists URLs present only in the older session.
	Removed []string

	// Changed lists URLs present in both whose content hash differs.
	Changed []string

	// Unchanged counts URLs present in both with identical hashes.
	Unchanged int
}

// DiffSessions compares the pages of two sessions by content hash.
func (cdb *CrawlDB) DiffSessions(ctx context.Context, oldID, newID int64) (*SessionDiff, error) {
	oldHashes, err := cdb.PageHashes(ctx, oldID)
	if err != nil {
		return nil, err
	}
	newHashes, err := cdb.PageHashes(ctx, newID)
	if err != nil {
		return nil, err
	}

	diff := &SessionDiff{}
	for url, newHash := range newHashes {
		oldHash, ok := oldHashes[url]
		switch {
		case !ok:
			diff.Added = append(diff.Added, url)
		case oldHash != newHash:
			diff.Changed = append(diff.Changed, url)
		default:
			diff.Unchanged++
		}
	}
	for url := range oldHashes {
		if _, ok := newHashes[url]; !ok {
			diff.Removed = append(diff.Removed, url)
		}
	}

	sort.Strings(diff.Added)
	sort.Strings(diff.Removed)
	sort.Strings(diff.Changed)
	return diff, nil
}

// Sink adapts a session to the engine's record sink so pages are
// persisted as they are crawled.
type Sink struct {
	cdb       *CrawlDB
	sessionID int64
}

// NewSink returns a sink writing into the given session.
func (cdb *CrawlDB) NewSink(sessionID int64) *Sink {
	return &Sink{cdb: cdb, sessionID: sessionID}
}

// Write persists one page record.
func (s *Sink) Write(rec *model.PageRecord) error {
	return s.cdb.SavePage(context.Background(), s.sessionID, rec)
}

// parseTimestamp handles the timestamp formats SQLite may return.
func parseTimestamp(value string) time.Time {
	formats := []string{
		"2006-01-02 15:04:05",
		time.RFC3339,
		"2006-01-02T15:04:05Z",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
