package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cwygoda/streamcatcher/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS videos (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    tmdb_id    TEXT NOT NULL UNIQUE,
    title      TEXT NOT NULL DEFAULT '',
    url        TEXT NOT NULL DEFAULT '',
    backdrop   TEXT NOT NULL DEFAULT '',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS subtitles (
    id       INTEGER PRIMARY KEY AUTOINCREMENT,
    video_id INTEGER NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
    label    TEXT NOT NULL DEFAULT '',
    file     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_subtitles_video_id ON subtitles(video_id);
`

// Repository implements domain.VideoRepository using SQLite.
type Repository struct {
	db *sql.DB
}

// New creates a new SQLite repository, initializing the schema if needed.
func New(dbPath string) (*Repository, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Save inserts a video and its tracks in one transaction.
func (r *Repository) Save(ctx context.Context, v *domain.Video) (id int64, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO videos (tmdb_id, title, url, backdrop) VALUES (?, ?, ?, ?)`,
		v.ExternalID, v.Title, v.StreamURL, v.BackdropURL,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s", domain.ErrDuplicateVideo, v.ExternalID)
		}
		return 0, fmt.Errorf("insert video: %w", err)
	}

	id, err = result.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, t := range v.Tracks {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO subtitles (video_id, label, file) VALUES (?, ?, ?)`,
			id, t.Label, t.File,
		); err != nil {
			return 0, fmt.Errorf("insert subtitle: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// Get retrieves a video by external id.
func (r *Repository) Get(ctx context.Context, externalID string) (*domain.Video, error) {
	var id int64
	var v domain.Video
	err := r.db.QueryRowContext(ctx,
		`SELECT id, tmdb_id, title, url, backdrop FROM videos WHERE tmdb_id = ?`, externalID,
	).Scan(&id, &v.ExternalID, &v.Title, &v.StreamURL, &v.BackdropURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrVideoNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT label, file FROM subtitles WHERE video_id = ? ORDER BY id`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var t domain.Track
		if err := rows.Scan(&t.Label, &t.File); err != nil {
			return nil, err
		}
		v.Tracks = append(v.Tracks, t)
	}
	return &v, rows.Err()
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
