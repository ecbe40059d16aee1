// Package postgres implements domain.VideoRepository on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/cwygoda/streamcatcher/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS videos (
    id         SERIAL PRIMARY KEY,
    tmdb_id    TEXT NOT NULL UNIQUE,
    title      TEXT NOT NULL DEFAULT '',
    url        TEXT NOT NULL DEFAULT '',
    backdrop   TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS subtitles (
    id       SERIAL PRIMARY KEY,
    video_id INTEGER NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
    label    TEXT NOT NULL DEFAULT '',
    file     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_subtitles_video_id ON subtitles(video_id);
`

// uniqueViolation is the SQLSTATE for unique constraint failures.
const uniqueViolation = "23505"

// Options configures the connection pool.
type Options struct {
	URL string
	// InsecureTLS skips server certificate verification, for hosted databases
	// that present certificates the client cannot verify.
	InsecureTLS bool
	MaxConns    int32
	MinConns    int32
}

// Repository implements domain.VideoRepository using a pgx pool.
type Repository struct {
	pool *pgxpool.Pool
	log  *logrus.Entry
}

// New connects, pings and initializes the schema. Any failure is returned.
func New(ctx context.Context, opts Options, log *logrus.Entry) (*Repository, error) {
	if opts.URL == "" {
		return nil, errors.New("database URL is required")
	}

	config, err := pgxpool.ParseConfig(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 1
	if opts.MaxConns > 0 {
		config.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		config.MinConns = opts.MinConns
	}
	if opts.InsecureTLS {
		skipVerify(config.ConnConfig)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	log.WithField("host", config.ConnConfig.Host).Info("postgres connected")
	return &Repository{pool: pool, log: log}, nil
}

// skipVerify disables certificate verification on every TLS attempt the
// connection string asked for. Plaintext attempts stay plaintext.
func skipVerify(cc *pgx.ConnConfig) {
	if cc.TLSConfig != nil {
		cc.TLSConfig.InsecureSkipVerify = true
	}
	for _, fb := range cc.Fallbacks {
		if fb.TLSConfig != nil {
			fb.TLSConfig.InsecureSkipVerify = true
		}
	}
}

// Close releases the pool.
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

// Save inserts the video and its tracks in one transaction.
func (r *Repository) Save(ctx context.Context, v *domain.Video) (int64, error) {
	var id int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO videos (tmdb_id, title, url, backdrop) VALUES ($1, $2, $3, $4) RETURNING id`,
			v.ExternalID, v.Title, v.StreamURL, v.BackdropURL,
		).Scan(&id)
		if err != nil {
			return err
		}
		if len(v.Tracks) == 0 {
			return nil
		}

		batch := &pgx.Batch{}
		for _, t := range v.Tracks {
			batch.Queue(`INSERT INTO subtitles (video_id, label, file) VALUES ($1, $2, $3)`, id, t.Label, t.File)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, fmt.Errorf("%w: %s", domain.ErrDuplicateVideo, v.ExternalID)
		}
		return 0, fmt.Errorf("save video %s: %w", v.ExternalID, err)
	}
	return id, nil
}

// Get returns the video stored under externalID with its tracks in insertion order.
func (r *Repository) Get(ctx context.Context, externalID string) (*domain.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var id int64
	v := &domain.Video{}
	err = conn.QueryRow(ctx,
		`SELECT id, tmdb_id, title, url, backdrop FROM videos WHERE tmdb_id = $1`, externalID,
	).Scan(&id, &v.ExternalID, &v.Title, &v.StreamURL, &v.BackdropURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrVideoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get video %s: %w", externalID, err)
	}

	rows, err := conn.Query(ctx,
		`SELECT label, file FROM subtitles WHERE video_id = $1 ORDER BY id`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("get subtitles for %s: %w", externalID, err)
	}
	tracks, err := pgx.CollectRows(rows, pgx.RowToStructByPos[domain.Track])
	if err != nil {
		return nil, fmt.Errorf("scan subtitles for %s: %w", externalID, err)
	}
	v.Tracks = tracks
	return v, nil
}
