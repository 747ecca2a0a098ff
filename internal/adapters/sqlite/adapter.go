// Package sqlite provides a SQLite-backed implementation of the session repository port.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ewilliams-labs/aura/internal/core/domain"
	"github.com/ewilliams-labs/aura/internal/core/ports"
	_ "github.com/mattn/go-sqlite3" // Import the driver anonymously
)

// Adapter implements the session repository port for SQLite
type Adapter struct {
	db *sql.DB
}

var _ ports.SessionRepository = (*Adapter)(nil)

// NewAdapter creates a connection and runs the schema migration
func NewAdapter(storagePath string) (*Adapter, error) {
	db, err := sql.Open("sqlite3", storagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	adapter := &Adapter{db: db}
	if err := adapter.migrate(); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return adapter, nil
}

// Close ensures the DB connection is closed gracefully
func (a *Adapter) Close() error {
	return a.db.Close()
}

// Ping reports whether the database is reachable.
func (a *Adapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *Adapter) GetByID(ctx context.Context, id string) (domain.Session, error) {
	row := a.db.QueryRowContext(ctx, `
		SELECT id, text, symphony, generation_status, generation_error, captured_image,
			track, track_status, track_error, generation_seq, track_seq, created_at, updated_at
		FROM sessions WHERE id = ?
	`, id)

	var (
		s                    domain.Session
		symphonyJSON         sql.NullString
		trackJSON            sql.NullString
		genStatus, trkStatus string
		createdAt, updatedAt int64
	)
	if err := row.Scan(
		&s.ID,
		&s.Text,
		&symphonyJSON,
		&genStatus,
		&s.GenerationError,
		&s.CapturedImage,
		&trackJSON,
		&trkStatus,
		&s.TrackError,
		&s.GenerationSeq,
		&s.TrackSeq,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Session{}, domain.ErrNotFound
		}
		return domain.Session{}, fmt.Errorf("failed to load session: %w", err)
	}
	s.GenerationStatus = domain.Status(genStatus)
	s.TrackStatus = domain.Status(trkStatus)
	s.CreatedAt = time.Unix(0, createdAt).UTC()
	s.UpdatedAt = time.Unix(0, updatedAt).UTC()

	if symphonyJSON.Valid {
		var sym domain.Symphony
		if err := json.Unmarshal([]byte(symphonyJSON.String), &sym); err != nil {
			return domain.Session{}, fmt.Errorf("failed to decode session symphony: %w", err)
		}
		s.Symphony = &sym
	}
	if trackJSON.Valid {
		var track domain.Track
		if err := json.Unmarshal([]byte(trackJSON.String), &track); err != nil {
			return domain.Session{}, fmt.Errorf("failed to decode session track: %w", err)
		}
		s.Track = &track
	}

	return s, nil
}

func (a *Adapter) Save(ctx context.Context, s domain.Session) error {
	if s.ID == "" {
		return errors.New("sqlite: session id is required")
	}
	var symphonyJSON, trackJSON sql.NullString
	var err error
	if s.Symphony != nil {
		if symphonyJSON, err = nullableJSON(s.Symphony); err != nil {
			return fmt.Errorf("failed to encode session symphony: %w", err)
		}
	}
	if s.Track != nil {
		if trackJSON, err = nullableJSON(s.Track); err != nil {
			return fmt.Errorf("failed to encode session track: %w", err)
		}
	}

	query := `
		INSERT INTO sessions (
			id, text, symphony, generation_status, generation_error, captured_image,
			track, track_status, track_error, generation_seq, track_seq, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			text=excluded.text,
			symphony=excluded.symphony,
			generation_status=excluded.generation_status,
			generation_error=excluded.generation_error,
			captured_image=excluded.captured_image,
			track=excluded.track,
			track_status=excluded.track_status,
			track_error=excluded.track_error,
			generation_seq=excluded.generation_seq,
			track_seq=excluded.track_seq,
			updated_at=excluded.updated_at;
	`
	if _, err := a.db.ExecContext(
		ctx,
		query,
		s.ID,
		s.Text,
		symphonyJSON,
		string(s.GenerationStatus),
		s.GenerationError,
		s.CapturedImage,
		trackJSON,
		string(s.TrackStatus),
		s.TrackError,
		s.GenerationSeq,
		s.TrackSeq,
		s.CreatedAt.UnixNano(),
		s.UpdatedAt.UnixNano(),
	); err != nil {
		return fmt.Errorf("failed to save session %s: %w", s.ID, err)
	}
	return nil
}

// DeleteIdleSince removes sessions not updated since cutoff. Sessions with
// a capability call loading are kept unless also older than loadingCutoff.
func (a *Adapter) DeleteIdleSince(ctx context.Context, cutoff, loadingCutoff time.Time) (int64, error) {
	// A zero loadingCutoff matches no rows.
	var loadingBefore int64
	if !loadingCutoff.IsZero() {
		loadingBefore = loadingCutoff.UnixNano()
	}
	res, err := a.db.ExecContext(ctx, `
		DELETE FROM sessions
		WHERE updated_at < ?
			AND (
				(generation_status != ? AND track_status != ?)
				OR updated_at < ?
			)
	`, cutoff.UnixNano(), string(domain.StatusLoading), string(domain.StatusLoading), loadingBefore)
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged sessions: %w", err)
	}
	return n, nil
}

// ListInFlight returns the ids of sessions with a capability call loading.
func (a *Adapter) ListInFlight(ctx context.Context) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id FROM sessions
		WHERE generation_status = ? OR track_status = ?
		ORDER BY updated_at
	`, string(domain.StatusLoading), string(domain.StatusLoading))
	if err != nil {
		return nil, fmt.Errorf("failed to list in-flight sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list in-flight sessions: %w", err)
	}
	return ids, nil
}

func nullableJSON(v any) (sql.NullString, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func (a *Adapter) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		text TEXT NOT NULL DEFAULT '',
		symphony TEXT,
		generation_status TEXT NOT NULL DEFAULT 'idle',
		generation_error TEXT NOT NULL DEFAULT '',
		captured_image TEXT NOT NULL DEFAULT '',
		track TEXT,
		track_status TEXT NOT NULL DEFAULT 'idle',
		track_error TEXT NOT NULL DEFAULT '',
		generation_seq INTEGER NOT NULL DEFAULT 0,
		track_seq INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at);
	`
	_, err := a.db.Exec(query)
	return err
}
