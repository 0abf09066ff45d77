package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// timeLayout is fixed width so stored times sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// TrackingSession records one run of the tracking loop.
type TrackingSession struct {
	ID          string
	Mode        string
	RigID       string
	Device      string
	Sink        string
	StartedAt   time.Time
	FinishedAt  *time.Time
	Frames      int64
	FramesPosed int64
	Dropped     uint64
}

// StartSession inserts a new session row and returns it with a fresh ID.
func (db *DB) StartSession(ctx context.Context, s TrackingSession) (TrackingSession, error) {
	s.ID = uuid.NewString()
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO tracking_sessions (session_id, mode, rig_id, device, sink, started_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.Mode, nullString(s.RigID), s.Device, s.Sink, s.StartedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return s, fmt.Errorf("failed to record session start: %w", err)
	}
	return s, nil
}

// FinishSession stores the final counters for a session.
func (db *DB) FinishSession(ctx context.Context, id string, at time.Time, frames, posed int64, dropped uint64) error {
	res, err := db.ExecContext(ctx, `
		UPDATE tracking_sessions
		SET finished_at = ?, frames = ?, frames_posed = ?, dropped = ?
		WHERE session_id = ?`,
		at.UTC().Format(timeLayout), frames, posed, int64(dropped), id,
	)
	if err != nil {
		return fmt.Errorf("failed to record session end: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("no session with id %s", id)
	}
	return nil
}

// RecentSessions returns up to limit sessions, newest first.
func (db *DB) RecentSessions(ctx context.Context, limit int) ([]TrackingSession, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT session_id, mode, rig_id, device, sink, started_at, finished_at,
			frames, frames_posed, dropped
		FROM tracking_sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []TrackingSession
	for rows.Next() {
		var (
			s        TrackingSession
			rigID    sql.NullString
			started  any
			finished any
			dropped  int64
		)
		if err := rows.Scan(&s.ID, &s.Mode, &rigID, &s.Device, &s.Sink, &started, &finished,
			&s.Frames, &s.FramesPosed, &dropped); err != nil {
			return nil, err
		}
		s.RigID = rigID.String
		s.Dropped = uint64(dropped)
		if s.StartedAt, err = storedTime(started); err != nil {
			return nil, fmt.Errorf("session %s has bad start time: %w", s.ID, err)
		}
		if finished != nil {
			t, err := storedTime(finished)
			if err != nil {
				return nil, fmt.Errorf("session %s has bad finish time: %w", s.ID, err)
			}
			s.FinishedAt = &t
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// storedTime accepts the driver's parsed time or the raw column text.
func storedTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		return time.Parse(timeLayout, t)
	case []byte:
		return time.Parse(timeLayout, string(t))
	default:
		return time.Time{}, fmt.Errorf("unexpected time value %T", v)
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
