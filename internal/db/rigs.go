package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/markertrack/internal/monitoring"
	"github.com/banshee-data/markertrack/internal/posemath"
	"github.com/banshee-data/markertrack/internal/rig"
)

// RigSummary is one row of ListRigs.
type RigSummary struct {
	ID           string
	MarkerLength float64
	Markers      int
	Offsets      int
	UpdatedAt    time.Time
}

// SaveRig replaces the stored configuration for cfg.ID, offsets included.
func (db *DB) SaveRig(ctx context.Context, cfg rig.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("refusing to save rig %q: %w", cfg.ID, err)
	}
	sideIDs, err := json.Marshal(cfg.SideIDs)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO marker_rigs (rig_id, marker_length, up_id, side_ids, down_id, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(rig_id) DO UPDATE SET
			marker_length = excluded.marker_length,
			up_id = excluded.up_id,
			side_ids = excluded.side_ids,
			down_id = excluded.down_id,
			updated_at = CURRENT_TIMESTAMP`,
		cfg.ID, cfg.MarkerLength, cfg.UpID, string(sideIDs), cfg.DownID,
	); err != nil {
		return fmt.Errorf("failed to save rig %q: %w", cfg.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM rig_offsets WHERE rig_id = ?`, cfg.ID); err != nil {
		return fmt.Errorf("failed to clear offsets for rig %q: %w", cfg.ID, err)
	}
	for _, id := range cfg.OffsetIDs() {
		p := cfg.Offsets[id]
		data, err := json.Marshal(p[:])
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rig_offsets (rig_id, marker_id, transform) VALUES (?, ?, ?)`,
			cfg.ID, id, string(data),
		); err != nil {
			return fmt.Errorf("failed to save offset %d for rig %q: %w", id, cfg.ID, err)
		}
	}
	return tx.Commit()
}

// LoadRig returns the stored configuration for id. A rig that was never
// saved loads as rig.Empty(id) so callers can tell it needs mapping.
func (db *DB) LoadRig(ctx context.Context, id string) (rig.Config, error) {
	cfg := rig.Empty(id)
	var sideIDs string
	err := db.QueryRowContext(ctx,
		`SELECT marker_length, up_id, side_ids, down_id FROM marker_rigs WHERE rig_id = ?`, id,
	).Scan(&cfg.MarkerLength, &cfg.UpID, &sideIDs, &cfg.DownID)
	if errors.Is(err, sql.ErrNoRows) {
		monitoring.Logf("[db] rig %q has no saved configuration", id)
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to load rig %q: %w", id, err)
	}
	if err := json.Unmarshal([]byte(sideIDs), &cfg.SideIDs); err != nil {
		return cfg, fmt.Errorf("rig %q has corrupt side markers: %w", id, err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT marker_id, transform FROM rig_offsets WHERE rig_id = ? ORDER BY marker_id`, id)
	if err != nil {
		return cfg, fmt.Errorf("failed to load offsets for rig %q: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			markerID int
			data     string
			values   []float64
		)
		if err := rows.Scan(&markerID, &data); err != nil {
			return cfg, err
		}
		if err := json.Unmarshal([]byte(data), &values); err != nil {
			return cfg, fmt.Errorf("rig %q offset %d is corrupt: %w", id, markerID, err)
		}
		if len(values) != len(posemath.Pose{}) {
			return cfg, fmt.Errorf("rig %q offset %d has %d values, want 16", id, markerID, len(values))
		}
		var p posemath.Pose
		copy(p[:], values)
		cfg.Offsets[markerID] = p
	}
	return cfg, rows.Err()
}

// ListRigs returns every saved rig ordered by ID.
func (db *DB) ListRigs(ctx context.Context) ([]RigSummary, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT r.rig_id, r.marker_length, r.side_ids, r.down_id, r.updated_at,
			(SELECT COUNT(*) FROM rig_offsets o WHERE o.rig_id = r.rig_id)
		FROM marker_rigs r ORDER BY r.rig_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rigs: %w", err)
	}
	defer rows.Close()

	var out []RigSummary
	for rows.Next() {
		var (
			s       RigSummary
			sideIDs string
			downID  int
			sides   []int
			updated any
		)
		if err := rows.Scan(&s.ID, &s.MarkerLength, &sideIDs, &downID, &updated, &s.Offsets); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(sideIDs), &sides); err != nil {
			return nil, fmt.Errorf("rig %q has corrupt side markers: %w", s.ID, err)
		}
		if t, ok := updated.(time.Time); ok {
			s.UpdatedAt = t
		}
		s.Markers = 1 + len(sides)
		if downID != rig.NoMarker {
			s.Markers++
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteRig removes a rig and its offsets. Deleting an unknown rig is not
// an error.
func (db *DB) DeleteRig(ctx context.Context, id string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM rig_offsets WHERE rig_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete offsets for rig %q: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM marker_rigs WHERE rig_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete rig %q: %w", id, err)
	}
	return tx.Commit()
}
