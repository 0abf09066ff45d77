package db

import (
	"bytes"
	"context"
	"log"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/markertrack/internal/monitoring"
	"github.com/banshee-data/markertrack/internal/posemath"
	"github.com/banshee-data/markertrack/internal/rig"
	"github.com/golang/geo/r3"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(log.Printf) })

	db, err := NewDB(filepath.Join(t.TempDir(), "markertrack.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testRig() rig.Config {
	offset := posemath.ToHomogeneous(
		posemath.RotationFromEuler(0.1, math.Pi/2, -0.3),
		r3.Vector{X: 1.0 / 3, Y: -2.5, Z: math.Pi},
	)
	return rig.Config{
		ID:           "cube-a",
		MarkerLength: 4.2,
		UpID:         10,
		SideIDs:      []int{11, 12, 13, 14},
		DownID:       15,
		Offsets:      map[int]posemath.Pose{11: offset, 15: offset.Mul(offset)},
	}
}

func TestMigrationsReachLatest(t *testing.T) {
	db := setupTestDB(t)
	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	latest, err := LatestMigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, latest, version)
	assert.False(t, dirty)

	require.NoError(t, db.MigrateDown())
	version, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, latest-1, version)
	require.NoError(t, db.MigrateUp())
}

func TestRigRoundTripIsExact(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	want := testRig()
	require.NoError(t, db.SaveRig(ctx, want))

	got, err := db.LoadRig(ctx, want.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("rig mismatch (-want +got):\n%s", diff)
	}

	// Saving again replaces offsets rather than merging them.
	want.Offsets = map[int]posemath.Pose{12: posemath.Identity()}
	want.DownID = rig.NoMarker
	require.NoError(t, db.SaveRig(ctx, want))
	got, err = db.LoadRig(ctx, want.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("rig mismatch after overwrite (-want +got):\n%s", diff)
	}
}

func TestLoadMissingRigIsEmpty(t *testing.T) {
	db := setupTestDB(t)
	got, err := db.LoadRig(context.Background(), "never-mapped")
	require.NoError(t, err)
	assert.Equal(t, rig.Empty("never-mapped"), got)
	assert.False(t, got.IsMapped())
}

func TestSaveRigRejectsInvalid(t *testing.T) {
	db := setupTestDB(t)
	cfg := testRig()
	cfg.SideIDs = nil
	assert.Error(t, db.SaveRig(context.Background(), cfg))
}

func TestListAndDeleteRigs(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	a := testRig()
	b := testRig()
	b.ID = "cube-b"
	b.DownID = rig.NoMarker
	b.Offsets = map[int]posemath.Pose{11: posemath.Identity()}
	require.NoError(t, db.SaveRig(ctx, b))
	require.NoError(t, db.SaveRig(ctx, a))

	rigs, err := db.ListRigs(ctx)
	require.NoError(t, err)
	require.Len(t, rigs, 2)
	assert.Equal(t, "cube-a", rigs[0].ID)
	assert.Equal(t, 6, rigs[0].Markers)
	assert.Equal(t, 2, rigs[0].Offsets)
	assert.Equal(t, "cube-b", rigs[1].ID)
	assert.Equal(t, 5, rigs[1].Markers)

	require.NoError(t, db.DeleteRig(ctx, "cube-a"))
	require.NoError(t, db.DeleteRig(ctx, "cube-a"))
	got, err := db.LoadRig(ctx, "cube-a")
	require.NoError(t, err)
	assert.False(t, got.IsMapped())

	var orphans int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM rig_offsets WHERE rig_id = 'cube-a'`).Scan(&orphans))
	assert.Zero(t, orphans)
}

func TestSessions(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	t0 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	first, err := db.StartSession(ctx, TrackingSession{Mode: "single", Device: "0", Sink: "tcp", StartedAt: t0})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	second, err := db.StartSession(ctx, TrackingSession{Mode: "rig", RigID: "cube-a", Device: "1", Sink: "grpc", StartedAt: t0.Add(500 * time.Millisecond)})
	require.NoError(t, err)
	require.NoError(t, db.FinishSession(ctx, first.ID, t0.Add(time.Minute), 1800, 1700, 12))
	assert.Error(t, db.FinishSession(ctx, "no-such-session", t0, 0, 0, 0))

	got, err := db.RecentSessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, second.ID, got[0].ID)
	assert.Equal(t, "cube-a", got[0].RigID)
	assert.Nil(t, got[0].FinishedAt)

	assert.Equal(t, first.ID, got[1].ID)
	assert.True(t, got[1].StartedAt.Equal(t0))
	require.NotNil(t, got[1].FinishedAt)
	assert.True(t, got[1].FinishedAt.Equal(t0.Add(time.Minute)))
	assert.Equal(t, int64(1800), got[1].Frames)
	assert.Equal(t, int64(1700), got[1].FramesPosed)
	assert.Equal(t, uint64(12), got[1].Dropped)
	assert.Empty(t, got[1].RigID)
}

func TestAttachAdminRoutes(t *testing.T) {
	db := setupTestDB(t)
	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))

	req := httptest.NewRequest(http.MethodGet, "/debug/backup", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/gzip", rec.Header().Get("Content-Type"))
	assert.NotZero(t, rec.Body.Len())
}

func TestRunMigrateCommand(t *testing.T) {
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(log.Printf) })
	path := filepath.Join(t.TempDir(), "cli.db")

	var out bytes.Buffer
	require.NoError(t, RunMigrateCommand([]string{"up"}, path, &out))
	assert.Contains(t, out.String(), "Dirty: false")

	out.Reset()
	assert.Error(t, RunMigrateCommand([]string{"sideways"}, path, &out))
	assert.Contains(t, out.String(), "Usage: markertrack migrate")

	assert.Error(t, RunMigrateCommand([]string{"force"}, path, &out))
	assert.Error(t, RunMigrateCommand(nil, path, &out))
}
