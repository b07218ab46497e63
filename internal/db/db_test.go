package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestMigrationsApplyOnOpen(t *testing.T) {
	t.Parallel()

	database := newTestDB(t)

	version, dirty, err := database.MigrateVersion()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.GreaterOrEqual(t, version, uint(1))
}

func TestRecordAndQueryObservations(t *testing.T) {
	t.Parallel()

	database := newTestDB(t)

	require.NoError(t, database.RecordObservation("session-a", 0, 1.25, 5000, 12.5))
	require.NoError(t, database.RecordObservation("session-a", 1, 1.30, 5200, 13.0))
	require.NoError(t, database.RecordObservation("session-b", 0, -0.5, 4100, 9.9))

	observations, err := database.RecentObservations(10)
	require.NoError(t, err)
	require.Len(t, observations, 3)

	// Newest first.
	assert.Equal(t, "session-b", observations[0].SessionID)
	assert.Equal(t, 1, observations[1].FrameIndex)
	assert.InDelta(t, 1.30, observations[1].VelocityMps, 1e-9)

	count, err := database.ObservationCount()
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestRecentObservationsLimit(t *testing.T) {
	t.Parallel()

	database := newTestDB(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, database.RecordObservation("s", i, float64(i), 1000, 1))
	}

	observations, err := database.RecentObservations(2)
	require.NoError(t, err)
	require.Len(t, observations, 2)
	assert.Equal(t, 4, observations[0].FrameIndex)

	// Non-positive limit falls back to the default.
	observations, err = database.RecentObservations(0)
	require.NoError(t, err)
	assert.Len(t, observations, 5)
}

func TestSizeEstimates(t *testing.T) {
	t.Parallel()

	database := newTestDB(t)

	latest, err := database.LatestSizeEstimate()
	require.NoError(t, err)
	assert.Nil(t, latest, "no estimate recorded yet")

	require.NoError(t, database.RecordSizeEstimate("s", 0, 120, 80, "rectangle"))
	require.NoError(t, database.RecordSizeEstimate("s", 1, 125, 82, "rectangle"))

	latest, err = database.LatestSizeEstimate()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 1, latest.FrameIndex)
	assert.InDelta(t, 125.0, latest.LengthMM, 1e-9)
	assert.Equal(t, "rectangle", latest.Shape)
}

func TestReopenKeepsData(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "persist.db")

	first, err := NewDB(path)
	require.NoError(t, err)
	require.NoError(t, first.RecordObservation("s", 0, 1, 2, 3))
	require.NoError(t, first.Close())

	second, err := NewDB(path)
	require.NoError(t, err)
	defer second.Close()

	count, err := second.ObservationCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
