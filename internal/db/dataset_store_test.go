package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gantry-data/traffic.replay/internal/replay"
)

func testStore(t *testing.T) *DatasetStore {
	t.Helper()
	database, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.MigrateUp(filepath.Join("..", "..", "migrations")))
	return NewDatasetStore(database)
}

func testFrames(n int) []replay.Frame {
	frames := make([]replay.Frame, n)
	for i := range frames {
		frames[i] = replay.Frame{
			Time: float64(i) * 0.5,
			Vehicles: []replay.VehicleSnapshot{
				{ID: 1, X: float64(i) * 12.5, Lane: 0, Speed: 25, Type: replay.VehicleCar},
			},
		}
	}
	return frames
}

func TestCreateAndGetDataset(t *testing.T) {
	s := testStore(t)

	id, err := s.CreateDataset("run-42", replay.RoadConfig{NumLanes: 3, RoadLength: 1000}, testFrames(20))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	byID, err := s.GetDataset(id)
	require.NoError(t, err)
	assert.Equal(t, "run-42", byID.Name)
	assert.Equal(t, 20, byID.TotalFrames)
	assert.Equal(t, 3, byID.NumLanes)
	assert.Equal(t, 1000.0, byID.RoadLength)
	assert.False(t, byID.CreatedAt.IsZero())

	byName, err := s.GetDataset("run-42")
	require.NoError(t, err)
	assert.Equal(t, byID.ID, byName.ID)
}

func TestGetDatasetNotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.GetDataset("nope")
	assert.ErrorIs(t, err, ErrDatasetNotFound)
}

func TestCreateDatasetRejectsEmpty(t *testing.T) {
	s := testStore(t)
	_, err := s.CreateDataset("empty", replay.RoadConfig{}, nil)
	assert.Error(t, err)
}

func TestGetFrames(t *testing.T) {
	s := testStore(t)
	_, err := s.CreateDataset("run-42", replay.RoadConfig{NumLanes: 3}, testFrames(30))
	require.NoError(t, err)

	frames, err := s.GetFrames("run-42", 10, 5)
	require.NoError(t, err)
	require.Len(t, frames, 5)
	assert.Equal(t, 5.0, frames[0].Time)
	assert.Equal(t, 7.0, frames[4].Time)
	require.Len(t, frames[0].Vehicles, 1)
	assert.Equal(t, 125.0, frames[0].Vehicles[0].X)
}

func TestGetFramesShortAtEnd(t *testing.T) {
	s := testStore(t)
	_, err := s.CreateDataset("run-42", replay.RoadConfig{}, testFrames(30))
	require.NoError(t, err)

	frames, err := s.GetFrames("run-42", 25, 10)
	require.NoError(t, err)
	assert.Len(t, frames, 5)
}

func TestGetFramesPastEndIsEmpty(t *testing.T) {
	s := testStore(t)
	_, err := s.CreateDataset("run-42", replay.RoadConfig{}, testFrames(30))
	require.NoError(t, err)

	frames, err := s.GetFrames("run-42", 30, 10)
	require.NoError(t, err)
	assert.Empty(t, frames)

	frames, err = s.GetFrames("run-42", -1, 10)
	require.NoError(t, err)
	assert.Empty(t, frames)
}

func TestGetFramesUnknownDataset(t *testing.T) {
	s := testStore(t)
	_, err := s.GetFrames("nope", 0, 10)
	assert.ErrorIs(t, err, ErrDatasetNotFound)
}

func TestListDatasets(t *testing.T) {
	s := testStore(t)
	_, err := s.CreateDataset("run-a", replay.RoadConfig{}, testFrames(5))
	require.NoError(t, err)
	_, err = s.CreateDataset("run-b", replay.RoadConfig{}, testFrames(5))
	require.NoError(t, err)

	list, err := s.ListDatasets()
	require.NoError(t, err)
	require.Len(t, list, 2)
}

func TestDeleteDataset(t *testing.T) {
	s := testStore(t)
	id, err := s.CreateDataset("run-42", replay.RoadConfig{}, testFrames(5))
	require.NoError(t, err)

	require.NoError(t, s.DeleteDataset(id))
	_, err = s.GetDataset(id)
	assert.ErrorIs(t, err, ErrDatasetNotFound)

	assert.ErrorIs(t, s.DeleteDataset(id), ErrDatasetNotFound)
}

func TestMigrateVersion(t *testing.T) {
	database, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	dir := filepath.Join("..", "..", "migrations")
	version, dirty, err := database.MigrateVersion(dir)
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, dirty)

	require.NoError(t, database.MigrateUp(dir))
	version, dirty, err = database.MigrateVersion(dir)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
}
