package render

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gantry-data/traffic.replay/internal/replay"
)

func frameWith(vehicles ...replay.VehicleSnapshot) *replay.Frame {
	return &replay.Frame{Vehicles: vehicles}
}

func TestInterpolateLerpsSharedVehicles(t *testing.T) {
	a := frameWith(replay.VehicleSnapshot{ID: 7, X: 100, Lane: 1, Speed: 20})
	b := frameWith(replay.VehicleSnapshot{ID: 7, X: 140, Lane: 1, Speed: 24})

	out := InterpolateFrames(a, b, 0.5)
	require.Len(t, out, 1)
	assert.Equal(t, int64(7), out[0].ID)
	assert.InDelta(t, 120.0, out[0].X, 1e-9)
	assert.InDelta(t, 22.0, out[0].Speed, 1e-9)
	assert.Equal(t, 1.0, out[0].Alpha)
}

func TestInterpolateBoundaryFractions(t *testing.T) {
	a := frameWith(replay.VehicleSnapshot{ID: 1, X: 10})
	b := frameWith(replay.VehicleSnapshot{ID: 1, X: 50})

	out := InterpolateFrames(a, b, 0)
	require.Len(t, out, 1)
	assert.Equal(t, 10.0, out[0].X)

	out = InterpolateFrames(a, b, 1)
	require.Len(t, out, 1)
	assert.Equal(t, 50.0, out[0].X)
}

func TestInterpolateLeavingVehicleFadesThenDrops(t *testing.T) {
	a := frameWith(
		replay.VehicleSnapshot{ID: 1, X: 10},
		replay.VehicleSnapshot{ID: 2, X: 990}, // leaves before frame b
	)
	b := frameWith(replay.VehicleSnapshot{ID: 1, X: 20})

	out := InterpolateFrames(a, b, 0.5)
	require.Len(t, out, 2)
	assert.Equal(t, 990.0, out[1].X, "leaving vehicle holds its last position")
	assert.Less(t, out[1].Alpha, 1.0)
	assert.Greater(t, out[1].Alpha, 0.0)

	// Past the fade-out threshold the vehicle is gone.
	out = InterpolateFrames(a, b, 0.9)
	require.Len(t, out, 1)
	assert.Equal(t, int64(1), out[0].ID)
}

func TestInterpolateEnteringVehicleHeldThenFadesIn(t *testing.T) {
	a := frameWith(replay.VehicleSnapshot{ID: 1, X: 10})
	b := frameWith(
		replay.VehicleSnapshot{ID: 1, X: 20},
		replay.VehicleSnapshot{ID: 3, X: 5}, // enters with frame b
	)

	// Early in the gap the entering vehicle is not drawn yet.
	out := InterpolateFrames(a, b, 0.1)
	require.Len(t, out, 1)
	assert.Equal(t, int64(1), out[0].ID)

	out = InterpolateFrames(a, b, 0.6)
	require.Len(t, out, 2)
	assert.Equal(t, int64(3), out[1].ID)
	assert.InDelta(t, 0.5, out[1].Alpha, 1e-9)
	assert.Equal(t, 5.0, out[1].X, "entering vehicle sits at its first position")
}

func TestInterpolateDiscreteFieldsSwitchAtMidpoint(t *testing.T) {
	a := frameWith(replay.VehicleSnapshot{ID: 1, X: 0, Lane: 0, Anomaly: 0})
	b := frameWith(replay.VehicleSnapshot{ID: 1, X: 10, Lane: 2, Anomaly: 1})

	out := InterpolateFrames(a, b, 0.4)
	require.Len(t, out, 1)
	assert.Equal(t, 0, out[0].Lane)
	assert.Equal(t, 0, out[0].Anomaly)

	out = InterpolateFrames(a, b, 0.6)
	require.Len(t, out, 1)
	assert.Equal(t, 2, out[0].Lane)
	assert.Equal(t, 1, out[0].Anomaly)
}

func TestInterpolateNilFrames(t *testing.T) {
	f := frameWith(replay.VehicleSnapshot{ID: 1, X: 10})

	assert.Nil(t, InterpolateFrames(nil, nil, 0.5))

	out := InterpolateFrames(f, nil, 0.5)
	require.Len(t, out, 1)
	assert.Equal(t, 1.0, out[0].Alpha)

	out = InterpolateFrames(nil, f, 0.5)
	require.Len(t, out, 1)
	assert.Equal(t, 10.0, out[0].X)
}

func TestInterpolateOutputSortedByID(t *testing.T) {
	a := frameWith(
		replay.VehicleSnapshot{ID: 9, X: 90},
		replay.VehicleSnapshot{ID: 2, X: 20},
	)
	b := frameWith(
		replay.VehicleSnapshot{ID: 2, X: 25},
		replay.VehicleSnapshot{ID: 9, X: 95},
		replay.VehicleSnapshot{ID: 5, X: 50},
	)

	out := InterpolateFrames(a, b, 0.5)
	ids := make([]int64, len(out))
	for i, v := range out {
		ids[i] = v.ID
	}
	if diff := cmp.Diff([]int64{2, 5, 9}, ids); diff != "" {
		t.Errorf("vehicle order mismatch (-want +got):\n%s", diff)
	}
}
