package render

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gantry-data/traffic.replay/internal/replay"
)

func testImage() *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, 640, 240))
}

func countNonBackground(img *image.RGBA) int {
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.RGBAAt(x, y) != colBackground {
				n++
			}
		}
	}
	return n
}

func TestRenderNilFrameDrawsPlaceholder(t *testing.T) {
	img := testImage()
	Render(img, nil, replay.RoadConfig{NumLanes: 3}, View{Zoom: 1}, replay.PlaybackStatus{})

	// Placeholder text and overlay, no road surface.
	assert.Greater(t, countNonBackground(img), 0)
	assert.NotEqual(t, colRoad, img.RGBAAt(320, roadMarginPx+laneHeightPx))
}

func TestRenderDrawsRoadAndVehicles(t *testing.T) {
	img := testImage()
	frame := &replay.Frame{
		Time: 12.5,
		Vehicles: []replay.VehicleSnapshot{
			{ID: 1, X: 100, Lane: 0, Speed: 30, Type: replay.VehicleCar},
			{ID: 2, X: 200, Lane: 2, Speed: 15, Type: replay.VehicleTruck},
		},
		Gates: []replay.Gate{{X: 300, Segment: 1}},
	}
	Render(img, frame, replay.RoadConfig{NumLanes: 3, RoadLength: 1000}, View{Zoom: 1}, replay.PlaybackStatus{})

	// Road surface spans the image under the margin.
	assert.Equal(t, colRoad, img.RGBAAt(5, roadMarginPx+laneHeightPx/2+1))

	// Car sprite at x=100 in lane 0; full speed renders fully opaque.
	got := img.RGBAAt(100, roadMarginPx+laneHeightPx/2)
	want := colCar
	assert.Equal(t, want, got)

	// Gate marker at x=300 extends above the road surface.
	assert.Equal(t, colGate, img.RGBAAt(300, roadMarginPx-5))
}

func TestRenderViewPansAndZooms(t *testing.T) {
	frame := &replay.Frame{
		Vehicles: []replay.VehicleSnapshot{{ID: 1, X: 500, Lane: 0, Speed: 30}},
	}
	cfg := replay.RoadConfig{NumLanes: 1}

	// Vehicle off-screen at default view, on-screen once panned.
	img := testImage()
	Render(img, frame, cfg, View{OffsetM: 0, Zoom: 1}, replay.PlaybackStatus{})
	y := roadMarginPx + laneHeightPx/2
	assert.NotEqual(t, colCar, img.RGBAAt(100, y))

	img = testImage()
	Render(img, frame, cfg, View{OffsetM: 400, Zoom: 1}, replay.PlaybackStatus{})
	assert.Equal(t, colCar, img.RGBAAt(100, y))

	// Zoom doubles the screen position relative to the pan origin.
	img = testImage()
	Render(img, frame, cfg, View{OffsetM: 400, Zoom: 2}, replay.PlaybackStatus{})
	assert.Equal(t, colCar, img.RGBAAt(200, y))
}

func TestRenderIsDeterministic(t *testing.T) {
	frame := &replay.Frame{
		Vehicles: []replay.VehicleSnapshot{
			{ID: 1, X: 50, Lane: 0, Speed: 10},
			{ID: 2, X: 80, Lane: 1, Speed: 20, Anomaly: 2},
		},
	}
	cfg := replay.RoadConfig{NumLanes: 2}
	status := replay.PlaybackStatus{CurrentIndex: 42, TotalFrames: 1200, WindowSize: 500}

	a := testImage()
	b := testImage()
	Render(a, frame, cfg, View{Zoom: 1}, status)
	Render(b, frame, cfg, View{Zoom: 1}, status)
	assert.Equal(t, a.Pix, b.Pix)
}

func TestRenderBlendDrawsInterpolatedPosition(t *testing.T) {
	a := &replay.Frame{Time: 1.0, Vehicles: []replay.VehicleSnapshot{{ID: 7, X: 100, Lane: 0, Speed: 30}}}
	b := &replay.Frame{Time: 1.5, Vehicles: []replay.VehicleSnapshot{{ID: 7, X: 140, Lane: 0, Speed: 30}}}
	cfg := replay.RoadConfig{NumLanes: 1}
	y := roadMarginPx + laneHeightPx/2

	img := testImage()
	RenderBlend(img, a, b, 0.5, cfg, View{Zoom: 1}, replay.PlaybackStatus{})
	assert.Equal(t, colCar, img.RGBAAt(120, y), "vehicle drawn midway between the two frames")
	assert.NotEqual(t, colCar, img.RGBAAt(100, y))
	assert.NotEqual(t, colCar, img.RGBAAt(140, y))
}

func TestRenderBlendFadesLeavingVehicle(t *testing.T) {
	a := &replay.Frame{Vehicles: []replay.VehicleSnapshot{{ID: 3, X: 100, Lane: 0, Speed: 30}}}
	b := &replay.Frame{Vehicles: []replay.VehicleSnapshot{}}
	cfg := replay.RoadConfig{NumLanes: 1}
	y := roadMarginPx + laneHeightPx/2

	img := testImage()
	RenderBlend(img, a, b, 0.5, cfg, View{Zoom: 1}, replay.PlaybackStatus{})
	got := img.RGBAAt(100, y)
	assert.NotEqual(t, colRoad, got, "fading vehicle still visible at t=0.5")
	assert.NotEqual(t, colCar, got, "fading vehicle no longer fully opaque")

	img = testImage()
	RenderBlend(img, a, b, 0.9, cfg, View{Zoom: 1}, replay.PlaybackStatus{})
	assert.Equal(t, colRoad, img.RGBAAt(100, y), "vehicle dropped past the fade-out threshold")
}

func TestRenderMatchesBlendOfSingleFrame(t *testing.T) {
	frame := &replay.Frame{
		Time: 3.5,
		Vehicles: []replay.VehicleSnapshot{
			{ID: 1, X: 50, Lane: 0, Speed: 10},
			{ID: 2, X: 80, Lane: 1, Speed: 20, Anomaly: 1},
		},
		Gates: []replay.Gate{{X: 120}},
	}
	cfg := replay.RoadConfig{NumLanes: 2}
	status := replay.PlaybackStatus{CurrentIndex: 7, TotalFrames: 1200, WindowSize: 500}

	single := testImage()
	blend := testImage()
	Render(single, frame, cfg, View{Zoom: 1}, status)
	RenderBlend(blend, frame, nil, 0, cfg, View{Zoom: 1}, status)
	assert.Equal(t, single.Pix, blend.Pix)
}

func TestVehicleColor(t *testing.T) {
	tests := []struct {
		name string
		v    replay.VehicleSnapshot
		want [3]uint8
	}{
		{"car", replay.VehicleSnapshot{Type: replay.VehicleCar}, [3]uint8{colCar.R, colCar.G, colCar.B}},
		{"truck", replay.VehicleSnapshot{Type: replay.VehicleTruck}, [3]uint8{colTruck.R, colTruck.G, colTruck.B}},
		{"bus", replay.VehicleSnapshot{Type: replay.VehicleBus}, [3]uint8{colBus.R, colBus.G, colBus.B}},
		{"minor anomaly overrides type", replay.VehicleSnapshot{Type: replay.VehicleBus, Anomaly: 1}, [3]uint8{colAnomalyMinor.R, colAnomalyMinor.G, colAnomalyMinor.B}},
		{"severe anomaly", replay.VehicleSnapshot{Type: replay.VehicleCar, Anomaly: 3}, [3]uint8{colAnomalySevere.R, colAnomalySevere.G, colAnomalySevere.B}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := vehicleColor(tt.v)
			assert.Equal(t, tt.want, [3]uint8{c.R, c.G, c.B})
		})
	}
}

func TestSpeedAlpha(t *testing.T) {
	assert.Equal(t, uint8(102), speedAlpha(0))
	assert.Equal(t, uint8(255), speedAlpha(30))
	assert.Equal(t, uint8(255), speedAlpha(90), "clamped above full speed")
	mid := speedAlpha(15)
	assert.Greater(t, mid, uint8(102))
	assert.Less(t, mid, uint8(255))
}
