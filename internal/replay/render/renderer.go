// Package render draws trajectory frames to an RGBA image. Rendering is a
// pure function of (frame, view): the renderer keeps no state of its own, so
// the same frame and view always produce the same pixels.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/gantry-data/traffic.replay/internal/replay"
)

// View holds the pan/zoom parameters. They are mutated by input handlers
// outside the renderer; the renderer only reads them.
type View struct {
	OffsetM float64 // leftmost visible road position, metres
	Zoom    float64 // pixels per metre; <= 0 renders at 1 px/m
}

// PixelsPerMetre returns the effective horizontal scale.
func (v View) PixelsPerMetre() float64 {
	if v.Zoom <= 0 {
		return 1
	}
	return v.Zoom
}

const (
	laneHeightPx = 28
	roadMarginPx = 40
)

var (
	colBackground = color.RGBA{R: 0x12, G: 0x14, B: 0x1a, A: 0xff}
	colRoad       = color.RGBA{R: 0x2e, G: 0x2e, B: 0x33, A: 0xff}
	colLaneLine   = color.RGBA{R: 0x8a, G: 0x8a, B: 0x8a, A: 0xff}
	colGate       = color.RGBA{R: 0x3f, G: 0xa7, B: 0xd6, A: 0xff}
	colOverlay    = color.RGBA{R: 0xe0, G: 0xe0, B: 0xe0, A: 0xff}

	colCar   = color.RGBA{R: 0x4c, G: 0xaf, B: 0x50, A: 0xff}
	colTruck = color.RGBA{R: 0xff, G: 0x98, B: 0x00, A: 0xff}
	colBus   = color.RGBA{R: 0x9c, G: 0x27, B: 0xb0, A: 0xff}

	colAnomalyMinor  = color.RGBA{R: 0xff, G: 0xc1, B: 0x07, A: 0xff}
	colAnomalySevere = color.RGBA{R: 0xf4, G: 0x43, B: 0x36, A: 0xff}
)

// Render draws one frame into img. A nil frame means the playhead is outside
// the resident window (possible transiently after a seek); in that case a
// loading placeholder is drawn instead of erroring. Draw order: background,
// road surface, lane boundaries, gate markers, vehicles, info overlay.
// status supplies the overlay text (frame index/total, resident window size).
func Render(img *image.RGBA, frame *replay.Frame, cfg replay.RoadConfig, view View, status replay.PlaybackStatus) {
	RenderBlend(img, frame, nil, 0, cfg, view, status)
}

// RenderBlend draws the scene at fraction t of the way from frame a to the
// adjacent frame b, for smooth output at fractional playhead positions.
// Vehicle positions and speeds are interpolated per id; vehicles entering or
// leaving between the frames are drawn faded per their interpolation alpha.
// With b nil (or t at 0) this renders frame a exactly, so Render delegates
// here. Both frames nil means the playhead is not resident: a loading
// placeholder is drawn.
func RenderBlend(img *image.RGBA, a, b *replay.Frame, t float64, cfg replay.RoadConfig, view View, status replay.PlaybackStatus) {
	bounds := img.Bounds()
	draw.Draw(img, bounds, &image.Uniform{colBackground}, image.Point{}, draw.Src)

	if a == nil && b == nil {
		drawLabel(img, bounds.Dx()/2-40, bounds.Dy()/2, "loading...")
		drawOverlay(img, status)
		return
	}

	vehicles := InterpolateFrames(a, b, t)
	base := a
	if base == nil {
		base = b
	}

	lanes := cfg.NumLanes
	if lanes < 1 {
		lanes = maxLane(vehicles) + 1
	}
	ppm := view.PixelsPerMetre()

	roadTop := roadMarginPx
	roadBottom := roadTop + lanes*laneHeightPx
	fillRect(img, bounds.Min.X, roadTop, bounds.Max.X, roadBottom, colRoad)

	// Lane boundary lines, dashed between lanes and solid at the edges.
	for i := 0; i <= lanes; i++ {
		y := roadTop + i*laneHeightPx
		dashed := i > 0 && i < lanes
		drawHLine(img, bounds.Min.X, bounds.Max.X, y, colLaneLine, dashed)
	}

	// Gate markers are static; take them from whichever frame is present.
	for _, g := range base.Gates {
		x := int((g.X - view.OffsetM) * ppm)
		if x < bounds.Min.X || x >= bounds.Max.X {
			continue
		}
		fillRect(img, x-1, roadTop-10, x+2, roadBottom+10, colGate)
	}

	// Vehicles, culled to the viewport. Colour by type with anomaly
	// override; opacity modulated by speed so stopped traffic reads dimmer,
	// then scaled by the fade alpha for enterers/leavers.
	for _, v := range vehicles {
		x := int((v.X - view.OffsetM) * ppm)
		if x < bounds.Min.X-20 || x >= bounds.Max.X+20 {
			continue
		}
		lane := v.Lane
		if lane < 0 {
			lane = 0
		}
		if lane >= lanes {
			lane = lanes - 1
		}
		y := roadTop + lane*laneHeightPx + laneHeightPx/2

		w := vehicleLengthPx(v.Type, ppm)
		c := fadeColor(vehicleColor(v.VehicleSnapshot), v.Alpha)
		fillRect(img, x-w/2, y-6, x+w/2, y+6, c)
	}

	drawOverlay(img, status)
	tm := base.Time
	if a != nil && b != nil {
		tm = a.Time + (b.Time-a.Time)*t
	}
	drawLabel(img, 8, 16, fmt.Sprintf("t=%.1fs", tm))
}

// vehicleColor picks the sprite colour for a snapshot. Anomalous vehicles
// override their type colour; alpha scales with speed between 40% and 100%.
func vehicleColor(v replay.VehicleSnapshot) color.RGBA {
	var c color.RGBA
	switch {
	case v.Anomaly >= 2:
		c = colAnomalySevere
	case v.Anomaly == 1:
		c = colAnomalyMinor
	case v.Type == replay.VehicleTruck:
		c = colTruck
	case v.Type == replay.VehicleBus:
		c = colBus
	default:
		c = colCar
	}
	c.A = speedAlpha(v.Speed)
	return c
}

// speedAlpha maps speed to opacity: 0 m/s renders at 40%, 30 m/s and above
// at 100%.
func speedAlpha(speed float64) uint8 {
	const full = 30.0
	frac := speed / full
	if frac > 1 {
		frac = 1
	}
	if frac < 0 {
		frac = 0
	}
	return uint8(102 + frac*153)
}

func vehicleLengthPx(t replay.VehicleType, ppm float64) int {
	metres := 4.5
	switch t {
	case replay.VehicleTruck:
		metres = 12
	case replay.VehicleBus:
		metres = 10
	}
	px := int(metres * ppm)
	if px < 4 {
		px = 4
	}
	return px
}

// fadeColor scales a draw colour by a fade alpha. Channels are scaled
// together to keep the colour premultiplied for draw.Over.
func fadeColor(c color.RGBA, alpha float64) color.RGBA {
	if alpha >= 1 {
		return c
	}
	if alpha < 0 {
		alpha = 0
	}
	return color.RGBA{
		R: uint8(float64(c.R) * alpha),
		G: uint8(float64(c.G) * alpha),
		B: uint8(float64(c.B) * alpha),
		A: uint8(float64(c.A) * alpha),
	}
}

func maxLane(vehicles []Interpolated) int {
	m := 0
	for _, v := range vehicles {
		if v.Lane > m {
			m = v.Lane
		}
	}
	return m
}

func drawOverlay(img *image.RGBA, status replay.PlaybackStatus) {
	b := img.Bounds()
	text := fmt.Sprintf("frame %d/%d  window %d@%d  rate %.2gx",
		int(status.CurrentIndex), status.TotalFrames, status.WindowSize, status.WindowOffset, status.Rate)
	drawLabel(img, 8, b.Max.Y-8, text)
}

func drawLabel(img *image.RGBA, x, y int, text string) {
	d := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{colOverlay},
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

func fillRect(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	r := image.Rect(x0, y0, x1, y1).Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	draw.Draw(img, r, &image.Uniform{c}, image.Point{}, draw.Over)
}

func drawHLine(img *image.RGBA, x0, x1, y int, c color.RGBA, dashed bool) {
	b := img.Bounds()
	if y < b.Min.Y || y >= b.Max.Y {
		return
	}
	for x := x0; x < x1; x++ {
		if dashed && (x/8)%2 == 1 {
			continue
		}
		img.SetRGBA(x, y, c)
	}
}
