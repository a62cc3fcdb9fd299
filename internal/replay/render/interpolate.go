package render

import (
	"sort"

	"github.com/gantry-data/traffic.replay/internal/replay"
)

// Fade thresholds for vehicles present in only one of the two source frames.
// A vehicle only in the earlier frame is dropped once t passes fadeOutAfter;
// a vehicle only in the later frame is not shown until t passes fadeInAfter.
const (
	fadeInAfter  = 0.2
	fadeOutAfter = 0.8
)

// Interpolated is a vehicle snapshot with a rendering opacity hint, used for
// smooth playback at fractional frame positions.
type Interpolated struct {
	replay.VehicleSnapshot
	Alpha float64 // [0,1]; 1.0 = fully visible
}

// InterpolateFrames produces per-vehicle linear interpolation between frames
// a and b at fraction t in [0,1]. Vehicles present in both frames get
// position and speed lerped by id. Vehicles entering or leaving between the
// frames fade in or out rather than popping.
func InterpolateFrames(a, b *replay.Frame, t float64) []Interpolated {
	if a == nil && b == nil {
		return nil
	}
	if b == nil || t <= 0 {
		return fullAlpha(a)
	}
	if a == nil || t >= 1 {
		return fullAlpha(b)
	}

	after := make(map[int64]replay.VehicleSnapshot, len(b.Vehicles))
	for _, v := range b.Vehicles {
		after[v.ID] = v
	}

	out := make([]Interpolated, 0, len(a.Vehicles)+len(b.Vehicles))
	seen := make(map[int64]bool, len(a.Vehicles))

	for _, va := range a.Vehicles {
		seen[va.ID] = true
		if vb, ok := after[va.ID]; ok {
			v := va
			v.X = va.X + (vb.X-va.X)*t
			v.Speed = va.Speed + (vb.Speed-va.Speed)*t
			if t >= 0.5 {
				v.Lane = vb.Lane
				v.Anomaly = vb.Anomaly
			}
			out = append(out, Interpolated{VehicleSnapshot: v, Alpha: 1})
			continue
		}
		// Leaving: hold last position, fade out, then drop.
		if t > fadeOutAfter {
			continue
		}
		out = append(out, Interpolated{VehicleSnapshot: va, Alpha: 1 - t/fadeOutAfter})
	}

	for _, vb := range b.Vehicles {
		if seen[vb.ID] {
			continue
		}
		// Entering: not yet shown early in the gap, then fade in.
		if t <= fadeInAfter {
			continue
		}
		alpha := (t - fadeInAfter) / (1 - fadeInAfter)
		out = append(out, Interpolated{VehicleSnapshot: vb, Alpha: alpha})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func fullAlpha(f *replay.Frame) []Interpolated {
	if f == nil {
		return nil
	}
	out := make([]Interpolated, len(f.Vehicles))
	for i, v := range f.Vehicles {
		out[i] = Interpolated{VehicleSnapshot: v, Alpha: 1}
	}
	return out
}
