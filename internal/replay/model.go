// Package replay implements chunked playback of recorded highway traffic
// simulation output. It maintains a bounded, contiguous window of trajectory
// frames fetched from a paginated backend, prefetches in both playback
// directions, and drives a variable-rate playback clock.
// This file defines the canonical internal model shared by the store,
// fetcher, clock and renderer.
package replay

// VehicleType classifies a vehicle snapshot.
type VehicleType int

const (
	VehicleCar   VehicleType = 0
	VehicleTruck VehicleType = 1
	VehicleBus   VehicleType = 2
)

// String returns the wire name for the vehicle type.
func (t VehicleType) String() string {
	switch t {
	case VehicleTruck:
		return "TRUCK"
	case VehicleBus:
		return "BUS"
	default:
		return "CAR"
	}
}

// ParseVehicleType maps a wire name to a VehicleType. Unknown names map to
// VehicleCar, matching the lenient import behaviour elsewhere.
func ParseVehicleType(s string) VehicleType {
	switch s {
	case "TRUCK", "truck", "1":
		return VehicleTruck
	case "BUS", "bus", "2":
		return VehicleBus
	default:
		return VehicleCar
	}
}

// VehicleSnapshot is the state of one vehicle in one frame.
type VehicleSnapshot struct {
	ID      int64       `json:"id"`
	X       float64     `json:"x"` // metres along the road
	Lane    int         `json:"lane"`
	Speed   float64     `json:"speed"` // m/s
	Type    VehicleType `json:"type"`
	Anomaly int         `json:"anomaly"` // ETC severity code, 0 = none
}

// Gate is a static ETC gantry marker. Gates are rendered but never simulated
// by this package.
type Gate struct {
	X       float64 `json:"x"` // metres along the road
	Segment int     `json:"segment"`
}

// Frame is one simulation time-step. Frames are immutable once received;
// the global sequence of frames for a dataset is strictly increasing in Time
// and addressed by a zero-based global index assigned at ingestion order.
type Frame struct {
	Time     float64           `json:"time"` // seconds
	Vehicles []VehicleSnapshot `json:"vehicles"`
	Gates    []Gate            `json:"gates,omitempty"`
}

// RoadConfig is the static scene configuration fixed at load time.
type RoadConfig struct {
	NumLanes   int     `json:"num_lanes"`
	RoadLength float64 `json:"road_length"` // metres
}

// DatasetInfo is the handle for a loaded dataset. TotalFrames is fixed once
// known. SourceRef is the opaque identifier the fetcher uses to address the
// backend; an empty SourceRef means the dataset is fully resident and no
// further fetch is possible.
type DatasetInfo struct {
	TotalFrames int        `json:"total_frames"`
	SourceRef   string     `json:"-"`
	Config      RoadConfig `json:"config"`
}

// PlaybackStatus is a snapshot of session state pushed to dashboard clients.
type PlaybackStatus struct {
	Source       string  `json:"source"`
	Playing      bool    `json:"playing"`
	Rate         float64 `json:"rate"`
	CurrentIndex float64 `json:"current_index"`
	TotalFrames  int     `json:"total_frames"`
	WindowOffset int     `json:"window_offset"`
	WindowSize   int     `json:"window_size"`
	Time         float64 `json:"time"` // frame time at the playhead, seconds
}
