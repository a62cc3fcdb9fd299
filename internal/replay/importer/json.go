// Package importer converts user-supplied whole-file payloads (JSON or CSV)
// into the frame array shape consumed by the frame store. Parsing is lenient
// by design: malformed numeric fields default to zero instead of failing the
// whole import, but the number of defaulted fields is reported so callers can
// surface a non-fatal warning. A parse failure is all-or-nothing and never
// disturbs a previously loaded dataset.
package importer

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/gantry-data/traffic.replay/internal/replay"
)

// DefaultMaxImportBytes is the default cap on manual imports. Larger files
// are rejected and directed to the server-side chunked load path. The
// deployed cap comes from the max_import_bytes config knob.
const DefaultMaxImportBytes = 50 * 1024 * 1024

// Result is a parsed dataset plus import diagnostics.
type Result struct {
	Frames []replay.Frame
	Config *replay.RoadConfig

	// DefaultedFields counts numeric fields that failed to parse and were
	// replaced with zero.
	DefaultedFields int
}

// trajectoryRecord is one raw per-vehicle sample, the third accepted JSON
// shape. Records are grouped into frames by a time bucket rounded to the
// nearest 0.5 s.
type trajectoryRecord struct {
	ID      int64           `json:"id"`
	Time    float64         `json:"time"`
	Pos     float64         `json:"pos"`
	Lane    int             `json:"lane"`
	Speed   float64         `json:"speed"`
	Type    json.RawMessage `json:"type"`
	Anomaly int             `json:"anomaly"`
}

// ParseJSON accepts three payload shapes: a bare array of frames, an object
// with a frames key and optional config, or an object with raw per-vehicle
// trajectory records that are bucketed and sorted into frames.
func ParseJSON(payload []byte) (*Result, error) {
	return ParseJSONLimit(payload, DefaultMaxImportBytes)
}

// ParseJSONLimit is ParseJSON with a caller-supplied size cap, for deployments
// that tune max_import_bytes.
func ParseJSONLimit(payload []byte, maxBytes int64) (*Result, error) {
	if int64(len(payload)) > maxBytes {
		return nil, fmt.Errorf("import too large: %d bytes (max %d); use server-side chunked load", len(payload), maxBytes)
	}

	// Shape 1: bare array of frames.
	var frames []replay.Frame
	if err := json.Unmarshal(payload, &frames); err == nil {
		if validFrames(frames) {
			return &Result{Frames: frames}, nil
		}
	}

	var obj struct {
		Frames       []replay.Frame     `json:"frames"`
		Config       *replay.RoadConfig `json:"config"`
		Trajectories []trajectoryRecord `json:"trajectories"`
	}
	if err := json.Unmarshal(payload, &obj); err != nil {
		return nil, fmt.Errorf("unrecognised JSON payload: %w", err)
	}

	// Shape 2: {frames, config?}.
	if len(obj.Frames) > 0 {
		return &Result{Frames: obj.Frames, Config: obj.Config}, nil
	}

	// Shape 3: raw trajectory records.
	if len(obj.Trajectories) > 0 {
		res := bucketRecords(obj.Trajectories)
		res.Config = obj.Config
		return res, nil
	}

	return nil, fmt.Errorf("JSON payload contains no frames or trajectories")
}

// validFrames rejects array payloads that unmarshalled structurally but
// carry no usable frame data (e.g. an array of scalars).
func validFrames(frames []replay.Frame) bool {
	if len(frames) == 0 {
		return false
	}
	for _, f := range frames {
		if len(f.Vehicles) > 0 || f.Time > 0 {
			return true
		}
	}
	return false
}

// timeBucket rounds a timestamp to the nearest 0.5 s. Sampling is uniform in
// practice, but bucketing keeps jittered records in the same frame.
func timeBucket(t float64) float64 {
	return math.Round(t*2) / 2
}

// bucketRecords groups per-vehicle samples into frames by rounded time
// bucket, sorted ascending.
func bucketRecords(records []trajectoryRecord) *Result {
	res := &Result{}
	buckets := make(map[float64][]replay.VehicleSnapshot)
	for _, r := range records {
		snap := replay.VehicleSnapshot{
			ID:      r.ID,
			X:       r.Pos,
			Lane:    r.Lane,
			Speed:   r.Speed,
			Type:    decodeVehicleType(r.Type, &res.DefaultedFields),
			Anomaly: r.Anomaly,
		}
		t := timeBucket(r.Time)
		buckets[t] = append(buckets[t], snap)
	}

	times := make([]float64, 0, len(buckets))
	for t := range buckets {
		times = append(times, t)
	}
	sort.Float64s(times)

	res.Frames = make([]replay.Frame, len(times))
	for i, t := range times {
		res.Frames[i] = replay.Frame{Time: t, Vehicles: buckets[t]}
	}
	return res
}

// decodeVehicleType accepts either a string name or a numeric code. Anything
// unreadable counts as a defaulted field and falls back to CAR.
func decodeVehicleType(raw json.RawMessage, defaulted *int) replay.VehicleType {
	if len(raw) == 0 {
		return replay.VehicleCar
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return replay.ParseVehicleType(s)
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return replay.VehicleType(n)
	}
	*defaulted++
	return replay.VehicleCar
}
