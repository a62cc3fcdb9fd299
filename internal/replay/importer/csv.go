package importer

import (
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/gantry-data/traffic.replay/internal/replay"
)

// csvColumns maps detected header positions. -1 means the column is absent.
type csvColumns struct {
	time, x, lane, speed, id, vtype, anomaly int
}

// detectColumns matches headers case-insensitively by substring, so
// "Vehicle_ID", "vehicle id" and "id" all resolve. First match wins per
// column; more specific names are probed before generic ones.
func detectColumns(header []string) csvColumns {
	cols := csvColumns{time: -1, x: -1, lane: -1, speed: -1, id: -1, vtype: -1, anomaly: -1}
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		switch {
		case cols.time == -1 && strings.Contains(name, "time"):
			cols.time = i
		case cols.vtype == -1 && strings.Contains(name, "type"):
			cols.vtype = i
		case cols.id == -1 && strings.Contains(name, "id"):
			cols.id = i
		case cols.x == -1 && (strings.Contains(name, "position") || strings.Contains(name, "pos") || name == "x"):
			cols.x = i
		case cols.lane == -1 && strings.Contains(name, "lane"):
			cols.lane = i
		case cols.speed == -1 && strings.Contains(name, "speed"):
			cols.speed = i
		case cols.anomaly == -1 && strings.Contains(name, "anomal"):
			cols.anomaly = i
		}
	}
	return cols
}

// ParseCSV parses a whole-file CSV export into frames, using the same 0.5 s
// time bucketing as the trajectory JSON shape. Column detection is driven by
// the header row. Malformed numeric fields default to 0 rather than failing
// the parse; the defaulted-field count is reported in the result.
func ParseCSV(text string) (*Result, error) {
	return ParseCSVLimit(text, DefaultMaxImportBytes)
}

// ParseCSVLimit is ParseCSV with a caller-supplied size cap, for deployments
// that tune max_import_bytes.
func ParseCSVLimit(text string, maxBytes int64) (*Result, error) {
	if int64(len(text)) > maxBytes {
		return nil, fmt.Errorf("import too large: %d bytes (max %d); use server-side chunked load", len(text), maxBytes)
	}

	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1 // tolerate ragged rows
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read CSV: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("CSV has no data rows")
	}

	cols := detectColumns(rows[0])
	if cols.time == -1 {
		return nil, fmt.Errorf("CSV header has no time column")
	}

	res := &Result{}
	buckets := make(map[float64][]replay.VehicleSnapshot)
	for _, row := range rows[1:] {
		t := res.floatField(row, cols.time)
		snap := replay.VehicleSnapshot{
			ID:      res.intField(row, cols.id),
			X:       res.floatField(row, cols.x),
			Lane:    int(res.intField(row, cols.lane)),
			Speed:   res.floatField(row, cols.speed),
			Anomaly: int(res.intField(row, cols.anomaly)),
		}
		if cols.vtype >= 0 && cols.vtype < len(row) {
			snap.Type = replay.ParseVehicleType(strings.TrimSpace(row[cols.vtype]))
		}
		bucket := timeBucket(t)
		buckets[bucket] = append(buckets[bucket], snap)
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
	return res, nil
}

// floatField reads a float column leniently: absent columns yield 0 without
// counting, malformed values yield 0 and increment the defaulted count.
func (res *Result) floatField(row []string, col int) float64 {
	if col < 0 || col >= len(row) {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
	if err != nil {
		res.DefaultedFields++
		return 0
	}
	return v
}

func (res *Result) intField(row []string, col int) int64 {
	if col < 0 || col >= len(row) {
		return 0
	}
	s := strings.TrimSpace(row[col])
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// Some exporters write integral columns as floats.
		if f, ferr := strconv.ParseFloat(s, 64); ferr == nil {
			return int64(f)
		}
		res.DefaultedFields++
		return 0
	}
	return v
}
