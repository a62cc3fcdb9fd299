package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gantry-data/traffic.replay/internal/replay"
)

// ErrDatasetNotFound reports a lookup for an unknown dataset.
var ErrDatasetNotFound = errors.New("dataset not found")

// Dataset is one recorded simulation run.
type Dataset struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	TotalFrames int       `json:"total_frames"`
	NumLanes    int       `json:"num_lanes"`
	RoadLength  float64   `json:"road_length"`
	CreatedAt   time.Time `json:"created_at"`
}

// DatasetStore provides dataset and frame persistence on top of DB.
type DatasetStore struct {
	db *DB
}

// NewDatasetStore creates a store over an open database.
func NewDatasetStore(db *DB) *DatasetStore {
	return &DatasetStore{db: db}
}

// CreateDataset inserts a dataset and its frames in one transaction, so a
// failed import never leaves a half-written run behind. Returns the new
// dataset ID.
func (s *DatasetStore) CreateDataset(name string, cfg replay.RoadConfig, frames []replay.Frame) (string, error) {
	if len(frames) == 0 {
		return "", fmt.Errorf("dataset %q has no frames", name)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	id := uuid.NewString()
	_, err = tx.Exec(`
		INSERT INTO datasets (id, name, total_frames, num_lanes, road_length, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, name, len(frames), cfg.NumLanes, cfg.RoadLength, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("insert dataset %q: %w", name, err)
	}

	stmt, err := tx.Prepare(`INSERT INTO frames (dataset_id, idx, time, payload) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare frame insert: %w", err)
	}
	defer stmt.Close()

	for i, f := range frames {
		payload, err := json.Marshal(f)
		if err != nil {
			return "", fmt.Errorf("encode frame %d: %w", i, err)
		}
		if _, err := stmt.Exec(id, i, f.Time, payload); err != nil {
			return "", fmt.Errorf("insert frame %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit dataset %q: %w", name, err)
	}
	return id, nil
}

// GetDataset looks a dataset up by ID or by name.
func (s *DatasetStore) GetDataset(ref string) (*Dataset, error) {
	row := s.db.QueryRow(`
		SELECT id, name, total_frames, num_lanes, road_length, created_at
		FROM datasets WHERE id = ? OR name = ?`, ref, ref)

	var d Dataset
	var created string
	err := row.Scan(&d.ID, &d.Name, &d.TotalFrames, &d.NumLanes, &d.RoadLength, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%q: %w", ref, ErrDatasetNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get dataset %q: %w", ref, err)
	}
	if t, perr := time.Parse(time.RFC3339, created); perr == nil {
		d.CreatedAt = t
	}
	return &d, nil
}

// ListDatasets returns all datasets, newest first.
func (s *DatasetStore) ListDatasets() ([]Dataset, error) {
	rows, err := s.db.Query(`
		SELECT id, name, total_frames, num_lanes, road_length, created_at
		FROM datasets ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	defer rows.Close()

	var out []Dataset
	for rows.Next() {
		var d Dataset
		var created string
		if err := rows.Scan(&d.ID, &d.Name, &d.TotalFrames, &d.NumLanes, &d.RoadLength, &created); err != nil {
			return nil, fmt.Errorf("scan dataset: %w", err)
		}
		if t, perr := time.Parse(time.RFC3339, created); perr == nil {
			d.CreatedAt = t
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetFrames returns the contiguous frame range [offset, offset+limit) for a
// dataset. An offset at or past the end yields an empty slice, matching the
// chunk API contract.
func (s *DatasetStore) GetFrames(ref string, offset, limit int) ([]replay.Frame, error) {
	d, err := s.GetDataset(ref)
	if err != nil {
		return nil, err
	}
	if offset < 0 || offset >= d.TotalFrames || limit < 1 {
		return nil, nil
	}

	rows, err := s.db.Query(`
		SELECT payload FROM frames
		WHERE dataset_id = ? AND idx >= ? AND idx < ?
		ORDER BY idx`, d.ID, offset, offset+limit)
	if err != nil {
		return nil, fmt.Errorf("get frames %q [%d,%d): %w", ref, offset, offset+limit, err)
	}
	defer rows.Close()

	var frames []replay.Frame
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan frame: %w", err)
		}
		var f replay.Frame
		if err := json.Unmarshal(payload, &f); err != nil {
			return nil, fmt.Errorf("decode frame: %w", err)
		}
		frames = append(frames, f)
	}
	return frames, rows.Err()
}

// DeleteDataset removes a dataset and its frames.
func (s *DatasetStore) DeleteDataset(ref string) error {
	d, err := s.GetDataset(ref)
	if err != nil {
		return err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM frames WHERE dataset_id = ?`, d.ID); err != nil {
		return fmt.Errorf("delete frames for %q: %w", ref, err)
	}
	if _, err := tx.Exec(`DELETE FROM datasets WHERE id = ?`, d.ID); err != nil {
		return fmt.Errorf("delete dataset %q: %w", ref, err)
	}
	return tx.Commit()
}
