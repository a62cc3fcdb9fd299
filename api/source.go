package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gantry-data/traffic.replay/internal/db"
	"github.com/gantry-data/traffic.replay/internal/replay"
	"github.com/gantry-data/traffic.replay/internal/replay/importer"
	"github.com/gantry-data/traffic.replay/internal/security"
)

// FileDescriptor describes one listable dataset source.
type FileDescriptor struct {
	Path       string `json:"path"`
	SizeBytes  int64  `json:"size_bytes"`
	ModifiedAt string `json:"modified_at"`
}

// DatasetSource serves dataset listings, metadata and frame ranges to the
// file API. Info returning TotalFrames == 0 signals "not chunkable, use
// direct load".
type DatasetSource interface {
	List() ([]FileDescriptor, string, error)
	Info(path string) (replay.DatasetInfo, error)
	Chunk(path string, offset, limit int) ([]replay.Frame, *replay.RoadConfig, error)
	Whole(path string) (json.RawMessage, error)
}

// DirSource serves simulation output files from a safe directory. Paths are
// relative to the directory; traversal outside it is rejected. Parsed files
// are cached per (path, mtime) so info followed by a run of chunk requests
// parses the file once.
type DirSource struct {
	dir string

	mu         sync.Mutex
	cachedPath string
	cachedMod  time.Time
	cached     *importer.Result
}

// NewDirSource creates a source rooted at dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

// resolve maps a request path to an absolute path under the safe directory.
// Anything that escapes it, including through symlinks, reads as not found.
func (s *DirSource) resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty path: %w", replay.ErrNotFound)
	}
	dirAbs, err := filepath.Abs(s.dir)
	if err != nil {
		return "", fmt.Errorf("invalid source directory: %w", err)
	}
	full := filepath.Clean(filepath.Join(dirAbs, path))
	if err := security.ValidatePathWithinDirectory(full, dirAbs); err != nil {
		return "", fmt.Errorf("%q: %w", path, replay.ErrNotFound)
	}
	return full, nil
}

// List implements DatasetSource. It scans for .json and .csv output files,
// capped to keep the listing payload bounded.
func (s *DirSource) List() ([]FileDescriptor, string, error) {
	dirAbs, err := filepath.Abs(s.dir)
	if err != nil {
		return nil, "", fmt.Errorf("invalid source directory: %w", err)
	}

	const maxFiles = 500
	var files []FileDescriptor
	_ = filepath.WalkDir(dirAbs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip entries we cannot read
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".json" && ext != ".csv" {
			return nil
		}
		rel, relErr := filepath.Rel(dirAbs, path)
		if relErr != nil {
			return nil
		}
		info, statErr := d.Info()
		if statErr != nil {
			return nil
		}
		files = append(files, FileDescriptor{
			Path:       rel,
			SizeBytes:  info.Size(),
			ModifiedAt: info.ModTime().UTC().Format(time.RFC3339),
		})
		if len(files) >= maxFiles {
			return filepath.SkipAll
		}
		return nil
	})
	return files, dirAbs, nil
}

// load parses the file at path, serving from cache when the file has not
// changed since the previous parse.
func (s *DirSource) load(path string) (*importer.Result, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(full)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", path, replay.ErrNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cachedPath == path && s.cachedMod.Equal(st.ModTime()) && s.cached != nil {
		return s.cached, nil
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}

	var res *importer.Result
	if strings.EqualFold(filepath.Ext(full), ".csv") {
		res, err = importer.ParseCSV(string(data))
	} else {
		res, err = importer.ParseJSON(data)
	}
	if err != nil {
		return nil, &replay.DecodeError{SourceRef: path, Err: err}
	}

	s.cachedPath = path
	s.cachedMod = st.ModTime()
	s.cached = res
	return res, nil
}

// Info implements DatasetSource.
func (s *DirSource) Info(path string) (replay.DatasetInfo, error) {
	res, err := s.load(path)
	if err != nil {
		return replay.DatasetInfo{}, err
	}
	info := replay.DatasetInfo{TotalFrames: len(res.Frames), SourceRef: path}
	if res.Config != nil {
		info.Config = *res.Config
	}
	return info, nil
}

// Chunk implements DatasetSource. Config is only returned for offset 0.
func (s *DirSource) Chunk(path string, offset, limit int) ([]replay.Frame, *replay.RoadConfig, error) {
	res, err := s.load(path)
	if err != nil {
		return nil, nil, err
	}
	total := len(res.Frames)
	if offset < 0 || offset >= total || limit < 1 {
		return nil, nil, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	var cfg *replay.RoadConfig
	if offset == 0 {
		cfg = res.Config
	}
	return res.Frames[offset:end], cfg, nil
}

// Whole implements DatasetSource: the raw file bytes for the small-file
// direct load path.
func (s *DirSource) Whole(path string) (json.RawMessage, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", path, replay.ErrNotFound)
	}
	if strings.EqualFold(filepath.Ext(full), ".csv") {
		// Normalise CSV to the frames shape so the direct path always
		// returns JSON.
		res, perr := importer.ParseCSV(string(data))
		if perr != nil {
			return nil, &replay.DecodeError{SourceRef: path, Err: perr}
		}
		return json.Marshal(map[string]interface{}{"frames": res.Frames})
	}
	return json.RawMessage(data), nil
}

// StoreSource adapts the sqlite dataset store to the DatasetSource contract.
// Dataset name or ID stands in for the file path.
type StoreSource struct {
	store *db.DatasetStore
}

// NewStoreSource wraps a dataset store.
func NewStoreSource(store *db.DatasetStore) *StoreSource {
	return &StoreSource{store: store}
}

// List implements DatasetSource.
func (s *StoreSource) List() ([]FileDescriptor, string, error) {
	datasets, err := s.store.ListDatasets()
	if err != nil {
		return nil, "", err
	}
	files := make([]FileDescriptor, len(datasets))
	for i, d := range datasets {
		files[i] = FileDescriptor{
			Path:       d.Name,
			ModifiedAt: d.CreatedAt.UTC().Format(time.RFC3339),
		}
	}
	return files, "sqlite", nil
}

// Info implements DatasetSource.
func (s *StoreSource) Info(path string) (replay.DatasetInfo, error) {
	d, err := s.store.GetDataset(path)
	if err != nil {
		if errors.Is(err, db.ErrDatasetNotFound) {
			return replay.DatasetInfo{}, fmt.Errorf("%q: %w", path, replay.ErrNotFound)
		}
		return replay.DatasetInfo{}, err
	}
	return replay.DatasetInfo{
		TotalFrames: d.TotalFrames,
		SourceRef:   path,
		Config:      replay.RoadConfig{NumLanes: d.NumLanes, RoadLength: d.RoadLength},
	}, nil
}

// Chunk implements DatasetSource.
func (s *StoreSource) Chunk(path string, offset, limit int) ([]replay.Frame, *replay.RoadConfig, error) {
	frames, err := s.store.GetFrames(path, offset, limit)
	if err != nil {
		if errors.Is(err, db.ErrDatasetNotFound) {
			return nil, nil, fmt.Errorf("%q: %w", path, replay.ErrNotFound)
		}
		return nil, nil, err
	}
	var cfg *replay.RoadConfig
	if offset == 0 {
		if d, derr := s.store.GetDataset(path); derr == nil {
			cfg = &replay.RoadConfig{NumLanes: d.NumLanes, RoadLength: d.RoadLength}
		}
	}
	return frames, cfg, nil
}

// Whole implements DatasetSource.
func (s *StoreSource) Whole(path string) (json.RawMessage, error) {
	d, err := s.store.GetDataset(path)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", path, replay.ErrNotFound)
	}
	frames, err := s.store.GetFrames(path, 0, d.TotalFrames)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]interface{}{
		"frames": frames,
		"config": replay.RoadConfig{NumLanes: d.NumLanes, RoadLength: d.RoadLength},
	})
}
