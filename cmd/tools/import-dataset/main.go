// Command import-dataset loads a simulation output file (JSON or CSV) into
// the sqlite dataset store so replayd can serve it in chunks.
//
// Usage:
//
//	go run ./cmd/tools/import-dataset -db replay.db -file run-42.csv [-name run-42]
package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/gantry-data/traffic.replay/internal/config"
	"github.com/gantry-data/traffic.replay/internal/db"
	"github.com/gantry-data/traffic.replay/internal/replay"
	"github.com/gantry-data/traffic.replay/internal/replay/importer"
	"github.com/gantry-data/traffic.replay/internal/security"
)

func main() {
	dbPath := flag.String("db", "replay.db", "sqlite dataset store path")
	migrationsDir := flag.String("migrations", "./migrations", "migrations directory")
	filePath := flag.String("file", "", "simulation output file to import (required)")
	name := flag.String("name", "", "dataset name (default: file basename)")
	configPath := flag.String("config", "", "optional replay tuning JSON (sets max_import_bytes)")
	flag.Parse()

	if *filePath == "" {
		log.Fatal("Error: -file flag is required")
	}

	maxBytes := int64(importer.DefaultMaxImportBytes)
	if *configPath != "" {
		cfg, err := config.LoadReplayConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		maxBytes = cfg.GetMaxImportBytes()
	}
	datasetName := *name
	if datasetName == "" {
		base := filepath.Base(*filePath)
		datasetName = security.SanitizeFilename(strings.TrimSuffix(base, filepath.Ext(base)))
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", *filePath, err)
	}

	var res *importer.Result
	if strings.EqualFold(filepath.Ext(*filePath), ".csv") {
		res, err = importer.ParseCSVLimit(string(data), maxBytes)
	} else {
		res, err = importer.ParseJSONLimit(data, maxBytes)
	}
	if err != nil {
		log.Fatalf("Failed to parse %s: %v", *filePath, err)
	}
	if res.DefaultedFields > 0 {
		log.Printf("Warning: %d malformed numeric fields defaulted to 0", res.DefaultedFields)
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open dataset store: %v", err)
	}
	defer database.Close()
	if err := database.MigrateUp(*migrationsDir); err != nil {
		log.Fatalf("Failed to migrate dataset store: %v", err)
	}

	cfg := replay.RoadConfig{}
	if res.Config != nil {
		cfg = *res.Config
	}

	store := db.NewDatasetStore(database)
	id, err := store.CreateDataset(datasetName, cfg, res.Frames)
	if err != nil {
		log.Fatalf("Failed to store dataset: %v", err)
	}

	log.Printf("Imported %q: %d frames, dataset id %s", datasetName, len(res.Frames), id)
}
