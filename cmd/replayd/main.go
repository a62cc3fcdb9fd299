// Command replayd serves recorded highway simulation output to the traffic
// dashboard: the chunk-serving file API, playback control for an embedded
// replay session, and a websocket feed of playback status.
//
// Usage:
//
//	go run ./cmd/replayd [flags]
//
// Flags:
//
//	-listen      Listen address (default: :8080)
//	-data-dir    Directory of simulation output files (default: ./output)
//	-db          Optional sqlite dataset store; overrides -data-dir
//	-migrations  Migrations directory for -db (default: ./migrations)
//	-config      Optional replay tuning JSON (see config/replay.defaults.json)
//	-dev         Serve static files from ./cmd/replayd/static instead of the embedded copy
package main

import (
	"context"
	"embed"
	"flag"
	"io/fs"
	"log"
	"net/http"
	"sync"
	"syscall"
	"time"

	"os/signal"

	"github.com/gantry-data/traffic.replay/api"
	"github.com/gantry-data/traffic.replay/internal/config"
	"github.com/gantry-data/traffic.replay/internal/db"
	"github.com/gantry-data/traffic.replay/internal/replay"
	"github.com/gantry-data/traffic.replay/internal/version"
)

//go:embed static/*
var staticFiles embed.FS

var (
	listen        = flag.String("listen", ":8080", "Listen address")
	dataDir       = flag.String("data-dir", "./output", "Directory of simulation output files")
	dbPath        = flag.String("db", "", "Optional sqlite dataset store (overrides -data-dir)")
	migrationsDir = flag.String("migrations", "./migrations", "Migrations directory for -db")
	configPath    = flag.String("config", "", "Optional replay tuning JSON")
	devMode       = flag.Bool("dev", false, "Serve static files from disk")
)

func main() {
	flag.Parse()

	log.Printf("replayd %s", version.String())

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg := config.EmptyReplayConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadReplayConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	var source api.DatasetSource
	if *dbPath != "" {
		database, err := db.NewDB(*dbPath)
		if err != nil {
			log.Fatalf("Failed to open dataset store: %v", err)
		}
		defer database.Close()
		if err := database.MigrateUp(*migrationsDir); err != nil {
			log.Fatalf("Failed to migrate dataset store: %v", err)
		}
		source = api.NewStoreSource(db.NewDatasetStore(database))
		log.Printf("Serving datasets from sqlite store %s", *dbPath)
	} else {
		source = api.NewDirSource(*dataDir)
		log.Printf("Serving datasets from %s", *dataDir)
	}

	session := replay.NewSession(&api.SourceFetcher{Source: source}, replay.SessionOptions{
		ChunkSize:         cfg.GetChunkSize(),
		MaxWindow:         cfg.GetMaxWindow(),
		PrefetchThreshold: cfg.GetPrefetchThreshold(),
		BaseFPS:           cfg.GetBaseFramesPerSecond(),
		TickInterval:      cfg.GetTickInterval(),
	})

	apiServer := api.NewServer(source, session, cfg.GetMaxImportBytes())

	// Push playback status to dashboard clients on every tick.
	session.SetFrameHandler(func(_ *replay.Frame, status replay.PlaybackStatus) {
		apiServer.Hub().Broadcast(status)
	})

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Replay tick loop: the display-refresh stand-in driving clock, frame
	// resolution and prefetch.
	wg.Add(1)
	go func() {
		defer wg.Done()
		session.Run(ctx)
		log.Print("replay tick loop terminated")
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()
		mux.Handle("/api/", http.StripPrefix("/api", apiServer.ServeMux()))

		// Static dashboard: embedded in production, from disk in dev for
		// iteration without restarting the server.
		var staticHandler http.Handler
		if *devMode {
			staticHandler = http.FileServer(http.Dir("./cmd/replayd/static"))
		} else {
			sub, err := fs.Sub(staticFiles, "static")
			if err != nil {
				log.Fatalf("embedded static files: %v", err)
			}
			staticHandler = http.FileServer(http.FS(sub))
		}
		mux.Handle("/", staticHandler)

		server := &http.Server{
			Addr:    *listen,
			Handler: mux,
		}

		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()
		log.Printf("replayd listening on %s", *listen)

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
