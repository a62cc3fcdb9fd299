// Command render-frames rasterises a range of trajectory frames to PNG
// files, useful for spot-checking a recording without the dashboard.
//
// Usage:
//
//	go run ./cmd/tools/render-frames -server http://localhost:8080/api -path run-42.json -from 0 -count 10 -out ./frames
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"os"
	"path/filepath"

	"github.com/gantry-data/traffic.replay/internal/replay"
	"github.com/gantry-data/traffic.replay/internal/replay/render"
)

func main() {
	server := flag.String("server", "http://localhost:8080/api", "replayd API base URL")
	path := flag.String("path", "", "dataset path on the server (required)")
	from := flag.Int("from", 0, "first frame index")
	count := flag.Int("count", 10, "number of frames to render")
	outDir := flag.String("out", "./frames", "output directory")
	width := flag.Int("width", 1280, "image width")
	height := flag.Int("height", 360, "image height")
	offsetM := flag.Float64("view-offset", 0, "leftmost visible road position, metres")
	zoom := flag.Float64("zoom", 1.0, "pixels per metre")
	smooth := flag.Int("smooth", 1, "interpolated images per frame gap (1 = no interpolation)")
	flag.Parse()

	if *path == "" {
		log.Fatal("Error: -path flag is required")
	}
	if *smooth < 1 {
		log.Fatal("Error: -smooth must be at least 1")
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	ctx := context.Background()
	fetcher := replay.NewHTTPFetcher(*server)

	info, err := fetcher.FetchInfo(ctx, *path)
	if err != nil {
		log.Fatalf("Failed to fetch dataset info: %v", err)
	}
	log.Printf("Dataset %q: %d frames, %d lanes", *path, info.TotalFrames, info.Config.NumLanes)

	frames, err := fetcher.FetchChunk(ctx, *path, *from, *count)
	if err != nil {
		log.Fatalf("Failed to fetch frames: %v", err)
	}
	if len(frames) == 0 {
		log.Fatalf("No frames in range [%d,%d)", *from, *from+*count)
	}

	view := render.View{OffsetM: *offsetM, Zoom: *zoom}
	written := 0
	for i := range frames {
		var next *replay.Frame
		if i+1 < len(frames) {
			next = &frames[i+1]
		}
		// The last frame has no successor to blend towards, so it gets a
		// single exact image regardless of -smooth.
		steps := *smooth
		if next == nil {
			steps = 1
		}
		for j := 0; j < steps; j++ {
			t := float64(j) / float64(steps)
			img := image.NewRGBA(image.Rect(0, 0, *width, *height))
			status := replay.PlaybackStatus{
				CurrentIndex: float64(*from+i) + t,
				TotalFrames:  info.TotalFrames,
				WindowOffset: *from,
				WindowSize:   len(frames),
				Rate:         1,
			}
			render.RenderBlend(img, &frames[i], next, t, info.Config, view, status)

			name := filepath.Join(*outDir, fmt.Sprintf("frame-%06d.png", *from+i))
			if *smooth > 1 {
				name = filepath.Join(*outDir, fmt.Sprintf("frame-%06d-%02d.png", *from+i, j))
			}
			f, err := os.Create(name)
			if err != nil {
				log.Fatalf("Failed to create %s: %v", name, err)
			}
			if err := png.Encode(f, img); err != nil {
				f.Close()
				log.Fatalf("Failed to encode %s: %v", name, err)
			}
			f.Close()
			written++
		}
	}

	log.Printf("Rendered %d images to %s", written, *outDir)
}
