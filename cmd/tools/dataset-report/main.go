// Command dataset-report summarises a simulation output file: an HTML page
// with mean-speed and anomaly-count charts over time, plus a speed histogram
// PNG.
//
// Usage:
//
//	go run ./cmd/tools/dataset-report -file run-42.json -out report
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/gantry-data/traffic.replay/internal/replay/importer"
	"github.com/gantry-data/traffic.replay/internal/units"
)

func main() {
	filePath := flag.String("file", "", "simulation output file (required)")
	outPrefix := flag.String("out", "report", "output file prefix")
	speedUnits := flag.String("units", units.MPS, "speed units for the report ("+units.ValidList()+")")
	flag.Parse()

	if *filePath == "" {
		log.Fatal("Error: -file flag is required")
	}
	if !units.IsValid(*speedUnits) {
		log.Fatalf("Error: invalid units %q, valid values are: %s", *speedUnits, units.ValidList())
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", *filePath, err)
	}

	var res *importer.Result
	if strings.EqualFold(filepath.Ext(*filePath), ".csv") {
		res, err = importer.ParseCSV(string(data))
	} else {
		res, err = importer.ParseJSON(data)
	}
	if err != nil {
		log.Fatalf("Failed to parse %s: %v", *filePath, err)
	}
	frames := res.Frames
	if len(frames) == 0 {
		log.Fatal("Dataset has no frames")
	}

	times := make([]string, len(frames))
	meanSpeeds := make([]opts.LineData, len(frames))
	vehicleCounts := make([]opts.LineData, len(frames))
	anomalyCounts := make([]opts.BarData, len(frames))
	var allSpeeds []float64

	for i, f := range frames {
		times[i] = fmt.Sprintf("%.1f", f.Time)
		var sum float64
		anomalies := 0
		for _, v := range f.Vehicles {
			speed := units.ConvertSpeed(v.Speed, *speedUnits)
			sum += speed
			allSpeeds = append(allSpeeds, speed)
			if v.Anomaly > 0 {
				anomalies++
			}
		}
		mean := 0.0
		if len(f.Vehicles) > 0 {
			mean = sum / float64(len(f.Vehicles))
		}
		meanSpeeds[i] = opts.LineData{Value: mean}
		vehicleCounts[i] = opts.LineData{Value: len(f.Vehicles)}
		anomalyCounts[i] = opts.BarData{Value: anomalies}
	}

	mean, std := stat.MeanStdDev(allSpeeds, nil)
	log.Printf("Dataset %s: %d frames, %d samples, speed mean=%.2f %s stddev=%.2f",
		*filePath, len(frames), len(allSpeeds), mean, *speedUnits, std)

	speedLine := charts.NewLine()
	speedLine.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Traffic Replay Report", Theme: "dark"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Mean speed over time",
			Subtitle: fmt.Sprintf("file=%s frames=%d mean=%.2f %s", filepath.Base(*filePath), len(frames), mean, *speedUnits),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "time (s)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "speed (" + *speedUnits + ")"}),
	)
	speedLine.SetXAxis(times).AddSeries("mean speed", meanSpeeds)

	countLine := charts.NewLine()
	countLine.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Vehicles on road"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "time (s)"}),
	)
	countLine.SetXAxis(times).AddSeries("vehicles", vehicleCounts)

	anomalyBar := charts.NewBar()
	anomalyBar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Anomalous vehicles per frame"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "time (s)"}),
	)
	anomalyBar.SetXAxis(times).AddSeries("anomalies", anomalyCounts)

	page := components.NewPage()
	page.AddCharts(speedLine, countLine, anomalyBar)

	htmlPath := *outPrefix + ".html"
	htmlFile, err := os.Create(htmlPath)
	if err != nil {
		log.Fatalf("Failed to create %s: %v", htmlPath, err)
	}
	if err := page.Render(htmlFile); err != nil {
		htmlFile.Close()
		log.Fatalf("Failed to render report: %v", err)
	}
	htmlFile.Close()

	if err := writeSpeedHistogram(allSpeeds, *speedUnits, *outPrefix+"-speeds.png"); err != nil {
		log.Fatalf("Failed to write speed histogram: %v", err)
	}

	log.Printf("Report written to %s and %s-speeds.png", htmlPath, *outPrefix)
}

// writeSpeedHistogram plots the distribution of all vehicle speed samples.
func writeSpeedHistogram(speeds []float64, speedUnits, path string) error {
	p := plot.New()
	p.Title.Text = "Speed distribution"
	p.X.Label.Text = "speed (" + speedUnits + ")"
	p.Y.Label.Text = "samples"

	values := make(plotter.Values, len(speeds))
	copy(values, speeds)

	h, err := plotter.NewHist(values, 30)
	if err != nil {
		return err
	}
	p.Add(h)

	return p.Save(8*vg.Inch, 4*vg.Inch, path)
}
