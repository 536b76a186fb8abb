// Command fieldviz renders a distance-field heatmap from an occupancy map
// snapshot JSON file (the same payload shape POSTed to /api/map).
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/banshee-data/position.report/internal/field"
	"github.com/banshee-data/position.report/internal/grid"
	"github.com/banshee-data/position.report/internal/monitor"
)

var (
	mapPath    = flag.String("map", "", "Path to map snapshot JSON (required)")
	outPath    = flag.String("out", "field.png", "Output image path")
	threshold  = flag.Int("occupied-threshold", 65, "Cell value at/above which a cell is occupied")
	allowEmpty = flag.Bool("allow-empty", false, "Render obstacle-free maps as all-sentinel fields")
)

type mapPayload struct {
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Resolution float64 `json:"resolution"`
	Origin     struct {
		X       float64 `json:"x"`
		Y       float64 `json:"y"`
		Heading float64 `json:"heading"`
	} `json:"origin"`
	Cells []int8 `json:"cells"`
}

func main() {
	flag.Parse()
	if *mapPath == "" {
		log.Fatal("-map is required")
	}

	data, err := os.ReadFile(*mapPath)
	if err != nil {
		log.Fatalf("Failed to read map file: %v", err)
	}
	var payload mapPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Fatalf("Failed to parse map JSON: %v", err)
	}

	g, err := grid.FromRaw(
		payload.Width, payload.Height, payload.Resolution,
		grid.Pose2D{X: payload.Origin.X, Y: payload.Origin.Y, Heading: payload.Origin.Heading},
		payload.Cells, int8(*threshold),
	)
	if err != nil {
		log.Fatalf("Invalid map: %v", err)
	}

	f, err := field.Build(g, field.BuildOptions{AllowEmpty: *allowEmpty})
	if err != nil {
		log.Fatalf("Failed to build distance field: %v", err)
	}

	if err := monitor.SaveFieldHeatmap(f, nil, *outPath); err != nil {
		log.Fatalf("Failed to render: %v", err)
	}
	log.Printf("Wrote %s (%dx%d cells at %.3fm)", *outPath, f.Width, f.Height, f.Resolution)
}
