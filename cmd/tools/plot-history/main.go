// Command plot-history renders a PNG of the recorded level history from
// the collector database.
package main

import (
	"flag"
	"log"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/kiniou-labs/level.report/internal/db"
)

var (
	dbFile = flag.String("db", "tank_data.db", "SQLite database path")
	out    = flag.String("out", "level-history.png", "Output PNG path")
	hours  = flag.Int("hours", 24, "History window in hours")
)

func main() {
	flag.Parse()

	store, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer store.Close()

	readings, err := store.ReadingsSince(time.Now().Add(-time.Duration(*hours)*time.Hour), 100000)
	if err != nil {
		log.Fatalf("failed to query readings: %v", err)
	}
	if len(readings) == 0 {
		log.Fatalf("no readings in the last %dh", *hours)
	}

	levels := make(plotter.XYs, len(readings))
	for i, r := range readings {
		levels[i].X = float64(r.Timestamp.Unix())
		levels[i].Y = r.UsefulLevel
	}

	p := plot.New()
	p.Title.Text = "Tank level history"
	p.X.Label.Text = "time"
	p.Y.Label.Text = "useful level (cm)"
	p.X.Tick.Marker = plot.TimeTicks{Format: "01-02 15:04"}

	line, err := plotter.NewLine(levels)
	if err != nil {
		log.Fatalf("failed to build line plot: %v", err)
	}
	p.Add(line, plotter.NewGrid())
	p.Legend.Add("useful level (cm)", line)

	if err := p.Save(12*vg.Inch, 4*vg.Inch, *out); err != nil {
		log.Fatalf("failed to save plot: %v", err)
	}

	log.Printf("wrote %s (%d readings over %dh)", *out, len(readings), *hours)
}
