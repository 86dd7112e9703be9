package api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kiniou-labs/level.report/internal/httputil"
)

// handleLevelChart renders a quick line chart (HTML) of the level history
// using go-echarts. This is a debugging/monitoring view, not part of the
// JSON API surface.
// Query params:
//   - hours (optional; default 24) history window
func (s *Server) handleLevelChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	hours := 24
	if raw := r.URL.Query().Get("hours"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &hours); err != nil || hours <= 0 || hours > 24*31 {
			httputil.BadRequest(w, "hours must be a positive integer up to 744")
			return
		}
	}

	readings, err := s.store.ReadingsSince(time.Now().Add(-time.Duration(hours)*time.Hour), 5000)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(readings) == 0 {
		httputil.WriteJSONError(w, http.StatusNotFound, "no readings in the requested window")
		return
	}

	timestamps := make([]string, 0, len(readings))
	levels := make([]opts.LineData, 0, len(readings))
	percents := make([]opts.LineData, 0, len(readings))
	for _, reading := range readings {
		timestamps = append(timestamps, reading.Timestamp.Format("01-02 15:04"))
		levels = append(levels, opts.LineData{Value: reading.UsefulLevel})
		percents = append(percents, opts.LineData{Value: reading.UsefulPercent})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Tank level", Theme: "dark", Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Tank level",
			Subtitle: fmt.Sprintf("last %dh, %d readings", hours, len(readings)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "useful level (cm)"}),
	)
	line.SetXAxis(timestamps)
	line.AddSeries("useful level (cm)", levels)
	line.AddSeries("fill (%)", percents)
	line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
