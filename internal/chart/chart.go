// Package chart renders daily send volume as a PNG bar chart.
package chart

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/wcharczuk/go-chart/v2"

	"github.com/eliseohh/channelstatbot/internal/stats"
)

const (
	Title = "Daily messages"

	height      = 512
	minWidth    = 1024
	barWidth    = 40
	barSpacing  = 40
	sidePadding = 160
)

var ErrNoData = errors.New("no chart data")

// Render writes a bar chart of days in the given order to w.
func Render(w io.Writer, days []stats.DayCount) error {
	if len(days) == 0 {
		return ErrNoData
	}

	bars := make([]chart.Value, 0, len(days))
	peak := 0
	for _, d := range days {
		bars = append(bars, chart.Value{Label: d.Day, Value: float64(d.Count)})
		peak = max(peak, d.Count)
	}

	width := max(minWidth, len(days)*(barWidth+barSpacing)+sidePadding)

	graph := chart.BarChart{
		Title:      Title,
		Background: chart.Style{Padding: chart.Box{Top: 40}},
		Width:      width,
		Height:     height,
		BarWidth:   barWidth,
		BarSpacing: barSpacing,
		YAxis: chart.YAxis{
			Name:  "Messages",
			Range: &chart.ContinuousRange{Min: 0, Max: float64(max(peak, 1)) * 1.1},
		},
		Bars: bars,
	}

	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

// RenderFile renders into a new temporary PNG and returns its path along
// with a cleanup func the caller must run once the image is sent.
func RenderFile(days []stats.DayCount) (string, func(), error) {
	f, err := os.CreateTemp("", "chart-*.png")
	if err != nil {
		return "", nil, fmt.Errorf("create chart file: %w", err)
	}
	cleanup := func() { os.Remove(f.Name()) }

	if err := Render(f, days); err != nil {
		f.Close()
		cleanup()
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close chart file: %w", err)
	}
	return f.Name(), cleanup, nil
}
