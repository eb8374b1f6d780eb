// Package report renders performance results for operator inspection.
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/mkeating/perfrecon/internal/models"
)

// RenderNAVChart renders a PNG line chart of both tracks' monthly NAV.
// Synthetic-enhanced draws solid, observed-only dashed, so the divergence
// introduced by synthetic policy is visible at a glance.
func RenderNAVChart(result *models.PerformanceResult) ([]byte, error) {
	enhanced := result.Tracks[models.TrackSyntheticEnhanced]
	observed := result.Tracks[models.TrackObservedOnly]

	if len(enhanced.NAV) < 2 {
		return nil, fmt.Errorf("need at least 2 NAV points, got %d", len(enhanced.NAV))
	}

	enhX, enhY := navSeries(enhanced.NAV)
	obsX, obsY := navSeries(observed.NAV)

	enhancedSeries := chart.TimeSeries{
		Name: "Synthetic-enhanced NAV",
		Style: chart.Style{
			StrokeColor: drawing.ColorFromHex("2563eb"), // blue-600
			StrokeWidth: 2.5,
		},
		XValues: enhX,
		YValues: enhY,
	}

	observedSeries := chart.TimeSeries{
		Name: "Observed-only NAV",
		Style: chart.Style{
			StrokeColor:     drawing.ColorFromHex("9ca3af"), // gray-400
			StrokeWidth:     1.5,
			StrokeDashArray: []float64{5.0, 3.0},
		},
		XValues: obsX,
		YValues: obsY,
	}

	graph := chart.Chart{
		Title:  fmt.Sprintf("Reconstructed NAV (%s)", result.ValuationCurrency),
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			TickPosition: chart.TickPositionBetweenTicks,
			ValueFormatter: func(v interface{}) string {
				if t, ok := v.(float64); ok {
					return chart.TimeFromFloat64(t).Format("Jan 06")
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.0fk", f/1000)
				}
				return ""
			},
		},
		Series: []chart.Series{
			enhancedSeries,
			observedSeries,
		},
	}

	graph.Elements = []chart.Renderable{
		chart.LegendLeft(&graph),
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}

	return buf.Bytes(), nil
}

// RenderReturnChart renders monthly returns of the synthetic-enhanced track
// as a bar chart, colored by sign.
func RenderReturnChart(result *models.PerformanceResult) ([]byte, error) {
	enhanced := result.Tracks[models.TrackSyntheticEnhanced]
	if len(enhanced.Returns) == 0 {
		return nil, fmt.Errorf("no monthly returns to chart")
	}

	values := make([]chart.Value, 0, len(enhanced.Returns))
	for _, p := range enhanced.Returns {
		color := drawing.ColorFromHex("16a34a") // green-600
		if p.Return < 0 {
			color = drawing.ColorFromHex("dc2626") // red-600
		}
		values = append(values, chart.Value{
			Label: p.Period,
			Value: p.Return * 100,
			Style: chart.Style{FillColor: color, StrokeColor: color},
		})
	}

	graph := chart.BarChart{
		Title:  "Monthly TWR (%)",
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		BarWidth: 30,
		Bars:     values,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}

	return buf.Bytes(), nil
}

func navSeries(points []models.NAVPoint) ([]time.Time, []float64) {
	xs := make([]time.Time, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.Date
		ys[i] = p.Total
	}
	return xs, ys
}
