package portfolio

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/bobmcallan/drip/internal/models"
)

// RenderProjectionChart renders a PNG line chart of projected value per year.
// One series per holding in its display color, plus the portfolio total
// (gray dashed) when there is more than one holding. Returns raw PNG bytes.
func RenderProjectionChart(title string, projections []models.HoldingProjection) ([]byte, error) {
	if len(projections) == 0 {
		return nil, fmt.Errorf("nothing to chart: no holdings")
	}

	combined := CombineProjection(projections)
	if len(combined) < 2 {
		return nil, fmt.Errorf("need at least 2 projection years, got %d", len(combined))
	}

	hasValue := false
	for _, c := range combined {
		if c.TotalValue != 0 {
			hasValue = true
			break
		}
	}
	if !hasValue {
		return nil, fmt.Errorf("nothing to chart: projected value is zero")
	}

	series := make([]chart.Series, 0, len(projections)+1)
	for _, p := range projections {
		xValues := make([]float64, len(p.ProjectionData))
		yValues := make([]float64, len(p.ProjectionData))
		for i, pt := range p.ProjectionData {
			xValues[i] = float64(pt.Year)
			yValues[i] = pt.TotalValue
		}
		series = append(series, chart.ContinuousSeries{
			Name: p.Ticker,
			Style: chart.Style{
				StrokeColor: seriesColor(p.Color),
				StrokeWidth: 2.5,
			},
			XValues: xValues,
			YValues: yValues,
		})
	}

	if len(projections) > 1 {
		xValues := make([]float64, len(combined))
		yValues := make([]float64, len(combined))
		for i, c := range combined {
			xValues[i] = float64(c.Year)
			yValues[i] = c.TotalValue
		}
		series = append(series, chart.ContinuousSeries{
			Name: "Total",
			Style: chart.Style{
				StrokeColor:     drawing.ColorFromHex("9ca3af"), // gray-400
				StrokeWidth:     1.5,
				StrokeDashArray: []float64{5.0, 3.0},
			},
			XValues: xValues,
			YValues: yValues,
		})
	}

	graph := chart.Chart{
		Title:  title,
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			Name: "Year",
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("Y%.0f", f)
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("$%.0fk", f/1000)
				}
				return ""
			},
		},
		Series: series,
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

// seriesColor parses a #RRGGBB holding color, falling back to blue
func seriesColor(hex string) drawing.Color {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return drawing.ColorFromHex("2563eb") // blue-600
	}
	return drawing.ColorFromHex(hex)
}
