// Package export renders run logs to formats viewable outside the terminal.
package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/san-kum/trisim/internal/physics"
	"github.com/san-kum/trisim/internal/storage"
)

// DefaultColors spreads the bodies evenly around the hue circle.
func DefaultColors() []string {
	colors := make([]string, physics.NumBodies)
	for i := range colors {
		colors[i] = colorful.Hcl(20+float64(i)*120, 0.6, 0.7).Clamped().Hex()
	}
	return colors
}

type point struct{ X, Y float64 }

// TrajectorySVG draws the path of every body in data on a shared frame,
// one polyline per body with a dot at its final position. colors[i] is
// used for body i+1; missing or invalid entries fall back to the
// defaults.
func TrajectorySVG(data *storage.RunData, width, height int, colors []string) (string, error) {
	if len(data.Rows) < 2 {
		return "", fmt.Errorf("need at least 2 rows, got %d", len(data.Rows))
	}

	paths := make([][]point, physics.NumBodies)
	for i := range paths {
		xs := data.Column(fmt.Sprintf("x%d", i+1))
		ys := data.Column(fmt.Sprintf("y%d", i+1))
		if xs == nil || ys == nil {
			return "", fmt.Errorf("run log has no position columns for body %d", i+1)
		}
		paths[i] = make([]point, len(xs))
		for k := range xs {
			paths[i][k] = point{xs[k], ys[k]}
		}
	}

	// Find bounds
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, path := range paths {
		for _, p := range path {
			minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
			minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
		}
	}

	// Keep the aspect ratio and add padding
	rangeX := maxX - minX
	rangeY := maxY - minY
	span := math.Max(rangeX/float64(width), rangeY/float64(height))
	if span == 0 {
		span = 1
	}
	span *= 1.2
	cx, cy := (minX+maxX)/2, (minY+maxY)/2

	project := func(p point) (float64, float64) {
		return float64(width)/2 + (p.X-cx)/span, float64(height)/2 - (p.Y-cy)/span
	}

	defaults := DefaultColors()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height))

	for i, path := range paths {
		color := defaults[i]
		if i < len(colors) {
			if c, err := colorful.Hex(colors[i]); err == nil {
				color = c.Hex()
			}
		}

		sb.WriteString(fmt.Sprintf(`<path fill="none" stroke="%s" stroke-width="1.5" d="M`, color))
		for k, p := range path {
			x, y := project(p)
			if k == 0 {
				sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
			} else {
				sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
			}
		}
		sb.WriteString("\"/>\n")

		x, y := project(path[len(path)-1])
		sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="4" fill="%s"/>
`, x, y, color))
	}

	sb.WriteString("</svg>")
	return sb.String(), nil
}
