// Package export renders branches to portable formats: SVG bifurcation
// diagrams, ASCII plots for terminal output and CSV for downstream
// tooling.
package export

import (
	"fmt"
	"strings"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/bifurc/internal/bif"
	"github.com/san-kum/bifurc/internal/continuation"
)

// Measure reduces a state to the scalar plotted against the parameter.
type Measure func(x bif.State) float64

// FirstComponent plots x[0].
func FirstComponent(x bif.State) float64 { return x[0] }

// StateNorm plots the 2-norm of the state.
func StateNorm(x bif.State) float64 { return x.Norm() }

var markerColors = map[bif.PointType]string{
	bif.Fold:        "#ff5555",
	bif.Hopf:        "#55aaff",
	bif.BranchPoint: "#ffaa00",
}

// BranchToSVG renders a bifurcation diagram: the branch as a polyline in
// the (p, measure) plane with detected special points as circles.
func BranchToSVG(br *continuation.Branch, m Measure, width, height int) string {
	if br == nil || br.Len() < 2 {
		return ""
	}
	if m == nil {
		m = FirstComponent
	}

	minX, maxX := br.Points[0].P, br.Points[0].P
	minY, maxY := m(br.Points[0].X), m(br.Points[0].X)
	for _, s := range br.Points {
		v := m(s.X)
		if s.P < minX {
			minX = s.P
		}
		if s.P > maxX {
			maxX = s.P
		}
		if v < minY {
			minY = v
		}
		if v > maxY {
			maxY = v
		}
	}
	rangeX, rangeY := maxX-minX, maxY-minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	minY -= rangeY * 0.1
	rangeX *= 1.2
	rangeY *= 1.2

	toPx := func(p, v float64) (float64, float64) {
		x := (p - minX) / rangeX * float64(width)
		y := float64(height) - (v-minY)/rangeY*float64(height)
		return x, y
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<path fill="none" stroke="#00ff00" stroke-width="1.5" d="M`,
		width, height, width, height))

	for i, s := range br.Points {
		x, y := toPx(s.P, m(s.X))
		if i == 0 {
			sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
		} else {
			sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
		}
	}
	sb.WriteString("\"/>\n")

	for _, sp := range br.Special {
		color, ok := markerColors[sp.Type]
		if !ok {
			color = "#ffffff"
		}
		x, y := toPx(sp.P, m(sp.X))
		sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="4" fill="%s"><title>%s p=%.6g</title></circle>
`, x, y, color, sp.Type, sp.P))
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// BranchToASCII renders the diagram as a terminal plot. Points are
// resampled uniformly in branch index, so folds show up as the curve
// doubling back.
func BranchToASCII(br *continuation.Branch, m Measure, width, height int) string {
	if br == nil || br.Len() == 0 {
		return ""
	}
	if m == nil {
		m = FirstComponent
	}
	data := make([]float64, br.Len())
	for i, s := range br.Points {
		data[i] = m(s.X)
	}
	return asciigraph.Plot(data,
		asciigraph.Width(width),
		asciigraph.Height(height),
		asciigraph.Caption(fmt.Sprintf("p in [%.4g, %.4g], %d special points",
			br.Points[0].P, br.Points[br.Len()-1].P, len(br.Special))))
}

// BranchToCSV writes one row per accepted point: step, p, measure,
// number of unstable eigenvalues.
func BranchToCSV(br *continuation.Branch, m Measure) string {
	if br == nil {
		return ""
	}
	if m == nil {
		m = FirstComponent
	}
	var sb strings.Builder
	sb.WriteString("step,p,measure,n_unstable\n")
	for _, s := range br.Points {
		sb.WriteString(fmt.Sprintf("%d,%.12g,%.12g,%d\n", s.Step, s.P, m(s.X), s.NUnstable))
	}
	return sb.String()
}
