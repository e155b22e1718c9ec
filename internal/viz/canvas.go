package viz

import (
	"strings"
)

// Braille Patterns: 2x4 dots
// 1 4
// 2 5
// 3 6
// 7 8
//
// Unicode offset 0x2800
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
		for j := range c.Grid[i] {
			c.Grid[i][j] = 0x2800 // Empty braille char
		}
	}
	return c
}

// Set lights a pixel at (x, y) in sub-pixel coordinates. The canvas size
// in sub-pixels is (Width*2) x (Height*4).
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col := x / 2
	row := y / 4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
}

// Clear resets the canvas
func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = 0x2800
		}
	}
}

// DrawLine draws a line using Bresenham's algorithm
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

// Marker draws a filled blob of the given radius, used to flag special
// points on the diagram.
func (c *Canvas) Marker(x, y, r int) {
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			c.Set(x+dx, y+dy)
		}
	}
}

// Viewport maps data coordinates onto a canvas's sub-pixel grid.
type Viewport struct {
	MinX, MaxX float64
	MinY, MaxY float64
	c          *Canvas
}

// NewViewport fits the given data bounds to the canvas, padding
// degenerate ranges so the map is always defined.
func NewViewport(c *Canvas, minX, maxX, minY, maxY float64) *Viewport {
	if maxX == minX {
		minX, maxX = minX-0.5, maxX+0.5
	}
	if maxY == minY {
		minY, maxY = minY-0.5, maxY+0.5
	}
	return &Viewport{MinX: minX, MaxX: maxX, MinY: minY, MaxY: maxY, c: c}
}

func (v *Viewport) pixel(x, y float64) (int, int) {
	cw, ch := v.c.Width*2, v.c.Height*4
	px := int((x - v.MinX) / (v.MaxX - v.MinX) * float64(cw-1))
	py := ch - 1 - int((y-v.MinY)/(v.MaxY-v.MinY)*float64(ch-1))
	return px, py
}

// Plot draws a point in data coordinates.
func (v *Viewport) Plot(x, y float64) {
	px, py := v.pixel(x, y)
	v.c.Set(px, py)
}

// PlotMarker draws a special-point blob in data coordinates.
func (v *Viewport) PlotMarker(x, y float64) {
	px, py := v.pixel(x, y)
	v.c.Marker(px, py, 1)
}

// PlotLine connects two data points.
func (v *Viewport) PlotLine(x0, y0, x1, y1 float64) {
	px0, py0 := v.pixel(x0, y0)
	px1, py1 := v.pixel(x1, y1)
	v.c.DrawLine(px0, py0, px1, py1)
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row) + "\n")
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
