package render

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
)

// A terminal cell covers CellWidth x CellHeight logical pixels and is
// rasterized at braille density.
const (
	CellWidth  = 8.0
	CellHeight = 16.0
	dotsX      = 2
	dotsY      = 4
)

var brailleBits = [dotsX][dotsY]uint8{
	{0x01, 0x02, 0x04, 0x40},
	{0x08, 0x10, 0x20, 0x80},
}

type ink struct {
	color colorful.Color
	alpha float64
}

// Canvas is a drawing surface backed by a braille dot buffer with one color
// per terminal cell. The brightest stroke written into a cell wins its color.
type Canvas struct {
	cols, rows int
	sx, sy     float64
	bits       []uint8
	inks       []ink
	labels     []rune
}

// NewCanvas returns an unsized canvas; Ready reports false until Resize.
func NewCanvas() *Canvas {
	return &Canvas{}
}

// Resize reallocates the backing store for a cols x rows region and resets
// the logical-to-dot transform.
func (c *Canvas) Resize(cols, rows int) {
	if cols < 0 {
		cols = 0
	}
	if rows < 0 {
		rows = 0
	}
	c.cols, c.rows = cols, rows
	c.sx = dotsX / CellWidth
	c.sy = dotsY / CellHeight
	n := cols * rows
	c.bits = make([]uint8, n)
	c.inks = make([]ink, n)
	c.labels = make([]rune, n)
}

// Ready reports whether the canvas has a drawable area.
func (c *Canvas) Ready() bool {
	return c != nil && c.cols > 0 && c.rows > 0
}

// Cells returns the canvas size in terminal cells.
func (c *Canvas) Cells() (int, int) {
	return c.cols, c.rows
}

// Size returns the canvas size in logical pixels.
func (c *Canvas) Size() (float64, float64) {
	return float64(c.cols) * CellWidth, float64(c.rows) * CellHeight
}

// Clear erases every dot, color and label.
func (c *Canvas) Clear() {
	for i := range c.bits {
		c.bits[i] = 0
		c.inks[i] = ink{}
		c.labels[i] = 0
	}
}

// Dot plots a single point.
func (c *Canvas) Dot(x, y float64, col colorful.Color, alpha float64) {
	c.plot(c.toDot(x, y), col, alpha)
}

// Line strokes a segment between two logical points.
func (c *Canvas) Line(x0, y0, x1, y1 float64, col colorful.Color, alpha float64) {
	a := c.toDot(x0, y0)
	b := c.toDot(x1, y1)
	dx := abs(b[0] - a[0])
	dy := -abs(b[1] - a[1])
	stepX, stepY := 1, 1
	if a[0] > b[0] {
		stepX = -1
	}
	if a[1] > b[1] {
		stepY = -1
	}
	errTerm := dx + dy
	x, y := a[0], a[1]
	for {
		c.plot([2]int{x, y}, col, alpha)
		if x == b[0] && y == b[1] {
			return
		}
		e2 := 2 * errTerm
		if e2 >= dy {
			errTerm += dy
			x += stepX
		}
		if e2 <= dx {
			errTerm += dx
			y += stepY
		}
	}
}

// Ring strokes a circle outline.
func (c *Canvas) Ring(cx, cy, r float64, col colorful.Color, alpha float64) {
	if r <= 0 {
		return
	}
	steps := int(math.Max(16, 2*math.Pi*r*math.Max(c.sx, c.sy)*2))
	for i := 0; i < steps; i++ {
		angle := 2 * math.Pi * float64(i) / float64(steps)
		c.Dot(cx+math.Cos(angle)*r, cy+math.Sin(angle)*r, col, alpha)
	}
}

// Disc fills a circle. Discs smaller than one dot still plot their center.
func (c *Canvas) Disc(cx, cy, r float64, col colorful.Color, alpha float64) {
	center := c.toDot(cx, cy)
	c.plot(center, col, alpha)
	rx := int(math.Ceil(r * c.sx))
	ry := int(math.Ceil(r * c.sy))
	for dy := -ry; dy <= ry; dy++ {
		for dx := -rx; dx <= rx; dx++ {
			px := float64(dx) / c.sx
			py := float64(dy) / c.sy
			if px*px+py*py <= r*r {
				c.plot([2]int{center[0] + dx, center[1] + dy}, col, alpha)
			}
		}
	}
}

// Label writes text centered on a logical point, replacing the dots of the
// cells it covers.
func (c *Canvas) Label(x, y float64, text string, col colorful.Color) {
	if !c.Ready() || text == "" {
		return
	}
	runes := []rune(text)
	dot := c.toDot(x, y)
	row := dot[1] / dotsY
	start := dot[0]/dotsX - len(runes)/2
	if row < 0 || row >= c.rows {
		return
	}
	for i, r := range runes {
		col0 := start + i
		if col0 < 0 || col0 >= c.cols {
			continue
		}
		idx := row*c.cols + col0
		c.labels[idx] = r
		c.inks[idx] = ink{color: col, alpha: 1}
	}
}

// Plain renders the canvas without color, one line per row.
func (c *Canvas) Plain() string {
	var b strings.Builder
	for row := 0; row < c.rows; row++ {
		if row > 0 {
			b.WriteByte('\n')
		}
		for col := 0; col < c.cols; col++ {
			b.WriteRune(c.glyph(row*c.cols + col))
		}
	}
	return b.String()
}

// String renders the canvas with per-cell foreground colors. Adjacent cells
// sharing a color are emitted as one styled run.
func (c *Canvas) String() string {
	var b strings.Builder
	for row := 0; row < c.rows; row++ {
		if row > 0 {
			b.WriteByte('\n')
		}
		var run strings.Builder
		runHex := ""
		flush := func() {
			if run.Len() == 0 {
				return
			}
			if runHex == "" {
				b.WriteString(run.String())
			} else {
				b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(runHex)).Render(run.String()))
			}
			run.Reset()
		}
		for col := 0; col < c.cols; col++ {
			idx := row*c.cols + col
			glyph := c.glyph(idx)
			hex := ""
			if glyph != ' ' {
				hex = Fade(c.inks[idx].color, c.inks[idx].alpha).Hex()
			}
			if hex != runHex {
				flush()
				runHex = hex
			}
			run.WriteRune(glyph)
		}
		flush()
	}
	return b.String()
}

func (c *Canvas) glyph(idx int) rune {
	if r := c.labels[idx]; r != 0 {
		return r
	}
	if bits := c.bits[idx]; bits != 0 {
		return rune(0x2800 + int(bits))
	}
	return ' '
}

func (c *Canvas) toDot(x, y float64) [2]int {
	return [2]int{int(math.Floor(x * c.sx)), int(math.Floor(y * c.sy))}
}

func (c *Canvas) plot(dot [2]int, col colorful.Color, alpha float64) {
	if !c.Ready() || alpha <= 0 {
		return
	}
	x, y := dot[0], dot[1]
	if x < 0 || y < 0 || x >= c.cols*dotsX || y >= c.rows*dotsY {
		return
	}
	idx := (y/dotsY)*c.cols + x/dotsX
	c.bits[idx] |= brailleBits[x%dotsX][y%dotsY]
	if alpha >= c.inks[idx].alpha {
		c.inks[idx] = ink{color: col, alpha: alpha}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
