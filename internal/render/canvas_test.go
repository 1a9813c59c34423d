package render

import (
	"strings"
	"testing"

	"github.com/kingrea/kmap/internal/scene"
)

func TestCanvasUnsizedIsNotReady(t *testing.T) {
	c := NewCanvas()
	if c.Ready() {
		t.Fatalf("unsized canvas reported ready")
	}
	c.Dot(1, 1, SparkColor, 1)
	c.Label(1, 1, "v1", LabelColor)
	if got := c.Plain(); got != "" {
		t.Fatalf("unsized canvas rendered %q", got)
	}
}

func TestCanvasResizeResetsTransform(t *testing.T) {
	c := NewCanvas()
	c.Resize(10, 5)
	w, h := c.Size()
	if w != 80 || h != 80 {
		t.Fatalf("size = %vx%v, want 80x80", w, h)
	}
	c.Dot(0, 0, SparkColor, 1)
	if got := []rune(c.Plain())[0]; got != rune(0x2801) {
		t.Fatalf("top-left glyph = %U, want U+2801", got)
	}
	c.Resize(20, 2)
	if strings.TrimSpace(strings.ReplaceAll(c.Plain(), "\n", "")) != "" {
		t.Fatalf("resize must drop previous strokes")
	}
	if w, h := c.Size(); w != 160 || h != 32 {
		t.Fatalf("size after resize = %vx%v, want 160x32", w, h)
	}
}

func TestCanvasLineCoversRow(t *testing.T) {
	c := NewCanvas()
	c.Resize(10, 1)
	c.Line(0, 0, 79, 0, ClusterColor(scene.ClusterTickets), 1)
	row := []rune(c.Plain())
	if len(row) != 10 {
		t.Fatalf("row length = %d, want 10", len(row))
	}
	for i, r := range row {
		if r == ' ' {
			t.Fatalf("cell %d not stroked", i)
		}
	}
}

func TestCanvasLabelOverridesDots(t *testing.T) {
	c := NewCanvas()
	c.Resize(10, 3)
	c.Disc(40, 24, 6, HaloColor, 1)
	c.Label(40, 24, "v2", LabelColor)
	lines := strings.Split(c.Plain(), "\n")
	if !strings.Contains(lines[1], "v2") {
		t.Fatalf("label missing from row 1: %q", lines[1])
	}
}

func TestCanvasStringStylesOnlyInkedCells(t *testing.T) {
	c := NewCanvas()
	c.Resize(4, 1)
	if got := c.String(); got != "    " {
		t.Fatalf("blank canvas rendered %q", got)
	}
	c.Dot(0, 0, SparkColor, 0.5)
	if !strings.ContainsRune(c.String(), rune(0x2801)) {
		t.Fatalf("styled output lost the dot glyph")
	}
}

func TestFadeBlendsTowardBackground(t *testing.T) {
	if Fade(SparkColor, 1) != SparkColor {
		t.Fatalf("full alpha should keep the color")
	}
	if Fade(SparkColor, 0) != Background {
		t.Fatalf("zero alpha should be background")
	}
	half := Fade(SparkColor, 0.5)
	if half == SparkColor || half == Background {
		t.Fatalf("half alpha should blend, got %s", half.Hex())
	}
}
