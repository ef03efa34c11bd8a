package pipeline

import (
	"fmt"
	"math"
)

// Card metrics used when no measured geometry is available.
const (
	CardWidth     = 260
	HeaderHeight  = 56
	SectionHeight = 24
	RowHeight     = 28
	CardPadding   = 12

	// MinControlOffset is the smallest horizontal pull of a connection
	// curve's control points.
	MinControlOffset = 60
)

// Geometry locates port centers relative to their card's top-left corner.
type Geometry interface {
	InputOffset(card *Card, field string) (Point, bool)
	OutputOffset(card *Card, index int) (Point, bool)
	Size(card *Card) Point
}

// CardGeometry lays cards out as a header followed by the required inputs,
// the optional inputs and the outputs, one row per port. Input ports sit on
// the left edge and output ports on the right edge.
type CardGeometry struct{}

func (CardGeometry) InputOffset(card *Card, field string) (Point, bool) {
	y := float64(HeaderHeight)
	var optional []InputPort
	var required []InputPort
	for _, in := range card.Inputs {
		if in.Optional {
			optional = append(optional, in)
		} else {
			required = append(required, in)
		}
	}
	for _, group := range [][]InputPort{required, optional} {
		if len(group) == 0 {
			continue
		}
		y += SectionHeight
		for _, in := range group {
			if in.Field == field {
				return Point{X: 0, Y: y + RowHeight/2}, true
			}
			y += RowHeight
		}
	}
	return Point{}, false
}

func (g CardGeometry) OutputOffset(card *Card, index int) (Point, bool) {
	if index < 0 || index >= len(card.Outputs) {
		return Point{}, false
	}
	y := g.inputsBottom(card) + SectionHeight + float64(index)*RowHeight + RowHeight/2
	return Point{X: CardWidth, Y: y}, true
}

func (g CardGeometry) Size(card *Card) Point {
	h := g.inputsBottom(card)
	if len(card.Outputs) > 0 {
		h += SectionHeight + float64(len(card.Outputs))*RowHeight
	}
	return Point{X: CardWidth, Y: h + CardPadding}
}

func (CardGeometry) inputsBottom(card *Card) float64 {
	y := float64(HeaderHeight)
	var req, opt int
	for _, in := range card.Inputs {
		if in.Optional {
			opt++
		} else {
			req++
		}
	}
	if req > 0 {
		y += SectionHeight + float64(req)*RowHeight
	}
	if opt > 0 {
		y += SectionHeight + float64(opt)*RowHeight
	}
	return y
}

// PortRect is a port rectangle measured by a rendering surface, relative to
// the top-left corner of its card. Exactly one of Field and Index applies,
// selected by Output.
type PortRect struct {
	Node   string  `json:"node"`
	Output bool    `json:"output"`
	Field  string  `json:"field,omitempty"`
	Index  int     `json:"index,omitempty"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the middle of the rectangle.
func (r PortRect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

func (r PortRect) key() string {
	if r.Output {
		return outputKey(r.Node, r.Index)
	}
	return inputKey(r.Node, r.Field)
}

func inputKey(node, field string) string { return node + "\x00in\x00" + field }
func outputKey(node string, index int) string {
	return fmt.Sprintf("%s\x00out\x00%d", node, index)
}

// measuredGeometry prefers reported rectangles and falls back to base for
// ports that were never measured.
type measuredGeometry struct {
	base  Geometry
	rects map[string]Point
}

func (m measuredGeometry) InputOffset(card *Card, field string) (Point, bool) {
	if p, ok := m.rects[inputKey(card.ID, field)]; ok {
		return p, true
	}
	return m.base.InputOffset(card, field)
}

func (m measuredGeometry) OutputOffset(card *Card, index int) (Point, bool) {
	if p, ok := m.rects[outputKey(card.ID, index)]; ok {
		return p, true
	}
	return m.base.OutputOffset(card, index)
}

func (m measuredGeometry) Size(card *Card) Point { return m.base.Size(card) }

// CurvePath returns the SVG path of a connection from start to end: a cubic
// curve whose control points pull horizontally by half the horizontal
// distance, never less than MinControlOffset.
func CurvePath(start, end Point) string {
	d := math.Max(math.Abs(end.X-start.X)*0.5, MinControlOffset)
	return fmt.Sprintf("M %s %s C %s %s, %s %s, %s %s",
		formatNumber(start.X), formatNumber(start.Y),
		formatNumber(start.X+d), formatNumber(start.Y),
		formatNumber(end.X-d), formatNumber(end.Y),
		formatNumber(end.X), formatNumber(end.Y),
	)
}
