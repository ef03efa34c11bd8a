package pipeline

import "strconv"

// Default grid for nodes without a stored position: three rows per column.
const (
	OriginX       = 80
	OriginY       = 80
	ColumnSpacing = 320
	RowSpacing    = 220
	RowsPerColumn = 3
)

// Point is a position in canvas content coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p translated by q.
func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

// DefaultPosition returns the grid slot for the node at order index i.
func DefaultPosition(i int) Point {
	if i < 0 {
		i = 0
	}
	col, row := i/RowsPerColumn, i%RowsPerColumn
	return Point{
		X: float64(OriginX + col*ColumnSpacing),
		Y: float64(OriginY + row*RowSpacing),
	}
}

// Layout maps node ids to card positions. It is view state only and never
// part of the workflow.
type Layout struct {
	positions map[string]Point
}

// NewLayout returns an empty layout.
func NewLayout() *Layout {
	return &Layout{positions: make(map[string]Point)}
}

// Position returns the stored position of a node.
func (l *Layout) Position(id string) (Point, bool) {
	p, ok := l.positions[id]
	return p, ok
}

// Set stores a position.
func (l *Layout) Set(id string, p Point) { l.positions[id] = p }

// Delete drops a node's position.
func (l *Layout) Delete(id string) { delete(l.positions, id) }

// Clear drops every position.
func (l *Layout) Clear() { clear(l.positions) }

// Len returns the number of stored positions.
func (l *Layout) Len() int { return len(l.positions) }

// Assign gives every node in order without a position its default slot.
func (l *Layout) Assign(order []string) {
	for i, id := range order {
		if _, ok := l.positions[id]; !ok {
			l.positions[id] = DefaultPosition(i)
		}
	}
}

// formatNumber renders coordinates without trailing zeros.
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
