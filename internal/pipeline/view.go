// Package pipeline is the visual view of the graph: one card per node with
// input and output ports, connection curves between them, the two-click
// connect gesture and pointer dragging of cards.
//
// A View is not safe for concurrent use. Scheduled recomputes run through
// the Scheduler, which must serialize them with the View's other callers.
package pipeline

import (
	"errors"
	"fmt"
	"math"

	"github.com/alfredjeanlab/nodegraph/internal/catalog"
	"github.com/alfredjeanlab/nodegraph/internal/graph"
)

// ErrNoPort is returned for gestures on a port that does not exist.
var ErrNoPort = errors.New("no such port")

// OutputRef names one output port.
type OutputRef struct {
	Node  string `json:"node"`
	Index int    `json:"index"`
}

// InputPort is one input port on a card.
type InputPort struct {
	Field    string `json:"field"`
	Label    string `json:"label"`
	Optional bool   `json:"optional,omitempty"`
	Linked   bool   `json:"linked"`
}

// OutputPort is one output port on a card.
type OutputPort struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	IsList   bool   `json:"is_list,omitempty"`
	Tooltip  string `json:"tooltip,omitempty"`
	Linked   bool   `json:"linked"`
	Selected bool   `json:"selected"`
}

// Card is one rendered node.
type Card struct {
	ID       string       `json:"id"`
	Title    string       `json:"title"`
	Subtitle string       `json:"subtitle"`
	Position Point        `json:"position"`
	Size     Point        `json:"size"`
	Dragging bool         `json:"dragging,omitempty"`
	Inputs   []InputPort  `json:"inputs"`
	Outputs  []OutputPort `json:"outputs"`
}

// Path is one drawn connection.
type Path struct {
	From  OutputRef      `json:"from"`
	To    graph.FieldRef `json:"to"`
	Start Point          `json:"start"`
	End   Point          `json:"end"`
	D     string         `json:"d"`
}

// Viewport is the visible window onto the canvas.
type Viewport struct {
	ScrollX float64 `json:"scroll_x"`
	ScrollY float64 `json:"scroll_y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

// Scene is a full render of the pipeline view.
type Scene struct {
	Cards     []Card     `json:"cards"`
	Paths     []Path     `json:"paths"`
	Selection *OutputRef `json:"selection,omitempty"`
	Viewport  Viewport   `json:"viewport"`
	Canvas    Point      `json:"canvas"`
	Empty     bool       `json:"empty"`
}

type drag struct {
	node   string
	start  Point
	origin Point
}

// Option configures a View.
type Option func(*View)

// WithGeometry replaces the default card geometry.
func WithGeometry(g Geometry) Option {
	return func(v *View) { v.geometry = g }
}

// WithRecomputeHook registers fn to receive the paths after every
// connection recompute.
func WithRecomputeHook(fn func([]Path)) Option {
	return func(v *View) { v.onRecompute = fn }
}

// View holds pipeline view state over a graph store.
type View struct {
	store    *graph.Store
	layout   *Layout
	sched    Scheduler
	geometry Geometry

	measured  map[string]Point
	selection *OutputRef
	drags     map[int]*drag
	viewport  Viewport

	// Ports present in the last render, for link resolution.
	cards   map[string]*Card
	order   []string
	inputs  map[graph.FieldRef]bool
	outputs map[OutputRef]bool

	paths       []Path
	pending     bool
	recomputes  int
	onRecompute func([]Path)
}

// New creates a view over store. Recomputes run through sched.
func New(store *graph.Store, sched Scheduler, opts ...Option) *View {
	v := &View{
		store:    store,
		layout:   NewLayout(),
		sched:    sched,
		geometry: CardGeometry{},
		measured: make(map[string]Point),
		drags:    make(map[int]*drag),
	}
	for _, o := range opts {
		o(v)
	}
	v.resetRegistry()
	return v
}

func (v *View) resetRegistry() {
	v.cards = make(map[string]*Card)
	v.order = nil
	v.inputs = make(map[graph.FieldRef]bool)
	v.outputs = make(map[OutputRef]bool)
}

// Layout returns the position map.
func (v *View) Layout() *Layout { return v.layout }

// Selection returns the selected output port, if any.
func (v *View) Selection() (OutputRef, bool) {
	if v.selection == nil {
		return OutputRef{}, false
	}
	return *v.selection, true
}

// Recomputes returns how many connection recomputes have run.
func (v *View) Recomputes() int { return v.recomputes }

// Pending reports whether a recompute is scheduled and has not run.
func (v *View) Pending() bool { return v.pending }

// Render rebuilds every card from the store, assigns default positions to
// nodes that have none, records the rendered ports and schedules a
// connection recompute. The returned scene carries paths computed from the
// new render.
func (v *View) Render() Scene {
	order := v.store.Order()
	v.layout.Assign(order)
	v.resetRegistry()
	v.order = order

	for _, id := range order {
		n, ok := v.store.Node(id)
		if !ok {
			continue
		}
		def, _ := v.store.Catalog().Lookup(n.ClassType)
		v.cards[id] = v.buildCard(n, def)
	}

	v.computePaths()
	v.ScheduleRecompute()
	return v.Scene()
}

func (v *View) buildCard(n *graph.Node, def *catalog.Definition) *Card {
	pos, _ := v.layout.Position(n.ID)
	card := &Card{ID: n.ID, Position: pos, Subtitle: "ID " + n.ID}

	switch {
	case def != nil && def.DisplayName != "":
		card.Title = def.DisplayName
	case n.ClassType != "":
		card.Title = n.ClassType
	default:
		card.Title = "Node"
	}
	if def == nil {
		card.Size = v.geometry.Size(card)
		return card
	}
	if def.Category != "" {
		card.Subtitle += " · " + def.Category
	}

	for _, g := range []catalog.Group{catalog.Required, catalog.Optional} {
		for _, f := range def.Fields(g) {
			port := InputPort{Field: f.Name, Label: f.Name, Optional: g == catalog.Optional}
			if port.Optional {
				port.Label += " (optional)"
			}
			card.Inputs = append(card.Inputs, port)
			v.inputs[graph.FieldRef{Node: n.ID, Field: f.Name}] = true
		}
	}
	for i, o := range def.Outputs {
		name := o.Name
		if name == "" {
			name = fmt.Sprintf("Output %d", i+1)
		}
		card.Outputs = append(card.Outputs, OutputPort{
			Index: i, Name: name, Type: o.Type, IsList: o.IsList, Tooltip: o.Tooltip,
		})
		v.outputs[OutputRef{Node: n.ID, Index: i}] = true
	}
	card.Size = v.geometry.Size(card)
	return card
}

// Scene returns the last render with the current paths, positions,
// selection and link flags.
func (v *View) Scene() Scene {
	linkedIn := make(map[graph.FieldRef]bool)
	linkedOut := make(map[OutputRef]bool)
	for _, p := range v.paths {
		linkedIn[p.To] = true
		linkedOut[p.From] = true
	}
	dragging := make(map[string]bool, len(v.drags))
	for _, d := range v.drags {
		dragging[d.node] = true
	}

	s := Scene{
		Cards:    make([]Card, 0, len(v.order)),
		Paths:    append([]Path(nil), v.paths...),
		Viewport: v.viewport,
		Empty:    len(v.order) == 0,
	}
	if v.selection != nil {
		sel := *v.selection
		s.Selection = &sel
	}

	extent := Point{}
	for _, id := range v.order {
		c, ok := v.cards[id]
		if !ok {
			continue
		}
		card := *c
		card.Dragging = dragging[id]
		if pos, ok := v.layout.Position(id); ok {
			card.Position = pos
		}
		card.Inputs = append([]InputPort(nil), c.Inputs...)
		for i := range card.Inputs {
			card.Inputs[i].Linked = linkedIn[graph.FieldRef{Node: id, Field: card.Inputs[i].Field}]
		}
		card.Outputs = append([]OutputPort(nil), c.Outputs...)
		for i := range card.Outputs {
			ref := OutputRef{Node: id, Index: card.Outputs[i].Index}
			card.Outputs[i].Linked = linkedOut[ref]
			card.Outputs[i].Selected = v.selection != nil && *v.selection == ref
		}
		extent.X = math.Max(extent.X, card.Position.X+card.Size.X)
		extent.Y = math.Max(extent.Y, card.Position.Y+card.Size.Y)
		s.Cards = append(s.Cards, card)
	}
	s.Canvas = Point{
		X: math.Max(extent.X, v.viewport.Width),
		Y: math.Max(extent.Y, v.viewport.Height),
	}
	return s
}

// Paths returns the connections drawn by the last recompute.
func (v *View) Paths() []Path { return append([]Path(nil), v.paths...) }

// ScheduleRecompute queues one connection recompute for the next frame.
// Calls made while one is already pending are absorbed by it.
func (v *View) ScheduleRecompute() {
	if v.pending {
		return
	}
	v.pending = true
	v.sched.Schedule(func() {
		v.pending = false
		v.Recompute()
	})
}

// Recompute redraws every connection from current geometry.
func (v *View) Recompute() {
	v.computePaths()
	v.recomputes++
	if v.onRecompute != nil {
		v.onRecompute(v.Paths())
	}
}

// computePaths draws one path per Connection whose output and input ports
// are both in the current render. Connections to ports that were not
// rendered are tolerated and simply not drawn.
func (v *View) computePaths() {
	geom := measuredGeometry{base: v.geometry, rects: v.measured}
	var paths []Path
	for _, link := range v.store.Connections() {
		from := OutputRef{Node: link.Source.Source, Index: link.Source.Index}
		if !v.outputs[from] || !v.inputs[link.Target] {
			continue
		}
		src, dst := v.cards[from.Node], v.cards[link.Target.Node]
		start, ok1 := v.portCenter(src, func(c *Card) (Point, bool) { return geom.OutputOffset(c, from.Index) })
		end, ok2 := v.portCenter(dst, func(c *Card) (Point, bool) { return geom.InputOffset(c, link.Target.Field) })
		if !ok1 || !ok2 {
			continue
		}
		paths = append(paths, Path{From: from, To: link.Target, Start: start, End: end, D: CurvePath(start, end)})
	}
	v.paths = paths
}

func (v *View) portCenter(card *Card, offset func(*Card) (Point, bool)) (Point, bool) {
	if card == nil {
		return Point{}, false
	}
	off, ok := offset(card)
	if !ok {
		return Point{}, false
	}
	pos, ok := v.layout.Position(card.ID)
	if !ok {
		pos = card.Position
	}
	return pos.Add(off), true
}

// ClickOutput toggles the selection of an output port. Clicking the selected
// port again clears the selection. It reports whether the port is selected
// afterwards.
func (v *View) ClickOutput(node string, index int) (bool, error) {
	if !v.outputExists(node, index) {
		return false, fmt.Errorf("%w: output %d of node %s", ErrNoPort, index, node)
	}
	ref := OutputRef{Node: node, Index: index}
	if v.selection != nil && *v.selection == ref {
		v.selection = nil
		v.ScheduleRecompute()
		return false, nil
	}
	v.selection = &ref
	v.ScheduleRecompute()
	return true, nil
}

// ClickResult describes what an input click did.
type ClickResult struct {
	Connected    bool      `json:"connected,omitempty"`
	Disconnected bool      `json:"disconnected,omitempty"`
	From         OutputRef `json:"from"`
}

// ClickInput completes or undoes a connection at an input port. With an
// output selected, the field is connected to it (replacing any previous
// value) and the selection cleared. With nothing selected, an existing
// Connection in the field is removed; other values are left alone.
func (v *View) ClickInput(node, field string) (ClickResult, error) {
	if !v.inputExists(node, field) {
		return ClickResult{}, fmt.Errorf("%w: input %s of node %s", ErrNoPort, field, node)
	}
	if v.selection != nil {
		from := *v.selection
		v.store.Connect(node, field, from.Node, from.Index)
		v.selection = nil
		v.Render()
		return ClickResult{Connected: true, From: from}, nil
	}

	n, _ := v.store.Node(node)
	cur, _ := n.Inputs.Get(field)
	conn, isConn := cur.(graph.Connection)
	if !isConn || !v.store.DisconnectField(node, field) {
		return ClickResult{}, nil
	}
	v.Render()
	return ClickResult{Disconnected: true, From: OutputRef{Node: conn.Source, Index: conn.Index}}, nil
}

// ClearSelection drops the selected output and reports whether there was
// one.
func (v *View) ClearSelection() bool {
	if v.selection == nil {
		return false
	}
	v.selection = nil
	v.ScheduleRecompute()
	return true
}

func (v *View) outputExists(node string, index int) bool {
	n, ok := v.store.Node(node)
	if !ok {
		return false
	}
	def, ok := v.store.Catalog().Lookup(n.ClassType)
	return ok && index >= 0 && index < len(def.Outputs)
}

func (v *View) inputExists(node, field string) bool {
	n, ok := v.store.Node(node)
	if !ok {
		return false
	}
	def, ok := v.store.Catalog().Lookup(n.ClassType)
	if !ok {
		return false
	}
	_, _, ok = def.Field(field)
	return ok
}

// PointerDown starts dragging a node's card. A pointer already dragging the
// same node is replaced.
func (v *View) PointerDown(node string, pointer int, x, y float64) error {
	if _, ok := v.store.Node(node); !ok {
		return fmt.Errorf("%w: %s", graph.ErrNodeNotFound, node)
	}
	for id, d := range v.drags {
		if d.node == node && id != pointer {
			delete(v.drags, id)
		}
	}
	origin, ok := v.layout.Position(node)
	if !ok {
		origin = Point{}
	}
	v.drags[pointer] = &drag{node: node, start: Point{X: x, Y: y}, origin: origin}
	return nil
}

// PointerMove moves the card dragged by pointer so that it follows the
// pointer's offset from where the drag started. It returns the dragged node
// and its new position; ok is false for a pointer that is not dragging.
func (v *View) PointerMove(pointer int, x, y float64) (node string, pos Point, ok bool) {
	d, ok := v.drags[pointer]
	if !ok {
		return "", Point{}, false
	}
	pos = Point{X: d.origin.X + x - d.start.X, Y: d.origin.Y + y - d.start.Y}
	v.layout.Set(d.node, pos)
	v.ScheduleRecompute()
	return d.node, pos, true
}

// PointerUp ends a drag.
func (v *View) PointerUp(pointer int) (string, bool) { return v.endDrag(pointer) }

// PointerCancel ends a drag the same way PointerUp does; the card stays
// where it was last moved.
func (v *View) PointerCancel(pointer int) (string, bool) { return v.endDrag(pointer) }

func (v *View) endDrag(pointer int) (string, bool) {
	d, ok := v.drags[pointer]
	if !ok {
		return "", false
	}
	delete(v.drags, pointer)
	v.ScheduleRecompute()
	return d.node, true
}

// Scroll records the canvas scroll offset.
func (v *View) Scroll(x, y float64) {
	v.viewport.ScrollX, v.viewport.ScrollY = x, y
	v.ScheduleRecompute()
}

// Resize records the visible canvas size.
func (v *View) Resize(width, height float64) {
	v.viewport.Width, v.viewport.Height = width, height
	v.ScheduleRecompute()
}

// ReportPorts stores measured port rectangles. Each call replaces earlier
// measurements of the nodes it mentions.
func (v *View) ReportPorts(rects []PortRect) {
	nodes := make(map[string]bool)
	for _, r := range rects {
		nodes[r.Node] = true
	}
	for node := range nodes {
		v.dropMeasured(node)
	}
	for _, r := range rects {
		v.measured[r.key()] = r.Center()
	}
	v.ScheduleRecompute()
}

func (v *View) dropMeasured(node string) {
	for k := range v.measured {
		if len(k) > len(node) && k[:len(node)] == node && k[len(node)] == 0 {
			delete(v.measured, k)
		}
	}
}

// ResetLayout discards every position, reassigns defaults, clears the
// selection and renders.
func (v *View) ResetLayout() Scene {
	v.layout.Clear()
	v.layout.Assign(v.store.Order())
	v.drags = make(map[int]*drag)
	v.selection = nil
	return v.Render()
}

// Reset clears all view state for a freshly loaded graph.
func (v *View) Reset() Scene {
	clear(v.measured)
	return v.ResetLayout()
}

// Forget drops a removed node's position, drags, measurements and
// selection.
func (v *View) Forget(node string) {
	v.layout.Delete(node)
	for id, d := range v.drags {
		if d.node == node {
			delete(v.drags, id)
		}
	}
	v.dropMeasured(node)
	if v.selection != nil && v.selection.Node == node {
		v.selection = nil
	}
}
