package pipeline

import (
	"errors"
	"testing"

	"github.com/alfredjeanlab/nodegraph/internal/catalog"
	"github.com/alfredjeanlab/nodegraph/internal/graph"
)

const testCatalog = `{
	"A": {"display_name": "Alpha", "category": "src", "output": ["X"]},
	"B": {
		"input": {
			"required": {"x": ["INT", {"default": 5}]},
			"optional": {"y": ["IMAGE"]}
		},
		"output": ["Y", "Z"],
		"output_name": ["first"]
	}
}`

type fixture struct {
	store *graph.Store
	sched *ManualScheduler
	view  *View
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	cat, err := catalog.Decode([]byte(testCatalog))
	if err != nil {
		t.Fatalf("catalog.Decode: %v", err)
	}
	store := graph.NewStore(cat)
	sched := &ManualScheduler{}
	return &fixture{store: store, sched: sched, view: New(store, sched, opts...)}
}

func (f *fixture) insert(t *testing.T, typ string) string {
	t.Helper()
	id, err := f.store.Insert(typ)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	return id
}

func cardByID(t *testing.T, s Scene, id string) Card {
	t.Helper()
	for _, c := range s.Cards {
		if c.ID == id {
			return c
		}
	}
	t.Fatalf("card %s not rendered", id)
	return Card{}
}

func TestDefaultPosition(t *testing.T) {
	want := []Point{{80, 80}, {80, 300}, {80, 520}, {400, 80}, {400, 300}}
	for i, w := range want {
		if got := DefaultPosition(i); got != w {
			t.Errorf("DefaultPosition(%d) = %v, want %v", i, got, w)
		}
	}
}

func TestRender_AssignsDefaultsInOrder(t *testing.T) {
	f := newFixture(t)
	for range 4 {
		f.insert(t, "A")
	}
	s := f.view.Render()
	want := []Point{{80, 80}, {80, 300}, {80, 520}, {400, 80}}
	for i, c := range s.Cards {
		if c.Position != want[i] {
			t.Errorf("card %s at %v, want %v", c.ID, c.Position, want[i])
		}
	}

	// Stored positions survive re-render.
	f.view.Layout().Set("2", Point{X: 5, Y: 6})
	if got := cardByID(t, f.view.Render(), "2").Position; got != (Point{X: 5, Y: 6}) {
		t.Errorf("position = %v", got)
	}
}

func TestRender_Cards(t *testing.T) {
	f := newFixture(t)
	a := f.insert(t, "A")
	b := f.insert(t, "B")
	p, _ := graph.ParsePayload(`{"1":{"class_type":"A"},"2":{"class_type":"B"},"3":{"class_type":"Mystery"},"4":{}}`)
	f.store.LoadFromPayload(p)

	s := f.view.Render()
	if len(s.Cards) != 4 || s.Empty {
		t.Fatalf("cards = %d", len(s.Cards))
	}

	ca := cardByID(t, s, a)
	if ca.Title != "Alpha" || ca.Subtitle != "ID 1 · src" || len(ca.Inputs) != 0 || len(ca.Outputs) != 1 {
		t.Errorf("A card = %+v", ca)
	}
	cb := cardByID(t, s, b)
	if cb.Title != "B" || cb.Subtitle != "ID 2" {
		t.Errorf("B title=%q subtitle=%q", cb.Title, cb.Subtitle)
	}
	if len(cb.Inputs) != 2 || cb.Inputs[0].Label != "x" || cb.Inputs[1].Label != "y (optional)" {
		t.Errorf("B inputs = %+v", cb.Inputs)
	}
	if cb.Outputs[0].Name != "first" || cb.Outputs[1].Name != "Output 2" {
		t.Errorf("B outputs = %+v", cb.Outputs)
	}
	if c := cardByID(t, s, "3"); c.Title != "Mystery" || len(c.Inputs)+len(c.Outputs) != 0 {
		t.Errorf("unknown type card = %+v", c)
	}
	if c := cardByID(t, s, "4"); c.Title != "Node" {
		t.Errorf("untyped card title = %q", c.Title)
	}

	empty := newFixture(t)
	if s := empty.view.Render(); !s.Empty || len(s.Cards) != 0 {
		t.Errorf("empty scene = %+v", s)
	}
}

func TestPaths_Geometry(t *testing.T) {
	f := newFixture(t)
	a := f.insert(t, "A")
	b := f.insert(t, "B")
	f.store.Connect(b, "x", a, 0)

	s := f.view.Render()
	if len(s.Paths) != 1 {
		t.Fatalf("paths = %+v", s.Paths)
	}
	p := s.Paths[0]
	if p.Start != (Point{X: 340, Y: 174}) || p.End != (Point{X: 80, Y: 394}) {
		t.Errorf("start=%v end=%v", p.Start, p.End)
	}
	if want := "M 340 174 C 470 174, -50 394, 80 394"; p.D != want {
		t.Errorf("D = %q, want %q", p.D, want)
	}
	if !cardByID(t, s, a).Outputs[0].Linked || !cardByID(t, s, b).Inputs[0].Linked {
		t.Error("both ends of a drawn connection are linked")
	}
	if cardByID(t, s, b).Inputs[1].Linked {
		t.Error("unconnected input marked linked")
	}
}

func TestPaths_DanglingConnectionsNotDrawn(t *testing.T) {
	f := newFixture(t)
	b := f.insert(t, "B")
	f.store.Connect(b, "x", "99", 0)
	f.store.SetValue(b, "y", graph.Connection{Source: b, Index: 7})

	s := f.view.Render()
	if len(s.Paths) != 0 {
		t.Errorf("paths = %+v", s.Paths)
	}
	if cardByID(t, s, b).Inputs[0].Linked {
		t.Error("dangling input marked linked")
	}
}

func TestCurvePath(t *testing.T) {
	for _, tc := range []struct {
		name       string
		start, end Point
		want       string
	}{
		{name: "Wide", start: Point{100, 50}, end: Point{300, 150}, want: "M 100 50 C 200 50, 200 150, 300 150"},
		{name: "Narrow", start: Point{0, 0}, end: Point{40, 0}, want: "M 0 0 C 60 0, -20 0, 40 0"},
		{name: "Backwards", start: Point{300, 10.5}, end: Point{100, 20}, want: "M 300 10.5 C 400 10.5, 0 20, 100 20"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := CurvePath(tc.start, tc.end); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestClickOutput_ReclickClearsSelection(t *testing.T) {
	f := newFixture(t)
	a := f.insert(t, "A")
	f.insert(t, "B")
	f.view.Render()
	before, _ := f.store.Serialize().MarshalJSON()

	if sel, err := f.view.ClickOutput(a, 0); err != nil || !sel {
		t.Fatalf("first click: sel=%v err=%v", sel, err)
	}
	if s := f.view.Scene(); s.Selection == nil || !cardByID(t, s, a).Outputs[0].Selected {
		t.Error("output should be selected")
	}
	if sel, err := f.view.ClickOutput(a, 0); err != nil || sel {
		t.Fatalf("second click: sel=%v err=%v", sel, err)
	}
	if _, ok := f.view.Selection(); ok {
		t.Error("selection should be empty")
	}
	after, _ := f.store.Serialize().MarshalJSON()
	if string(before) != string(after) {
		t.Errorf("graph changed: %s", after)
	}
}

func TestClickOutput_SwitchesSelection(t *testing.T) {
	f := newFixture(t)
	f.insert(t, "B")
	f.view.ClickOutput("1", 0)
	f.view.ClickOutput("1", 1)
	if sel, ok := f.view.Selection(); !ok || sel.Index != 1 {
		t.Errorf("selection = %+v", sel)
	}
	if _, err := f.view.ClickOutput("1", 2); !errors.Is(err, ErrNoPort) {
		t.Errorf("err = %v, want ErrNoPort", err)
	}
	if _, err := f.view.ClickOutput("9", 0); !errors.Is(err, ErrNoPort) {
		t.Errorf("err = %v, want ErrNoPort", err)
	}
}

func TestClickInput_Connects(t *testing.T) {
	f := newFixture(t)
	a := f.insert(t, "A")
	b := f.insert(t, "B")
	f.view.Render()

	f.view.ClickOutput(a, 0)
	res, err := f.view.ClickInput(b, "x")
	if err != nil {
		t.Fatalf("ClickInput: %v", err)
	}
	if !res.Connected || res.From != (OutputRef{Node: a, Index: 0}) {
		t.Errorf("result = %+v", res)
	}
	n, _ := f.store.Node(b)
	if v, _ := n.Inputs.Get("x"); v != (graph.Connection{Source: a, Index: 0}) {
		t.Errorf("x = %#v", v)
	}
	if _, ok := f.view.Selection(); ok {
		t.Error("selection should clear after connecting")
	}
	if len(f.view.Scene().Paths) != 1 {
		t.Error("scene should draw the new connection")
	}
}

func TestClickInput_Disconnects(t *testing.T) {
	f := newFixture(t)
	a := f.insert(t, "A")
	b := f.insert(t, "B")
	f.store.Connect(b, "y", a, 0)
	f.view.Render()

	// A literal is not a connection.
	if res, _ := f.view.ClickInput(b, "x"); res.Disconnected {
		t.Error("literal value was disconnected")
	}
	res, err := f.view.ClickInput(b, "y")
	if err != nil || !res.Disconnected {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	n, _ := f.store.Node(b)
	if _, ok := n.Inputs.Get("y"); ok {
		t.Error("y still set")
	}
	if v, _ := n.Inputs.Get("x"); v != graph.Number(5) {
		t.Errorf("x = %#v", v)
	}
	if len(f.view.Scene().Paths) != 0 {
		t.Error("path should be gone")
	}

	f.store.SetValue(b, "y", graph.Pair{a, "k"})
	if res, _ := f.view.ClickInput(b, "y"); res.Disconnected {
		t.Error("pairs are not removed by an input click")
	}
	if _, err := f.view.ClickInput(b, "nope"); !errors.Is(err, ErrNoPort) {
		t.Errorf("err = %v, want ErrNoPort", err)
	}
}

func TestRecompute_Coalesced(t *testing.T) {
	var hooked [][]Path
	f := newFixture(t, WithRecomputeHook(func(p []Path) { hooked = append(hooked, p) }))
	a := f.insert(t, "A")
	b := f.insert(t, "B")
	f.store.Connect(b, "x", a, 0)

	f.view.Render()
	f.view.Scroll(0, 40)
	f.view.Resize(1024, 768)
	f.view.PointerDown(a, 1, 0, 0)
	f.view.PointerMove(1, 10, 10)
	f.view.ClickOutput(a, 0)

	if n := f.sched.Pending(); n != 1 {
		t.Fatalf("pending callbacks = %d, want 1", n)
	}
	if f.sched.Flush() != 1 || f.view.Recomputes() != 1 {
		t.Errorf("recomputes = %d", f.view.Recomputes())
	}
	if f.view.Pending() {
		t.Error("pending flag should clear when the callback runs")
	}
	if len(hooked) != 1 || len(hooked[0]) != 1 || hooked[0][0].Start.X != 350 {
		t.Errorf("hook got %+v", hooked)
	}

	f.view.Scroll(0, 0)
	if f.sched.Pending() != 1 {
		t.Error("a new trigger after the frame schedules again")
	}
}

func TestDrag(t *testing.T) {
	f := newFixture(t)
	a := f.insert(t, "A")
	b := f.insert(t, "A")
	f.view.Render()

	if err := f.view.PointerDown(a, 1, 10, 10); err != nil {
		t.Fatalf("PointerDown: %v", err)
	}
	if err := f.view.PointerDown(b, 2, 0, 0); err != nil {
		t.Fatalf("PointerDown: %v", err)
	}
	if !cardByID(t, f.view.Scene(), a).Dragging {
		t.Error("card should be marked dragging")
	}

	node, pos, ok := f.view.PointerMove(1, 30, 50)
	if !ok || node != a || pos != (Point{X: 100, Y: 120}) {
		t.Errorf("move = %s %v %v", node, pos, ok)
	}
	// Independent drag on the other node.
	f.view.PointerMove(2, -5, 5)
	if p, _ := f.view.Layout().Position(b); p != (Point{X: 75, Y: 305}) {
		t.Errorf("b at %v", p)
	}

	if _, ok := f.view.PointerUp(1); !ok {
		t.Error("PointerUp = false")
	}
	if _, _, ok := f.view.PointerMove(1, 999, 999); ok {
		t.Error("move after up should be ignored")
	}
	if p, _ := f.view.Layout().Position(a); p != (Point{X: 100, Y: 120}) {
		t.Errorf("a at %v", p)
	}

	if _, ok := f.view.PointerCancel(2); !ok {
		t.Error("PointerCancel = false")
	}
	if err := f.view.PointerDown("9", 3, 0, 0); !errors.Is(err, graph.ErrNodeNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestDrag_SecondPointerOnSameNodeReplacesFirst(t *testing.T) {
	f := newFixture(t)
	a := f.insert(t, "A")
	f.view.Render()

	f.view.PointerDown(a, 1, 0, 0)
	f.view.PointerDown(a, 2, 100, 100)
	if _, _, ok := f.view.PointerMove(1, 50, 50); ok {
		t.Error("replaced pointer still drags")
	}
	if _, pos, ok := f.view.PointerMove(2, 110, 90); !ok || pos != (Point{X: 90, Y: 70}) {
		t.Errorf("pos = %v ok=%v", pos, ok)
	}
}

func TestReportPorts_OverridesGeometry(t *testing.T) {
	f := newFixture(t)
	a := f.insert(t, "A")
	b := f.insert(t, "B")
	f.store.Connect(b, "x", a, 0)
	f.view.Render()

	f.view.ReportPorts([]PortRect{
		{Node: a, Output: true, Index: 0, X: 200, Y: 40, Width: 10, Height: 10},
		{Node: b, Field: "x", X: -5, Y: 60, Width: 10, Height: 10},
	})
	f.sched.Flush()
	p := f.view.Paths()[0]
	if p.Start != (Point{X: 285, Y: 125}) || p.End != (Point{X: 80, Y: 365}) {
		t.Errorf("start=%v end=%v", p.Start, p.End)
	}

	// A later report for one node replaces that node's measurements only.
	f.view.ReportPorts([]PortRect{{Node: b, Field: "y", X: 0, Y: 0, Width: 2, Height: 2}})
	f.sched.Flush()
	p = f.view.Paths()[0]
	if p.Start != (Point{X: 285, Y: 125}) || p.End != (Point{X: 80, Y: 394}) {
		t.Errorf("after partial report start=%v end=%v", p.Start, p.End)
	}
}

func TestResetLayout(t *testing.T) {
	f := newFixture(t)
	a := f.insert(t, "A")
	f.insert(t, "A")
	f.view.Render()
	f.view.Layout().Set(a, Point{X: 999, Y: 999})
	f.view.ClickOutput(a, 0)
	f.view.PointerDown(a, 1, 0, 0)

	s := f.view.ResetLayout()
	if got := cardByID(t, s, a).Position; got != DefaultPosition(0) {
		t.Errorf("position = %v", got)
	}
	if s.Selection != nil {
		t.Error("selection should clear")
	}
	if _, _, ok := f.view.PointerMove(1, 5, 5); ok {
		t.Error("drags should end on reset")
	}
}

func TestForget(t *testing.T) {
	f := newFixture(t)
	a := f.insert(t, "A")
	b := f.insert(t, "A")
	f.view.Render()
	f.view.ClickOutput(a, 0)
	f.view.PointerDown(a, 1, 0, 0)

	f.store.Remove(a)
	f.view.Forget(a)
	if _, ok := f.view.Layout().Position(a); ok {
		t.Error("position kept")
	}
	if _, ok := f.view.Selection(); ok {
		t.Error("selection kept")
	}
	if _, _, ok := f.view.PointerMove(1, 1, 1); ok {
		t.Error("drag kept")
	}

	// The surviving node keeps its slot until the layout is reset.
	s := f.view.Render()
	if got := cardByID(t, s, b).Position; got != DefaultPosition(1) {
		t.Errorf("b at %v", got)
	}
}

func TestViewport(t *testing.T) {
	f := newFixture(t)
	f.insert(t, "A")
	f.view.Render()
	f.view.Scroll(12, 34)
	f.view.Resize(100, 900)

	s := f.view.Scene()
	if s.Viewport != (Viewport{ScrollX: 12, ScrollY: 34, Width: 100, Height: 900}) {
		t.Errorf("viewport = %+v", s.Viewport)
	}
	// Width follows the content, height the viewport.
	if s.Canvas != (Point{X: 340, Y: 900}) {
		t.Errorf("canvas = %+v", s.Canvas)
	}
}

func TestFrameLoop(t *testing.T) {
	loop := NewFrameLoop(0, nil)
	done := make(chan struct{})
	loop.Schedule(func() { close(done) })
	loop.frame()
	select {
	case <-done:
	default:
		t.Fatal("callback did not run on frame")
	}

	loop.Schedule(func() { panic("boom") })
	loop.frame()
}
