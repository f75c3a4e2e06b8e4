package scene

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/chazu/badplaner/pkg/kernel"
	"github.com/go-gl/mathgl/mgl64"
)

const eps = 1e-9

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func nearVec(a, b mgl64.Vec3) bool {
	return near(a[0], b[0]) && near(a[1], b[1]) && near(a[2], b[2])
}

func TestWallsEncloseRoom(t *testing.T) {
	dims := []struct{ w, d, h float64 }{
		{4, 3, 2.5},
		{1, 1, 1},
		{10.5, 2.25, 3.1},
		{0.3, 7, 2},
	}
	for _, dm := range dims {
		s := Build(Config{Width: dm.w, Depth: dm.d, Height: dm.h}, nil)
		walls := s.OfKind(KindWall)
		if len(walls) != 4 {
			t.Fatalf("%v: got %d walls, want 4", dm, len(walls))
		}
		want := map[string]mgl64.Vec3{
			"wall-north": {0, dm.h / 2, -dm.d / 2},
			"wall-south": {0, dm.h / 2, dm.d / 2},
			"wall-west":  {-dm.w / 2, dm.h / 2, 0},
			"wall-east":  {dm.w / 2, dm.h / 2, 0},
		}
		for _, w := range walls {
			pos, ok := want[w.Name]
			if !ok {
				t.Errorf("unexpected wall %q", w.Name)
				continue
			}
			if !nearVec(w.Position, pos) {
				t.Errorf("%v %s: position %v, want %v", dm, w.Name, w.Position, pos)
			}
			if plane := w.Geometry.(Plane); plane.Height != dm.h {
				t.Errorf("%v %s: height %v, want %v", dm, w.Name, plane.Height, dm.h)
			}
		}
	}
}

func TestWallNormalsFaceCenter(t *testing.T) {
	s := Build(Config{Width: 4, Depth: 3, Height: 2.5}, nil)
	for _, w := range s.OfKind(KindWall) {
		for _, tri := range w.WorldTriangles() {
			toCenter := mgl64.Vec3{0, 1.25, 0}.Sub(tri.V[0])
			if tri.Normal.Dot(toCenter) <= 0 {
				t.Errorf("%s normal %v does not face the center", w.Name, tri.Normal)
			}
		}
	}
}

func TestWallTrianglesSpanRoom(t *testing.T) {
	s := Build(Config{Width: 4, Depth: 3, Height: 2.5}, nil)
	east := s.Find("wall-east")
	for _, tri := range east.WorldTriangles() {
		for _, v := range tri.V {
			if !near(v[0], 2) {
				t.Errorf("east wall vertex x = %v, want 2", v[0])
			}
			if v[1] < -eps || v[1] > 2.5+eps {
				t.Errorf("east wall vertex y = %v outside [0, 2.5]", v[1])
			}
			if math.Abs(v[2]) > 1.5+eps {
				t.Errorf("east wall vertex z = %v outside [-1.5, 1.5]", v[2])
			}
		}
	}
}

func TestFloorFacesUp(t *testing.T) {
	s := Build(Config{Width: 4, Depth: 3, Height: 2.5}, nil)
	floors := s.OfKind(KindFloor)
	if len(floors) != 1 {
		t.Fatalf("got %d floors, want 1", len(floors))
	}
	for _, tri := range floors[0].WorldTriangles() {
		if !nearVec(tri.Normal, mgl64.Vec3{0, 1, 0}) {
			t.Errorf("floor normal %v, want +Y", tri.Normal)
		}
		for _, v := range tri.V {
			if !near(v[1], 0) || math.Abs(v[0]) > 2+eps || math.Abs(v[2]) > 1.5+eps {
				t.Errorf("floor vertex %v outside 4x3 at y=0", v)
			}
		}
	}
}

func TestGridToggleAddsOneNode(t *testing.T) {
	base := Config{Width: 4, Depth: 3, Height: 2.5}
	without := Build(base, nil)
	base.ShowGrid = true
	with := Build(base, nil)

	if without.Count(KindGrid) != 0 {
		t.Errorf("grid off: %d grid nodes", without.Count(KindGrid))
	}
	if with.Count(KindGrid) != 1 {
		t.Fatalf("grid on: %d grid nodes, want 1", with.Count(KindGrid))
	}
	if len(with.Nodes) != len(without.Nodes)+1 {
		t.Errorf("node count %d vs %d, want exactly one more", len(with.Nodes), len(without.Nodes))
	}
	for _, k := range []Kind{KindFloor, KindWall} {
		a, b := without.OfKind(k), with.OfKind(k)
		if len(a) != len(b) {
			t.Fatalf("%s count changed", k)
		}
		for i := range a {
			if a[i].Position != b[i].Position || a[i].Rotation != b[i].Rotation || a[i].Geometry != b[i].Geometry {
				t.Errorf("%s %q changed with grid toggle", k, a[i].Name)
			}
		}
	}

	grid := with.Find("grid")
	g := grid.Geometry.(Grid)
	if g.Size != 8 || g.Divisions != GridDivisions {
		t.Errorf("grid size %v divisions %d, want 8 and %d", g.Size, g.Divisions, GridDivisions)
	}
	if grid.Position[1] != GridElevation {
		t.Errorf("grid elevation %v, want %v", grid.Position[1], GridElevation)
	}
}

func TestGridLines(t *testing.T) {
	lines := Grid{Size: 8, Divisions: 16, CenterColor: GridCenterColor, LineColor: GridLineColor}.Lines()
	if len(lines) != 34 {
		t.Fatalf("got %d lines, want 34", len(lines))
	}
	center := 0
	for _, l := range lines {
		if l.Color == GridCenterColor {
			center++
			if !(near(l.A[0], l.B[0]) && near(l.A[0], 0)) && !(near(l.A[2], l.B[2]) && near(l.A[2], 0)) {
				t.Errorf("center-colored line %v-%v is off center", l.A, l.B)
			}
		}
	}
	if center != 2 {
		t.Errorf("got %d center lines, want 2", center)
	}
}

func TestDefaultScenario(t *testing.T) {
	s := Build(Config{Width: 4, Depth: 3, Height: 2.5, Mode: ViewOrbit, ShowGrid: true}, nil)
	counts := map[Kind]int{
		KindFloor:            1,
		KindWall:             4,
		KindGrid:             1,
		KindAmbientLight:     1,
		KindDirectionalLight: 1,
		KindFixture:          0,
	}
	for k, want := range counts {
		if got := s.Count(k); got != want {
			t.Errorf("%s count = %d, want %d", k, got, want)
		}
	}
	if s.Background != BackgroundColor {
		t.Errorf("background %v", s.Background)
	}
	if sun := s.Find("sun"); sun.Position != SunPosition || sun.Intensity != SunIntensity {
		t.Errorf("sun %v %v", sun.Position, sun.Intensity)
	}
}

func TestFixtureNode(t *testing.T) {
	mesh := &kernel.Mesh{
		Vertices: []float32{0, 0, 0, 1, 0, 0, 0, 1, 0},
		Normals:  []float32{0, 0, 1, 0, 0, 1, 0, 0, 1},
		Indices:  []uint32{0, 1, 2},
	}
	cfg := Config{Width: 4, Depth: 3, Height: 2.5, Fixture: Placement{Item: "Wand-WC", Size: mgl64.Vec3{1, 1, 1}}}

	s := Build(cfg, mesh)
	n := s.Find("fixture")
	if n == nil {
		t.Fatal("fixture node missing")
	}
	tris := n.WorldTriangles()
	if len(tris) != 1 || tris[0].V[1] != (mgl64.Vec3{1, 0, 0}) {
		t.Errorf("fixture triangles %v", tris)
	}

	if Build(cfg, nil).Find("fixture") != nil {
		t.Error("nil mesh should not add a fixture node")
	}
	cfg.Fixture = Placement{}
	if Build(cfg, mesh).Find("fixture") != nil {
		t.Error("zero placement should not add a fixture node")
	}
}

func TestSceneRemoveAndDispose(t *testing.T) {
	s := Build(Config{Width: 2, Depth: 2, Height: 2, ShowGrid: true}, nil)
	if !s.Remove("grid") {
		t.Fatal("Remove(grid) = false")
	}
	if s.Remove("grid") {
		t.Error("second Remove(grid) = true")
	}
	s.Dispose()
	if len(s.Nodes) != 0 {
		t.Errorf("Dispose left %d nodes", len(s.Nodes))
	}
}

func TestParseViewMode(t *testing.T) {
	tests := []struct {
		in   string
		want ViewMode
		err  bool
	}{
		{"Orbit", ViewOrbit, false},
		{"orbit", ViewOrbit, false},
		{"First-Person", ViewFirstPerson, false},
		{"firstperson", ViewFirstPerson, false},
		{"2D-Grundriss", ViewPlan, false},
		{"plan", ViewPlan, false},
		{"isometric", ViewOrbit, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseViewMode(tt.in)
			if tt.err {
				if !errors.Is(err, ErrUnknownViewMode) {
					t.Fatalf("err = %v, want ErrUnknownViewMode", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseViewMode(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestViewModeJSON(t *testing.T) {
	b, err := json.Marshal(struct{ Mode ViewMode }{ViewPlan})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"Mode":"2D-Grundriss"}` {
		t.Errorf("marshal = %s", b)
	}
	var back struct{ Mode ViewMode }
	if err := json.Unmarshal(b, &back); err != nil || back.Mode != ViewPlan {
		t.Errorf("unmarshal = %v, %v", back.Mode, err)
	}
}
