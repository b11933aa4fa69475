package main

import (
	"errors"
	"math"
	"math/rand"
	"reflect"
	"testing"
)

func testConfig() Config {
	return Config{
		Boundary:        BoundingBox{MinX: -1, MinY: -1, MaxX: 1, MaxY: 1},
		StepLength:      0.0003,
		ProximityRadius: 0.0002,
		MoveCeiling:     150,
		HeadingQuantum:  10,
	}
}

func newTestSimulator(t *testing.T, obstacles []Polygon) *Simulator {
	t.Helper()
	sim, err := NewSimulator(testConfig(), obstacles, nil)
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}
	return sim
}

// checkTrace asserts the properties every flight must hold regardless of
// outcome.
func checkTrace(t *testing.T, sim *Simulator, result *FlightResult) {
	t.Helper()
	cfg := sim.Config()

	if len(result.Trace) > cfg.MoveCeiling {
		t.Errorf("trace has %d moves, ceiling is %d", len(result.Trace), cfg.MoveCeiling)
	}
	if result.Final.Moves != len(result.Trace) {
		t.Errorf("Final.Moves = %d, trace has %d", result.Final.Moves, len(result.Trace))
	}

	prev := result.Launch
	prevHeading := noHeading
	for i, m := range result.Trace {
		if m.Index != i+1 {
			t.Errorf("move %d has index %d", i, m.Index)
		}
		if m.From != prev {
			t.Errorf("move %d starts at %v, previous ended at %v", m.Index, m.From, prev)
		}
		if m.Heading%cfg.HeadingQuantum != 0 || m.Heading < 0 || m.Heading >= 360 {
			t.Errorf("move %d has unquantized heading %d", m.Index, m.Heading)
		}
		if prevHeading != noHeading && m.Heading == (prevHeading+180)%360 {
			t.Errorf("move %d reverses heading %d", m.Index, prevHeading)
		}
		if d := m.From.Distance(m.To); math.Abs(d-cfg.StepLength) > 1e-12 {
			t.Errorf("move %d has length %v", m.Index, d)
		}
		if !cfg.Boundary.Contains(m.To) {
			t.Errorf("move %d leaves the boundary at %v", m.Index, m.To)
		}
		if SegmentIntersectsObstacles(m.From, m.To, sim.Obstacles()) {
			t.Errorf("move %d crosses a no-fly zone", m.Index)
		}
		prev = m.To
		prevHeading = m.Heading
	}
	if result.Final.Position != prev {
		t.Errorf("final position %v, last move ended at %v", result.Final.Position, prev)
	}

	// Every visit was read at the end of the move tagged with its sensor, and
	// every tagged move belongs to a visit.
	seen := make(map[string]bool)
	for _, v := range result.Visits {
		if seen[v.ID] {
			t.Errorf("sensor %s visited twice", v.ID)
		}
		seen[v.ID] = true
		if v.Move < 1 || v.Move > len(result.Trace) {
			t.Errorf("sensor %s read on move %d", v.ID, v.Move)
			continue
		}
		m := result.Trace[v.Move-1]
		if m.SensorID != v.ID {
			t.Errorf("sensor %s read on move %d tagged %q", v.ID, v.Move, m.SensorID)
		}
		if d := m.To.Distance(v.Position); d > cfg.ProximityRadius {
			t.Errorf("sensor %s read from %v away", v.ID, d)
		}
	}
	for _, m := range result.Trace {
		if m.SensorID != "" && !seen[m.SensorID] {
			t.Errorf("move %d tagged %s without a visit", m.Index, m.SensorID)
		}
	}
}

func TestQuantizeHeading(t *testing.T) {
	deg := func(d float64) Point {
		r := d * math.Pi / 180
		return Point{math.Cos(r), math.Sin(r)}
	}
	tests := []struct {
		to   Point
		want int
	}{
		{Point{1, 0}, 0},
		{Point{0, 1}, 90},
		{Point{-1, 0}, 180},
		{Point{0, -1}, 270},
		{deg(44), 40},
		{deg(46), 50},
		{deg(-1), 0},
		{deg(-6), 350},
		{deg(176), 180},
	}
	for _, tt := range tests {
		if got := quantizeHeading(Point{0, 0}, tt.to, 10); got != tt.want {
			t.Errorf("quantizeHeading(%v) = %d, want %d", tt.to, got, tt.want)
		}
	}
	if got := quantizeHeading(Point{0, 0}, deg(50), 45); got != 45 {
		t.Errorf("quantum 45: got %d, want 45", got)
	}
}

func TestNormalizeHeading(t *testing.T) {
	for in, want := range map[int]int{0: 0, 360: 0, 370: 10, -10: 350, -370: 350, 540: 180} {
		if got := normalizeHeading(in); got != want {
			t.Errorf("normalizeHeading(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestNewSimulatorRejectsBadInput(t *testing.T) {
	cfg := testConfig()
	cfg.HeadingQuantum = 7
	if _, err := NewSimulator(cfg, nil, nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}

	bad := []Polygon{{Vertices: []Point{{0, 0}}}}
	if _, err := NewSimulator(testConfig(), bad, nil); !errors.Is(err, ErrMalformedObstacle) {
		t.Errorf("expected ErrMalformedObstacle, got %v", err)
	}
}

func TestFlyLaunchOutsideBoundary(t *testing.T) {
	sim := newTestSimulator(t, nil)
	_, err := sim.Fly(Point{2, 0}, nil, 1)
	if !errors.Is(err, ErrLaunchOutsideBoundary) {
		t.Fatalf("expected ErrLaunchOutsideBoundary, got %v", err)
	}
}

func TestFlyEmptyTour(t *testing.T) {
	sim := newTestSimulator(t, nil)
	result, err := sim.Fly(Point{0, 0}, []Target{}, 1)
	if err != nil {
		t.Fatal(err)
	}
	checkTrace(t, sim, result)

	// Only the return leg runs, and it steps at least once even though the
	// drone starts at home.
	if len(result.Trace) == 0 || result.Trace[0].Heading != 0 {
		t.Fatalf("trace = %+v, want a first move due east", result.Trace)
	}
	if len(result.Visits) != 0 {
		t.Errorf("empty tour recorded visits %+v", result.Visits)
	}
	if len(result.Legs) != 1 || !result.Legs[0].Return || result.Legs[0].Moves != len(result.Trace) {
		t.Errorf("legs = %+v, want a single return leg", result.Legs)
	}
	if result.Outcome == OutcomeNoLegalHeading {
		t.Error("open sky should always have a legal heading")
	}
	if result.ID == "" {
		t.Error("flight has no ID")
	}
}

func TestFlyTargetWithinRadiusAtLaunch(t *testing.T) {
	sim := newTestSimulator(t, nil)
	tour := []Target{{ID: "here", Position: Point{0.00015, 0}}}
	result, err := sim.Fly(Point{0, 0}, tour, 1)
	if err != nil {
		t.Fatal(err)
	}
	checkTrace(t, sim, result)

	// The sensor is already in range at launch but is read only after the
	// first committed move.
	if len(result.Trace) == 0 {
		t.Fatal("drone never moved")
	}
	if first := result.Trace[0]; first.Heading != 0 || first.SensorID != "here" {
		t.Errorf("first move = %+v", first)
	}
	if len(result.Visits) != 1 || result.Visits[0].ID != "here" || result.Visits[0].Move != 1 {
		t.Errorf("visits = %+v", result.Visits)
	}
	if len(result.Legs) < 1 || result.Legs[0].State != LegArrived || result.Legs[0].Moves != 1 {
		t.Errorf("legs = %+v", result.Legs)
	}
}

func TestFlyReachesTargetInOneMove(t *testing.T) {
	sim := newTestSimulator(t, nil)
	tour := []Target{{ID: "A", Position: Point{0.00029, 0}, Reading: "42", Battery: 90}}
	result, err := sim.Fly(Point{0, 0}, tour, 5678)
	if err != nil {
		t.Fatal(err)
	}
	checkTrace(t, sim, result)

	if len(result.Trace) < 2 {
		t.Fatalf("expected an outbound and a return move, got %d", len(result.Trace))
	}
	first := result.Trace[0]
	if first.Index != 1 || first.Heading != 0 || first.SensorID != "A" {
		t.Errorf("first move = %+v", first)
	}
	if !result.Visited("A") || result.Visits[0].Reading != "42" || result.Visits[0].Battery != 90 {
		t.Errorf("visit = %+v", result.Visits)
	}
	// Heading straight home would reverse the first move.
	if result.Trace[1].Heading == 180 {
		t.Error("return move reversed the previous heading")
	}
	if result.Outcome == OutcomeNoLegalHeading {
		t.Error("open sky should always have a legal heading")
	}
}

func TestRepairSkipsBothReversals(t *testing.T) {
	sim := newTestSimulator(t, nil)
	// Slightly north of due west, so 170 beats 190 and 180 beats both.
	goal := Point{-0.001, 0.00001}

	tests := []struct {
		name     string
		previous int
		want     int
	}{
		{"reverse of rejected", noHeading, 170},
		{"reverse of previous too", 350, 190},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &flight{
				sim:    sim,
				rng:    rand.New(rand.NewSource(1)),
				drone:  Drone{Heading: tt.previous},
				result: &FlightResult{},
			}
			heading, next, ok := f.repair(0, goal)
			if !ok {
				t.Fatal("repair found no heading in open sky")
			}
			if heading != tt.want {
				t.Errorf("repair(0) = %d, want %d", heading, tt.want)
			}
			if next != f.project(heading) {
				t.Errorf("next = %v, want the projection of %d", next, heading)
			}
		})
	}
}

func TestFlyDeterministicForSeed(t *testing.T) {
	sim := newTestSimulator(t, []Polygon{square(0.001, -0.0005, 0.0015, 0.0005)})
	tour := []Target{
		{ID: "A", Position: Point{0.00029, 0}},
		{ID: "B", Position: Point{0.003, 0}},
	}

	a, err := sim.Fly(Point{0, 0}, tour, 42)
	if err != nil {
		t.Fatal(err)
	}
	b, err := sim.Fly(Point{0, 0}, tour, 42)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a.Trace, b.Trace) || a.Outcome != b.Outcome {
		t.Error("same seed produced different flights")
	}
	if a.ID == b.ID {
		t.Error("flights share an ID")
	}
}

func TestFlyAroundObstacle(t *testing.T) {
	sim := newTestSimulator(t, []Polygon{square(0.001, -0.0005, 0.0015, 0.0005)})
	tour := []Target{{ID: "B", Position: Point{0.003, 0}}}

	result, err := sim.Fly(Point{0, 0}, tour, 1)
	if err != nil {
		t.Fatal(err)
	}
	checkTrace(t, sim, result)

	if result.Outcome == OutcomeNoLegalHeading {
		t.Fatalf("flight blocked at %v", result.Final.Position)
	}
	detoured := false
	for _, m := range result.Trace {
		if m.Heading != 0 {
			detoured = true
			break
		}
	}
	if !detoured {
		t.Error("expected the flight to leave the direct heading")
	}
}

func TestFlyExhaustsMoveCeiling(t *testing.T) {
	sim := newTestSimulator(t, nil)
	tour := []Target{{ID: "far", Position: Point{0.1, 0}}}

	result, err := sim.Fly(Point{0, 0}, tour, 1)
	if err != nil {
		t.Fatal(err)
	}
	checkTrace(t, sim, result)

	if result.Outcome != OutcomeExhausted || result.Completed() {
		t.Errorf("outcome = %s, want exhausted", result.Outcome)
	}
	if len(result.Trace) != 150 {
		t.Errorf("trace has %d moves, want 150", len(result.Trace))
	}
	if len(result.Visits) != 0 {
		t.Errorf("unexpected visits %+v", result.Visits)
	}
	if len(result.Legs) != 1 || result.Legs[0].State != LegExhausted || result.Legs[0].Moves != 150 {
		t.Errorf("legs = %+v", result.Legs)
	}
	for _, m := range result.Trace {
		if m.Heading != 0 {
			t.Fatalf("move %d turned to %d in open sky", m.Index, m.Heading)
		}
	}
}

func TestFlyNoLegalHeading(t *testing.T) {
	// A cage smaller than one step around the launch point.
	sim := newTestSimulator(t, []Polygon{square(-0.0001, -0.0001, 0.0001, 0.0001)})
	tour := []Target{{ID: "out", Position: Point{0.01, 0}}}

	result, err := sim.Fly(Point{0, 0}, tour, 1)
	if err != nil {
		t.Fatal(err)
	}
	if result.Outcome != OutcomeNoLegalHeading {
		t.Fatalf("outcome = %s, want no_legal_heading", result.Outcome)
	}
	if len(result.Trace) != 0 {
		t.Errorf("caged drone moved %d times", len(result.Trace))
	}
	if len(result.Legs) != 1 || result.Legs[0].State != LegBlocked {
		t.Errorf("legs = %+v", result.Legs)
	}
}

func TestFlyStaysInsideBoundary(t *testing.T) {
	cfg := testConfig()
	cfg.Boundary = BoundingBox{MinX: -0.0005, MinY: -0.01, MaxX: 0.0005, MaxY: 0.01}
	sim, err := NewSimulator(cfg, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	// The target lies outside the corridor, so the drone must keep
	// turning back from the edge until it runs out of moves.
	tour := []Target{{ID: "outside", Position: Point{0.01, 0}}}
	result, err := sim.Fly(Point{0, 0}, tour, 3)
	if err != nil {
		t.Fatal(err)
	}
	checkTrace(t, sim, result)
	if result.Visited("outside") {
		t.Error("visited a sensor outside the boundary")
	}
}

func TestSimulatorLegal(t *testing.T) {
	sim := newTestSimulator(t, []Polygon{square(0.5, -0.5, 0.6, 0.5)})
	tests := []struct {
		from, to Point
		want     bool
	}{
		{Point{0, 0}, Point{0.1, 0}, true},
		{Point{0, 0}, Point{1, 0}, false},       // lands on the boundary edge
		{Point{0.45, 0}, Point{0.55, 0}, false}, // crosses a no-fly zone edge
		{Point{0, 0.7}, Point{0.7, 0.7}, true},
	}
	for _, tt := range tests {
		if got := sim.Legal(tt.from, tt.to); got != tt.want {
			t.Errorf("Legal(%v, %v) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
