package main

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/google/uuid"
)

// noHeading seeds the heading history so the first move never counts as a
// reversal.
const noHeading = 360

// illegalScore marks a repair candidate that cannot be flown.
const illegalScore = -1.0

var ErrLaunchOutsideBoundary = errors.New("launch point outside flight boundary")

// Outcome is the terminal state of a whole flight.
type Outcome string

const (
	OutcomeCompleted      Outcome = "completed"
	OutcomeExhausted      Outcome = "exhausted"
	OutcomeNoLegalHeading Outcome = "no_legal_heading"
)

// LegState is the state of a single leg of the tour.
type LegState string

const (
	LegApproaching LegState = "approaching"
	LegArrived     LegState = "arrived"
	LegExhausted   LegState = "exhausted"
	LegBlocked     LegState = "blocked"
)

// Drone is the mutable state of one flight.
type Drone struct {
	Position Point `json:"position"`
	Heading  int   `json:"heading"`
	Moves    int   `json:"moves"`
	Launch   Point `json:"launch"`
}

// Move is one committed step.
type Move struct {
	Index    int    `json:"index"`
	From     Point  `json:"from"`
	Heading  int    `json:"heading"`
	To       Point  `json:"to"`
	SensorID string `json:"sensorId,omitempty"`
}

// Visit records a sensor read, in visitation order.
type Visit struct {
	Target
	Move int `json:"move"`
}

// Leg summarises the flight towards one tour entry. Return is set on the
// closing leg back to launch.
type Leg struct {
	TargetID string   `json:"targetId,omitempty"`
	Return   bool     `json:"return,omitempty"`
	State    LegState `json:"state"`
	Moves    int      `json:"moves"`
}

// FlightResult is everything a flight produces.
type FlightResult struct {
	ID      string   `json:"id"`
	Outcome Outcome  `json:"outcome"`
	Seed    int64    `json:"seed"`
	Launch  Point    `json:"launch"`
	Tour    []Target `json:"tour"`
	Visits  []Visit  `json:"visits"`
	Trace   []Move   `json:"trace"`
	Legs    []Leg    `json:"legs"`
	Final   Drone    `json:"final"`
}

// Completed reports whether every leg, including the return, arrived.
func (r *FlightResult) Completed() bool {
	return r.Outcome == OutcomeCompleted
}

// Visited reports whether the target with the given ID was read.
func (r *FlightResult) Visited(id string) bool {
	for _, v := range r.Visits {
		if v.ID == id {
			return true
		}
	}
	return false
}

// Simulator flies tours through a fixed set of obstacles.
type Simulator struct {
	cfg       Config
	obstacles []Polygon
	index     *ObstacleIndex
	log       *slog.Logger
}

// NewSimulator validates the config and obstacles and indexes the latter.
// A nil logger discards output.
func NewSimulator(cfg Config, obstacles []Polygon, logger *slog.Logger) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	closed, err := ValidateObstacles(obstacles)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Simulator{
		cfg:       cfg,
		obstacles: closed,
		index:     NewObstacleIndex(closed),
		log:       logger,
	}, nil
}

func (s *Simulator) Config() Config {
	return s.cfg
}

func (s *Simulator) Obstacles() []Polygon {
	return s.obstacles
}

// Legal reports whether the move from->to stays strictly inside the boundary
// and clear of every obstacle edge.
func (s *Simulator) Legal(from, to Point) bool {
	return s.cfg.Boundary.Contains(to) && !s.index.SegmentBlocked(from, to)
}

// Fly visits the tour in order, then returns to launch. Running out of moves
// or headings is reported through the result's Outcome, not as an error.
func (s *Simulator) Fly(launch Point, tour []Target, seed int64) (*FlightResult, error) {
	if !s.cfg.Boundary.Contains(launch) {
		return nil, fmt.Errorf("%w: (%.6f, %.6f)", ErrLaunchOutsideBoundary, launch.X, launch.Y)
	}

	f := &flight{
		sim: s,
		rng: rand.New(rand.NewSource(seed)),
		drone: Drone{
			Position: launch,
			Heading:  noHeading,
			Launch:   launch,
		},
		result: &FlightResult{
			ID:     uuid.NewString(),
			Seed:   seed,
			Launch: launch,
			Tour:   tour,
			Visits: []Visit{},
			Trace:  make([]Move, 0, min(s.cfg.MoveCeiling, DefaultMoveCeiling)),
		},
	}
	log := s.log.With(slog.String("flight", f.result.ID))

	for _, t := range tour {
		if !s.cfg.Boundary.Contains(t.Position) {
			log.Warn("sensor outside flight boundary", slog.String("sensor", t.ID))
		}
		for _, o := range s.obstacles {
			if IsPointInPolygon(t.Position, o) {
				log.Warn("sensor inside no-fly zone", slog.String("sensor", t.ID))
				break
			}
		}
	}

	f.result.Outcome = OutcomeCompleted
	for i := 0; i <= len(tour); i++ {
		leg := Leg{Return: i == len(tour)}
		var target *Target
		goal := launch
		if !leg.Return {
			target = &tour[i]
			goal = target.Position
			leg.TargetID = target.ID
		}

		start := f.drone.Moves
		leg.State = f.flyLeg(goal, target)
		leg.Moves = f.drone.Moves - start
		f.result.Legs = append(f.result.Legs, leg)

		log.Debug("leg finished",
			slog.String("sensor", leg.TargetID),
			slog.Bool("return", leg.Return),
			slog.String("state", string(leg.State)),
			slog.Int("moves", leg.Moves))

		if leg.State == LegExhausted {
			f.result.Outcome = OutcomeExhausted
			break
		}
		if leg.State == LegBlocked {
			f.result.Outcome = OutcomeNoLegalHeading
			break
		}
	}
	f.result.Final = f.drone

	log.Info("flight finished",
		slog.String("outcome", string(f.result.Outcome)),
		slog.Int("moves", f.drone.Moves),
		slog.Int("visited", len(f.result.Visits)),
		slog.Int("sensors", len(tour)))

	return f.result, nil
}

// flight carries the state of one Fly call: the drone, its random source and
// the growing result.
type flight struct {
	sim    *Simulator
	rng    *rand.Rand
	drone  Drone
	result *FlightResult
}

// flyLeg steps towards goal until a move ends within the proximity radius.
// Arrival is only checked after a step, so every leg makes at least one move.
// target is nil on the return leg, which records no visit.
func (f *flight) flyLeg(goal Point, target *Target) LegState {
	cfg := f.sim.cfg
	for f.drone.Moves < cfg.MoveCeiling {
		heading, next, ok := f.chooseHeading(goal)
		if !ok {
			f.sim.log.Warn("no legal heading",
				slog.String("flight", f.result.ID),
				slog.Int("move", f.drone.Moves),
				slog.Float64("lng", f.drone.Position.X),
				slog.Float64("lat", f.drone.Position.Y))
			return LegBlocked
		}

		move := Move{
			Index:   f.drone.Moves + 1,
			From:    f.drone.Position,
			Heading: heading,
			To:      next,
		}
		f.drone.Position = next
		f.drone.Heading = heading
		f.drone.Moves++

		arrived := next.Distance(goal) <= cfg.ProximityRadius
		if arrived && target != nil {
			move.SensorID = target.ID
			f.result.Visits = append(f.result.Visits, Visit{Target: *target, Move: move.Index})
		}
		f.result.Trace = append(f.result.Trace, move)
		if arrived {
			return LegArrived
		}
	}
	return LegExhausted
}

// chooseHeading returns the heading to fly and where it leads. The direct
// heading is tried first; a reversal of the previous move is escaped with a
// random offset, anything else falls back to the repair scan.
func (f *flight) chooseHeading(goal Point) (int, Point, bool) {
	from := f.drone.Position
	heading := quantizeHeading(from, goal, f.sim.cfg.HeadingQuantum)

	for attempt := 0; ; attempt++ {
		next := f.project(heading)
		legal := f.sim.Legal(from, next)
		reversal := f.isReversal(heading)
		if legal && !reversal {
			return heading, next, true
		}
		if legal && attempt == 0 {
			offset := f.sim.cfg.HeadingQuantum * (1 + f.rng.Intn(f.sim.cfg.headingCount()-1))
			f.sim.log.Debug("reversal escape",
				slog.String("flight", f.result.ID),
				slog.Int("heading", heading),
				slog.Int("offset", offset))
			heading = normalizeHeading(heading + offset)
			continue
		}
		return f.repair(heading, goal)
	}
}

type headingCandidate struct {
	heading int
	next    Point
	score   float64
}

// repair scans every other heading from the rejected one and picks the legal
// candidate that ends closest to goal, first in scan order on ties. Neither
// the reverse of the previous move nor the reverse of rejected is eligible.
func (f *flight) repair(rejected int, goal Point) (int, Point, bool) {
	q := f.sim.cfg.HeadingQuantum
	n := f.sim.cfg.headingCount()
	from := f.drone.Position
	opposite := normalizeHeading(rejected + 180)

	candidates := make([]headingCandidate, 0, n-1)
	for k := 1; k < n; k++ {
		h := normalizeHeading(rejected + k*q)
		next := f.project(h)
		score := illegalScore
		if h != opposite && !f.isReversal(h) && f.sim.Legal(from, next) {
			score = 1 / next.Distance(goal)
		}
		candidates = append(candidates, headingCandidate{heading: h, next: next, score: score})
	}

	best := -1
	for i, c := range candidates {
		if c.score == illegalScore {
			continue
		}
		if best < 0 || c.score > candidates[best].score {
			best = i
		}
	}
	if best < 0 {
		return 0, Point{}, false
	}

	c := candidates[best]
	f.sim.log.Debug("heading repaired",
		slog.String("flight", f.result.ID),
		slog.Int("rejected", rejected),
		slog.Int("heading", c.heading))
	return c.heading, c.next, true
}

func (f *flight) isReversal(heading int) bool {
	prev := f.drone.Heading
	return prev != noHeading && normalizeHeading(prev+180) == heading
}

func (f *flight) project(heading int) Point {
	rad := float64(heading) * math.Pi / 180
	step := f.sim.cfg.StepLength
	return Point{
		X: f.drone.Position.X + math.Cos(rad)*step,
		Y: f.drone.Position.Y + math.Sin(rad)*step,
	}
}

// quantizeHeading returns the bearing from -> to in degrees (0 = east,
// 90 = north), rounded half up to the nearest multiple of quantum.
func quantizeHeading(from, to Point, quantum int) int {
	deg := math.Atan2(to.Y-from.Y, to.X-from.X) * 180 / math.Pi
	q := float64(quantum)
	return normalizeHeading(int(math.Floor(deg/q+0.5)) * quantum)
}

func normalizeHeading(h int) int {
	return ((h % 360) + 360) % 360
}
