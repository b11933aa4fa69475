package main

import "math"

// Target is a sensor the drone must read. Reading and Battery are carried
// through the flight untouched.
type Target struct {
	ID       string  `json:"id"`
	Position Point   `json:"position"`
	Reading  string  `json:"reading"`
	Battery  float64 `json:"battery"`
}

// PlanTour orders targets by greedy nearest neighbour starting from launch.
// Exact ties go to the target that appears first in the input. The return
// to launch is not part of the tour.
func PlanTour(launch Point, targets []Target) []Target {
	remaining := make([]Target, len(targets))
	copy(remaining, targets)

	tour := make([]Target, 0, len(targets))
	from := launch
	for len(remaining) > 0 {
		idx, _ := nearestTarget(from, remaining)
		next := remaining[idx]
		tour = append(tour, next)
		remaining = append(remaining[:idx], remaining[idx+1:]...)
		from = next.Position
	}
	return tour
}

// nearestTarget finds the closest target to a given point, preferring the
// lowest index on ties.
func nearestTarget(point Point, targets []Target) (int, float64) {
	if len(targets) == 0 {
		return -1, math.MaxFloat64
	}

	nearestID := 0
	minDist := point.Distance(targets[0].Position)

	for i := 1; i < len(targets); i++ {
		dist := point.Distance(targets[i].Position)
		if dist < minDist {
			minDist = dist
			nearestID = i
		}
	}

	return nearestID, minDist
}

// TourLength is the planned straight-line length of the closed tour.
func TourLength(launch Point, tour []Target) float64 {
	total := 0.0
	from := launch
	for _, t := range tour {
		total += from.Distance(t.Position)
		from = t.Position
	}
	return total + from.Distance(launch)
}
