package main

import (
	"errors"
	"fmt"
	"math"
)

// Point is a planar position. X carries longitude and Y latitude; distances
// are plain Euclidean in degree units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Polygon represents a no-fly zone as a closed ring of vertices
// (first == last).
type Polygon struct {
	Vertices []Point `json:"vertices"`
}

// BoundingBox is the axis-aligned flight zone.
type BoundingBox struct {
	MinX float64 `json:"minX"`
	MinY float64 `json:"minY"`
	MaxX float64 `json:"maxX"`
	MaxY float64 `json:"maxY"`
}

var ErrMalformedObstacle = errors.New("malformed obstacle")

// Distance calculates Euclidean distance between two points
func (p Point) Distance(other Point) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Contains reports whether p lies strictly inside the box. Points on the
// edge are outside.
func (b BoundingBox) Contains(p Point) bool {
	return b.MinY < p.Y && p.Y < b.MaxY && b.MinX < p.X && p.X < b.MaxX
}

func (b BoundingBox) Empty() bool {
	return !(b.MinX < b.MaxX && b.MinY < b.MaxY)
}

// LineSegment represents a line segment between two points
type LineSegment struct {
	P1, P2 Point
}

// DoSegmentsIntersect checks if two line segments intersect. Touching,
// shared endpoints and colinear overlap all count.
func DoSegmentsIntersect(seg1, seg2 LineSegment) bool {
	p1, p2 := seg1.P1, seg1.P2
	p3, p4 := seg2.P1, seg2.P2

	d1 := direction(p3, p4, p1)
	d2 := direction(p3, p4, p2)
	d3 := direction(p1, p2, p3)
	d4 := direction(p1, p2, p4)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}

	// Check for collinear cases
	if d1 == 0 && onSegment(p3, p4, p1) {
		return true
	}
	if d2 == 0 && onSegment(p3, p4, p2) {
		return true
	}
	if d3 == 0 && onSegment(p1, p2, p3) {
		return true
	}
	if d4 == 0 && onSegment(p1, p2, p4) {
		return true
	}

	return false
}

// direction calculates the cross product to determine orientation
func direction(p1, p2, p3 Point) float64 {
	return (p3.X-p1.X)*(p2.Y-p1.Y) - (p2.X-p1.X)*(p3.Y-p1.Y)
}

// onSegment checks if point q lies on segment pr
func onSegment(p, r, q Point) bool {
	return q.X <= math.Max(p.X, r.X) && q.X >= math.Min(p.X, r.X) &&
		q.Y <= math.Max(p.Y, r.Y) && q.Y >= math.Min(p.Y, r.Y)
}

// DoesSegmentIntersectPolygon checks if a line segment touches any edge of a
// closed ring.
func DoesSegmentIntersectPolygon(seg LineSegment, polygon Polygon) bool {
	for i := 0; i+1 < len(polygon.Vertices); i++ {
		edge := LineSegment{
			P1: polygon.Vertices[i],
			P2: polygon.Vertices[i+1],
		}
		if DoSegmentsIntersect(seg, edge) {
			return true
		}
	}
	return false
}

// SegmentIntersectsObstacles reports whether the move start->end touches any
// obstacle edge.
func SegmentIntersectsObstacles(start, end Point, obstacles []Polygon) bool {
	seg := LineSegment{P1: start, P2: end}
	for _, zone := range obstacles {
		if DoesSegmentIntersectPolygon(seg, zone) {
			return true
		}
	}
	return false
}

// IsPointInPolygon checks if a point is inside a polygon using ray casting
func IsPointInPolygon(point Point, polygon Polygon) bool {
	n := len(polygon.Vertices)
	if n < 3 {
		return false
	}

	count := 0
	for i := 0; i < n; i++ {
		v1 := polygon.Vertices[i]
		v2 := polygon.Vertices[(i+1)%n]

		// Check if the ray from point to the right intersects the edge
		if (v1.Y > point.Y) != (v2.Y > point.Y) {
			slope := (point.X-v1.X)*(v2.Y-v1.Y) - (v2.X-v1.X)*(point.Y-v1.Y)
			if v2.Y > v1.Y {
				if slope > 0 {
					count++
				}
			} else {
				if slope < 0 {
					count++
				}
			}
		}
	}

	return count%2 == 1
}

// ClosePolygon returns the ring with its first vertex repeated at the end,
// or an error wrapping ErrMalformedObstacle when fewer than two distinct
// vertices remain.
func ClosePolygon(polygon Polygon) (Polygon, error) {
	vs := polygon.Vertices
	if len(vs) > 1 && vs[0] == vs[len(vs)-1] {
		vs = vs[:len(vs)-1]
	}
	distinct := 0
	for i, v := range vs {
		if i == 0 || v != vs[0] {
			distinct++
		}
	}
	if distinct < 2 {
		return Polygon{}, fmt.Errorf("%w: need 2 distinct vertices, got %d", ErrMalformedObstacle, distinct)
	}

	closed := make([]Point, 0, len(vs)+1)
	closed = append(closed, vs...)
	closed = append(closed, vs[0])
	return Polygon{Vertices: closed}, nil
}

// ValidateObstacles closes every ring and rejects malformed ones.
func ValidateObstacles(obstacles []Polygon) ([]Polygon, error) {
	closed := make([]Polygon, 0, len(obstacles))
	for i, o := range obstacles {
		c, err := ClosePolygon(o)
		if err != nil {
			return nil, fmt.Errorf("obstacle %d: %w", i, err)
		}
		closed = append(closed, c)
	}
	return closed, nil
}

// getBBox calculates the bounding box of a polygon
func getBBox(poly Polygon) BoundingBox {
	if len(poly.Vertices) == 0 {
		return BoundingBox{}
	}

	bbox := BoundingBox{
		MinX: poly.Vertices[0].X,
		MinY: poly.Vertices[0].Y,
		MaxX: poly.Vertices[0].X,
		MaxY: poly.Vertices[0].Y,
	}

	for _, v := range poly.Vertices[1:] {
		bbox.MinX = math.Min(bbox.MinX, v.X)
		bbox.MinY = math.Min(bbox.MinY, v.Y)
		bbox.MaxX = math.Max(bbox.MaxX, v.X)
		bbox.MaxY = math.Max(bbox.MaxY, v.Y)
	}

	return bbox
}
