package main

import (
	"github.com/dhconnelly/rtreego"
)

// bboxPadding keeps rtreego rectangles valid for axis-aligned obstacles and
// moves, whose boxes would otherwise have a zero-length side.
const bboxPadding = 1e-9

// PolygonEntry wraps a polygon for R-tree storage
type PolygonEntry struct {
	Polygon Polygon
	BBox    rtreego.Rect
}

// Bounds implements rtreego.Spatial interface
func (p *PolygonEntry) Bounds() rtreego.Rect {
	return p.BBox
}

// ObstacleIndex answers segment-vs-obstacle queries, pruning with an R-tree
// before the exact edge test.
type ObstacleIndex struct {
	tree  *rtreego.Rtree
	count int
}

// NewObstacleIndex indexes closed obstacle rings.
func NewObstacleIndex(polygons []Polygon) *ObstacleIndex {
	tree := rtreego.NewTree(2, 25, 50) // 2D, min 25, max 50 entries per node

	count := 0
	for _, polygon := range polygons {
		bbox, err := calculateBoundingBox(polygon)
		if err == nil {
			tree.Insert(&PolygonEntry{
				Polygon: polygon,
				BBox:    bbox,
			})
			count++
		}
	}

	return &ObstacleIndex{tree: tree, count: count}
}

// Len returns the number of indexed obstacles.
func (si *ObstacleIndex) Len() int {
	return si.count
}

// QueryRegion returns polygons whose bounding box intersects the given one
func (si *ObstacleIndex) QueryRegion(minX, minY, maxX, maxY float64) []Polygon {
	bbox, err := paddedRect(BoundingBox{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY})
	if err != nil {
		return []Polygon{}
	}

	results := si.tree.SearchIntersect(bbox)
	polygons := make([]Polygon, 0, len(results))

	for _, item := range results {
		entry := item.(*PolygonEntry)
		polygons = append(polygons, entry.Polygon)
	}

	return polygons
}

// SegmentBlocked reports whether the move start->end touches any indexed
// obstacle.
func (si *ObstacleIndex) SegmentBlocked(start, end Point) bool {
	if si == nil || si.count == 0 {
		return false
	}
	minX, minY, maxX, maxY := GetRouteBoundingBox(start, end, 0)
	return SegmentIntersectsObstacles(start, end, si.QueryRegion(minX, minY, maxX, maxY))
}

// calculateBoundingBox computes the padded axis-aligned bounding box for a polygon
func calculateBoundingBox(polygon Polygon) (rtreego.Rect, error) {
	if len(polygon.Vertices) == 0 {
		return rtreego.Rect{}, ErrMalformedObstacle
	}
	return paddedRect(getBBox(polygon))
}

func paddedRect(b BoundingBox) (rtreego.Rect, error) {
	return rtreego.NewRect(
		rtreego.Point{b.MinX - bboxPadding, b.MinY - bboxPadding},
		[]float64{b.MaxX - b.MinX + 2*bboxPadding, b.MaxY - b.MinY + 2*bboxPadding},
	)
}

// GetRouteBoundingBox calculates the bounding box for a route with margin
func GetRouteBoundingBox(start, end Point, margin float64) (minX, minY, maxX, maxY float64) {
	minX = min(start.X, end.X) - margin
	maxX = max(start.X, end.X) + margin
	minY = min(start.Y, end.Y) - margin
	maxY = max(start.Y, end.Y) + margin
	return
}
