package collision

import "testing"

func square(centerLat, centerLon, half float64) Rectangle {
	return Rectangle{
		{Lat: centerLat + half, Lon: centerLon - half}, // roughly FL
		{Lat: centerLat + half, Lon: centerLon + half}, // FR
		{Lat: centerLat - half, Lon: centerLon + half}, // BR
		{Lat: centerLat - half, Lon: centerLon - half}, // BL
	}
}

func TestRectanglesIntersectOverlapping(t *testing.T) {
	r1 := square(0, 0, 1)
	r2 := square(0.5, 0.5, 1)
	if !rectanglesIntersect(r1, r2) {
		t.Error("expected overlapping rectangles to intersect")
	}
}

func TestRectanglesIntersectSeparate(t *testing.T) {
	r1 := square(0, 0, 1)
	r2 := square(10, 10, 1)
	if rectanglesIntersect(r1, r2) {
		t.Error("expected far-apart rectangles not to intersect")
	}
}

func TestRectanglesIntersectContainment(t *testing.T) {
	outer := square(0, 0, 5)
	inner := square(0, 0, 1)
	if !rectanglesIntersect(outer, inner) {
		t.Error("expected a fully contained rectangle to count as intersecting")
	}
}

func TestRectanglesIntersectTouchingEdge(t *testing.T) {
	r1 := square(0, 0, 1)
	r2 := square(0, 2, 1) // shares the edge at lon=1
	if !rectanglesIntersect(r1, r2) {
		t.Error("expected edge-touching rectangles to intersect")
	}
}

func TestPointInPolygon(t *testing.T) {
	poly := square(0, 0, 1)

	inside := WorldPoint{Lat: 0, Lon: 0}
	if !pointInPolygon(inside, poly) {
		t.Error("expected center point to be inside polygon")
	}

	outside := WorldPoint{Lat: 5, Lon: 5}
	if pointInPolygon(outside, poly) {
		t.Error("expected far point to be outside polygon")
	}
}

func TestSegmentsIntersectCrossing(t *testing.T) {
	p1 := WorldPoint{Lat: 0, Lon: -1}
	p2 := WorldPoint{Lat: 0, Lon: 1}
	p3 := WorldPoint{Lat: -1, Lon: 0}
	p4 := WorldPoint{Lat: 1, Lon: 0}
	if !segmentsIntersect(p1, p2, p3, p4) {
		t.Error("expected crossing segments to intersect")
	}
}

func TestSegmentsIntersectParallelNonOverlapping(t *testing.T) {
	p1 := WorldPoint{Lat: 0, Lon: 0}
	p2 := WorldPoint{Lat: 0, Lon: 1}
	p3 := WorldPoint{Lat: 1, Lon: 0}
	p4 := WorldPoint{Lat: 1, Lon: 1}
	if segmentsIntersect(p1, p2, p3, p4) {
		t.Error("expected parallel non-overlapping segments not to intersect")
	}
}
