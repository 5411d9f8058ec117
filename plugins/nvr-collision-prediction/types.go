// Package collision implements the geometric/kinematic core of the
// road-surveillance collision-prediction system: homography-based
// image-to-world projection, per-track kinematics over a bounded history,
// oriented vehicle footprints, and pairwise collision prediction.
package collision

import (
	"errors"
	"time"
)

// Sentinel errors, matched with errors.Is at call sites. Each maps to one
// local-recovery path; none of them abort the running process.
var (
	// ErrInvalidProjection is returned when a homography maps a point to
	// the line at infinity (homogeneous w == 0).
	ErrInvalidProjection = errors.New("collision: invalid projection (w == 0)")

	// ErrStaleOrBackwardTime is returned by Track updates when dt <= 0
	// against the most recent sample. The position is still recorded;
	// only the kinematic refresh is skipped.
	ErrStaleOrBackwardTime = errors.New("collision: stale or backward timestamp")

	// ErrDegenerateGeometry names the case where the constant-velocity
	// closest-approach branch has no relative motion to solve against.
	// predictPair does not return it: it reports no collision for that pair.
	ErrDegenerateGeometry = errors.New("collision: degenerate geometry (zero relative velocity)")

	// ErrConfigError is returned at construction time for collinear,
	// coincident or otherwise impossible point correspondences. Fatal: the core refuses
	// to start.
	ErrConfigError = errors.New("collision: invalid configuration")
)

// WorldPoint is a (lat, lon) pair in decimal degrees. No altitude.
type WorldPoint struct {
	Lat float64
	Lon float64
}

// ImagePoint is a pixel coordinate in the source video frame.
type ImagePoint struct {
	X float64
	Y float64
}

// CartPoint is a local-tangent-plane coordinate in meters, relative to a
// track store's reference anchor.
type CartPoint struct {
	X float64
	Y float64
}

// Vector2 is a 2-D Cartesian vector, used for velocity and acceleration.
type Vector2 struct {
	X float64
	Y float64
}

// Detection is one upstream detector observation for a single frame: a
// stable track id, a pixel bounding box, and a class label. IDs below
// zero mean "untracked" and are dropped by the driver before they ever
// reach the track store.
type Detection struct {
	ID        int
	BBox      BBox
	ClassID   int
	ClassName string
}

// BBox is an image-plane bounding box in pixel coordinates (x1, y1, x2, y2).
type BBox struct {
	X1, Y1, X2, Y2 float64
}

// Center returns the bounding box's center point, the point homography
// projection is always applied to.
func (b BBox) Center() ImagePoint {
	return ImagePoint{X: (b.X1 + b.X2) / 2, Y: (b.Y1 + b.Y2) / 2}
}

// Rectangle is an oriented vehicle footprint: four ground-plane corners in
// world coordinates, ordered front-left, front-right, back-right, back-left.
// The polygon is not closed (the first corner is not repeated).
type Rectangle [4]WorldPoint

// TrackInfo is the per-object summary carried in a Snapshot.
type TrackInfo struct {
	ID           int
	Position     WorldPoint
	Speed        float64 // m/s
	Heading      float64 // degrees, 0 = north, clockwise
	Acceleration Vector2
	Rectangle    *Rectangle // nil until the track has >= 2 samples
	ClassID      int
	ClassName    string
}

// CollisionKey canonically identifies an unordered pair of track IDs as
// (Lo, Hi) with Lo < Hi.
type CollisionKey struct {
	Lo int
	Hi int
}

// NewCollisionKey canonicalizes a pair of track IDs.
func NewCollisionKey(a, b int) CollisionKey {
	if a < b {
		return CollisionKey{Lo: a, Hi: b}
	}
	return CollisionKey{Lo: b, Hi: a}
}

// CollisionPair is a predicted or already-occurring collision between two
// tracks: TTC in seconds (0 means the rectangles already intersect) and the
// predicted meeting point in world coordinates.
type CollisionPair struct {
	Key          CollisionKey
	TTC          float64
	MeetingPoint WorldPoint
}

// Snapshot is the immutable value published once per driver tick: every
// live track's info, and every predicted collision pair.
type Snapshot struct {
	Taken      time.Time
	Objects    map[int]TrackInfo
	Collisions map[CollisionKey]CollisionPair
}
