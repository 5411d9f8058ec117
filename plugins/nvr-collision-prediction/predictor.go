package collision

import "math"

// closestApproachSamples is the number of uniformly spaced samples used by
// the constant-acceleration closest-approach search (spec.md §4.5 step 2).
// This coarse search is deliberate: the horizon is short, the dynamics are
// smooth, and 20 samples avoid a cubic root-finder while staying well
// inside frame budget. Do not silently "improve" this to a solver without
// regression tests against the acceleration-dominated scenario.
const closestApproachSamples = 20

const degenerateAccelThreshold = 1e-10
const degenerateVelocityThreshold = 1e-10

// predictCollisions decides, for every unordered pair of live tracks that
// both possess a current rectangle, whether they collide within
// ttcThreshold seconds, per spec.md §4.5. anchor and the vehicle
// dimensions are needed to rebuild predicted-position rectangles in the
// shared Cartesian/world frames.
func predictCollisions(tracks map[int]*track, ttcThreshold float64, anchor WorldPoint, carLength, carWidth float64) map[CollisionKey]CollisionPair {
	out := make(map[CollisionKey]CollisionPair)

	ids := make([]int, 0, len(tracks))
	for id, tr := range tracks {
		if tr.rectangle != nil {
			ids = append(ids, id)
		}
	}

	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			a, b := tracks[ids[i]], tracks[ids[j]]
			if pair, ok := predictPair(a, b, ttcThreshold, anchor, carLength, carWidth); ok {
				out[NewCollisionKey(a.id, b.id)] = pair
			}
		}
	}

	return out
}

func predictPair(a, b *track, ttcThreshold float64, anchor WorldPoint, carLength, carWidth float64) (CollisionPair, bool) {
	key := NewCollisionKey(a.id, b.id)

	// Step 1: already colliding?
	if rectanglesIntersect(*a.rectangle, *b.rectangle) {
		mid := midpoint(a.positions[a.last()], b.positions[b.last()])
		return CollisionPair{Key: key, TTC: 0.0, MeetingPoint: mid}, true
	}

	// Step 2: future collision? Work in the shared Cartesian frame.
	ca, cb := a.cartPositions[a.last()], b.cartPositions[b.last()]
	r := Vector2{X: cb.X - ca.X, Y: cb.Y - ca.Y}
	v := Vector2{X: b.velocity.X - a.velocity.X, Y: b.velocity.Y - a.velocity.Y}
	rel := Vector2{X: b.acceleration.X - a.acceleration.X, Y: b.acceleration.Y - a.acceleration.Y}

	// Neither velocity nor acceleration is closing the gap: not approaching.
	// Checking velocity alone would wrongly reject a pair at rest whose
	// acceleration is what closes the distance (spec.md §8 scenario 5).
	if dot(r, v) >= 0 && dot(r, rel) >= 0 {
		return CollisionPair{}, false
	}

	// Reduce the separation by the combined half-lengths before solving for
	// closest approach, so tau lands on bumper-to-bumper contact instead of
	// center-to-center coincidence (spec.md §8 scenario 1: 40 m closing at
	// 20 m/s minus half the combined lengths ≈ 1.775 s).
	rApproach := shrinkByApproachRadius(r, carLength)

	var tau float64
	if hypotV(rel) > degenerateAccelThreshold {
		tau = searchClosestApproach(rApproach, v, rel, ttcThreshold)
		if tau <= 0 || tau > ttcThreshold {
			return CollisionPair{}, false
		}
	} else {
		vSq := dot(v, v)
		if vSq < degenerateVelocityThreshold {
			return CollisionPair{}, false // ErrDegenerateGeometry
		}
		tau = -dot(rApproach, v) / vSq
		if tau <= 0 || tau > ttcThreshold {
			return CollisionPair{}, false
		}
	}

	// Step 3: footprint check at tau, using each object's own kinematics
	// and its *current* heading (the future rectangle is not rotated
	// along the predicted path — spec.md §9 open question (a)).
	futureCenterA := predictWorldPositionAt(a, tau, anchor)
	futureCenterB := predictWorldPositionAt(b, tau, anchor)
	futureA := vehicleRectangle(futureCenterA, a.heading, carLength, carWidth)
	futureB := vehicleRectangle(futureCenterB, b.heading, carLength, carWidth)

	if !rectanglesIntersect(futureA, futureB) {
		return CollisionPair{}, false
	}

	return CollisionPair{
		Key:          key,
		TTC:          tau,
		MeetingPoint: midpoint(futureCenterA, futureCenterB),
	}, true
}

// searchClosestApproach samples tau across [0, ttcThreshold] at
// closestApproachSamples evenly spaced points and returns the tau
// minimizing |r(tau)| under constant-acceleration relative motion
// r(tau) = r + v*tau + 0.5*a*tau^2.
func searchClosestApproach(r, v, a Vector2, ttcThreshold float64) float64 {
	bestTau := 0.0
	bestDist := math.Inf(1)

	for i := 0; i < closestApproachSamples; i++ {
		tau := ttcThreshold * float64(i) / float64(closestApproachSamples-1)
		rx := r.X + v.X*tau + 0.5*a.X*tau*tau
		ry := r.Y + v.Y*tau + 0.5*a.Y*tau*tau
		dist := math.Hypot(rx, ry)
		if dist < bestDist {
			bestDist = dist
			bestTau = tau
		}
	}

	return bestTau
}

func predictCartPositionAt(tr *track, tau float64) CartPoint {
	c := tr.cartPositions[tr.last()]
	return CartPoint{
		X: c.X + tr.velocity.X*tau + 0.5*tr.acceleration.X*tau*tau,
		Y: c.Y + tr.velocity.Y*tau + 0.5*tr.acceleration.Y*tau*tau,
	}
}

func predictWorldPositionAt(tr *track, tau float64, anchor WorldPoint) WorldPoint {
	return cartToLatlon(predictCartPositionAt(tr, tau), anchor)
}

func midpoint(a, b WorldPoint) WorldPoint {
	return WorldPoint{Lat: (a.Lat + b.Lat) / 2, Lon: (a.Lon + b.Lon) / 2}
}

func dot(a, b Vector2) float64 { return a.X*b.X + a.Y*b.Y }

func hypotV(v Vector2) float64 { return math.Hypot(v.X, v.Y) }

// shrinkByApproachRadius reduces r's magnitude by radius along its own
// direction, approximating two vehicles as each occupying half of radius
// along the closing axis. Returns the zero vector once radius has consumed
// the whole separation.
func shrinkByApproachRadius(r Vector2, radius float64) Vector2 {
	mag := hypotV(r)
	if mag <= radius {
		return Vector2{}
	}
	scale := (mag - radius) / mag
	return Vector2{X: r.X * scale, Y: r.Y * scale}
}
