package collision

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// unixToTime converts a float64 seconds-since-epoch timestamp (the unit
// Detector ticks are stamped in) to a time.Time for display purposes only;
// all kinematics are computed on the float64 seconds directly.
func unixToTime(sec float64) time.Time {
	whole := int64(sec)
	frac := sec - float64(whole)
	return time.Unix(whole, int64(frac*1e9))
}

// Config holds the externally supplied, defaulted parameters of the
// collision-prediction core.
type Config struct {
	CarLength     float64 // meters, default 4.5
	CarWidth      float64 // meters, default 2.0
	TTCThreshold  float64 // seconds, default 4.0
	HistorySize   int     // samples, default 10
	MaxInactive   float64 // seconds, default 3.0
}

// DefaultConfig returns the configuration defaults named in the external
// interface.
func DefaultConfig() Config {
	return Config{
		CarLength:    4.5,
		CarWidth:     2.0,
		TTCThreshold: 4.0,
		HistorySize:  10,
		MaxInactive:  3.0,
	}
}

// track is the mutable per-object kinematic record. All fields are owned
// by TrackStore's sole writer; readers only ever see a published Snapshot.
type track struct {
	id int

	positions     []WorldPoint
	cartPositions []CartPoint
	timestamps    []float64

	velocity     Vector2
	acceleration Vector2
	speed        float64
	heading      float64
	rectangle    *Rectangle

	classID   int
	className string
}

func (t *track) push(world WorldPoint, cart CartPoint, ts float64, cap int) {
	t.positions = append(t.positions, world)
	t.cartPositions = append(t.cartPositions, cart)
	t.timestamps = append(t.timestamps, ts)

	if len(t.positions) > cap {
		excess := len(t.positions) - cap
		t.positions = t.positions[excess:]
		t.cartPositions = t.cartPositions[excess:]
		t.timestamps = t.timestamps[excess:]
	}
}

func (t *track) last() int { return len(t.positions) - 1 }

// TrackStore maintains, per tracking ID, a bounded history of (world
// position, Cartesian position, timestamp), derives velocity and
// acceleration, and evicts stale tracks. It is the sole owner of all
// tracks; no other component holds references into its map.
// UpdateFromDetection holds the store's mutex for a whole batch, so
// concurrent callers are serialized rather than interleaved.
type TrackStore struct {
	mu     sync.Mutex
	cfg    Config
	anchor *WorldPoint
	tracks map[int]*track

	snapshot atomic.Pointer[Snapshot]
}

// NewTrackStore creates an empty store. The reference anchor is unset
// until the first position update.
func NewTrackStore(cfg Config) *TrackStore {
	s := &TrackStore{
		cfg:    cfg,
		tracks: make(map[int]*track),
	}
	s.snapshot.Store(&Snapshot{
		Objects:    map[int]TrackInfo{},
		Collisions: map[CollisionKey]CollisionPair{},
	})
	return s
}

// Snapshot returns the most recently published snapshot. Safe for any
// number of concurrent readers; never observes a partially written value.
func (s *TrackStore) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

// update applies one position sample for id at time t, per spec.md §4.4:
// sets the reference anchor on first call, creates the track if unknown,
// pushes the sample into the bounded FIFOs, and recomputes velocity/
// heading/rectangle (len>=2) and acceleration (len>=3). Returns
// ErrStaleOrBackwardTime when dt<=0 against the previous sample — the
// position is still recorded, only the kinematic refresh is skipped.
func (s *TrackStore) update(id int, p WorldPoint, t float64) error {
	if s.anchor == nil {
		anchor := p
		s.anchor = &anchor
	}

	tr, ok := s.tracks[id]
	if !ok {
		tr = &track{id: id}
		s.tracks[id] = tr
	}

	cart := latlonToCart(p, *s.anchor)
	tr.push(p, cart, t, s.cfg.HistorySize)

	var kinematicErr error
	if len(tr.positions) >= 2 {
		if err := s.refreshVelocityAndHeading(tr); err != nil {
			kinematicErr = err
		}
	}
	if len(tr.positions) >= 3 {
		s.refreshAcceleration(tr)
	}

	return kinematicErr
}

func (s *TrackStore) refreshVelocityAndHeading(tr *track) error {
	last := tr.last()
	prev := last - 1

	dt := tr.timestamps[last] - tr.timestamps[prev]
	if dt <= 0 {
		return ErrStaleOrBackwardTime
	}

	cLast, cPrev := tr.cartPositions[last], tr.cartPositions[prev]
	vx := (cLast.X - cPrev.X) / dt
	vy := (cLast.Y - cPrev.Y) / dt

	tr.velocity = Vector2{X: vx, Y: vy}
	tr.speed = math.Hypot(vx, vy)
	// Heading is the spherical bearing between the previous and latest
	// *world* points, not the Cartesian atan2(vy, vx) — this asymmetry
	// with velocity is intentional (spec.md §4.4, §9 open question (c)).
	tr.heading = bearing(tr.positions[prev], tr.positions[last])

	rect := vehicleRectangle(tr.positions[last], tr.heading, s.cfg.CarLength, s.cfg.CarWidth)
	tr.rectangle = &rect

	return nil
}

func (s *TrackStore) refreshAcceleration(tr *track) {
	n := len(tr.cartPositions)
	p0, p1, p2 := tr.cartPositions[n-3], tr.cartPositions[n-2], tr.cartPositions[n-1]
	t0, t1, t2 := tr.timestamps[n-3], tr.timestamps[n-2], tr.timestamps[n-1]

	dt1 := t1 - t0
	dt2 := t2 - t1
	if dt1 <= 0 || dt2 <= 0 {
		return
	}

	v1 := Vector2{X: (p1.X - p0.X) / dt1, Y: (p1.Y - p0.Y) / dt1}
	v2 := Vector2{X: (p2.X - p1.X) / dt2, Y: (p2.Y - p1.Y) / dt2}

	avgDt := (dt1 + dt2) / 2
	tr.acceleration = Vector2{
		X: (v2.X - v1.X) / avgDt,
		Y: (v2.Y - v1.Y) / avgDt,
	}
}

// sweep removes any track whose last timestamp is older than
// now-maxInactive. Invoked once per driver tick, after updates, before
// collision prediction.
func (s *TrackStore) sweep(now float64) {
	for id, tr := range s.tracks {
		if len(tr.timestamps) == 0 {
			continue
		}
		last := tr.timestamps[tr.last()]
		if last < now-s.cfg.MaxInactive {
			delete(s.tracks, id)
		}
	}
}

// UpdateFromDetection applies one batch of per-frame detections, evicts
// stale tracks, runs collision prediction, publishes the resulting
// snapshot, and returns it. Detections with ID < 0 ("untracked") are
// dropped before reaching the store.
func (s *TrackStore) UpdateFromDetection(detections []Detection, project func(ImagePoint) (WorldPoint, error), now float64) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range detections {
		if d.ID < 0 {
			continue
		}
		world, err := project(d.BBox.Center())
		if err != nil {
			// InvalidProjection: log upstream, drop this single detection.
			continue
		}
		_ = s.update(d.ID, world, now) // StaleOrBackwardTime already handled locally

		tr := s.tracks[d.ID]
		tr.classID = d.ClassID
		tr.className = d.ClassName
	}

	s.sweep(now)

	anchor := WorldPoint{}
	if s.anchor != nil {
		anchor = *s.anchor
	}
	collisions := predictCollisions(s.tracks, s.cfg.TTCThreshold, anchor, s.cfg.CarLength, s.cfg.CarWidth)

	objects := make(map[int]TrackInfo, len(s.tracks))
	for id, tr := range s.tracks {
		objects[id] = TrackInfo{
			ID:           id,
			Position:     tr.positions[tr.last()],
			Speed:        tr.speed,
			Heading:      tr.heading,
			Acceleration: tr.acceleration,
			Rectangle:    tr.rectangle,
			ClassID:      tr.classID,
			ClassName:    tr.className,
		}
	}

	snap := &Snapshot{
		Taken:      unixToTime(now),
		Objects:    objects,
		Collisions: collisions,
	}
	s.snapshot.Store(snap)
	return snap
}

// Anchor returns the reference anchor, or false if no update has been
// observed yet.
func (s *TrackStore) Anchor() (WorldPoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.anchor == nil {
		return WorldPoint{}, false
	}
	return *s.anchor, true
}

// Paths returns a copy of each live track's bounded position history, for
// rendering recent-path overlays.
func (s *TrackStore) Paths() map[int][]WorldPoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[int][]WorldPoint, len(s.tracks))
	for id, tr := range s.tracks {
		history := make([]WorldPoint, len(tr.positions))
		copy(history, tr.positions)
		out[id] = history
	}
	return out
}

// PredictedPaths returns, for each live track with enough samples to
// extrapolate, a short constant-acceleration projection forward from its
// current position — the same model predictCollisions uses internally.
func (s *TrackStore) PredictedPaths(horizon float64, steps int) map[int][]WorldPoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	anchor := WorldPoint{}
	if s.anchor != nil {
		anchor = *s.anchor
	}

	out := make(map[int][]WorldPoint, len(s.tracks))
	for id, tr := range s.tracks {
		if tr.rectangle == nil || steps <= 0 {
			continue
		}
		path := make([]WorldPoint, 0, steps)
		for i := 1; i <= steps; i++ {
			tau := horizon * float64(i) / float64(steps)
			path = append(path, predictWorldPositionAt(tr, tau, anchor))
		}
		out[id] = path
	}
	return out
}
