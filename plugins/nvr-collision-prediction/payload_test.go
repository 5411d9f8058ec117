package collision

import (
	"encoding/json"
	"testing"
	"time"
)

func TestFormatMapPayloadBasicShape(t *testing.T) {
	snap := &Snapshot{
		Taken: time.Now(),
		Objects: map[int]TrackInfo{
			1: {ID: 1, Position: WorldPoint{Lat: 10, Lon: 20}, Speed: 5.0, Heading: 90, ClassID: 2, ClassName: "car"},
		},
		Collisions: map[CollisionKey]CollisionPair{},
	}

	payload := FormatMapPayload(snap)
	if len(payload.Vehicles) != 1 {
		t.Fatalf("expected 1 vehicle feature, got %d", len(payload.Vehicles))
	}

	v := payload.Vehicles[0]
	if v.Geometry.Coordinates[0] != 20 || v.Geometry.Coordinates[1] != 10 {
		t.Errorf("geometry coordinates = %v, want [lon=20, lat=10]", v.Geometry.Coordinates)
	}
	if v.Properties.IsCollisionRisk {
		t.Error("expected no collision risk when there are no predicted collisions")
	}
	if v.Properties.TTC != nil {
		t.Errorf("expected nil TTC when vehicle is not part of any collision, got %v", *v.Properties.TTC)
	}
	wantKph := 18.0
	if v.Properties.SpeedKph != wantKph {
		t.Errorf("SpeedKph = %v, want %v", v.Properties.SpeedKph, wantKph)
	}
}

func TestFormatMapPayloadMinTTCAcrossPairs(t *testing.T) {
	snap := &Snapshot{
		Taken: time.Now(),
		Objects: map[int]TrackInfo{
			1: {ID: 1, Position: WorldPoint{Lat: 0, Lon: 0}},
			2: {ID: 2, Position: WorldPoint{Lat: 0, Lon: 0}},
			3: {ID: 3, Position: WorldPoint{Lat: 0, Lon: 0}},
		},
		Collisions: map[CollisionKey]CollisionPair{
			NewCollisionKey(1, 2): {Key: NewCollisionKey(1, 2), TTC: 3.0, MeetingPoint: WorldPoint{Lat: 1, Lon: 1}},
			NewCollisionKey(1, 3): {Key: NewCollisionKey(1, 3), TTC: 1.0, MeetingPoint: WorldPoint{Lat: 2, Lon: 2}},
		},
	}

	payload := FormatMapPayload(snap)

	var ttcFor1 *float64
	for _, v := range payload.Vehicles {
		if v.Properties.ID == 1 {
			ttcFor1 = v.Properties.TTC
		}
	}
	if ttcFor1 == nil {
		t.Fatal("expected vehicle 1 to carry a TTC value")
	}
	if *ttcFor1 != 1.0 {
		t.Errorf("min TTC for vehicle 1 = %v, want 1.0 (the smaller of its two pairs)", *ttcFor1)
	}

	if len(payload.Collisions) != 2 {
		t.Errorf("expected 2 collision features, got %d", len(payload.Collisions))
	}
}

func TestFormatMapPayloadRectangleIncludedWhenPresent(t *testing.T) {
	rect := vehicleRectangle(WorldPoint{Lat: 0, Lon: 0}, 0, 4.5, 2.0)
	snap := &Snapshot{
		Taken: time.Now(),
		Objects: map[int]TrackInfo{
			1: {ID: 1, Position: WorldPoint{Lat: 0, Lon: 0}, Rectangle: &rect},
		},
		Collisions: map[CollisionKey]CollisionPair{},
	}

	payload := FormatMapPayload(snap)
	if payload.Vehicles[0].Rectangle == nil {
		t.Fatal("expected rectangle feature to be attached when TrackInfo.Rectangle is set")
	}
	// A closed ring: 4 corners + the repeated first point.
	if got := len(payload.Vehicles[0].Rectangle.Geometry.Coordinates[0]); got != 5 {
		t.Errorf("rectangle ring has %d points, want 5 (closed)", got)
	}
}

func TestMapPayloadWithVideoBoundary(t *testing.T) {
	images, worlds := affineCorrespondences()
	hg, err := NewHomography(images, worlds)
	if err != nil {
		t.Fatalf("NewHomography() error = %v", err)
	}

	payload := &MapPayload{}
	payload.WithVideoBoundary(hg, 100, 100)

	if payload.VideoBoundary == nil {
		t.Fatal("expected a video boundary to be attached")
	}
	if len(payload.VideoBoundary.Geometry.Coordinates[0]) != 5 {
		t.Errorf("video boundary ring has %d points, want 5 (closed)", len(payload.VideoBoundary.Geometry.Coordinates[0]))
	}
}

func TestMapPayloadWithPathsAttachesPredicted(t *testing.T) {
	paths := map[int][]WorldPoint{1: {{Lat: 0, Lon: 0}, {Lat: 1, Lon: 1}}}
	predicted := map[int][]WorldPoint{1: {{Lat: 2, Lon: 2}}}

	payload := &MapPayload{}
	payload.WithPaths(paths, predicted)

	if len(payload.Paths) != 1 {
		t.Fatalf("expected 1 path feature, got %d", len(payload.Paths))
	}
	if payload.Paths[0].PredictedPath == nil {
		t.Fatal("expected predicted path to be attached when available")
	}
}

func TestMapPayloadMarshalsToJSON(t *testing.T) {
	snap := &Snapshot{
		Taken: time.Now(),
		Objects: map[int]TrackInfo{
			1: {ID: 1, Position: WorldPoint{Lat: 1, Lon: 2}},
		},
		Collisions: map[CollisionKey]CollisionPair{},
	}
	payload := FormatMapPayload(snap)

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	if len(data) == 0 {
		t.Error("expected non-empty JSON output")
	}
}
