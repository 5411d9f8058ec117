package collision

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store := NewStore(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return store
}

func TestGetCalibrationMissingReturnsNil(t *testing.T) {
	store := openTestStore(t)
	cs, err := store.GetCalibration("camera-1")
	if err != nil {
		t.Fatalf("GetCalibration() error = %v", err)
	}
	if cs != nil {
		t.Errorf("expected nil calibration for unknown camera, got %+v", cs)
	}
}

func TestSaveAndGetCalibrationRoundTrips(t *testing.T) {
	store := openTestStore(t)

	cs := &CalibrationSession{
		CameraID:    "camera-1",
		ImagePoints: [4]ImagePoint{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}, {X: 0, Y: 100}},
		WorldPoints: [4]WorldPoint{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 1}, {Lat: 1, Lon: 1}, {Lat: 1, Lon: 0}},
		CarLength:   4.5,
		CarWidth:    2.0,
		TTCThresh:   4.0,
	}

	if err := store.SaveCalibration(cs); err != nil {
		t.Fatalf("SaveCalibration() error = %v", err)
	}

	got, err := store.GetCalibration("camera-1")
	if err != nil {
		t.Fatalf("GetCalibration() error = %v", err)
	}
	if got == nil {
		t.Fatal("expected a saved calibration session, got nil")
	}
	if got.CarLength != cs.CarLength || got.CarWidth != cs.CarWidth {
		t.Errorf("got dimensions (%v, %v), want (%v, %v)", got.CarLength, got.CarWidth, cs.CarLength, cs.CarWidth)
	}
	if got.ImagePoints != cs.ImagePoints {
		t.Errorf("got image points %v, want %v", got.ImagePoints, cs.ImagePoints)
	}
	if got.WorldPoints != cs.WorldPoints {
		t.Errorf("got world points %v, want %v", got.WorldPoints, cs.WorldPoints)
	}
}

func TestSaveCalibrationUpsertsExisting(t *testing.T) {
	store := openTestStore(t)

	first := &CalibrationSession{
		CameraID:    "camera-1",
		ImagePoints: [4]ImagePoint{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}},
		WorldPoints: [4]WorldPoint{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 1}, {Lat: 1, Lon: 1}, {Lat: 1, Lon: 0}},
		CarLength:   4.5, CarWidth: 2.0, TTCThresh: 4.0,
	}
	if err := store.SaveCalibration(first); err != nil {
		t.Fatalf("first SaveCalibration() error = %v", err)
	}
	firstSaved, _ := store.GetCalibration("camera-1")

	second := &CalibrationSession{
		CameraID:    "camera-1",
		ImagePoints: first.ImagePoints,
		WorldPoints: first.WorldPoints,
		CarLength:   5.0, CarWidth: 2.2, TTCThresh: 5.0,
	}
	if err := store.SaveCalibration(second); err != nil {
		t.Fatalf("second SaveCalibration() error = %v", err)
	}

	got, err := store.GetCalibration("camera-1")
	if err != nil {
		t.Fatalf("GetCalibration() error = %v", err)
	}
	if got.ID != firstSaved.ID {
		t.Errorf("expected upsert to preserve the original row ID, got %q want %q", got.ID, firstSaved.ID)
	}
	if got.CarLength != 5.0 {
		t.Errorf("CarLength = %v, want updated value 5.0", got.CarLength)
	}
}

func TestDeleteCalibration(t *testing.T) {
	store := openTestStore(t)
	cs := &CalibrationSession{
		CameraID:    "camera-1",
		ImagePoints: [4]ImagePoint{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}},
		WorldPoints: [4]WorldPoint{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 1}, {Lat: 1, Lon: 1}, {Lat: 1, Lon: 0}},
		CarLength:   4.5, CarWidth: 2.0, TTCThresh: 4.0,
	}
	if err := store.SaveCalibration(cs); err != nil {
		t.Fatalf("SaveCalibration() error = %v", err)
	}
	if err := store.DeleteCalibration("camera-1"); err != nil {
		t.Fatalf("DeleteCalibration() error = %v", err)
	}

	got, err := store.GetCalibration("camera-1")
	if err != nil {
		t.Fatalf("GetCalibration() error = %v", err)
	}
	if got != nil {
		t.Errorf("expected calibration to be gone after delete, got %+v", got)
	}
}

func TestRecordAndListCollisionHistory(t *testing.T) {
	store := openTestStore(t)

	key := NewCollisionKey(1, 2)
	pair := CollisionPair{Key: key, TTC: 2.5, MeetingPoint: WorldPoint{Lat: 10, Lon: 20}}
	now := time.Now().UTC().Truncate(time.Second)

	if err := store.RecordCollision("camera-1", key, pair, now); err != nil {
		t.Fatalf("RecordCollision() error = %v", err)
	}

	records, err := store.ListRecentCollisions("camera-1", 10)
	if err != nil {
		t.Fatalf("ListRecentCollisions() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 recorded collision, got %d", len(records))
	}
	if records[0].VehicleA != 1 || records[0].VehicleB != 2 {
		t.Errorf("got vehicle pair (%d, %d), want (1, 2)", records[0].VehicleA, records[0].VehicleB)
	}
	if records[0].TTC != 2.5 {
		t.Errorf("got TTC %v, want 2.5", records[0].TTC)
	}
}

func TestPruneCollisionHistory(t *testing.T) {
	store := openTestStore(t)

	old := time.Now().Add(-48 * time.Hour)
	recent := time.Now()

	key := NewCollisionKey(1, 2)
	pair := CollisionPair{Key: key, TTC: 1.0, MeetingPoint: WorldPoint{}}

	if err := store.RecordCollision("camera-1", key, pair, old); err != nil {
		t.Fatalf("RecordCollision(old) error = %v", err)
	}
	if err := store.RecordCollision("camera-1", key, pair, recent); err != nil {
		t.Fatalf("RecordCollision(recent) error = %v", err)
	}

	if err := store.PruneCollisionHistory(time.Now().Add(-24 * time.Hour)); err != nil {
		t.Fatalf("PruneCollisionHistory() error = %v", err)
	}

	records, err := store.ListRecentCollisions("camera-1", 10)
	if err != nil {
		t.Fatalf("ListRecentCollisions() error = %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected only the recent record to survive pruning, got %d", len(records))
	}
}
