package collision

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CalibrationSession is a saved pixel/world correspondence set together
// with the vehicle dimensions and thresholds it was calibrated under.
// Persisting it lets the plugin restart without re-running calibration.
type CalibrationSession struct {
	ID          string
	CameraID    string
	ImagePoints [4]ImagePoint
	WorldPoints [4]WorldPoint
	CarLength   float64
	CarWidth    float64
	TTCThresh   float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// collisionRecord is one collision-history entry, as written by
// RecordCollision and read back by ListRecentCollisions. The plugin itself
// never calls RecordCollision, so the table holds only what other callers
// of Store write into it.
type collisionRecord struct {
	ID           string
	CameraID     string
	VehicleA     int
	VehicleB     int
	TTC          float64
	MeetingPoint WorldPoint
	OccurredAt   time.Time
}

// Store handles database operations for the collision-prediction plugin.
type Store struct {
	db *sql.DB
}

// NewStore creates a new Store instance.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the database schema.
func (s *Store) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS calibration_sessions (
			id TEXT PRIMARY KEY,
			camera_id TEXT NOT NULL,
			image_points_json TEXT NOT NULL,
			world_points_json TEXT NOT NULL,
			car_length REAL NOT NULL,
			car_width REAL NOT NULL,
			ttc_threshold REAL NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_calibration_camera ON calibration_sessions(camera_id)`,

		`CREATE TABLE IF NOT EXISTS collision_history (
			id TEXT PRIMARY KEY,
			camera_id TEXT NOT NULL,
			vehicle_a INTEGER NOT NULL,
			vehicle_b INTEGER NOT NULL,
			ttc REAL NOT NULL,
			meeting_lat REAL NOT NULL,
			meeting_lon REAL NOT NULL,
			occurred_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_collision_history_camera ON collision_history(camera_id, occurred_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("%w: migration failed: %v", ErrConfigError, err)
		}
	}

	return nil
}

// SaveCalibration upserts the calibration session for a camera.
func (s *Store) SaveCalibration(cs *CalibrationSession) error {
	existing, err := s.GetCalibration(cs.CameraID)
	if err != nil {
		return err
	}

	imgJSON, err := json.Marshal(cs.ImagePoints)
	if err != nil {
		return fmt.Errorf("failed to marshal image points: %w", err)
	}
	worldJSON, err := json.Marshal(cs.WorldPoints)
	if err != nil {
		return fmt.Errorf("failed to marshal world points: %w", err)
	}

	cs.UpdatedAt = time.Now()
	if existing != nil {
		cs.ID = existing.ID
		cs.CreatedAt = existing.CreatedAt

		_, err = s.db.Exec(`
			UPDATE calibration_sessions
			SET image_points_json = ?, world_points_json = ?, car_length = ?, car_width = ?, ttc_threshold = ?, updated_at = ?
			WHERE id = ?
		`, string(imgJSON), string(worldJSON), cs.CarLength, cs.CarWidth, cs.TTCThresh, cs.UpdatedAt, cs.ID)
		return err
	}

	if cs.ID == "" {
		cs.ID = uuid.New().String()
	}
	cs.CreatedAt = cs.UpdatedAt

	_, err = s.db.Exec(`
		INSERT INTO calibration_sessions (id, camera_id, image_points_json, world_points_json, car_length, car_width, ttc_threshold, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, cs.ID, cs.CameraID, string(imgJSON), string(worldJSON), cs.CarLength, cs.CarWidth, cs.TTCThresh, cs.CreatedAt, cs.UpdatedAt)

	return err
}

// GetCalibration retrieves the calibration session for a camera, or nil if
// none has been saved.
func (s *Store) GetCalibration(cameraID string) (*CalibrationSession, error) {
	var cs CalibrationSession
	var imgJSON, worldJSON string

	err := s.db.QueryRow(`
		SELECT id, camera_id, image_points_json, world_points_json, car_length, car_width, ttc_threshold, created_at, updated_at
		FROM calibration_sessions WHERE camera_id = ?
	`, cameraID).Scan(&cs.ID, &cs.CameraID, &imgJSON, &worldJSON, &cs.CarLength, &cs.CarWidth, &cs.TTCThresh, &cs.CreatedAt, &cs.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(imgJSON), &cs.ImagePoints); err != nil {
		return nil, fmt.Errorf("failed to unmarshal image points: %w", err)
	}
	if err := json.Unmarshal([]byte(worldJSON), &cs.WorldPoints); err != nil {
		return nil, fmt.Errorf("failed to unmarshal world points: %w", err)
	}

	return &cs, nil
}

// DeleteCalibration removes the calibration session for a camera.
func (s *Store) DeleteCalibration(cameraID string) error {
	_, err := s.db.Exec(`DELETE FROM calibration_sessions WHERE camera_id = ?`, cameraID)
	return err
}

// RecordCollision appends an entry to the collision history log.
func (s *Store) RecordCollision(cameraID string, key CollisionKey, pair CollisionPair, occurredAt time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO collision_history (id, camera_id, vehicle_a, vehicle_b, ttc, meeting_lat, meeting_lon, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, uuid.New().String(), cameraID, key.Lo, key.Hi, pair.TTC, pair.MeetingPoint.Lat, pair.MeetingPoint.Lon, occurredAt)
	return err
}

// ListRecentCollisions returns the most recent collision-history entries
// for a camera, newest first, bounded by limit.
func (s *Store) ListRecentCollisions(cameraID string, limit int) ([]collisionRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, camera_id, vehicle_a, vehicle_b, ttc, meeting_lat, meeting_lon, occurred_at
		FROM collision_history WHERE camera_id = ? ORDER BY occurred_at DESC LIMIT ?
	`, cameraID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []collisionRecord
	for rows.Next() {
		var r collisionRecord
		if err := rows.Scan(&r.ID, &r.CameraID, &r.VehicleA, &r.VehicleB, &r.TTC, &r.MeetingPoint.Lat, &r.MeetingPoint.Lon, &r.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}

	return out, rows.Err()
}

// PruneCollisionHistory deletes history entries older than before.
func (s *Store) PruneCollisionHistory(before time.Time) error {
	_, err := s.db.Exec(`DELETE FROM collision_history WHERE occurred_at < ?`, before)
	return err
}
