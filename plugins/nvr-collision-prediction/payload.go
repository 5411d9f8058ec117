package collision

import (
	"math"
	"strconv"
	"time"
)

// geoPoint is a GeoJSON Point geometry. Coordinate order is [lon, lat].
type geoPoint struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

func newGeoPoint(p WorldPoint) geoPoint {
	return geoPoint{Type: "Point", Coordinates: [2]float64{p.Lon, p.Lat}}
}

// geoPolygon is a GeoJSON Polygon geometry: a single ring, explicitly
// closed (first point repeated as last), coordinate order [lon, lat].
type geoPolygon struct {
	Type        string         `json:"type"`
	Coordinates [][][2]float64 `json:"coordinates"`
}

func newGeoPolygon(ring []WorldPoint) geoPolygon {
	coords := make([][2]float64, 0, len(ring)+1)
	for _, p := range ring {
		coords = append(coords, [2]float64{p.Lon, p.Lat})
	}
	if len(ring) > 0 {
		coords = append(coords, [2]float64{ring[0].Lon, ring[0].Lat})
	}
	return geoPolygon{Type: "Polygon", Coordinates: [][][2]float64{coords}}
}

// geoLineString is a GeoJSON LineString geometry, coordinate order [lon, lat].
type geoLineString struct {
	Type        string      `json:"type"`
	Coordinates [][2]float64 `json:"coordinates"`
}

func newGeoLineString(points []WorldPoint) geoLineString {
	coords := make([][2]float64, 0, len(points))
	for _, p := range points {
		coords = append(coords, [2]float64{p.Lon, p.Lat})
	}
	return geoLineString{Type: "LineString", Coordinates: coords}
}

// RectangleFeature is a GeoJSON Feature wrapping a vehicle or video-frame
// footprint polygon.
type RectangleFeature struct {
	Type       string     `json:"type"`
	Geometry   geoPolygon `json:"geometry"`
	Properties struct{}   `json:"properties"`
}

func newRectangleFeature(corners Rectangle) *RectangleFeature {
	return &RectangleFeature{Type: "Feature", Geometry: newGeoPolygon(corners[:])}
}

// VehicleProperties is the property bag of a vehicle Feature.
type VehicleProperties struct {
	ID              int       `json:"id"`
	Type            string    `json:"type"` // "vehicle"
	Heading         float64   `json:"heading"`
	Speed           float64   `json:"speed"`
	SpeedKph        float64   `json:"speed_kph"`
	Timestamp       time.Time `json:"timestamp"`
	IsCollisionRisk bool      `json:"is_collision_risk"`
	TTC             *float64  `json:"ttc,omitempty"`
	ClassID         int       `json:"class_id"`
	ClassName       string    `json:"class_name,omitempty"`
}

// VehicleFeature is a GeoJSON Point Feature for one tracked vehicle, with a
// sibling Rectangle polygon feature for its current footprint.
type VehicleFeature struct {
	Type       string            `json:"type"`
	Geometry   geoPoint          `json:"geometry"`
	Properties VehicleProperties `json:"properties"`
	Rectangle  *RectangleFeature `json:"rectangle,omitempty"`
}

// CollisionProperties is the property bag of a collision Feature.
type CollisionProperties struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"` // "collision"
	VehicleIDs [2]int    `json:"vehicle_ids"`
	TTC        float64   `json:"ttc"`
	Timestamp  time.Time `json:"timestamp"`
}

// CollisionFeature is a GeoJSON Point Feature at the predicted meeting
// point of a collision pair.
type CollisionFeature struct {
	Type       string               `json:"type"`
	Geometry   geoPoint             `json:"geometry"`
	Properties CollisionProperties  `json:"properties"`
}

// PathFeature carries a track's recent position history, and optionally a
// predicted-future-path sibling extrapolated with the same
// constant-acceleration model the predictor itself uses.
type PathFeature struct {
	Type          string          `json:"type"`
	Geometry      geoLineString   `json:"geometry"`
	PredictedPath *geoLineString  `json:"predicted_path,omitempty"`
	Properties    struct {
		ID int `json:"id"`
	} `json:"properties"`
}

// MapPayload is the full map-update document emitted at the broadcast
// rate: a GeoJSON-shaped collection of vehicle and collision features,
// plus the optional path history and video boundary.
type MapPayload struct {
	Vehicles      []VehicleFeature    `json:"vehicles"`
	Collisions    []CollisionFeature  `json:"collisions"`
	Paths         []PathFeature       `json:"paths,omitempty"`
	VideoBoundary *RectangleFeature   `json:"video_boundary,omitempty"`
}

// FormatMapPayload builds the output payload from a snapshot, exactly as
// specified in spec.md §6: per-vehicle minimum TTC across pairs involving
// that vehicle, collision meeting points, speed_kph rounded to 1 decimal.
func FormatMapPayload(snap *Snapshot) *MapPayload {
	minTTC := make(map[int]float64, len(snap.Objects))
	atRisk := make(map[int]bool, len(snap.Objects))
	for key, pair := range snap.Collisions {
		for _, id := range []int{key.Lo, key.Hi} {
			atRisk[id] = true
			if cur, ok := minTTC[id]; !ok || pair.TTC < cur {
				minTTC[id] = pair.TTC
			}
		}
	}

	vehicles := make([]VehicleFeature, 0, len(snap.Objects))
	for id, info := range snap.Objects {
		props := VehicleProperties{
			ID:              id,
			Type:            "vehicle",
			Heading:         info.Heading,
			Speed:           info.Speed,
			SpeedKph:        math.Round(info.Speed*3.6*10) / 10,
			Timestamp:       snap.Taken,
			IsCollisionRisk: atRisk[id],
			ClassID:         info.ClassID,
			ClassName:       info.ClassName,
		}
		if ttc, ok := minTTC[id]; ok {
			props.TTC = &ttc
		}

		feature := VehicleFeature{
			Type:       "Feature",
			Geometry:   newGeoPoint(info.Position),
			Properties: props,
		}
		if info.Rectangle != nil {
			feature.Rectangle = newRectangleFeature(*info.Rectangle)
		}
		vehicles = append(vehicles, feature)
	}

	collisions := make([]CollisionFeature, 0, len(snap.Collisions))
	for key, pair := range snap.Collisions {
		collisions = append(collisions, CollisionFeature{
			Type:     "Feature",
			Geometry: newGeoPoint(pair.MeetingPoint),
			Properties: CollisionProperties{
				ID:         collisionID(key),
				Type:       "collision",
				VehicleIDs: [2]int{key.Lo, key.Hi},
				TTC:        pair.TTC,
				Timestamp:  snap.Taken,
			},
		})
	}

	return &MapPayload{Vehicles: vehicles, Collisions: collisions}
}

// WithVideoBoundary projects the four corners of a frameWidth x frameHeight
// video frame through the homography and attaches the resulting closed
// polygon as the payload's video_boundary.
func (m *MapPayload) WithVideoBoundary(hg *Homography, frameWidth, frameHeight float64) *MapPayload {
	corners := []ImagePoint{
		{X: 0, Y: 0},
		{X: frameWidth, Y: 0},
		{X: frameWidth, Y: frameHeight},
		{X: 0, Y: frameHeight},
	}

	ring := make([]WorldPoint, 0, 4)
	for _, c := range corners {
		p, err := hg.ImageToWorld(c)
		if err != nil {
			return m
		}
		ring = append(ring, p)
	}

	m.VideoBoundary = &RectangleFeature{Type: "Feature", Geometry: newGeoPolygon(ring)}
	return m
}

// WithPaths attaches per-track position history (and, where available, a
// predicted-path extrapolation) to the payload.
func (m *MapPayload) WithPaths(paths map[int][]WorldPoint, predicted map[int][]WorldPoint) *MapPayload {
	out := make([]PathFeature, 0, len(paths))
	for id, history := range paths {
		pf := PathFeature{Type: "Feature", Geometry: newGeoLineString(history)}
		pf.Properties.ID = id
		if pred, ok := predicted[id]; ok && len(pred) > 0 {
			ls := newGeoLineString(pred)
			pf.PredictedPath = &ls
		}
		out = append(out, pf)
	}
	m.Paths = out
	return m
}

func collisionID(key CollisionKey) string {
	return strconv.Itoa(key.Lo) + "_" + strconv.Itoa(key.Hi)
}
