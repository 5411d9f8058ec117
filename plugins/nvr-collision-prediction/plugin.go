// Package collision implements the geometric/kinematic core described in
// types.go, hosted here as an sdk.Plugin: it consumes detection events from
// the event bus, maintains per-camera homography calibration, and
// broadcasts a GeoJSON-shaped map update at a fixed rate.
package collision

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/Spatial-NVR/SpatialNVR/sdk"
)

const (
	broadcastHz        = 12.0
	broadcastEventType = "map.updated"
	pathHorizonSeconds = 3.0
	pathSteps          = 6
	minBackoff         = 1 * time.Second
	maxBackoff         = 10 * time.Second
	maxConsecutiveFail = 5
)

// Plugin hosts the collision-prediction core as an NVR plugin.
type Plugin struct {
	runtime *sdk.PluginRuntime
	store   *Store
	router  chi.Router

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.RWMutex
	cfg         Config
	cameraID    string
	frameWidth  float64
	frameHeight float64
	homography  *Homography
	tracks      *TrackStore
	limiter     *rate.Limiter

	processing atomic.Bool
}

// New creates a new, uninitialized collision-prediction plugin instance.
func New() *Plugin {
	return &Plugin{}
}

// Manifest returns the plugin manifest.
func (p *Plugin) Manifest() sdk.PluginManifest {
	return sdk.PluginManifest{
		ID:          "nvr-collision-prediction",
		Name:        "Collision Prediction",
		Version:     "0.1.0",
		Description: "Homography-calibrated, real-time vehicle collision prediction from a single fixed camera",
		Category:    "analytics",
		Critical:    false,
		Dependencies: []string{
			"nvr-detection",
		},
		Capabilities: []string{
			"collision-prediction",
			"spatial-mapping",
		},
		ConfigSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"camera_id": map[string]interface{}{
					"type":        "string",
					"description": "Camera this plugin instance is calibrated against",
				},
				"car_length": map[string]interface{}{
					"type":        "number",
					"description": "Assumed vehicle length in meters",
					"default":     4.5,
				},
				"car_width": map[string]interface{}{
					"type":        "number",
					"description": "Assumed vehicle width in meters",
					"default":     2.0,
				},
				"ttc_threshold": map[string]interface{}{
					"type":        "number",
					"description": "Maximum time-to-collision, in seconds, worth reporting",
					"default":     4.0,
				},
				"history_size": map[string]interface{}{
					"type":        "number",
					"description": "Number of recent samples kept per track",
					"default":     10,
				},
				"max_inactive": map[string]interface{}{
					"type":        "number",
					"description": "Seconds without an update before a track is evicted",
					"default":     3.0,
				},
				"frame_width": map[string]interface{}{
					"type":        "number",
					"description": "Source video frame width in pixels, for the video boundary overlay",
				},
				"frame_height": map[string]interface{}{
					"type":        "number",
					"description": "Source video frame height in pixels, for the video boundary overlay",
				},
				"image_points": map[string]interface{}{
					"type":        "array",
					"description": "Four static [x, y] pixel correspondences, paired index-for-index with world_points, applied at startup",
				},
				"world_points": map[string]interface{}{
					"type":        "array",
					"description": "Four static [lat, lon] correspondences, paired index-for-index with image_points, applied at startup",
				},
			},
		},
	}
}

// Initialize prepares the plugin: runs migrations, loads configuration and
// any saved calibration, and builds the HTTP router.
func (p *Plugin) Initialize(ctx context.Context, runtime *sdk.PluginRuntime) error {
	p.runtime = runtime
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.store = NewStore(runtime.DB())
	if err := p.store.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	p.cfg = DefaultConfig()
	p.cfg.CarLength = runtime.ConfigFloat("car_length", p.cfg.CarLength)
	p.cfg.CarWidth = runtime.ConfigFloat("car_width", p.cfg.CarWidth)
	p.cfg.TTCThreshold = runtime.ConfigFloat("ttc_threshold", p.cfg.TTCThreshold)
	p.cfg.HistorySize = runtime.ConfigInt("history_size", p.cfg.HistorySize)
	p.cfg.MaxInactive = runtime.ConfigFloat("max_inactive", p.cfg.MaxInactive)
	p.cameraID = runtime.ConfigString("camera_id", "")
	p.frameWidth = runtime.ConfigFloat("frame_width", 0)
	p.frameHeight = runtime.ConfigFloat("frame_height", 0)

	p.tracks = NewTrackStore(p.cfg)
	p.limiter = rate.NewLimiter(rate.Limit(broadcastHz), 1)
	p.processing.Store(true)

	// Static image_points/world_points in plugin config take precedence over
	// any saved calibration, mirroring the original's import-time
	// CoordinateTransformer construction from module-level constants.
	if imgPts, worldPts, ok := parseStaticCalibration(runtime); ok {
		hg, err := NewHomography(imgPts, worldPts)
		if err != nil {
			return fmt.Errorf("invalid image_points/world_points configuration: %w", err)
		}
		p.homography = hg
	}

	if p.homography == nil && p.cameraID != "" {
		saved, err := p.store.GetCalibration(p.cameraID)
		if err != nil {
			return fmt.Errorf("failed to load saved calibration: %w", err)
		}
		if saved != nil {
			hg, err := NewHomography(saved.ImagePoints, saved.WorldPoints)
			if err != nil {
				return fmt.Errorf("saved calibration for camera %q is invalid: %w", p.cameraID, err)
			}
			p.homography = hg
			p.cfg.CarLength = saved.CarLength
			p.cfg.CarWidth = saved.CarWidth
			p.cfg.TTCThreshold = saved.TTCThresh
			p.tracks = NewTrackStore(p.cfg)
		}
	}

	p.router = p.setupRoutes()

	runtime.Logger().Info("collision prediction plugin initialized", "camera_id", p.cameraID)
	return nil
}

// parseStaticCalibration reads the image_points/world_points config keys, if
// both are present, into the fixed-size correspondence arrays NewHomography
// expects. YAML-decoded config arrives as []interface{} of []interface{}
// pairs of numbers rather than native Go arrays, hence the manual coercion.
func parseStaticCalibration(runtime *sdk.PluginRuntime) ([4]ImagePoint, [4]WorldPoint, bool) {
	var imagePoints [4]ImagePoint
	var worldPoints [4]WorldPoint

	rawImage := runtime.ConfigValue("image_points")
	rawWorld := runtime.ConfigValue("world_points")
	if rawImage == nil || rawWorld == nil {
		return imagePoints, worldPoints, false
	}

	imagePairs, ok := parsePointPairs(rawImage)
	if !ok {
		return imagePoints, worldPoints, false
	}
	worldPairs, ok := parsePointPairs(rawWorld)
	if !ok {
		return imagePoints, worldPoints, false
	}

	for i := 0; i < 4; i++ {
		imagePoints[i] = ImagePoint{X: imagePairs[i][0], Y: imagePairs[i][1]}
		worldPoints[i] = WorldPoint{Lat: worldPairs[i][0], Lon: worldPairs[i][1]}
	}
	return imagePoints, worldPoints, true
}

// parsePointPairs coerces a config value into exactly four [2]float64 pairs.
func parsePointPairs(v interface{}) ([4][2]float64, bool) {
	var out [4][2]float64

	rows, ok := v.([]interface{})
	if !ok || len(rows) != 4 {
		return out, false
	}
	for i, row := range rows {
		pair, ok := row.([]interface{})
		if !ok || len(pair) != 2 {
			return out, false
		}
		x, ok := toFloat(pair[0])
		if !ok {
			return out, false
		}
		y, ok := toFloat(pair[1])
		if !ok {
			return out, false
		}
		out[i] = [2]float64{x, y}
	}
	return out, true
}

// toFloat coerces the numeric types a YAML or JSON decoder produces into a
// float64.
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// Start subscribes to detection events and launches the broadcast loop.
func (p *Plugin) Start(ctx context.Context) error {
	if err := p.runtime.SubscribeEvents(p.handleDetectionEvent, sdk.EventTypeDetection); err != nil {
		return fmt.Errorf("failed to subscribe to detection events: %w", err)
	}

	go p.broadcastLoop(p.ctx)

	p.runtime.Logger().Info("collision prediction plugin started")
	return nil
}

// Stop cancels the broadcast loop. The runtime's event subscriptions are
// left in place.
func (p *Plugin) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.runtime.Logger().Info("collision prediction plugin stopped")
	return nil
}

// Health reports whether a calibration is active and whether processing is
// running, with the current object and collision counts.
func (p *Plugin) Health() sdk.HealthStatus {
	p.mu.RLock()
	calibrated := p.homography != nil
	p.mu.RUnlock()

	state := sdk.HealthStateHealthy
	message := "running"
	if !calibrated {
		state = sdk.HealthStateDegraded
		message = "awaiting calibration"
	}
	if !p.processing.Load() {
		state = sdk.HealthStateDegraded
		message = "processing paused"
	}

	snap := p.currentTracks().Snapshot()
	return sdk.HealthStatus{
		State:       state,
		Message:     message,
		LastChecked: time.Now(),
		Details: map[string]string{
			"object_count":    strconv.Itoa(len(snap.Objects)),
			"collision_count": strconv.Itoa(len(snap.Collisions)),
		},
	}
}

// Routes returns the HTTP handler for plugin routes.
func (p *Plugin) Routes() http.Handler {
	return p.router
}

// handleDetectionEvent converts one upstream detection event into a single
// Detection sample and feeds it through the track store. Events carry one
// detection each; untracked detections (TrackID missing or non-numeric)
// are dropped, matching the driver's ID < 0 contract.
func (p *Plugin) handleDetectionEvent(event *sdk.Event) {
	if event == nil || !p.processing.Load() {
		return
	}
	p.mu.RLock()
	sameCamera := p.cameraID == "" || event.CameraID == "" || event.CameraID == p.cameraID
	p.mu.RUnlock()
	if !sameCamera {
		return
	}

	id, err := strconv.Atoi(event.TrackID)
	if err != nil {
		return
	}

	p.mu.RLock()
	hg := p.homography
	tracks := p.tracks
	p.mu.RUnlock()
	if hg == nil {
		return
	}

	var bbox BBox
	if event.BoundingBox != nil {
		bbox = BBox{
			X1: event.BoundingBox.X,
			Y1: event.BoundingBox.Y,
			X2: event.BoundingBox.X + event.BoundingBox.Width,
			Y2: event.BoundingBox.Y + event.BoundingBox.Height,
		}
	}

	d := Detection{ID: id, BBox: bbox, ClassName: event.ObjectType}

	project := func(pt ImagePoint) (WorldPoint, error) {
		w, err := hg.ImageToWorld(pt)
		if err != nil {
			p.runtime.Logger().Debug("dropping detection with invalid projection", "track_id", id, "error", err)
		}
		return w, err
	}

	now := float64(event.Timestamp.UnixNano()) / 1e9
	tracks.UpdateFromDetection([]Detection{d}, project, now)
}

// broadcastLoop publishes the current snapshot at broadcastHz, backing off
// exponentially on publish errors and aborting after maxConsecutiveFail in
// a row.
func (p *Plugin) broadcastLoop(ctx context.Context) {
	backoff := minBackoff
	failures := 0

	for {
		if err := p.limiter.Wait(ctx); err != nil {
			return
		}

		if !p.processing.Load() {
			continue
		}

		payload := p.currentPayload()
		if err := p.runtime.PublishEvent(broadcastEventType, payload); err != nil {
			failures++
			p.runtime.Logger().Error("broadcast publish failed", "error", err, "consecutive_failures", failures)
			if failures >= maxConsecutiveFail {
				p.runtime.Logger().Error("aborting broadcast loop after repeated failures")
				return
			}

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		backoff = minBackoff
		failures = 0
	}
}

// currentTracks returns the active TrackStore under the read lock, since
// calibration can swap it out from under a running broadcast or handler.
func (p *Plugin) currentTracks() *TrackStore {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tracks
}

func (p *Plugin) currentPayload() *MapPayload {
	tracks := p.currentTracks()
	snap := tracks.Snapshot()
	payload := FormatMapPayload(snap)

	p.mu.RLock()
	hg := p.homography
	fw, fh := p.frameWidth, p.frameHeight
	p.mu.RUnlock()

	if hg != nil && fw > 0 && fh > 0 {
		payload = payload.WithVideoBoundary(hg, fw, fh)
	}
	payload = payload.WithPaths(tracks.Paths(), tracks.PredictedPaths(pathHorizonSeconds, pathSteps))

	return payload
}

// setupRoutes configures the HTTP API routes, mounted at
// /api/v1/plugins/nvr-collision-prediction/.
func (p *Plugin) setupRoutes() chi.Router {
	r := chi.NewRouter()

	r.Get("/state", p.handleGetState)
	r.Get("/status", p.handleGetStatus)
	r.Post("/calibrate", p.handleCalibrate)
	r.Post("/control", p.handleControl)

	return r
}

func (p *Plugin) handleGetState(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, p.currentPayload())
}

// Status is the plugin's operational summary, served at GET /status.
type Status struct {
	IsProcessing   bool   `json:"is_processing"`
	ObjectCount    int    `json:"object_count"`
	CollisionCount int    `json:"collision_count"`
	VideoSource    string `json:"video_source"`
	Calibrated     bool   `json:"calibrated"`
}

func (p *Plugin) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	snap := p.currentTracks().Snapshot()

	p.mu.RLock()
	cameraID := p.cameraID
	calibrated := p.homography != nil
	p.mu.RUnlock()

	jsonResponse(w, http.StatusOK, Status{
		IsProcessing:   p.processing.Load(),
		ObjectCount:    len(snap.Objects),
		CollisionCount: len(snap.Collisions),
		VideoSource:    cameraID,
		Calibrated:     calibrated,
	})
}

// calibrateRequest is the wire shape for POST /calibrate.
type calibrateRequest struct {
	CameraID     string        `json:"camera_id"`
	ImagePoints  [4][2]float64 `json:"image_points"`  // [x, y]
	WorldPoints  [4][2]float64 `json:"world_points"`  // [lat, lon]
	CarLength    float64       `json:"car_length"`
	CarWidth     float64       `json:"car_width"`
	TTCThreshold float64       `json:"ttc_threshold"`
}

func (p *Plugin) handleCalibrate(w http.ResponseWriter, r *http.Request) {
	var req calibrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CameraID == "" {
		jsonErrorResponse(w, http.StatusBadRequest, "camera_id is required")
		return
	}

	var imagePoints [4]ImagePoint
	var worldPoints [4]WorldPoint
	for i := 0; i < 4; i++ {
		imagePoints[i] = ImagePoint{X: req.ImagePoints[i][0], Y: req.ImagePoints[i][1]}
		worldPoints[i] = WorldPoint{Lat: req.WorldPoints[i][0], Lon: req.WorldPoints[i][1]}
	}

	hg, err := NewHomography(imagePoints, worldPoints)
	if err != nil {
		jsonErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	p.mu.RLock()
	cfg := p.cfg
	p.mu.RUnlock()

	if req.CarLength > 0 {
		cfg.CarLength = req.CarLength
	}
	if req.CarWidth > 0 {
		cfg.CarWidth = req.CarWidth
	}
	if req.TTCThreshold > 0 {
		cfg.TTCThreshold = req.TTCThreshold
	}

	session := &CalibrationSession{
		CameraID:    req.CameraID,
		ImagePoints: imagePoints,
		WorldPoints: worldPoints,
		CarLength:   cfg.CarLength,
		CarWidth:    cfg.CarWidth,
		TTCThresh:   cfg.TTCThreshold,
	}
	if err := p.store.SaveCalibration(session); err != nil {
		jsonErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	p.mu.Lock()
	p.homography = hg
	p.cameraID = req.CameraID
	p.cfg = cfg
	p.tracks = NewTrackStore(cfg)
	p.mu.Unlock()

	jsonResponse(w, http.StatusOK, map[string]string{"status": "calibrated"})
}

// controlRequest is the wire shape for POST /control.
type controlRequest struct {
	Action string  `json:"action"` // "start", "stop", "set_quality"
	Hz     float64 `json:"hz,omitempty"`
}

func (p *Plugin) handleControl(w http.ResponseWriter, r *http.Request) {
	var req controlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch req.Action {
	case "start":
		p.processing.Store(true)
	case "stop":
		p.processing.Store(false)
	case "set_quality":
		if req.Hz <= 0 {
			jsonErrorResponse(w, http.StatusBadRequest, "hz must be positive")
			return
		}
		p.limiter.SetLimit(rate.Limit(req.Hz))
	default:
		jsonErrorResponse(w, http.StatusBadRequest, "unknown action")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func jsonErrorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}
