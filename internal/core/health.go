package core

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/e7canasta/orion-depth/internal/emitter"
)

// DeviceHealth describes the current sensor session
type DeviceHealth struct {
	SessionID       string `json:"session_id"`
	Ticks           uint64 `json:"ticks"`
	DroppedColor    uint64 `json:"dropped_color"`
	DroppedDepth    uint64 `json:"dropped_depth"`
	DroppedSkeleton uint64 `json:"dropped_skeleton"`
	FramesOpen      int64  `json:"frames_open"` // opened minus released
	Failed          bool   `json:"failed"`
}

// PipelineHealth aggregates operator counters of the current session
type PipelineHealth struct {
	TicksSeen       uint64 `json:"ticks_seen"`
	Fused           uint64 `json:"fused"`
	TicksDropped    uint64 `json:"ticks_dropped"`
	MissingColor    uint64 `json:"missing_color"`
	MissingDepth    uint64 `json:"missing_depth"`
	MissingSkeleton uint64 `json:"missing_skeleton"`

	BridgeFed        uint64 `json:"bridge_fed"`
	BridgeFeedErrors uint64 `json:"bridge_feed_errors"`
	BridgeEmitted    uint64 `json:"bridge_emitted"`
	UnpairedDepth    uint64 `json:"unpaired_depth"`

	LatchedHands int `json:"latched_hands"`

	JoinLeft    uint64 `json:"join_left"`
	JoinRight   uint64 `json:"join_right"`
	JoinEmitted uint64 `json:"join_emitted"`
	JoinStale   uint64 `json:"join_stale"`

	Consumed    uint64 `json:"consumed"`
	Overwritten uint64 `json:"overwritten"`
}

// WarmupHealth is the result of the last warm-up
type WarmupHealth struct {
	RateMean   float64 `json:"rate_mean"`
	RateStdDev float64 `json:"rate_stddev"`
	JitterMean float64 `json:"jitter_mean_s"`
	Stable     bool    `json:"stable"`
}

// HealthStatus represents the health state of the depthd service
type HealthStatus struct {
	Status        string          `json:"status"` // "healthy", "degraded", "unhealthy"
	InstanceID    string          `json:"instance_id"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Restarts      uint32          `json:"restarts"`
	Device        *DeviceHealth   `json:"device,omitempty"`
	Warmup        *WarmupHealth   `json:"warmup,omitempty"`
	Pipeline      *PipelineHealth `json:"pipeline,omitempty"`
	Emitter       emitter.Stats   `json:"emitter"`
}

// HealthCheck returns the current health status of the service
func (s *Service) HealthCheck() HealthStatus {
	s.mu.RLock()
	running, started, sess, warm := s.isRunning, s.started, s.current, s.warm
	s.mu.RUnlock()

	status := HealthStatus{
		Status:     "healthy",
		InstanceID: s.cfg.InstanceID,
		Restarts:   s.restarts.Restarts.Load(),
		Emitter:    s.pub.Stats(),
	}
	if running {
		status.UptimeSeconds = int64(time.Since(started).Seconds())
	}

	if sess != nil {
		ds := sess.device.Stats()
		status.Device = &DeviceHealth{
			SessionID:       ds.SessionID,
			Ticks:           ds.Ticks,
			DroppedColor:    ds.DroppedColor,
			DroppedDepth:    ds.DroppedDepth,
			DroppedSkeleton: ds.DroppedSkeleton,
			FramesOpen:      int64(ds.Opened) - int64(ds.Released),
			Failed:          ds.Failed,
		}
		status.Pipeline = s.pipelineHealth(sess)
	}

	if warm != nil {
		status.Warmup = &WarmupHealth{
			RateMean:   warm.RateMean,
			RateStdDev: warm.RateStdDev,
			JitterMean: warm.JitterMean,
			Stable:     warm.IsStable,
		}
	}

	switch {
	case !running:
		status.Status = "unhealthy"
	case sess == nil || status.Device.Failed || warm == nil:
		status.Status = "degraded"
	case !status.Emitter.Connected && s.cfg.MQTT.Broker != "":
		status.Status = "degraded"
	}
	return status
}

func (s *Service) pipelineHealth(sess *session) *PipelineHealth {
	fs := sess.fuser.Stats()
	js := s.join.Snapshot()

	ph := &PipelineHealth{
		TicksSeen:       fs.TicksSeen,
		Fused:           fs.Fused,
		TicksDropped:    fs.Dropped,
		MissingColor:    fs.MissingColor,
		MissingDepth:    fs.MissingDepth,
		MissingSkeleton: fs.MissingSkeleton,
		UnpairedDepth:   sess.proc.Stats().Unpaired,
		LatchedHands:    sess.table.Len(),
		JoinLeft:        js.Left,
		JoinRight:       js.Right,
		JoinEmitted:     js.Emitted,
		JoinStale:       js.Stale,
	}
	// bridge and mailbox exist once warm-up is over
	if b := sess.bridgeRef(); b != nil {
		bs := b.Stats()
		ph.BridgeFed, ph.BridgeFeedErrors, ph.BridgeEmitted = bs.Fed, bs.FeedErrors, bs.Emitted
	}
	if mb := sess.mailboxRef(); mb != nil {
		ms := mb.Stats()
		ph.Consumed, ph.Overwritten = ms.Consumed, ms.Overwritten
	}
	return ph
}

// LivenessHandler handles /health (simple liveness check)
func (s *Service) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"status": "alive",
		"uptime": int64(time.Since(started).Seconds()),
	})
}

// ReadinessHandler handles /readiness (detailed pipeline health).
// Returns 503 only when the service is not running.
func (s *Service) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	health := s.HealthCheck()

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(health)
}

// StartHealthServer serves /health and /readiness on addr in a goroutine.
// The caller shuts the returned server down.
func (s *Service) StartHealthServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.LivenessHandler)
	mux.HandleFunc("/readiness", s.ReadinessHandler)

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("starting health check server",
		"addr", addr,
		"endpoints", []string{"/health", "/readiness"},
	)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("health check server failed", "error", err)
		}
	}()

	return server
}
