package config

import (
	"fmt"
	"regexp"
	"time"

	"github.com/e7canasta/orion-depth/modules/sensor"
)

var instanceIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)

// Validate checks the configuration and fills defaults
func Validate(cfg *Config) error {
	if cfg.InstanceID == "" {
		return fmt.Errorf("instance_id is required")
	}
	if !instanceIDPattern.MatchString(cfg.InstanceID) {
		return fmt.Errorf("instance_id must match pattern [a-z0-9-]+")
	}

	if cfg.ShutdownTimeoutS <= 0 {
		cfg.ShutdownTimeoutS = 5
	}
	if cfg.HealthAddr == "" {
		cfg.HealthAddr = ":8089"
	}

	// Sensor
	if cfg.Sensor.FPS < 0 || cfg.Sensor.FPS > 60 {
		return fmt.Errorf("sensor.fps must be in 1..60, got %d", cfg.Sensor.FPS)
	}
	if cfg.Sensor.FPS == 0 {
		cfg.Sensor.FPS = 30
	}
	if cfg.Sensor.ColorFormat == "" {
		cfg.Sensor.ColorFormat = "rgb-640x480"
	}
	if _, err := cfg.Sensor.Color(); err != nil {
		return err
	}
	if cfg.Sensor.DepthFormat == "" {
		cfg.Sensor.DepthFormat = "320x240"
	}
	if _, err := cfg.Sensor.Depth(); err != nil {
		return err
	}
	if cfg.Sensor.Skeletons < 0 || cfg.Sensor.Skeletons > 6 {
		return fmt.Errorf("sensor.skeletons must be in 0..6, got %d", cfg.Sensor.Skeletons)
	}
	if cfg.Sensor.DropRate < 0 || cfg.Sensor.DropRate >= 1 {
		return fmt.Errorf("sensor.drop_rate must be in [0,1), got %g", cfg.Sensor.DropRate)
	}
	if cfg.Sensor.GripPeriodS <= 0 {
		cfg.Sensor.GripPeriodS = 3
	}
	if cfg.Sensor.WarmupSeconds <= 0 {
		cfg.Sensor.WarmupSeconds = 2
	}

	// Pipeline
	if cfg.Pipeline.JoinToleranceMs < 0 {
		return fmt.Errorf("pipeline.join_tolerance_ms must be > 0")
	}
	if cfg.Pipeline.JoinToleranceMs == 0 {
		cfg.Pipeline.JoinToleranceMs = 100
	}
	if cfg.Pipeline.LatchEvictTicks < 0 {
		return fmt.Errorf("pipeline.latch_evict_ticks must be >= 0")
	}

	// Reconnect
	if cfg.Reconnect.MaxRetries <= 0 {
		cfg.Reconnect.MaxRetries = 5
	}
	if cfg.Reconnect.InitialDelayMs <= 0 {
		cfg.Reconnect.InitialDelayMs = 1000
	}
	if cfg.Reconnect.MaxDelayMs <= 0 {
		cfg.Reconnect.MaxDelayMs = 30000
	}
	if cfg.Reconnect.MaxDelayMs < cfg.Reconnect.InitialDelayMs {
		return fmt.Errorf("reconnect.max_delay_ms must be >= initial_delay_ms")
	}

	// MQTT (broker optional: empty runs the pipeline without publishing)
	switch cfg.MQTT.Encoding {
	case "":
		cfg.MQTT.Encoding = "json"
	case "json", "msgpack":
	default:
		return fmt.Errorf("mqtt.encoding must be json or msgpack, got %q", cfg.MQTT.Encoding)
	}
	if cfg.MQTT.Topics.Hands == "" {
		cfg.MQTT.Topics.Hands = fmt.Sprintf("depth/hands/%s", cfg.InstanceID)
	}
	if cfg.MQTT.Topics.Health == "" {
		cfg.MQTT.Topics.Health = fmt.Sprintf("depth/health/%s", cfg.InstanceID)
	}
	if cfg.MQTT.QoS == nil {
		cfg.MQTT.QoS = map[string]byte{
			"hands":  0,
			"grips":  1,
			"health": 0,
		}
	}

	return nil
}

// Color returns the sensor color format.
func (s SensorConfig) Color() (sensor.ColorImageFormat, error) {
	switch s.ColorFormat {
	case "rgb-640x480":
		return sensor.ColorRgbResolution640x480Fps30, nil
	case "rgb-1280x960":
		return sensor.ColorRgbResolution1280x960Fps12, nil
	default:
		return sensor.ColorFormatUndefined, fmt.Errorf("sensor.color_format: unknown %q", s.ColorFormat)
	}
}

// Depth returns the sensor depth format.
func (s SensorConfig) Depth() (sensor.DepthImageFormat, error) {
	switch s.DepthFormat {
	case "640x480":
		return sensor.DepthResolution640x480Fps30, nil
	case "320x240":
		return sensor.DepthResolution320x240Fps30, nil
	case "80x60":
		return sensor.DepthResolution80x60Fps30, nil
	default:
		return sensor.DepthFormatUndefined, fmt.Errorf("sensor.depth_format: unknown %q", s.DepthFormat)
	}
}

// JoinTolerance returns the join tolerance as a duration.
func (p PipelineConfig) JoinTolerance() time.Duration {
	return time.Duration(p.JoinToleranceMs) * time.Millisecond
}

// ShutdownTimeout returns the graceful shutdown budget.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutS) * time.Second
}
