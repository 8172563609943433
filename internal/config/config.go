package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config represents the complete depthd configuration
type Config struct {
	InstanceID       string          `yaml:"instance_id" env:"DEPTHD_INSTANCE_ID"`
	ShutdownTimeoutS int             `yaml:"shutdown_timeout_s" env:"DEPTHD_SHUTDOWN_TIMEOUT_S"` // default: 5
	HealthAddr       string          `yaml:"health_addr" env:"DEPTHD_HEALTH_ADDR"`               // default: :8089
	Sensor           SensorConfig    `yaml:"sensor"`
	Pipeline         PipelineConfig  `yaml:"pipeline"`
	Reconnect        ReconnectConfig `yaml:"reconnect"`
	MQTT             MQTTConfig      `yaml:"mqtt"`
}

// SensorConfig drives the synthetic sensor
type SensorConfig struct {
	FPS           int     `yaml:"fps" env:"DEPTHD_SENSOR_FPS"`
	ColorFormat   string  `yaml:"color_format" env:"DEPTHD_SENSOR_COLOR_FORMAT"` // rgb-640x480, rgb-1280x960
	DepthFormat   string  `yaml:"depth_format" env:"DEPTHD_SENSOR_DEPTH_FORMAT"` // 640x480, 320x240, 80x60
	Skeletons     int     `yaml:"skeletons" env:"DEPTHD_SENSOR_SKELETONS"`       // simulated users (max 6)
	DropRate      float64 `yaml:"drop_rate" env:"DEPTHD_SENSOR_DROP_RATE"`       // per-modality miss probability
	FailAfterS    int     `yaml:"fail_after_s" env:"DEPTHD_SENSOR_FAIL_AFTER_S"` // simulate unplug; 0 = never
	GripPeriodS   float64 `yaml:"grip_period_s" env:"DEPTHD_SENSOR_GRIP_PERIOD_S"`
	WarmupSeconds int     `yaml:"warmup_s" env:"DEPTHD_SENSOR_WARMUP_S"`
}

// PipelineConfig tunes the operators
type PipelineConfig struct {
	JoinToleranceMs int `yaml:"join_tolerance_ms" env:"DEPTHD_JOIN_TOLERANCE_MS"`
	LatchEvictTicks int `yaml:"latch_evict_ticks" env:"DEPTHD_LATCH_EVICT_TICKS"` // 0 = never evict
}

// ReconnectConfig is the device restart policy
type ReconnectConfig struct {
	MaxRetries     int `yaml:"max_retries" env:"DEPTHD_RECONNECT_MAX_RETRIES"`
	InitialDelayMs int `yaml:"initial_delay_ms" env:"DEPTHD_RECONNECT_INITIAL_DELAY_MS"`
	MaxDelayMs     int `yaml:"max_delay_ms" env:"DEPTHD_RECONNECT_MAX_DELAY_MS"`
}

// MQTTConfig contains MQTT broker settings
type MQTTConfig struct {
	Broker   string          `yaml:"broker" env:"DEPTHD_MQTT_BROKER"` // empty disables publishing
	Encoding string          `yaml:"encoding" env:"DEPTHD_MQTT_ENCODING"` // json | msgpack
	Topics   MQTTTopics      `yaml:"topics"`
	QoS      map[string]byte `yaml:"qos"`
}

// MQTTTopics contains topic roots
type MQTTTopics struct {
	Hands  string `yaml:"hands" env:"DEPTHD_MQTT_TOPIC_HANDS"`
	Health string `yaml:"health" env:"DEPTHD_MQTT_TOPIC_HEALTH"`
}

// Load reads a YAML configuration file, applies DEPTHD_* environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse env overrides: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
