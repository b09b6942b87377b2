// Package config loads the YAML configuration shared by the command line
// front end and embedding applications.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/whjrobotics/canfd/servo"
)

// Config describes a bus attachment and the protocol tunables.
type Config struct {
	// Interface is the SocketCAN interface name.
	Interface string `yaml:"interface"`
	// Bitrate is the arbitration phase bit-rate in bit/s.
	Bitrate uint32 `yaml:"bitrate"`
	// DataBitrate is the FD data phase bit-rate in bit/s.
	DataBitrate uint32 `yaml:"data_bitrate"`
	// RequestTimeoutMS is the per-request response deadline in milliseconds.
	RequestTimeoutMS int `yaml:"request_timeout_ms"`
	// OfflineThreshold is the consecutive timeout count that takes a session
	// offline.
	OfflineThreshold int `yaml:"offline_threshold"`
	// Motors maps motor ids to model names (WHJ10/WHJ30/WHJ60) for current
	// scaling.
	Motors map[uint8]string `yaml:"motors"`
	// LogDir is where CSV session logs are created.
	LogDir string `yaml:"log_dir"`
	// TracePath, when set, enables the CBOR protocol trace.
	TracePath string `yaml:"trace_path"`
}

// Default returns the stock configuration: can0 at 1 Mbit/s arbitration and
// 5 Mbit/s data.
func Default() Config {
	return Config{
		Interface:        "can0",
		Bitrate:          1_000_000,
		DataBitrate:      5_000_000,
		RequestTimeoutMS: 1000,
		OfflineThreshold: servo.DefaultOfflineThreshold,
		LogDir:           "can_output",
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if c.Interface == "" {
		return fmt.Errorf("config: interface must not be empty")
	}
	if c.Bitrate == 0 {
		return fmt.Errorf("config: bitrate must be positive")
	}
	if c.DataBitrate == 0 {
		return fmt.Errorf("config: data_bitrate must be positive")
	}
	if c.DataBitrate < c.Bitrate {
		return fmt.Errorf("config: data_bitrate %d below arbitration bitrate %d", c.DataBitrate, c.Bitrate)
	}
	if c.RequestTimeoutMS <= 0 {
		return fmt.Errorf("config: request_timeout_ms must be positive")
	}
	if c.OfflineThreshold < 1 {
		return fmt.Errorf("config: offline_threshold must be at least 1")
	}
	for id, model := range c.Motors {
		if id == 0 {
			return fmt.Errorf("config: motor id 0 is reserved")
		}
		if _, err := servo.ParseModel(model); err != nil {
			return fmt.Errorf("config: motor %d: %w", id, err)
		}
	}
	return nil
}

// RequestTimeout returns the request deadline as a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// MotorModels converts the model name map into typed form.
func (c Config) MotorModels() map[servo.MotorID]servo.Model {
	if len(c.Motors) == 0 {
		return nil
	}
	out := make(map[servo.MotorID]servo.Model, len(c.Motors))
	for id, name := range c.Motors {
		m, err := servo.ParseModel(name)
		if err != nil {
			continue // rejected by Validate
		}
		out[servo.MotorID(id)] = m
	}
	return out
}
