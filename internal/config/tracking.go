package config

import (
	"fmt"
	"strings"

	"github.com/banshee-data/markertrack/internal/fusion"
	"github.com/banshee-data/markertrack/internal/publish"
)

// Detection modes.
const (
	ModeSingle = "single"
	ModeRig    = "rig"
)

// AnyMarkerID follows whichever marker is nearest.
const AnyMarkerID = -1

// TrackingConfig configures a tracking session.
type TrackingConfig struct {
	// Detection
	DetectionMode *string  `json:"detection_mode,omitempty"` // "single" or "rig"
	MarkerLength  *float64 `json:"marker_length,omitempty"`
	MarkerID      *int     `json:"marker_id,omitempty"`
	RigID         *string  `json:"rig_id,omitempty"`
	Dictionary    *string  `json:"dictionary,omitempty"`

	// Capture
	Device     *string  `json:"device,omitempty"`
	FrameRate  *float64 `json:"frame_rate,omitempty"`
	ShowWindow *bool    `json:"show_window,omitempty"`

	// Filter
	ProcessNoise      *float64 `json:"process_noise,omitempty"`
	MeasurementNoise  *float64 `json:"measurement_noise,omitempty"`
	InitialCovariance *float64 `json:"initial_covariance,omitempty"`

	// Output
	Sink               *string `json:"sink,omitempty"` // tcp, udp, serial or grpc
	ServerAddress      *string `json:"server_address,omitempty"`
	ServerPort         *int    `json:"server_port,omitempty"`
	SerialPort         *string `json:"serial_port,omitempty"`
	SerialBaudRate     *int    `json:"serial_baud_rate,omitempty"`
	PublishPredictions *bool   `json:"publish_predictions,omitempty"`
}

// DefaultTrackingConfig returns a config with every field set to its
// default.
func DefaultTrackingConfig() *TrackingConfig {
	c := &TrackingConfig{}
	return &TrackingConfig{
		DetectionMode:      ptrString(c.GetDetectionMode()),
		MarkerLength:       ptrFloat64(c.GetMarkerLength()),
		MarkerID:           ptrInt(c.GetMarkerID()),
		RigID:              ptrString(c.GetRigID()),
		Dictionary:         ptrString(c.GetDictionary()),
		Device:             ptrString(c.GetDevice()),
		FrameRate:          ptrFloat64(c.GetFrameRate()),
		ShowWindow:         ptrBool(c.GetShowWindow()),
		ProcessNoise:       ptrFloat64(c.GetProcessNoise()),
		MeasurementNoise:   ptrFloat64(c.GetMeasurementNoise()),
		InitialCovariance:  ptrFloat64(c.GetInitialCovariance()),
		Sink:               ptrString(c.GetSink()),
		ServerAddress:      ptrString(c.GetServerAddress()),
		ServerPort:         ptrInt(c.GetServerPort()),
		SerialPort:         ptrString(c.GetSerialPort()),
		SerialBaudRate:     ptrInt(c.GetSerialBaudRate()),
		PublishPredictions: ptrBool(c.GetPublishPredictions()),
	}
}

// LoadTrackingConfig reads a tracking config. A missing file yields an
// empty config whose getters return defaults; a malformed one is an
// error.
func LoadTrackingConfig(path string) (*TrackingConfig, error) {
	cfg := &TrackingConfig{}
	if _, err := load(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config as indented JSON.
func (c *TrackingConfig) Save(path string) error {
	return save(path, c)
}

// Validate checks that the configuration values are valid.
func (c *TrackingConfig) Validate() error {
	switch c.GetDetectionMode() {
	case ModeSingle:
	case ModeRig:
		if c.GetRigID() == "" {
			return fmt.Errorf("rig_id is required in rig mode")
		}
	default:
		return fmt.Errorf("detection_mode must be %q or %q, got %q", ModeSingle, ModeRig, c.GetDetectionMode())
	}
	if c.GetMarkerLength() <= 0 {
		return fmt.Errorf("marker_length must be positive, got %g", c.GetMarkerLength())
	}
	if c.GetMarkerID() < AnyMarkerID {
		return fmt.Errorf("marker_id must be %d (any) or a marker id, got %d", AnyMarkerID, c.GetMarkerID())
	}
	if c.GetFrameRate() <= 0 {
		return fmt.Errorf("frame_rate must be positive, got %g", c.GetFrameRate())
	}
	if c.GetProcessNoise() <= 0 || c.GetMeasurementNoise() <= 0 || c.GetInitialCovariance() <= 0 {
		return fmt.Errorf("filter noise and covariance values must be positive")
	}
	switch publish.Kind(c.GetSink()) {
	case publish.KindTCP, publish.KindUDP, publish.KindStream:
		if p := c.GetServerPort(); p < 0 || p > 65535 {
			return fmt.Errorf("server_port out of range: %d", p)
		}
	case publish.KindSerial:
		if c.GetSerialPort() == "" {
			return fmt.Errorf("serial_port is required for the serial sink")
		}
	default:
		return fmt.Errorf("unknown sink %q", c.GetSink())
	}
	if c.SerialBaudRate != nil && *c.SerialBaudRate <= 0 {
		return fmt.Errorf("serial_baud_rate must be positive, got %d", *c.SerialBaudRate)
	}
	return nil
}

// GetDetectionMode returns the detection_mode value or the default.
func (c *TrackingConfig) GetDetectionMode() string {
	if c.DetectionMode == nil {
		return ModeSingle
	}
	return strings.ToLower(*c.DetectionMode)
}

// GetMarkerLength returns the marker edge length in output units.
func (c *TrackingConfig) GetMarkerLength() float64 {
	if c.MarkerLength == nil {
		return 5.0
	}
	return *c.MarkerLength
}

// GetMarkerID returns the tracked marker id, AnyMarkerID by default.
func (c *TrackingConfig) GetMarkerID() int {
	if c.MarkerID == nil {
		return AnyMarkerID
	}
	return *c.MarkerID
}

func (c *TrackingConfig) GetRigID() string {
	if c.RigID == nil {
		return ""
	}
	return *c.RigID
}

func (c *TrackingConfig) GetDictionary() string {
	if c.Dictionary == nil {
		return "6x6_250"
	}
	return *c.Dictionary
}

func (c *TrackingConfig) GetDevice() string {
	if c.Device == nil {
		return "0"
	}
	return *c.Device
}

func (c *TrackingConfig) GetFrameRate() float64 {
	if c.FrameRate == nil {
		return 30
	}
	return *c.FrameRate
}

func (c *TrackingConfig) GetShowWindow() bool {
	if c.ShowWindow == nil {
		return false
	}
	return *c.ShowWindow
}

func (c *TrackingConfig) GetProcessNoise() float64 {
	if c.ProcessNoise == nil {
		return 1e-5
	}
	return *c.ProcessNoise
}

func (c *TrackingConfig) GetMeasurementNoise() float64 {
	if c.MeasurementNoise == nil {
		return 1e-4
	}
	return *c.MeasurementNoise
}

func (c *TrackingConfig) GetInitialCovariance() float64 {
	if c.InitialCovariance == nil {
		return 1.0
	}
	return *c.InitialCovariance
}

func (c *TrackingConfig) GetSink() string {
	if c.Sink == nil {
		return string(publish.KindTCP)
	}
	return strings.ToLower(*c.Sink)
}

func (c *TrackingConfig) GetServerAddress() string {
	if c.ServerAddress == nil {
		return "127.0.0.1"
	}
	return *c.ServerAddress
}

func (c *TrackingConfig) GetServerPort() int {
	if c.ServerPort == nil {
		return 5005
	}
	return *c.ServerPort
}

func (c *TrackingConfig) GetSerialPort() string {
	if c.SerialPort == nil {
		return ""
	}
	return *c.SerialPort
}

func (c *TrackingConfig) GetSerialBaudRate() int {
	if c.SerialBaudRate == nil {
		return publish.DefaultBaudRate
	}
	return *c.SerialBaudRate
}

func (c *TrackingConfig) GetPublishPredictions() bool {
	if c.PublishPredictions == nil {
		return false
	}
	return *c.PublishPredictions
}

// SinkOptions converts the output fields for publish.Open.
func (c *TrackingConfig) SinkOptions() publish.Options {
	return publish.Options{
		Kind:       publish.Kind(c.GetSink()),
		Address:    c.GetServerAddress(),
		Port:       c.GetServerPort(),
		SerialPort: c.GetSerialPort(),
		Serial:     publish.PortOptions{BaudRate: c.GetSerialBaudRate()},
	}
}

// FilterParams returns the fusion filter parameters.
func (c *TrackingConfig) FilterParams() fusion.Params {
	return fusion.Params{
		Timestep:          1 / c.GetFrameRate(),
		ProcessNoise:      c.GetProcessNoise(),
		MeasurementNoise:  c.GetMeasurementNoise(),
		InitialCovariance: c.GetInitialCovariance(),
	}
}
