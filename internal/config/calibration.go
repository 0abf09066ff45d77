package config

import (
	"fmt"

	"github.com/banshee-data/markertrack/internal/camera/calib"
)

// CalibrationConfig configures the chessboard and rig mapping workflows.
type CalibrationConfig struct {
	ChessboardSquareSize *float64 `json:"chessboard_square_size,omitempty"`
	ChessboardCols       *int     `json:"chessboard_cols,omitempty"`
	ChessboardRows       *int     `json:"chessboard_rows,omitempty"`
	MinFrames            *int     `json:"min_frames,omitempty"`
	MappingMinSamples    *int     `json:"mapping_min_samples,omitempty"`
}

// LoadCalibrationConfig reads a calibration config; a missing file yields
// defaults.
func LoadCalibrationConfig(path string) (*CalibrationConfig, error) {
	cfg := &CalibrationConfig{}
	if _, err := load(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config as indented JSON.
func (c *CalibrationConfig) Save(path string) error {
	return save(path, c)
}

// Validate checks that the configuration values are valid.
func (c *CalibrationConfig) Validate() error {
	if c.GetChessboardSquareSize() <= 0 {
		return fmt.Errorf("chessboard_square_size must be positive, got %g", c.GetChessboardSquareSize())
	}
	if c.GetChessboardCols() < 2 || c.GetChessboardRows() < 2 {
		return fmt.Errorf("chessboard needs at least 2x2 inner corners, got %dx%d", c.GetChessboardCols(), c.GetChessboardRows())
	}
	if c.GetMinFrames() < 1 {
		return fmt.Errorf("min_frames must be at least 1, got %d", c.GetMinFrames())
	}
	if c.GetMappingMinSamples() < 2 {
		return fmt.Errorf("mapping_min_samples must be at least 2, got %d", c.GetMappingMinSamples())
	}
	return nil
}

// GetChessboardSquareSize returns the printed square edge length.
func (c *CalibrationConfig) GetChessboardSquareSize() float64 {
	if c.ChessboardSquareSize == nil {
		return 1.0
	}
	return *c.ChessboardSquareSize
}

// GetChessboardCols returns the number of inner corners per row.
func (c *CalibrationConfig) GetChessboardCols() int {
	if c.ChessboardCols == nil {
		return 9
	}
	return *c.ChessboardCols
}

// GetChessboardRows returns the number of inner corners per column.
func (c *CalibrationConfig) GetChessboardRows() int {
	if c.ChessboardRows == nil {
		return 6
	}
	return *c.ChessboardRows
}

func (c *CalibrationConfig) GetMinFrames() int {
	if c.MinFrames == nil {
		return 50
	}
	return *c.MinFrames
}

func (c *CalibrationConfig) GetMappingMinSamples() int {
	if c.MappingMinSamples == nil {
		return 200
	}
	return *c.MappingMinSamples
}

// Board returns the chessboard geometry.
func (c *CalibrationConfig) Board() calib.Board {
	return calib.Board{
		Cols:       c.GetChessboardCols(),
		Rows:       c.GetChessboardRows(),
		SquareSize: c.GetChessboardSquareSize(),
	}
}
