package main

import (
	"errors"
	"fmt"
)

// Flight zone used by the air-quality survey (George Square area, Edinburgh).
const (
	DefaultMinLng = -3.192473
	DefaultMaxLng = -3.184319
	DefaultMinLat = 55.942617
	DefaultMaxLat = 55.946233
)

const (
	DefaultStepLength      = 0.0003
	DefaultProximityRadius = 0.0002
	DefaultMoveCeiling     = 150
	DefaultHeadingQuantum  = 10
)

// MaxMoveCeiling bounds the moves a single flight may be asked to make.
const MaxMoveCeiling = 10000

var ErrInvalidConfig = errors.New("invalid config")

// Config holds the flight constants. The zero value of any field means
// "use the default" once passed through WithDefaults.
type Config struct {
	Boundary        BoundingBox `json:"boundary"`
	StepLength      float64     `json:"stepLength"`
	ProximityRadius float64     `json:"proximityRadius"`
	MoveCeiling     int         `json:"moveCeiling"`
	HeadingQuantum  int         `json:"headingQuantum"`
}

// DefaultConfig returns the reference survey constants.
func DefaultConfig() Config {
	return Config{
		Boundary: BoundingBox{
			MinX: DefaultMinLng,
			MinY: DefaultMinLat,
			MaxX: DefaultMaxLng,
			MaxY: DefaultMaxLat,
		},
		StepLength:      DefaultStepLength,
		ProximityRadius: DefaultProximityRadius,
		MoveCeiling:     DefaultMoveCeiling,
		HeadingQuantum:  DefaultHeadingQuantum,
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.Boundary == (BoundingBox{}) {
		c.Boundary = def.Boundary
	}
	if c.StepLength == 0 {
		c.StepLength = def.StepLength
	}
	if c.ProximityRadius == 0 {
		c.ProximityRadius = def.ProximityRadius
	}
	if c.MoveCeiling == 0 {
		c.MoveCeiling = def.MoveCeiling
	}
	if c.HeadingQuantum == 0 {
		c.HeadingQuantum = def.HeadingQuantum
	}
	return c
}

func (c Config) Validate() error {
	switch {
	case c.Boundary.Empty():
		return fmt.Errorf("%w: empty boundary %+v", ErrInvalidConfig, c.Boundary)
	case c.StepLength <= 0:
		return fmt.Errorf("%w: step length %v", ErrInvalidConfig, c.StepLength)
	case c.ProximityRadius <= 0:
		return fmt.Errorf("%w: proximity radius %v", ErrInvalidConfig, c.ProximityRadius)
	case c.MoveCeiling <= 0:
		return fmt.Errorf("%w: move ceiling %d", ErrInvalidConfig, c.MoveCeiling)
	case c.MoveCeiling > MaxMoveCeiling:
		return fmt.Errorf("%w: move ceiling %d above %d", ErrInvalidConfig, c.MoveCeiling, MaxMoveCeiling)
	case c.HeadingQuantum <= 0 || c.HeadingQuantum >= 360 || 360%c.HeadingQuantum != 0:
		return fmt.Errorf("%w: heading quantum %d must divide 360", ErrInvalidConfig, c.HeadingQuantum)
	}
	return nil
}

// headingCount is the number of distinct quantized headings.
func (c Config) headingCount() int {
	return 360 / c.HeadingQuantum
}
