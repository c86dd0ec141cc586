package demo

import "github.com/pkg/errors"

// ErrInvalidConfig is returned by Run when the configuration is unusable.
var ErrInvalidConfig = errors.New("invalid demo configuration")

// Config configures a demo run.
type Config struct {
	// ModelPath is the ONNX model to load. When empty the model is built in
	// memory.
	ModelPath string

	// WriteModel, when set, is where the in-memory model is saved before the
	// session is created.
	WriteModel string

	// Domain is the custom operator domain the model's nodes use.
	Domain string

	// Seed seeds the input generator. Zero picks a seed from the clock.
	Seed uint64

	// Rows and Cols are the input shape.
	Rows, Cols int64
}

// DefaultConfig returns the default demo configuration.
//
// Default configuration:
//   - Model: built in memory
//   - Domain: "test.customop"
//   - Seed: from the clock
//   - Shape: 3x5
func DefaultConfig() Config {
	return Config{
		Domain: "test.customop",
		Rows:   3,
		Cols:   5,
	}
}

// MaxElements bounds Rows*Cols.
const MaxElements = 1 << 24

// Validate checks the input shape.
func (c Config) Validate() error {
	if c.Rows <= 0 || c.Cols <= 0 {
		return errors.WithMessagef(ErrInvalidConfig, "shape %dx%d: rows and cols must be positive", c.Rows, c.Cols)
	}
	if c.Rows > MaxElements/c.Cols {
		return errors.WithMessagef(ErrInvalidConfig, "shape %dx%d exceeds %d elements", c.Rows, c.Cols, MaxElements)
	}
	return nil
}
