//go:build !linux

package gpio

import (
	"errors"

	"go.uber.org/zap"

	"github.com/sweeney/coin-acceptor/internal/anim"
)

var (
	_ Inputs = (*RealInputs)(nil)
	_ LEDs   = (*RealLEDs)(nil)
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealInputs is not available on non-Linux platforms.
type RealInputs struct{}

// NewRealInputs returns an error on non-Linux platforms.
func NewRealInputs(chipName string, offsets []int, handlers map[int]EdgeHandler) (*RealInputs, error) {
	return nil, errUnsupported
}

// Levels is not implemented on non-Linux platforms.
func (r *RealInputs) Levels() ([]int, error) {
	return nil, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (r *RealInputs) Close() error {
	return nil
}

// RealLEDs is not available on non-Linux platforms.
type RealLEDs struct{}

// NewRealLEDs returns an error on non-Linux platforms.
func NewRealLEDs(chipName string, offsets []int, activeLow bool, log *zap.Logger) (*RealLEDs, error) {
	return nil, errUnsupported
}

// Render is a no-op on non-Linux platforms.
func (l *RealLEDs) Render(anim.Frame) {}

// Levels is not implemented on non-Linux platforms.
func (l *RealLEDs) Levels() ([]int, error) {
	return nil, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (l *RealLEDs) Close() error {
	return nil
}
