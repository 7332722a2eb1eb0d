//go:build !linux

package watchdog

import (
	"errors"
	"time"

	"go.uber.org/zap"
)

// Device is not available on non-Linux platforms.
type Device struct{}

// OpenDevice returns an error on non-Linux platforms.
func OpenDevice(path string, deadline time.Duration, log *zap.Logger) (*Device, error) {
	return nil, errors.New("watchdog: device not supported on this platform (requires Linux)")
}

// Feed is a no-op on non-Linux platforms.
func (d *Device) Feed() {}

// Close is a no-op on non-Linux platforms.
func (d *Device) Close() error {
	return nil
}
