//go:build linux

package watchdog

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

var (
	keepalive  = []byte{0}
	magicClose = []byte{'V'}
)

// Device drives the kernel watchdog (usually /dev/watchdog). Once opened the
// kernel resets the board unless Feed is called within the deadline.
type Device struct {
	f   *os.File
	log *zap.Logger
}

// OpenDevice opens the watchdog device and sets its timeout. The kernel
// timeout has one-second resolution; deadline is rounded up.
func OpenDevice(path string, deadline time.Duration, log *zap.Logger) (*Device, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open watchdog %s: %w", path, err)
	}

	secs := int((deadline + time.Second - 1) / time.Second)
	if err := unix.IoctlSetPointerInt(int(f.Fd()), unix.WDIOC_SETTIMEOUT, secs); err != nil {
		// Opening armed the device; disarm before giving up.
		f.Write(magicClose)
		f.Close()
		return nil, fmt.Errorf("set watchdog timeout %ds: %w", secs, err)
	}

	return &Device{f: f, log: log}, nil
}

// Feed pings the kernel watchdog. A failed ping is logged; the kernel will
// reset the board if pings keep failing.
func (d *Device) Feed() {
	if _, err := d.f.Write(keepalive); err != nil {
		d.log.Warn("watchdog feed failed", zap.Error(err))
	}
}

// Close writes the magic character so the driver disarms, then closes.
// Drivers built with nowayout keep running after close.
func (d *Device) Close() error {
	var errs []error
	if _, err := d.f.Write(magicClose); err != nil {
		errs = append(errs, fmt.Errorf("disarm watchdog: %w", err))
	}
	if err := d.f.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close watchdog: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
