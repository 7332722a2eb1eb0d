//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/zap"

	"github.com/sweeney/coin-acceptor/internal/anim"
)

var (
	_ Inputs = (*RealInputs)(nil)
	_ LEDs   = (*RealLEDs)(nil)
)

// RealInputs delivers falling edges from the pulse input lines.
type RealInputs struct {
	chip  *gpiocdev.Chip
	lines []*gpiocdev.Line
}

// NewRealInputs requests offsets[i] as pulse input i+1 with pull-up and
// falling-edge detection. handlers maps input numbers (1-based) to the
// function called on each edge; inputs without a handler are still
// requested so their level can be read.
func NewRealInputs(chipName string, offsets []int, handlers map[int]EdgeHandler) (*RealInputs, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	r := &RealInputs{chip: chip}
	for i, offset := range offsets {
		opts := []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithPullUp}
		if h, ok := handlers[i+1]; ok && h != nil {
			opts = append(opts,
				gpiocdev.WithFallingEdge,
				gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) { h() }),
			)
		}
		line, err := chip.RequestLine(offset, opts...)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request input %d (line %d): %w", i+1, offset, err)
		}
		r.lines = append(r.lines, line)
	}
	return r, nil
}

// Levels returns the raw level of each input line.
func (r *RealInputs) Levels() ([]int, error) {
	levels := make([]int, len(r.lines))
	for i, l := range r.lines {
		v, err := l.Value()
		if err != nil {
			return nil, fmt.Errorf("read input %d: %w", i+1, err)
		}
		levels[i] = v
	}
	return levels, nil
}

// Close releases GPIO resources.
// Reconfigures lines to input with pull-down (matching Pi boot defaults)
// before closing to leave a clean state for shutdown/reboot.
func (r *RealInputs) Close() error {
	var errs []error
	for i, l := range r.lines {
		if err := l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure input %d: %w", i+1, err))
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close input %d: %w", i+1, err))
		}
	}
	r.lines = nil
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		r.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealLEDs drives the feedback LEDs. It implements anim.Output.
type RealLEDs struct {
	chip   *gpiocdev.Chip
	lines  *gpiocdev.Lines
	values []int
	log    *zap.Logger
}

// NewRealLEDs requests the LED lines as outputs, initially lit.
func NewRealLEDs(chipName string, offsets []int, activeLow bool, log *zap.Logger) (*RealLEDs, error) {
	if len(offsets) != anim.NumLEDs {
		return nil, fmt.Errorf("need %d LED lines, got %d", anim.NumLEDs, len(offsets))
	}

	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(1, 1, 1, 1)}
	if activeLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}
	lines, err := chip.RequestLines(offsets, opts...)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request LED lines %v: %w", offsets, err)
	}

	return &RealLEDs{
		chip:   chip,
		lines:  lines,
		values: make([]int, anim.NumLEDs),
		log:    log,
	}, nil
}

// Render writes the frame to the LED lines in a single request.
func (l *RealLEDs) Render(f anim.Frame) {
	for i, on := range f {
		l.values[i] = 0
		if on {
			l.values[i] = 1
		}
	}
	if err := l.lines.SetValues(l.values); err != nil {
		l.log.Warn("set LEDs", zap.Error(err))
	}
}

// Levels returns the current logical LED values.
func (l *RealLEDs) Levels() ([]int, error) {
	levels := make([]int, anim.NumLEDs)
	if err := l.lines.Values(levels); err != nil {
		return nil, fmt.Errorf("read LEDs: %w", err)
	}
	return levels, nil
}

// Close turns the LEDs off and releases the lines.
func (l *RealLEDs) Close() error {
	var errs []error
	if err := l.lines.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure LEDs: %w", err))
	}
	if err := l.lines.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close LEDs: %w", err))
	}
	if err := l.chip.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close chip: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
