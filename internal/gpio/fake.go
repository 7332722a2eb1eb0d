package gpio

import (
	"errors"
	"fmt"
)

// FakeInputs is a test double that delivers scripted edges to handlers.
type FakeInputs struct {
	// Handlers maps input numbers (1-based) to edge handlers.
	Handlers map[int]EdgeHandler

	// RawLevels is returned by Levels.
	RawLevels []int

	// LevelsError, if set, will be returned by Levels().
	LevelsError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeInputs creates a FakeInputs with the given handlers and all lines
// idle high (pull-up).
func NewFakeInputs(handlers map[int]EdgeHandler) *FakeInputs {
	levels := make([]int, len(DefaultInputs))
	for i := range levels {
		levels[i] = 1
	}
	return &FakeInputs{Handlers: handlers, RawLevels: levels}
}

// Pulse delivers n falling edges on input.
func (f *FakeInputs) Pulse(input, n int) error {
	if f.Closed {
		return errors.New("inputs closed")
	}
	h, ok := f.Handlers[input]
	if !ok {
		return fmt.Errorf("no handler on input %d", input)
	}
	for i := 0; i < n; i++ {
		h()
	}
	return nil
}

var _ Inputs = (*FakeInputs)(nil)

// Levels returns the scripted raw levels.
func (f *FakeInputs) Levels() ([]int, error) {
	if f.LevelsError != nil {
		return nil, f.LevelsError
	}
	return f.RawLevels, nil
}

// Close marks the inputs as closed; further pulses fail.
func (f *FakeInputs) Close() error {
	f.Closed = true
	return nil
}
