package telemetry

import (
	"context"
	"errors"
)

// Write is one recorded sink call.
type Write struct {
	Display bool // false = value write

	ID    int // value writes
	Value string

	Column, Row, Line int // display writes
	Text              string
}

// FakeSink records writes for test assertions.
type FakeSink struct {
	// Writes contains every successful value and display write, in order.
	Writes []Write

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// WriteError, if set, is returned by WriteValue and WriteDisplay.
	WriteError error

	// FailAt, if > 0, makes the FailAt-th write call (1-based) return
	// FailError (or a generic error when FailError is nil).
	FailAt    int
	FailError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Connected controls the return value of IsConnected.
	Connected bool

	// ReconnectCalls counts calls to Reconnect. Reconnect sets Connected.
	ReconnectCalls int
	ReconnectError error

	// OnWrite, if set, is called for each write attempt before it is recorded.
	OnWrite func(Write)

	// Closed tracks if Close was called.
	Closed bool

	calls int
}

// NewFakeSink creates a connected FakeSink.
func NewFakeSink() *FakeSink {
	return &FakeSink{Connected: true}
}

func (f *FakeSink) record(w Write) error {
	f.calls++
	if f.OnWrite != nil {
		f.OnWrite(w)
	}
	if f.WriteError != nil {
		return f.WriteError
	}
	if f.FailAt > 0 && f.calls == f.FailAt {
		if f.FailError != nil {
			return f.FailError
		}
		return errors.New("fake sink failure")
	}
	f.Writes = append(f.Writes, w)
	return nil
}

// WriteValue records a value write.
func (f *FakeSink) WriteValue(id int, value string) error {
	return f.record(Write{ID: id, Value: value})
}

// WriteDisplay records a display write.
func (f *FakeSink) WriteDisplay(column, row, line int, text string) error {
	return f.record(Write{Display: true, Column: column, Row: row, Line: line, Text: text})
}

// PublishSystem records the system event.
func (f *FakeSink) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	f.SystemEvents = append(f.SystemEvents, event)
	return nil
}

// IsConnected reports whether the fake sink is "connected".
func (f *FakeSink) IsConnected() bool {
	return f.Connected
}

// Reconnect marks the sink connected unless ReconnectError is set.
func (f *FakeSink) Reconnect(ctx context.Context) error {
	f.ReconnectCalls++
	if f.ReconnectError != nil {
		return f.ReconnectError
	}
	f.Connected = true
	return ctx.Err()
}

// Close marks the sink as closed.
func (f *FakeSink) Close() error {
	f.Closed = true
	return nil
}

// Values returns the recorded value writes as id -> last value.
func (f *FakeSink) Values() map[int]string {
	m := make(map[int]string)
	for _, w := range f.Writes {
		if !w.Display {
			m[w.ID] = w.Value
		}
	}
	return m
}

// Displays returns only the recorded display writes.
func (f *FakeSink) Displays() []Write {
	var out []Write
	for _, w := range f.Writes {
		if w.Display {
			out = append(out, w)
		}
	}
	return out
}

// Reset clears recorded writes and injected failures.
func (f *FakeSink) Reset() {
	f.Writes = nil
	f.SystemEvents = nil
	f.WriteError = nil
	f.FailAt = 0
	f.FailError = nil
	f.PublishSystemError = nil
	f.calls = 0
}
