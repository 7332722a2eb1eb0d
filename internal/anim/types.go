// Package anim contains the LED feedback animation state machine.
// This package has NO external dependencies (no GPIO, OS, or time.Sleep).
// Elapsed time is always injected through Tick.
package anim

// Mode selects which animation the engine is playing.
type Mode string

const (
	ModeIdle    Mode = "IDLE"
	ModeCoinIn  Mode = "COIN_IN"
	ModeCoinOut Mode = "COIN_OUT"
	ModeAlarm   Mode = "ALARM"
)

// NumLEDs is the number of feedback LEDs on the terminal.
const NumLEDs = 4

// Frame is one LED pattern; index i drives LED i (true = lit).
type Frame [NumLEDs]bool

// Output writes a frame to the physical LEDs. Implementations must not
// block: Render is called from the orchestration tick.
type Output interface {
	Render(f Frame)
}

// Sweep is the frame table played by every non-idle mode: a light running
// out and back, then all LEDs lit.
var Sweep = []Frame{
	{true, false, false, false},
	{false, true, false, false},
	{false, false, true, false},
	{false, false, false, true},
	{false, false, true, false},
	{false, true, false, false},
	{true, false, false, false},
	{true, true, true, true},
}
