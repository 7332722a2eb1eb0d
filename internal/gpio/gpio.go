// Package gpio connects validator pulse lines and feedback LEDs to the
// Linux GPIO character device.
// The real implementation uses go-gpiocdev; the fakes allow testing without
// hardware.
package gpio

import "github.com/sweeney/coin-acceptor/internal/anim"

// EdgeHandler is called once per falling edge on a pulse input. It runs on
// the GPIO event goroutine and must return quickly without blocking.
type EdgeHandler func()

// Inputs watches the pulse input lines.
type Inputs interface {
	// Levels returns the current raw level of every input line, in input
	// number order.
	Levels() ([]int, error)

	// Close stops edge delivery and releases the lines.
	Close() error
}

// LEDs drives the feedback LED lines.
type LEDs interface {
	anim.Output

	// Levels returns the driven level of every LED line, 1 meaning lit.
	Levels() ([]int, error)

	Close() error
}

// Default line offsets (BCM numbering) on the reference board.
var (
	// DefaultInputs are the pulse inputs 1..7.
	DefaultInputs = []int{17, 27, 22, 5, 6, 13, 19}

	// DefaultLEDs are the four feedback LEDs, left to right.
	DefaultLEDs = []int{12, 16, 20, 21}
)

// DefaultChip is the GPIO chip carrying the header pins.
const DefaultChip = "gpiochip0"

const consumer = "coin-acceptor"
