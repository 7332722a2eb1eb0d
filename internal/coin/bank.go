package coin

import "fmt"

// Bank owns one Channel per denomination and the mapping of each channel to
// its physical input number (1..NumInputs).
type Bank struct {
	channels []*Channel
	inputs   map[Denomination]int
}

// NewBank creates the channels. inputs maps every denomination to a distinct
// input number.
func NewBank(inputs map[Denomination]int) (*Bank, error) {
	seen := make(map[int]Denomination, len(inputs))
	b := &Bank{inputs: make(map[Denomination]int, len(Denominations))}

	for _, d := range Denominations {
		in, ok := inputs[d]
		if !ok {
			return nil, fmt.Errorf("no input assigned to %s", d)
		}
		if in < 1 || in > NumInputs {
			return nil, fmt.Errorf("%s: input %d out of range 1..%d", d, in, NumInputs)
		}
		if other, dup := seen[in]; dup {
			return nil, fmt.Errorf("input %d assigned to both %s and %s", in, other, d)
		}
		seen[in] = d
		b.inputs[d] = in
		b.channels = append(b.channels, NewChannel(d))
	}
	for d := range inputs {
		if !d.Valid() {
			return nil, fmt.Errorf("unknown denomination %q", d)
		}
	}
	return b, nil
}

// DefaultInputs is the reference wiring: denominations on inputs 1..7 in
// Denominations order.
func DefaultInputs() map[Denomination]int {
	m := make(map[Denomination]int, len(Denominations))
	for i, d := range Denominations {
		m[d] = i + 1
	}
	return m
}

// Channel returns the counter for d, or nil if d is unknown.
func (b *Bank) Channel(d Denomination) *Channel {
	for _, c := range b.channels {
		if c.denom == d {
			return c
		}
	}
	return nil
}

// Channels returns all counters in Denominations order.
func (b *Bank) Channels() []*Channel {
	return b.channels
}

// Input returns the input number wired to d.
func (b *Bank) Input(d Denomination) int {
	return b.inputs[d]
}
