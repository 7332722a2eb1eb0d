package coin

import "fmt"

// Denomination names a logical validator channel.
type Denomination string

const (
	Coin10Cent Denomination = "coin_10_cent"
	Coin20Cent Denomination = "coin_20_cent"
	Coin50Cent Denomination = "coin_50_cent"
	Coin1Eur   Denomination = "coin_1_eur"
	Coin2Eur   Denomination = "coin_2_eur"
	EurTotal   Denomination = "eur_total" // one pulse per euro from the bill validator, counted only
	Alarm      Denomination = "alarm"     // tamper/alarm line, counted only
)

// Denominations lists every logical channel in wiring order.
var Denominations = []Denomination{
	Coin10Cent,
	Coin20Cent,
	Coin50Cent,
	Coin1Eur,
	Coin2Eur,
	EurTotal,
	Alarm,
}

// NumInputs is the number of physical pulse input lines on the terminal.
const NumInputs = 7

// UnitValue returns the value of one pulse in cents. Channels without a
// monetary value return 0.
func (d Denomination) UnitValue() uint32 {
	switch d {
	case Coin10Cent:
		return 10
	case Coin20Cent:
		return 20
	case Coin50Cent:
		return 50
	case Coin1Eur:
		return 100
	case Coin2Eur:
		return 200
	default:
		return 0
	}
}

// Valid reports whether d is one of the known denominations.
func (d Denomination) Valid() bool {
	for _, known := range Denominations {
		if d == known {
			return true
		}
	}
	return false
}

// FormatCents renders a cent amount as "<major>.<minor>" with a two-digit,
// zero-padded minor part: 250 -> "2.50", 5 -> "0.05".
func FormatCents(cents uint64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
