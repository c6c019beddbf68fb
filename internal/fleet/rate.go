package fleet

import "math"

// Rate yields the energy consumed or recharged in one frame.
type Rate interface {
	Amount(ship ShipState, dt float64) float64
}

// FixedRate is a constant amount per frame, independent of the frame length.
type FixedRate float64

func (r FixedRate) Amount(ShipState, float64) float64 { return float64(r) }

// Computed derives the amount from the ship and the frame length in seconds.
type Computed func(ship ShipState, dt float64) float64

func (c Computed) Amount(ship ShipState, dt float64) float64 {
	if c == nil {
		return 0
	}
	return c(ship, dt)
}

func evalRate(r Rate, ship ShipState, dt float64) float64 {
	if r == nil {
		return 0
	}
	v := r.Amount(ship, dt)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
