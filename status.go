/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

// Status is the derived sobriety category of a participant. It is never
// stored independently of the consumption values it was computed from.
type Status string

const (
	StatusNormal  Status = "normal"
	StatusCaution Status = "caution"
	StatusDanger  Status = "danger"
)

// StatusThresholds holds the consumption percentages at which a
// participant crosses into caution and danger. Lower bounds are
// inclusive.
type StatusThresholds struct {
	Caution float64
	Danger  float64
}

// Classify maps consumed/capacity to a status. A non-positive capacity
// never reaches this function through the login path, but classifies as
// danger rather than dividing by zero.
func (t StatusThresholds) Classify(consumed, capacity float64) Status {
	if capacity <= 0 {
		return StatusDanger
	}

	ratio := consumed / capacity * 100

	switch {
	case ratio >= t.Danger:
		return StatusDanger
	case ratio >= t.Caution:
		return StatusCaution
	default:
		return StatusNormal
	}
}
