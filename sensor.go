/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var errInvalidReading = errors.New("invalid sensor reading")

// SensorTiers quantizes a raw weight reading into a consumption delta.
// Low/High are the weight thresholds and Half/Full the deltas they map
// to. Two scale calibrations exist in the wild (0.01/0.6 normalized,
// 1/18 raw-unit), so none of these values are hardcoded.
type SensorTiers struct {
	Low  float64
	High float64
	Half float64
	Full float64
}

// Normalize parses a raw device payload and returns the consumption
// delta it quantizes to. The tier table is evaluated top-down, first
// match wins:
//
//	magnitude >= High        -> Full
//	Low < magnitude < High   -> Half
//	anything else            -> 0, errInvalidReading
//
// Unparseable payloads also return 0 with errInvalidReading; the caller
// logs and moves on.
func (t SensorTiers) Normalize(payload []byte) (float64, error) {
	text := strings.TrimSpace(string(payload))

	magnitude, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: unparseable payload %q", errInvalidReading, text)
	}

	switch {
	case magnitude >= t.High:
		return t.Full, nil
	case magnitude > t.Low:
		return t.Half, nil
	default:
		return 0, fmt.Errorf("%w: magnitude %g at or below threshold %g", errInvalidReading, magnitude, t.Low)
	}
}
