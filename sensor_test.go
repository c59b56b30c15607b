/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCalibratedScale(t *testing.T) {
	tiers := SensorTiers{Low: 0.01, High: 0.6, Half: 0.5, Full: 1.0}

	tests := []struct {
		payload string
		want    float64
		wantErr bool
	}{
		{"0.8", 1.0, false},
		{"0.6", 1.0, false}, // high threshold is inclusive
		{"0.3", 0.5, false},
		{"0.011", 0.5, false},
		{"0.01", 0, true}, // low threshold is exclusive
		{"0.005", 0, true},
		{"0", 0, true},
		{"-1", 0, true},
		{"", 0, true},
		{"junk", 0, true},
	}

	for _, tc := range tests {
		delta, err := tiers.Normalize([]byte(tc.payload))
		if tc.wantErr {
			require.ErrorIs(t, err, errInvalidReading, "payload=%q", tc.payload)
		} else {
			require.NoError(t, err, "payload=%q", tc.payload)
		}
		assert.Equal(t, tc.want, delta, "payload=%q", tc.payload)
	}
}

func TestNormalizeRawUnitScale(t *testing.T) {
	tiers := SensorTiers{Low: 1, High: 18, Half: 0.5, Full: 1.0}

	delta, err := tiers.Normalize([]byte("20"))
	require.NoError(t, err)
	assert.Equal(t, 1.0, delta)

	delta, err = tiers.Normalize([]byte("5"))
	require.NoError(t, err)
	assert.Equal(t, 0.5, delta)

	_, err = tiers.Normalize([]byte("1"))
	assert.ErrorIs(t, err, errInvalidReading)

	_, err = tiers.Normalize([]byte("0.5"))
	assert.ErrorIs(t, err, errInvalidReading)
}

func TestNormalizeTrimsPayload(t *testing.T) {
	tiers := SensorTiers{Low: 0.01, High: 0.6, Half: 0.5, Full: 1.0}

	delta, err := tiers.Normalize([]byte("  0.8\r\n"))
	require.NoError(t, err)
	assert.Equal(t, 1.0, delta)
}

func TestNormalizeIsDeterministic(t *testing.T) {
	tiers := SensorTiers{Low: 0.01, High: 0.6, Half: 0.5, Full: 1.0}

	first, err := tiers.Normalize([]byte("0.4"))
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		delta, err := tiers.Normalize([]byte("0.4"))
		require.NoError(t, err)
		require.Equal(t, first, delta)
	}
}
