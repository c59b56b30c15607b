/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"sync"
)

var errDuplicateConnection = errors.New("connection id already in roster")

// Participant holds the data we store server-side for one connected
// drinker. Status is derived from Consumed/Capacity and only ever
// written next to the values it was computed from.
type Participant struct {
	ConnID   string
	Name     string
	Capacity float64
	Consumed float64
	Status   Status
}

// Roster is the authoritative table of connected participants, keyed by
// connection ID and kept in insertion order. It is the only mutable
// state shared between the hub and the device feedback loop, so every
// mutation runs under its mutex.
type Roster struct {
	mu         sync.RWMutex
	thresholds StatusThresholds
	order      []string
	byID       map[string]*Participant
}

func newRoster(thresholds StatusThresholds) *Roster {
	return &Roster{
		thresholds: thresholds,
		byID:       make(map[string]*Participant),
	}
}

// Admit inserts a new participant with its status freshly derived.
// A duplicate connection ID means the session gate misfired; the admit
// is refused rather than clobbering the existing entry.
func (ro *Roster) Admit(connID, name string, capacity, consumed float64) (Participant, error) {
	ro.mu.Lock()
	defer ro.mu.Unlock()

	if _, ok := ro.byID[connID]; ok {
		return Participant{}, errDuplicateConnection
	}

	p := &Participant{
		ConnID:   connID,
		Name:     name,
		Capacity: capacity,
		Consumed: consumed,
		Status:   ro.thresholds.Classify(consumed, capacity),
	}

	ro.byID[connID] = p
	ro.order = append(ro.order, connID)

	return *p, nil
}

// Remove drops and returns the participant for connID. Removing an
// unknown connection is a no-op, reported via the second return value.
func (ro *Roster) Remove(connID string) (Participant, bool) {
	ro.mu.Lock()
	defer ro.mu.Unlock()

	p, ok := ro.byID[connID]
	if !ok {
		return Participant{}, false
	}

	delete(ro.byID, connID)

	dst := ro.order[:0]
	for _, id := range ro.order {
		if id == connID {
			continue
		}
		dst = append(dst, id)
	}
	ro.order = dst

	return *p, true
}

// ApplyGroupIncrement adds delta to every participant's consumption and
// re-derives each status inside a single critical section, so a
// participant admitted concurrently either fully receives or fully
// misses the increment.
func (ro *Roster) ApplyGroupIncrement(delta float64) {
	ro.mu.Lock()
	defer ro.mu.Unlock()

	for _, id := range ro.order {
		p := ro.byID[id]
		p.Consumed += delta
		p.Status = ro.thresholds.Classify(p.Consumed, p.Capacity)
	}
}

// Snapshot returns value copies of every participant in insertion
// order. Callers cannot reach the roster's own entries through it.
func (ro *Roster) Snapshot() []Participant {
	ro.mu.RLock()
	defer ro.mu.RUnlock()

	out := make([]Participant, 0, len(ro.order))
	for _, id := range ro.order {
		out = append(out, *ro.byID[id])
	}

	return out
}

func (ro *Roster) Len() int {
	ro.mu.RLock()
	defer ro.mu.RUnlock()

	return len(ro.order)
}
