// Package domain contains core concepts of the chat system.
// This file defines Participant entities and related invariants.
// No runtime, network, or storage logic should be added here.
package domain

import "time"

// Participant is a named presence record. A name identifies at most one
// active participant at any time.
type Participant struct {
	Name          string
	LastHeartbeat time.Time
}

func NewParticipant(name string, at time.Time) Participant {
	return Participant{Name: name, LastHeartbeat: at}
}

// ExpiredAt reports whether the participant has been silent for at least window.
func (p Participant) ExpiredAt(now time.Time, window time.Duration) bool {
	return now.Sub(p.LastHeartbeat) >= window
}
