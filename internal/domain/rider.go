package domain

import (
	"strings"
	"time"
)

// Leg is the directional half of the route a control belongs to.
type Leg string

const (
	LegNorth Leg = "north"
	LegSouth Leg = "south"
)

// ParseLeg normalises "N", "north", "South" etc. Unknown values map to LegNorth.
func ParseLeg(s string) Leg {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "s", "south":
		return LegSouth
	default:
		return LegNorth
	}
}

// Control is a named point on the route with a fixed cumulative distance.
type Control struct {
	Name     string  `json:"name" yaml:"name"`
	Km       float64 `json:"km" yaml:"km"`
	Leg      Leg     `json:"leg" yaml:"leg"`
	IsReturn bool    `json:"is_return,omitempty" yaml:"is_return"`
}

// Status is the feed-reported rider state.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusFinished   Status = "finished"
	StatusDNF        Status = "dnf"
)

// ParseStatus maps feed labels onto a Status. Unknown labels are treated as
// in progress since the rider is present in the feed.
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "not_started", "not started", "dns":
		return StatusNotStarted
	case "finished", "finish":
		return StatusFinished
	case "dnf":
		return StatusDNF
	default:
		return StatusInProgress
	}
}

// Checkpoint is an observed arrival at a control.
type Checkpoint struct {
	Name    string    `json:"name"`
	RawTime string    `json:"time"`
	At      time.Time `json:"at,omitzero"`
}

// Valid reports whether the checkpoint time was parsed successfully.
func (c Checkpoint) Valid() bool { return !c.At.IsZero() }

// Rider is a participant and their ordered checkpoint log. Index 0 is the start.
type Rider struct {
	RiderNo     string       `json:"rider_no"`
	Name        string       `json:"name"`
	Status      Status       `json:"status"`
	Checkpoints []Checkpoint `json:"checkpoints"`
}

// Last returns the most recent checkpoint, if any.
func (r Rider) Last() (Checkpoint, bool) {
	if len(r.Checkpoints) == 0 {
		return Checkpoint{}, false
	}
	return r.Checkpoints[len(r.Checkpoints)-1], true
}

// First returns the start checkpoint, if any.
func (r Rider) First() (Checkpoint, bool) {
	if len(r.Checkpoints) == 0 {
		return Checkpoint{}, false
	}
	return r.Checkpoints[0], true
}
