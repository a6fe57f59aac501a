package domain

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// TimeParser converts a feed checkpoint time string into an absolute instant.
type TimeParser interface {
	Parse(raw string) (time.Time, error)
}

// Snapshot is one parsed copy of the tracking feed.
type Snapshot struct {
	Controls    []Control `json:"controls"`
	Riders      []Rider   `json:"riders"`
	LastUpdated time.Time `json:"last_updated"`
}

// Rider looks up a rider by number.
func (s Snapshot) Rider(riderNo string) (Rider, bool) {
	for _, r := range s.Riders {
		if r.RiderNo == riderNo {
			return r, true
		}
	}
	return Rider{}, false
}

// Raw feed shapes.

type rawFeed struct {
	Event struct {
		Controls []rawControl `json:"controls"`
	} `json:"event"`
	Riders      []rawRider `json:"riders"`
	LastUpdated string     `json:"last_updated"`
}

type rawControl struct {
	Name     string  `json:"name"`
	Km       float64 `json:"km"`
	Leg      string  `json:"leg"`
	IsReturn bool    `json:"is_return"`
}

type rawRider struct {
	RiderNo     string          `json:"rider_no"`
	Name        string          `json:"name"`
	Status      string          `json:"status"`
	Checkpoints []rawCheckpoint `json:"checkpoints"`
}

type rawCheckpoint struct {
	Name string `json:"name"`
	Time string `json:"time"`
}

// ParseSnapshot decodes a tracking feed document. Checkpoint times are parsed
// eagerly with parser; unparsable times are logged and left zero rather than
// failing the whole snapshot.
func ParseSnapshot(data []byte, parser TimeParser, logger *slog.Logger) (Snapshot, error) {
	var feed rawFeed
	if err := json.Unmarshal(data, &feed); err != nil {
		return Snapshot{}, fmt.Errorf("parse tracking feed: %w", err)
	}

	snap := Snapshot{
		Controls: make([]Control, 0, len(feed.Event.Controls)),
		Riders:   make([]Rider, 0, len(feed.Riders)),
	}
	for _, c := range feed.Event.Controls {
		snap.Controls = append(snap.Controls, Control{
			Name:     c.Name,
			Km:       c.Km,
			Leg:      ParseLeg(c.Leg),
			IsReturn: c.IsReturn,
		})
	}

	if feed.LastUpdated != "" {
		if ts, err := time.Parse(time.RFC3339, feed.LastUpdated); err == nil {
			snap.LastUpdated = ts
		} else {
			logger.Warn("invalid last_updated", "value", feed.LastUpdated, "error", err)
		}
	}

	for _, rr := range feed.Riders {
		if rr.RiderNo == "" {
			logger.Warn("skipping rider without number", "name", rr.Name)
			continue
		}
		rider := Rider{
			RiderNo:     rr.RiderNo,
			Name:        rr.Name,
			Status:      ParseStatus(rr.Status),
			Checkpoints: make([]Checkpoint, 0, len(rr.Checkpoints)),
		}
		for _, rc := range rr.Checkpoints {
			cp := Checkpoint{Name: rc.Name, RawTime: rc.Time}
			at, err := parser.Parse(rc.Time)
			if err != nil {
				logger.Warn("unparsable checkpoint time",
					"rider_no", rr.RiderNo,
					"checkpoint", rc.Name,
					"time", rc.Time,
					"error", err,
				)
			} else {
				cp.At = at
			}
			rider.Checkpoints = append(rider.Checkpoints, cp)
		}
		snap.Riders = append(snap.Riders, rider)
	}

	return snap, nil
}
