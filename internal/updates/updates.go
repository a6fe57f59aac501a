// Package updates builds the "latest arrivals" feed across all riders.
package updates

import (
	"log/slog"
	"sort"
	"time"

	"github.com/couchcryptid/brevet-tracker/internal/domain"
	"github.com/couchcryptid/brevet-tracker/internal/eventtime"
	"github.com/couchcryptid/brevet-tracker/internal/route"
)

const (
	// MaxEntries caps the feed length.
	MaxEntries = 10
	// Window is how far back an arrival may be to appear in the feed.
	Window = 24 * time.Hour
)

// Entry is one rider's most recent arrival.
type Entry struct {
	RiderNo    string    `json:"rider_no"`
	Name       string    `json:"name"`
	Control    string    `json:"control"`
	Km         float64   `json:"km"`
	At         time.Time `json:"at"`
	MinutesAgo float64   `json:"minutes_ago"`
	Ago        string    `json:"ago"`
}

// Feed derives recent arrivals.
type Feed struct {
	routes *route.Table
	logger *slog.Logger
}

// NewFeed creates an update Feed.
func NewFeed(routes *route.Table, logger *slog.Logger) *Feed {
	return &Feed{routes: routes, logger: logger}
}

// Recent returns each rider's last checkpoint when it falls within the
// trailing Window before now, most recent first, at most MaxEntries long.
// Entries dated after now are a parsing anomaly and are dropped.
func (f *Feed) Recent(riders []domain.Rider, now time.Time) []Entry {
	entries := make([]Entry, 0, len(riders))
	for _, r := range riders {
		last, ok := r.Last()
		if !ok || !last.Valid() {
			continue
		}
		age := now.Sub(last.At)
		if age < 0 {
			f.logger.Debug("dropping future checkpoint from update feed",
				"rider_no", r.RiderNo,
				"checkpoint", last.Name,
				"time", last.RawTime,
			)
			continue
		}
		if age > Window {
			continue
		}
		entries = append(entries, Entry{
			RiderNo:    r.RiderNo,
			Name:       r.Name,
			Control:    last.Name,
			Km:         f.routes.Distance(last.Name, r.RiderNo),
			At:         last.At,
			MinutesAgo: age.Minutes(),
			Ago:        eventtime.FormatAgo(age),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].MinutesAgo != entries[j].MinutesAgo {
			return entries[i].MinutesAgo < entries[j].MinutesAgo
		}
		return entries[i].RiderNo < entries[j].RiderNo
	})
	if len(entries) > MaxEntries {
		entries = entries[:MaxEntries]
	}
	return entries
}
