// Package domain models riders, controls and checkpoints of a long-distance
// audax event as published by the organiser's live tracking feed.
//
// # Tracking Feed
//
// The feed is a single JSON document refreshed every few minutes:
//
//	{
//	  "event":   {"controls": [{"name": "St Ives N", "km": 100, "leg": "north"}, ...]},
//	  "riders":  [{"rider_no": "A12", "name": "...", "status": "in_progress",
//	               "checkpoints": [{"name": "Start", "time": "Sunday 05:15"}, ...]}],
//	  "last_updated": "2025-08-04T10:12:00+01:00"
//	}
//
// # Checkpoint Time Format
//
// Checkpoint times carry no date. Two encodings appear in the wild:
//
//	"<DayName> HH:MM"  e.g. "Monday 02:15"  (first such weekday on or after the start date)
//	"D/M HH:MM"        e.g. "3/8 19:32"     (day/month in the event year)
//
// Both are local times in the event timezone. They are parsed once, when a
// snapshot is ingested, into [Checkpoint.At]. A checkpoint whose time cannot
// be parsed keeps a zero At and is ignored by time arithmetic downstream.
//
// # Status
//
// The feed reports one of not_started, in_progress, finished or dnf. The
// dashboard may display a rider as DNF when updates go stale, without changing
// the feed-provided [Rider.Status].
//
// # Checkpoint Lifecycle
//
// Checkpoints are append-only between snapshots. [DiffArrivals] relies on this
// to extract new arrivals from two consecutive snapshots.
package domain
