package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Arrival identifies a checkpoint that appeared since the previous snapshot.
type Arrival struct {
	Rider Rider
	Index int
}

// Checkpoint returns the arrived checkpoint.
func (a Arrival) Checkpoint() Checkpoint { return a.Rider.Checkpoints[a.Index] }

// ArrivalEvent is the enriched form published to downstream consumers.
type ArrivalEvent struct {
	RiderNo        string    `json:"rider_no"`
	Name           string    `json:"name"`
	Control        string    `json:"control"`
	CheckpointTime string    `json:"checkpoint_time"`
	ArrivedAt      time.Time `json:"arrived_at,omitzero"`
	Km             float64   `json:"km"`
	ElapsedMinutes float64   `json:"elapsed_minutes"`
	AverageSpeed   float64   `json:"average_speed_kmh"`
	Status         Status    `json:"status"`
	ObservedAt     time.Time `json:"observed_at"`
}

// OutputEvent is a serialized event ready for a message broker.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// DiffArrivals returns the checkpoints present in next but not in prev, in
// feed order. Riders absent from prev contribute their full log.
// If a rider's log shrank or was rewritten, only the tail beyond the previous
// length is reported.
func DiffArrivals(prev, next Snapshot) []Arrival {
	seen := make(map[string]int, len(prev.Riders))
	for _, r := range prev.Riders {
		seen[r.RiderNo] = len(r.Checkpoints)
	}

	var out []Arrival
	for _, r := range next.Riders {
		for i := seen[r.RiderNo]; i < len(r.Checkpoints); i++ {
			out = append(out, Arrival{Rider: r, Index: i})
		}
	}
	return out
}

// SerializeArrival marshals an ArrivalEvent keyed by rider number so that all
// arrivals for a rider land on the same partition.
func SerializeArrival(ev ArrivalEvent) (OutputEvent, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize arrival event: %w", err)
	}
	return OutputEvent{
		Key:   []byte(ev.RiderNo),
		Value: data,
		Headers: map[string]string{
			"control":     ev.Control,
			"observed_at": ev.ObservedAt.Format(time.RFC3339),
		},
	}, nil
}
