package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/couchcryptid/brevet-tracker/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkpoints(names ...string) []domain.Checkpoint {
	out := make([]domain.Checkpoint, len(names))
	for i, n := range names {
		out[i] = domain.Checkpoint{Name: n}
	}
	return out
}

func TestDiffArrivals(t *testing.T) {
	prev := domain.Snapshot{Riders: []domain.Rider{
		{RiderNo: "A12", Checkpoints: checkpoints("Start")},
		{RiderNo: "B07", Checkpoints: checkpoints("Start", "St Ives N")},
	}}
	next := domain.Snapshot{Riders: []domain.Rider{
		{RiderNo: "A12", Checkpoints: checkpoints("Start", "St Ives N", "Spalding N")},
		{RiderNo: "B07", Checkpoints: checkpoints("Start", "St Ives N")},
		{RiderNo: "C33", Checkpoints: checkpoints("Start")},
	}}

	got := domain.DiffArrivals(prev, next)
	require.Len(t, got, 3)

	var names []string
	for _, a := range got {
		names = append(names, a.Rider.RiderNo+"@"+a.Checkpoint().Name)
	}
	assert.Equal(t, []string{"A12@St Ives N", "A12@Spalding N", "C33@Start"}, names)
	assert.Equal(t, 1, got[0].Index)
}

func TestDiffArrivals_ShrunkLogReportsNothing(t *testing.T) {
	prev := domain.Snapshot{Riders: []domain.Rider{{RiderNo: "A12", Checkpoints: checkpoints("Start", "St Ives N")}}}
	next := domain.Snapshot{Riders: []domain.Rider{{RiderNo: "A12", Checkpoints: checkpoints("Start")}}}

	assert.Empty(t, domain.DiffArrivals(prev, next))
	assert.Empty(t, domain.DiffArrivals(next, next))
}

func TestSerializeArrival(t *testing.T) {
	observed := time.Date(2025, 8, 3, 10, 5, 0, 0, time.UTC)
	ev := domain.ArrivalEvent{
		RiderNo:        "A12",
		Name:           "Ada",
		Control:        "St Ives N",
		CheckpointTime: "Sunday 10:02",
		Km:             100,
		ElapsedMinutes: 287,
		AverageSpeed:   20.9,
		Status:         domain.StatusInProgress,
		ObservedAt:     observed,
	}

	out, err := domain.SerializeArrival(ev)
	require.NoError(t, err)

	assert.Equal(t, []byte("A12"), out.Key)
	assert.Equal(t, map[string]string{
		"control":     "St Ives N",
		"observed_at": "2025-08-03T10:05:00Z",
	}, out.Headers)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out.Value, &decoded))
	assert.Equal(t, "St Ives N", decoded["control"])
	assert.Equal(t, 100.0, decoded["km"])
	assert.NotContains(t, decoded, "arrived_at", "zero arrival time is omitted")
}
