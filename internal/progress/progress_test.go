package progress

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/brevet-tracker/internal/domain"
	"github.com/couchcryptid/brevet-tracker/internal/eventtime"
	"github.com/couchcryptid/brevet-tracker/internal/route"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCalculator(t *testing.T) *Calculator {
	t.Helper()
	tbl, err := route.NewTable(route.File{
		Controls: []route.ControlEntry{
			{Name: "Start", Km: 0},
			{Name: "Control A", Km: 100, Leg: "north"},
			{Name: "Control B", Km: 250, Leg: "north"},
		},
		StartVariants: []route.StartVariant{{Name: "south", OffsetKm: 20, Prefixes: []string{"L"}}},
	})
	require.NoError(t, err)
	times, err := eventtime.NewResolver("Europe/London", "2025-08-03", discardLogger())
	require.NoError(t, err)
	return NewCalculator(tbl, times, 0)
}

// rider builds a rider from name/time pairs, parsing times the way snapshot ingestion does.
func rider(t *testing.T, c *Calculator, no string, status domain.Status, pairs ...string) domain.Rider {
	t.Helper()
	require.Zero(t, len(pairs)%2)
	r := domain.Rider{RiderNo: no, Name: "Rider " + no, Status: status}
	for i := 0; i < len(pairs); i += 2 {
		cp := domain.Checkpoint{Name: pairs[i], RawTime: pairs[i+1]}
		if at, err := c.Times().Parse(pairs[i+1]); err == nil {
			cp.At = at
		}
		r.Checkpoints = append(r.Checkpoints, cp)
	}
	return r
}

func at(t *testing.T, c *Calculator, raw string) time.Time {
	t.Helper()
	ts, err := c.Times().Parse(raw)
	require.NoError(t, err)
	return ts
}

func TestZeroCheckpoints(t *testing.T) {
	c := newTestCalculator(t)
	r := rider(t, c, "A1", domain.StatusNotStarted)
	now := at(t, c, "Wednesday 12:00")

	assert.Zero(t, c.DistanceCovered(r))
	assert.Zero(t, c.AverageSpeed(r))
	assert.False(t, c.IsDNF(r, now))
	_, ok := c.TimeSinceLastCheckpoint(r, now)
	assert.False(t, ok)
	_, ok = c.NextControlETA(r, now)
	assert.False(t, ok)
}

func TestWorkedExample(t *testing.T) {
	c := newTestCalculator(t)
	r := rider(t, c, "A1", domain.StatusInProgress, "Start", "Sunday 08:00", "Control A", "Sunday 14:00")

	assert.Equal(t, 100.0, c.DistanceCovered(r))
	assert.Equal(t, 360.0, c.LastElapsedMinutes(r))
	assert.InDelta(t, 16.67, c.AverageSpeed(r), 0.005)
	assert.InDelta(t, 16.67, c.LegSpeed(r, 1), 0.005)
}

func TestElapsedMinutes_StartIsAlwaysZero(t *testing.T) {
	c := newTestCalculator(t)
	for _, raw := range []string{"Sunday 08:00", "Saturday 23:59", "garbage"} {
		r := rider(t, c, "A1", domain.StatusInProgress, "Start", raw, "Control A", "Sunday 14:00")
		assert.Zero(t, c.ElapsedMinutes(r, 0), raw)
	}
}

func TestElapsedMinutes_Degrades(t *testing.T) {
	c := newTestCalculator(t)

	bad := rider(t, c, "A1", domain.StatusInProgress, "Start", "Sunday 08:00", "Control A", "nonsense")
	assert.Zero(t, c.ElapsedMinutes(bad, 1))
	assert.Zero(t, c.AverageSpeed(bad))

	backwards := rider(t, c, "A2", domain.StatusInProgress, "Start", "Sunday 08:00", "Control A", "3/8 07:00")
	assert.Zero(t, c.ElapsedMinutes(backwards, 1))
	assert.Zero(t, c.ElapsedMinutes(backwards, 5), "out of range index")

	multiDay := rider(t, c, "A3", domain.StatusInProgress, "Start", "Sunday 08:00", "Control B", "Monday 09:30")
	assert.Equal(t, 25*60+30.0, c.LastElapsedMinutes(multiDay))
}

func TestDistanceCovered(t *testing.T) {
	c := newTestCalculator(t)

	onlyLastMatters := rider(t, c, "A1", domain.StatusInProgress, "Start", "Sunday 08:00", "Control B", "Sunday 20:00", "Control A", "Sunday 22:00")
	assert.Equal(t, 100.0, c.DistanceCovered(onlyLastMatters))

	unresolved := rider(t, c, "A2", domain.StatusInProgress, "Start", "Sunday 08:00", "Somewhere Else", "Sunday 10:00")
	assert.Zero(t, c.DistanceCovered(unresolved))
	assert.Zero(t, c.AverageSpeed(unresolved))
	assert.Zero(t, c.LegSpeed(unresolved, 1))

	southern := rider(t, c, "L5", domain.StatusInProgress, "Start", "Sunday 08:00", "Control A", "Sunday 14:00")
	assert.Equal(t, 120.0, c.DistanceCovered(southern))
	assert.InDelta(t, 20.0, c.AverageSpeed(southern), 1e-9)
}

func TestLegSpeed(t *testing.T) {
	c := newTestCalculator(t)
	r := rider(t, c, "A1", domain.StatusInProgress,
		"Start", "Sunday 08:00",
		"Control A", "Sunday 13:00",
		"Control B", "Sunday 23:00",
	)

	assert.InDelta(t, 20.0, c.LegSpeed(r, 1), 1e-9)
	assert.InDelta(t, 15.0, c.LegSpeed(r, 2), 1e-9)
	assert.Zero(t, c.LegSpeed(r, 0))
	assert.Zero(t, c.LegSpeed(r, 3))

	sameTime := rider(t, c, "A2", domain.StatusInProgress, "Start", "Sunday 08:00", "Control A", "Sunday 08:00")
	assert.Zero(t, c.LegSpeed(sameTime, 1))
}

func TestIsDNF(t *testing.T) {
	c := newTestCalculator(t)
	r := rider(t, c, "A1", domain.StatusInProgress, "Start", "Sunday 08:00", "Control A", "Sunday 14:00")
	last := at(t, c, "Sunday 14:00")

	assert.False(t, c.IsDNF(r, last.Add(15*time.Hour+59*time.Minute)))
	assert.True(t, c.IsDNF(r, last.Add(16*time.Hour)))
	assert.True(t, c.IsDNF(r, last.Add(40*time.Hour)))
	assert.Equal(t, domain.StatusDNF, c.DisplayStatus(r, last.Add(16*time.Hour)))
	assert.Equal(t, domain.StatusInProgress, r.Status, "display status must not mutate the rider")

	// A fresh check-in flips the inference straight back.
	now := last.Add(20 * time.Hour)
	r.Checkpoints = append(r.Checkpoints, domain.Checkpoint{Name: "Control B", RawTime: "Monday 09:00", At: at(t, c, "Monday 09:00")})
	assert.False(t, c.IsDNF(r, now))
	assert.Equal(t, domain.StatusInProgress, c.DisplayStatus(r, now))
}

func TestIsDNF_FeedStatusIsAuthoritative(t *testing.T) {
	c := newTestCalculator(t)
	now := at(t, c, "Saturday 12:00")

	finished := rider(t, c, "A1", domain.StatusFinished, "Start", "Sunday 08:00", "Control B", "Sunday 20:00")
	assert.False(t, c.IsDNF(finished, now))

	withdrawn := rider(t, c, "A2", domain.StatusDNF, "Start", "Sunday 08:00", "Control A", "Sunday 14:00")
	assert.True(t, c.IsDNF(withdrawn, at(t, c, "Sunday 14:01")))

	unparsable := rider(t, c, "A3", domain.StatusInProgress, "Start", "???")
	assert.False(t, c.IsDNF(unparsable, now))
}

func TestIsDNF_CustomThreshold(t *testing.T) {
	c := newTestCalculator(t)
	c = NewCalculator(c.Routes(), c.Times(), 12*time.Hour)
	assert.Equal(t, 12*time.Hour, c.DNFThreshold())

	r := rider(t, c, "A1", domain.StatusInProgress, "Start", "Sunday 08:00")
	assert.True(t, c.IsDNF(r, at(t, c, "Sunday 20:00")))
}

func TestTimeSinceLastCheckpoint(t *testing.T) {
	c := newTestCalculator(t)
	r := rider(t, c, "A1", domain.StatusInProgress, "Start", "Sunday 08:00", "Control A", "Sunday 14:00")

	ago, ok := c.TimeSinceLastCheckpoint(r, at(t, c, "Sunday 16:30"))
	require.True(t, ok)
	assert.Equal(t, "2h 30m ago", ago)

	ago, ok = c.TimeSinceLastCheckpoint(r, at(t, c, "Sunday 13:00"))
	require.True(t, ok)
	assert.Equal(t, "just now", ago, "future checkpoints clamp to zero age")

	bad := rider(t, c, "A2", domain.StatusInProgress, "Start", "whenever")
	ago, ok = c.TimeSinceLastCheckpoint(bad, at(t, c, "Sunday 16:30"))
	require.True(t, ok)
	assert.Empty(t, ago)
}

func TestNextControlETA(t *testing.T) {
	c := newTestCalculator(t)
	r := rider(t, c, "A1", domain.StatusInProgress, "Start", "Sunday 08:00", "Control A", "Sunday 13:00")

	eta, ok := c.NextControlETA(r, at(t, c, "Sunday 14:00"))
	require.True(t, ok)
	assert.Equal(t, "Control B", eta.Control.Name)
	assert.Equal(t, 150.0, eta.RemainingKm)
	assert.True(t, at(t, c, "Sunday 20:30").Equal(eta.At), "150 km at 20 km/h from 13:00")

	atFinish := rider(t, c, "A2", domain.StatusInProgress, "Start", "Sunday 08:00", "Control B", "Sunday 20:00")
	_, ok = c.NextControlETA(atFinish, at(t, c, "Sunday 21:00"))
	assert.False(t, ok)

	justStarted := rider(t, c, "A3", domain.StatusInProgress, "Start", "Sunday 08:00")
	_, ok = c.NextControlETA(justStarted, at(t, c, "Sunday 09:00"))
	assert.False(t, ok, "no speed yet")

	_, ok = c.NextControlETA(r, at(t, c, "Monday 06:00"))
	assert.False(t, ok, "stale riders are DNF")
}
