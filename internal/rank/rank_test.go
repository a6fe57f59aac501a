package rank

import (
	"testing"
	"time"

	"github.com/couchcryptid/brevet-tracker/internal/domain"
	"github.com/couchcryptid/brevet-tracker/internal/route"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var eventStart = time.Date(2025, time.August, 3, 8, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	tbl, err := route.NewTable(route.File{
		Controls: []route.ControlEntry{
			{Name: "Control A", Km: 100},
			{Name: "Control B", Km: 250},
		},
		StartVariants: []route.StartVariant{{Name: "south", OffsetKm: 20, Prefixes: []string{"L"}}},
	})
	require.NoError(t, err)
	return NewEngine(tbl)
}

// riderAt builds a rider who started at eventStart and reached each control
// after the given number of minutes.
func riderAt(no string, stops ...any) domain.Rider {
	r := domain.Rider{
		RiderNo:     no,
		Status:      domain.StatusInProgress,
		Checkpoints: []domain.Checkpoint{{Name: "Start", At: eventStart}},
	}
	for i := 0; i+1 < len(stops); i += 2 {
		r.Checkpoints = append(r.Checkpoints, domain.Checkpoint{
			Name: stops[i].(string),
			At:   eventStart.Add(time.Duration(stops[i+1].(int)) * time.Minute),
		})
	}
	return r
}

func TestRank_FastestFirst(t *testing.T) {
	e := newTestEngine(t)
	x := riderAt("X", "Control A", 200, "Control B", 500)
	y := riderAt("Y", "Control A", 190, "Control B", 480)

	pos, ok := e.Rank(y, []domain.Rider{x, y})
	require.True(t, ok)
	assert.Equal(t, Position{Position: 1, Total: 2}, pos)

	pos, ok = e.Rank(x, []domain.Rider{x, y})
	require.True(t, ok)
	assert.Equal(t, Position{Position: 2, Total: 2}, pos)
}

func TestRank_OnlyPeersAtOrBeyondTarget(t *testing.T) {
	e := newTestEngine(t)
	behind := riderAt("B", "Control A", 100)
	target := riderAt("T", "Control B", 600)
	ahead := riderAt("C", "Control B", 550)
	southern := riderAt("L1", "Control B", 590)

	all := []domain.Rider{behind, target, ahead, southern}
	pos, ok := e.Rank(target, all)
	require.True(t, ok)
	assert.Equal(t, Position{Position: 3, Total: 3}, pos, "the Control A rider is not a peer")

	pos, ok = e.Rank(behind, all)
	require.True(t, ok)
	assert.Equal(t, Position{Position: 1, Total: 4}, pos)
}

func TestRank_ExcludesNonPositiveElapsed(t *testing.T) {
	e := newTestEngine(t)
	target := riderAt("T", "Control A", 300)
	zero := riderAt("Z", "Control A", 0)
	negative := riderAt("N", "Control A", -30)
	unparsed := riderAt("U", "Control A", 100)
	unparsed.Checkpoints[1].At = time.Time{}

	pos, ok := e.Rank(target, []domain.Rider{target, zero, negative, unparsed})
	require.True(t, ok)
	assert.Equal(t, Position{Position: 1, Total: 1}, pos)

	_, ok = e.Rank(zero, []domain.Rider{target, zero})
	assert.False(t, ok)
}

func TestRank_Degenerate(t *testing.T) {
	e := newTestEngine(t)

	onlyStart := riderAt("S")
	_, ok := e.Rank(onlyStart, []domain.Rider{onlyStart})
	assert.False(t, ok)

	notStarted := riderAt("N", "Control A", 100)
	notStarted.Status = domain.StatusNotStarted
	_, ok = e.Rank(notStarted, []domain.Rider{notStarted})
	assert.False(t, ok)

	alone := riderAt("A", "Control A", 100)
	pos, ok := e.Rank(alone, []domain.Rider{alone})
	require.True(t, ok)
	assert.Equal(t, Position{Position: 1, Total: 1}, pos)
}

func TestRank_TiesBreakByRiderNumber(t *testing.T) {
	e := newTestEngine(t)
	a := riderAt("A", "Control A", 300)
	b := riderAt("B", "Control A", 300)

	pa, _ := e.Rank(a, []domain.Rider{b, a})
	pb, _ := e.Rank(b, []domain.Rider{b, a})
	assert.Equal(t, 1, pa.Position)
	assert.Equal(t, 2, pb.Position)
}

func TestRank_MultiDayElapsed(t *testing.T) {
	e := newTestEngine(t)
	// 25h elapsed must rank behind 23h elapsed even though 25h wraps to 1h on a clock face.
	slow := riderAt("S", "Control B", 25*60)
	fast := riderAt("F", "Control B", 23*60)

	pos, ok := e.Rank(slow, []domain.Rider{slow, fast})
	require.True(t, ok)
	assert.Equal(t, 2, pos.Position)
}

func TestRankAll_MatchesRank(t *testing.T) {
	e := newTestEngine(t)
	all := []domain.Rider{
		riderAt("A", "Control A", 300),
		riderAt("B", "Control B", 700),
		riderAt("C", "Control B", 650),
		riderAt("D", "Control A", 280),
		riderAt("E"),
		riderAt("F", "Control A", 300),
	}

	got := e.RankAll(all)
	for _, r := range all {
		want, ok := e.Rank(r, all)
		if !ok {
			assert.NotContains(t, got, r.RiderNo)
			continue
		}
		assert.Equal(t, want, got[r.RiderNo], r.RiderNo)
	}
	assert.Len(t, got, 5)
}
