// Package progress derives per-rider facts (distance, elapsed time, speed,
// DNF inference, ETA) from a rider's checkpoint log. Every function is pure:
// results depend only on the rider, the route and the supplied "now".
//
// Failures never surface as errors. Unresolvable controls count as 0 km and
// unparsed checkpoint times as 0 elapsed, so a single bad row in the feed
// degrades one number instead of a whole dashboard.
package progress

import (
	"time"

	"github.com/couchcryptid/brevet-tracker/internal/domain"
	"github.com/couchcryptid/brevet-tracker/internal/eventtime"
	"github.com/couchcryptid/brevet-tracker/internal/route"
)

// DefaultDNFThreshold is how long a rider may go without a checkpoint before
// being shown as DNF.
const DefaultDNFThreshold = 16 * time.Hour

// Calculator computes derived rider state against a fixed route and event clock.
type Calculator struct {
	routes   *route.Table
	times    *eventtime.Resolver
	dnfAfter time.Duration
}

// NewCalculator creates a Calculator. A non-positive dnfAfter selects DefaultDNFThreshold.
func NewCalculator(routes *route.Table, times *eventtime.Resolver, dnfAfter time.Duration) *Calculator {
	if dnfAfter <= 0 {
		dnfAfter = DefaultDNFThreshold
	}
	return &Calculator{routes: routes, times: times, dnfAfter: dnfAfter}
}

// Routes returns the route table the calculator resolves against.
func (c *Calculator) Routes() *route.Table { return c.routes }

// Times returns the event time resolver.
func (c *Calculator) Times() *eventtime.Resolver { return c.times }

// DNFThreshold returns the staleness threshold used by IsDNF.
func (c *Calculator) DNFThreshold() time.Duration { return c.dnfAfter }

// DistanceCovered is the effective km at the rider's last checkpoint,
// including any start-variant offset. Earlier checkpoints are ignored.
func (c *Calculator) DistanceCovered(r domain.Rider) float64 {
	last, ok := r.Last()
	if !ok {
		return 0
	}
	return c.routes.Distance(last.Name, r.RiderNo)
}

// ElapsedMinutes is the time from the rider's wave start (checkpoint 0) to
// checkpoint i. The start itself is 0 by definition.
func (c *Calculator) ElapsedMinutes(r domain.Rider, i int) float64 {
	if i <= 0 || i >= len(r.Checkpoints) {
		return 0
	}
	start, at := r.Checkpoints[0], r.Checkpoints[i]
	if !start.Valid() || !at.Valid() {
		return 0
	}
	mins := at.At.Sub(start.At).Minutes()
	if mins < 0 {
		return 0
	}
	return mins
}

// LastElapsedMinutes is ElapsedMinutes at the rider's latest checkpoint.
func (c *Calculator) LastElapsedMinutes(r domain.Rider) float64 {
	return c.ElapsedMinutes(r, len(r.Checkpoints)-1)
}

// AverageSpeed is distance covered over elapsed time at the last checkpoint, in km/h.
func (c *Calculator) AverageSpeed(r domain.Rider) float64 {
	if len(r.Checkpoints) < 2 {
		return 0
	}
	dist := c.DistanceCovered(r)
	if dist == 0 {
		return 0
	}
	elapsed := c.LastElapsedMinutes(r)
	if elapsed <= 0 {
		return 0
	}
	return dist / elapsed * 60
}

// LegSpeed is the km/h between checkpoints i-1 and i.
func (c *Calculator) LegSpeed(r domain.Rider, i int) float64 {
	if i < 1 || i >= len(r.Checkpoints) {
		return 0
	}
	prev, cur := r.Checkpoints[i-1], r.Checkpoints[i]
	if _, ok := c.routes.Resolve(prev.Name); !ok {
		return 0
	}
	if _, ok := c.routes.Resolve(cur.Name); !ok {
		return 0
	}
	if !prev.Valid() || !cur.Valid() {
		return 0
	}
	dt := cur.At.Sub(prev.At).Minutes()
	if dt <= 0 {
		return 0
	}
	dk := c.routes.Distance(cur.Name, r.RiderNo) - c.routes.Distance(prev.Name, r.RiderNo)
	if dk <= 0 {
		return 0
	}
	return dk / dt * 60
}

// IsDNF reports whether the rider should be shown as DNF. Feed status dnf and
// finished are authoritative; otherwise the rider is DNF once their last
// checkpoint is at least the DNF threshold old. A later check-in flips the
// result back without any stored state.
func (c *Calculator) IsDNF(r domain.Rider, now time.Time) bool {
	switch r.Status {
	case domain.StatusDNF:
		return true
	case domain.StatusFinished:
		return false
	}
	last, ok := r.Last()
	if !ok || !last.Valid() {
		return false
	}
	return c.times.Since(last.At, now) >= c.dnfAfter
}

// DisplayStatus is the feed status with the DNF inference applied.
func (c *Calculator) DisplayStatus(r domain.Rider, now time.Time) domain.Status {
	if c.IsDNF(r, now) {
		return domain.StatusDNF
	}
	return r.Status
}

// TimeSinceLastCheckpoint formats the age of the rider's last checkpoint.
// ok is false when the rider has no checkpoints; an unparsed time yields "".
func (c *Calculator) TimeSinceLastCheckpoint(r domain.Rider, now time.Time) (string, bool) {
	last, ok := r.Last()
	if !ok {
		return "", false
	}
	if !last.Valid() {
		return "", true
	}
	return eventtime.FormatAgo(c.times.Since(last.At, now)), true
}
