package progress

import (
	"time"

	"github.com/couchcryptid/brevet-tracker/internal/domain"
)

// ETA is a projected arrival at the next control.
type ETA struct {
	Control     domain.Control `json:"control"`
	At          time.Time      `json:"at"`
	RemainingKm float64        `json:"remaining_km"`
}

// NextControlETA projects arrival at the control after the rider's last one,
// assuming the rider keeps their overall average speed from the last arrival.
// There is no ETA for riders shown as finished or DNF, for riders without a
// speed yet, or past the final control.
func (c *Calculator) NextControlETA(r domain.Rider, now time.Time) (ETA, bool) {
	if r.Status == domain.StatusFinished || c.IsDNF(r, now) {
		return ETA{}, false
	}
	last, ok := r.Last()
	if !ok || !last.Valid() {
		return ETA{}, false
	}
	current, ok := c.routes.Resolve(last.Name)
	if !ok {
		return ETA{}, false
	}
	next, ok := c.routes.Next(current)
	if !ok {
		return ETA{}, false
	}
	speed := c.AverageSpeed(r)
	if speed <= 0 {
		return ETA{}, false
	}
	remaining := next.Km - current.Km
	travel := time.Duration(remaining / speed * float64(time.Hour))
	return ETA{
		Control:     next,
		At:          last.At.Add(travel).In(c.times.Location()),
		RemainingKm: remaining,
	}, true
}
