// Package rank places a rider among the peers who have reached at least as
// far along the route, ordered by elapsed time.
package rank

import (
	"sort"
	"time"

	"github.com/couchcryptid/brevet-tracker/internal/domain"
	"github.com/couchcryptid/brevet-tracker/internal/route"
)

// Position is a rider's standing among eligible peers.
type Position struct {
	Position int `json:"position"`
	Total    int `json:"total"`
}

// Engine ranks riders against a route table.
type Engine struct {
	routes *route.Table
}

// NewEngine creates a rank Engine.
func NewEngine(routes *route.Table) *Engine {
	return &Engine{routes: routes}
}

// entry is the per-rider data needed for ranking, computed once per call.
type entry struct {
	riderNo string
	km      float64
	elapsed time.Duration
	moved   bool // more than one checkpoint
}

func (e *Engine) entryFor(r domain.Rider) entry {
	en := entry{riderNo: r.RiderNo, moved: len(r.Checkpoints) > 1}
	last, ok := r.Last()
	if !ok {
		return en
	}
	if c, ok := e.routes.Resolve(last.Name); ok {
		en.km = c.Km
	}
	first, _ := r.First()
	if en.moved && first.Valid() && last.Valid() {
		en.elapsed = last.At.Sub(first.At)
	}
	return en
}

// eligible reports whether peer competes with a target at targetKm. Peers with
// a single checkpoint or non-positive elapsed time never rank.
func eligible(peer entry, targetKm float64) bool {
	return peer.moved && peer.km >= targetKm && peer.elapsed > 0
}

// faster orders by elapsed time, then rider number for a stable result.
func faster(a, b entry) bool {
	if a.elapsed != b.elapsed {
		return a.elapsed < b.elapsed
	}
	return a.riderNo < b.riderNo
}

// Rank returns target's position among all riders who have more than one
// checkpoint and whose last control is at or beyond target's. Distance is
// compared by route position, so start-variant offsets do not affect
// eligibility. ok is false when target has not progressed past the start,
// has not started, or has no positive elapsed time.
//
// Elapsed time is the difference between the full first and last
// timestamps. For rides under 24h it equals the time-of-day difference with
// a +24h wrap past midnight; beyond that only the dated difference is right.
func (e *Engine) Rank(target domain.Rider, all []domain.Rider) (Position, bool) {
	if target.Status == domain.StatusNotStarted || len(target.Checkpoints) <= 1 {
		return Position{}, false
	}
	t := e.entryFor(target)
	if t.elapsed <= 0 {
		return Position{}, false
	}

	peers := make([]entry, 0, len(all))
	for _, r := range all {
		p := e.entryFor(r)
		if eligible(p, t.km) {
			peers = append(peers, p)
		}
	}
	sort.Slice(peers, func(i, j int) bool { return faster(peers[i], peers[j]) })

	for i, p := range peers {
		if p.riderNo == target.RiderNo {
			return Position{Position: i + 1, Total: len(peers)}, true
		}
	}
	return Position{}, false
}

// RankAll ranks every rider in one pass over precomputed entries. Riders
// without a position are absent from the result.
func (e *Engine) RankAll(all []domain.Rider) map[string]Position {
	entries := make([]entry, len(all))
	for i, r := range all {
		entries[i] = e.entryFor(r)
	}

	out := make(map[string]Position, len(all))
	for i, r := range all {
		t := entries[i]
		if r.Status == domain.StatusNotStarted || !t.moved || t.elapsed <= 0 {
			continue
		}
		pos, total := 1, 0
		for _, p := range entries {
			if !eligible(p, t.km) {
				continue
			}
			total++
			if p.riderNo != t.riderNo && faster(p, t) {
				pos++
			}
		}
		out[r.RiderNo] = Position{Position: pos, Total: total}
	}
	return out
}
