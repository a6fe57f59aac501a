// Package route resolves feed checkpoint names to controls with known
// cumulative distance.
package route

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/couchcryptid/brevet-tracker/internal/domain"
)

// StartName is the canonical name of the synthetic km 0 control.
const StartName = "Start"

// startAliases are feed names that all mean the event start.
var startAliases = map[string]bool{"start": true, "writtle": true, "london": true}

// Table is an immutable, ordered list of controls with a precomputed alias
// index. Safe for concurrent use.
type Table struct {
	controls []domain.Control
	exact    map[string]int // normalised full name or configured alias -> control index
	base     map[string]int // normalised name without direction suffix -> first control index
	offsets  map[string]float64
	prefixes []prefixOffset
}

type prefixOffset struct {
	prefix   string
	offsetKm float64
}

// NewTable validates a route configuration and builds its alias index.
// Control distances must be strictly increasing in route order.
func NewTable(f File) (*Table, error) {
	if len(f.Controls) == 0 {
		return nil, errors.New("route has no controls")
	}
	t := &Table{
		controls: make([]domain.Control, 0, len(f.Controls)),
		exact:    make(map[string]int),
		base:     make(map[string]int),
		offsets:  make(map[string]float64),
	}

	prevKm := 0.0
	for n, c := range f.Controls {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("control %d has no name", n)
		}
		// An explicit km 0 start entry is the synthetic start.
		if c.Km == 0 && IsStart(c.Name) {
			continue
		}
		i := len(t.controls)
		if c.Km <= prevKm {
			return nil, fmt.Errorf("control %q: km %.1f must be greater than %.1f", c.Name, c.Km, prevKm)
		}
		prevKm = c.Km
		t.controls = append(t.controls, domain.Control{
			Name:     c.Name,
			Km:       c.Km,
			Leg:      domain.ParseLeg(c.Leg),
			IsReturn: c.IsReturn,
		})

		if err := t.addExact(normalize(c.Name), i); err != nil {
			return nil, err
		}
		for _, alias := range c.Aliases {
			if err := t.addExact(normalize(alias), i); err != nil {
				return nil, err
			}
		}
		// Outbound visits come first in route order, so a bare base name
		// resolves to the outbound control.
		if b := stripDirection(normalize(c.Name)); b != "" {
			if _, dup := t.base[b]; !dup {
				t.base[b] = i
			}
		}
	}

	if len(t.controls) == 0 {
		return nil, errors.New("route has no controls beyond the start")
	}

	for _, v := range f.StartVariants {
		for _, no := range v.Riders {
			t.offsets[strings.TrimSpace(no)] = v.OffsetKm
		}
		for _, p := range v.Prefixes {
			if p = strings.TrimSpace(p); p != "" {
				t.prefixes = append(t.prefixes, prefixOffset{prefix: p, offsetKm: v.OffsetKm})
			}
		}
	}
	return t, nil
}

func (t *Table) addExact(key string, idx int) error {
	if startAliases[key] {
		return fmt.Errorf("control name %q collides with a start alias", key)
	}
	if prev, dup := t.exact[key]; dup && prev != idx {
		return fmt.Errorf("name %q maps to both %q and %q", key, t.controls[prev].Name, t.controls[idx].Name)
	}
	t.exact[key] = idx
	return nil
}

// Controls returns the route's controls in order, excluding the start.
func (t *Table) Controls() []domain.Control {
	out := make([]domain.Control, len(t.controls))
	copy(out, t.controls)
	return out
}

// Start returns the synthetic start control.
func (t *Table) Start() domain.Control {
	return domain.Control{Name: StartName, Km: 0, Leg: domain.LegNorth}
}

// IsStart reports whether a feed checkpoint name denotes the start.
func IsStart(name string) bool {
	n := normalize(name)
	return startAliases[n] || strings.Contains(n, "start")
}

// Resolve maps a feed checkpoint name to a control. Precedence:
// start alias, exact name or configured alias, name with its trailing
// direction letter stripped, then substring containment in route order.
// The second return is false when nothing matches.
func (t *Table) Resolve(name string) (domain.Control, bool) {
	if IsStart(name) {
		return t.Start(), true
	}
	idx, ok := t.lookup(normalize(name))
	if !ok {
		return domain.Control{}, false
	}
	return t.controls[idx], true
}

func (t *Table) lookup(n string) (int, bool) {
	if n == "" {
		return 0, false
	}
	if i, ok := t.exact[n]; ok {
		return i, true
	}
	stripped := stripDirection(n)
	if i, ok := t.exact[stripped]; ok {
		return i, true
	}
	if i, ok := t.base[n]; ok {
		return i, true
	}
	if i, ok := t.base[stripped]; ok {
		return i, true
	}
	if len(n) < 3 {
		return 0, false
	}
	for i, c := range t.controls {
		cn := normalize(c.Name)
		if strings.Contains(cn, n) || strings.Contains(n, cn) {
			return i, true
		}
	}
	return 0, false
}

// Next returns the control following c in route order.
func (t *Table) Next(c domain.Control) (domain.Control, bool) {
	for _, cand := range t.controls {
		if cand.Km > c.Km {
			return cand, true
		}
	}
	return domain.Control{}, false
}

// Finish returns the last control on the route.
func (t *Table) Finish() domain.Control {
	return t.controls[len(t.controls)-1]
}

// StartOffset returns the extra distance ridden by riderNo before reaching
// the common start, based on the start-variant assignment table.
func (t *Table) StartOffset(riderNo string) float64 {
	riderNo = strings.TrimSpace(riderNo)
	if off, ok := t.offsets[riderNo]; ok {
		return off
	}
	for _, p := range t.prefixes {
		if strings.HasPrefix(riderNo, p.prefix) {
			return p.offsetKm
		}
	}
	return 0
}

// Distance resolves name and returns riderNo's effective distance at that
// control. The start is 0 km for every rider; unresolved names are 0 km.
func (t *Table) Distance(name, riderNo string) float64 {
	c, ok := t.Resolve(name)
	if !ok || c.Km == 0 {
		return 0
	}
	return c.Km + t.StartOffset(riderNo)
}

// kmTolerance absorbs rounding in published control distances.
const kmTolerance = 0.5

// Mismatches compares controls published by the tracking feed against the
// table and describes each one that does not resolve or disagrees on
// distance. An empty result means the feed agrees with the route.
func (t *Table) Mismatches(feed []domain.Control) []string {
	var out []string
	for _, fc := range feed {
		c, ok := t.Resolve(fc.Name)
		switch {
		case !ok:
			out = append(out, fmt.Sprintf("%s: not on route", fc.Name))
		case math.Abs(c.Km-fc.Km) > kmTolerance:
			out = append(out, fmt.Sprintf("%s: feed %.1f km, route %.1f km", fc.Name, fc.Km, c.Km))
		}
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// stripDirection removes a trailing single-letter compass suffix ("malton n" -> "malton").
func stripDirection(n string) string {
	head, last, found := cutLast(n, " ")
	if !found {
		return n
	}
	switch last {
	case "n", "s", "e", "w":
		return head
	}
	return n
}

func cutLast(s, sep string) (string, string, bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}

// BaseName strips a trailing direction suffix from a control name,
// preserving case: "Malton N" -> "Malton".
func BaseName(name string) string {
	name = strings.TrimSpace(name)
	head, last, found := cutLast(name, " ")
	if !found {
		return name
	}
	switch strings.ToLower(last) {
	case "n", "s", "e", "w":
		return strings.TrimSpace(head)
	}
	return name
}
