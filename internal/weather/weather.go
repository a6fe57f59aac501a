// Package weather interprets the per-control weather feed: current
// conditions, 24h aggregates and an hourly forecast whose rows are flagged as
// historical or upcoming.
package weather

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/couchcryptid/brevet-tracker/internal/domain"
	"github.com/couchcryptid/brevet-tracker/internal/route"
)

// Conditions is a point-in-time observation or forecast.
type Conditions struct {
	Temperature   float64 `json:"temperature"`
	FeelsLike     float64 `json:"feels_like,omitempty"`
	WindSpeed     float64 `json:"wind_speed"`
	WindGust      float64 `json:"wind_gust,omitempty"`
	WindDirection float64 `json:"wind_direction"` // degrees the wind blows from
	Precipitation float64 `json:"precipitation,omitempty"`
	Description   string  `json:"description,omitempty"`
}

// Forecast24h aggregates the next 24 hours.
type Forecast24h struct {
	TempMin            float64 `json:"temp_min"`
	TempMax            float64 `json:"temp_max"`
	PrecipitationTotal float64 `json:"precipitation_total"`
	WindSpeedMax       float64 `json:"wind_speed_max"`
}

// Hour is one row of the hourly forecast.
type Hour struct {
	Time         time.Time `json:"time"`
	IsHistorical bool      `json:"is_historical"`
	Conditions
}

// ControlWeather is the feed entry for one control.
type ControlWeather struct {
	Current     Conditions  `json:"current"`
	Forecast24h Forecast24h `json:"forecast_24h"`
	Hourly      []Hour      `json:"hourly"`
}

// Report is the whole weather feed keyed by control name.
type Report map[string]ControlWeather

// ParseReport decodes a weather feed document.
func ParseReport(data []byte) (Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse weather feed: %w", err)
	}
	return r, nil
}

// ForControl finds the weather entry for a control, falling back to the name
// without its direction suffix since outbound and return visits share a site.
func (r Report) ForControl(name string) (ControlWeather, bool) {
	if w, ok := r[name]; ok {
		return w, true
	}
	w, ok := r[route.BaseName(name)]
	return w, ok
}

// Split partitions hourly rows into past and upcoming, preserving order.
func Split(hours []Hour) (past, upcoming []Hour) {
	for _, h := range hours {
		if h.IsHistorical {
			past = append(past, h)
		} else {
			upcoming = append(upcoming, h)
		}
	}
	return past, upcoming
}

// Relation classifies wind relative to the direction of travel.
type Relation string

const (
	Headwind  Relation = "headwind"
	Tailwind  Relation = "tailwind"
	Crosswind Relation = "crosswind"
)

// Nominal headings of the two legs, in degrees.
const (
	northBearing = 0.0
	southBearing = 180.0
)

// Bearing returns the nominal direction of travel on a leg.
func Bearing(leg domain.Leg) float64 {
	if leg == domain.LegSouth {
		return southBearing
	}
	return northBearing
}

// Wind is the wind's effect on a rider.
type Wind struct {
	Relation Relation `json:"relation"`
	// Component is the along-track wind speed; positive opposes the rider.
	Component float64 `json:"component"`
}

// WindEffect resolves wind blowing from windFrom degrees at speed against a
// rider on leg. Within 45° of the heading is a headwind, within 45° of the
// opposite heading a tailwind.
func WindEffect(leg domain.Leg, windFrom, speed float64) Wind {
	diff := math.Mod(math.Abs(windFrom-Bearing(leg)), 360)
	if diff > 180 {
		diff = 360 - diff
	}
	rel := Crosswind
	switch {
	case diff <= 45:
		rel = Headwind
	case diff >= 135:
		rel = Tailwind
	}
	return Wind{
		Relation:  rel,
		Component: speed * math.Cos(diff*math.Pi/180),
	}
}
