// Package dashboard assembles the read models served to clients: the rider
// board, a single rider's timeline, the recent-arrivals feed, the route and
// per-control weather. Everything is derived on request from the cached
// snapshots and the current event time.
package dashboard

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/couchcryptid/brevet-tracker/internal/domain"
	"github.com/couchcryptid/brevet-tracker/internal/eventtime"
	"github.com/couchcryptid/brevet-tracker/internal/feedcache"
	"github.com/couchcryptid/brevet-tracker/internal/progress"
	"github.com/couchcryptid/brevet-tracker/internal/rank"
	"github.com/couchcryptid/brevet-tracker/internal/updates"
	"github.com/couchcryptid/brevet-tracker/internal/weather"
)

var (
	// ErrRiderNotFound is returned when no rider has the requested number.
	ErrRiderNotFound = errors.New("rider not found")
	// ErrUnknownControl is returned when a name matches no control on the route.
	ErrUnknownControl = errors.New("unknown control")
	// ErrWeatherUnavailable is returned when weather is disabled or has no
	// entry for the control.
	ErrWeatherUnavailable = errors.New("weather unavailable")
)

// TrackingSource serves the cached tracking snapshot.
type TrackingSource interface {
	Get(ctx context.Context) (feedcache.Result[domain.Snapshot], error)
}

// WeatherSource serves the cached weather report.
type WeatherSource interface {
	Get(ctx context.Context) (feedcache.Result[weather.Report], error)
}

// Service builds dashboard views.
type Service struct {
	tracking TrackingSource
	weather  WeatherSource
	calc     *progress.Calculator
	ranks    *rank.Engine
	feed     *updates.Feed
	logger   *slog.Logger
}

// NewService creates a Service. weather may be nil, in which case weather
// lookups return ErrWeatherUnavailable.
func NewService(tracking TrackingSource, weather WeatherSource, calc *progress.Calculator, logger *slog.Logger) *Service {
	return &Service{
		tracking: tracking,
		weather:  weather,
		calc:     calc,
		ranks:    rank.NewEngine(calc.Routes()),
		feed:     updates.NewFeed(calc.Routes(), logger),
		logger:   logger,
	}
}

// Meta describes the snapshot a view was computed from. When the last fetch
// failed but an earlier snapshot exists, Stale is set and Error carries the
// failure so clients can offer a retry.
type Meta struct {
	Now         time.Time `json:"now"`
	FetchedAt   time.Time `json:"fetched_at"`
	LastUpdated time.Time `json:"last_updated,omitzero"`
	Stale       bool      `json:"stale"`
	Error       string    `json:"error,omitempty"`
}

// RiderSummary is one row of the rider board.
type RiderSummary struct {
	RiderNo        string         `json:"rider_no"`
	Name           string         `json:"name"`
	Status         domain.Status  `json:"status"`
	FeedStatus     domain.Status  `json:"feed_status"`
	LastControl    string         `json:"last_control,omitempty"`
	DistanceKm     float64        `json:"distance_km"`
	ElapsedMinutes float64        `json:"elapsed_minutes"`
	Elapsed        string         `json:"elapsed"`
	AverageSpeed   float64        `json:"average_speed_kmh"`
	LastSeen       string         `json:"last_seen,omitempty"`
	Rank           *rank.Position `json:"rank,omitempty"`
	NextControl    *progress.ETA  `json:"next_control,omitempty"`
}

// Board is the full rider list.
type Board struct {
	Meta
	Riders []RiderSummary `json:"riders"`
}

// CheckpointView is one row of a rider's timeline.
type CheckpointView struct {
	Name           string    `json:"name"`
	Time           string    `json:"time"`
	At             time.Time `json:"at,omitzero"`
	Km             float64   `json:"km"`
	ElapsedMinutes float64   `json:"elapsed_minutes"`
	Elapsed        string    `json:"elapsed"`
	LegSpeed       float64   `json:"leg_speed_kmh"`
	Resolved       bool      `json:"resolved"`
}

// RiderDetail is a single rider with their timeline.
type RiderDetail struct {
	Meta
	RiderSummary
	Checkpoints []CheckpointView `json:"checkpoints"`
}

// UpdatesView is the recent-arrivals feed.
type UpdatesView struct {
	Meta
	Updates []updates.Entry `json:"updates"`
}

// ControlWeatherView is the weather at one control and its effect on riders
// passing through it.
type ControlWeatherView struct {
	Control     domain.Control      `json:"control"`
	FetchedAt   time.Time           `json:"fetched_at"`
	Stale       bool                `json:"stale"`
	Current     weather.Conditions  `json:"current"`
	Forecast24h weather.Forecast24h `json:"forecast_24h"`
	Wind        weather.Wind        `json:"wind"`
	Past        []weather.Hour      `json:"past"`
	Upcoming    []weather.Hour      `json:"upcoming"`
}

// snapshot returns the tracking snapshot and the meta to report with it.
// An error is returned only when there is nothing to show.
func (s *Service) snapshot(ctx context.Context) (domain.Snapshot, Meta, error) {
	res, err := s.tracking.Get(ctx)
	if err != nil && errors.Is(err, feedcache.ErrNoSnapshot) {
		return domain.Snapshot{}, Meta{}, err
	}
	meta := Meta{
		Now:         s.calc.Times().Now(),
		FetchedAt:   res.FetchedAt,
		LastUpdated: res.Value.LastUpdated,
		Stale:       res.Stale,
	}
	if err != nil {
		s.logger.Warn("serving stale tracking snapshot", "fetched_at", res.FetchedAt, "error", err)
		meta.Stale = true
		meta.Error = err.Error()
	}
	return res.Value, meta, nil
}

// Riders returns every rider ordered by distance covered, then elapsed time.
func (s *Service) Riders(ctx context.Context) (Board, error) {
	snap, meta, err := s.snapshot(ctx)
	if err != nil {
		return Board{}, err
	}
	positions := s.ranks.RankAll(snap.Riders)

	board := Board{Meta: meta, Riders: make([]RiderSummary, 0, len(snap.Riders))}
	for _, r := range snap.Riders {
		board.Riders = append(board.Riders, s.summarize(r, positions, meta.Now))
	}
	slices.SortStableFunc(board.Riders, compareSummaries)
	return board, nil
}

// Rider returns one rider's summary and timeline.
func (s *Service) Rider(ctx context.Context, riderNo string) (RiderDetail, error) {
	snap, meta, err := s.snapshot(ctx)
	if err != nil {
		return RiderDetail{}, err
	}
	r, ok := snap.Rider(riderNo)
	if !ok {
		return RiderDetail{}, fmt.Errorf("%w: %s", ErrRiderNotFound, riderNo)
	}

	detail := RiderDetail{
		Meta:         meta,
		RiderSummary: s.summarize(r, s.ranks.RankAll(snap.Riders), meta.Now),
		Checkpoints:  make([]CheckpointView, 0, len(r.Checkpoints)),
	}
	routes := s.calc.Routes()
	for i, cp := range r.Checkpoints {
		_, resolved := routes.Resolve(cp.Name)
		elapsed := s.calc.ElapsedMinutes(r, i)
		detail.Checkpoints = append(detail.Checkpoints, CheckpointView{
			Name:           cp.Name,
			Time:           cp.RawTime,
			At:             cp.At,
			Km:             routes.Distance(cp.Name, r.RiderNo),
			ElapsedMinutes: elapsed,
			Elapsed:        eventtime.FormatElapsed(elapsed),
			LegSpeed:       s.calc.LegSpeed(r, i),
			Resolved:       resolved,
		})
	}
	return detail, nil
}

// Updates returns the most recent arrivals across all riders.
func (s *Service) Updates(ctx context.Context) (UpdatesView, error) {
	snap, meta, err := s.snapshot(ctx)
	if err != nil {
		return UpdatesView{}, err
	}
	return UpdatesView{Meta: meta, Updates: s.feed.Recent(snap.Riders, meta.Now)}, nil
}

// Route returns every control including the start, in route order.
func (s *Service) Route() []domain.Control {
	routes := s.calc.Routes()
	return append([]domain.Control{routes.Start()}, routes.Controls()...)
}

// Weather returns conditions at the control matching name.
func (s *Service) Weather(ctx context.Context, name string) (ControlWeatherView, error) {
	ctrl, ok := s.calc.Routes().Resolve(name)
	if !ok {
		return ControlWeatherView{}, fmt.Errorf("%w: %s", ErrUnknownControl, name)
	}
	if s.weather == nil {
		return ControlWeatherView{}, ErrWeatherUnavailable
	}

	res, err := s.weather.Get(ctx)
	if err != nil {
		if errors.Is(err, feedcache.ErrNoSnapshot) {
			return ControlWeatherView{}, fmt.Errorf("%w: %w", ErrWeatherUnavailable, err)
		}
		s.logger.Warn("serving stale weather", "fetched_at", res.FetchedAt, "error", err)
	}
	cw, ok := res.Value.ForControl(ctrl.Name)
	if !ok {
		return ControlWeatherView{}, fmt.Errorf("%w: no entry for %s", ErrWeatherUnavailable, ctrl.Name)
	}

	past, upcoming := weather.Split(cw.Hourly)
	return ControlWeatherView{
		Control:     ctrl,
		FetchedAt:   res.FetchedAt,
		Stale:       res.Stale || err != nil,
		Current:     cw.Current,
		Forecast24h: cw.Forecast24h,
		Wind:        weather.WindEffect(ctrl.Leg, cw.Current.WindDirection, cw.Current.WindSpeed),
		Past:        past,
		Upcoming:    upcoming,
	}, nil
}

func (s *Service) summarize(r domain.Rider, positions map[string]rank.Position, now time.Time) RiderSummary {
	elapsed := s.calc.LastElapsedMinutes(r)
	sum := RiderSummary{
		RiderNo:        r.RiderNo,
		Name:           r.Name,
		Status:         s.calc.DisplayStatus(r, now),
		FeedStatus:     r.Status,
		DistanceKm:     s.calc.DistanceCovered(r),
		ElapsedMinutes: elapsed,
		Elapsed:        eventtime.FormatElapsed(elapsed),
		AverageSpeed:   s.calc.AverageSpeed(r),
	}
	if last, ok := r.Last(); ok {
		sum.LastControl = last.Name
	}
	if ago, ok := s.calc.TimeSinceLastCheckpoint(r, now); ok {
		sum.LastSeen = ago
	}
	if pos, ok := positions[r.RiderNo]; ok {
		sum.Rank = &pos
	}
	if eta, ok := s.calc.NextControlETA(r, now); ok {
		sum.NextControl = &eta
	}
	return sum
}

// compareSummaries orders riders furthest first. Among equals, riders with a
// positive elapsed time come first, fastest first, then by rider number.
func compareSummaries(a, b RiderSummary) int {
	if c := cmp.Compare(b.DistanceKm, a.DistanceKm); c != 0 {
		return c
	}
	aTimed, bTimed := a.ElapsedMinutes > 0, b.ElapsedMinutes > 0
	if aTimed != bTimed {
		if aTimed {
			return -1
		}
		return 1
	}
	if c := cmp.Compare(a.ElapsedMinutes, b.ElapsedMinutes); c != 0 {
		return c
	}
	return cmp.Compare(a.RiderNo, b.RiderNo)
}
