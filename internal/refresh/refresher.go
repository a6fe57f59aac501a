// Package refresh keeps the feed caches warm on a fixed interval and turns
// newly observed checkpoints into arrival events for downstream consumers.
package refresh

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/brevet-tracker/internal/domain"
	"github.com/couchcryptid/brevet-tracker/internal/feedcache"
	"github.com/couchcryptid/brevet-tracker/internal/observability"
	"github.com/couchcryptid/brevet-tracker/internal/progress"
	"github.com/couchcryptid/brevet-tracker/internal/weather"
	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"
)

const (
	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 30 * time.Second
)

// TrackingSource is a forced-refresh view of the tracking snapshot cache.
type TrackingSource interface {
	Refresh(ctx context.Context) (feedcache.Result[domain.Snapshot], error)
}

// WeatherSource is a forced-refresh view of the weather cache.
type WeatherSource interface {
	Refresh(ctx context.Context) (feedcache.Result[weather.Report], error)
}

// Publisher writes serialized arrival events to a broker.
type Publisher interface {
	LoadBatch(ctx context.Context, events []domain.OutputEvent) error
}

// Refresher polls the feeds and publishes arrivals.
type Refresher struct {
	tracking  TrackingSource
	weather   WeatherSource
	calc      *progress.Calculator
	publisher Publisher
	interval  time.Duration
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool

	mu       sync.Mutex
	baseline *domain.Snapshot
	drift    string // last logged control mismatch, to avoid repeating it
}

// Option configures optional Refresher collaborators.
type Option func(*Refresher)

// WithWeather also refreshes the weather feed each cycle.
func WithWeather(w WeatherSource) Option {
	return func(r *Refresher) { r.weather = w }
}

// WithPublisher publishes arrival events for each new checkpoint.
func WithPublisher(p Publisher) Option {
	return func(r *Refresher) { r.publisher = p }
}

// WithClock overrides the wall clock used for scheduling.
func WithClock(c clockwork.Clock) Option {
	return func(r *Refresher) { r.clock = c }
}

// New creates a Refresher that polls tracking every interval. A non-positive
// interval selects one minute.
func New(tracking TrackingSource, calc *progress.Calculator, interval time.Duration, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Refresher {
	if interval <= 0 {
		interval = time.Minute
	}
	r := &Refresher{
		tracking: tracking,
		calc:     calc,
		interval: interval,
		clock:    clockwork.NewRealClock(),
		logger:   logger,
		metrics:  metrics,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// CheckReadiness returns nil once a tracking snapshot has been loaded.
func (r *Refresher) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("no tracking snapshot loaded yet")
	}
	return nil
}

// Run refreshes immediately and then on every interval until the context is
// cancelled. Failed refreshes retry with exponential backoff capped at the
// interval.
func (r *Refresher) Run(ctx context.Context) error {
	r.logger.Info("refresher started", "interval", r.interval, "publishing", r.publisher != nil)
	r.metrics.RefresherRunning.Set(1)
	defer r.metrics.RefresherRunning.Set(0)

	backoff := initialBackoff
	ceiling := min(maxBackoff, r.interval)

	for {
		wait := r.interval
		if err := r.Refresh(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			wait = backoff
			backoff = retry.NextBackoff(backoff, ceiling)
		} else {
			backoff = initialBackoff
		}

		if !r.sleep(ctx, wait) {
			break
		}
	}

	r.logger.Info("refresher stopping", "reason", ctx.Err())
	return nil
}

// Refresh forces one fetch of every feed and publishes any new arrivals.
// Only a tracking failure is returned; weather is best effort.
func (r *Refresher) Refresh(ctx context.Context) error {
	if r.weather != nil {
		if _, err := r.weather.Refresh(ctx); err != nil {
			r.logger.Warn("weather refresh failed", "error", err)
		}
	}

	res, err := r.tracking.Refresh(ctx)
	if err != nil {
		r.metrics.RefreshErrors.Inc()
		r.logger.Error("tracking refresh failed", "error", err)
		return err
	}
	r.ready.Store(true)

	r.checkControls(res.Value.Controls)
	now := r.calc.Times().Now()
	r.recordStatuses(res.Value, now)
	r.publishArrivals(ctx, res.Value, now)
	return nil
}

// checkControls warns when the feed's published controls disagree with the
// configured route. The route stays authoritative; the warning is logged
// once per distinct disagreement.
func (r *Refresher) checkControls(controls []domain.Control) {
	mismatches := r.calc.Routes().Mismatches(controls)
	key := strings.Join(mismatches, "; ")

	r.mu.Lock()
	defer r.mu.Unlock()
	if key == r.drift {
		return
	}
	r.drift = key
	if key == "" {
		r.logger.Info("feed controls match the configured route")
		return
	}
	r.logger.Warn("feed controls disagree with the configured route",
		"count", len(mismatches),
		"mismatches", mismatches,
	)
}

func (r *Refresher) recordStatuses(snap domain.Snapshot, now time.Time) {
	counts := map[domain.Status]int{
		domain.StatusNotStarted: 0,
		domain.StatusInProgress: 0,
		domain.StatusFinished:   0,
		domain.StatusDNF:        0,
	}
	for _, rider := range snap.Riders {
		counts[r.calc.DisplayStatus(rider, now)]++
	}
	for status, n := range counts {
		r.metrics.RidersByStatus.WithLabelValues(string(status)).Set(float64(n))
	}
}

// publishArrivals diffs snap against the last published baseline. The first
// snapshot only establishes the baseline so a restart does not replay the
// whole event. The baseline advances only after a successful publish, so a
// broker outage delays arrivals rather than losing them.
func (r *Refresher) publishArrivals(ctx context.Context, snap domain.Snapshot, now time.Time) {
	if r.publisher == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.baseline == nil {
		r.baseline = &snap
		r.logger.Info("arrival baseline established", "riders", len(snap.Riders))
		return
	}

	arrivals := domain.DiffArrivals(*r.baseline, snap)
	if len(arrivals) == 0 {
		r.baseline = &snap
		return
	}

	events := make([]domain.OutputEvent, 0, len(arrivals))
	for _, a := range arrivals {
		out, err := domain.SerializeArrival(r.enrich(a, now))
		if err != nil {
			r.logger.Warn("skipping arrival", "rider_no", a.Rider.RiderNo, "error", err)
			continue
		}
		events = append(events, out)
	}

	if err := r.publisher.LoadBatch(ctx, events); err != nil {
		r.metrics.PublishErrors.Inc()
		r.logger.Error("publish arrivals failed", "error", err, "count", len(events))
		return
	}
	r.metrics.ArrivalsPublished.Add(float64(len(events)))
	r.logger.Info("arrivals published", "count", len(events))
	r.baseline = &snap
}

// enrich derives the arrival's distance, elapsed time and speed as they
// stood at that checkpoint.
func (r *Refresher) enrich(a domain.Arrival, now time.Time) domain.ArrivalEvent {
	cp := a.Checkpoint()
	upTo := a.Rider
	upTo.Checkpoints = a.Rider.Checkpoints[:a.Index+1]

	return domain.ArrivalEvent{
		RiderNo:        a.Rider.RiderNo,
		Name:           a.Rider.Name,
		Control:        cp.Name,
		CheckpointTime: cp.RawTime,
		ArrivedAt:      cp.At,
		Km:             r.calc.DistanceCovered(upTo),
		ElapsedMinutes: r.calc.ElapsedMinutes(a.Rider, a.Index),
		AverageSpeed:   r.calc.AverageSpeed(upTo),
		Status:         r.calc.DisplayStatus(a.Rider, now),
		ObservedAt:     now,
	}
}

func (r *Refresher) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-r.clock.After(d):
		return true
	}
}
