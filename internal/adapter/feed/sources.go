// Package feed fetches the organiser's tracking and weather documents.
package feed

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/brevet-tracker/internal/domain"
	"github.com/couchcryptid/brevet-tracker/internal/weather"
)

// Fetcher returns a raw feed document.
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// TrackingSource fetches and parses the rider tracking feed.
type TrackingSource struct {
	fetcher Fetcher
	parser  domain.TimeParser
	logger  *slog.Logger
}

// NewTrackingSource creates a TrackingSource that parses checkpoint times with parser.
func NewTrackingSource(fetcher Fetcher, parser domain.TimeParser, logger *slog.Logger) *TrackingSource {
	return &TrackingSource{fetcher: fetcher, parser: parser, logger: logger}
}

// Fetch downloads and parses one snapshot.
func (s *TrackingSource) Fetch(ctx context.Context) (domain.Snapshot, error) {
	body, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return domain.ParseSnapshot(body, s.parser, s.logger)
}

// WeatherSource fetches and parses the per-control weather feed.
type WeatherSource struct {
	fetcher Fetcher
}

// NewWeatherSource creates a WeatherSource.
func NewWeatherSource(fetcher Fetcher) *WeatherSource {
	return &WeatherSource{fetcher: fetcher}
}

// Fetch downloads and parses the weather report.
func (s *WeatherSource) Fetch(ctx context.Context) (weather.Report, error) {
	body, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return weather.ParseReport(body)
}
