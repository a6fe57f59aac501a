// Command standings prints the rider board for a saved tracking feed, as the
// tracker would have shown it at a chosen moment, and optionally writes the
// standings workbook.
//
// Usage:
//
//	go run ./cmd/standings \
//	  -feed testdata/riders.json \
//	  -now "Tuesday 18:30" \
//	  -xlsx standings.xlsx
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/couchcryptid/brevet-tracker/internal/dashboard"
	"github.com/couchcryptid/brevet-tracker/internal/domain"
	"github.com/couchcryptid/brevet-tracker/internal/eventtime"
	"github.com/couchcryptid/brevet-tracker/internal/export"
	"github.com/couchcryptid/brevet-tracker/internal/feedcache"
	"github.com/couchcryptid/brevet-tracker/internal/observability"
	"github.com/couchcryptid/brevet-tracker/internal/progress"
	"github.com/couchcryptid/brevet-tracker/internal/route"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jonboulle/clockwork"
)

func main() {
	feedPath := flag.String("feed", "", "tracking feed JSON file")
	nowFlag := flag.String("now", "", `evaluation time: RFC 3339 or an event time such as "Monday 14:05" (default: current time)`)
	xlsxPath := flag.String("xlsx", "", "write the standings workbook to this path")
	routePath := flag.String("route", "", "route YAML (default: embedded route)")
	tz := flag.String("tz", "Europe/London", "event timezone")
	start := flag.String("start", "2025-08-03", "event start date (YYYY-MM-DD)")
	dnf := flag.Duration("dnf", progress.DefaultDNFThreshold, "inactivity before a rider is shown as DNF")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Parse()

	if *feedPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	logger := sharedobs.NewLogger(*logLevel, "text")
	opts := options{
		feedPath:  *feedPath,
		now:       *nowFlag,
		xlsxPath:  *xlsxPath,
		routePath: *routePath,
		timezone:  *tz,
		startDate: *start,
		dnf:       *dnf,
	}
	if err := run(context.Background(), os.Stdout, opts, logger); err != nil {
		fmt.Fprintln(os.Stderr, "standings:", err)
		os.Exit(1)
	}
}

type options struct {
	feedPath  string
	now       string
	xlsxPath  string
	routePath string
	timezone  string
	startDate string
	dnf       time.Duration
}

func run(ctx context.Context, out io.Writer, opts options, logger *slog.Logger) error {
	routes, err := route.LoadFile(opts.routePath)
	if err != nil {
		return err
	}
	times, err := eventtime.NewResolver(opts.timezone, opts.startDate, logger)
	if err != nil {
		return err
	}

	if opts.now != "" {
		now, err := parseNow(times, opts.now)
		if err != nil {
			return err
		}
		eventtime.SetClock(clockwork.NewFakeClockAt(now))
		defer eventtime.SetClock(nil)
	}

	fetch := func(context.Context) (domain.Snapshot, error) {
		data, err := os.ReadFile(opts.feedPath)
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("read feed: %w", err)
		}
		return domain.ParseSnapshot(data, times, logger)
	}
	tracking := feedcache.New[domain.Snapshot]("tracking", fetch, time.Hour, nil, logger, observability.NewUnregisteredMetrics())

	calc := progress.NewCalculator(routes, times, opts.dnf)
	board, err := dashboard.NewService(tracking, nil, calc, logger).Riders(ctx)
	if err != nil {
		return err
	}

	if err := printBoard(out, board); err != nil {
		return err
	}

	if opts.xlsxPath != "" {
		if err := writeWorkbook(opts.xlsxPath, board); err != nil {
			return err
		}
		fmt.Fprintf(out, "\nwrote %s\n", opts.xlsxPath)
	}
	return nil
}

func writeWorkbook(path string, board dashboard.Board) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	return export.WriteStandings(f, board)
}

func parseNow(times *eventtime.Resolver, s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := times.Parse(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid -now %q: %w", s, err)
	}
	return t, nil
}

func printBoard(out io.Writer, board dashboard.Board) error {
	fmt.Fprintf(out, "Standings at %s\n\n", board.Now.Format("Mon 2 Jan 15:04 MST"))

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tRIDER\tNAME\tSTATUS\tLAST CONTROL\tKM\tELAPSED\tKM/H\tRANK\tLAST SEEN")
	for i, r := range board.Riders {
		rank := "-"
		if r.Rank != nil {
			rank = fmt.Sprintf("%d/%d", r.Rank.Position, r.Rank.Total)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%.0f\t%s\t%.1f\t%s\t%s\n",
			i+1, r.RiderNo, r.Name, r.Status, r.LastControl, r.DistanceKm, r.Elapsed, r.AverageSpeed, rank, r.LastSeen)
	}
	return tw.Flush()
}
