package importer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lancerinf/garmin-importer/pkg/domain/activity"
	"github.com/lancerinf/garmin-importer/pkg/failures"
	"github.com/lancerinf/garmin-importer/pkg/integrations/garmin"
	"github.com/lancerinf/garmin-importer/pkg/retry"
)

// Lister lists activities by calendar day range. Implemented by garmin.API.
type Lister interface {
	ActivitiesByDate(ctx context.Context, start, end time.Time) ([]activity.RawActivity, error)
}

type FetchOptions struct {
	// WindowDays is the length of one query window. Defaults to 30.
	WindowDays int
	// Threshold stops the scan once more than this many activities were seen. Defaults to 5.
	Threshold int
	// Policy is applied to each window query. Defaults to 3 attempts of
	// errors garmin.Retryable accepts.
	Policy retry.Policy
	// CallTimeout bounds each window query. Zero means no timeout.
	CallTimeout time.Duration
	// Now is the clock used to find "today". Defaults to time.Now.
	Now func() time.Time
}

// Fetcher scans forward from a date in fixed windows.
type Fetcher struct {
	opts   FetchOptions
	logger *slog.Logger
}

func NewFetcher(opts FetchOptions, logger *slog.Logger) *Fetcher {
	if opts.WindowDays <= 0 {
		opts.WindowDays = 30
	}
	if opts.Threshold < 0 {
		opts.Threshold = 0
	}
	if opts.Policy.MaxAttempts == 0 {
		opts.Policy.MaxAttempts = 3
	}
	if opts.Policy.Retryable == nil {
		opts.Policy.Retryable = garmin.Retryable
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{opts: opts, logger: logger.With("component", "fetcher")}
}

// FetchSince queries [start, min(start+window, today)] windows beginning at
// since. At least one window is always queried; the scan continues while no
// more than Threshold activities were found and the window start is before
// tomorrow. Activities returned by two overlapping windows are kept once.
func (f *Fetcher) FetchSince(ctx context.Context, lister Lister, since time.Time) ([]activity.RawActivity, error) {
	today := truncateDay(f.opts.Now())
	tomorrow := today.AddDate(0, 0, 1)
	start := truncateDay(since)

	var found []activity.RawActivity
	seen := make(map[string]struct{})
	windows := 0

	for {
		end := start.AddDate(0, 0, f.opts.WindowDays)
		if end.After(today) {
			end = today
		}
		if end.Before(start) {
			end = start
		}

		page, err := f.fetchWindow(ctx, lister, start, end)
		if err != nil {
			return nil, fmt.Errorf("%w: window %s..%s: %w", failures.ErrFetch,
				start.Format(time.DateOnly), end.Format(time.DateOnly), err)
		}
		windows++

		for _, a := range page {
			key := dedupeKey(a)
			if key != "" {
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
			}
			found = append(found, a)
		}
		f.logger.Debug("Window fetched", "start", start.Format(time.DateOnly), "end", end.Format(time.DateOnly), "count", len(page))

		start = start.AddDate(0, 0, f.opts.WindowDays)
		if len(found) > f.opts.Threshold || !start.Before(tomorrow) {
			break
		}
	}

	f.logger.Info("Fetched activities", "count", len(found), "windows", windows, "since", truncateDay(since).Format(time.DateOnly))
	return found, nil
}

func (f *Fetcher) fetchWindow(ctx context.Context, lister Lister, start, end time.Time) ([]activity.RawActivity, error) {
	policy := f.opts.Policy
	policy.OnRetry = func(attempt int, err error) {
		f.logger.Warn("Window query failed, retrying", "attempt", attempt, "start", start.Format(time.DateOnly), "error", err)
	}
	return retry.Do(ctx, policy, func(ctx context.Context) ([]activity.RawActivity, error) {
		ctx, cancel := withTimeout(ctx, f.opts.CallTimeout)
		defer cancel()
		return lister.ActivitiesByDate(ctx, start, end)
	})
}

func dedupeKey(a activity.RawActivity) string {
	switch id := a[activity.FieldActivityID].(type) {
	case activity.Int:
		return fmt.Sprint(int64(id))
	case activity.String:
		return string(id)
	case activity.Float:
		return fmt.Sprint(float64(id))
	}
	return ""
}

// truncateDay returns UTC midnight of t's UTC calendar day.
func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
