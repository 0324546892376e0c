// Package importer runs one import of new Garmin Connect activities into the
// archive: credentials, session, watermark, windowed fetch, normalization,
// then idempotent persistence.
package importer

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/lancerinf/garmin-importer/pkg/credentials"
	"github.com/lancerinf/garmin-importer/pkg/domain/activity"
	"github.com/lancerinf/garmin-importer/pkg/failures"
	"github.com/lancerinf/garmin-importer/pkg/infrastructure/lock"
	"github.com/lancerinf/garmin-importer/pkg/observability"
	"github.com/lancerinf/garmin-importer/pkg/session"
)

// Run outcomes, recorded as the execution status and the runs metric label.
const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
	StatusSkipped = "SKIPPED"
)

type CredentialSource interface {
	Retrieve(ctx context.Context) (*credentials.Credentials, error)
}

type SessionManager interface {
	Establish(ctx context.Context, creds *credentials.Credentials) (*session.Session, error)
	Save(ctx context.Context, creds *credentials.Credentials, s *session.Session) error
}

// Summary describes one run. It becomes the execution outputs.
type Summary struct {
	Status              string
	Username            string
	Since               time.Time
	ActivitiesFound     int
	ActivitiesPersisted int
	LatestActivityTs    int64
	LatestActivityLocal string
	Persisted           []Persisted
}

func (s *Summary) Map() map[string]interface{} {
	m := map[string]interface{}{
		"status":               s.Status,
		"activities_found":     s.ActivitiesFound,
		"activities_persisted": s.ActivitiesPersisted,
	}
	if !s.Since.IsZero() {
		m["since"] = s.Since.Format(time.DateOnly)
	}
	if s.LatestActivityTs != 0 {
		m["latest_activity_ts"] = s.LatestActivityTs
		m["latest_activity_local"] = s.LatestActivityLocal
	}
	return m
}

type Options struct {
	// LockName identifies the account for the run lock.
	LockName string
	// PushgatewayURL, when set, receives the run metrics at the end of Run.
	PushgatewayURL string
	PushJob        string
	Now            func() time.Time
}

type Importer struct {
	creds      CredentialSource
	sessions   SessionManager
	watermark  *Watermark
	fetcher    *Fetcher
	normalizer *activity.Normalizer
	persister  *Persister
	lock       lock.Locker
	metrics    *observability.Metrics
	opts       Options
	logger     *slog.Logger
}

// Deps groups the collaborators of an Importer.
type Deps struct {
	Credentials CredentialSource
	Sessions    SessionManager
	Watermark   *Watermark
	Fetcher     *Fetcher
	Normalizer  *activity.Normalizer
	Persister   *Persister
	Lock        lock.Locker
	Metrics     *observability.Metrics
}

func New(deps Deps, opts Options, logger *slog.Logger) *Importer {
	if deps.Lock == nil {
		deps.Lock = lock.NoopLock{}
	}
	if deps.Normalizer == nil {
		deps.Normalizer = activity.NewNormalizer(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PushJob == "" {
		opts.PushJob = "garmin_importer"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		creds:      deps.Credentials,
		sessions:   deps.Sessions,
		watermark:  deps.Watermark,
		fetcher:    deps.Fetcher,
		normalizer: deps.Normalizer,
		persister:  deps.Persister,
		lock:       deps.Lock,
		metrics:    deps.Metrics,
		opts:       opts,
		logger:     logger.With("component", "importer"),
	}
}

// Run imports new activities once. The returned summary is never nil; on a
// persistence failure it lists the activities archived before the failure.
// A run that finds the account locked by another run is skipped, not failed.
func (i *Importer) Run(ctx context.Context) (summary *Summary, err error) {
	started := i.opts.Now()
	summary = &Summary{Status: StatusSuccess}

	defer func() {
		if err != nil {
			summary.Status = StatusFailed
			i.metrics.RecordFailure(failures.Kind(err))
		}
		i.metrics.RecordRun(summary.Status, started, i.opts.Now())
		if pushErr := i.metrics.Push(context.WithoutCancel(ctx), i.opts.PushgatewayURL, i.opts.PushJob, i.opts.LockName); pushErr != nil {
			i.logger.Warn("Failed to push metrics", "error", pushErr)
		}
	}()

	release, lockErr := i.lock.Acquire(ctx, i.opts.LockName)
	switch {
	case errors.Is(lockErr, lock.ErrLocked):
		i.logger.Info("Another import is running, skipping")
		summary.Status = StatusSkipped
		return summary, nil
	case lockErr != nil:
		i.logger.Warn("Run lock unavailable, continuing without it", "error", lockErr)
	default:
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				i.logger.Warn("Failed to release run lock", "error", err)
			}
		}()
	}

	creds, err := i.creds.Retrieve(ctx)
	if err != nil {
		return summary, err
	}
	summary.Username = creds.Username
	log := i.logger.With("account", creds)

	sess, err := i.sessions.Establish(ctx, creds)
	if err != nil {
		return summary, err
	}
	// The session is written back whatever happens next.
	defer func() {
		if saveErr := i.sessions.Save(context.WithoutCancel(ctx), creds, sess); saveErr != nil {
			log.Warn("Failed to save session", "error", saveErr)
		}
	}()

	since, err := i.watermark.LatestActivityDate(ctx, creds.Username)
	if err != nil {
		return summary, err
	}
	summary.Since = since
	log.Info("Checking for new activities", "since", since.Format(time.DateOnly))

	raw, err := i.fetcher.FetchSince(ctx, sess.API, since)
	if err != nil {
		return summary, err
	}
	summary.ActivitiesFound = len(raw)
	i.metrics.RecordFetched(len(raw))

	normalized := i.normalizer.NormalizeAll(raw)

	persisted, err := i.persister.PersistNew(ctx, sess.API, creds.Username, normalized)
	summarize(summary, persisted)
	if err != nil {
		return summary, err
	}

	if summary.ActivitiesPersisted == 0 {
		log.Info("No new activities to archive", "found", summary.ActivitiesFound)
	} else {
		log.Info("Archived new activities",
			"count", summary.ActivitiesPersisted,
			"latest_activity_ts", summary.LatestActivityTs,
			"latest_activity_local", summary.LatestActivityLocal,
		)
	}
	return summary, nil
}

// summarize sorts persisted by begin timestamp and records the newest.
func summarize(s *Summary, persisted []Persisted) {
	sort.SliceStable(persisted, func(a, b int) bool {
		return persisted[a].BeginTimestamp < persisted[b].BeginTimestamp
	})
	s.Persisted = persisted
	s.ActivitiesPersisted = len(persisted)
	if n := len(persisted); n > 0 {
		s.LatestActivityTs = persisted[n-1].BeginTimestamp
		s.LatestActivityLocal = persisted[n-1].StartTimeLocal
	}
}
