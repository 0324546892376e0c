package importer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	shared "github.com/lancerinf/garmin-importer/pkg"
	"github.com/lancerinf/garmin-importer/pkg/domain/activity"
	"github.com/lancerinf/garmin-importer/pkg/failures"
	"github.com/lancerinf/garmin-importer/pkg/infrastructure/pubsub"
	"github.com/lancerinf/garmin-importer/pkg/integrations/garmin"
	"github.com/lancerinf/garmin-importer/pkg/observability"
	"github.com/lancerinf/garmin-importer/pkg/retry"
	"github.com/lancerinf/garmin-importer/pkg/types"
)

// Downloader fetches activity files. Implemented by garmin.API.
type Downloader interface {
	DownloadActivity(ctx context.Context, activityID string, format garmin.DownloadFormat) ([]byte, error)
}

// Persisted identifies one activity archived during a run.
type Persisted struct {
	BeginTimestamp int64
	ActivityID     string
	StartTimeLocal string
}

type PersistOptions struct {
	Bucket string
	// Topic receives an archived event per activity. Empty disables publishing.
	Topic string
	// DownloadPolicy is applied to each file download. Defaults to 3 attempts
	// of errors garmin.Retryable accepts.
	DownloadPolicy retry.Policy
	CallTimeout    time.Duration
	Now            func() time.Time
}

type Persister struct {
	db      shared.Database
	index   *Watermark
	store   shared.BlobStore
	pub     shared.Publisher
	metrics *observability.Metrics
	opts    PersistOptions
	logger  *slog.Logger
}

func NewPersister(db shared.Database, store shared.BlobStore, pub shared.Publisher, metrics *observability.Metrics, opts PersistOptions, logger *slog.Logger) *Persister {
	if opts.DownloadPolicy.MaxAttempts == 0 {
		opts.DownloadPolicy.MaxAttempts = 3
	}
	if opts.DownloadPolicy.Retryable == nil {
		opts.DownloadPolicy.Retryable = garmin.Retryable
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Persister{
		db:      db,
		index:   NewWatermark(db, time.Time{}),
		store:   store,
		pub:     pub,
		metrics: metrics,
		opts:    opts,
		logger:  logger.With("component", "persister"),
	}
}

// PersistNew archives every activity not yet recorded for username, in input
// order. For each one the original archive and the GPX track are uploaded
// before the metadata record is written, so a record always points at
// existing artifacts. The first invalid activity or failed write stops the
// batch; activities archived before it are returned with the error.
func (p *Persister) PersistNew(ctx context.Context, dl Downloader, username string, activities []activity.NormalizedActivity) ([]Persisted, error) {
	var done []Persisted

	for _, a := range activities {
		if err := a.Validate(); err != nil {
			p.logger.Error("Invalid activity, aborting batch", "error", err, "persisted", len(done))
			return done, err
		}
		ts, _ := a.BeginTimestamp()
		id, _ := a.ActivityID()
		log := p.logger.With("activity_id", id, "begin_timestamp", ts)

		exists, err := p.exists(ctx, username, ts)
		if err != nil {
			return done, fmt.Errorf("%w: check activity %s: %w", failures.ErrPersistence, id, err)
		}
		if exists {
			log.Debug("Activity already archived, skipping")
			p.metrics.RecordSkipped()
			continue
		}

		record, err := p.archive(ctx, dl, username, ts, id, a)
		if err != nil {
			log.Error("Archiving activity failed", "error", err)
			return done, fmt.Errorf("%w: activity %s: %w", failures.ErrPersistence, id, err)
		}

		done = append(done, Persisted{BeginTimestamp: ts, ActivityID: id, StartTimeLocal: record.StartTimeLocal})
		p.metrics.RecordPersisted(ts)
		log.Info("Archived activity", "start_time_local", record.StartTimeLocal)

		p.publish(ctx, record)
	}

	return done, nil
}

func (p *Persister) exists(ctx context.Context, username string, ts int64) (bool, error) {
	ctx, cancel := withTimeout(ctx, p.opts.CallTimeout)
	defer cancel()
	return p.index.RecordExists(ctx, username, ts)
}

func (p *Persister) archive(ctx context.Context, dl Downloader, username string, ts int64, id string, a activity.NormalizedActivity) (*types.ArchiveRecord, error) {
	zipData, err := p.download(ctx, dl, id, garmin.FormatOriginal)
	if err != nil {
		return nil, err
	}
	gpxData, err := p.download(ctx, dl, id, garmin.FormatGPX)
	if err != nil {
		return nil, err
	}

	zipObject := activity.ArtifactObject(username, ts, id, garmin.FormatOriginal.Extension())
	if err := p.upload(ctx, zipObject, zipData); err != nil {
		return nil, err
	}
	gpxObject := activity.ArtifactObject(username, ts, id, garmin.FormatGPX.Extension())
	if err := p.upload(ctx, gpxObject, gpxData); err != nil {
		return nil, err
	}

	record := &types.ArchiveRecord{
		Username:       username,
		ActivityTs:     ts,
		ActivityID:     id,
		StartTimeLocal: a.StartTimeLocal(),
		ZipObject:      zipObject,
		GpxObject:      gpxObject,
		ArchivedAt:     p.opts.Now().UTC(),
		Fields:         a.Native(),
	}

	ctx, cancel := withTimeout(ctx, p.opts.CallTimeout)
	defer cancel()
	if err := p.db.SetArchivedActivity(ctx, record); err != nil {
		return nil, fmt.Errorf("write metadata: %w", err)
	}
	return record, nil
}

func (p *Persister) download(ctx context.Context, dl Downloader, id string, format garmin.DownloadFormat) ([]byte, error) {
	policy := p.opts.DownloadPolicy
	policy.OnRetry = func(attempt int, err error) {
		p.logger.Warn("Download failed, retrying", "activity_id", id, "format", format.String(), "attempt", attempt, "error", err)
	}
	data, err := retry.Do(ctx, policy, func(ctx context.Context) ([]byte, error) {
		ctx, cancel := withTimeout(ctx, p.opts.CallTimeout)
		defer cancel()
		return dl.DownloadActivity(ctx, id, format)
	})
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", format.String(), err)
	}
	return data, nil
}

func (p *Persister) upload(ctx context.Context, object string, data []byte) error {
	ctx, cancel := withTimeout(ctx, p.opts.CallTimeout)
	defer cancel()
	if err := p.store.Write(ctx, p.opts.Bucket, object, data); err != nil {
		return fmt.Errorf("upload %s: %w", object, err)
	}
	return nil
}

// publish announces an archived activity. Failures are logged only.
func (p *Persister) publish(ctx context.Context, record *types.ArchiveRecord) {
	if p.pub == nil || p.opts.Topic == "" {
		return
	}
	e, err := pubsub.NewArchivedEvent(&types.ActivityArchivedEvent{
		Username:       record.Username,
		ActivityID:     record.ActivityID,
		ActivityTs:     record.ActivityTs,
		StartTimeLocal: record.StartTimeLocal,
		ZipObject:      activity.GCSURI(p.opts.Bucket, record.ZipObject),
		GpxObject:      activity.GCSURI(p.opts.Bucket, record.GpxObject),
	})
	if err != nil {
		p.logger.Warn("Failed to build archived event", "error", err)
		return
	}
	msgID, err := p.pub.PublishCloudEvent(ctx, p.opts.Topic, e)
	if err != nil {
		p.logger.Warn("Failed to publish archived event", "activity_id", record.ActivityID, "error", err)
		return
	}
	p.logger.Debug("Published archived event", "message_id", msgID)
}
