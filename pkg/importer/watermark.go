package importer

import (
	"context"
	"fmt"
	"time"

	shared "github.com/lancerinf/garmin-importer/pkg"
	"github.com/lancerinf/garmin-importer/pkg/failures"
)

// Watermark reads the archive to find where the next scan starts.
type Watermark struct {
	db           shared.Database
	defaultSince time.Time
}

func NewWatermark(db shared.Database, defaultSince time.Time) *Watermark {
	return &Watermark{db: db, defaultSince: truncateDay(defaultSince)}
}

// LatestActivityDate returns the UTC calendar day of the newest archived
// activity of username, or the configured default when nothing is archived.
func (w *Watermark) LatestActivityDate(ctx context.Context, username string) (time.Time, error) {
	latest, err := w.db.GetLatestArchivedActivity(ctx, username)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: read latest archived activity: %w", failures.ErrPersistence, err)
	}
	if latest == nil {
		return w.defaultSince, nil
	}
	return truncateDay(time.UnixMilli(latest.ActivityTs)), nil
}

// RecordExists reports whether (username, ts) is already archived.
func (w *Watermark) RecordExists(ctx context.Context, username string, ts int64) (bool, error) {
	return w.db.ArchivedActivityExists(ctx, username, ts)
}
