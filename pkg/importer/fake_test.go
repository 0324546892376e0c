package importer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lancerinf/garmin-importer/pkg/domain/activity"
	"github.com/lancerinf/garmin-importer/pkg/integrations/garmin"
)

// fakeGarmin serves activities by begin day and records every call.
type fakeGarmin struct {
	mu         sync.Mutex
	activities []activity.RawActivity
	windows    [][2]string
	downloads  []string
	listErr    error
	listCalls  int
	// stallCalls makes the first n list calls block until their context ends.
	stallCalls int
	// downloadErr fails downloads of the given activity id.
	downloadErr map[string]error
}

func (f *fakeGarmin) add(id int64, begin time.Time) activity.RawActivity {
	a := activity.RawActivity{
		"activityId":     activity.Int(id),
		"beginTimestamp": activity.Int(begin.UnixMilli()),
		"startTimeLocal": activity.String(begin.UTC().Format("2006-01-02 15:04:05")),
		"activityType":   activity.Object{"typeId": activity.Int(1), "typeKey": activity.String("running")},
		"splitSummaries": activity.List{activity.Int(1)},
	}
	f.activities = append(f.activities, a)
	return a
}

func (f *fakeGarmin) ActivitiesByDate(ctx context.Context, start, end time.Time) ([]activity.RawActivity, error) {
	f.mu.Lock()
	f.listCalls++
	stall := f.listCalls <= f.stallCalls
	f.mu.Unlock()
	if stall {
		<-ctx.Done()
		return nil, fmt.Errorf("list activities: %w: %w", garmin.ErrConnection, ctx.Err())
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.windows = append(f.windows, [2]string{start.Format(time.DateOnly), end.Format(time.DateOnly)})

	last := end.AddDate(0, 0, 1)
	var out []activity.RawActivity
	for _, a := range f.activities {
		ts := time.UnixMilli(int64(a["beginTimestamp"].(activity.Int))).UTC()
		if !ts.Before(start) && ts.Before(last) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeGarmin) DownloadActivity(_ context.Context, id string, format garmin.DownloadFormat) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads = append(f.downloads, format.String()+":"+id)
	if err := f.downloadErr[id]; err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("%s-%s", format.String(), id)), nil
}

var errBoom = errors.New("boom")

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
