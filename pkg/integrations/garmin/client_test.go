package garmin_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lancerinf/garmin-importer/pkg/domain/activity"
	"github.com/lancerinf/garmin-importer/pkg/domain/bundle"
	"github.com/lancerinf/garmin-importer/pkg/integrations/garmin"
	"github.com/lancerinf/garmin-importer/pkg/integrations/garmin/garmintest"
)

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestActivitiesByDatePagesUntilShortPage(t *testing.T) {
	srv := garmintest.NewServer()
	defer srv.Close()

	base := day("2024-01-01").Add(7 * time.Hour)
	for i := 0; i < 45; i++ {
		srv.AddActivity(int64(1000+i), base.Add(time.Duration(i)*time.Hour), "running")
	}

	c := garmin.NewClient(srv.URL, nil)
	got, err := c.ActivitiesByDate(context.Background(), day("2024-01-01"), day("2024-01-31"))
	require.NoError(t, err)
	assert.Len(t, got, 45)

	first := got[0]
	assert.Equal(t, activity.Int(1044), first["activityId"], "newest first")
	assert.IsType(t, activity.Object{}, first["activityType"])
	assert.IsType(t, activity.List{}, first["splitSummaries"])
	assert.Equal(t, activity.Null{}, first["averageHR"])
	assert.Len(t, srv.Windows(), 1)
}

func TestActivitiesByDateFiltersDays(t *testing.T) {
	srv := garmintest.NewServer()
	defer srv.Close()

	srv.AddActivity(1, day("2024-01-01").Add(23*time.Hour), "running")
	srv.AddActivity(2, day("2024-01-02").Add(time.Hour), "cycling")
	srv.AddActivity(3, day("2024-01-03").Add(time.Hour), "cycling")

	got, err := garmin.NewClient(srv.URL, nil).ActivitiesByDate(context.Background(), day("2024-01-01"), day("2024-01-02"))
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, []garmintest.Window{{Start: "2024-01-01", End: "2024-01-02"}}, srv.Windows())
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, garmin.ErrAuthentication},
		{http.StatusForbidden, garmin.ErrAuthentication},
		{http.StatusTooManyRequests, garmin.ErrTooManyRequests},
		{http.StatusInternalServerError, garmin.ErrConnection},
		{http.StatusBadGateway, garmin.ErrConnection},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.status), func(t *testing.T) {
			srv := garmintest.NewServer()
			defer srv.Close()
			srv.FailNext(garmintest.RouteSearch, tc.status)

			_, err := garmin.NewClient(srv.URL, nil).ActivitiesByDate(context.Background(), day("2024-01-01"), day("2024-01-02"))
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestTransportErrorIsConnectionError(t *testing.T) {
	srv := garmintest.NewServer()
	url := srv.URL
	srv.Close()

	_, err := garmin.NewClient(url, nil).ActivitiesByDate(context.Background(), day("2024-01-01"), day("2024-01-02"))
	assert.ErrorIs(t, err, garmin.ErrConnection)
}

func TestClientTimeoutIsConnectionError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, "[]")
	}))
	defer srv.Close()

	c := garmin.NewClient(srv.URL, &http.Client{Timeout: 100 * time.Millisecond})

	_, err := c.ActivitiesByDate(context.Background(), day("2024-01-01"), day("2024-01-02"))
	require.Error(t, err)
	assert.ErrorIs(t, err, garmin.ErrConnection)
	assert.True(t, garmin.Retryable(err))

	got, err := c.ActivitiesByDate(context.Background(), day("2024-01-01"), day("2024-01-02"))
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCallDeadlineIsConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := garmin.NewClient(srv.URL, nil).ActivitiesByDate(ctx, day("2024-01-01"), day("2024-01-02"))
	assert.ErrorIs(t, err, garmin.ErrConnection)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCancelledCallIsNotClassified(t *testing.T) {
	srv := garmintest.NewServer()
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := garmin.NewClient(srv.URL, nil).ActivitiesByDate(ctx, day("2024-01-01"), day("2024-01-02"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, garmin.ErrConnection)
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		status int
		want   bool
	}{
		{http.StatusUnauthorized, false},
		{http.StatusNotFound, false},
		{http.StatusTooManyRequests, true},
		{http.StatusServiceUnavailable, true},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.status), func(t *testing.T) {
			srv := garmintest.NewServer()
			defer srv.Close()
			srv.AddActivity(7, day("2024-01-01").Add(time.Hour), "running")
			srv.FailNext(garmintest.RouteOriginal, tc.status)

			_, err := garmin.NewClient(srv.URL, nil).DownloadActivity(context.Background(), "7", garmin.FormatOriginal)
			require.Error(t, err)
			assert.Equal(t, tc.want, garmin.Retryable(err))
		})
	}

	srv := garmintest.NewServer()
	url := srv.URL
	srv.Close()
	_, err := garmin.NewClient(url, nil).ActivitiesByDate(context.Background(), day("2024-01-01"), day("2024-01-02"))
	assert.True(t, garmin.Retryable(err), "transport failure")
}

func TestDownloadActivity(t *testing.T) {
	srv := garmintest.NewServer()
	defer srv.Close()
	srv.AddActivity(12836104757, day("2024-01-01").Add(7*time.Hour), "running")

	c := garmin.NewClient(srv.URL, nil)
	ctx := context.Background()

	zipped, err := c.DownloadActivity(ctx, "12836104757", garmin.FormatOriginal)
	require.NoError(t, err)
	b, err := bundle.Open(zipped)
	require.NoError(t, err)
	require.Len(t, b.FITFiles(), 1)

	gpx, err := c.DownloadActivity(ctx, "12836104757", garmin.FormatGPX)
	require.NoError(t, err)
	assert.Contains(t, string(gpx), "<gpx")

	assert.Equal(t, []string{"ORIGINAL:12836104757", "gpx:12836104757"}, srv.Downloads())

	_, err = c.DownloadActivity(ctx, "404", garmin.FormatGPX)
	assert.Error(t, err)
}

func TestDownloadFormat(t *testing.T) {
	assert.Equal(t, "zip", garmin.FormatOriginal.Extension())
	assert.Equal(t, "gpx", garmin.FormatGPX.Extension())
	assert.Equal(t, "TCX", garmin.FormatTCX.String())

	f, err := garmin.ParseDownloadFormat("KML")
	require.NoError(t, err)
	assert.Equal(t, garmin.FormatKML, f)

	_, err = garmin.ParseDownloadFormat("fit")
	assert.Error(t, err)
}

func TestPasswordGrant(t *testing.T) {
	srv := garmintest.NewServer()
	defer srv.Close()
	ctx := context.Background()

	grant := garmin.NewPasswordGrant(srv.TokenURL(), "client", "secret", nil)

	tok, err := grant.Login(ctx, srv.Username, srv.Password)
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok.AccessToken)
	assert.True(t, tok.Valid())

	expired := *tok
	expired.Expiry = time.Now().Add(-time.Hour)
	renewed, err := grant.Refresh(ctx, &expired)
	require.NoError(t, err)
	assert.Equal(t, "access-2", renewed.AccessToken)
	assert.Equal(t, 1, srv.Logins())
	assert.Equal(t, 1, srv.Refreshes())

	_, err = grant.Login(ctx, srv.Username, "wrong")
	assert.ErrorIs(t, err, garmin.ErrAuthentication)
}
