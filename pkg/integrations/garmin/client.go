package garmin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lancerinf/garmin-importer/pkg/domain/activity"
	httputil "github.com/lancerinf/garmin-importer/pkg/infrastructure/http"
)

const (
	// PageSize is the number of activities requested per search page.
	PageSize = 20

	searchPath = "/activitylist-service/activities/search/activities"
	userAgent  = "garmin-importer/1.0"
)

// API is the subset of Garmin Connect used by the importer.
type API interface {
	// ActivitiesByDate lists activities that started on calendar days
	// within [start, end], both inclusive.
	ActivitiesByDate(ctx context.Context, start, end time.Time) ([]activity.RawActivity, error)
	DownloadActivity(ctx context.Context, activityID string, format DownloadFormat) ([]byte, error)
}

// Client is an API client for Garmin Connect. Authentication is the job of
// the http.Client passed in (see oauth.NewClient).
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// doRequest performs a GET and returns the response for a 2xx status.
func (c *Client) doRequest(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("NK", "NT")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if err := httputil.ParseErrorResponse(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

// ActivitiesByDate pages through the search endpoint until a short page.
func (c *Client) ActivitiesByDate(ctx context.Context, start, end time.Time) ([]activity.RawActivity, error) {
	var all []activity.RawActivity
	for offset := 0; ; offset += PageSize {
		query := url.Values{
			"startDate": {start.Format(time.DateOnly)},
			"endDate":   {end.Format(time.DateOnly)},
			"start":     {strconv.Itoa(offset)},
			"limit":     {strconv.Itoa(PageSize)},
		}

		page, err := c.searchPage(ctx, query)
		if err != nil {
			return nil, classify("list activities", err)
		}
		all = append(all, page...)
		if len(page) < PageSize {
			return all, nil
		}
	}
}

func (c *Client) searchPage(ctx context.Context, query url.Values) ([]activity.RawActivity, error) {
	resp, err := c.doRequest(ctx, searchPath, query)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	page, err := activity.DecodeRawActivities(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return page, nil
}

// DownloadActivity returns the raw bytes of the activity in the given format.
func (c *Client) DownloadActivity(ctx context.Context, activityID string, format DownloadFormat) ([]byte, error) {
	path, err := format.path(url.PathEscape(activityID))
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, path, nil)
	if err != nil {
		return nil, classify("download "+format.String(), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify("download "+format.String(), err)
	}
	return data, nil
}
