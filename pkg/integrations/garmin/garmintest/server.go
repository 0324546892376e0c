// Package garmintest provides an in-process Garmin Connect for tests: the
// activity search, the download service and the OAuth token endpoint.
package garmintest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/muktihari/fit/encoder"
	"github.com/muktihari/fit/profile/mesgdef"
	"github.com/muktihari/fit/profile/typedef"
	"github.com/muktihari/fit/proto"

	"github.com/lancerinf/garmin-importer/pkg/domain/bundle"
)

// Routes that can be told to fail with FailNext.
const (
	RouteSearch   = "search"
	RouteOriginal = "original"
	RouteExport   = "export"
	RouteToken    = "token"
)

const (
	TokenPath   = "/oauth-service/oauth/token"
	localLayout = "2006-01-02 15:04:05"
)

type Window struct {
	Start string
	End   string
}

type Server struct {
	*httptest.Server

	Username string
	Password string

	mu         sync.Mutex
	activities []map[string]interface{}
	failures   map[string][]int
	windows    []Window
	downloads  []string
	logins     int
	refreshes  int
	issued     int
}

func NewServer() *Server {
	s := &Server{
		Username: "runner@example.com",
		Password: "hunter2",
		failures: make(map[string][]int),
	}

	r := chi.NewRouter()
	r.Get("/activitylist-service/activities/search/activities", s.search)
	r.Get("/download-service/files/activity/{id}", s.original)
	r.Get("/download-service/export/{format}/activity/{id}", s.export)
	r.Post(TokenPath, s.token)

	s.Server = httptest.NewServer(r)
	return s
}

func (s *Server) TokenURL() string {
	return s.URL + TokenPath
}

// AddActivity registers an activity that started at begin and returns its
// JSON document so tests can tweak fields.
func (s *Server) AddActivity(id int64, begin time.Time, typeKey string) map[string]interface{} {
	doc := map[string]interface{}{
		"activityId":     id,
		"activityName":   fmt.Sprintf("Activity %d", id),
		"beginTimestamp": begin.UnixMilli(),
		"startTimeLocal": begin.UTC().Format(localLayout),
		"startTimeGMT":   begin.UTC().Format(localLayout),
		"distance":       5012.3,
		"duration":       1800.5,
		"activityType": map[string]interface{}{
			"typeId":       1,
			"typeKey":      typeKey,
			"parentTypeId": 17,
			"isHidden":     false,
		},
		"splitSummaries": []interface{}{map[string]interface{}{"distance": 1000}},
		"averageHR":      nil,
		"ownerFullName":  "Test Runner",
	}

	s.mu.Lock()
	s.activities = append(s.activities, doc)
	s.mu.Unlock()
	return doc
}

// FailNext makes the next len(statuses) calls to route answer with those statuses.
func (s *Server) FailNext(route string, statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = append(s.failures[route], statuses...)
}

// Windows returns the date ranges queried, one entry per first page.
func (s *Server) Windows() []Window {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Window(nil), s.windows...)
}

// Downloads returns "FORMAT:id" for every successful download.
func (s *Server) Downloads() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.downloads...)
}

func (s *Server) Logins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logins
}

func (s *Server) Refreshes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshes
}

func (s *Server) injected(route string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	queue := s.failures[route]
	if len(queue) == 0 {
		return 0, false
	}
	s.failures[route] = queue[1:]
	return queue[0], true
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	if status, ok := s.injected(RouteSearch); ok {
		http.Error(w, http.StatusText(status), status)
		return
	}

	q := r.URL.Query()
	start, err1 := time.Parse(time.DateOnly, q.Get("startDate"))
	end, err2 := time.Parse(time.DateOnly, q.Get("endDate"))
	offset, err3 := strconv.Atoi(q.Get("start"))
	limit, err4 := strconv.Atoi(q.Get("limit"))
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		http.Error(w, "bad query", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	if offset == 0 {
		s.windows = append(s.windows, Window{Start: q.Get("startDate"), End: q.Get("endDate")})
	}
	var matched []map[string]interface{}
	for _, a := range s.activities {
		local, _ := a["startTimeLocal"].(string)
		day, err := time.Parse(localLayout, local)
		if err == nil && !day.Before(start) && !day.After(end.Add(24*time.Hour-time.Second)) {
			matched = append(matched, a)
		}
	}
	s.mu.Unlock()

	// Garmin lists newest first.
	sort.SliceStable(matched, func(i, j int) bool {
		return int64Field(matched[i], "beginTimestamp") > int64Field(matched[j], "beginTimestamp")
	})

	page := []map[string]interface{}{}
	if offset < len(matched) {
		page = matched[offset:min(offset+limit, len(matched))]
	}
	writeJSON(w, page)
}

func (s *Server) original(w http.ResponseWriter, r *http.Request) {
	if status, ok := s.injected(RouteOriginal); ok {
		http.Error(w, http.StatusText(status), status)
		return
	}
	id := chi.URLParam(r, "id")
	doc := s.find(id)
	if doc == nil {
		http.NotFound(w, r)
		return
	}

	begin := time.UnixMilli(int64Field(doc, "beginTimestamp"))
	fit, err := SessionFIT(begin, 30*time.Minute, 5012.3, typedef.SportRunning)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	zipped, err := bundle.Pack([]bundle.File{{Name: id + "_ACTIVITY.fit", Data: fit}})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.recordDownload("ORIGINAL", id)
	w.Header().Set("Content-Type", "application/x-zip-compressed")
	w.Write(zipped)
}

func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	if status, ok := s.injected(RouteExport); ok {
		http.Error(w, http.StatusText(status), status)
		return
	}
	id := chi.URLParam(r, "id")
	format := chi.URLParam(r, "format")
	if s.find(id) == nil {
		http.NotFound(w, r)
		return
	}

	s.recordDownload(format, id)
	w.Header().Set("Content-Type", "application/gpx+xml")
	fmt.Fprintf(w, `<?xml version="1.0"?><gpx creator="Garmin Connect"><trk><name>%s</name></trk></gpx>`, id)
}

func (s *Server) token(w http.ResponseWriter, r *http.Request) {
	if status, ok := s.injected(RouteToken); ok {
		http.Error(w, http.StatusText(status), status)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch r.PostForm.Get("grant_type") {
	case "password":
		if r.PostForm.Get("username") != s.Username || r.PostForm.Get("password") != s.Password {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		s.logins++
	case "refresh_token":
		if r.PostForm.Get("refresh_token") == "" {
			http.Error(w, `{"error":"invalid_request"}`, http.StatusBadRequest)
			return
		}
		s.refreshes++
	default:
		http.Error(w, `{"error":"unsupported_grant_type"}`, http.StatusBadRequest)
		return
	}

	s.issued++
	writeJSON(w, map[string]interface{}{
		"access_token":  fmt.Sprintf("access-%d", s.issued),
		"refresh_token": fmt.Sprintf("refresh-%d", s.issued),
		"token_type":    "Bearer",
		"expires_in":    3600,
	})
}

func (s *Server) find(id string) map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.activities {
		if fmt.Sprint(a["activityId"]) == id {
			return a
		}
	}
	return nil
}

func (s *Server) recordDownload(format, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.downloads = append(s.downloads, format+":"+id)
}

func int64Field(doc map[string]interface{}, key string) int64 {
	v, _ := doc[key].(int64)
	return v
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// SessionFIT encodes a minimal activity FIT file with one session and one lap.
func SessionFIT(start time.Time, elapsed time.Duration, distanceMeters float64, sport typedef.Sport) ([]byte, error) {
	end := start.Add(elapsed)
	millis := uint32(elapsed.Milliseconds())
	centimeters := uint32(distanceMeters * 100)

	fit := &proto.FIT{Messages: []proto.Message{
		mesgdef.NewFileId(nil).
			SetType(typedef.FileActivity).
			SetManufacturer(typedef.ManufacturerGarmin).
			SetTimeCreated(start).
			ToMesg(nil),
		mesgdef.NewRecord(nil).
			SetTimestamp(start).
			SetHeartRate(120).
			ToMesg(nil),
		mesgdef.NewLap(nil).
			SetTimestamp(end).
			SetStartTime(start).
			SetTotalElapsedTime(millis).
			SetTotalDistance(centimeters).
			ToMesg(nil),
		mesgdef.NewSession(nil).
			SetTimestamp(end).
			SetStartTime(start).
			SetSport(sport).
			SetSubSport(typedef.SubSportGeneric).
			SetTotalElapsedTime(millis).
			SetTotalTimerTime(millis).
			SetTotalDistance(centimeters).
			ToMesg(nil),
		mesgdef.NewActivity(nil).
			SetTimestamp(end).
			SetNumSessions(1).
			ToMesg(nil),
	}}

	var buf bytes.Buffer
	if err := encoder.New(&buf).Encode(fit); err != nil {
		return nil, fmt.Errorf("encode FIT: %w", err)
	}
	return buf.Bytes(), nil
}
