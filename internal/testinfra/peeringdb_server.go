package testinfra

import (
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/xelth-com/pdbsync/internal/resource"
)

// Capture is a request seen by MockPeeringDB.
type Capture struct {
	Method string
	Path   string
	Query  map[string]string
	Header http.Header
}

// MockPeeringDB serves PeeringDB-shaped JSON: GET /api/{tag} with the id,
// since and depth parameters, and cache files at /{tag}-0.json.
type MockPeeringDB struct {
	Server *httptest.Server

	mu           sync.Mutex
	rows         map[string]map[int64]resource.Row
	captures     []Capture
	rateLimited  int
	incompatible bool
	cacheStatus  int
}

// NewMockPeeringDB starts a mock server that is closed with the test.
func NewMockPeeringDB(t *testing.T) *MockPeeringDB {
	t.Helper()

	m := &MockPeeringDB{
		rows:        map[string]map[int64]resource.Row{},
		cacheStatus: http.StatusOK,
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/{tag}", m.handleList).Methods(http.MethodGet)
	r.HandleFunc("/{tag}-0.json", m.handleCache).Methods(http.MethodGet)
	r.Use(m.capture)

	m.Server = httptest.NewServer(r)
	t.Cleanup(m.Server.Close)
	return m
}

// APIURL is the value for sync.url.
func (m *MockPeeringDB) APIURL() string { return m.Server.URL + "/api" }

// CacheURL is the value for sync.cache_url.
func (m *MockPeeringDB) CacheURL() string { return m.Server.URL }

// Add stores rows under tag, replacing rows with the same id.
func (m *MockPeeringDB) Add(tag string, rows ...resource.Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows[tag] == nil {
		m.rows[tag] = map[int64]resource.Row{}
	}
	for _, row := range rows {
		m.rows[tag][row.MustID()] = row
	}
}

// Remove drops the object tag/id.
func (m *MockPeeringDB) Remove(tag string, id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows[tag], id)
}

// RateLimit makes the next n API requests answer 429.
func (m *MockPeeringDB) RateLimit(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rateLimited = n
}

// Incompatible makes API requests answer 400 "client version is incompatible".
func (m *MockPeeringDB) Incompatible(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incompatible = on
}

// CacheStatus sets the status returned for cache files.
func (m *MockPeeringDB) CacheStatus(code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheStatus = code
}

// Captures returns every request seen so far.
func (m *MockPeeringDB) Captures() []Capture {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Capture, len(m.captures))
	copy(out, m.captures)
	return out
}

// Requests returns the captured requests whose path is p.
func (m *MockPeeringDB) Requests(p string) []Capture {
	var out []Capture
	for _, c := range m.Captures() {
		if c.Path == p {
			out = append(out, c)
		}
	}
	return out
}

// ResetCaptures forgets the captured requests.
func (m *MockPeeringDB) ResetCaptures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.captures = nil
}

func (m *MockPeeringDB) capture(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := map[string]string{}
		for k := range r.URL.Query() {
			query[k] = r.URL.Query().Get(k)
		}
		m.mu.Lock()
		m.captures = append(m.captures, Capture{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  query,
			Header: r.Header.Clone(),
		})
		m.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (m *MockPeeringDB) handleList(w http.ResponseWriter, r *http.Request) {
	tag := mux.Vars(r)["tag"]

	m.mu.Lock()
	limited := m.rateLimited > 0
	if limited {
		m.rateLimited--
	}
	incompatible := m.incompatible
	m.mu.Unlock()

	switch {
	case limited:
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"meta": map[string]any{"error": "Request was throttled."},
		})
		return
	case incompatible:
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"meta": map[string]any{"error": "Your client version is incompatible with server version of the api, please install peeringdb>=2.0.0"},
		})
		return
	case !resource.IsTag(tag):
		writeJSON(w, http.StatusNotFound, map[string]any{"meta": map[string]any{"error": "Not found"}})
		return
	}

	q := r.URL.Query()
	var id, since, asn int64
	if v := q.Get("id"); v != "" {
		id, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := q.Get("asn"); v != "" {
		asn, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := q.Get("since"); v != "" {
		since, _ = strconv.ParseInt(v, 10, 64)
	}

	var data []resource.Row
	for _, row := range m.sorted(tag) {
		if id != 0 && row.MustID() != id {
			continue
		}
		if since > 1 && updatedUnix(row) < since {
			continue
		}
		if v, _ := resource.AsID(row["asn"]); asn != 0 && v != asn {
			continue
		}
		data = append(data, row)
	}
	writeData(w, data)
}

func (m *MockPeeringDB) handleCache(w http.ResponseWriter, r *http.Request) {
	tag := mux.Vars(r)["tag"]
	m.mu.Lock()
	status := m.cacheStatus
	m.mu.Unlock()
	if status != http.StatusOK || !resource.IsTag(tag) {
		if status == http.StatusOK {
			status = http.StatusNotFound
		}
		w.WriteHeader(status)
		return
	}
	writeData(w, m.sorted(tag))
}

func (m *MockPeeringDB) sorted(tag string) []resource.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]resource.Row, 0, len(m.rows[tag]))
	for _, row := range m.rows[tag] {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MustID() < out[j].MustID() })
	return out
}

// updatedUnix reads the "updated" timestamp of a row; rows without one
// always match.
func updatedUnix(row resource.Row) int64 {
	s, _ := row["updated"].(string)
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 1<<62 - 1
	}
	return t.Unix()
}

func writeData(w http.ResponseWriter, data []resource.Row) {
	if data == nil {
		data = []resource.Row{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": data, "meta": map[string]any{}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = gojson.NewEncoder(w).Encode(v)
}
