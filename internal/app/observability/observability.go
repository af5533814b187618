package observability

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"cbtimport/internal/auth"
	"cbtimport/internal/wordimport"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type key struct {
	Method string
	Path   string
	Status int
}

type stat struct {
	Count     int64
	LatencyMS float64
}

// extractionTotals accumulates wordimport.Stats per strategy.
type extractionTotals struct {
	Runs           int64
	Unmatched      int64
	Fragments      int64
	Accepted       int64
	Discarded      int64
	Boilerplate    int64
	WithoutOptions int64
	ExtraImages    int64
}

type Collector struct {
	db *sql.DB

	mu           sync.RWMutex
	requestStats map[key]stat
	extractions  map[wordimport.Strategy]extractionTotals
	startedAt    time.Time
}

func NewCollector(db *sql.DB) *Collector {
	return &Collector{
		db:           db,
		requestStats: make(map[key]stat),
		extractions:  make(map[wordimport.Strategy]extractionTotals),
		startedAt:    time.Now(),
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// ObserveExtraction records the outcome of one engine run.
func (c *Collector) ObserveExtraction(s wordimport.Stats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.extractions[s.Strategy]
	t.Runs++
	if s.Unmatched {
		t.Unmatched++
	}
	t.Fragments += int64(s.Fragments)
	t.Accepted += int64(s.Accepted)
	t.Discarded += int64(s.Discarded)
	t.Boilerplate += int64(s.Boilerplate)
	t.WithoutOptions += int64(s.WithoutOptions)
	t.ExtraImages += int64(s.ExtraImages)
	c.extractions[s.Strategy] = t
}

func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		latencyMS := float64(time.Since(start).Microseconds()) / 1000.0
		path := normalizedPath(r.URL.Path)

		c.mu.Lock()
		k := key{Method: r.Method, Path: path, Status: rec.status}
		s := c.requestStats[k]
		s.Count++
		s.LatencyMS += latencyMS
		c.requestStats[k] = s
		c.mu.Unlock()

		client := ""
		if cl, ok := auth.CurrentClient(r.Context()); ok {
			client = cl.Name
		}

		entry := map[string]any{
			"request_id": middleware.GetReqID(r.Context()),
			"client":     client,
			"batch_id":   extractBatchID(r.URL.Path),
			"method":     r.Method,
			"path":       path,
			"status":     rec.status,
			"latency_ms": latencyMS,
			"bytes_in":   r.ContentLength,
			"remote_ip":  strings.TrimSpace(r.RemoteAddr),
		}
		b, _ := json.Marshal(entry)
		log.Printf("%s", string(b))
	})
}

func (c *Collector) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	c.mu.RLock()
	statsCopy := make(map[key]stat, len(c.requestStats))
	for k, v := range c.requestStats {
		statsCopy[k] = v
	}
	extractCopy := make(map[wordimport.Strategy]extractionTotals, len(c.extractions))
	for k, v := range c.extractions {
		extractCopy[k] = v
	}
	startedAt := c.startedAt
	c.mu.RUnlock()

	keys := make([]key, 0, len(statsCopy))
	for k := range statsCopy {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Method != keys[j].Method {
			return keys[i].Method < keys[j].Method
		}
		if keys[i].Path != keys[j].Path {
			return keys[i].Path < keys[j].Path
		}
		return keys[i].Status < keys[j].Status
	})

	var sb strings.Builder
	sb.WriteString("# cbtimport observability metrics\n")
	sb.WriteString("# TYPE cbtimport_uptime_seconds gauge\n")
	sb.WriteString(fmt.Sprintf("cbtimport_uptime_seconds %.0f\n", time.Since(startedAt).Seconds()))

	sb.WriteString("# TYPE cbtimport_http_requests_total counter\n")
	sb.WriteString("# TYPE cbtimport_http_request_latency_ms_sum counter\n")
	sb.WriteString("# TYPE cbtimport_http_request_latency_ms_avg gauge\n")
	for _, k := range keys {
		s := statsCopy[k]
		labels := fmt.Sprintf("method=\"%s\",path=\"%s\",status=\"%d\"", k.Method, k.Path, k.Status)
		sb.WriteString(fmt.Sprintf("cbtimport_http_requests_total{%s} %d\n", labels, s.Count))
		sb.WriteString(fmt.Sprintf("cbtimport_http_request_latency_ms_sum{%s} %.3f\n", labels, s.LatencyMS))
		avg := 0.0
		if s.Count > 0 {
			avg = s.LatencyMS / float64(s.Count)
		}
		sb.WriteString(fmt.Sprintf("cbtimport_http_request_latency_ms_avg{%s} %.3f\n", labels, avg))
	}

	strategies := make([]string, 0, len(extractCopy))
	for s := range extractCopy {
		strategies = append(strategies, string(s))
	}
	sort.Strings(strategies)
	sb.WriteString("# TYPE cbtimport_extractions_total counter\n")
	sb.WriteString("# TYPE cbtimport_extraction_questions_total counter\n")
	for _, name := range strategies {
		t := extractCopy[wordimport.Strategy(name)]
		label := fmt.Sprintf("strategy=\"%s\"", name)
		sb.WriteString(fmt.Sprintf("cbtimport_extractions_total{%s} %d\n", label, t.Runs))
		sb.WriteString(fmt.Sprintf("cbtimport_extractions_unmatched_total{%s} %d\n", label, t.Unmatched))
		sb.WriteString(fmt.Sprintf("cbtimport_extraction_fragments_total{%s} %d\n", label, t.Fragments))
		sb.WriteString(fmt.Sprintf("cbtimport_extraction_questions_total{%s,outcome=\"accepted\"} %d\n", label, t.Accepted))
		sb.WriteString(fmt.Sprintf("cbtimport_extraction_questions_total{%s,outcome=\"discarded\"} %d\n", label, t.Discarded))
		sb.WriteString(fmt.Sprintf("cbtimport_extraction_questions_total{%s,outcome=\"boilerplate\"} %d\n", label, t.Boilerplate))
		sb.WriteString(fmt.Sprintf("cbtimport_extraction_questions_without_options_total{%s} %d\n", label, t.WithoutOptions))
		sb.WriteString(fmt.Sprintf("cbtimport_extraction_extra_images_total{%s} %d\n", label, t.ExtraImages))
	}

	if c.db != nil {
		dbs := c.db.Stats()
		sb.WriteString("# TYPE cbtimport_db_open_connections gauge\n")
		sb.WriteString(fmt.Sprintf("cbtimport_db_open_connections %d\n", dbs.OpenConnections))
		sb.WriteString("# TYPE cbtimport_db_in_use_connections gauge\n")
		sb.WriteString(fmt.Sprintf("cbtimport_db_in_use_connections %d\n", dbs.InUse))
		sb.WriteString("# TYPE cbtimport_db_idle_connections gauge\n")
		sb.WriteString(fmt.Sprintf("cbtimport_db_idle_connections %d\n", dbs.Idle))
		sb.WriteString("# TYPE cbtimport_db_wait_count counter\n")
		sb.WriteString(fmt.Sprintf("cbtimport_db_wait_count %d\n", dbs.WaitCount))
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(sb.String()))
}

func normalizedPath(path string) string {
	if path == "" {
		return "/"
	}
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if p == "" {
			continue
		}
		if _, err := strconv.ParseInt(p, 10, 64); err == nil {
			parts[i] = "{id}"
			continue
		}
		if _, err := uuid.Parse(p); err == nil && len(p) == 36 {
			parts[i] = "{batchID}"
		}
	}
	return strings.Join(parts, "/")
}

func extractBatchID(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] == "imports" {
			if _, err := uuid.Parse(parts[i+1]); err == nil && len(parts[i+1]) == 36 {
				return parts[i+1]
			}
		}
	}
	return ""
}
