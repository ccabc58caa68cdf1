package monitoring

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestMetrics aggregates HTTP traffic per route template. Status codes
// are bucketed by class ("2xx", "4xx", ...).
type RequestMetrics struct {
	mu        sync.Mutex
	total     int64
	active    int64
	errors    int64
	classes   map[string]int64
	routes    map[string]*RouteStats
	startedAt time.Time
}

type RouteStats struct {
	Count      int64         `json:"count"`
	Errors     int64         `json:"errors"`
	AvgLatency time.Duration `json:"avg_latency_ns"`
	MaxLatency time.Duration `json:"max_latency_ns"`
	total      time.Duration
}

type RequestSnapshot struct {
	Total   int64                 `json:"request_count"`
	Active  int64                 `json:"active_requests"`
	Errors  int64                 `json:"error_count"`
	Classes map[string]int64      `json:"status_classes"`
	Routes  map[string]RouteStats `json:"routes"`
}

// SyncMetrics counts sync operations by "<kind>.<outcome>", for example
// "task.create.done" or "contact.delete.compensated".
type SyncMetrics struct {
	mu       sync.RWMutex
	counters map[string]int64
	imported map[string]int64
	failed   map[string]int64
}

type HealthCheckFunc func(ctx context.Context) error

type HealthCheck struct {
	Name    string    `json:"name"`
	Status  string    `json:"status"`
	Message string    `json:"message,omitempty"`
	LastRun time.Time `json:"last_run"`
}

type HealthChecker struct {
	mu     sync.Mutex
	funcs  map[string]HealthCheckFunc
	checks map[string]HealthCheck
}

var globalMetrics = NewRequestMetrics()

var globalSyncMetrics = NewSyncMetrics()

var globalHealthChecker = NewHealthChecker()

func NewRequestMetrics() *RequestMetrics {
	return &RequestMetrics{
		classes:   make(map[string]int64),
		routes:    make(map[string]*RouteStats),
		startedAt: time.Now(),
	}
}

func NewSyncMetrics() *SyncMetrics {
	return &SyncMetrics{
		counters: make(map[string]int64),
		imported: make(map[string]int64),
		failed:   make(map[string]int64),
	}
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		funcs:  make(map[string]HealthCheckFunc),
		checks: make(map[string]HealthCheck),
	}
}

func MetricsMiddleware() gin.HandlerFunc {
	return globalMetrics.Middleware()
}

func (m *RequestMetrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		m.mu.Lock()
		m.active++
		m.mu.Unlock()

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.observe(c.Request.Method+" "+route, c.Writer.Status(), time.Since(start))
	}
}

func (m *RequestMetrics) observe(route string, status int, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.active--
	m.total++
	m.classes[fmt.Sprintf("%dxx", status/100)]++

	stats, ok := m.routes[route]
	if !ok {
		stats = &RouteStats{}
		m.routes[route] = stats
	}
	stats.Count++
	stats.total += latency
	stats.AvgLatency = stats.total / time.Duration(stats.Count)
	if latency > stats.MaxLatency {
		stats.MaxLatency = latency
	}
	if status >= http.StatusBadRequest {
		m.errors++
		stats.Errors++
	}
}

func (m *RequestMetrics) Snapshot() RequestSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := RequestSnapshot{
		Total:   m.total,
		Active:  m.active,
		Errors:  m.errors,
		Classes: make(map[string]int64, len(m.classes)),
		Routes:  make(map[string]RouteStats, len(m.routes)),
	}
	for k, v := range m.classes {
		snap.Classes[k] = v
	}
	for k, v := range m.routes {
		snap.Routes[k] = *v
	}
	return snap
}

func uptime() time.Duration {
	return time.Since(globalMetrics.startedAt)
}

// Sync returns the process-wide sync counters.
func Sync() *SyncMetrics {
	return globalSyncMetrics
}

func (m *SyncMetrics) Record(kind, outcome string) {
	m.mu.Lock()
	m.counters[kind+"."+outcome]++
	m.mu.Unlock()
}

func (m *SyncMetrics) RecordImport(kind string, imported, failed int) {
	m.mu.Lock()
	m.imported[kind] += int64(imported)
	m.failed[kind] += int64(failed)
	m.mu.Unlock()
}

func (m *SyncMetrics) Count(kind, outcome string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counters[kind+"."+outcome]
}

func (m *SyncMetrics) Snapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	copyOf := func(src map[string]int64) map[string]int64 {
		dst := make(map[string]int64, len(src))
		for k, v := range src {
			dst[k] = v
		}
		return dst
	}
	return map[string]interface{}{
		"operations":     copyOf(m.counters),
		"imported_items": copyOf(m.imported),
		"failed_items":   copyOf(m.failed),
	}
}

type RuntimeStats struct {
	Uptime     string `json:"uptime"`
	Goroutines int    `json:"goroutines"`
	HeapMB     uint64 `json:"heap_mb"`
	NumGC      uint32 `json:"num_gc"`
	GoVersion  string `json:"go_version"`
}

func runtimeStats() RuntimeStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return RuntimeStats{
		Uptime:     uptime().Round(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
		HeapMB:     mem.HeapAlloc >> 20,
		NumGC:      mem.NumGC,
		GoVersion:  runtime.Version(),
	}
}

func RegisterHealthCheck(name string, checkFunc HealthCheckFunc) {
	globalHealthChecker.Register(name, checkFunc)
}

func (h *HealthChecker) Register(name string, checkFunc HealthCheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.funcs[name] = checkFunc
}

// Run executes every registered check with a 5 second budget each.
func (h *HealthChecker) Run(ctx context.Context) map[string]HealthCheck {
	h.mu.Lock()
	defer h.mu.Unlock()

	results := make(map[string]HealthCheck, len(h.funcs))
	for name, fn := range h.funcs {
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		check := HealthCheck{Name: name, Status: "healthy", LastRun: time.Now()}
		if err := fn(checkCtx); err != nil {
			check.Status = "unhealthy"
			check.Message = err.Error()
		}
		cancel()

		h.checks[name] = check
		results[name] = check
	}
	return results
}

func healthy(checks map[string]HealthCheck) bool {
	for _, check := range checks {
		if check.Status != "healthy" {
			return false
		}
	}
	return true
}

func MetricsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"application": globalMetrics.Snapshot(),
			"sync":        globalSyncMetrics.Snapshot(),
			"system":      runtimeStats(),
			"timestamp":   time.Now(),
		})
	}
}

func HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := globalHealthChecker.Run(c.Request.Context())

		overallStatus := "healthy"
		status := http.StatusOK
		if !healthy(checks) {
			overallStatus = "unhealthy"
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"status":    overallStatus,
			"timestamp": time.Now(),
			"checks":    checks,
			"uptime":    uptime().String(),
		})
	}
}

func ReadinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if healthy(globalHealthChecker.Run(c.Request.Context())) {
			c.JSON(http.StatusOK, gin.H{"status": "ready", "timestamp": time.Now()})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "timestamp": time.Now()})
	}
}

func LivenessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "alive",
			"timestamp": time.Now(),
			"uptime":    uptime().String(),
		})
	}
}
