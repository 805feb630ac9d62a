package observability

import (
	"context"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/autovant/RCA-Final-sub001/internal/platform/logger"
)

// Metrics aggregates the ingestion-intelligence counters and serves them in
// Prometheus exposition format. All methods are nil-safe so callers never
// have to guard on METRICS_ENABLED themselves.
type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	detectionTotal      *CounterVec
	detectionDuration   *HistogramVec
	parserExecutedTotal *CounterVec

	cacheLookupTotal *CounterVec
	cacheStoreTotal  *CounterVec

	evictionRemovedTotal *CounterVec
	evictionLockSkips    *CounterVec
	evictionInflight     *Gauge

	searchTotal              *CounterVec
	crossWorkspaceAuditTotal *Counter

	pgStats   *GaugeVec
	redisUp   *Gauge
	redisPing *Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	v := strings.TrimSpace(os.Getenv("METRICS_ENABLED"))
	if v == "" {
		return false
	}
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

func Current() *Metrics {
	return instance
}

func Init() *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = newMetrics()
	})
	return instance
}

func newMetrics() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("rca_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"rca_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		),
		apiInflight: NewGauge("rca_api_inflight_requests", "In-flight API requests."),
		detectionTotal: NewCounterVec(
			"rca_platform_detection_total",
			"Platform detection outcomes by platform/method.",
			[]string{"platform", "method"},
		),
		detectionDuration: NewHistogramVec(
			"rca_platform_detection_duration_seconds",
			"Platform detection duration in seconds by platform.",
			[]string{"platform"},
			[]float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		),
		parserExecutedTotal: NewCounterVec(
			"rca_parser_executed_total",
			"Parser executions by platform and feature-flag set.",
			[]string{"platform", "flags"},
		),
		cacheLookupTotal: NewCounterVec(
			"rca_embedding_cache_lookup_total",
			"Embedding cache lookups by tenant/outcome.",
			[]string{"tenant", "outcome"},
		),
		cacheStoreTotal: NewCounterVec(
			"rca_embedding_cache_store_total",
			"Embedding cache stores by tenant/status.",
			[]string{"tenant", "status"},
		),
		evictionRemovedTotal: NewCounterVec(
			"rca_embedding_cache_evicted_total",
			"Evicted embedding cache entries by tenant/model/policy.",
			[]string{"tenant", "model", "policy"},
		),
		evictionLockSkips: NewCounterVec(
			"rca_embedding_cache_eviction_lock_skips_total",
			"Eviction runs skipped because the tenant advisory lock was held.",
			[]string{"tenant"},
		),
		evictionInflight: NewGauge("rca_embedding_cache_evictions_inflight", "In-flight eviction tasks."),
		searchTotal: NewCounterVec(
			"rca_related_incident_search_total",
			"Related-incident searches by scope/status.",
			[]string{"scope", "status"},
		),
		crossWorkspaceAuditTotal: NewCounter(
			"rca_cross_workspace_audit_total",
			"Audit tokens minted for cross-workspace result sets.",
		),
		pgStats:   NewGaugeVec("rca_postgres_pool", "Postgres connection pool stats.", []string{"stat"}),
		redisUp:   NewGauge("rca_redis_up", "Redis connectivity (1=up, 0=down)."),
		redisPing: NewGauge("rca_redis_ping_seconds", "Redis ping latency in seconds."),
	}
}

// FlagSetLabel serializes enabled flag names as a sorted pipe-joined string,
// or "none".
func FlagSetLabel(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return strings.Join(sorted, "|")
}

func (m *Metrics) ObserveAPIRequest(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(seconds, method, route, status)
}

func (m *Metrics) APIInflight() *Gauge {
	if m == nil {
		return nil
	}
	return m.apiInflight
}

func (m *Metrics) ObserveDetection(platform, method string, parserExecuted bool, flagLabel string, seconds float64) {
	if m == nil {
		return
	}
	m.detectionTotal.Inc(platform, method)
	m.detectionDuration.Observe(seconds, platform)
	if parserExecuted {
		m.parserExecutedTotal.Inc(platform, flagLabel)
	}
}

func (m *Metrics) ObserveCacheLookup(tenant string, hit bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.cacheLookupTotal.Inc(tenant, outcome)
}

func (m *Metrics) ObserveCacheStore(tenant, status string) {
	if m == nil {
		return
	}
	m.cacheStoreTotal.Inc(tenant, status)
}

func (m *Metrics) ObserveEviction(tenant, model, policy string, removed int64) {
	if m == nil || removed <= 0 {
		return
	}
	m.evictionRemovedTotal.Add(float64(removed), tenant, model, policy)
}

func (m *Metrics) ObserveEvictionLockSkip(tenant string) {
	if m == nil {
		return
	}
	m.evictionLockSkips.Inc(tenant)
}

func (m *Metrics) SetEvictionInflight(n int) {
	if m == nil {
		return
	}
	m.evictionInflight.Set(float64(n))
}

func (m *Metrics) ObserveSearch(scope, status string) {
	if m == nil {
		return
	}
	m.searchTotal.Inc(scope, status)
}

func (m *Metrics) IncCrossWorkspaceAudit() {
	if m == nil {
		return
	}
	m.crossWorkspaceAuditTotal.Inc()
}

// WritePrometheus serializes every registered metric.
func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	writers := []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.detectionTotal, m.detectionDuration, m.parserExecutedTotal,
		m.cacheLookupTotal, m.cacheStoreTotal,
		m.evictionRemovedTotal, m.evictionLockSkips, m.evictionInflight,
		m.searchTotal, m.crossWorkspaceAuditTotal,
		m.pgStats, m.redisUp, m.redisPing,
	}
	for _, wr := range writers {
		if err := wr.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func scrapeInterval() time.Duration {
	v := strings.TrimSpace(os.Getenv("METRICS_SCRAPE_INTERVAL_SECONDS"))
	if v == "" {
		return 10 * time.Second
	}
	d, err := time.ParseDuration(v + "s")
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// StartPostgresCollector samples GORM pool stats on the scrape interval.
func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: postgres stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.pgStats.Set(float64(stats.OpenConnections), "open_connections")
				m.pgStats.Set(float64(stats.InUse), "in_use")
				m.pgStats.Set(float64(stats.Idle), "idle")
				m.pgStats.Set(float64(stats.WaitCount), "wait_count")
				m.pgStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
			}
		}
	}()
}

// StartRedisCollector pings Redis on the scrape interval.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	interval := scrapeInterval()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = rdb.Close()
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}
