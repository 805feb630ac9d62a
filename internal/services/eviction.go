package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/autovant/RCA-Final-sub001/internal/config"
	"github.com/autovant/RCA-Final-sub001/internal/data/repos/cache"
	"github.com/autovant/RCA-Final-sub001/internal/observability"
	"github.com/autovant/RCA-Final-sub001/internal/pkg/dbctx"
	"github.com/autovant/RCA-Final-sub001/internal/platform/logger"
)

// EvictionOptions overrides per run; zero values fall back to config.
type EvictionOptions struct {
	Now         time.Time
	CutoffDays  int
	BatchLimit  int
	PolicyLabel string
}

// EvictionResult reports one eviction attempt. LockAcquired=false means
// another process held the tenant's lock; that is contention, not failure.
type EvictionResult struct {
	TenantID     uuid.UUID        `json:"tenant_id"`
	LockAcquired bool             `json:"lock_acquired"`
	Evicted      int64            `json:"evicted"`
	PerModel     map[string]int64 `json:"per_model,omitempty"`
	Policy       string           `json:"policy"`
}

// EvictionRunner deletes stale zero-hit cache entries for one tenant under
// the tenant's cross-process advisory lock.
type EvictionRunner struct {
	repo    cache.EmbeddingCacheRepo
	cfg     config.EvictionConfig
	log     *logger.Logger
	metrics *observability.Metrics
}

func NewEvictionRunner(repo cache.EmbeddingCacheRepo, cfg config.EvictionConfig, baseLog *logger.Logger, metrics *observability.Metrics) *EvictionRunner {
	return &EvictionRunner{
		repo:    repo,
		cfg:     cfg,
		log:     baseLog.With("service", "EvictionRunner"),
		metrics: metrics,
	}
}

func (r *EvictionRunner) Run(ctx context.Context, tenantID uuid.UUID, opts EvictionOptions) (*EvictionResult, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	cutoffDays := opts.CutoffDays
	if cutoffDays <= 0 {
		cutoffDays = r.cfg.CutoffDays
	}
	if cutoffDays < 1 {
		cutoffDays = 1
	}
	batchLimit := opts.BatchLimit
	if batchLimit <= 0 {
		batchLimit = r.cfg.BatchLimit
	}
	if batchLimit < 1 {
		batchLimit = 1
	}
	policy := opts.PolicyLabel
	if policy == "" {
		policy = "stale_zero_hit"
	}
	olderThan := now.Add(-time.Duration(cutoffDays) * 24 * time.Hour)

	result := &EvictionResult{
		TenantID: tenantID,
		PerModel: map[string]int64{},
		Policy:   policy,
	}

	acquired, err := r.repo.WithTenantEvictionLock(ctx, tenantID, func(conn *gorm.DB) error {
		return conn.Transaction(func(tx *gorm.DB) error {
			dbc := dbctx.Context{Ctx: ctx, Tx: tx}
			for {
				batch, err := r.repo.SelectStale(dbc, tenantID, olderThan, batchLimit)
				if err != nil {
					return err
				}
				if len(batch) == 0 {
					return nil
				}
				ids := make([]uuid.UUID, 0, len(batch))
				for _, row := range batch {
					ids = append(ids, row.ID)
				}
				labels, err := r.repo.DeleteByIDs(dbc, ids)
				if err != nil {
					return err
				}
				for _, label := range labels {
					result.PerModel[label]++
					result.Evicted++
				}
				// A short batch means the stale set is exhausted.
				if len(batch) < batchLimit {
					return nil
				}
			}
		})
	})
	if err != nil {
		return nil, err
	}
	if !acquired {
		r.metrics.ObserveEvictionLockSkip(tenantID.String())
		r.log.Debug("eviction skipped, tenant lock held elsewhere", "tenant_id", tenantID)
		return result, nil
	}

	result.LockAcquired = true
	for model, count := range result.PerModel {
		r.metrics.ObserveEviction(tenantID.String(), model, policy, count)
	}
	if result.Evicted > 0 {
		r.log.Info("embedding cache eviction completed",
			"tenant_id", tenantID,
			"evicted", result.Evicted,
			"cutoff_days", cutoffDays,
			"policy", policy,
		)
	}
	return result, nil
}

// evictionRunner is the seam the coordinator schedules through.
type evictionRunner interface {
	Run(ctx context.Context, tenantID uuid.UUID, opts EvictionOptions) (*EvictionResult, error)
}

// EvictionCoordinator rate-limits eviction scheduling in-process: at most one
// task per tenant at a time, with a per-tenant cooldown window. The advisory
// lock still guards against other processes; this layer avoids even trying.
type EvictionCoordinator struct {
	mu          sync.Mutex
	inflight    map[uuid.UUID]struct{}
	nextAllowed map[uuid.UUID]time.Time

	runner  evictionRunner
	cfg     config.EvictionConfig
	flags   config.FeatureFlags
	log     *logger.Logger
	metrics *observability.Metrics
}

func NewEvictionCoordinator(runner evictionRunner, cfg config.EvictionConfig, flags config.FeatureFlags, baseLog *logger.Logger, metrics *observability.Metrics) *EvictionCoordinator {
	return &EvictionCoordinator{
		inflight:    map[uuid.UUID]struct{}{},
		nextAllowed: map[uuid.UUID]time.Time{},
		runner:      runner,
		cfg:         cfg,
		flags:       flags,
		log:         baseLog.With("service", "EvictionCoordinator"),
		metrics:     metrics,
	}
}

// MaybeSchedule launches a background eviction for the tenant unless gating
// rules say otherwise. It returns whether a task was started; errors inside
// the task are logged, never propagated to the trigger site.
func (c *EvictionCoordinator) MaybeSchedule(tenantID *uuid.UUID, hitRate float64, jobID string) bool {
	if tenantID == nil {
		return false
	}
	if hitRate < c.cfg.HitRateThreshold {
		return false
	}
	if !c.flags.EmbeddingCacheEnabled || !c.flags.CacheEvictionEnabled {
		return false
	}
	tenant := *tenantID

	c.mu.Lock()
	if _, busy := c.inflight[tenant]; busy {
		c.mu.Unlock()
		return false
	}
	now := time.Now().UTC()
	if next, cooling := c.nextAllowed[tenant]; cooling && now.Before(next) {
		c.mu.Unlock()
		return false
	}
	c.nextAllowed[tenant] = now.Add(c.cfg.MinInterval)
	c.inflight[tenant] = struct{}{}
	c.metrics.SetEvictionInflight(len(c.inflight))
	c.mu.Unlock()

	go c.runTask(tenant, jobID)
	return true
}

// InFlight returns the tenants with a running eviction task.
func (c *EvictionCoordinator) InFlight() []uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]uuid.UUID, 0, len(c.inflight))
	for tenant := range c.inflight {
		out = append(out, tenant)
	}
	return out
}

func (c *EvictionCoordinator) runTask(tenant uuid.UUID, jobID string) {
	defer func() {
		if rec := recover(); rec != nil {
			c.log.Error("eviction task panicked", "tenant_id", tenant, "job_id", jobID, "panic", rec)
		}
		c.mu.Lock()
		delete(c.inflight, tenant)
		c.metrics.SetEvictionInflight(len(c.inflight))
		c.mu.Unlock()
	}()

	result, err := c.runner.Run(context.Background(), tenant, EvictionOptions{})
	if err != nil {
		c.log.Error("eviction task failed", "tenant_id", tenant, "job_id", jobID, "error", err)
		return
	}
	if !result.LockAcquired {
		return
	}
	c.log.Debug("eviction task finished",
		"tenant_id", tenant, "job_id", jobID, "evicted", result.Evicted)
}
