package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/autovant/RCA-Final-sub001/internal/config"
	"github.com/autovant/RCA-Final-sub001/internal/data/repos/fingerprints"
	"github.com/autovant/RCA-Final-sub001/internal/domain"
	"github.com/autovant/RCA-Final-sub001/internal/observability"
	"github.com/autovant/RCA-Final-sub001/internal/pkg/apperr"
	"github.com/autovant/RCA-Final-sub001/internal/pkg/dbctx"
	"github.com/autovant/RCA-Final-sub001/internal/platform/logger"
	"github.com/autovant/RCA-Final-sub001/internal/platform/vectorstore"
)

const fingerprintNamespace = "fingerprints"

// Embedder turns free text into a query vector. Embedding happens outside
// this service; the interface keeps the provider swappable.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// RelatedSessionQuery asks for incidents similar to an already-fingerprinted
// session.
type RelatedSessionQuery struct {
	SessionID      uuid.UUID              `json:"session_id"`
	Scope          domain.VisibilityScope `json:"scope"`
	MinRelevance   float64                `json:"min_relevance"`
	Limit          int                    `json:"limit"`
	PlatformFilter *domain.Platform       `json:"platform_filter,omitempty"`
}

// TextSearchRequest asks for incidents similar to a free-text description.
// WorkspaceID is mandatory when scope is tenant_only.
type TextSearchRequest struct {
	WorkspaceID    *uuid.UUID             `json:"workspace_id,omitempty"`
	QueryText      string                 `json:"query_text"`
	Scope          domain.VisibilityScope `json:"scope"`
	MinRelevance   float64                `json:"min_relevance"`
	Limit          int                    `json:"limit"`
	PlatformFilter *domain.Platform       `json:"platform_filter,omitempty"`
}

func (r TextSearchRequest) Validate() error {
	if strings.TrimSpace(r.QueryText) == "" {
		return fmt.Errorf("%w: query_text is required", apperr.ErrInvalidArgument)
	}
	switch r.Scope {
	case domain.ScopeTenantOnly:
		if r.WorkspaceID == nil {
			return fmt.Errorf("%w: workspace_id is required for tenant_only scope", apperr.ErrInvalidArgument)
		}
	case domain.ScopeMultiTenant:
	default:
		return fmt.Errorf("%w: unknown visibility scope %q", apperr.ErrInvalidArgument, r.Scope)
	}
	return nil
}

type RelatedIncidentService interface {
	// IndexFingerprint persists the fingerprint row and, when an embedding is
	// present, upserts it into the similarity index.
	IndexFingerprint(dbc dbctx.Context, fp *domain.IncidentFingerprint) error
	RelatedForSession(dbc dbctx.Context, q RelatedSessionQuery) (*domain.RelatedIncidentSearchResult, error)
	SearchByText(dbc dbctx.Context, req TextSearchRequest, allowedWorkspaceIDs []uuid.UUID) (*domain.RelatedIncidentSearchResult, error)
}

type relatedIncidentService struct {
	fps      fingerprints.IncidentFingerprintRepo
	audits   fingerprints.CrossWorkspaceAuditRepo
	vectors  vectorstore.VectorStore
	embedder Embedder
	cfg      config.SearchConfig
	log      *logger.Logger
	metrics  *observability.Metrics
}

func NewRelatedIncidentService(
	fps fingerprints.IncidentFingerprintRepo,
	audits fingerprints.CrossWorkspaceAuditRepo,
	vectors vectorstore.VectorStore,
	embedder Embedder,
	cfg config.SearchConfig,
	baseLog *logger.Logger,
	metrics *observability.Metrics,
) RelatedIncidentService {
	return &relatedIncidentService{
		fps:      fps,
		audits:   audits,
		vectors:  vectors,
		embedder: embedder,
		cfg:      cfg,
		log:      baseLog.With("service", "RelatedIncidentService"),
		metrics:  metrics,
	}
}

func (s *relatedIncidentService) IndexFingerprint(dbc dbctx.Context, fp *domain.IncidentFingerprint) error {
	if err := s.fps.Create(dbc, fp); err != nil {
		return err
	}
	embedding, err := decodeEmbedding(fp.EmbeddingVector)
	if err != nil || len(embedding) == 0 {
		// Row persists as degraded; similarity queries demote it lazily.
		return nil
	}
	return s.vectors.Upsert(dbc.Ctx, fingerprintNamespace, []vectorstore.Vector{{
		ID:     fp.SessionID.String(),
		Values: embedding,
		Metadata: map[string]any{
			"tenant_id":          fp.TenantID.String(),
			"visibility_scope":   string(fp.VisibilityScope),
			"detected_platform":  string(fp.DetectedPlatform),
			"fingerprint_status": string(fp.FingerprintStatus),
		},
	}})
}

func (s *relatedIncidentService) RelatedForSession(dbc dbctx.Context, q RelatedSessionQuery) (*domain.RelatedIncidentSearchResult, error) {
	scope := q.Scope
	if scope == "" {
		scope = domain.ScopeTenantOnly
	}

	fp, err := s.fps.GetBySessionID(dbc, q.SessionID)
	if err != nil {
		return nil, err
	}
	if fp == nil {
		s.metrics.ObserveSearch(string(scope), "not_found")
		return nil, &apperr.FingerprintNotFoundError{SessionID: q.SessionID}
	}

	embedding, decodeErr := decodeEmbedding(fp.EmbeddingVector)
	if decodeErr != nil || len(embedding) == 0 {
		// Demote before raising so repeated queries stop paying for the
		// vector decode attempt.
		note := "embedding vector missing"
		if decodeErr != nil {
			note = "embedding vector unreadable"
		}
		if markErr := s.fps.MarkUnavailable(dbc, fp.ID, note); markErr != nil {
			s.log.Error("fingerprint demotion failed",
				"session_id", q.SessionID, "error", markErr)
		}
		s.metrics.ObserveSearch(string(scope), "unavailable")
		return nil, &apperr.FingerprintUnavailableError{SessionID: q.SessionID}
	}

	filter := scopeFilter(scope, fp.TenantID, q.PlatformFilter)
	minRelevance := q.MinRelevance
	if minRelevance <= 0 {
		minRelevance = fp.RelevanceThreshold
	}
	limit := s.clampLimit(q.Limit)

	// One extra slot so the source session can be dropped from its own
	// results without shrinking the page.
	matches, err := s.vectors.QueryMatches(dbc.Ctx, fingerprintNamespace, embedding, limit+1, filter)
	if err != nil {
		s.metrics.ObserveSearch(string(scope), "error")
		return nil, err
	}

	result, err := s.buildResult(dbc, matches, buildResultParams{
		scope:           scope,
		minRelevance:    minRelevance,
		limit:           limit,
		sourceWorkspace: fp.TenantID,
		sourceSession:   &fp.SessionID,
		excludeSession:  fp.SessionID.String(),
	})
	if err != nil {
		s.metrics.ObserveSearch(string(scope), "error")
		return nil, err
	}
	s.metrics.ObserveSearch(string(scope), "ok")
	return result, nil
}

func (s *relatedIncidentService) SearchByText(dbc dbctx.Context, req TextSearchRequest, allowedWorkspaceIDs []uuid.UUID) (*domain.RelatedIncidentSearchResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	queryVector, err := s.embedder.Embed(dbc.Ctx, req.QueryText)
	if err != nil {
		s.metrics.ObserveSearch(string(req.Scope), "embed_error")
		return nil, fmt.Errorf("embed query text: %w", err)
	}

	var filter map[string]any
	switch req.Scope {
	case domain.ScopeTenantOnly:
		allowed := allowedWorkspaceIDs
		if len(allowed) == 0 {
			allowed = []uuid.UUID{*req.WorkspaceID}
		}
		ids := make([]string, 0, len(allowed))
		for _, id := range allowed {
			ids = append(ids, id.String())
		}
		filter = map[string]any{"tenant_id": map[string]any{"$in": ids}}
	default:
		if req.WorkspaceID != nil {
			filter = map[string]any{"$or": []any{
				map[string]any{"tenant_id": req.WorkspaceID.String()},
				map[string]any{"visibility_scope": string(domain.ScopeMultiTenant)},
			}}
		} else {
			filter = map[string]any{"visibility_scope": string(domain.ScopeMultiTenant)}
		}
	}
	if req.PlatformFilter != nil {
		filter["detected_platform"] = string(*req.PlatformFilter)
	}

	minRelevance := req.MinRelevance
	if minRelevance <= 0 {
		minRelevance = s.cfg.DefaultMinRelevance
	}
	limit := s.clampLimit(req.Limit)

	matches, err := s.vectors.QueryMatches(dbc.Ctx, fingerprintNamespace, queryVector, limit, filter)
	if err != nil {
		s.metrics.ObserveSearch(string(req.Scope), "error")
		return nil, err
	}

	params := buildResultParams{
		scope:        req.Scope,
		minRelevance: minRelevance,
		limit:        limit,
	}
	if req.WorkspaceID != nil {
		params.sourceWorkspace = *req.WorkspaceID
		params.hasWorkspace = true
	}
	result, err := s.buildResult(dbc, matches, params)
	if err != nil {
		s.metrics.ObserveSearch(string(req.Scope), "error")
		return nil, err
	}
	s.metrics.ObserveSearch(string(req.Scope), "ok")
	return result, nil
}

type buildResultParams struct {
	scope           domain.VisibilityScope
	minRelevance    float64
	limit           int
	sourceWorkspace uuid.UUID
	hasWorkspace    bool
	sourceSession   *uuid.UUID
	excludeSession  string
}

func (s *relatedIncidentService) buildResult(dbc dbctx.Context, matches []vectorstore.VectorMatch, p buildResultParams) (*domain.RelatedIncidentSearchResult, error) {
	sessionIDs := make([]uuid.UUID, 0, len(matches))
	scoreBySession := make(map[uuid.UUID]float64, len(matches))
	for _, m := range matches {
		if m.ID == p.excludeSession || m.Score < p.minRelevance {
			continue
		}
		sessionID, err := uuid.Parse(m.ID)
		if err != nil {
			s.log.Warn("similarity match with non-UUID id skipped", "id", m.ID)
			continue
		}
		sessionIDs = append(sessionIDs, sessionID)
		scoreBySession[sessionID] = m.Score
	}

	rows, err := s.fps.GetBySessionIDs(dbc, sessionIDs)
	if err != nil {
		return nil, err
	}
	rowBySession := make(map[uuid.UUID]*domain.IncidentFingerprint, len(rows))
	for _, row := range rows {
		rowBySession[row.SessionID] = row
	}

	results := make([]domain.RelatedIncidentMatch, 0, len(sessionIDs))
	for _, sessionID := range sessionIDs {
		row := rowBySession[sessionID]
		if row == nil {
			continue
		}
		results = append(results, domain.RelatedIncidentMatch{
			SessionID:         row.SessionID,
			TenantID:          row.TenantID,
			Relevance:         scoreBySession[sessionID],
			Summary:           row.SummaryText,
			DetectedPlatform:  row.DetectedPlatform,
			FingerprintStatus: row.FingerprintStatus,
			Safeguards:        safeguardList(row.SafeguardNotes),
			OccurredAt:        row.OccurredAt,
		})
		if len(results) == p.limit {
			break
		}
	}

	result := &domain.RelatedIncidentSearchResult{
		Results:         results,
		SourceSessionID: p.sourceSession,
	}
	if p.sourceSession != nil || p.hasWorkspace {
		workspace := p.sourceWorkspace
		result.SourceWorkspaceID = &workspace
	}

	if pairs := result.CrossWorkspacePairs(); len(pairs) > 0 {
		token := uuid.NewString()
		result.AuditToken = &token
		if err := s.persistAudit(dbc, token, result, pairs); err != nil {
			// The audit row is the compliance trail; failing it fails the
			// search rather than returning unaudited foreign matches.
			return nil, fmt.Errorf("persist cross-workspace audit: %w", err)
		}
		s.metrics.IncCrossWorkspaceAudit()
	}
	return result, nil
}

func (s *relatedIncidentService) persistAudit(dbc dbctx.Context, token string, result *domain.RelatedIncidentSearchResult, pairs []domain.RelatedIncidentMatch) error {
	workspaces := make([]string, 0, len(pairs))
	sessions := make([]string, 0, len(pairs))
	seen := map[string]struct{}{}
	for _, pair := range pairs {
		ws := pair.TenantID.String()
		if _, dup := seen[ws]; !dup {
			seen[ws] = struct{}{}
			workspaces = append(workspaces, ws)
		}
		sessions = append(sessions, pair.SessionID.String())
	}
	sort.Strings(workspaces)

	matchedWorkspaces, _ := json.Marshal(workspaces)
	matchedSessions, _ := json.Marshal(sessions)
	return s.audits.Create(dbc, &domain.CrossWorkspaceAudit{
		ID:                uuid.New(),
		AuditToken:        token,
		SourceWorkspaceID: *result.SourceWorkspaceID,
		SourceSessionID:   result.SourceSessionID,
		MatchedWorkspaces: matchedWorkspaces,
		MatchedSessions:   matchedSessions,
		CreatedAt:         time.Now().UTC(),
	})
}

func (s *relatedIncidentService) clampLimit(limit int) int {
	if limit <= 0 {
		return s.cfg.DefaultLimit
	}
	if limit > s.cfg.MaxLimit {
		return s.cfg.MaxLimit
	}
	return limit
}

// scopeFilter is the query-time visibility constraint. tenant_only never
// leaves the querying workspace; multi_tenant adds rows other workspaces
// opted into sharing.
func scopeFilter(scope domain.VisibilityScope, tenant uuid.UUID, platform *domain.Platform) map[string]any {
	var filter map[string]any
	if scope == domain.ScopeMultiTenant {
		filter = map[string]any{"$or": []any{
			map[string]any{"tenant_id": tenant.String()},
			map[string]any{"visibility_scope": string(domain.ScopeMultiTenant)},
		}}
	} else {
		filter = map[string]any{"tenant_id": map[string]any{"$eq": tenant.String()}}
	}
	if platform != nil {
		filter["detected_platform"] = string(*platform)
	}
	return filter
}

func decodeEmbedding(raw datatypes.JSON) ([]float32, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var out []float32
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func safeguardList(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var notes map[string]string
	if err := json.Unmarshal(raw, &notes); err != nil {
		return nil
	}
	keys := make([]string, 0, len(notes))
	for k := range notes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if v := strings.TrimSpace(notes[k]); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
