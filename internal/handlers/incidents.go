package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/autovant/RCA-Final-sub001/internal/domain"
	"github.com/autovant/RCA-Final-sub001/internal/pkg/dbctx"
	"github.com/autovant/RCA-Final-sub001/internal/platform/logger"
	"github.com/autovant/RCA-Final-sub001/internal/services"
)

type IncidentsHandler struct {
	search services.RelatedIncidentService
	log    *logger.Logger
}

func NewIncidentsHandler(search services.RelatedIncidentService, baseLog *logger.Logger) *IncidentsHandler {
	return &IncidentsHandler{
		search: search,
		log:    baseLog.With("handler", "IncidentsHandler"),
	}
}

// Related serves similarity matches for an existing session fingerprint.
// Query params: scope, min_relevance, limit, platform.
func (h *IncidentsHandler) Related(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}

	query := services.RelatedSessionQuery{SessionID: sessionID}
	if scope := c.Query("scope"); scope != "" {
		query.Scope = domain.VisibilityScope(scope)
	}
	if raw := c.Query("min_relevance"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "bad_request", err)
			return
		}
		query.MinRelevance = parsed
	}
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "bad_request", err)
			return
		}
		query.Limit = parsed
	}
	if raw := c.Query("platform"); raw != "" {
		platform := domain.Platform(raw)
		query.PlatformFilter = &platform
	}

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	result, err := h.search.RelatedForSession(dbc, query)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, result)
}

type textSearchBody struct {
	services.TextSearchRequest
	AllowedWorkspaceIDs []uuid.UUID `json:"allowed_workspace_ids,omitempty"`
}

// SearchByText serves free-text similarity search.
func (h *IncidentsHandler) SearchByText(c *gin.Context) {
	var body textSearchBody
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	result, err := h.search.SearchByText(dbc, body.TextSearchRequest, body.AllowedWorkspaceIDs)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, result)
}
