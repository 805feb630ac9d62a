package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/autovant/RCA-Final-sub001/internal/config"
	"github.com/autovant/RCA-Final-sub001/internal/data/repos/detections"
	"github.com/autovant/RCA-Final-sub001/internal/detection"
	"github.com/autovant/RCA-Final-sub001/internal/domain"
	"github.com/autovant/RCA-Final-sub001/internal/encoding"
	"github.com/autovant/RCA-Final-sub001/internal/pkg/apperr"
	"github.com/autovant/RCA-Final-sub001/internal/pkg/dbctx"
	"github.com/autovant/RCA-Final-sub001/internal/platform/logger"
)

const probeConcurrency = 4

type DetectionHandler struct {
	orchestrator *detection.Orchestrator
	outcomes     detections.DetectionOutcomeRepo
	probeCfg     config.ProbeConfig
	log          *logger.Logger
}

func NewDetectionHandler(orchestrator *detection.Orchestrator, outcomes detections.DetectionOutcomeRepo, probeCfg config.ProbeConfig, baseLog *logger.Logger) *DetectionHandler {
	return &DetectionHandler{
		orchestrator: orchestrator,
		outcomes:     outcomes,
		probeCfg:     probeCfg,
		log:          baseLog.With("handler", "DetectionHandler"),
	}
}

// Raw carries base64-encoded original bytes; when present it is decoded
// through the encoding probe and wins over Content.
type detectionFileRequest struct {
	Name        string         `json:"name"`
	Content     string         `json:"content"`
	Raw         []byte         `json:"raw,omitempty"`
	ContentType string         `json:"content_type"`
	Metadata    map[string]any `json:"metadata"`
}

type detectionRequest struct {
	JobID   uuid.UUID              `json:"job_id"`
	Files   []detectionFileRequest `json:"files"`
	Enabled *bool                  `json:"enabled,omitempty"`
}

// Detect runs platform detection over the submitted artifacts and persists
// the outcome keyed by job.
func (h *DetectionHandler) Detect(c *gin.Context) {
	var req detectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if req.JobID == uuid.Nil {
		req.JobID = uuid.New()
	}

	inputs, err := h.buildInputs(c, req.Files)
	if err != nil {
		RespondServiceError(c, err)
		return
	}

	var overrides *detection.Overrides
	if req.Enabled != nil {
		overrides = &detection.Overrides{Enabled: req.Enabled}
	}
	outcome := h.orchestrator.Detect(c.Request.Context(), req.JobID, inputs, overrides)

	record, err := outcomeRecord(outcome)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	if err := h.outcomes.Create(dbc, record); err != nil {
		h.log.Error("detection outcome persist failed", "job_id", req.JobID, "error", err)
		RespondServiceError(c, err)
		return
	}

	RespondOK(c, outcome)
}

// buildInputs decodes raw artifacts through the encoding probe, fanned out
// across files. A hard probe rejection on any file fails the whole request.
func (h *DetectionHandler) buildInputs(c *gin.Context, files []detectionFileRequest) ([]domain.DetectionInput, error) {
	inputs := make([]domain.DetectionInput, len(files))
	g, _ := errgroup.WithContext(c.Request.Context())
	g.SetLimit(probeConcurrency)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			input := domain.DetectionInput{
				Name:        f.Name,
				Content:     f.Content,
				ContentType: f.ContentType,
				Metadata:    f.Metadata,
			}
			if len(f.Raw) > 0 {
				probed, err := encoding.Probe(f.Raw, h.probeCfg)
				if err != nil {
					return err
				}
				for _, w := range probed.Warnings {
					h.log.Debug("encoding probe warning", "file", f.Name, "warning", w)
				}
				input.Content = probed.Text
			}
			inputs[i] = input
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return inputs, nil
}

// GetByJob returns the stored outcome for a job.
func (h *DetectionHandler) GetByJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("job_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	outcome, err := h.outcomes.GetByJobID(dbc, jobID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	if outcome == nil {
		RespondError(c, http.StatusNotFound, "not_found", apperr.ErrNotFound)
		return
	}
	RespondOK(c, outcome)
}

func outcomeRecord(outcome *detection.Outcome) (*domain.PlatformDetectionOutcome, error) {
	entities, err := json.Marshal(outcome.ExtractedEntities)
	if err != nil {
		return nil, err
	}
	record := &domain.PlatformDetectionOutcome{
		ID:                uuid.New(),
		JobID:             outcome.JobID,
		DetectedPlatform:  outcome.DetectedPlatform,
		ConfidenceScore:   outcome.ConfidenceScore,
		DetectionMethod:   outcome.DetectionMethod,
		ParserExecuted:    outcome.ParserExecuted,
		ParserVersion:     outcome.ParserVersion,
		ExtractedEntities: entities,
		DurationMS:        outcome.DurationMS,
	}
	if outcome.FeatureFlagSnapshot != nil {
		snapshot, err := json.Marshal(outcome.FeatureFlagSnapshot)
		if err != nil {
			return nil, err
		}
		record.FeatureFlagSnapshot = snapshot
	}
	return record, nil
}
