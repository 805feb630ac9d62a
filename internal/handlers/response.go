package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/autovant/RCA-Final-sub001/internal/pkg/apperr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// RespondServiceError maps domain errors onto HTTP statuses; anything
// unrecognized is a 500.
func RespondServiceError(c *gin.Context, err error) {
	var scrubErr *apperr.ScrubConfirmationError
	var unavailableErr *apperr.FingerprintUnavailableError
	var probeErr *apperr.EncodingProbeError
	switch {
	case errors.Is(err, apperr.ErrInvalidArgument):
		RespondError(c, http.StatusBadRequest, "invalid_argument", err)
	case errors.As(err, &probeErr):
		RespondError(c, http.StatusUnprocessableEntity, "encoding_rejected", err)
	case errors.As(err, &scrubErr):
		RespondError(c, http.StatusUnprocessableEntity, "scrub_not_confirmed", err)
	case errors.As(err, &unavailableErr):
		RespondError(c, http.StatusUnprocessableEntity, "fingerprint_unavailable", err)
	case errors.Is(err, apperr.ErrNotFound):
		RespondError(c, http.StatusNotFound, "not_found", err)
	case errors.Is(err, apperr.ErrConflict):
		RespondError(c, http.StatusConflict, "conflict", err)
	default:
		RespondError(c, http.StatusInternalServerError, "internal", err)
	}
}
