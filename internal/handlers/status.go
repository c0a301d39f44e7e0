package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"photo-review-backend/internal/ledger"
	"photo-review-backend/internal/models"
	"photo-review-backend/internal/services"
)

type StatusHandler struct {
	status *services.StatusService
}

func NewStatusHandler(status *services.StatusService) *StatusHandler {
	return &StatusHandler{
		status: status,
	}
}

// GetStatus godoc
// @Summary     Get review status
// @Description Returns the request's status and, once judged, the verdict. Also served at /result/{id}.
// @Tags        status
// @Produce     json
// @Param       id path string true "Request ID"
// @Success     200 {object} models.StatusResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /status/{id} [get]
func (h *StatusHandler) GetStatus(c *gin.Context) {
	rec, err := h.status.Query(c.Param("id"))
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "unknown id"})
			return
		}
		log.Error().Err(err).Str("id", c.Param("id")).Msg("status lookup failed")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "status lookup failed"})
		return
	}

	c.JSON(http.StatusOK, statusResponse(rec))
}

func statusResponse(rec ledger.Record) models.StatusResponse {
	resp := models.StatusResponse{
		ID:        rec.ID,
		Status:    string(rec.Status),
		ImageURL:  rec.ImageReference,
		CreatedAt: rec.CreatedAt,
		Score:     rec.Metadata.Score,
		Percent:   rec.Metadata.Percent,
		Feedback:  rec.Metadata.Feedback,
	}
	if rec.Resolved() {
		result := rec.Result
		resolvedAt := rec.ResolvedAt
		resp.Result = &result
		resp.ResolvedAt = &resolvedAt
	}
	return resp
}
