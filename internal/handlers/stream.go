package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"photo-review-backend/internal/ledger"
	"photo-review-backend/internal/models"
	"photo-review-backend/internal/services"
)

const wsWriteTimeout = 10 * time.Second

var statusUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type StreamHandler struct {
	status *services.StatusService
}

func NewStreamHandler(status *services.StatusService) *StreamHandler {
	return &StreamHandler{
		status: status,
	}
}

// StreamStatus godoc
// @Summary     Stream review status
// @Description Upgrades to a websocket, sends the current status, then the final status once judged.
// @Tags        status
// @Param       id path string true "Request ID"
// @Success     101
// @Failure     404 {object} models.ErrorResponse
// @Router      /ws/status/{id} [get]
func (h *StreamHandler) StreamStatus(c *gin.Context) {
	id := c.Param("id")
	rec, err := h.status.Query(id)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "unknown id"})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "status lookup failed"})
		return
	}

	conn, err := statusUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Debug().Err(err).Str("id", id).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	if err := writeSnapshot(conn, rec); err != nil || rec.Resolved() {
		closeNormal(conn)
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// The client never sends anything meaningful; reading only detects hangups.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	rec, err = h.status.Await(ctx, id)
	if err != nil {
		return
	}
	if err := writeSnapshot(conn, rec); err != nil {
		return
	}
	closeNormal(conn)
}

func writeSnapshot(conn *websocket.Conn, rec ledger.Record) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(statusResponse(rec))
}

func closeNormal(conn *websocket.Conn) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(wsWriteTimeout))
}
