package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"photo-review-backend/internal/dispatcher"
	"photo-review-backend/internal/middleware"
	"photo-review-backend/internal/models"
)

type InteractionsHandler struct {
	dispatcher *dispatcher.Dispatcher
}

func NewInteractionsHandler(d *dispatcher.Dispatcher) *InteractionsHandler {
	return &InteractionsHandler{
		dispatcher: d,
	}
}

// HandleInteraction godoc
// @Summary     Chat platform interaction callback
// @Description Receives pings and verdict button presses. The request must carry a valid
// @Description Ed25519 signature over timestamp + raw body; unsigned calls get 401.
// @Tags        discord
// @Accept      json
// @Produce     json
// @Param       X-Signature-Ed25519   header string true "Hex signature"
// @Param       X-Signature-Timestamp header string true "Signed timestamp"
// @Success     200 {object} map[string]interface{}
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Router      /discord/interactions [post]
func (h *InteractionsHandler) HandleInteraction(c *gin.Context) {
	body, err := middleware.RawBody(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "failed to read request body", Message: err.Error()})
		return
	}

	resp, err := h.dispatcher.HandleInteraction(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "failed to parse event", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

type MessageHandler struct {
	dispatcher *dispatcher.Dispatcher
}

func NewMessageHandler(d *dispatcher.Dispatcher) *MessageHandler {
	return &MessageHandler{
		dispatcher: d,
	}
}

// HandleMessage godoc
// @Summary     Text command callback
// @Description Applies "!rate <id> <verdict...>". Malformed, unknown and already judged commands are ignored.
// @Tags        discord
// @Accept      json
// @Produce     json
// @Param       request body models.MessageRequest true "Message"
// @Success     200 {object} map[string]string
// @Failure     401 {object} models.ErrorResponse
// @Router      /discord/message [post]
func (h *MessageHandler) HandleMessage(c *gin.Context) {
	body, err := middleware.RawBody(c)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	var req models.MessageRequest
	if err := json.Unmarshal(body, &req); err != nil {
		log.Debug().Err(err).Msg("ignoring undecodable message")
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	author := c.GetString(middleware.BridgeSubjectKey)
	if author == "" {
		author = strings.TrimSpace(req.Author)
	}
	outcome := h.dispatcher.HandleCommand(req.Content, author)
	log.Debug().Str("outcome", outcome.String()).Str("author", author).Msg("text command handled")

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
