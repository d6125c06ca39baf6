package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"tradesdesk_backend/internal/whatsapp"
	"tradesdesk_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

const processTimeout = 30 * time.Second

// Handler serves the Meta webhook endpoints.
type Handler struct {
	service     *Service
	verifyToken string
	log         *logger.Logger
}

func NewHandler(service *Service, verifyToken string, log *logger.Logger) *Handler {
	return &Handler{service: service, verifyToken: verifyToken, log: log}
}

// HandleVerify answers the subscription handshake.
// GET /webhook
func (h *Handler) HandleVerify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token != "" && token == h.verifyToken {
		h.log.Info("webhook verified")
		c.String(http.StatusOK, challenge)
		return
	}
	c.Status(http.StatusForbidden)
}

// HandleReceive hands every message to the dispatcher before returning, in
// payload order, so consecutive deliveries for a customer keep their arrival
// order. Read receipts go out in the background.
// POST /webhook
func (h *Handler) HandleReceive(c *gin.Context) {
	raw, _ := c.Get(rawBodyKey)
	body, _ := raw.([]byte)

	c.Status(http.StatusOK)

	var payload whatsapp.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.log.Debug("ignoring undecodable webhook body", "error", err)
		return
	}
	if payload.Object != whatsapp.ObjectBusinessAccount {
		h.log.Debug("ignoring webhook object", "object", payload.Object)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), processTimeout)
	defer cancel()
	h.service.Process(ctx, payload)
}

// Wait blocks until read receipts sent so far have finished.
func (h *Handler) Wait() {
	h.service.Wait()
}
