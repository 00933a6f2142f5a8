package handler

import (
	"io"
	"time"

	"wavely/backend/internal/hub"

	"github.com/gin-gonic/gin"
)

// EventsHandler serves the long-lived per-user event stream.
type EventsHandler struct {
	hub *hub.Hub
}

func NewEventsHandler(h *hub.Hub) *EventsHandler {
	return &EventsHandler{hub: h}
}

// Stream godoc
// @Summary      Real-time event stream
// @Description  Server-sent events scoped to the authenticated user, plus global broadcasts.
// @Tags         events
// @Produce      text/event-stream
// @Security     BearerAuth
// @Success      200  {string}  string  "event stream"
// @Failure      401  {object}  ErrorResponse
// @Router       /events [get]
func (h *EventsHandler) Stream(c *gin.Context) {
	viewerID, _ := c.Get("userID")
	// Room membership comes from the verified token, never from anything the
	// client sends, so nobody can listen on another user's channel.
	userID := viewerID.(uint)

	client := hub.NewClient()
	h.hub.Subscribe(userID, client)
	defer h.hub.Unsubscribe(userID, client)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	heartbeat := time.NewTicker(25 * time.Second)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case message, ok := <-client:
			if !ok {
				return false
			}
			c.SSEvent("message", string(message))
			return true
		case <-heartbeat.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
