package notification

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fixit-hub/fixit/internal/middleware"
)

const (
	sessionBuffer     = 32
	heartbeatInterval = 15 * time.Second
)

// StreamHandler serves notifications as server-sent events.
type StreamHandler struct {
	registry  *Registry
	logger    *slog.Logger
	heartbeat time.Duration
}

// NewStreamHandler builds the SSE endpoint.
func NewStreamHandler(registry *Registry, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{registry: registry, logger: logger, heartbeat: heartbeatInterval}
}

// Stream registers a session for the caller and writes each message as an
// event until the client goes away.
func (h *StreamHandler) Stream(c *fiber.Ctx) error {
	userID, _ := middleware.Actor(c)
	if userID == "" {
		return fiber.ErrUnauthorized
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	session := NewChannelSession(sessionBuffer)
	unregister := h.registry.Register(userID, session)
	logger := h.logger.With(slog.String("user_id", userID))
	logger.Debug("notification stream opened")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer unregister()
		defer logger.Debug("notification stream closed")

		ticker := time.NewTicker(h.heartbeat)
		defer ticker.Stop()

		if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil || w.Flush() != nil {
			return
		}
		for {
			select {
			case msg := <-session.Messages():
				if err := writeEvent(w, msg); err != nil {
					return
				}
			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
					return
				}
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	})
	return nil
}

func writeEvent(w *bufio.Writer, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Kind, payload)
	return err
}
