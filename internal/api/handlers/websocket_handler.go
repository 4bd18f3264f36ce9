package handlers

import (
	"context"
	"encoding/json"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/ecom-support/chatbot/internal/middleware/validation"
	"github.com/ecom-support/chatbot/internal/pipeline"
	"github.com/ecom-support/chatbot/pkg/logger"
)

// Frame overhead allowed on top of the message text: JSON keys, user_id,
// and escaping.
const wsFrameOverhead = 1024

type WebSocketHandler struct {
	responder Responder
	maxLength int
}

// NewWebSocketHandler builds the chat socket handler. maxMessageLength is the
// same rune limit the HTTP endpoints enforce; zero means the default.
func NewWebSocketHandler(responder Responder, maxMessageLength int) *WebSocketHandler {
	if maxMessageLength <= 0 {
		maxMessageLength = validation.DefaultMaxMessageLength
	}
	return &WebSocketHandler{
		responder: responder,
		maxLength: maxMessageLength,
	}
}

type wsMessage struct {
	Type    string `json:"type"`
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// readLimit bounds a single frame. A rune is at most 4 bytes, and escaped
// JSON text can take up to 6 bytes per byte.
func (h *WebSocketHandler) readLimit() int64 {
	return int64(h.maxLength*4*6 + wsFrameOverhead)
}

// HandleConnection serves chat frames until the client disconnects. A
// connection may carry turns for a single user_id or several. Frames over
// the read limit close the connection.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	c.SetReadLimit(h.readLimit())

	for {
		frameType, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("Failed to read WebSocket message", zap.Error(err))
			}
			break
		}

		if frameType != websocket.TextMessage {
			h.sendError(c, "Unsupported frame type")
			continue
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.sendError(c, "Invalid JSON format")
			continue
		}

		if msg.Type != "chat" {
			h.sendError(c, "Unsupported message type")
			continue
		}

		text, violation := validation.CheckMessage(msg.Message, h.maxLength)
		if violation != nil {
			logger.Debug("Rejected WebSocket message", zap.String("reason", violation.Message))
			h.sendError(c, violation.Message)
			continue
		}

		reply := h.responder.Respond(context.Background(), utterance(validation.Sanitize(msg.UserID), text))
		if err := h.sendReply(c, reply); err != nil {
			logger.Warn("Failed to send WebSocket reply", zap.Error(err))
			break
		}
	}
}

func (h *WebSocketHandler) sendReply(c *websocket.Conn, reply pipeline.Reply) error {
	msg := map[string]interface{}{
		"type":       "reply",
		"response":   reply.Text,
		"turn_id":    reply.TurnID,
		"intent":     reply.Intent,
		"confidence": reply.Confidence,
	}
	if reply.FAQScore > 0 {
		msg["faq_score"] = reply.FAQScore
	}

	return c.WriteJSON(msg)
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	msg := map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	}

	if err := c.WriteJSON(msg); err != nil {
		logger.Debug("Failed to send WebSocket error", zap.Error(err))
	}
}
