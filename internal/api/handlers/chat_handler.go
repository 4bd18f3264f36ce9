package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ecom-support/chatbot/internal/middleware/validation"
	"github.com/ecom-support/chatbot/internal/pipeline"
	"github.com/ecom-support/chatbot/internal/storage/models"
	"github.com/ecom-support/chatbot/pkg/logger"
)

const (
	anonymousUser       = "anonymous"
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

// Responder produces the reply for one utterance.
type Responder interface {
	Respond(ctx context.Context, u pipeline.Utterance) pipeline.Reply
}

// HistoryReader lists recorded interactions, newest first.
type HistoryReader interface {
	GetInteractionHistory(ctx context.Context, userID string, limit int) ([]models.InteractionRecord, error)
}

type ChatHandler struct {
	responder Responder
	history   HistoryReader
	maxLength int
}

// NewChatHandler builds the chat endpoints. maxMessageLength applies when
// the validation middleware did not run; zero means the default.
func NewChatHandler(responder Responder, history HistoryReader, maxMessageLength int) *ChatHandler {
	return &ChatHandler{
		responder: responder,
		history:   history,
		maxLength: maxMessageLength,
	}
}

type chatRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// parseChat returns the utterance of a chat request. A body already checked
// by the validation middleware is taken from locals as is.
func parseChat(c *fiber.Ctx, maxLength int) (pipeline.Utterance, *validation.Violation) {
	if body, ok := c.Locals(validation.SanitizedBodyKey).(validation.ChatBody); ok {
		return utterance(body.UserID, body.Message), nil
	}

	var req chatRequest
	if len(c.Body()) == 0 {
		return pipeline.Utterance{}, &validation.Violation{Status: fiber.StatusBadRequest, Message: "Request body is required"}
	}
	if err := c.BodyParser(&req); err != nil {
		logger.Debug("Rejected chat request body", zap.Error(err))
		return pipeline.Utterance{}, &validation.Violation{Status: fiber.StatusBadRequest, Message: "Invalid request body"}
	}

	msg, violation := validation.CheckMessage(req.Message, maxLength)
	if violation != nil {
		return pipeline.Utterance{}, violation
	}
	return utterance(validation.Sanitize(req.UserID), msg), nil
}

func utterance(userID, text string) pipeline.Utterance {
	if userID == "" {
		userID = anonymousUser
	}
	return pipeline.Utterance{UserID: userID, Text: text}
}

// HandleChat answers with just the reply text.
func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	utt, violation := parseChat(c, h.maxLength)
	if violation != nil {
		return c.Status(violation.Status).JSON(fiber.Map{
			"error": violation.Message,
		})
	}

	reply := h.responder.Respond(c.UserContext(), utt)

	return c.JSON(fiber.Map{
		"response": reply.Text,
	})
}

// HandleChatDetailed answers with the full reply, including the intent,
// confidence and extracted entities.
func (h *ChatHandler) HandleChatDetailed(c *fiber.Ctx) error {
	utt, violation := parseChat(c, h.maxLength)
	if violation != nil {
		return c.Status(violation.Status).JSON(fiber.Map{
			"error": violation.Message,
		})
	}

	return c.JSON(h.responder.Respond(c.UserContext(), utt))
}

func (h *ChatHandler) GetHistory(c *fiber.Ctx) error {
	if h.history == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Interaction history is not enabled",
		})
	}

	limit := c.QueryInt("limit", defaultHistoryLimit)
	if limit <= 0 || limit > maxHistoryLimit {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "limit must be between 1 and 200",
		})
	}

	userID := c.Query("user_id")
	records, err := h.history.GetInteractionHistory(c.UserContext(), userID, limit)
	if err != nil {
		logger.Error("Failed to load interaction history", zap.String("user_id", userID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load interaction history",
		})
	}

	return c.JSON(fiber.Map{
		"history": records,
		"count":   len(records),
	})
}
