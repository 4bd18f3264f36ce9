package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ecom-support/chatbot/internal/contextstore"
	"github.com/ecom-support/chatbot/pkg/logger"
)

// ContextStore is the operator view of per-user conversation context.
type ContextStore interface {
	Get(userID string) (contextstore.UserContext, bool)
	Clear(userID string) bool
	ClearAll()
}

type ContextHandler struct {
	store ContextStore
}

func NewContextHandler(store ContextStore) *ContextHandler {
	return &ContextHandler{store: store}
}

func (h *ContextHandler) GetContext(c *fiber.Ctx) error {
	userID := c.Params("user_id")

	rec, ok := h.store.Get(userID)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No context for user",
		})
	}

	return c.JSON(rec)
}

func (h *ContextHandler) ClearContext(c *fiber.Ctx) error {
	userID := c.Params("user_id")
	cleared := h.store.Clear(userID)

	logger.Info("User context cleared", zap.String("user_id", userID), zap.Bool("existed", cleared))

	return c.JSON(fiber.Map{
		"user_id": userID,
		"cleared": cleared,
	})
}

func (h *ContextHandler) ClearAll(c *fiber.Ctx) error {
	h.store.ClearAll()
	logger.Info("All user contexts cleared")

	return c.JSON(fiber.Map{
		"cleared": true,
	})
}
