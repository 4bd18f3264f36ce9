package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ecom-support/chatbot/pkg/logger"
)

// Reloadable is one component that can re-read its artifact or data file.
type Reloadable struct {
	Name   string
	Reload func(ctx context.Context) error
}

type AdminHandler struct {
	components []Reloadable
}

func NewAdminHandler(components ...Reloadable) *AdminHandler {
	return &AdminHandler{components: components}
}

// Reload refreshes every component. A failed component keeps serving what
// it had before, except profiles which fall back to the guest profile.
func (h *AdminHandler) Reload(c *fiber.Ctx) error {
	reloaded := make([]string, 0, len(h.components))
	failed := make(map[string]string)

	for _, comp := range h.components {
		if err := comp.Reload(c.UserContext()); err != nil {
			logger.Error("Failed to reload component", zap.String("component", comp.Name), zap.Error(err))
			failed[comp.Name] = err.Error()
			continue
		}
		reloaded = append(reloaded, comp.Name)
	}

	status := fiber.StatusOK
	if len(failed) > 0 {
		status = fiber.StatusInternalServerError
	}

	return c.Status(status).JSON(fiber.Map{
		"reloaded": reloaded,
		"failed":   failed,
	})
}
