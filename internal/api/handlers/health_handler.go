package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Check is a named readiness check.
type Check struct {
	Name  string
	Check func(ctx context.Context) error
}

type HealthHandler struct {
	checks []Check
}

func NewHealthHandler(checks ...Check) *HealthHandler {
	return &HealthHandler{checks: checks}
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	problems := make(map[string]string)
	for _, chk := range h.checks {
		if err := chk.Check(ctx); err != nil {
			problems[chk.Name] = err.Error()
		}
	}

	if len(problems) > 0 {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "not_ready",
			"checks": problems,
		})
	}

	return c.JSON(fiber.Map{
		"status": "ready",
	})
}
