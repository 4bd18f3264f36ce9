package security

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

type HeadersConfig struct {
	AllowedOrigins []string
	IsDevelopment  bool
}

// ParseOrigins splits a comma separated origin list. "*" yields nil.
func ParseOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		o = strings.TrimSpace(o)
		if o == "" || o == "*" {
			continue
		}
		out = append(out, o)
	}
	return out
}

func HeadersMiddleware(cfg HeadersConfig) fiber.Handler {
	csp := "default-src 'none'; " +
		"connect-src 'self' " + buildConnectSrc(cfg.AllowedOrigins) + "; " +
		"frame-ancestors 'none'; " +
		"base-uri 'none'; " +
		"form-action 'none'"

	return func(c *fiber.Ctx) error {
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("Cache-Control", "no-store")

		if !cfg.IsDevelopment {
			c.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Set("Content-Security-Policy", csp)

		return c.Next()
	}
}

// buildConnectSrc also allows the websocket scheme of every origin so the
// chat widget can open /ws/chat.
func buildConnectSrc(origins []string) string {
	srcs := make([]string, 0, len(origins)*2)
	for _, origin := range origins {
		srcs = append(srcs, origin)
		switch {
		case strings.HasPrefix(origin, "https://"):
			srcs = append(srcs, "wss://"+strings.TrimPrefix(origin, "https://"))
		case strings.HasPrefix(origin, "http://"):
			srcs = append(srcs, "ws://"+strings.TrimPrefix(origin, "http://"))
		}
	}
	return strings.Join(srcs, " ")
}
