package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrigins(t *testing.T) {
	assert.Nil(t, ParseOrigins("*"))
	assert.Equal(t, []string{"https://shop.example.com", "http://localhost:3000"}, ParseOrigins(" https://shop.example.com, http://localhost:3000 ,"))
}

func TestBuildConnectSrc(t *testing.T) {
	got := buildConnectSrc([]string{"https://shop.example.com", "http://localhost:3000"})
	assert.Equal(t, "https://shop.example.com wss://shop.example.com http://localhost:3000 ws://localhost:3000", got)
	assert.Equal(t, "", buildConnectSrc(nil))
}

func TestHeadersMiddleware(t *testing.T) {
	for _, dev := range []bool{false, true} {
		app := fiber.New()
		app.Use(HeadersMiddleware(HeadersConfig{AllowedOrigins: []string{"https://shop.example.com"}, IsDevelopment: dev}))
		app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
		require.NoError(t, err)

		assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
		assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
		assert.Contains(t, resp.Header.Get("Content-Security-Policy"), "wss://shop.example.com")
		assert.Equal(t, !dev, resp.Header.Get("Strict-Transport-Security") != "")
	}
}
