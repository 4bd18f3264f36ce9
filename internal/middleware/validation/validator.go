package validation

import (
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Validated chat bodies are stored under this locals key as a ChatBody.
const SanitizedBodyKey = "sanitized_body"

const DefaultMaxMessageLength = 2000

// ChatBody is a chat request that passed validation, already sanitized.
type ChatBody struct {
	UserID  string
	Message string
}

// Violation is a rejected message. Status is the HTTP status the transport
// answers with.
type Violation struct {
	Status  int
	Message string
}

func (v *Violation) Error() string {
	return v.Message
}

// CheckMessage validates and sanitizes one chat message. It is shared by
// every transport that accepts chat text.
func CheckMessage(message string, maxLength int) (string, *Violation) {
	if maxLength <= 0 {
		maxLength = DefaultMaxMessageLength
	}

	if !utf8.ValidString(message) {
		return "", &Violation{Status: fiber.StatusBadRequest, Message: "Message must be valid UTF-8"}
	}

	clean := Sanitize(message)
	if clean == "" {
		return "", &Violation{Status: fiber.StatusBadRequest, Message: "Message is required and must be a string"}
	}
	if utf8.RuneCountInString(clean) > maxLength {
		return "", &Violation{Status: fiber.StatusRequestEntityTooLarge, Message: "Message exceeds maximum length"}
	}
	return clean, nil
}

// Sanitize trims surrounding whitespace and removes NUL bytes.
func Sanitize(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")
	return strings.TrimSpace(input)
}

type Config struct {
	MaxMessageLength    int
	ChatPaths           []string
	AllowedContentTypes []string
	Logger              *zap.Logger
}

// Middleware rejects chat requests that could never produce a reply:
// wrong content type, malformed JSON, or a missing or oversized message.
// Rejections are client errors and are logged at debug level only.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxMessageLength == 0 {
		cfg.MaxMessageLength = DefaultMaxMessageLength
	}
	if len(cfg.ChatPaths) == 0 {
		cfg.ChatPaths = []string{"/chat", "/api/v1/chat"}
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json"}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	chatPaths := make(map[string]struct{}, len(cfg.ChatPaths))
	for _, p := range cfg.ChatPaths {
		chatPaths[p] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost {
			return c.Next()
		}
		if _, ok := chatPaths[c.Path()]; !ok {
			return c.Next()
		}

		contentType := c.Get(fiber.HeaderContentType)
		if contentType != "" && !allowedType(contentType, cfg.AllowedContentTypes) {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
				"error": "Unsupported content type",
			})
		}

		var req map[string]interface{}
		if err := c.BodyParser(&req); err != nil {
			cfg.Logger.Debug("Invalid chat body", zap.String("ip", c.IP()), zap.Error(err))
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid JSON format",
			})
		}

		message, ok := req["message"].(string)
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Message is required and must be a string",
			})
		}

		clean, violation := CheckMessage(message, cfg.MaxMessageLength)
		if violation != nil {
			cfg.Logger.Debug("Rejected chat message", zap.String("ip", c.IP()), zap.String("reason", violation.Message))
			return c.Status(violation.Status).JSON(fiber.Map{
				"error": violation.Message,
			})
		}

		var userID string
		if raw, present := req["user_id"]; present && raw != nil {
			s, ok := raw.(string)
			if !ok {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "user_id must be a string",
				})
			}
			userID = Sanitize(s)
		}

		c.Locals(SanitizedBodyKey, ChatBody{UserID: userID, Message: clean})

		return c.Next()
	}
}

func allowedType(contentType string, allowed []string) bool {
	for _, t := range allowed {
		if strings.Contains(contentType, t) {
			return true
		}
	}
	return false
}
