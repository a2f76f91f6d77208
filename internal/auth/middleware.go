package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

func bearerToken(c *fiber.Ctx) string {
	header := c.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// OptionalAuthMiddleware resolves the bearer token when present and
// verifiable, storing the result in c.Locals("userID"); it never rejects
// the request on its own, matching Access Control's "no verified user"
// fallback.
func OptionalAuthMiddleware(verifier *Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if userID, ok := verifier.Verify(bearerToken(c)); ok {
			c.Locals("userID", userID)
		}
		return c.Next()
	}
}

// RequireAuthMiddleware rejects requests with no verified user. Used on
// the board-management REST endpoints, which the frontdoor contract
// marks "auth: required".
func RequireAuthMiddleware(verifier *Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := verifier.Verify(bearerToken(c))
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"code":    "UNAUTHORIZED",
				"message": "missing or invalid bearer token",
			})
		}
		c.Locals("userID", userID)
		return c.Next()
	}
}

// UserIDFromContext returns the verified userID stored by one of the
// middlewares above, if any.
func UserIDFromContext(c *fiber.Ctx) (string, bool) {
	v := c.Locals("userID")
	if v == nil {
		return "", false
	}
	userID, ok := v.(string)
	return userID, ok && userID != ""
}
