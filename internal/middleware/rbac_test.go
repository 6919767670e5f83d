package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func withLocals(userID uint, role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if userID > 0 {
			c.Locals("user_id", userID)
		}
		if role != "" {
			c.Locals("user_role", role)
		}
		return c.Next()
	}
}

func TestRequireRole(t *testing.T) {
	cases := map[string]int{
		"Mentor":  fiber.StatusOK,
		"admin":   fiber.StatusOK,
		"student": fiber.StatusForbidden,
		"":        fiber.StatusForbidden,
	}

	for role, want := range cases {
		app := fiber.New()
		app.Use(withLocals(1, role))
		app.Use(RequireRole(AuthRoleAdmin, AuthRoleMentor))
		app.Get("/admin", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/admin", nil))
		require.NoError(t, err)
		require.Equal(t, want, resp.StatusCode, "role %q", role)
	}
}

func TestRateLimitKeysByUser(t *testing.T) {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if id := c.Get("X-User"); id == "1" {
			c.Locals("user_id", uint(1))
		} else if id == "2" {
			c.Locals("user_id", uint(2))
		}
		return c.Next()
	})
	app.Post("/submit", RateLimit("solutions", 1, time.Minute), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})

	send := func(user string) int {
		req := httptest.NewRequest(http.MethodPost, "/submit", nil)
		req.Header.Set("X-User", user)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	require.Equal(t, fiber.StatusCreated, send("1"))
	require.Equal(t, fiber.StatusTooManyRequests, send("1"))
	require.Equal(t, fiber.StatusCreated, send("2"))
}
