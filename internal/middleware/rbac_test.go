package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestRequireRoleAllowsAuthorizedRoles(t *testing.T) {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_role", "Instructor")
		return c.Next()
	})
	app.Use(RequireRole("instructor", "admin"))
	app.Get("/admin", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRequireRoleRejectsUnauthorizedRoles(t *testing.T) {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_role", "student")
		return c.Next()
	})
	app.Use(RequireRole("instructor", "admin"))
	app.Get("/admin", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

type roleName string

func (r roleName) String() string { return string(r) }

func TestRequireRoleNormalizesRoleForHandlers(t *testing.T) {
	cases := map[string]interface{}{
		"padded string": "  TEACHER ",
		"stringer":      roleName("Teacher"),
	}
	for name, claim := range cases {
		t.Run(name, func(t *testing.T) {
			app := fiber.New()
			app.Use(func(c *fiber.Ctx) error {
				c.Locals("user_role", claim)
				return c.Next()
			})
			app.Use(RequireRole("Instructor", "teacher", " "))
			app.Get("/admin", func(c *fiber.Ctx) error {
				return c.SendString(c.Locals("user_role").(string))
			})

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/admin", nil))
			require.NoError(t, err)
			require.Equal(t, fiber.StatusOK, resp.StatusCode)
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			require.Equal(t, "teacher", string(body))
		})
	}
}

func TestRequireRoleRejectsMissingOrNonStringRole(t *testing.T) {
	for name, claim := range map[string]interface{}{"missing": nil, "numeric": 42} {
		t.Run(name, func(t *testing.T) {
			app := fiber.New()
			app.Use(func(c *fiber.Ctx) error {
				if claim != nil {
					c.Locals("user_role", claim)
				}
				return c.Next()
			})
			app.Use(RequireRole("instructor"))
			app.Get("/admin", func(c *fiber.Ctx) error {
				return c.SendStatus(fiber.StatusOK)
			})

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/admin", nil))
			require.NoError(t, err)
			require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
		})
	}
}
