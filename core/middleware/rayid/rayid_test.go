package rayid

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRayID_Assigned(t *testing.T) {
	app := fiber.New()
	app.Use(New())

	var local string
	app.Get("/", func(c *fiber.Ctx) error {
		local, _ = c.Locals("ray_id").(string)
		return c.SendString("ok")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)

	header := resp.Header.Get(HeaderName)
	assert.NotEmpty(t, header)
	assert.Equal(t, header, local)
}

func TestRayID_CallerProvided(t *testing.T) {
	app := fiber.New()
	app.Use(New())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(HeaderName, "ray-123")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "ray-123", resp.Header.Get(HeaderName))
}
