package handlers

import "github.com/gofiber/fiber/v2"

func render(c *fiber.Ctx, tmpl string, data fiber.Map) error {
	if data == nil {
		data = fiber.Map{}
	}
	// basicauth stores the operator name under "username"
	if u, ok := c.Locals("username").(string); ok && u != "" {
		data["Admin"] = u
	}
	return c.Render(tmpl, data)
}
