package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/tflnexus/tflnexus/pkg/store"
)

func SeverityRouter(router fiber.Router, st store.Store) {
	router.Get("/levels", func(c *fiber.Ctx) error {
		mode := c.Query("mode")
		if mode == "" {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "A mode filter must be applied to the request",
			})
		}

		levels, err := st.SeverityLevels(c.Context(), mode)
		if err != nil {
			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": "Could not load severity levels",
			})
		}

		return c.JSON(levels)
	})
}
