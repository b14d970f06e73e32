package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/tflnexus/tflnexus/pkg/store"
)

func DisruptionsRouter(router fiber.Router, st store.Store) {
	router.Get("/active", func(c *fiber.Ctx) error {
		disruptions, err := st.OpenDisruptions(c.Context())
		if err != nil {
			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": "Could not load active disruptions",
			})
		}

		return c.JSON(disruptions)
	})
}
