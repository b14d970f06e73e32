package routes

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/tflnexus/tflnexus/pkg/store"
)

func TransfersRouter(router fiber.Router, st store.Store) {
	router.Get("/:stop", func(c *fiber.Ctx) error {
		stopID, err := strconv.ParseUint(c.Params("stop"), 10, 32)
		if err != nil {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "Stop identifier must be numeric",
			})
		}

		statistics, err := st.TransferStatisticsForStop(c.Context(), uint(stopID))
		if err != nil {
			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": "Could not load transfer statistics",
			})
		}

		return c.JSON(statistics)
	})
}
