package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/tflnexus/tflnexus/pkg/api/routes"
	"github.com/tflnexus/tflnexus/pkg/store"
)

func SetupServer(listen string, st store.Store) error {
	webApp := fiber.New()
	webApp.Use(NewLogger())

	group := webApp.Group("/core")

	group.Get("version", routes.APIVersion)

	routes.DisruptionsRouter(group.Group("/disruptions"), st)
	routes.SeverityRouter(group.Group("/severity"), st)
	routes.TransfersRouter(group.Group("/transfers"), st)

	return webApp.Listen(listen)
}
