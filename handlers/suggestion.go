// handlers/suggestion.go
package handlers

import (
	"bounty-marketplace/middleware"
	"bounty-marketplace/services"

	"github.com/gofiber/fiber/v2"
)

func SetupSuggestionRoutes(app *fiber.App, suggestionService *services.SuggestionService, priceService *services.PriceService) {
	// 🔓 Token price is public (behind Gateway auth like everything else)
	app.Get("/token-price", priceService.GetTokenPrice)

	// 🔐 Authenticated routes
	secured := app.Group("/", middleware.UserContextMiddleware(true))
	secured.Post("/suggestions", suggestionService.CreateSuggestion)
	secured.Get("/suggestions", suggestionService.GetSuggestions)

	// 🔒 Admin review
	admin := secured.Group("/", middleware.AdminOnly())
	admin.Post("/suggestions/:id/approve", suggestionService.ApproveSuggestion)
	admin.Post("/suggestions/:id/reject", suggestionService.RejectSuggestion)
}
