// handlers/scoring.go
package handlers

import (
	"bounty-marketplace/middleware"
	"bounty-marketplace/services"

	"github.com/gofiber/fiber/v2"
)

func SetupScoringRoutes(app *fiber.App, scoringService *services.ScoringService) {
	// 🔐 Authenticated reads — visibility enforced per-job in the service
	secured := app.Group("/", middleware.UserContextMiddleware(true))
	secured.Get("/scoring-jobs", scoringService.ListScoringJobs)
	secured.Get("/scoring-jobs/:id", scoringService.GetScoringJob)
	secured.Get("/scoring-jobs/:id/logs", scoringService.GetScoringJobLogs)

	// 🔒 Admin-only registry view
	admin := secured.Group("/", middleware.AdminOnly())
	admin.Get("/screeners", scoringService.ListScreeners)

	// ⚙️ Internal endpoints for the external scoring dispatcher —
	// service token, not gateway user context
	internal := app.Group("/internal", middleware.ServiceTokenMiddleware())
	internal.Post("/scoring-jobs", scoringService.RegisterJob)
	internal.Post("/scoring-jobs/:id/outcome", scoringService.RecordJobOutcome)
}
