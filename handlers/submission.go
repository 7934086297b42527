// handlers/submission.go
package handlers

import (
	"bounty-marketplace/middleware"
	"bounty-marketplace/services"

	"github.com/gofiber/fiber/v2"
)

func SetupSubmissionRoutes(app *fiber.App, submissionService *services.SubmissionService, scoringService *services.ScoringService) {
	// 🔓 Reads are public-with-redaction: the record always comes back,
	// hidden content is replaced at the serialization boundary.
	public := app.Group("/", middleware.UserContextMiddleware(false))
	public.Get("/submissions/:id", submissionService.GetSubmissionByID)

	// 🔐 Authenticated routes
	secured := app.Group("/", middleware.UserContextMiddleware(true))
	secured.Put("/submissions/:id", submissionService.UpdateSubmission)
	secured.Post("/submissions/:id/vote", submissionService.CastVote)
	secured.Post("/submissions/:id/files", submissionService.UploadSubmissionFile)
	secured.Get("/files/:id/download", submissionService.DownloadSubmissionFile)

	// 🔒 Admin-only
	admin := secured.Group("/", middleware.AdminOnly())
	admin.Post("/submissions/:id/rescore", scoringService.RescoreSubmission)
}
