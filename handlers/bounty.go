// handlers/bounty.go
package handlers

import (
	"bounty-marketplace/middleware"
	"bounty-marketplace/services"

	"github.com/gofiber/fiber/v2"
)

func SetupBountyRoutes(app *fiber.App, bountyService *services.BountyService, submissionService *services.SubmissionService) {
	// 🔓 Public routes — no user context required, but still behind Gateway auth.
	// Identity is still extracted when present so completed-bounty content opens up.
	public := app.Group("/", middleware.UserContextMiddleware(false))
	public.Get("/bounties", bountyService.GetAllBounties)
	public.Get("/bounties/:id", bountyService.GetBountyByID)
	public.Get("/bounties/:id/submissions", submissionService.GetSubmissionsByBounty)

	// 🔐 Authenticated routes
	secured := app.Group("/", middleware.UserContextMiddleware(true))
	secured.Post("/bounties/:id/submissions", submissionService.CreateSubmission)
	// Update allows the bounty creator as well as admins; the service
	// predicate decides.
	secured.Put("/bounties/:id", bountyService.UpdateBounty)

	// 🔒 Admin-gated bounty management
	admin := secured.Group("/", middleware.AdminOnly())
	admin.Post("/bounties", bountyService.CreateBounty)
	admin.Patch("/bounties/:id/status", bountyService.UpdateBountyStatus)
	admin.Delete("/bounties/:id", bountyService.DeleteBounty)
}
