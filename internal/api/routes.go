package api

import (
	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the workflow API under /api/v1.
func RegisterRoutes(app *fiber.App, h *Handler) {
	v1 := app.Group("/api/v1")

	v1.Get("/health", h.Health)
	v1.Get("/approvers/suggest", h.SuggestApprovers)

	correspondence := v1.Group("/correspondence")
	correspondence.Post("/", h.CreateCorrespondence)
	correspondence.Get("/:id", h.GetCorrespondence)
	correspondence.Get("/:id/minutes", h.ListMinutes)
	correspondence.Post("/:id/minutes", h.SubmitMinute)
	correspondence.Post("/:id/manual-route", h.ManualRoute)
	correspondence.Post("/:id/treat", h.TreatAndRespond)
	correspondence.Post("/:id/complete", h.Complete)
	correspondence.Post("/:id/archive", h.Archive)
	correspondence.Post("/:id/delegations", h.Delegate)
	correspondence.Get("/:id/distribution", h.ListDistribution)
	correspondence.Post("/:id/distribution", h.AddDistribution)

	v1.Post("/delegations/:id/revoke", h.RevokeDelegation)

	users := v1.Group("/users")
	users.Get("/:id/inbox", h.Inbox)
	users.Post("/:id/signature", h.UploadSignature)
}
