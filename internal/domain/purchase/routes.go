package purchase

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns the buyer and seller router, mounted at /purchases
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Post("/", h.Create)
	r.Get("/", h.List)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Post("/cancel", h.Cancel)
		r.Post("/confirm", h.Confirm)
		r.Post("/start", h.Start)

		r.Post("/delivery", h.SubmitDelivery)
		r.Post("/delivery/attachments", h.PresignAttachment)
		r.Post("/delivery/accept", h.Accept)
		r.Post("/delivery/reject", h.Reject)
		r.Post("/delivery/cancel", h.CancelDelivery)

		r.Post("/rating", h.Rate)
		r.Post("/delivered-rating", h.RateDelivered)

		r.Get("/messages", h.Messages)
		r.Post("/messages", h.PostMessage)
	})

	return r
}

// AdminRoutes expects to be mounted behind auth and admin role middleware.
func (h *Handler) AdminRoutes() chi.Router {
	r := chi.NewRouter()

	r.Get("/purchases", h.AdminList)
	r.Patch("/purchases/{id}/status", h.AdminOverride)

	r.Get("/reviews", h.AdminReviews)
	r.Post("/reviews/{id}/approve", h.ApproveReview)
	r.Post("/reviews/{id}/reject", h.RejectReview)

	return r
}

// WebhookRoutes are unauthenticated; callbacks are signature-verified.
func (h *Handler) WebhookRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/paytabs", h.PayTabsWebhook)
	return r
}
