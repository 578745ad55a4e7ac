package cardpay

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/devmarket/marketplace-api/internal/pkg/response"
)

// MockRoutes lets a local client finish a simulated card challenge. Mount
// it only when the gateway runs in mock mode.
func (g *Gateway) MockRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/payments/{id}/approve", g.approveMock)
	return r
}

func (g *Gateway) approveMock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !g.CompleteMock(id) {
		response.NotFound(w, "Mock payment not found")
		return
	}
	log.Info().Str("provider_payment_id", id).Msg("MercadoPago mock payment approved")
	response.OK(w, map[string]string{"id": id, "status": "approved"})
}
