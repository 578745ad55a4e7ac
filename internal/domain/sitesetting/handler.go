package sitesetting

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/devmarket/marketplace-api/internal/pkg/errorhandler"
	"github.com/devmarket/marketplace-api/internal/pkg/response"
	"github.com/devmarket/marketplace-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type taxRequest struct {
	TaxPercent string `json:"tax_percent" validate:"required,numeric"`
}

type taxResponse struct {
	TaxPercent string `json:"tax_percent"`
}

// GetTax handles GET /api/admin/settings/tax
func (h *Handler) GetTax(w http.ResponseWriter, r *http.Request) {
	response.OK(w, taxResponse{TaxPercent: h.svc.TaxPercent(r.Context()).String()})
}

// PutTax handles PUT /api/admin/settings/tax
func (h *Handler) PutTax(w http.ResponseWriter, r *http.Request) {
	var req taxRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	pct, err := decimal.NewFromString(req.TaxPercent)
	if err != nil {
		response.ValidationError(w, map[string]string{"tax_percent": "Invalid number"})
		return
	}
	if err := h.svc.SetTaxPercent(r.Context(), pct); err != nil {
		if errors.Is(err, ErrInvalidTaxPercent) {
			response.ValidationError(w, map[string]string{"tax_percent": err.Error()})
			return
		}
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update tax percent", err)
		return
	}
	response.OK(w, taxResponse{TaxPercent: pct.String()})
}

// Routes mounts under an admin-protected router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/tax", h.GetTax)
	r.Put("/tax", h.PutTax)
	return r
}
