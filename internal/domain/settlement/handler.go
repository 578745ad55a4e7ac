package settlement

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/devmarket/marketplace-api/internal/middleware"
	"github.com/devmarket/marketplace-api/internal/pkg/errorhandler"
	"github.com/devmarket/marketplace-api/internal/pkg/response"
)

// Handler serves the earnings view.
type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

type earningsResponse struct {
	Balance       string       `json:"balance"`
	TotalEarnings string       `json:"total_earnings"`
	Ledger        []EarningLog `json:"ledger"`
}

// Earnings handles GET /earnings
func (h *Handler) Earnings(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	acc, err := h.engine.Account(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			response.NotFound(w, "account not found")
			return
		}
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to load account", err)
		return
	}

	logs, total, err := h.engine.Ledger(r.Context(), userID, page, limit)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to load ledger", err)
		return
	}

	response.WithMeta(w, earningsResponse{
		Balance:       acc.Balance.StringFixed(2),
		TotalEarnings: acc.TotalEarnings.StringFixed(2),
		Ledger:        logs,
	}, response.NewMeta(total, page, limit))
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/", h.Earnings)
	return r
}
