package purchase

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/devmarket/marketplace-api/internal/domain/settlement"
	"github.com/devmarket/marketplace-api/internal/middleware"
	"github.com/devmarket/marketplace-api/internal/pkg/errorhandler"
	"github.com/devmarket/marketplace-api/internal/pkg/gateway"
	"github.com/devmarket/marketplace-api/internal/pkg/paytabs"
	"github.com/devmarket/marketplace-api/internal/pkg/response"
	"github.com/devmarket/marketplace-api/internal/pkg/validator"
)

// Handler handles purchase HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates purchase handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func actorFrom(r *http.Request) Actor {
	return Actor{
		UserID:  middleware.GetUserID(r.Context()),
		IsAdmin: middleware.IsAdmin(r.Context()),
	}
}

func purchaseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid purchase ID")
		return uuid.Nil, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := response.DecodeJSON(r.Body, dst); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return false
	}
	if errs := validator.Validate(dst); errs != nil {
		errorhandler.LogValidationError(r.Context(), errs)
		response.ValidationError(w, errs)
		return false
	}
	return true
}

func pagination(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	limit, offset := pageBounds(page, limit)
	return offset/limit + 1, limit
}

// Create handles POST /purchases
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreatePurchaseRequest
	if !decode(w, r, &req) {
		return
	}

	actor := actorFrom(r)
	result, err := h.service.CreatePurchase(r.Context(), actor.UserID, &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := CreateResponse{
		Purchase:     PurchaseResponseFromEntity(result.Purchase, actor),
		RedirectURL:  result.RedirectURL,
		ClientSecret: result.ClientSecret,
	}
	if result.NewBalance != nil {
		v := result.NewBalance.StringFixed(2)
		resp.NewBalance = &v
	}
	response.Created(w, resp)
}

// List handles GET /purchases?role=buyer|seller&status=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	page, limit := pagination(r)
	q := r.URL.Query()

	items, total, err := h.service.ListMine(r.Context(), actor, Role(q.Get("role")), Status(q.Get("status")), page, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.WithMeta(w, h.toResponses(items, actor), response.NewMeta(total, page, limit))
}

// Get handles GET /purchases/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := purchaseID(w, r)
	if !ok {
		return
	}
	actor := actorFrom(r)
	p, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, PurchaseResponseFromEntity(p, actor))
}

// Cancel handles POST /purchases/{id}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, h.service.CancelPending)
}

// Confirm handles POST /purchases/{id}/confirm
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, h.service.ConfirmPayment)
}

// Start handles POST /purchases/{id}/start
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, h.service.StartWork)
}

// Accept handles POST /purchases/{id}/delivery/accept
func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, h.service.AcceptDelivery)
}

func (h *Handler) simple(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, actor Actor, id uuid.UUID) (*Purchase, error)) {
	id, ok := purchaseID(w, r)
	if !ok {
		return
	}
	actor := actorFrom(r)
	p, err := op(r.Context(), actor, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, PurchaseResponseFromEntity(p, actor))
}

// SubmitDelivery handles POST /purchases/{id}/delivery
func (h *Handler) SubmitDelivery(w http.ResponseWriter, r *http.Request) {
	id, ok := purchaseID(w, r)
	if !ok {
		return
	}
	var req SubmitDeliveryRequest
	if !decode(w, r, &req) {
		return
	}
	actor := actorFrom(r)
	p, err := h.service.SubmitDelivery(r.Context(), actor, id, &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, PurchaseResponseFromEntity(p, actor))
}

// PresignAttachment handles POST /purchases/{id}/delivery/attachments
func (h *Handler) PresignAttachment(w http.ResponseWriter, r *http.Request) {
	id, ok := purchaseID(w, r)
	if !ok {
		return
	}
	var req PresignAttachmentRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := h.service.PresignAttachment(r.Context(), actorFrom(r), id, &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Created(w, result)
}

// Reject handles POST /purchases/{id}/delivery/reject
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := purchaseID(w, r)
	if !ok {
		return
	}
	var req RejectDeliveryRequest
	if !decode(w, r, &req) {
		return
	}
	actor := actorFrom(r)
	p, err := h.service.RejectDelivery(r.Context(), actor, id, req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, PurchaseResponseFromEntity(p, actor))
}

// CancelDelivery handles POST /purchases/{id}/delivery/cancel
func (h *Handler) CancelDelivery(w http.ResponseWriter, r *http.Request) {
	id, ok := purchaseID(w, r)
	if !ok {
		return
	}
	var req CancelDeliveryRequest
	if !decode(w, r, &req) {
		return
	}
	actor := actorFrom(r)
	p, err := h.service.CancelDelivery(r.Context(), actor, id, req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, PurchaseResponseFromEntity(p, actor))
}

// Rate handles POST /purchases/{id}/rating
func (h *Handler) Rate(w http.ResponseWriter, r *http.Request) {
	h.rating(w, r, h.service.RecordRating)
}

// RateDelivered handles POST /purchases/{id}/delivered-rating
func (h *Handler) RateDelivered(w http.ResponseWriter, r *http.Request) {
	h.rating(w, r, h.service.RecordDeliveredRating)
}

func (h *Handler) rating(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, actor Actor, id uuid.UUID, rating int, review string) (*Purchase, error)) {
	id, ok := purchaseID(w, r)
	if !ok {
		return
	}
	var req RatingRequest
	if !decode(w, r, &req) {
		return
	}
	actor := actorFrom(r)
	p, err := op(r.Context(), actor, id, req.Rating, req.Review)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, PurchaseResponseFromEntity(p, actor))
}

// Messages handles GET /purchases/{id}/messages
func (h *Handler) Messages(w http.ResponseWriter, r *http.Request) {
	id, ok := purchaseID(w, r)
	if !ok {
		return
	}
	msgs, err := h.service.ListMessages(r.Context(), actorFrom(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []*Message{}
	}
	response.OK(w, msgs)
}

// PostMessage handles POST /purchases/{id}/messages
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := purchaseID(w, r)
	if !ok {
		return
	}
	var req MessageRequest
	if !decode(w, r, &req) {
		return
	}
	msg, err := h.service.PostMessage(r.Context(), actorFrom(r), id, req.Content)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Created(w, msg)
}

// PayTabsWebhook handles POST /webhooks/paytabs. The gateway always gets a
// 200 so that it stops retrying; outcomes are only logged.
func (h *Handler) PayTabsWebhook(w http.ResponseWriter, r *http.Request) {
	cb, err := paytabs.ParseCallback(r)
	if err != nil {
		log.Warn().Err(err).Str("request_id", errorhandler.RequestID(r.Context())).Msg("Malformed PayTabs callback")
		response.OK(w, map[string]string{"status": "ignored"})
		return
	}

	err = h.service.ConfirmCallback(r.Context(), CallbackInput{
		Provider:  gateway.ProviderPayTabs,
		Reference: cb.Reference,
		TranRef:   cb.TranRef,
		Status:    cb.Status,
		Amount:    cb.Amount,
		Currency:  cb.Currency,
		Signature: cb.Signature,
	})
	switch {
	case err == nil:
		response.OK(w, map[string]string{"status": "ok"})
	case errors.Is(err, ErrUntrustedCallback):
		response.OK(w, map[string]string{"status": "rejected"})
	default:
		log.Error().
			Err(err).
			Str("reference", cb.Reference).
			Str("tran_ref", cb.TranRef).
			Str("gateway_status", cb.Status).
			Str("request_id", errorhandler.RequestID(r.Context())).
			Msg("PayTabs callback not applied, order needs reconciliation")
		response.OK(w, map[string]string{"status": "error"})
	}
}

// AdminList handles GET /api/admin/purchases
func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	page, limit := pagination(r)
	items, total, err := h.service.List(r.Context(), actor, Status(r.URL.Query().Get("status")), page, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.WithMeta(w, h.toResponses(items, actor), response.NewMeta(total, page, limit))
}

// AdminOverride handles PATCH /api/admin/purchases/{id}/status
func (h *Handler) AdminOverride(w http.ResponseWriter, r *http.Request) {
	id, ok := purchaseID(w, r)
	if !ok {
		return
	}
	var req OverrideStatusRequest
	if !decode(w, r, &req) {
		return
	}
	actor := actorFrom(r)
	p, err := h.service.AdminOverrideStatus(r.Context(), actor, id, &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, PurchaseResponseFromEntity(p, actor))
}

// AdminReviews handles GET /api/admin/reviews?state=pending|approved|rejected|all
func (h *Handler) AdminReviews(w http.ResponseWriter, r *http.Request) {
	page, limit := pagination(r)
	items, total, err := h.service.ListReviews(r.Context(), actorFrom(r), r.URL.Query().Get("state"), page, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]*ReviewResponse, 0, len(items))
	for _, p := range items {
		out = append(out, ReviewResponseFromEntity(p))
	}
	response.WithMeta(w, out, response.NewMeta(total, page, limit))
}

// ApproveReview handles POST /api/admin/reviews/{id}/approve
func (h *Handler) ApproveReview(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, true)
}

// RejectReview handles POST /api/admin/reviews/{id}/reject
func (h *Handler) RejectReview(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, false)
}

func (h *Handler) moderate(w http.ResponseWriter, r *http.Request, approve bool) {
	id, ok := purchaseID(w, r)
	if !ok {
		return
	}
	p, err := h.service.ModerateReview(r.Context(), actorFrom(r), id, approve)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, ReviewResponseFromEntity(p))
}

func (h *Handler) toResponses(items []*Purchase, actor Actor) []*PurchaseResponse {
	out := make([]*PurchaseResponse, 0, len(items))
	for _, p := range items {
		out = append(out, PurchaseResponseFromEntity(p, actor))
	}
	return out
}

// writeError maps domain errors to responses. Gateway decline details are
// only shown to admins.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		errorhandler.LogValidationError(ctx, verr.Fields)
		response.ValidationError(w, verr.Fields)
	case errors.Is(err, ErrNotFound):
		response.NotFound(w, "Purchase not found")
	case errors.Is(err, ErrProjectNotFound):
		response.NotFound(w, "Project not found")
	case errors.Is(err, ErrForbidden):
		response.Forbidden(w, "You are not allowed to perform this action")
	case errors.Is(err, settlement.ErrInsufficientFunds):
		response.Conflict(w, "INSUFFICIENT_FUNDS", "Insufficient funds")
	case errors.Is(err, ErrAlreadyRated):
		response.Conflict(w, "ALREADY_RATED", "Purchase has already been rated")
	case errors.Is(err, ErrNotEligible):
		response.Conflict(w, "NOT_ELIGIBLE", "Purchase is not eligible for this action")
	case errors.Is(err, ErrConcurrentUpdate):
		response.Conflict(w, "CONCURRENT_UPDATE", "Purchase was modified, retry the request")
	case errors.Is(err, ErrUntrustedCallback):
		response.Conflict(w, "PAYMENT_MISMATCH", "Payment details do not match the order")
	case errors.Is(err, ErrDuplicateRef):
		response.Conflict(w, "DUPLICATE_REFERENCE", "Payment reference already used")
	case errors.Is(err, settlement.ErrDuplicateEntry):
		response.Conflict(w, "DUPLICATE_ENTRY", "This payment was already recorded")
	case errors.Is(err, ErrNotConfigured):
		response.ServiceUnavailable(w, "NOT_CONFIGURED", "This feature is not available")
	case errors.Is(err, gateway.ErrUnavailable):
		errorhandler.LogExternalServiceError(ctx, "payment_gateway", r.URL.Path, 0, err, "")
		response.ServiceUnavailable(w, "GATEWAY_UNAVAILABLE", "Payment provider is unavailable, try again later")
	case errors.Is(err, gateway.ErrRejected):
		msg := "Payment was declined"
		if middleware.IsAdmin(ctx) {
			msg = err.Error()
		}
		response.PaymentRequired(w, "GATEWAY_REJECTED", msg)
	default:
		errorhandler.HandleError(ctx, w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", err)
	}
}
