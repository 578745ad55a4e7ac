package purchase

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreatePurchaseRequest for POST /purchases
type CreatePurchaseRequest struct {
	ProjectID          string `json:"project_id" validate:"required,uuid"`
	PaymentMethod      string `json:"payment_method" validate:"required,payment_method"`
	PaymentMethodToken string `json:"payment_method_token" validate:"required_if=PaymentMethod card,max=255"`
	PaymentMethodID    string `json:"payment_method_id" validate:"omitempty,max=50"`
}

// SubmitDeliveryRequest for POST /purchases/{id}/delivery
type SubmitDeliveryRequest struct {
	RepositoryURL string   `json:"repository_url" validate:"omitempty,http_url,max=2048"`
	LiveURL       string   `json:"live_url" validate:"omitempty,http_url,max=2048"`
	SetupNotes    string   `json:"setup_notes" validate:"max=5000"`
	Attachments   []string `json:"attachments" validate:"max=10,dive,required,max=512"`
}

// PresignAttachmentRequest for POST /purchases/{id}/delivery/attachments
type PresignAttachmentRequest struct {
	Filename    string `json:"filename" validate:"required,max=255"`
	ContentType string `json:"content_type" validate:"required,max=100"`
	Size        int64  `json:"size" validate:"required,gt=0"`
}

// RejectDeliveryRequest for POST /purchases/{id}/delivery/reject
type RejectDeliveryRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=2000"`
}

// CancelDeliveryRequest for POST /purchases/{id}/delivery/cancel
type CancelDeliveryRequest struct {
	Reason string `json:"reason" validate:"max=2000"`
}

// RatingRequest for POST /purchases/{id}/rating and /delivered-rating
type RatingRequest struct {
	Rating int    `json:"rating" validate:"required,min=1,max=5"`
	Review string `json:"review" validate:"max=5000"`
}

// MessageRequest for POST /purchases/{id}/messages
type MessageRequest struct {
	Content string `json:"content" validate:"required,min=1,max=2000"`
}

// OverrideStatusRequest for PATCH /api/admin/purchases/{id}/status
type OverrideStatusRequest struct {
	Status         string `json:"status" validate:"omitempty,purchase_status"`
	DeliveryStatus string `json:"delivery_status" validate:"omitempty,delivery_status"`
	Reason         string `json:"reason" validate:"max=1000"`
}

// CreateResult is returned by every create path. RedirectURL is set for
// hosted-page payments and ClientSecret for cards awaiting a challenge.
type CreateResult struct {
	Purchase     *Purchase
	RedirectURL  string
	ClientSecret string
	NewBalance   *decimal.Decimal
}

// PurchaseResponse is the API view of a purchase.
type PurchaseResponse struct {
	ID                   uuid.UUID             `json:"id"`
	BuyerID              uuid.UUID             `json:"buyer_id"`
	SellerID             uuid.UUID             `json:"seller_id"`
	ProjectID            uuid.UUID             `json:"project_id"`
	ProjectTitle         string                `json:"project_title"`
	Amount               string                `json:"amount"`
	Currency             string                `json:"currency"`
	PaymentMethod        PaymentMethod         `json:"payment_method"`
	PaymentDetails       PaymentRecords        `json:"payment_details,omitempty"`
	GatewayReference     *string               `json:"gateway_reference,omitempty"`
	Status               Status                `json:"status"`
	DeliveryStatus       DeliveryStatus        `json:"delivery_status"`
	DeliveryRequirements *DeliveryRequirements `json:"delivery_requirements,omitempty"`
	Rating               *int                  `json:"rating,omitempty"`
	Review               *string               `json:"review,omitempty"`
	IsRated              bool                  `json:"is_rated"`
	ReviewApproved       *bool                 `json:"review_approved,omitempty"`
	SellerNet            *string               `json:"seller_net,omitempty"`
	PlatformTax          *string               `json:"platform_tax,omitempty"`
	SettledAt            *time.Time            `json:"settled_at,omitempty"`
	RefundedAt           *time.Time            `json:"refunded_at,omitempty"`
	PaidAt               *time.Time            `json:"paid_at,omitempty"`
	ActualDeliveryDate   *time.Time            `json:"actual_delivery_date,omitempty"`
	CompletedDate        *time.Time            `json:"completed_date,omitempty"`
	CreatedAt            time.Time             `json:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at"`
}

// PurchaseResponseFromEntity hides settlement figures from the buyer.
func PurchaseResponseFromEntity(p *Purchase, actor Actor) *PurchaseResponse {
	resp := &PurchaseResponse{
		ID:                   p.ID,
		BuyerID:              p.BuyerID,
		SellerID:             p.SellerID,
		ProjectID:            p.ProjectID,
		ProjectTitle:         p.ProjectTitle,
		Amount:               p.Amount.StringFixed(2),
		Currency:             p.Currency,
		PaymentMethod:        p.PaymentMethod,
		GatewayReference:     p.GatewayReference,
		Status:               p.Status,
		DeliveryStatus:       p.DeliveryStatus,
		DeliveryRequirements: p.DeliveryRequirements,
		Rating:               p.Rating,
		Review:               p.Review,
		IsRated:              p.IsRated,
		ReviewApproved:       p.ReviewApproved,
		RefundedAt:           p.RefundedAt,
		PaidAt:               p.PaidAt,
		ActualDeliveryDate:   p.ActualDeliveryDate,
		CompletedDate:        p.CompletedDate,
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
	}
	if actor.IsAdmin || p.IsSeller(actor.UserID) {
		resp.SettledAt = p.SettledAt
		if p.SellerNet.Valid {
			v := p.SellerNet.Decimal.StringFixed(2)
			resp.SellerNet = &v
		}
		if p.PlatformTax.Valid {
			v := p.PlatformTax.Decimal.StringFixed(2)
			resp.PlatformTax = &v
		}
	}
	if actor.IsAdmin {
		resp.PaymentDetails = p.PaymentDetails
	}
	return resp
}

// CreateResponse is the body of POST /purchases.
type CreateResponse struct {
	Purchase     *PurchaseResponse `json:"purchase"`
	RedirectURL  string            `json:"redirect_url,omitempty"`
	ClientSecret string            `json:"client_secret,omitempty"`
	NewBalance   *string           `json:"new_balance,omitempty"`
}

// ReviewResponse is an entry of the admin moderation queue.
type ReviewResponse struct {
	PurchaseID     uuid.UUID `json:"purchase_id"`
	ProjectID      uuid.UUID `json:"project_id"`
	ProjectTitle   string    `json:"project_title"`
	BuyerID        uuid.UUID `json:"buyer_id"`
	SellerID       uuid.UUID `json:"seller_id"`
	Rating         *int      `json:"rating,omitempty"`
	Review         *string   `json:"review,omitempty"`
	ReviewApproved *bool     `json:"review_approved"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func ReviewResponseFromEntity(p *Purchase) *ReviewResponse {
	return &ReviewResponse{
		PurchaseID:     p.ID,
		ProjectID:      p.ProjectID,
		ProjectTitle:   p.ProjectTitle,
		BuyerID:        p.BuyerID,
		SellerID:       p.SellerID,
		Rating:         p.Rating,
		Review:         p.Review,
		ReviewApproved: p.ReviewApproved,
		UpdatedAt:      p.UpdatedAt,
	}
}
