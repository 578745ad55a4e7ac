package purchase

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/devmarket/marketplace-api/internal/domain/settlement"
)

// Status is the commercial state of a purchase.
type Status string

const (
	StatusPending    Status = "pending"
	StatusPaid       Status = "paid"
	StatusInProgress Status = "in_progress"
	StatusDelivered  Status = "delivered"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusInProgress, StatusDelivered,
		StatusCompleted, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// Terminal statuses never regress without an admin override.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusRefunded
}

// DeliveryStatus is the fulfilment state of a purchase.
type DeliveryStatus string

const (
	DeliveryNotStarted DeliveryStatus = "not_started"
	DeliveryInProgress DeliveryStatus = "in_progress"
	DeliveryReview     DeliveryStatus = "review"
	DeliveryDelivered  DeliveryStatus = "delivered"
	DeliveryAccepted   DeliveryStatus = "accepted"
	DeliveryRejected   DeliveryStatus = "rejected"
	DeliveryCancelled  DeliveryStatus = "cancelled"
)

func (d DeliveryStatus) Valid() bool {
	switch d {
	case DeliveryNotStarted, DeliveryInProgress, DeliveryReview, DeliveryDelivered,
		DeliveryAccepted, DeliveryRejected, DeliveryCancelled:
		return true
	}
	return false
}

// PaymentMethod is the funding path. It never changes after creation.
type PaymentMethod string

const (
	MethodCard     PaymentMethod = "card"
	MethodBalance  PaymentMethod = "balance"
	MethodWallet   PaymentMethod = "wallet"
	MethodRedirect PaymentMethod = "redirect"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCard, MethodBalance, MethodWallet, MethodRedirect:
		return true
	}
	return false
}

// Funded reports whether the method draws on stored user funds.
func (m PaymentMethod) Funded() bool {
	return m == MethodBalance || m == MethodWallet
}

// Source maps a stored-funds method to the settlement source.
func (m PaymentMethod) Source() (settlement.Source, bool) {
	switch m {
	case MethodBalance:
		return settlement.SourceBalance, true
	case MethodWallet:
		return settlement.SourceEarnings, true
	}
	return "", false
}

// PaymentRecord is one receipt or gateway reference for a purchase.
type PaymentRecord struct {
	Provider    string          `json:"provider"`
	Event       string          `json:"event"`
	Status      string          `json:"status"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Reference   string          `json:"reference,omitempty"`
	GatewayTxID string          `json:"gateway_tx_id,omitempty"`
	ReceiptURL  string          `json:"receipt_url,omitempty"`
	RecordedAt  time.Time       `json:"recorded_at"`
}

// PaymentRecords is stored as a JSONB array and only ever appended to.
type PaymentRecords []PaymentRecord

func (r PaymentRecords) Value() (driver.Value, error) {
	if r == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r)
}

func (r *PaymentRecords) Scan(src any) error {
	data, err := jsonBytes(src)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		*r = PaymentRecords{}
		return nil
	}
	return json.Unmarshal(data, r)
}

// DeliveryRequirements is what the seller hands over.
type DeliveryRequirements struct {
	RepositoryURL string   `json:"repository_url,omitempty"`
	LiveURL       string   `json:"live_url,omitempty"`
	SetupNotes    string   `json:"setup_notes,omitempty"`
	Attachments   []string `json:"attachments,omitempty"`
}

func (d *DeliveryRequirements) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}

func (d *DeliveryRequirements) Scan(src any) error {
	data, err := jsonBytes(src)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		*d = DeliveryRequirements{}
		return nil
	}
	return json.Unmarshal(data, d)
}

func jsonBytes(src any) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported json source type: %T", src)
	}
}

// Purchase is one buyer's order of one project.
type Purchase struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	BuyerID      uuid.UUID       `db:"buyer_id" json:"buyer_id"`
	SellerID     uuid.UUID       `db:"seller_id" json:"seller_id"`
	ProjectID    uuid.UUID       `db:"project_id" json:"project_id"`
	ProjectTitle string          `db:"project_title" json:"project_title"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	Currency     string          `db:"currency" json:"currency"`

	PaymentMethod    PaymentMethod  `db:"payment_method" json:"payment_method"`
	PaymentDetails   PaymentRecords `db:"payment_details" json:"payment_details"`
	GatewayReference *string        `db:"gateway_reference" json:"gateway_reference,omitempty"`
	GatewayTxID      *string        `db:"gateway_tx_id" json:"gateway_tx_id,omitempty"`

	Status               Status                `db:"status" json:"status"`
	DeliveryStatus       DeliveryStatus        `db:"delivery_status" json:"delivery_status"`
	DeliveryRequirements *DeliveryRequirements `db:"delivery_requirements" json:"delivery_requirements,omitempty"`

	Rating         *int    `db:"rating" json:"rating,omitempty"`
	Review         *string `db:"review" json:"review,omitempty"`
	IsRated        bool    `db:"is_rated" json:"is_rated"`
	ReviewApproved *bool   `db:"review_approved" json:"review_approved,omitempty"`

	SellerNet   decimal.NullDecimal `db:"seller_net" json:"seller_net"`
	PlatformTax decimal.NullDecimal `db:"platform_tax" json:"platform_tax"`
	SettledAt   *time.Time          `db:"settled_at" json:"settled_at,omitempty"`
	RefundedAt  *time.Time          `db:"refunded_at" json:"refunded_at,omitempty"`

	PaidAt             *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	ActualDeliveryDate *time.Time `db:"actual_delivery_date" json:"actual_delivery_date,omitempty"`
	CompletedDate      *time.Time `db:"completed_date" json:"completed_date,omitempty"`

	Version   int       `db:"version" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (p *Purchase) IsBuyer(userID uuid.UUID) bool  { return p.BuyerID == userID }
func (p *Purchase) IsSeller(userID uuid.UUID) bool { return p.SellerID == userID }

func (p *Purchase) IsParty(userID uuid.UUID) bool {
	return p.IsBuyer(userID) || p.IsSeller(userID)
}

// Settled reports whether the seller has been credited for this sale.
func (p *Purchase) Settled() bool {
	return p.SettledAt != nil
}

// Refunded reports whether the buyer's money has already been returned. A
// purchase is refunded at most once, whatever its status later becomes.
func (p *Purchase) Refunded() bool {
	return p.RefundedAt != nil
}

func (p *Purchase) addPayment(rec PaymentRecord) {
	p.PaymentDetails = append(p.PaymentDetails, rec)
}

// Message is an entry in a purchase conversation. SenderID is nil for
// system messages.
type Message struct {
	ID         int64      `db:"id" json:"id"`
	PurchaseID uuid.UUID  `db:"purchase_id" json:"purchase_id"`
	SenderID   *uuid.UUID `db:"sender_id" json:"sender_id,omitempty"`
	Content    string     `db:"content" json:"content"`
	IsSystem   bool       `db:"is_system" json:"is_system"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID  uuid.UUID
	IsAdmin bool
}

// Role filters purchase lists by the caller's side of the deal.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

// ListFilter narrows purchase lists. Zero values mean no constraint.
type ListFilter struct {
	BuyerID  *uuid.UUID
	SellerID *uuid.UUID
	Status   Status
	Limit    int
	Offset   int
}

// ReviewFilter narrows the moderation queue.
type ReviewFilter struct {
	// Approved nil lists reviews awaiting moderation.
	Approved *bool
	All      bool
	Limit    int
	Offset   int
}
