package purchase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const (
	queryTimeout            = 5 * time.Second
	sqlStateUniqueViolation = "23505"
)

// Repository persists purchases and their messages. The *ForUpdate reads
// lock the row and are only meaningful inside a transaction.
type Repository interface {
	Create(ctx context.Context, p *Purchase) error
	GetByID(ctx context.Context, id uuid.UUID) (*Purchase, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Purchase, error)
	GetByReferenceForUpdate(ctx context.Context, reference string) (*Purchase, error)
	Update(ctx context.Context, p *Purchase) error
	List(ctx context.Context, filter ListFilter) ([]*Purchase, int, error)
	ListReviews(ctx context.Context, filter ReviewFilter) ([]*Purchase, int, error)

	AppendMessage(ctx context.Context, m *Message) error
	ListMessages(ctx context.Context, purchaseID uuid.UUID) ([]*Message, error)
}

const purchaseColumns = `
	id, buyer_id, seller_id, project_id, project_title, amount, currency,
	payment_method, payment_details, gateway_reference, gateway_tx_id,
	status, delivery_status, delivery_requirements,
	rating, review, is_rated, review_approved,
	seller_net, platform_tax, settled_at, refunded_at,
	paid_at, actual_delivery_date, completed_date,
	version, created_at, updated_at`

type repository struct {
	db sqlx.ExtContext
}

// NewRepository works on a pool or on a transaction.
func NewRepository(db sqlx.ExtContext) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, p *Purchase) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		INSERT INTO purchases (
			id, buyer_id, seller_id, project_id, project_title, amount, currency,
			payment_method, payment_details, gateway_reference, gateway_tx_id,
			status, delivery_status, delivery_requirements,
			paid_at, version, created_at, updated_at
		) VALUES (
			:id, :buyer_id, :seller_id, :project_id, :project_title, :amount, :currency,
			:payment_method, :payment_details, :gateway_reference, :gateway_tx_id,
			:status, :delivery_status, :delivery_requirements,
			:paid_at, :version, :created_at, :updated_at
		)`

	if _, err := sqlx.NamedExecContext(ctx, r.db, query, p); err != nil {
		if isUniqueViolation(err, "gateway_reference") {
			return ErrDuplicateRef
		}
		return fmt.Errorf("create purchase: %w", err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Purchase, error) {
	return r.getOne(ctx, `SELECT`+purchaseColumns+` FROM purchases WHERE id = $1`, id)
}

func (r *repository) GetForUpdate(ctx context.Context, id uuid.UUID) (*Purchase, error) {
	return r.getOne(ctx, `SELECT`+purchaseColumns+` FROM purchases WHERE id = $1 FOR UPDATE`, id)
}

func (r *repository) GetByReferenceForUpdate(ctx context.Context, reference string) (*Purchase, error) {
	return r.getOne(ctx, `SELECT`+purchaseColumns+` FROM purchases WHERE gateway_reference = $1 FOR UPDATE`, reference)
}

func (r *repository) getOne(ctx context.Context, query string, arg interface{}) (*Purchase, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var p Purchase
	err := sqlx.GetContext(ctx, r.db, &p, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get purchase: %w", err)
	}
	return &p, nil
}

// Update writes every mutable column guarded by the version read earlier.
// A mismatch means another writer got there first.
func (r *repository) Update(ctx context.Context, p *Purchase) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		UPDATE purchases SET
			payment_details = :payment_details,
			gateway_tx_id = :gateway_tx_id,
			status = :status,
			delivery_status = :delivery_status,
			delivery_requirements = :delivery_requirements,
			rating = :rating,
			review = :review,
			is_rated = :is_rated,
			review_approved = :review_approved,
			seller_net = :seller_net,
			platform_tax = :platform_tax,
			settled_at = :settled_at,
			refunded_at = :refunded_at,
			paid_at = :paid_at,
			actual_delivery_date = :actual_delivery_date,
			completed_date = :completed_date,
			version = version + 1,
			updated_at = :updated_at
		WHERE id = :id AND version = :version`

	res, err := sqlx.NamedExecContext(ctx, r.db, query, p)
	if err != nil {
		return fmt.Errorf("update purchase: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update purchase: %w", err)
	}
	if rows == 0 {
		return ErrConcurrentUpdate
	}
	p.Version++
	return nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]*Purchase, int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var (
		where []string
		args  []interface{}
	)
	if filter.BuyerID != nil {
		args = append(args, *filter.BuyerID)
		where = append(where, fmt.Sprintf("buyer_id = $%d", len(args)))
	}
	if filter.SellerID != nil {
		args = append(args, *filter.SellerID)
		where = append(where, fmt.Sprintf("seller_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	return r.page(ctx, where, args, "created_at DESC", filter.Limit, filter.Offset)
}

func (r *repository) ListReviews(ctx context.Context, filter ReviewFilter) ([]*Purchase, int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	where := []string{"is_rated"}
	var args []interface{}
	switch {
	case filter.All:
	case filter.Approved == nil:
		where = append(where, "review_approved IS NULL", "(rating IS NOT NULL OR review IS NOT NULL)")
	default:
		args = append(args, *filter.Approved)
		where = append(where, fmt.Sprintf("review_approved = $%d", len(args)))
	}
	return r.page(ctx, where, args, "updated_at DESC", filter.Limit, filter.Offset)
}

func (r *repository) page(ctx context.Context, where []string, args []interface{}, order string, limit, offset int) ([]*Purchase, int, error) {
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := sqlx.GetContext(ctx, r.db, &total, `SELECT COUNT(*) FROM purchases`+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count purchases: %w", err)
	}

	query := fmt.Sprintf(`SELECT%s FROM purchases%s ORDER BY %s LIMIT $%d OFFSET $%d`,
		purchaseColumns, clause, order, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	var items []*Purchase
	if err := sqlx.SelectContext(ctx, r.db, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list purchases: %w", err)
	}
	return items, total, nil
}

func (r *repository) AppendMessage(ctx context.Context, m *Message) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		INSERT INTO purchase_messages (purchase_id, sender_id, content, is_system)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`
	row := r.db.QueryRowxContext(ctx, query, m.PurchaseID, m.SenderID, m.Content, m.IsSystem)
	if err := row.Scan(&m.ID, &m.CreatedAt); err != nil {
		return fmt.Errorf("append purchase message: %w", err)
	}
	return nil
}

func (r *repository) ListMessages(ctx context.Context, purchaseID uuid.UUID) ([]*Message, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var msgs []*Message
	err := sqlx.SelectContext(ctx, r.db, &msgs, `
		SELECT id, purchase_id, sender_id, content, is_system, created_at
		FROM purchase_messages
		WHERE purchase_id = $1
		ORDER BY id ASC`, purchaseID)
	if err != nil {
		return nil, fmt.Errorf("list purchase messages: %w", err)
	}
	return msgs, nil
}

func isUniqueViolation(err error, column string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || string(pqErr.Code) != sqlStateUniqueViolation {
		return false
	}
	return pqErr.Column == column || strings.Contains(pqErr.Constraint, column)
}
