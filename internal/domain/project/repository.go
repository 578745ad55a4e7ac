package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var ErrProjectNotFound = errors.New("project not found")

const queryTimeout = 3 * time.Second

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Project, error)
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Project, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var p Project
	err := r.db.GetContext(ctx, &p, `
		SELECT id, seller_id, title, price, currency, status, is_active, created_at, updated_at
		FROM projects WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("project repository get: %w", err)
	}
	return &p, nil
}
