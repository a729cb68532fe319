package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/user/linkpulse/internal/models"
)

// UserRepository reads the plan state of users. Accounts and billing are
// managed elsewhere; this side never writes to users.
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// GetPlan returns the plan tier and account status of a user.
func (r *UserRepository) GetPlan(ctx context.Context, userID uuid.UUID) (*models.UserPlan, error) {
	query := `SELECT id, plan_tier, is_active FROM users WHERE id = $1`

	plan := &models.UserPlan{}
	err := r.db.QueryRow(ctx, query, userID).Scan(&plan.UserID, &plan.Tier, &plan.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}

	return plan, nil
}
