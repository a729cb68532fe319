package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/user/linkpulse/internal/models"
)

// linkColumns is the column list shared by every link SELECT.
const linkColumns = `id, short_code, original_url, title, owner_id, password_hash,
	expires_at, is_active, created_at, updated_at`

// LinkRepository handles all link database operations.
type LinkRepository struct {
	db *pgxpool.Pool
}

// NewLinkRepository creates a new link repository.
func NewLinkRepository(db *pgxpool.Pool) *LinkRepository {
	return &LinkRepository{db: db}
}

// Create inserts a new link.
// Returns ErrAlreadyExists if the short code is taken; the unique index
// on short_code is what actually prevents two links sharing a code.
func (r *LinkRepository) Create(ctx context.Context, link *models.Link) error {
	query := `
		INSERT INTO links (id, short_code, original_url, title, owner_id, password_hash,
			expires_at, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	now := time.Now().UTC()
	if link.CreatedAt.IsZero() {
		link.CreatedAt = now
	}
	if link.UpdatedAt.IsZero() {
		link.UpdatedAt = link.CreatedAt
	}

	_, err := r.db.Exec(ctx, query,
		link.ID,
		link.ShortCode,
		link.OriginalURL,
		link.Title,
		link.OwnerID,
		link.PasswordHash,
		link.ExpiresAt,
		link.IsActive,
		link.CreatedAt,
		link.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to create link: %w", err)
	}

	return nil
}

// GetByShortCode retrieves a link by its short code, active or not.
func (r *LinkRepository) GetByShortCode(ctx context.Context, shortCode string) (*models.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE short_code = $1`

	link, err := scanLink(r.db.QueryRow(ctx, query, shortCode))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	return link, nil
}

// GetOwned retrieves a link by id only if ownerID owns it.
// A link owned by someone else is reported as ErrNotFound.
func (r *LinkRepository) GetOwned(ctx context.Context, id, ownerID uuid.UUID) (*models.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE id = $1 AND owner_id = $2`

	link, err := scanLink(r.db.QueryRow(ctx, query, id, ownerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	return link, nil
}

// Exists checks if a short code is already taken.
func (r *LinkRepository) Exists(ctx context.Context, shortCode string) (bool, error) {
	query := `SELECT 1 FROM links WHERE short_code = $1 LIMIT 1`

	var one int
	err := r.db.QueryRow(ctx, query, shortCode).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check existence: %w", err)
	}

	return true, nil
}

// ListByOwnerWithClicks returns every link owned by ownerID together with
// its lifetime click count, newest first.
//
// Click counts come from click_events rather than a counter column so
// they can never drift from the events the analytics read.
func (r *LinkRepository) ListByOwnerWithClicks(ctx context.Context, ownerID uuid.UUID) ([]models.LinkWithClicks, error) {
	query := `
		SELECT l.id, l.short_code, l.original_url, l.title, l.owner_id, l.password_hash,
			l.expires_at, l.is_active, l.created_at, l.updated_at,
			(SELECT COUNT(*) FROM click_events c WHERE c.link_id = l.id) AS clicks
		FROM links l
		WHERE l.owner_id = $1
		ORDER BY l.created_at DESC
	`

	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer rows.Close()

	links := make([]models.LinkWithClicks, 0)
	for rows.Next() {
		var l models.LinkWithClicks
		if err := rows.Scan(
			&l.ID,
			&l.ShortCode,
			&l.OriginalURL,
			&l.Title,
			&l.OwnerID,
			&l.PasswordHash,
			&l.ExpiresAt,
			&l.IsActive,
			&l.CreatedAt,
			&l.UpdatedAt,
			&l.Clicks,
		); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate links: %w", err)
	}

	return links, nil
}

// Deactivate marks an owned link inactive and returns its short code so
// the caller can update caches. The row is kept: short codes are
// never reassigned.
func (r *LinkRepository) Deactivate(ctx context.Context, id, ownerID uuid.UUID) (string, error) {
	query := `
		UPDATE links
		SET is_active = false, updated_at = $3
		WHERE id = $1 AND owner_id = $2
		RETURNING short_code
	`

	var shortCode string
	err := r.db.QueryRow(ctx, query, id, ownerID, time.Now().UTC()).Scan(&shortCode)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to deactivate link: %w", err)
	}

	return shortCode, nil
}

func scanLink(row pgx.Row) (*models.Link, error) {
	link := &models.Link{}
	err := row.Scan(
		&link.ID,
		&link.ShortCode,
		&link.OriginalURL,
		&link.Title,
		&link.OwnerID,
		&link.PasswordHash,
		&link.ExpiresAt,
		&link.IsActive,
		&link.CreatedAt,
		&link.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return link, nil
}
