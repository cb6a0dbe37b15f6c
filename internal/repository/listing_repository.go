package repository

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
	"github.com/shopspring/decimal"

	"github.com/faresafe/resale-backend/internal/models"
)

var ErrListingNotFound = errors.New("listing not found")

type ListingRepository struct {
	db *sqlx.DB
}

func NewListingRepository(db *sqlx.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

func (r *ListingRepository) Create(ctx context.Context, l *models.Listing) error {
	query := `
		INSERT INTO listings (
			seller_id, event_name, event_venue, event_city, event_date,
			ticket_type, quantity, ticket_source, transfer_method,
			original_price, asking_price, proof_url, fraud_score,
			is_suspicious, status, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at, updated_at
	`
	return r.db.QueryRowContext(ctx, query,
		l.SellerID, l.EventName, l.EventVenue, l.EventCity, l.EventDate,
		l.TicketType, l.Quantity, l.TicketSource, l.TransferMethod,
		l.OriginalPrice, l.AskingPrice, l.ProofURL, l.FraudScore,
		l.IsSuspicious, l.Status, l.ExpiresAt,
	).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
}

func (r *ListingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var l models.Listing
	err := r.db.GetContext(ctx, &l, `SELECT * FROM listings WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrListingNotFound
	}
	return &l, err
}

// ListingFilter narrows the public browse query. Only active listings for
// future events are ever returned.
type ListingFilter struct {
	City      string
	EventName string
	MaxPrice  *decimal.Decimal
	DateFrom  *time.Time
	DateTo    *time.Time
	Limit     int
	Offset    int
}

// List returns active, future-event listings matching the filter plus the
// total match count for pagination.
func (r *ListingRepository) List(ctx context.Context, f ListingFilter) ([]models.Listing, int, error) {
	conditions := []string{"status = $1", "event_date > NOW()"}
	args := []interface{}{models.ListingStatusActive}

	addArg := func(condition string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}

	if f.City != "" {
		addArg("LOWER(event_city) = LOWER($%d)", f.City)
	}
	if f.EventName != "" {
		addArg("event_name ILIKE '%%' || $%d || '%%'", f.EventName)
	}
	if f.MaxPrice != nil {
		addArg("asking_price <= $%d", *f.MaxPrice)
	}
	if f.DateFrom != nil {
		addArg("event_date >= $%d", *f.DateFrom)
	}
	if f.DateTo != nil {
		addArg("event_date <= $%d", *f.DateTo)
	}

	where := strings.Join(conditions, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM listings WHERE `+where, args...); err != nil {
		return nil, 0, fmt.Errorf("listing repository: count %w", err)
	}

	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf(
		`SELECT * FROM listings WHERE %s ORDER BY event_date ASC LIMIT $%d OFFSET $%d`,
		where, len(args)-1, len(args),
	)

	var listings []models.Listing
	if err := r.db.SelectContext(ctx, &listings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("listing repository: list %w", err)
	}
	return listings, total, nil
}

// Update writes the seller-editable fields and records a price history row
// when the asking price changed, in one transaction.
func (r *ListingRepository) Update(ctx context.Context, l *models.Listing, priceChanged bool, oldPrice decimal.Decimal) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE listings
		SET event_name = $2, event_venue = $3, event_city = $4,
		    ticket_type = $5, quantity = $6, asking_price = $7,
		    proof_url = $8, status = $9, verified_at = $10, updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('sold', 'reserved', 'expired')
	`, l.ID, l.EventName, l.EventVenue, l.EventCity,
		l.TicketType, l.Quantity, l.AskingPrice,
		l.ProofURL, l.Status, l.VerifiedAt)
	if err != nil {
		return fmt.Errorf("listing repository: update %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrListingNotFound
	}

	if priceChanged {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO listing_price_history (listing_id, old_price, new_price)
			VALUES ($1, $2, $3)
		`, l.ID, oldPrice, l.AskingPrice)
		if err != nil {
			return fmt.Errorf("listing repository: price history %w", err)
		}
	}

	return tx.Commit()
}

// UpdateStatusCAS moves the listing to a new status only if it currently is
// in one of the expected states. Reports whether the transition applied.
func (r *ListingRepository) UpdateStatusCAS(ctx context.Context, id uuid.UUID, from []string, to string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE listings SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = ANY($2)
	`, id, pq.Array(from), to)
	if err != nil {
		return false, fmt.Errorf("listing repository: status cas %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// CountActiveBySeller counts a seller's listings that still occupy an
// active-listing slot.
func (r *ListingRepository) CountActiveBySeller(ctx context.Context, sellerID uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM listings
		WHERE seller_id = $1 AND status IN ('pending_verification', 'active', 'reserved')
	`, sellerID)
	return count, err
}

// CountActiveSameEvent counts the seller's other active listings for the
// same event name, a fraud scoring signal.
func (r *ListingRepository) CountActiveSameEvent(ctx context.Context, sellerID uuid.UUID, eventName string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM listings
		WHERE seller_id = $1 AND LOWER(event_name) = LOWER($2)
		  AND status IN ('pending_verification', 'active', 'reserved')
	`, sellerID, eventName)
	return count, err
}

// AddViews folds drained cache view counts into the persisted counter.
func (r *ListingRepository) AddViews(ctx context.Context, id uuid.UUID, delta int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE listings SET view_count = view_count + $2 WHERE id = $1`, id, delta)
	return err
}

// ExpireLapsed marks active or pending listings past their expiry as
// expired. Returns how many rows moved.
func (r *ListingRepository) ExpireLapsed(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE listings SET status = 'expired', updated_at = NOW()
		WHERE status IN ('pending_verification', 'active') AND expires_at <= $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("listing repository: expire lapsed %w", err)
	}
	return res.RowsAffected()
}

// ListPriceHistory returns the append-only price change log, oldest first.
func (r *ListingRepository) ListPriceHistory(ctx context.Context, listingID uuid.UUID) ([]models.PriceHistoryEntry, error) {
	var entries []models.PriceHistoryEntry
	err := r.db.SelectContext(ctx, &entries, `
		SELECT * FROM listing_price_history WHERE listing_id = $1 ORDER BY created_at ASC
	`, listingID)
	return entries, err
}
