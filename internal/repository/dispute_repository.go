package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/faresafe/resale-backend/internal/models"
)

var ErrDisputeNotFound = errors.New("dispute not found")

type DisputeRepository struct {
	db *sqlx.DB
}

func NewDisputeRepository(db *sqlx.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

// CreateWithFreeze inserts the dispute and moves its order and escrow to
// disputed in one transaction. Freezing is valid only from confirmed or
// transferred; anything else returns false with nothing written, and a
// failed insert rolls the freeze back, so the order is never left frozen
// without a dispute row.
func (r *DisputeRepository) CreateWithFreeze(ctx context.Context, d *models.Dispute) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = 'disputed', escrow_status = 'disputed', updated_at = NOW()
		WHERE id = $1 AND status IN ('confirmed', 'transferred')
	`, d.OrderID)
	if err != nil {
		return false, fmt.Errorf("dispute repository: freeze order %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}

	var escrowID uuid.UUID
	err = tx.GetContext(ctx, &escrowID, `
		UPDATE escrows SET status = 'disputed', updated_at = NOW()
		WHERE order_id = $1 AND status IN ('holding', 'buyer_confirmation_pending')
		RETURNING id
	`, d.OrderID)
	if err != nil {
		return false, fmt.Errorf("dispute repository: freeze escrow %w", err)
	}
	if err := appendEscrowEvent(ctx, tx, escrowID, "escrow_disputed", nil); err != nil {
		return false, err
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO disputes (
			order_id, opener_id, buyer_id, seller_id, reason, status,
			buyer_statement, buyer_evidence, buyer_submitted_at,
			seller_statement, seller_evidence, seller_submitted_at,
			response_deadline
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at
	`,
		d.OrderID, d.OpenerID, d.BuyerID, d.SellerID, d.Reason, d.Status,
		d.BuyerStatement, d.BuyerEvidence, d.BuyerSubmittedAt,
		d.SellerStatement, d.SellerEvidence, d.SellerSubmittedAt,
		d.ResponseDeadline,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("dispute repository: create dispute %w", err)
	}

	return true, tx.Commit()
}

func (r *DisputeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	var d models.Dispute
	err := r.db.GetContext(ctx, &d, `SELECT * FROM disputes WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDisputeNotFound
	}
	return &d, err
}

// GetOpenByOrderID returns the order's non-closed dispute if one exists.
// The partial unique index on disputes guarantees at most one.
func (r *DisputeRepository) GetOpenByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error) {
	var d models.Dispute
	err := r.db.GetContext(ctx, &d, `
		SELECT * FROM disputes WHERE order_id = $1 AND status <> 'closed'
	`, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDisputeNotFound
	}
	return &d, err
}

func (r *DisputeRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := r.db.SelectContext(ctx, &disputes, `
		SELECT * FROM disputes
		WHERE buyer_id = $1 OR seller_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return disputes, err
}

// Respond fills the responding party's statement slot and moves the dispute
// to under_review. Applies only while the dispute is open and that side has
// not responded yet.
func (r *DisputeRepository) Respond(ctx context.Context, id uuid.UUID, asBuyer bool, statement string, evidence []string) (bool, error) {
	side := "seller"
	if asBuyer {
		side = "buyer"
	}
	query := fmt.Sprintf(`
		UPDATE disputes
		SET %[1]s_statement = $2, %[1]s_evidence = $3, %[1]s_submitted_at = NOW(),
		    status = 'under_review', updated_at = NOW()
		WHERE id = $1 AND status = 'open' AND %[1]s_statement IS NULL
	`, side)
	res, err := r.db.ExecContext(ctx, query, id, statement, pq.Array(evidence))
	if err != nil {
		return false, fmt.Errorf("dispute repository: respond %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// AddEvidence appends urls to one side's evidence list while the dispute is
// still being argued.
func (r *DisputeRepository) AddEvidence(ctx context.Context, id uuid.UUID, asBuyer bool, evidence []string) (bool, error) {
	side := "seller"
	if asBuyer {
		side = "buyer"
	}
	query := fmt.Sprintf(`
		UPDATE disputes
		SET %[1]s_evidence = %[1]s_evidence || $2, updated_at = NOW()
		WHERE id = $1 AND status IN ('open', 'under_review')
	`, side)
	res, err := r.db.ExecContext(ctx, query, id, pq.Array(evidence))
	if err != nil {
		return false, fmt.Errorf("dispute repository: add evidence %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Resolve records the verdict and settlement amounts. resolvedBy is nil for
// deadline-driven system resolutions. Applies only while the dispute is open
// or under review, so a verdict is written once.
func (r *DisputeRepository) Resolve(ctx context.Context, id uuid.UUID, status, settlement string, refundAmount, releaseAmount *decimal.Decimal, resolvedBy *uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE disputes
		SET status = $2, settlement = $3, refund_amount = $4, release_amount = $5,
		    resolved_by = $6, resolved_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status IN ('open', 'under_review')
	`, id, status, settlement, refundAmount, releaseAmount, resolvedBy)
	if err != nil {
		return false, fmt.Errorf("dispute repository: resolve %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Close retires a resolved dispute, freeing the order's dispute slot.
func (r *DisputeRepository) Close(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE disputes SET status = 'closed', closed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status IN ('resolved_buyer_favor', 'resolved_seller_favor', 'resolved_partial')
	`, id)
	if err != nil {
		return false, fmt.Errorf("dispute repository: close %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// AddFraudLogEntry appends one investigation record. Timestamps come from
// the database, callers only supply the correlation ids.
func (r *DisputeRepository) AddFraudLogEntry(ctx context.Context, e *models.FraudLogEntry) error {
	return r.db.QueryRowContext(ctx, `
		INSERT INTO fraud_log (seller_id, listing_id, order_id, dispute_id, reason)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, e.SellerID, e.ListingID, e.OrderID, e.DisputeID, e.Reason).Scan(&e.ID, &e.CreatedAt)
}

// ListOverdueResponses returns open disputes whose response deadline lapsed
// without the other party answering.
func (r *DisputeRepository) ListOverdueResponses(ctx context.Context, now time.Time) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := r.db.SelectContext(ctx, &disputes, `
		SELECT * FROM disputes WHERE status = 'open' AND response_deadline <= $1
	`, now)
	return disputes, err
}

// MarkUnderReview escalates an open dispute into admin review. A concurrent
// response wins the race and makes this a no-op.
func (r *DisputeRepository) MarkUnderReview(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE disputes SET status = 'under_review', updated_at = NOW()
		WHERE id = $1 AND status = 'open'
	`, id)
	if err != nil {
		return false, fmt.Errorf("dispute repository: mark under review %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
