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

	"github.com/faresafe/resale-backend/internal/models"
)

var ErrTransferNotFound = errors.New("transfer not found")

type TransferRepository struct {
	db *sqlx.DB
}

func NewTransferRepository(db *sqlx.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

func (r *TransferRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Transfer, error) {
	var t models.Transfer
	err := r.db.GetContext(ctx, &t, `SELECT * FROM transfers WHERE order_id = $1`, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransferNotFound
	}
	return &t, err
}

// SubmitProof records the seller's handover evidence and advances the order
// to transferred and the escrow to buyer_confirmation_pending, arming the
// confirmation deadline. Applies only while the transfer is still pending.
func (r *TransferRepository) SubmitProof(ctx context.Context, orderID uuid.UUID, proofURLs []string, referenceCode *string, confirmationDeadline time.Time) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE transfers
		SET status = 'proof_submitted', seller_proof_urls = $2, reference_code = $3,
		    proof_submitted_at = NOW(), confirmation_deadline = $4, updated_at = NOW()
		WHERE order_id = $1 AND status = 'pending'
	`, orderID, pq.Array(proofURLs), referenceCode, confirmationDeadline)
	if err != nil {
		return false, fmt.Errorf("transfer repository: submit proof %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE orders SET status = 'transferred', escrow_status = 'buyer_confirmation_pending', updated_at = NOW()
		WHERE id = $1 AND status = 'confirmed'
	`, orderID)
	if err != nil {
		return false, fmt.Errorf("transfer repository: advance order %w", err)
	}

	var escrowID uuid.UUID
	err = tx.GetContext(ctx, &escrowID, `
		UPDATE escrows SET status = 'buyer_confirmation_pending', updated_at = NOW()
		WHERE order_id = $1 AND status = 'holding'
		RETURNING id
	`, orderID)
	if err != nil {
		return false, fmt.Errorf("transfer repository: advance escrow %w", err)
	}
	if err := appendEscrowEvent(ctx, tx, escrowID, "transfer_proof_submitted", map[string]interface{}{
		"proof_count": len(proofURLs),
	}); err != nil {
		return false, err
	}

	return true, tx.Commit()
}

// ListOverdueConfirmations returns order ids whose proof was submitted but
// the buyer neither confirmed nor disputed before the confirmation deadline.
func (r *TransferRepository) ListOverdueConfirmations(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.SelectContext(ctx, &ids, `
		SELECT t.order_id FROM transfers t
		JOIN orders o ON o.id = t.order_id
		WHERE t.status = 'proof_submitted'
		  AND t.confirmation_deadline <= $1
		  AND o.status = 'transferred'
	`, now)
	return ids, err
}

// ListOverdueTransfers returns order ids where the seller never submitted
// proof before the transfer deadline.
func (r *TransferRepository) ListOverdueTransfers(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.SelectContext(ctx, &ids, `
		SELECT t.order_id FROM transfers t
		JOIN orders o ON o.id = t.order_id
		WHERE t.status = 'pending'
		  AND t.transfer_deadline IS NOT NULL
		  AND t.transfer_deadline <= $1
		  AND o.status = 'confirmed'
	`, now)
	return ids, err
}
