package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/faresafe/resale-backend/internal/models"
)

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrEscrowNotFound       = errors.New("escrow not found")
	ErrListingNotReservable = errors.New("listing is not available for purchase")
	ErrSplitAmountMismatch  = errors.New("split amounts must sum to the escrow amount")
)

// OrderRepository owns orders, escrows and the escrow audit log. All status
// transitions are conditional updates against the current persisted state so
// replayed webhooks and racing actors collapse into no-ops instead of
// double-processing.
type OrderRepository struct {
	db *sqlx.DB
}

func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// CreatePurchase persists the order, its escrow and its transfer shell and
// reserves the listing, all in one transaction. If the listing is no longer
// active nothing is written and ErrListingNotReservable is returned.
func (r *OrderRepository) CreatePurchase(ctx context.Context, order *models.Order, escrow *models.Escrow, transfer *models.Transfer) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// The provisional reservation. Released back to active by the webhook
	// router on checkout expiry or payment failure.
	res, err := tx.ExecContext(ctx, `
		UPDATE listings SET status = 'reserved', updated_at = NOW()
		WHERE id = $1 AND status = 'active'
	`, order.ListingID)
	if err != nil {
		return fmt.Errorf("order repository: reserve listing %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrListingNotReservable
	}

	err = tx.GetContext(ctx, order, `
		INSERT INTO orders (
			id, listing_id, buyer_id, seller_id, quantity,
			subtotal, platform_fee, buyer_protection_fee, total, seller_receives,
			status, escrow_status, payment_status, seller_payout_status,
			payment_ref, checkout_expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING *
	`, order.ID, order.ListingID, order.BuyerID, order.SellerID, order.Quantity,
		order.Subtotal, order.PlatformFee, order.BuyerProtectionFee, order.Total, order.SellerReceives,
		order.Status, order.EscrowStatus, order.PaymentStatus, order.SellerPayoutStatus,
		order.PaymentRef, order.CheckoutExpiresAt)
	if err != nil {
		return fmt.Errorf("order repository: insert order %w", err)
	}

	err = tx.GetContext(ctx, escrow, `
		INSERT INTO escrows (id, order_id, amount, platform_fee, seller_amount, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *
	`, escrow.ID, order.ID, escrow.Amount, escrow.PlatformFee, escrow.SellerAmount, escrow.Status)
	if err != nil {
		return fmt.Errorf("order repository: insert escrow %w", err)
	}

	if err := appendEscrowEvent(ctx, tx, escrow.ID, "escrow_created", map[string]interface{}{
		"order_id": order.ID, "amount": escrow.Amount,
	}); err != nil {
		return err
	}

	err = tx.GetContext(ctx, transfer, `
		INSERT INTO transfers (order_id, status)
		VALUES ($1, $2)
		RETURNING *
	`, order.ID, transfer.Status)
	if err != nil {
		return fmt.Errorf("order repository: insert transfer %w", err)
	}

	return tx.Commit()
}

func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var o models.Order
	err := r.db.GetContext(ctx, &o, `SELECT * FROM orders WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	return &o, err
}

func (r *OrderRepository) GetEscrowByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Escrow, error) {
	var e models.Escrow
	err := r.db.GetContext(ctx, &e, `SELECT * FROM escrows WHERE order_id = $1`, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEscrowNotFound
	}
	return &e, err
}

// ListByUser returns orders where the user is buyer or seller, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.SelectContext(ctx, &orders, `
		SELECT * FROM orders
		WHERE buyer_id = $1 OR seller_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return orders, err
}

// ConfirmPayment applies the checkout-completed transition: order pending →
// confirmed, escrow → holding, listing → sold, transfer deadline armed.
// Returns false without touching anything when the order is no longer
// pending, which makes replayed webhook deliveries no-ops.
func (r *OrderRepository) ConfirmPayment(ctx context.Context, orderID uuid.UUID, paymentRef string, transferDeadline time.Time) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var order models.Order
	err = tx.GetContext(ctx, &order, `SELECT * FROM orders WHERE id = $1 FOR UPDATE`, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrOrderNotFound
	}
	if err != nil {
		return false, err
	}
	if order.Status != models.OrderStatusPending {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE orders
		SET status = 'confirmed', escrow_status = 'holding', payment_status = 'paid',
		    payment_ref = COALESCE(payment_ref, $2), updated_at = NOW()
		WHERE id = $1
	`, orderID, paymentRef)
	if err != nil {
		return false, fmt.Errorf("order repository: confirm order %w", err)
	}

	var escrowID uuid.UUID
	err = tx.GetContext(ctx, &escrowID, `
		UPDATE escrows SET status = 'holding', updated_at = NOW()
		WHERE order_id = $1 AND status = 'pending_payment'
		RETURNING id
	`, orderID)
	if err != nil {
		return false, fmt.Errorf("order repository: hold escrow %w", err)
	}
	if err := appendEscrowEvent(ctx, tx, escrowID, "funds_held", map[string]interface{}{
		"payment_ref": paymentRef,
	}); err != nil {
		return false, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE listings SET status = 'sold', sold_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'reserved'
	`, order.ListingID)
	if err != nil {
		return false, fmt.Errorf("order repository: mark listing sold %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE transfers SET transfer_deadline = $2, updated_at = NOW()
		WHERE order_id = $1
	`, orderID, transferDeadline)
	if err != nil {
		return false, fmt.Errorf("order repository: arm transfer deadline %w", err)
	}

	return true, tx.Commit()
}

// FailPayment applies checkout-expired / payment-failed: order pending →
// cancelled, escrow → cancelled, listing released back to active for resale.
// paymentStatus records which provider event caused it.
func (r *OrderRepository) FailPayment(ctx context.Context, orderID uuid.UUID, paymentStatus string) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var order models.Order
	err = tx.GetContext(ctx, &order, `SELECT * FROM orders WHERE id = $1 FOR UPDATE`, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrOrderNotFound
	}
	if err != nil {
		return false, err
	}
	if order.Status != models.OrderStatusPending {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE orders
		SET status = 'cancelled', escrow_status = 'cancelled', payment_status = $2, updated_at = NOW()
		WHERE id = $1
	`, orderID, paymentStatus)
	if err != nil {
		return false, fmt.Errorf("order repository: cancel order %w", err)
	}

	var escrowID uuid.UUID
	err = tx.GetContext(ctx, &escrowID, `
		UPDATE escrows SET status = 'cancelled', updated_at = NOW()
		WHERE order_id = $1 AND status = 'pending_payment'
		RETURNING id
	`, orderID)
	if err != nil {
		return false, fmt.Errorf("order repository: cancel escrow %w", err)
	}
	if err := appendEscrowEvent(ctx, tx, escrowID, "escrow_cancelled", map[string]interface{}{
		"payment_status": paymentStatus,
	}); err != nil {
		return false, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE listings SET status = 'active', updated_at = NOW()
		WHERE id = $1 AND status = 'reserved'
	`, order.ListingID)
	if err != nil {
		return false, fmt.Errorf("order repository: release listing %w", err)
	}

	return true, tx.Commit()
}

// Refund moves a non-terminal order and its escrow to refunded. strikeSeller
// additionally records a strike and a disputed-sale outcome on the seller's
// verification record (used when the seller missed the transfer deadline).
func (r *OrderRepository) Refund(ctx context.Context, orderID uuid.UUID, reason string, strikeSeller bool) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var order models.Order
	err = tx.GetContext(ctx, &order, `SELECT * FROM orders WHERE id = $1 FOR UPDATE`, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrOrderNotFound
	}
	if err != nil {
		return false, err
	}
	if order.Terminal() {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE orders
		SET status = 'refunded', escrow_status = 'refunded', payment_status = 'refunded', updated_at = NOW()
		WHERE id = $1
	`, orderID)
	if err != nil {
		return false, fmt.Errorf("order repository: refund order %w", err)
	}

	// A refund can land while the order is still pending; put the listing
	// back on the market if checkout had it reserved.
	_, err = tx.ExecContext(ctx, `
		UPDATE listings SET status = 'active', updated_at = NOW()
		WHERE id = $1 AND status = 'reserved'
	`, order.ListingID)
	if err != nil {
		return false, fmt.Errorf("order repository: release listing %w", err)
	}

	var escrowID uuid.UUID
	err = tx.GetContext(ctx, &escrowID, `
		UPDATE escrows SET status = 'refunded', funds_released_at = NOW(), updated_at = NOW()
		WHERE order_id = $1 AND status NOT IN ('released', 'refunded', 'cancelled')
		RETURNING id
	`, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		// Escrow already settled; the order row was the only thing left to align.
		return true, tx.Commit()
	}
	if err != nil {
		return false, fmt.Errorf("order repository: refund escrow %w", err)
	}
	if err := appendEscrowEvent(ctx, tx, escrowID, "funds_refunded", map[string]interface{}{
		"reason": reason,
	}); err != nil {
		return false, err
	}

	if strikeSeller {
		_, err = tx.ExecContext(ctx, `
			UPDATE seller_verifications
			SET strikes = strikes + 1,
			    total_sales = total_sales + 1,
			    disputed_sales = disputed_sales + 1,
			    trust_score = GREATEST(0, trust_score - 10),
			    updated_at = NOW()
			WHERE seller_id = $1
		`, order.SellerID)
		if err != nil {
			return false, fmt.Errorf("order repository: strike seller %w", err)
		}
	}

	return true, tx.Commit()
}

// ReleaseEscrow applies the atomic release sequence: escrow → released with
// funds_released_at, order → completed with payout done, transfer closed
// out, seller verification stats incremented. Calling it on an already
// released escrow is a no-op so retried triggers are tolerated.
func (r *OrderRepository) ReleaseEscrow(ctx context.Context, orderID uuid.UUID, buyerProofURLs []string, trigger string) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var escrow models.Escrow
	err = tx.GetContext(ctx, &escrow, `SELECT * FROM escrows WHERE order_id = $1 FOR UPDATE`, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrEscrowNotFound
	}
	if err != nil {
		return false, err
	}
	switch escrow.Status {
	case models.EscrowStatusReleased:
		return false, nil
	case models.EscrowStatusRefunded, models.EscrowStatusCancelled:
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE escrows SET status = 'released', funds_released_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`, escrow.ID)
	if err != nil {
		return false, fmt.Errorf("order repository: release escrow %w", err)
	}
	if err := appendEscrowEvent(ctx, tx, escrow.ID, "funds_released", map[string]interface{}{
		"trigger": trigger, "seller_amount": escrow.SellerAmount,
	}); err != nil {
		return false, err
	}

	var sellerID uuid.UUID
	err = tx.GetContext(ctx, &sellerID, `
		UPDATE orders
		SET status = 'completed', escrow_status = 'released',
		    seller_payout_status = 'completed', updated_at = NOW()
		WHERE id = $1
		RETURNING seller_id
	`, orderID)
	if err != nil {
		return false, fmt.Errorf("order repository: complete order %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE transfers
		SET status = 'confirmed', buyer_proof_urls = $2,
		    confirmed_at = COALESCE(confirmed_at, NOW()), updated_at = NOW()
		WHERE order_id = $1 AND status <> 'confirmed'
	`, orderID, pq.Array(buyerProofURLs))
	if err != nil {
		return false, fmt.Errorf("order repository: close transfer %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE seller_verifications
		SET total_sales = total_sales + 1,
		    successful_sales = successful_sales + 1,
		    trust_score = LEAST(100, trust_score + 2),
		    updated_at = NOW()
		WHERE seller_id = $1
	`, sellerID)
	if err != nil {
		return false, fmt.Errorf("order repository: credit seller stats %w", err)
	}

	return true, tx.Commit()
}

// SettleSplit closes a disputed escrow with a partial refund to the buyer
// and a partial release to the seller. The amounts are recorded on the
// escrow row; the seller's record gains a disputed (but not failed) sale.
func (r *OrderRepository) SettleSplit(ctx context.Context, orderID uuid.UUID, refundAmount, releaseAmount decimal.Decimal) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var escrow models.Escrow
	err = tx.GetContext(ctx, &escrow, `SELECT * FROM escrows WHERE order_id = $1 FOR UPDATE`, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrEscrowNotFound
	}
	if err != nil {
		return false, err
	}
	if escrow.Status != models.EscrowStatusDisputed {
		return false, nil
	}
	if !refundAmount.Add(releaseAmount).Equal(escrow.Amount) {
		return false, ErrSplitAmountMismatch
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE escrows
		SET status = 'released', refund_amount = $2, release_amount = $3,
		    funds_released_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`, escrow.ID, refundAmount, releaseAmount)
	if err != nil {
		return false, fmt.Errorf("order repository: settle split %w", err)
	}
	if err := appendEscrowEvent(ctx, tx, escrow.ID, "funds_split", map[string]interface{}{
		"refund_amount": refundAmount, "release_amount": releaseAmount,
	}); err != nil {
		return false, err
	}

	var sellerID uuid.UUID
	err = tx.GetContext(ctx, &sellerID, `
		UPDATE orders
		SET status = 'completed', escrow_status = 'released', payment_status = 'refunded',
		    seller_payout_status = 'completed', updated_at = NOW()
		WHERE id = $1
		RETURNING seller_id
	`, orderID)
	if err != nil {
		return false, fmt.Errorf("order repository: complete split order %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE seller_verifications
		SET total_sales = total_sales + 1, disputed_sales = disputed_sales + 1, updated_at = NOW()
		WHERE seller_id = $1
	`, sellerID)
	if err != nil {
		return false, fmt.Errorf("order repository: record split outcome %w", err)
	}

	return true, tx.Commit()
}

// ListStalePendingIDs returns pending orders whose checkout session lapsed
// before any provider webhook arrived.
func (r *OrderRepository) ListStalePendingIDs(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.SelectContext(ctx, &ids, `
		SELECT id FROM orders WHERE status = 'pending' AND checkout_expires_at <= $1
	`, now)
	return ids, err
}

// ListEscrowEvents returns the append-only audit log for an escrow.
func (r *OrderRepository) ListEscrowEvents(ctx context.Context, escrowID uuid.UUID) ([]models.EscrowEvent, error) {
	var events []models.EscrowEvent
	err := r.db.SelectContext(ctx, &events, `
		SELECT * FROM escrow_events WHERE escrow_id = $1 ORDER BY created_at ASC
	`, escrowID)
	return events, err
}

// appendEscrowEvent writes one audit entry inside the caller's transaction.
func appendEscrowEvent(ctx context.Context, tx *sqlx.Tx, escrowID uuid.UUID, name string, payload map[string]interface{}) error {
	var raw []byte
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("order repository: encode escrow event %w", err)
		}
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO escrow_events (escrow_id, name, payload) VALUES ($1, $2, $3)
	`, escrowID, name, raw)
	if err != nil {
		return fmt.Errorf("order repository: append escrow event %w", err)
	}
	return nil
}
