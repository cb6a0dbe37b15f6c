package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/faresafe/resale-backend/internal/models"
	"github.com/faresafe/resale-backend/internal/monitoring"
	"github.com/faresafe/resale-backend/internal/payment"
	"github.com/faresafe/resale-backend/internal/pkg/apperror"
	"github.com/faresafe/resale-backend/internal/pricing"
	"github.com/faresafe/resale-backend/internal/repository"
)

// OrderRepository is the persistence surface of the order state machine.
type OrderRepository interface {
	CreatePurchase(ctx context.Context, order *models.Order, escrow *models.Escrow, transfer *models.Transfer) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetEscrowByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Escrow, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error)
	ListEscrowEvents(ctx context.Context, escrowID uuid.UUID) ([]models.EscrowEvent, error)
	ConfirmPayment(ctx context.Context, orderID uuid.UUID, paymentRef string, transferDeadline time.Time) (bool, error)
	FailPayment(ctx context.Context, orderID uuid.UUID, paymentStatus string) (bool, error)
	Refund(ctx context.Context, orderID uuid.UUID, reason string, strikeSeller bool) (bool, error)
	ReleaseEscrow(ctx context.Context, orderID uuid.UUID, buyerProofURLs []string, trigger string) (bool, error)
}

// ListingReader is the slice of the listing store the order flow needs.
type ListingReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
}

// WebhookDeduper is the fast-path replay filter in front of the
// authoritative conditional transitions.
type WebhookDeduper interface {
	MarkWebhookSeen(ctx context.Context, eventID string) (bool, error)
}

// PurchaseResult is what the buyer gets back from checkout initiation.
type PurchaseResult struct {
	Order       *models.Order     `json:"order"`
	CheckoutURL string            `json:"checkout_url"`
	Breakdown   pricing.Breakdown `json:"breakdown"`
}

type OrderService struct {
	orders   OrderRepository
	listings ListingReader
	checkout payment.CheckoutCreator
	dedupe   WebhookDeduper
	schedule pricing.Schedule

	checkoutTTL          time.Duration
	transferDeadline     time.Duration
	confirmationDeadline time.Duration

	log *logrus.Logger
}

func NewOrderService(
	orders OrderRepository,
	listings ListingReader,
	checkout payment.CheckoutCreator,
	dedupe WebhookDeduper,
	schedule pricing.Schedule,
	checkoutTTL, transferDeadline, confirmationDeadline time.Duration,
	log *logrus.Logger,
) *OrderService {
	return &OrderService{
		orders:               orders,
		listings:             listings,
		checkout:             checkout,
		dedupe:               dedupe,
		schedule:             schedule,
		checkoutTTL:          checkoutTTL,
		transferDeadline:     transferDeadline,
		confirmationDeadline: confirmationDeadline,
		log:                  log,
	}
}

// InitiatePurchase freezes the price breakdown, opens the provider checkout
// session and persists order, escrow, transfer and the listing reservation
// in one transaction. The order id is generated up front so the checkout
// session carries it as correlation metadata before anything is written; a
// failed transaction leaves only a stray provider session that expires on
// its own.
func (s *OrderService) InitiatePurchase(ctx context.Context, buyerID, listingID uuid.UUID, quantity int, successURL, cancelURL string) (*PurchaseResult, error) {
	listing, err := s.listings.GetByID(ctx, listingID)
	if errors.Is(err, repository.ErrListingNotFound) {
		return nil, apperror.ErrListingNotFound
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "get listing")
	}

	if listing.Status != models.ListingStatusActive {
		return nil, apperror.Conflict("listing is not available for purchase", listing.Status)
	}
	if listing.SellerID == buyerID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "cannot purchase your own listing")
	}
	if quantity < 1 || quantity > listing.Quantity {
		return nil, apperror.Validation("requested quantity is not available", map[string]interface{}{
			"available_quantity": listing.Quantity,
		})
	}
	now := time.Now().UTC()
	if !listing.EventDate.After(now) {
		return nil, apperror.Conflict("event has already started", listing.Status)
	}

	breakdown := pricing.Calculate(s.schedule, listing.AskingPrice, quantity)

	orderID := uuid.New()
	escrowID := uuid.New()

	session, err := s.checkout.CreateCheckout(ctx, payment.CheckoutRequest{
		OrderID:    orderID,
		ListingID:  listingID,
		EscrowID:   escrowID,
		BuyerID:    buyerID,
		Amount:     breakdown.Total,
		Currency:   "USD",
		Expiry:     s.checkoutTTL,
		SuccessURL: successURL,
		CancelURL:  cancelURL,
	})
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:                 orderID,
		ListingID:          listingID,
		BuyerID:            buyerID,
		SellerID:           listing.SellerID,
		Quantity:           quantity,
		Subtotal:           breakdown.Subtotal,
		PlatformFee:        breakdown.PlatformFee,
		BuyerProtectionFee: breakdown.BuyerProtectionFee,
		Total:              breakdown.Total,
		SellerReceives:     breakdown.SellerReceives,
		Status:             models.OrderStatusPending,
		EscrowStatus:       models.EscrowStatusPendingPayment,
		PaymentStatus:      models.PaymentStatusPending,
		SellerPayoutStatus: models.PayoutStatusPending,
		PaymentRef:         &session.PaymentRef,
		CheckoutExpiresAt:  now.Add(s.checkoutTTL),
	}
	escrow := &models.Escrow{
		ID:           escrowID,
		OrderID:      orderID,
		Amount:       breakdown.Total,
		PlatformFee:  breakdown.PlatformFee,
		SellerAmount: breakdown.SellerReceives,
		Status:       models.EscrowStatusPendingPayment,
	}
	transfer := &models.Transfer{
		OrderID: orderID,
		Status:  models.TransferStatusPending,
	}

	if err := s.orders.CreatePurchase(ctx, order, escrow, transfer); err != nil {
		if errors.Is(err, repository.ErrListingNotReservable) {
			return nil, apperror.Conflict("listing was just taken by another buyer", models.ListingStatusReserved)
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "create purchase")
	}

	monitoring.TrackOrderCreated()
	s.log.WithFields(logrus.Fields{
		"order_id":   orderID,
		"listing_id": listingID,
		"buyer_id":   buyerID,
		"total":      breakdown.Total,
	}).Info("purchase initiated")

	return &PurchaseResult{
		Order:       order,
		CheckoutURL: session.CheckoutURL,
		Breakdown:   breakdown,
	}, nil
}

// Get returns an order to one of its parties.
func (s *OrderService) Get(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, apperror.ErrOrderNotFound
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "get order")
	}
	if !order.RoleOf(userID).Participant() {
		return nil, apperror.ErrForbidden
	}
	return order, nil
}

// List returns the user's orders, both sides.
func (s *OrderService) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	orders, err := s.orders.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "list orders")
	}
	return orders, nil
}

// EscrowTimeline returns the escrow and its audit log for one of the
// order's parties.
func (s *OrderService) EscrowTimeline(ctx context.Context, userID, orderID uuid.UUID) (*models.Escrow, []models.EscrowEvent, error) {
	if _, err := s.Get(ctx, userID, orderID); err != nil {
		return nil, nil, err
	}
	escrow, err := s.orders.GetEscrowByOrderID(ctx, orderID)
	if errors.Is(err, repository.ErrEscrowNotFound) {
		return nil, nil, apperror.ErrEscrowNotFound
	}
	if err != nil {
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "get escrow")
	}
	events, err := s.orders.ListEscrowEvents(ctx, escrow.ID)
	if err != nil {
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "list escrow events")
	}
	return escrow, events, nil
}

// HandleWebhookEvent routes one verified provider event into the matching
// state transition. Replayed deliveries come back applied=false and are
// acknowledged without side effects.
func (s *OrderService) HandleWebhookEvent(ctx context.Context, event *payment.WebhookEvent) error {
	if seen, err := s.dedupe.MarkWebhookSeen(ctx, event.EventID); err != nil {
		// Cache down: fall through, the conditional DB transition still
		// guards against double-processing.
		s.log.WithError(err).Warn("webhook dedupe cache unavailable")
	} else if seen {
		monitoring.TrackWebhookEvent(event.Type, "noop")
		return nil
	}

	var (
		applied bool
		err     error
	)

	switch event.Type {
	case payment.EventCheckoutCompleted:
		deadline := time.Now().UTC().Add(s.transferDeadline)
		applied, err = s.orders.ConfirmPayment(ctx, event.Metadata.OrderID, event.PaymentRef, deadline)
		if applied {
			monitoring.TrackEscrowTransition(models.EscrowStatusHolding)
		}
	case payment.EventCheckoutExpired:
		applied, err = s.orders.FailPayment(ctx, event.Metadata.OrderID, models.PaymentStatusExpired)
		if applied {
			monitoring.TrackEscrowTransition(models.EscrowStatusCancelled)
		}
	case payment.EventPaymentFailed:
		applied, err = s.orders.FailPayment(ctx, event.Metadata.OrderID, models.PaymentStatusFailed)
		if applied {
			monitoring.TrackEscrowTransition(models.EscrowStatusCancelled)
		}
	case payment.EventRefundIssued:
		applied, err = s.orders.Refund(ctx, event.Metadata.OrderID, "provider refund", false)
		if applied {
			monitoring.TrackEscrowTransition(models.EscrowStatusRefunded)
		}
	default:
		monitoring.TrackWebhookEvent(event.Type, "rejected")
		s.log.WithField("event_type", event.Type).Warn("unknown webhook event type")
		return nil
	}

	if errors.Is(err, repository.ErrOrderNotFound) {
		monitoring.TrackWebhookEvent(event.Type, "rejected")
		return apperror.ErrOrderNotFound
	}
	if err != nil {
		monitoring.TrackWebhookEvent(event.Type, "failed")
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "apply webhook transition")
	}

	outcome := "applied"
	if !applied {
		outcome = "noop"
	}
	monitoring.TrackWebhookEvent(event.Type, outcome)

	s.log.WithFields(logrus.Fields{
		"event_id":   event.EventID,
		"event_type": event.Type,
		"order_id":   event.Metadata.OrderID,
		"outcome":    outcome,
	}).Info("webhook event processed")

	return nil
}
