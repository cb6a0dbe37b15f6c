package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/faresafe/resale-backend/internal/models"
	"github.com/faresafe/resale-backend/internal/payment"
	"github.com/faresafe/resale-backend/internal/pkg/apperror"
	"github.com/faresafe/resale-backend/internal/pricing"
)

type mockOrderRepo struct {
	mock.Mock
}

func (m *mockOrderRepo) CreatePurchase(ctx context.Context, order *models.Order, escrow *models.Escrow, transfer *models.Transfer) error {
	args := m.Called(ctx, order, escrow, transfer)
	return args.Error(0)
}

func (m *mockOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *mockOrderRepo) GetEscrowByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Escrow, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Escrow), args.Error(1)
}

func (m *mockOrderRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.Order), args.Error(1)
}

func (m *mockOrderRepo) ListEscrowEvents(ctx context.Context, escrowID uuid.UUID) ([]models.EscrowEvent, error) {
	args := m.Called(ctx, escrowID)
	return args.Get(0).([]models.EscrowEvent), args.Error(1)
}

func (m *mockOrderRepo) ConfirmPayment(ctx context.Context, orderID uuid.UUID, paymentRef string, transferDeadline time.Time) (bool, error) {
	args := m.Called(ctx, orderID, paymentRef, transferDeadline)
	return args.Bool(0), args.Error(1)
}

func (m *mockOrderRepo) FailPayment(ctx context.Context, orderID uuid.UUID, paymentStatus string) (bool, error) {
	args := m.Called(ctx, orderID, paymentStatus)
	return args.Bool(0), args.Error(1)
}

func (m *mockOrderRepo) Refund(ctx context.Context, orderID uuid.UUID, reason string, strikeSeller bool) (bool, error) {
	args := m.Called(ctx, orderID, reason, strikeSeller)
	return args.Bool(0), args.Error(1)
}

func (m *mockOrderRepo) ReleaseEscrow(ctx context.Context, orderID uuid.UUID, buyerProofURLs []string, trigger string) (bool, error) {
	args := m.Called(ctx, orderID, buyerProofURLs, trigger)
	return args.Bool(0), args.Error(1)
}

type mockListingReader struct {
	mock.Mock
}

func (m *mockListingReader) GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

type mockCheckout struct {
	mock.Mock
}

func (m *mockCheckout) CreateCheckout(ctx context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.CheckoutSession), args.Error(1)
}

type mockDeduper struct {
	mock.Mock
}

func (m *mockDeduper) MarkWebhookSeen(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func newTestOrderService(orders *mockOrderRepo, listings *mockListingReader, checkout *mockCheckout, dedupe *mockDeduper) *OrderService {
	return NewOrderService(
		orders, listings, checkout, dedupe,
		pricing.DefaultSchedule(),
		30*time.Minute, 24*time.Hour, 48*time.Hour,
		testLogger(),
	)
}

func activeListing(sellerID uuid.UUID) *models.Listing {
	return &models.Listing{
		ID:             uuid.New(),
		SellerID:       sellerID,
		EventName:      "Arena Tour",
		EventDate:      time.Now().Add(72 * time.Hour),
		Quantity:       4,
		TransferMethod: models.TransferMethodMobile,
		OriginalPrice:  decimal.NewFromInt(50),
		AskingPrice:    decimal.NewFromInt(50),
		Status:         models.ListingStatusActive,
	}
}

func TestOrderService_InitiatePurchase_FreezesBreakdown(t *testing.T) {
	orders := new(mockOrderRepo)
	listings := new(mockListingReader)
	checkout := new(mockCheckout)
	dedupe := new(mockDeduper)
	svc := newTestOrderService(orders, listings, checkout, dedupe)
	ctx := context.Background()

	sellerID := uuid.New()
	buyerID := uuid.New()
	listing := activeListing(sellerID)

	listings.On("GetByID", ctx, listing.ID).Return(listing, nil)
	checkout.On("CreateCheckout", ctx, mock.AnythingOfType("payment.CheckoutRequest")).
		Return(&payment.CheckoutSession{CheckoutURL: "https://pay.example.com/s/1", PaymentRef: "pay_1"}, nil)
	orders.On("CreatePurchase", ctx, mock.AnythingOfType("*models.Order"), mock.AnythingOfType("*models.Escrow"), mock.AnythingOfType("*models.Transfer")).
		Return(nil)

	result, err := svc.InitiatePurchase(ctx, buyerID, listing.ID, 2, "https://app.example.com/success", "https://app.example.com/cancel")
	assert.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/s/1", result.CheckoutURL)

	// Two tickets at 50: subtotal 100, platform fee 10, protection 2.50.
	assert.Equal(t, "100", result.Breakdown.Subtotal.String())
	assert.Equal(t, "10", result.Breakdown.PlatformFee.String())
	assert.Equal(t, "2.5", result.Breakdown.BuyerProtectionFee.String())
	assert.Equal(t, "112.5", result.Breakdown.Total.String())
	assert.Equal(t, "90", result.Breakdown.SellerReceives.String())

	assert.Equal(t, models.OrderStatusPending, result.Order.Status)
	assert.Equal(t, models.EscrowStatusPendingPayment, result.Order.EscrowStatus)
	assert.NotEqual(t, uuid.Nil, result.Order.ID)
	orders.AssertExpectations(t)
	checkout.AssertExpectations(t)
}

func TestOrderService_InitiatePurchase_OwnListing(t *testing.T) {
	orders := new(mockOrderRepo)
	listings := new(mockListingReader)
	checkout := new(mockCheckout)
	dedupe := new(mockDeduper)
	svc := newTestOrderService(orders, listings, checkout, dedupe)
	ctx := context.Background()

	sellerID := uuid.New()
	listing := activeListing(sellerID)
	listings.On("GetByID", ctx, listing.ID).Return(listing, nil)

	_, err := svc.InitiatePurchase(ctx, sellerID, listing.ID, 1, "", "")
	assert.Error(t, err)
	assert.True(t, apperror.IsForbidden(err))
	checkout.AssertNotCalled(t, "CreateCheckout")
}

func TestOrderService_InitiatePurchase_NotActive(t *testing.T) {
	orders := new(mockOrderRepo)
	listings := new(mockListingReader)
	checkout := new(mockCheckout)
	dedupe := new(mockDeduper)
	svc := newTestOrderService(orders, listings, checkout, dedupe)
	ctx := context.Background()

	listing := activeListing(uuid.New())
	listing.Status = models.ListingStatusReserved
	listings.On("GetByID", ctx, listing.ID).Return(listing, nil)

	_, err := svc.InitiatePurchase(ctx, uuid.New(), listing.ID, 1, "", "")
	assert.True(t, apperror.IsConflict(err))
}

func TestOrderService_InitiatePurchase_QuantityTooHigh(t *testing.T) {
	orders := new(mockOrderRepo)
	listings := new(mockListingReader)
	checkout := new(mockCheckout)
	dedupe := new(mockDeduper)
	svc := newTestOrderService(orders, listings, checkout, dedupe)
	ctx := context.Background()

	listing := activeListing(uuid.New())
	listings.On("GetByID", ctx, listing.ID).Return(listing, nil)

	_, err := svc.InitiatePurchase(ctx, uuid.New(), listing.ID, 5, "", "")
	assert.True(t, apperror.IsValidation(err))
}

func webhookEvent(eventType string, orderID uuid.UUID) *payment.WebhookEvent {
	event := &payment.WebhookEvent{
		EventID:    "evt_" + uuid.New().String(),
		Type:       eventType,
		PaymentRef: "pay_1",
	}
	event.Metadata.OrderID = orderID
	return event
}

func TestOrderService_HandleWebhookEvent_CheckoutCompleted(t *testing.T) {
	orders := new(mockOrderRepo)
	listings := new(mockListingReader)
	checkout := new(mockCheckout)
	dedupe := new(mockDeduper)
	svc := newTestOrderService(orders, listings, checkout, dedupe)
	ctx := context.Background()

	orderID := uuid.New()
	event := webhookEvent(payment.EventCheckoutCompleted, orderID)

	dedupe.On("MarkWebhookSeen", ctx, event.EventID).Return(false, nil)
	orders.On("ConfirmPayment", ctx, orderID, "pay_1", mock.AnythingOfType("time.Time")).Return(true, nil)

	assert.NoError(t, svc.HandleWebhookEvent(ctx, event))
	orders.AssertExpectations(t)
}

func TestOrderService_HandleWebhookEvent_ReplayIsNoop(t *testing.T) {
	orders := new(mockOrderRepo)
	listings := new(mockListingReader)
	checkout := new(mockCheckout)
	dedupe := new(mockDeduper)
	svc := newTestOrderService(orders, listings, checkout, dedupe)
	ctx := context.Background()

	event := webhookEvent(payment.EventCheckoutCompleted, uuid.New())
	dedupe.On("MarkWebhookSeen", ctx, event.EventID).Return(true, nil)

	assert.NoError(t, svc.HandleWebhookEvent(ctx, event))
	orders.AssertNotCalled(t, "ConfirmPayment")
}

func TestOrderService_HandleWebhookEvent_ReplayPastDedupeIsNoop(t *testing.T) {
	orders := new(mockOrderRepo)
	listings := new(mockListingReader)
	checkout := new(mockCheckout)
	dedupe := new(mockDeduper)
	svc := newTestOrderService(orders, listings, checkout, dedupe)
	ctx := context.Background()

	orderID := uuid.New()
	event := webhookEvent(payment.EventCheckoutCompleted, orderID)

	// Cache misses the replay; the conditional transition still refuses it.
	dedupe.On("MarkWebhookSeen", ctx, event.EventID).Return(false, nil)
	orders.On("ConfirmPayment", ctx, orderID, "pay_1", mock.AnythingOfType("time.Time")).Return(false, nil)

	assert.NoError(t, svc.HandleWebhookEvent(ctx, event))
	orders.AssertExpectations(t)
}

func TestOrderService_HandleWebhookEvent_CheckoutExpired(t *testing.T) {
	orders := new(mockOrderRepo)
	listings := new(mockListingReader)
	checkout := new(mockCheckout)
	dedupe := new(mockDeduper)
	svc := newTestOrderService(orders, listings, checkout, dedupe)
	ctx := context.Background()

	orderID := uuid.New()
	event := webhookEvent(payment.EventCheckoutExpired, orderID)

	dedupe.On("MarkWebhookSeen", ctx, event.EventID).Return(false, nil)
	orders.On("FailPayment", ctx, orderID, models.PaymentStatusExpired).Return(true, nil)

	assert.NoError(t, svc.HandleWebhookEvent(ctx, event))
	orders.AssertExpectations(t)
}

func TestOrderService_HandleWebhookEvent_RefundIssued(t *testing.T) {
	orders := new(mockOrderRepo)
	listings := new(mockListingReader)
	checkout := new(mockCheckout)
	dedupe := new(mockDeduper)
	svc := newTestOrderService(orders, listings, checkout, dedupe)
	ctx := context.Background()

	orderID := uuid.New()
	event := webhookEvent(payment.EventRefundIssued, orderID)

	// A provider-side refund can arrive at any order stage, including while
	// the order is still pending; the repository refund releases a reserved
	// listing as part of the same transition.
	dedupe.On("MarkWebhookSeen", ctx, event.EventID).Return(false, nil)
	orders.On("Refund", ctx, orderID, "provider refund", false).Return(true, nil)

	assert.NoError(t, svc.HandleWebhookEvent(ctx, event))
	orders.AssertExpectations(t)
}

func TestOrderService_HandleWebhookEvent_UnknownTypeAccepted(t *testing.T) {
	orders := new(mockOrderRepo)
	listings := new(mockListingReader)
	checkout := new(mockCheckout)
	dedupe := new(mockDeduper)
	svc := newTestOrderService(orders, listings, checkout, dedupe)
	ctx := context.Background()

	event := webhookEvent("checkout.unknown", uuid.New())
	dedupe.On("MarkWebhookSeen", ctx, event.EventID).Return(false, nil)

	assert.NoError(t, svc.HandleWebhookEvent(ctx, event))
	orders.AssertNotCalled(t, "ConfirmPayment")
	orders.AssertNotCalled(t, "FailPayment")
}

func TestOrderService_Get_OnlyParties(t *testing.T) {
	orders := new(mockOrderRepo)
	listings := new(mockListingReader)
	checkout := new(mockCheckout)
	dedupe := new(mockDeduper)
	svc := newTestOrderService(orders, listings, checkout, dedupe)
	ctx := context.Background()

	buyerID := uuid.New()
	order := &models.Order{ID: uuid.New(), BuyerID: buyerID, SellerID: uuid.New()}
	orders.On("GetByID", ctx, order.ID).Return(order, nil)

	got, err := svc.Get(ctx, buyerID, order.ID)
	assert.NoError(t, err)
	assert.Equal(t, order, got)

	_, err = svc.Get(ctx, uuid.New(), order.ID)
	assert.True(t, apperror.IsForbidden(err))
}
