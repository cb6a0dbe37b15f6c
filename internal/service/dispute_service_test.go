package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/faresafe/resale-backend/internal/models"
	"github.com/faresafe/resale-backend/internal/pkg/apperror"
	"github.com/faresafe/resale-backend/internal/repository"
)

type mockDisputeRepo struct {
	mock.Mock
}

func (m *mockDisputeRepo) CreateWithFreeze(ctx context.Context, d *models.Dispute) (bool, error) {
	args := m.Called(ctx, d)
	if args.Bool(0) {
		d.ID = uuid.New()
	}
	return args.Bool(0), args.Error(1)
}

func (m *mockDisputeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) GetOpenByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) Respond(ctx context.Context, id uuid.UUID, asBuyer bool, statement string, evidence []string) (bool, error) {
	args := m.Called(ctx, id, asBuyer, statement, evidence)
	return args.Bool(0), args.Error(1)
}

func (m *mockDisputeRepo) AddEvidence(ctx context.Context, id uuid.UUID, asBuyer bool, evidence []string) (bool, error) {
	args := m.Called(ctx, id, asBuyer, evidence)
	return args.Bool(0), args.Error(1)
}

func (m *mockDisputeRepo) Resolve(ctx context.Context, id uuid.UUID, status, settlement string, refundAmount, releaseAmount *decimal.Decimal, resolvedBy *uuid.UUID) (bool, error) {
	args := m.Called(ctx, id, status, settlement, refundAmount, releaseAmount, resolvedBy)
	return args.Bool(0), args.Error(1)
}

func (m *mockDisputeRepo) Close(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockDisputeRepo) AddFraudLogEntry(ctx context.Context, e *models.FraudLogEntry) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

// mockOrderRepo gains the split settlement used only by dispute resolution.
func (m *mockOrderRepo) SettleSplit(ctx context.Context, orderID uuid.UUID, refundAmount, releaseAmount decimal.Decimal) (bool, error) {
	args := m.Called(ctx, orderID, refundAmount, releaseAmount)
	return args.Bool(0), args.Error(1)
}

func newTestDisputeService(disputes *mockDisputeRepo, orders *mockOrderRepo) *DisputeService {
	return NewDisputeService(disputes, orders, 48*time.Hour, testLogger())
}

func transferredOrder(buyerID, sellerID uuid.UUID) *models.Order {
	return &models.Order{
		ID:           uuid.New(),
		ListingID:    uuid.New(),
		BuyerID:      buyerID,
		SellerID:     sellerID,
		Total:        decimal.RequireFromString("112.50"),
		Status:       models.OrderStatusTransferred,
		EscrowStatus: models.EscrowStatusBuyerConfirmationPending,
	}
}

func TestDisputeService_Open_FreezesEscrow(t *testing.T) {
	disputes := new(mockDisputeRepo)
	orders := new(mockOrderRepo)
	svc := newTestDisputeService(disputes, orders)
	ctx := context.Background()

	buyerID := uuid.New()
	order := transferredOrder(buyerID, uuid.New())

	orders.On("GetByID", ctx, order.ID).Return(order, nil)
	disputes.On("GetOpenByOrderID", ctx, order.ID).Return(nil, repository.ErrDisputeNotFound)
	disputes.On("CreateWithFreeze", ctx, mock.AnythingOfType("*models.Dispute")).Return(true, nil)
	disputes.On("AddFraudLogEntry", ctx, mock.AnythingOfType("*models.FraudLogEntry")).Return(nil)

	dispute, err := svc.Open(ctx, buyerID, order.ID, models.DisputeReasonTicketNotReceived, "seller never sent the tickets", nil)
	assert.NoError(t, err)
	assert.Equal(t, models.DisputeStatusOpen, dispute.Status)
	assert.Equal(t, buyerID, dispute.OpenerID)
	assert.NotNil(t, dispute.BuyerStatement)
	assert.Nil(t, dispute.SellerStatement)
	assert.WithinDuration(t, time.Now().UTC().Add(48*time.Hour), dispute.ResponseDeadline, 5*time.Second)

	// ticket_not_received also opens a fraud investigation entry.
	disputes.AssertCalled(t, "AddFraudLogEntry", ctx, mock.AnythingOfType("*models.FraudLogEntry"))
	disputes.AssertExpectations(t)
}

func TestDisputeService_Open_FailedCreateLeavesOrderDisputable(t *testing.T) {
	disputes := new(mockDisputeRepo)
	orders := new(mockOrderRepo)
	svc := newTestDisputeService(disputes, orders)
	ctx := context.Background()

	buyerID := uuid.New()
	order := transferredOrder(buyerID, uuid.New())

	orders.On("GetByID", ctx, order.ID).Return(order, nil)
	disputes.On("GetOpenByOrderID", ctx, order.ID).Return(nil, repository.ErrDisputeNotFound)
	// The insert fails and rolls the freeze back with it; the retry sees an
	// untouched order and succeeds.
	disputes.On("CreateWithFreeze", ctx, mock.AnythingOfType("*models.Dispute")).Return(false, assert.AnError).Once()
	disputes.On("CreateWithFreeze", ctx, mock.AnythingOfType("*models.Dispute")).Return(true, nil).Once()
	disputes.On("AddFraudLogEntry", ctx, mock.AnythingOfType("*models.FraudLogEntry")).Return(nil)

	_, err := svc.Open(ctx, buyerID, order.ID, models.DisputeReasonTicketNotReceived, "seller never sent the tickets", nil)
	assert.Error(t, err)
	assert.False(t, apperror.IsConflict(err))

	dispute, err := svc.Open(ctx, buyerID, order.ID, models.DisputeReasonTicketNotReceived, "seller never sent the tickets", nil)
	assert.NoError(t, err)
	assert.Equal(t, models.DisputeStatusOpen, dispute.Status)
	disputes.AssertExpectations(t)
}

func TestDisputeService_Open_OrderNotDisputable(t *testing.T) {
	disputes := new(mockDisputeRepo)
	orders := new(mockOrderRepo)
	svc := newTestDisputeService(disputes, orders)
	ctx := context.Background()

	buyerID := uuid.New()
	order := transferredOrder(buyerID, uuid.New())
	order.Status = models.OrderStatusPending

	orders.On("GetByID", ctx, order.ID).Return(order, nil)
	disputes.On("GetOpenByOrderID", ctx, order.ID).Return(nil, repository.ErrDisputeNotFound)
	disputes.On("CreateWithFreeze", ctx, mock.AnythingOfType("*models.Dispute")).Return(false, nil)

	_, err := svc.Open(ctx, buyerID, order.ID, models.DisputeReasonTicketNotReceived, "seller never sent the tickets", nil)
	assert.True(t, apperror.IsConflict(err))
}

func TestDisputeService_Open_SecondDisputeConflicts(t *testing.T) {
	disputes := new(mockDisputeRepo)
	orders := new(mockOrderRepo)
	svc := newTestDisputeService(disputes, orders)
	ctx := context.Background()

	buyerID := uuid.New()
	order := transferredOrder(buyerID, uuid.New())
	existing := &models.Dispute{ID: uuid.New(), OrderID: order.ID, Status: models.DisputeStatusUnderReview}

	orders.On("GetByID", ctx, order.ID).Return(order, nil)
	disputes.On("GetOpenByOrderID", ctx, order.ID).Return(existing, nil)

	_, err := svc.Open(ctx, buyerID, order.ID, models.DisputeReasonOther, "there is a second problem now", nil)
	assert.True(t, apperror.IsConflict(err))

	var appErr *apperror.AppError
	assert.ErrorAs(t, err, &appErr)
	assert.Equal(t, existing.ID, appErr.Details["existing_dispute_id"])
	disputes.AssertNotCalled(t, "CreateWithFreeze")
}

func TestDisputeService_Open_InvalidReason(t *testing.T) {
	disputes := new(mockDisputeRepo)
	orders := new(mockOrderRepo)
	svc := newTestDisputeService(disputes, orders)
	ctx := context.Background()

	buyerID := uuid.New()
	order := transferredOrder(buyerID, uuid.New())
	orders.On("GetByID", ctx, order.ID).Return(order, nil)

	_, err := svc.Open(ctx, buyerID, order.ID, "vibes", "something felt off about this order", nil)
	assert.True(t, apperror.IsValidation(err))
}

func TestDisputeService_Open_NonParticipant(t *testing.T) {
	disputes := new(mockDisputeRepo)
	orders := new(mockOrderRepo)
	svc := newTestDisputeService(disputes, orders)
	ctx := context.Background()

	order := transferredOrder(uuid.New(), uuid.New())
	orders.On("GetByID", ctx, order.ID).Return(order, nil)

	_, err := svc.Open(ctx, uuid.New(), order.ID, models.DisputeReasonOther, "I am not even part of this order", nil)
	assert.True(t, apperror.IsForbidden(err))
}

func TestDisputeService_Respond_CounterpartyOnly(t *testing.T) {
	disputes := new(mockDisputeRepo)
	orders := new(mockOrderRepo)
	svc := newTestDisputeService(disputes, orders)
	ctx := context.Background()

	buyerID := uuid.New()
	sellerID := uuid.New()
	dispute := &models.Dispute{
		ID:       uuid.New(),
		OpenerID: buyerID,
		BuyerID:  buyerID,
		SellerID: sellerID,
		Status:   models.DisputeStatusOpen,
	}
	disputes.On("GetByID", ctx, dispute.ID).Return(dispute, nil).Twice()

	_, err := svc.Respond(ctx, buyerID, dispute.ID, "let me add to my own dispute", nil)
	assert.True(t, apperror.IsForbidden(err))

	responded := *dispute
	responded.Status = models.DisputeStatusUnderReview
	disputes.On("Respond", ctx, dispute.ID, false, "the transfer shows as delivered on my side", []string(nil)).Return(true, nil)
	disputes.On("GetByID", ctx, dispute.ID).Return(&responded, nil)

	got, err := svc.Respond(ctx, sellerID, dispute.ID, "the transfer shows as delivered on my side", nil)
	assert.NoError(t, err)
	assert.Equal(t, models.DisputeStatusUnderReview, got.Status)
}

func TestDisputeService_Resolve_FullRefund(t *testing.T) {
	disputes := new(mockDisputeRepo)
	orders := new(mockOrderRepo)
	svc := newTestDisputeService(disputes, orders)
	ctx := context.Background()

	adminID := uuid.New()
	dispute := &models.Dispute{
		ID:      uuid.New(),
		OrderID: uuid.New(),
		Reason:  models.DisputeReasonTicketNotReceived,
		Status:  models.DisputeStatusUnderReview,
	}
	resolved := *dispute
	resolved.Status = models.DisputeStatusResolvedBuyerFavor

	disputes.On("GetByID", ctx, dispute.ID).Return(dispute, nil).Once()
	disputes.On("Resolve", ctx, dispute.ID, models.DisputeStatusResolvedBuyerFavor, models.SettlementFullRefund,
		(*decimal.Decimal)(nil), (*decimal.Decimal)(nil), &adminID).Return(true, nil)
	// A fraud-flagged reason resolved for the buyer strikes the seller.
	orders.On("Refund", ctx, dispute.OrderID, "dispute resolved in buyer's favor", true).Return(true, nil)
	disputes.On("GetByID", ctx, dispute.ID).Return(&resolved, nil).Once()

	got, err := svc.Resolve(ctx, adminID, dispute.ID, ResolveInput{Settlement: models.SettlementFullRefund})
	assert.NoError(t, err)
	assert.Equal(t, models.DisputeStatusResolvedBuyerFavor, got.Status)
	orders.AssertExpectations(t)
}

func TestDisputeService_Resolve_AlreadyResolved(t *testing.T) {
	disputes := new(mockDisputeRepo)
	orders := new(mockOrderRepo)
	svc := newTestDisputeService(disputes, orders)
	ctx := context.Background()

	dispute := &models.Dispute{ID: uuid.New(), OrderID: uuid.New(), Status: models.DisputeStatusResolvedSellerFavor}
	disputes.On("GetByID", ctx, dispute.ID).Return(dispute, nil)
	disputes.On("Resolve", ctx, dispute.ID, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(false, nil)

	_, err := svc.Resolve(ctx, uuid.New(), dispute.ID, ResolveInput{Settlement: models.SettlementReleaseToSeller})
	assert.True(t, apperror.IsConflict(err))
	orders.AssertNotCalled(t, "ReleaseEscrow")
}

func TestDisputeService_Resolve_SplitRequiresMatchingAmounts(t *testing.T) {
	disputes := new(mockDisputeRepo)
	orders := new(mockOrderRepo)
	svc := newTestDisputeService(disputes, orders)
	ctx := context.Background()

	order := transferredOrder(uuid.New(), uuid.New())
	dispute := &models.Dispute{ID: uuid.New(), OrderID: order.ID, Status: models.DisputeStatusUnderReview}

	disputes.On("GetByID", ctx, dispute.ID).Return(dispute, nil)
	orders.On("GetByID", ctx, order.ID).Return(order, nil)

	refund := decimal.RequireFromString("60")
	release := decimal.RequireFromString("40")
	_, err := svc.Resolve(ctx, uuid.New(), dispute.ID, ResolveInput{
		Settlement:    models.SettlementSplit,
		RefundAmount:  &refund,
		ReleaseAmount: &release,
	})
	assert.True(t, apperror.IsValidation(err))
	disputes.AssertNotCalled(t, "Resolve")

	_, err = svc.Resolve(ctx, uuid.New(), dispute.ID, ResolveInput{Settlement: models.SettlementSplit})
	assert.True(t, apperror.IsValidation(err))
}

func TestDisputeService_Resolve_SplitSettles(t *testing.T) {
	disputes := new(mockDisputeRepo)
	orders := new(mockOrderRepo)
	svc := newTestDisputeService(disputes, orders)
	ctx := context.Background()

	adminID := uuid.New()
	order := transferredOrder(uuid.New(), uuid.New())
	dispute := &models.Dispute{ID: uuid.New(), OrderID: order.ID, Status: models.DisputeStatusUnderReview}
	resolved := *dispute
	resolved.Status = models.DisputeStatusResolvedPartial

	refund := decimal.RequireFromString("62.50")
	release := decimal.RequireFromString("50")

	disputes.On("GetByID", ctx, dispute.ID).Return(dispute, nil).Once()
	orders.On("GetByID", ctx, order.ID).Return(order, nil)
	disputes.On("Resolve", ctx, dispute.ID, models.DisputeStatusResolvedPartial, models.SettlementSplit,
		&refund, &release, &adminID).Return(true, nil)
	orders.On("SettleSplit", ctx, order.ID, refund, release).Return(true, nil)
	disputes.On("GetByID", ctx, dispute.ID).Return(&resolved, nil).Once()

	got, err := svc.Resolve(ctx, adminID, dispute.ID, ResolveInput{
		Settlement:    models.SettlementSplit,
		RefundAmount:  &refund,
		ReleaseAmount: &release,
	})
	assert.NoError(t, err)
	assert.Equal(t, models.DisputeStatusResolvedPartial, got.Status)
	orders.AssertExpectations(t)
}
