package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/faresafe/resale-backend/internal/models"
)

// mockOrderRepo gains the stale-checkout sweep used only by the scheduler.
func (m *mockOrderRepo) ListStalePendingIDs(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	args := m.Called(ctx, now)
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

type mockDeadlineStore struct {
	mock.Mock
}

func (m *mockDeadlineStore) ListOverdueConfirmations(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	args := m.Called(ctx, now)
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *mockDeadlineStore) ListOverdueTransfers(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	args := m.Called(ctx, now)
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

type mockListingExpirer struct {
	mock.Mock
}

func (m *mockListingExpirer) ExpireLapsed(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

// mockDisputeRepo gains the escalation sweep used only by the scheduler.
func (m *mockDisputeRepo) ListOverdueResponses(ctx context.Context, now time.Time) ([]models.Dispute, error) {
	args := m.Called(ctx, now)
	return args.Get(0).([]models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) MarkUnderReview(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func newTestSchedulerService(orders *mockOrderRepo, deadlines *mockDeadlineStore, disputes *mockDisputeRepo, listings *mockListingExpirer) *SchedulerService {
	return NewSchedulerService(orders, deadlines, disputes, listings, testLogger())
}

func TestSchedulerService_ReleaseOverdueConfirmations(t *testing.T) {
	orders := new(mockOrderRepo)
	deadlines := new(mockDeadlineStore)
	disputes := new(mockDisputeRepo)
	listings := new(mockListingExpirer)
	svc := newTestSchedulerService(orders, deadlines, disputes, listings)
	ctx := context.Background()

	// Proof submitted at T0, confirmation deadline T0+48h: one second past
	// the deadline the escrow releases without the buyer.
	proofAt := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	now := proofAt.Add(48*time.Hour + time.Second)

	overdueID := uuid.New()
	deadlines.On("ListOverdueConfirmations", ctx, now).Return([]uuid.UUID{overdueID}, nil)
	orders.On("ReleaseEscrow", ctx, overdueID, []string(nil), "confirmation_deadline").Return(true, nil)

	count, err := svc.ReleaseOverdueConfirmations(ctx, now)
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
	orders.AssertExpectations(t)
}

func TestSchedulerService_ReleaseOverdueConfirmations_AlreadySettled(t *testing.T) {
	orders := new(mockOrderRepo)
	deadlines := new(mockDeadlineStore)
	disputes := new(mockDisputeRepo)
	listings := new(mockListingExpirer)
	svc := newTestSchedulerService(orders, deadlines, disputes, listings)
	ctx := context.Background()

	now := time.Now().UTC()
	id := uuid.New()
	deadlines.On("ListOverdueConfirmations", ctx, now).Return([]uuid.UUID{id}, nil)
	// A racing buyer confirmation already released this escrow.
	orders.On("ReleaseEscrow", ctx, id, []string(nil), "confirmation_deadline").Return(false, nil)

	count, err := svc.ReleaseOverdueConfirmations(ctx, now)
	assert.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestSchedulerService_ExpireOverdueTransfers_RefundsAndStrikes(t *testing.T) {
	orders := new(mockOrderRepo)
	deadlines := new(mockDeadlineStore)
	disputes := new(mockDisputeRepo)
	listings := new(mockListingExpirer)
	svc := newTestSchedulerService(orders, deadlines, disputes, listings)
	ctx := context.Background()

	now := time.Now().UTC()
	id := uuid.New()
	deadlines.On("ListOverdueTransfers", ctx, now).Return([]uuid.UUID{id}, nil)
	orders.On("Refund", ctx, id, "seller missed transfer deadline", true).Return(true, nil)

	count, err := svc.ExpireOverdueTransfers(ctx, now)
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
	orders.AssertExpectations(t)
}

func TestSchedulerService_ExpireStaleCheckouts(t *testing.T) {
	orders := new(mockOrderRepo)
	deadlines := new(mockDeadlineStore)
	disputes := new(mockDisputeRepo)
	listings := new(mockListingExpirer)
	svc := newTestSchedulerService(orders, deadlines, disputes, listings)
	ctx := context.Background()

	now := time.Now().UTC()
	first := uuid.New()
	second := uuid.New()
	orders.On("ListStalePendingIDs", ctx, now).Return([]uuid.UUID{first, second}, nil)
	orders.On("FailPayment", ctx, first, models.PaymentStatusExpired).Return(true, nil)
	// The second order got its webhook between listing and processing.
	orders.On("FailPayment", ctx, second, models.PaymentStatusExpired).Return(false, nil)

	count, err := svc.ExpireStaleCheckouts(ctx, now)
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSchedulerService_Run_ReportsAllSweeps(t *testing.T) {
	orders := new(mockOrderRepo)
	deadlines := new(mockDeadlineStore)
	disputes := new(mockDisputeRepo)
	listings := new(mockListingExpirer)
	svc := newTestSchedulerService(orders, deadlines, disputes, listings)
	ctx := context.Background()

	now := time.Now().UTC()
	staleID := uuid.New()
	overdueTransferID := uuid.New()
	overdueConfirmationID := uuid.New()
	silentDisputeID := uuid.New()

	orders.On("ListStalePendingIDs", ctx, now).Return([]uuid.UUID{staleID}, nil)
	orders.On("FailPayment", ctx, staleID, models.PaymentStatusExpired).Return(true, nil)
	deadlines.On("ListOverdueTransfers", ctx, now).Return([]uuid.UUID{overdueTransferID}, nil)
	orders.On("Refund", ctx, overdueTransferID, "seller missed transfer deadline", true).Return(true, nil)
	deadlines.On("ListOverdueConfirmations", ctx, now).Return([]uuid.UUID{overdueConfirmationID}, nil)
	orders.On("ReleaseEscrow", ctx, overdueConfirmationID, []string(nil), "confirmation_deadline").Return(true, nil)
	disputes.On("ListOverdueResponses", ctx, now).Return([]models.Dispute{{ID: silentDisputeID}}, nil)
	disputes.On("MarkUnderReview", ctx, silentDisputeID).Return(true, nil)
	listings.On("ExpireLapsed", ctx, now).Return(int64(3), nil)

	report, err := svc.Run(ctx, now)
	assert.NoError(t, err)
	assert.Equal(t, 1, report.ExpiredCheckouts)
	assert.Equal(t, 1, report.ExpiredTransfers)
	assert.Equal(t, 1, report.AutoReleasedEscrows)
	assert.Equal(t, 1, report.EscalatedDisputes)
	assert.Equal(t, 3, report.ExpiredListings)
}

func TestSchedulerService_EscalateSilentDisputes(t *testing.T) {
	orders := new(mockOrderRepo)
	deadlines := new(mockDeadlineStore)
	disputes := new(mockDisputeRepo)
	listings := new(mockListingExpirer)
	svc := newTestSchedulerService(orders, deadlines, disputes, listings)
	ctx := context.Background()

	now := time.Now().UTC()
	silent := models.Dispute{ID: uuid.New(), Status: models.DisputeStatusOpen}
	answered := models.Dispute{ID: uuid.New(), Status: models.DisputeStatusOpen}

	disputes.On("ListOverdueResponses", ctx, now).Return([]models.Dispute{silent, answered}, nil)
	disputes.On("MarkUnderReview", ctx, silent.ID).Return(true, nil)
	// The counterparty responded between listing and processing.
	disputes.On("MarkUnderReview", ctx, answered.ID).Return(false, nil)

	count, err := svc.EscalateSilentDisputes(ctx, now)
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
	disputes.AssertExpectations(t)
}

func TestSchedulerService_RunTwice_Converges(t *testing.T) {
	orders := new(mockOrderRepo)
	deadlines := new(mockDeadlineStore)
	disputes := new(mockDisputeRepo)
	listings := new(mockListingExpirer)
	svc := newTestSchedulerService(orders, deadlines, disputes, listings)
	ctx := context.Background()

	now := time.Now().UTC()
	id := uuid.New()

	deadlines.On("ListOverdueConfirmations", ctx, now).Return([]uuid.UUID{id}, nil).Twice()
	orders.On("ReleaseEscrow", ctx, id, []string(nil), "confirmation_deadline").Return(true, nil).Once()
	orders.On("ReleaseEscrow", ctx, id, []string(nil), "confirmation_deadline").Return(false, nil).Once()

	count, err := svc.ReleaseOverdueConfirmations(ctx, now)
	assert.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = svc.ReleaseOverdueConfirmations(ctx, now)
	assert.NoError(t, err)
	assert.Equal(t, 0, count)
}
