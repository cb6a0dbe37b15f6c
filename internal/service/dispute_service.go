package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/faresafe/resale-backend/internal/models"
	"github.com/faresafe/resale-backend/internal/monitoring"
	"github.com/faresafe/resale-backend/internal/pkg/apperror"
	"github.com/faresafe/resale-backend/internal/repository"
	"github.com/faresafe/resale-backend/internal/validation"
)

// DisputeRepository is the persistence surface of dispute resolution.
type DisputeRepository interface {
	CreateWithFreeze(ctx context.Context, d *models.Dispute) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	GetOpenByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error)
	Respond(ctx context.Context, id uuid.UUID, asBuyer bool, statement string, evidence []string) (bool, error)
	AddEvidence(ctx context.Context, id uuid.UUID, asBuyer bool, evidence []string) (bool, error)
	Resolve(ctx context.Context, id uuid.UUID, status, settlement string, refundAmount, releaseAmount *decimal.Decimal, resolvedBy *uuid.UUID) (bool, error)
	Close(ctx context.Context, id uuid.UUID) (bool, error)
	AddFraudLogEntry(ctx context.Context, e *models.FraudLogEntry) error
}

// DisputeOrderStore is the slice of the order store dispute settlement
// drives when executing verdicts.
type DisputeOrderStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	Refund(ctx context.Context, orderID uuid.UUID, reason string, strikeSeller bool) (bool, error)
	ReleaseEscrow(ctx context.Context, orderID uuid.UUID, buyerProofURLs []string, trigger string) (bool, error)
	SettleSplit(ctx context.Context, orderID uuid.UUID, refundAmount, releaseAmount decimal.Decimal) (bool, error)
}

type DisputeService struct {
	disputes         DisputeRepository
	orders           DisputeOrderStore
	responseDeadline time.Duration
	log              *logrus.Logger
}

func NewDisputeService(disputes DisputeRepository, orders DisputeOrderStore, responseDeadline time.Duration, log *logrus.Logger) *DisputeService {
	return &DisputeService{
		disputes:         disputes,
		orders:           orders,
		responseDeadline: responseDeadline,
		log:              log,
	}
}

// Open creates a dispute on an in-flight order and freezes its escrow. An
// order carries at most one non-closed dispute; a duplicate attempt returns
// a conflict carrying the existing dispute id.
func (s *DisputeService) Open(ctx context.Context, openerID, orderID uuid.UUID, reason, statement string, evidence []string) (*models.Dispute, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, apperror.ErrOrderNotFound
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "get order")
	}

	role := order.RoleOf(openerID)
	if !role.Participant() {
		return nil, apperror.ErrForbidden
	}
	if _, ok := models.ValidDisputeReasons[reason]; !ok {
		return nil, apperror.Validation("unknown dispute reason", map[string]interface{}{
			"reason": reason,
		})
	}
	if err := validation.ValidateStatement(statement); err != nil {
		return nil, apperror.Validation(err.Error(), nil)
	}
	if len(evidence) > 0 {
		if err := validation.ValidateProofURLs(evidence); err != nil {
			return nil, apperror.Validation(err.Error(), nil)
		}
	}

	if existing, err := s.disputes.GetOpenByOrderID(ctx, orderID); err == nil {
		return nil, apperror.Conflict("order already has an open dispute", existing.Status).
			WithDetails(map[string]interface{}{
				"current_status":      existing.Status,
				"existing_dispute_id": existing.ID,
			})
	} else if !errors.Is(err, repository.ErrDisputeNotFound) {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "check existing dispute")
	}

	now := time.Now().UTC()
	dispute := &models.Dispute{
		OrderID:          orderID,
		OpenerID:         openerID,
		BuyerID:          order.BuyerID,
		SellerID:         order.SellerID,
		Reason:           reason,
		Status:           models.DisputeStatusOpen,
		ResponseDeadline: now.Add(s.responseDeadline),
	}
	if role.IsBuyer {
		dispute.BuyerStatement = &statement
		dispute.BuyerEvidence = evidence
		dispute.BuyerSubmittedAt = &now
	} else {
		dispute.SellerStatement = &statement
		dispute.SellerEvidence = evidence
		dispute.SellerSubmittedAt = &now
	}

	// Insert and freeze are one transaction: a failed insert must not
	// leave the order frozen with no dispute attached.
	frozen, err := s.disputes.CreateWithFreeze(ctx, dispute)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "create dispute")
	}
	if !frozen {
		return nil, apperror.Conflict("order cannot be disputed in its current state", order.Status)
	}

	if _, flagged := models.FraudFlaggedReasons[reason]; flagged {
		entry := &models.FraudLogEntry{
			SellerID:  order.SellerID,
			ListingID: &order.ListingID,
			OrderID:   &orderID,
			DisputeID: &dispute.ID,
			Reason:    reason,
		}
		if err := s.disputes.AddFraudLogEntry(ctx, entry); err != nil {
			s.log.WithError(err).Error("fraud log entry failed")
		}
	}

	monitoring.TrackDisputeOpened(reason)
	monitoring.TrackEscrowTransition(models.EscrowStatusDisputed)
	s.log.WithFields(logrus.Fields{
		"dispute_id": dispute.ID,
		"order_id":   orderID,
		"reason":     reason,
	}).Info("dispute opened")

	return dispute, nil
}

// Get returns a dispute to one of its parties.
func (s *DisputeService) Get(ctx context.Context, userID, disputeID uuid.UUID) (*models.Dispute, error) {
	dispute, err := s.disputes.GetByID(ctx, disputeID)
	if errors.Is(err, repository.ErrDisputeNotFound) {
		return nil, apperror.ErrDisputeNotFound
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "get dispute")
	}
	if dispute.BuyerID != userID && dispute.SellerID != userID {
		return nil, apperror.ErrForbidden
	}
	return dispute, nil
}

// List returns the user's disputes, both sides.
func (s *DisputeService) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	disputes, err := s.disputes.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "list disputes")
	}
	return disputes, nil
}

// Respond records the counterparty's statement while the dispute is open.
func (s *DisputeService) Respond(ctx context.Context, userID, disputeID uuid.UUID, statement string, evidence []string) (*models.Dispute, error) {
	dispute, err := s.Get(ctx, userID, disputeID)
	if err != nil {
		return nil, err
	}
	if dispute.OpenerID == userID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "the opener cannot respond to their own dispute")
	}
	if err := validation.ValidateStatement(statement); err != nil {
		return nil, apperror.Validation(err.Error(), nil)
	}
	if len(evidence) > 0 {
		if err := validation.ValidateProofURLs(evidence); err != nil {
			return nil, apperror.Validation(err.Error(), nil)
		}
	}

	applied, err := s.disputes.Respond(ctx, disputeID, dispute.BuyerID == userID, statement, evidence)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "respond to dispute")
	}
	if !applied {
		return nil, apperror.Conflict("dispute is not open for a response", dispute.Status)
	}

	return s.disputes.GetByID(ctx, disputeID)
}

// AddEvidence appends links to the caller's side while the dispute is being
// argued.
func (s *DisputeService) AddEvidence(ctx context.Context, userID, disputeID uuid.UUID, evidence []string) (*models.Dispute, error) {
	dispute, err := s.Get(ctx, userID, disputeID)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateProofURLs(evidence); err != nil {
		return nil, apperror.Validation(err.Error(), nil)
	}

	applied, err := s.disputes.AddEvidence(ctx, disputeID, dispute.BuyerID == userID, evidence)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "add evidence")
	}
	if !applied {
		return nil, apperror.Conflict("dispute no longer accepts evidence", dispute.Status)
	}

	return s.disputes.GetByID(ctx, disputeID)
}

// ResolveInput is an administrator's verdict.
type ResolveInput struct {
	Settlement    string
	RefundAmount  *decimal.Decimal
	ReleaseAmount *decimal.Decimal
}

// Resolve records the verdict and executes the settlement against the
// escrow. The verdict write is a conditional transition, so the settlement
// runs at most once even under concurrent resolution attempts.
func (s *DisputeService) Resolve(ctx context.Context, adminID, disputeID uuid.UUID, in ResolveInput) (*models.Dispute, error) {
	dispute, err := s.disputes.GetByID(ctx, disputeID)
	if errors.Is(err, repository.ErrDisputeNotFound) {
		return nil, apperror.ErrDisputeNotFound
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "get dispute")
	}

	if _, ok := models.ValidSettlements[in.Settlement]; !ok {
		return nil, apperror.Validation("unknown settlement", map[string]interface{}{
			"settlement": in.Settlement,
		})
	}

	var status string
	switch in.Settlement {
	case models.SettlementFullRefund:
		status = models.DisputeStatusResolvedBuyerFavor
	case models.SettlementReleaseToSeller:
		status = models.DisputeStatusResolvedSellerFavor
	case models.SettlementSplit:
		status = models.DisputeStatusResolvedPartial
		if in.RefundAmount == nil || in.ReleaseAmount == nil {
			return nil, apperror.Validation("split settlement requires refund and release amounts", nil)
		}
		if !in.RefundAmount.IsPositive() || !in.ReleaseAmount.IsPositive() {
			return nil, apperror.Validation("split amounts must be positive", nil)
		}
		order, err := s.orders.GetByID(ctx, dispute.OrderID)
		if err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "get order")
		}
		if !in.RefundAmount.Add(*in.ReleaseAmount).Equal(order.Total) {
			return nil, apperror.Validation("split amounts must sum to the escrow amount", map[string]interface{}{
				"escrow_amount": order.Total.StringFixed(2),
			})
		}
	}

	applied, err := s.disputes.Resolve(ctx, disputeID, status, in.Settlement, in.RefundAmount, in.ReleaseAmount, &adminID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "resolve dispute")
	}
	if !applied {
		return nil, apperror.Conflict("dispute was already resolved", dispute.Status)
	}

	if err := s.executeSettlement(ctx, dispute, in); err != nil {
		// The verdict is recorded; settlement execution failures are
		// surfaced for manual retry rather than rolled back.
		s.log.WithError(err).WithField("dispute_id", disputeID).Error("settlement execution failed")
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"dispute_id": disputeID,
		"settlement": in.Settlement,
		"status":     status,
	}).Info("dispute resolved")

	return s.disputes.GetByID(ctx, disputeID)
}

func (s *DisputeService) executeSettlement(ctx context.Context, dispute *models.Dispute, in ResolveInput) error {
	var err error
	switch in.Settlement {
	case models.SettlementFullRefund:
		_, flagged := models.FraudFlaggedReasons[dispute.Reason]
		_, err = s.orders.Refund(ctx, dispute.OrderID, "dispute resolved in buyer's favor", flagged)
		if err == nil {
			monitoring.TrackEscrowTransition(models.EscrowStatusRefunded)
		}
	case models.SettlementReleaseToSeller:
		_, err = s.orders.ReleaseEscrow(ctx, dispute.OrderID, nil, "dispute_resolution")
		if err == nil {
			monitoring.TrackEscrowTransition(models.EscrowStatusReleased)
		}
	case models.SettlementSplit:
		_, err = s.orders.SettleSplit(ctx, dispute.OrderID, *in.RefundAmount, *in.ReleaseAmount)
		if err == nil {
			monitoring.TrackEscrowTransition(models.EscrowStatusReleased)
		}
	}
	if errors.Is(err, repository.ErrSplitAmountMismatch) {
		return apperror.Validation(err.Error(), nil)
	}
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "execute settlement")
	}
	return nil
}

// CloseResolved retires a resolved dispute, freeing the order's dispute slot.
func (s *DisputeService) CloseResolved(ctx context.Context, disputeID uuid.UUID) error {
	applied, err := s.disputes.Close(ctx, disputeID)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "close dispute")
	}
	if !applied {
		return apperror.New(apperror.ErrCodeConflict, "dispute is not in a resolved state")
	}
	return nil
}
