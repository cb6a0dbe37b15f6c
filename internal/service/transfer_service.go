package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/faresafe/resale-backend/internal/models"
	"github.com/faresafe/resale-backend/internal/monitoring"
	"github.com/faresafe/resale-backend/internal/pkg/apperror"
	"github.com/faresafe/resale-backend/internal/repository"
	"github.com/faresafe/resale-backend/internal/validation"
)

// TransferRepository is the persistence surface of the handover protocol.
type TransferRepository interface {
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Transfer, error)
	SubmitProof(ctx context.Context, orderID uuid.UUID, proofURLs []string, referenceCode *string, confirmationDeadline time.Time) (bool, error)
}

// DisputeOpener lets the transfer flow open a dispute when the buyer
// reports a problem instead of confirming.
type DisputeOpener interface {
	Open(ctx context.Context, openerID, orderID uuid.UUID, reason, statement string, evidence []string) (*models.Dispute, error)
}

type TransferService struct {
	transfers            TransferRepository
	orders               OrderRepository
	disputes             DisputeOpener
	confirmationDeadline time.Duration
	log                  *logrus.Logger
}

func NewTransferService(transfers TransferRepository, orders OrderRepository, disputes DisputeOpener, confirmationDeadline time.Duration, log *logrus.Logger) *TransferService {
	return &TransferService{
		transfers:            transfers,
		orders:               orders,
		disputes:             disputes,
		confirmationDeadline: confirmationDeadline,
		log:                  log,
	}
}

// Get returns the transfer record to one of the order's parties.
func (s *TransferService) Get(ctx context.Context, userID, orderID uuid.UUID) (*models.Transfer, error) {
	if _, err := s.loadOrderAs(ctx, userID, orderID); err != nil {
		return nil, err
	}
	transfer, err := s.transfers.GetByOrderID(ctx, orderID)
	if errors.Is(err, repository.ErrTransferNotFound) {
		return nil, apperror.ErrTransferNotFound
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "get transfer")
	}
	return transfer, nil
}

// SubmitProof records the seller's handover evidence. Only the seller may
// call it, only while the transfer is pending, and the confirmation clock
// starts now.
func (s *TransferService) SubmitProof(ctx context.Context, userID, orderID uuid.UUID, proofURLs []string, referenceCode *string) (*models.Transfer, error) {
	order, err := s.loadOrderAs(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if !order.RoleOf(userID).IsSeller {
		return nil, apperror.New(apperror.ErrCodeForbidden, "only the seller can submit transfer proof")
	}
	if order.Status != models.OrderStatusConfirmed {
		return nil, apperror.Conflict("order is not awaiting transfer", order.Status)
	}
	if err := validation.ValidateProofURLs(proofURLs); err != nil {
		return nil, apperror.Validation(err.Error(), nil)
	}
	if referenceCode != nil {
		if err := validation.ValidateLength("reference code", *referenceCode, 0, validation.MaxReferenceCodeLength); err != nil {
			return nil, apperror.Validation(err.Error(), nil)
		}
	}

	deadline := time.Now().UTC().Add(s.confirmationDeadline)
	applied, err := s.transfers.SubmitProof(ctx, orderID, proofURLs, referenceCode, deadline)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "submit transfer proof")
	}
	if !applied {
		return nil, apperror.Conflict("transfer proof was already submitted", models.TransferStatusProofSubmitted)
	}

	monitoring.TrackEscrowTransition(models.EscrowStatusBuyerConfirmationPending)
	s.log.WithFields(logrus.Fields{
		"order_id":    orderID,
		"proof_count": len(proofURLs),
	}).Info("transfer proof submitted")

	return s.transfers.GetByOrderID(ctx, orderID)
}

// ConfirmReceipt is the buyer accepting the tickets. It releases the escrow
// to the seller; confirming twice is a conflict, not a double release.
func (s *TransferService) ConfirmReceipt(ctx context.Context, userID, orderID uuid.UUID, proofURLs []string) (*models.Order, error) {
	order, err := s.loadOrderAs(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if !order.RoleOf(userID).IsBuyer {
		return nil, apperror.New(apperror.ErrCodeForbidden, "only the buyer can confirm receipt")
	}
	if order.Status != models.OrderStatusTransferred {
		return nil, apperror.Conflict("order is not awaiting buyer confirmation", order.Status)
	}
	if len(proofURLs) > 0 {
		if err := validation.ValidateProofURLs(proofURLs); err != nil {
			return nil, apperror.Validation(err.Error(), nil)
		}
	}

	applied, err := s.orders.ReleaseEscrow(ctx, orderID, proofURLs, "buyer_confirmation")
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "release escrow")
	}
	if !applied {
		return nil, apperror.Conflict("escrow was already settled", order.EscrowStatus)
	}

	monitoring.TrackEscrowTransition(models.EscrowStatusReleased)
	s.log.WithField("order_id", orderID).Info("buyer confirmed receipt, escrow released")

	return s.orders.GetByID(ctx, orderID)
}

// ReportIssue is either party refusing to progress the handover: instead of
// confirming, a dispute is opened and the escrow frozen. Party and order
// state checks live in the dispute service.
func (s *TransferService) ReportIssue(ctx context.Context, userID, orderID uuid.UUID, reason, statement string, evidence []string) (*models.Dispute, error) {
	if _, err := s.loadOrderAs(ctx, userID, orderID); err != nil {
		return nil, err
	}
	return s.disputes.Open(ctx, userID, orderID, reason, statement, evidence)
}

func (s *TransferService) loadOrderAs(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
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
