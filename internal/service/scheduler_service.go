package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/faresafe/resale-backend/internal/models"
	"github.com/faresafe/resale-backend/internal/monitoring"
)

// DeadlineStore exposes the deadline sweeps the scheduler drives.
type DeadlineStore interface {
	ListOverdueConfirmations(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	ListOverdueTransfers(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

// SchedulerOrderStore is the slice of the order store deadline consequences
// run through.
type SchedulerOrderStore interface {
	ListStalePendingIDs(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	FailPayment(ctx context.Context, orderID uuid.UUID, paymentStatus string) (bool, error)
	Refund(ctx context.Context, orderID uuid.UUID, reason string, strikeSeller bool) (bool, error)
	ReleaseEscrow(ctx context.Context, orderID uuid.UUID, buyerProofURLs []string, trigger string) (bool, error)
}

// ListingExpirer marks lapsed listings expired.
type ListingExpirer interface {
	ExpireLapsed(ctx context.Context, now time.Time) (int64, error)
}

// DisputeEscalator surfaces open disputes whose response window lapsed.
type DisputeEscalator interface {
	ListOverdueResponses(ctx context.Context, now time.Time) ([]models.Dispute, error)
	MarkUnderReview(ctx context.Context, id uuid.UUID) (bool, error)
}

// SweepReport summarizes one scheduler run.
type SweepReport struct {
	ExpiredCheckouts    int `json:"expired_checkouts"`
	ExpiredTransfers    int `json:"expired_transfers"`
	AutoReleasedEscrows int `json:"auto_released_escrows"`
	EscalatedDisputes   int `json:"escalated_disputes"`
	ExpiredListings     int `json:"expired_listings"`
}

// SchedulerService applies every deadline consequence of the marketplace.
// It is idempotent: each consequence is a conditional transition, so
// overlapping or repeated runs converge on the same state. now is explicit
// on every sweep so deadline behavior is testable.
type SchedulerService struct {
	orders    SchedulerOrderStore
	deadlines DeadlineStore
	disputes  DisputeEscalator
	listings  ListingExpirer
	log       *logrus.Logger
}

func NewSchedulerService(orders SchedulerOrderStore, deadlines DeadlineStore, disputes DisputeEscalator, listings ListingExpirer, log *logrus.Logger) *SchedulerService {
	return &SchedulerService{
		orders:    orders,
		deadlines: deadlines,
		disputes:  disputes,
		listings:  listings,
		log:       log,
	}
}

// Run executes all sweeps and reports what moved. Individual failures are
// logged and skipped so one bad row never stalls the rest of the sweep.
func (s *SchedulerService) Run(ctx context.Context, now time.Time) (*SweepReport, error) {
	report := &SweepReport{}

	n, err := s.ExpireStaleCheckouts(ctx, now)
	if err != nil {
		return nil, err
	}
	report.ExpiredCheckouts = n

	n, err = s.ExpireOverdueTransfers(ctx, now)
	if err != nil {
		return nil, err
	}
	report.ExpiredTransfers = n

	n, err = s.ReleaseOverdueConfirmations(ctx, now)
	if err != nil {
		return nil, err
	}
	report.AutoReleasedEscrows = n

	n, err = s.EscalateSilentDisputes(ctx, now)
	if err != nil {
		return nil, err
	}
	report.EscalatedDisputes = n

	expired, err := s.listings.ExpireLapsed(ctx, now)
	if err != nil {
		return nil, err
	}
	report.ExpiredListings = int(expired)
	if expired > 0 {
		monitoring.TrackSchedulerAction("listing_expired")
	}

	s.log.WithFields(logrus.Fields{
		"expired_checkouts":     report.ExpiredCheckouts,
		"expired_transfers":     report.ExpiredTransfers,
		"auto_released_escrows": report.AutoReleasedEscrows,
		"escalated_disputes":    report.EscalatedDisputes,
		"expired_listings":      report.ExpiredListings,
	}).Info("scheduler sweep finished")

	return report, nil
}

// ExpireStaleCheckouts cancels pending orders whose checkout window lapsed
// without a provider webhook, releasing their listings.
func (s *SchedulerService) ExpireStaleCheckouts(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.orders.ListStalePendingIDs(ctx, now)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, id := range ids {
		applied, err := s.orders.FailPayment(ctx, id, models.PaymentStatusExpired)
		if err != nil {
			s.log.WithError(err).WithField("order_id", id).Error("checkout expiry failed")
			continue
		}
		if applied {
			count++
			monitoring.TrackSchedulerAction("checkout_expired")
		}
	}
	return count, nil
}

// ExpireOverdueTransfers refunds orders where the seller never submitted
// proof before the transfer deadline. Seller silence is a strike.
func (s *SchedulerService) ExpireOverdueTransfers(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.deadlines.ListOverdueTransfers(ctx, now)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, id := range ids {
		applied, err := s.orders.Refund(ctx, id, "seller missed transfer deadline", true)
		if err != nil {
			s.log.WithError(err).WithField("order_id", id).Error("transfer expiry refund failed")
			continue
		}
		if applied {
			count++
			monitoring.TrackSchedulerAction("transfer_expired")
			monitoring.TrackEscrowTransition(models.EscrowStatusRefunded)
		}
	}
	return count, nil
}

// EscalateSilentDisputes moves open disputes past their response deadline
// into admin review. The counterparty had its window; silence does not
// stall resolution.
func (s *SchedulerService) EscalateSilentDisputes(ctx context.Context, now time.Time) (int, error) {
	disputes, err := s.disputes.ListOverdueResponses(ctx, now)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, d := range disputes {
		applied, err := s.disputes.MarkUnderReview(ctx, d.ID)
		if err != nil {
			s.log.WithError(err).WithField("dispute_id", d.ID).Error("dispute escalation failed")
			continue
		}
		if applied {
			count++
			monitoring.TrackSchedulerAction("dispute_escalated")
		}
	}
	return count, nil
}

// ReleaseOverdueConfirmations releases escrows where proof was submitted
// and the buyer let the confirmation deadline lapse without confirming or
// disputing. Buyer silence is acceptance.
func (s *SchedulerService) ReleaseOverdueConfirmations(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.deadlines.ListOverdueConfirmations(ctx, now)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, id := range ids {
		applied, err := s.orders.ReleaseEscrow(ctx, id, nil, "confirmation_deadline")
		if err != nil {
			s.log.WithError(err).WithField("order_id", id).Error("auto release failed")
			continue
		}
		if applied {
			count++
			monitoring.TrackSchedulerAction("escrow_auto_released")
			monitoring.TrackEscrowTransition(models.EscrowStatusReleased)
		}
	}
	return count, nil
}
