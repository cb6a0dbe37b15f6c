package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/faresafe/resale-backend/internal/models"
	"github.com/faresafe/resale-backend/internal/pkg/apperror"
	"github.com/faresafe/resale-backend/internal/repository"
)

// VerificationRepository is the persistence surface of seller trust records.
type VerificationRepository interface {
	GetOrCreate(ctx context.Context, sellerID uuid.UUID) (*models.SellerVerification, error)
	SetVerificationFlag(ctx context.Context, sellerID uuid.UUID, flag string, trustDelta int) (*models.SellerVerification, error)
	RecalculateLimits(ctx context.Context, sellerID uuid.UUID) (*models.SellerVerification, error)
}

type VerificationService struct {
	repo VerificationRepository
}

func NewVerificationService(repo VerificationRepository) *VerificationService {
	return &VerificationService{repo: repo}
}

// Get returns the seller's trust record, creating the default one on first
// touch.
func (s *VerificationService) Get(ctx context.Context, sellerID uuid.UUID) (*models.SellerVerification, error) {
	v, err := s.repo.GetOrCreate(ctx, sellerID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "get seller verification")
	}
	return v, nil
}

// Trust bumps per completed verification step.
const (
	trustDeltaPhone   = 10
	trustDeltaSocial  = 5
	trustDeltaID      = 20
	trustDeltaPayment = 10
)

// CompleteStep marks one verification step done and rederives the seller's
// listing limits from the new trust score. Repeating a step is a no-op for
// the score.
func (s *VerificationService) CompleteStep(ctx context.Context, sellerID uuid.UUID, step string) (*models.SellerVerification, error) {
	var delta int
	switch step {
	case "phone":
		delta = trustDeltaPhone
	case "social":
		delta = trustDeltaSocial
	case "id":
		delta = trustDeltaID
	case "payment":
		delta = trustDeltaPayment
	default:
		return nil, apperror.Validation("unknown verification step", map[string]interface{}{
			"step": step,
		})
	}

	if _, err := s.repo.GetOrCreate(ctx, sellerID); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "get seller verification")
	}
	if _, err := s.repo.SetVerificationFlag(ctx, sellerID, step, delta); err != nil {
		if err == repository.ErrUnknownVerificationFlag {
			return nil, apperror.Validation("unknown verification step", nil)
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "set verification flag")
	}

	v, err := s.repo.RecalculateLimits(ctx, sellerID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "recalculate limits")
	}
	return v, nil
}
