package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/faresafe/resale-backend/internal/models"
)

var ErrUnknownVerificationFlag = errors.New("unknown verification flag")

type VerificationRepository struct {
	db *sqlx.DB
}

func NewVerificationRepository(db *sqlx.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

// GetOrCreate returns the seller's verification record, creating the default
// new-seller row on first touch. The upsert makes concurrent first touches
// safe.
func (r *VerificationRepository) GetOrCreate(ctx context.Context, sellerID uuid.UUID) (*models.SellerVerification, error) {
	var v models.SellerVerification
	err := r.db.GetContext(ctx, &v, `
		INSERT INTO seller_verifications (seller_id)
		VALUES ($1)
		ON CONFLICT (seller_id) DO UPDATE SET seller_id = EXCLUDED.seller_id
		RETURNING *
	`, sellerID)
	return &v, err
}

// SetVerificationFlag flips one of the verification checkmarks and credits
// the trust bump that comes with it.
func (r *VerificationRepository) SetVerificationFlag(ctx context.Context, sellerID uuid.UUID, flag string, trustDelta int) (*models.SellerVerification, error) {
	var column string
	switch flag {
	case "phone":
		column = "phone_verified"
	case "social":
		column = "social_verified"
	case "id":
		column = "id_verified"
	case "payment":
		column = "payment_connected"
	default:
		return nil, ErrUnknownVerificationFlag
	}

	var v models.SellerVerification
	err := r.db.GetContext(ctx, &v, `
		UPDATE seller_verifications
		SET `+column+` = TRUE,
		    trust_score = LEAST(100, trust_score + CASE WHEN `+column+` THEN 0 ELSE $2 END),
		    updated_at = NOW()
		WHERE seller_id = $1
		RETURNING *
	`, sellerID, trustDelta)
	return &v, err
}

// RecalculateLimits derives the listing limits and trust badges from the
// current trust score and verification flags. Called after anything that
// moves the trust score.
func (r *VerificationRepository) RecalculateLimits(ctx context.Context, sellerID uuid.UUID) (*models.SellerVerification, error) {
	var v models.SellerVerification
	err := r.db.GetContext(ctx, &v, `
		UPDATE seller_verifications
		SET max_active_listings = CASE
		        WHEN trust_score >= 80 THEN 20
		        WHEN trust_score >= 50 THEN 10
		        WHEN trust_score >= 30 THEN 5
		        ELSE 2
		    END,
		    max_ticket_value = CASE
		        WHEN trust_score >= 80 THEN 2000
		        WHEN trust_score >= 50 THEN 1000
		        WHEN trust_score >= 30 THEN 500
		        ELSE 200
		    END,
		    badges = ARRAY(SELECT b FROM unnest(ARRAY[
		        CASE WHEN id_verified THEN 'id_verified' END,
		        CASE WHEN trust_score >= 50 THEN 'trusted_seller' END,
		        CASE WHEN trust_score >= 80 THEN 'top_rated' END
		    ]) AS b WHERE b IS NOT NULL),
		    updated_at = NOW()
		WHERE seller_id = $1
		RETURNING *
	`, sellerID)
	return &v, err
}
