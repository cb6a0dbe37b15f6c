package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/faresafe/resale-backend/internal/fraud"
	"github.com/faresafe/resale-backend/internal/models"
	"github.com/faresafe/resale-backend/internal/pkg/apperror"
	"github.com/faresafe/resale-backend/internal/repository"
	"github.com/faresafe/resale-backend/internal/validation"
)

// ListingRepository is the persistence surface the listing service needs.
type ListingRepository interface {
	Create(ctx context.Context, l *models.Listing) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	List(ctx context.Context, f repository.ListingFilter) ([]models.Listing, int, error)
	Update(ctx context.Context, l *models.Listing, priceChanged bool, oldPrice decimal.Decimal) error
	UpdateStatusCAS(ctx context.Context, id uuid.UUID, from []string, to string) (bool, error)
	CountActiveBySeller(ctx context.Context, sellerID uuid.UUID) (int, error)
	CountActiveSameEvent(ctx context.Context, sellerID uuid.UUID, eventName string) (int, error)
	AddViews(ctx context.Context, id uuid.UUID, delta int64) error
	ListPriceHistory(ctx context.Context, listingID uuid.UUID) ([]models.PriceHistoryEntry, error)
}

// SellerVerificationReader supplies the seller trust data the listing rules
// depend on.
type SellerVerificationReader interface {
	GetOrCreate(ctx context.Context, sellerID uuid.UUID) (*models.SellerVerification, error)
}

// FraudLogWriter records listings flagged for manual review.
type FraudLogWriter interface {
	AddFraudLogEntry(ctx context.Context, e *models.FraudLogEntry) error
}

// ViewCounter is the non-authoritative view-count side channel.
type ViewCounter interface {
	IncrementViews(ctx context.Context, listingID uuid.UUID) (int64, error)
	PendingViews(ctx context.Context, listingID uuid.UUID) (int64, error)
	DrainViews(ctx context.Context, listingID uuid.UUID) (int64, error)
}

// CreateListingInput carries the seller's submission.
type CreateListingInput struct {
	EventName      string
	EventVenue     string
	EventCity      string
	EventDate      time.Time
	TicketType     string
	Quantity       int
	TicketSource   string
	TransferMethod string
	OriginalPrice  decimal.Decimal
	AskingPrice    decimal.Decimal
	ProofURL       *string
}

// UpdateListingInput carries a seller's edit. Nil fields stay untouched.
type UpdateListingInput struct {
	EventName   *string
	EventVenue  *string
	EventCity   *string
	TicketType  *string
	Quantity    *int
	AskingPrice *decimal.Decimal
	ProofURL    *string
}

type ListingService struct {
	repo          ListingRepository
	verifications SellerVerificationReader
	views         ViewCounter
	fraudLog      FraudLogWriter
	maxMarkup     decimal.Decimal
	log           *logrus.Logger
}

func NewListingService(repo ListingRepository, verifications SellerVerificationReader, views ViewCounter, fraudLog FraudLogWriter, maxMarkupRatio string, log *logrus.Logger) (*ListingService, error) {
	ratio, err := decimal.NewFromString(maxMarkupRatio)
	if err != nil {
		return nil, err
	}
	return &ListingService{
		repo:          repo,
		verifications: verifications,
		views:         views,
		fraudLog:      fraudLog,
		maxMarkup:     ratio,
		log:           log,
	}, nil
}

// minListingLeadTime keeps last-minute listings off the market: the event
// must be at least this far in the future at creation, and the listing
// expires this long before the event starts.
const minListingLeadTime = 2 * time.Hour

// Create validates the submission, scores it for fraud and persists it.
// Listings scoring at or above the review threshold start in
// pending_verification instead of active and leave a fraud-log entry.
func (s *ListingService) Create(ctx context.Context, sellerID uuid.UUID, in CreateListingInput) (*models.Listing, error) {
	now := time.Now().UTC()

	if err := s.validateCreate(in, now); err != nil {
		return nil, err
	}

	maxAllowed := in.OriginalPrice.Mul(s.maxMarkup).Round(2)
	if in.AskingPrice.GreaterThan(maxAllowed) {
		return nil, apperror.Validation("asking price exceeds the allowed markup over original price", map[string]interface{}{
			"max_allowed_price": maxAllowed.StringFixed(2),
			"original_price":    in.OriginalPrice.StringFixed(2),
		})
	}

	verification, err := s.verifications.GetOrCreate(ctx, sellerID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "load seller verification")
	}

	activeCount, err := s.repo.CountActiveBySeller(ctx, sellerID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "count active listings")
	}
	if activeCount >= verification.MaxActiveListings {
		return nil, apperror.Validation("active listing limit reached for this seller", map[string]interface{}{
			"max_active_listings": verification.MaxActiveListings,
		})
	}
	if in.AskingPrice.GreaterThan(verification.MaxTicketValue) {
		return nil, apperror.Validation("asking price exceeds the seller's ticket value limit", map[string]interface{}{
			"max_ticket_value": verification.MaxTicketValue.StringFixed(2),
		})
	}

	sameEvent, err := s.repo.CountActiveSameEvent(ctx, sellerID, in.EventName)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "count same-event listings")
	}

	result := fraud.Score(
		fraud.SellerHistory{
			TotalSales:              verification.TotalSales,
			DisputeRate:             verification.DisputeRate(),
			Strikes:                 verification.Strikes,
			TrustScore:              verification.TrustScore,
			ActiveListingsSameEvent: sameEvent,
		},
		fraud.ListingInput{
			OriginalPrice:  in.OriginalPrice,
			AskingPrice:    in.AskingPrice,
			HasProof:       in.ProofURL != nil && *in.ProofURL != "",
			TransferMethod: in.TransferMethod,
			EventDate:      in.EventDate,
		},
		now,
	)

	// Active straight away only with proof and an acceptable score;
	// anything else waits in pending_verification.
	status := models.ListingStatusPendingVerification
	hasProof := in.ProofURL != nil && *in.ProofURL != ""
	if hasProof && result.Score < fraud.ForceReviewThreshold {
		status = models.ListingStatusActive
	}

	listing := &models.Listing{
		SellerID:       sellerID,
		EventName:      in.EventName,
		EventVenue:     in.EventVenue,
		EventCity:      in.EventCity,
		EventDate:      in.EventDate,
		TicketType:     in.TicketType,
		Quantity:       in.Quantity,
		TicketSource:   in.TicketSource,
		TransferMethod: in.TransferMethod,
		OriginalPrice:  in.OriginalPrice,
		AskingPrice:    in.AskingPrice,
		ProofURL:       in.ProofURL,
		FraudScore:     result.Score,
		IsSuspicious:   result.IsSuspicious,
		Status:         status,
		ExpiresAt:      in.EventDate.Add(-minListingLeadTime),
	}

	if err := s.repo.Create(ctx, listing); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "create listing")
	}

	if result.Score >= fraud.ForceReviewThreshold {
		entry := &models.FraudLogEntry{
			SellerID:  sellerID,
			ListingID: &listing.ID,
			Reason:    models.FraudReasonHighRiskListing,
		}
		if err := s.fraudLog.AddFraudLogEntry(ctx, entry); err != nil {
			s.log.WithError(err).Error("fraud log entry failed")
		}
	}

	s.log.WithFields(logrus.Fields{
		"listing_id":  listing.ID,
		"seller_id":   sellerID,
		"fraud_score": result.Score,
		"status":      status,
	}).Info("listing created")

	return listing, nil
}

func (s *ListingService) validateCreate(in CreateListingInput, now time.Time) error {
	if err := validation.ValidateEventName(in.EventName); err != nil {
		return apperror.Validation(err.Error(), nil)
	}
	if err := validation.ValidateNonEmpty("event city", in.EventCity); err != nil {
		return apperror.Validation(err.Error(), nil)
	}
	if err := validation.ValidateQuantity(in.Quantity); err != nil {
		return apperror.Validation(err.Error(), nil)
	}
	if _, ok := models.ValidTransferMethods[in.TransferMethod]; !ok {
		return apperror.Validation("unknown transfer method", map[string]interface{}{
			"transfer_method": in.TransferMethod,
		})
	}
	if !in.OriginalPrice.IsPositive() || !in.AskingPrice.IsPositive() {
		return apperror.Validation("prices must be positive", nil)
	}
	if in.EventDate.Before(now.Add(minListingLeadTime)) {
		return apperror.Validation("event must be at least two hours in the future", nil)
	}
	if in.ProofURL != nil && *in.ProofURL != "" {
		if err := validation.ValidateProofURL(*in.ProofURL); err != nil {
			return apperror.Validation(err.Error(), nil)
		}
	}
	return nil
}

// Get returns a listing together with its not-yet-persisted pending views.
func (s *ListingService) Get(ctx context.Context, id uuid.UUID, countView bool) (*models.Listing, error) {
	listing, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrListingNotFound) {
		return nil, apperror.ErrListingNotFound
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "get listing")
	}

	if countView {
		if pending, err := s.views.IncrementViews(ctx, id); err != nil {
			// A dead cache must not break reads.
			s.log.WithError(err).Warn("listing view increment failed")
		} else if pending >= viewFlushThreshold {
			if err := s.flushViews(ctx, id); err != nil {
				s.log.WithError(err).Warn("listing view flush failed")
			}
			listing, err = s.repo.GetByID(ctx, id)
			if err != nil {
				return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "get listing")
			}
		}
	}
	if pending, err := s.views.PendingViews(ctx, id); err == nil {
		listing.ViewCount += int(pending)
	}

	return listing, nil
}

// List returns the public browse page.
func (s *ListingService) List(ctx context.Context, f repository.ListingFilter) ([]models.Listing, int, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	listings, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, 0, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "list listings")
	}
	return listings, total, nil
}

// Update applies a seller's edit. Price increases stay bounded by the markup
// cap against the original price; attaching proof to a suspicious pending
// listing promotes it to active.
func (s *ListingService) Update(ctx context.Context, sellerID, id uuid.UUID, in UpdateListingInput) (*models.Listing, error) {
	listing, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrListingNotFound) {
		return nil, apperror.ErrListingNotFound
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "get listing")
	}
	if listing.SellerID != sellerID {
		return nil, apperror.ErrForbidden
	}
	if !listing.Editable() {
		return nil, apperror.Conflict("listing can no longer be edited", listing.Status)
	}

	oldPrice := listing.AskingPrice
	priceChanged := false

	if in.EventName != nil {
		if err := validation.ValidateEventName(*in.EventName); err != nil {
			return nil, apperror.Validation(err.Error(), nil)
		}
		listing.EventName = *in.EventName
	}
	if in.EventVenue != nil {
		listing.EventVenue = *in.EventVenue
	}
	if in.EventCity != nil {
		listing.EventCity = *in.EventCity
	}
	if in.TicketType != nil {
		listing.TicketType = *in.TicketType
	}
	if in.Quantity != nil {
		if err := validation.ValidateQuantity(*in.Quantity); err != nil {
			return nil, apperror.Validation(err.Error(), nil)
		}
		listing.Quantity = *in.Quantity
	}
	if in.AskingPrice != nil && !in.AskingPrice.Equal(oldPrice) {
		if !in.AskingPrice.IsPositive() {
			return nil, apperror.Validation("asking price must be positive", nil)
		}
		maxAllowed := listing.OriginalPrice.Mul(s.maxMarkup).Round(2)
		if in.AskingPrice.GreaterThan(maxAllowed) {
			return nil, apperror.Validation("asking price exceeds the allowed markup over original price", map[string]interface{}{
				"max_allowed_price": maxAllowed.StringFixed(2),
				"original_price":    listing.OriginalPrice.StringFixed(2),
			})
		}
		listing.AskingPrice = *in.AskingPrice
		priceChanged = true
	}
	if in.ProofURL != nil && *in.ProofURL != "" {
		if err := validation.ValidateProofURL(*in.ProofURL); err != nil {
			return nil, apperror.Validation(err.Error(), nil)
		}
		listing.ProofURL = in.ProofURL
		// Supplying proof clears the review hold, unless the snapshot
		// score forced the listing into review.
		if listing.Status == models.ListingStatusPendingVerification &&
			listing.FraudScore < fraud.ForceReviewThreshold {
			now := time.Now().UTC()
			listing.Status = models.ListingStatusActive
			listing.VerifiedAt = &now
		}
	}

	if err := s.repo.Update(ctx, listing, priceChanged, oldPrice); err != nil {
		if errors.Is(err, repository.ErrListingNotFound) {
			return nil, apperror.Conflict("listing can no longer be edited", listing.Status)
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "update listing")
	}

	return listing, nil
}

// Cancel withdraws a listing that is not reserved or sold.
func (s *ListingService) Cancel(ctx context.Context, sellerID, id uuid.UUID) error {
	listing, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrListingNotFound) {
		return apperror.ErrListingNotFound
	}
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "get listing")
	}
	if listing.SellerID != sellerID {
		return apperror.ErrForbidden
	}

	applied, err := s.repo.UpdateStatusCAS(ctx, id,
		[]string{models.ListingStatusPendingVerification, models.ListingStatusActive},
		models.ListingStatusCancelled)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "cancel listing")
	}
	if !applied {
		return apperror.Conflict("listing cannot be cancelled in its current state", listing.Status)
	}
	return nil
}

// PriceHistory returns the listing's price change log.
func (s *ListingService) PriceHistory(ctx context.Context, id uuid.UUID) ([]models.PriceHistoryEntry, error) {
	if _, err := s.Get(ctx, id, false); err != nil {
		return nil, err
	}
	entries, err := s.repo.ListPriceHistory(ctx, id)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "list price history")
	}
	return entries, nil
}

// viewFlushThreshold bounds how many views may sit only in the cache before
// they are folded into Postgres.
const viewFlushThreshold = 25

// flushViews drains the cached view counter for a listing into Postgres.
func (s *ListingService) flushViews(ctx context.Context, id uuid.UUID) error {
	delta, err := s.views.DrainViews(ctx, id)
	if err != nil || delta == 0 {
		return err
	}
	return s.repo.AddViews(ctx, id, delta)
}
