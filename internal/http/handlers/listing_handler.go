package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/faresafe/resale-backend/internal/dto"
	"github.com/faresafe/resale-backend/internal/http/handlers/common"
	"github.com/faresafe/resale-backend/internal/repository"
	"github.com/faresafe/resale-backend/internal/service"
)

type ListingHandler struct {
	svc *service.ListingService
}

func NewListingHandler(s *service.ListingService) *ListingHandler {
	return &ListingHandler{svc: s}
}

// Create POST /api/listings
func (h *ListingHandler) Create(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.CreateListingRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	listing, err := h.svc.Create(c.Request.Context(), userID, service.CreateListingInput{
		EventName:      req.EventName,
		EventVenue:     req.EventVenue,
		EventCity:      req.EventCity,
		EventDate:      req.EventDate,
		TicketType:     req.TicketType,
		Quantity:       req.Quantity,
		TicketSource:   req.TicketSource,
		TransferMethod: req.TransferMethod,
		OriginalPrice:  req.OriginalPrice,
		AskingPrice:    req.AskingPrice,
		ProofURL:       req.ProofURL,
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, listing)
}

// List GET /api/listings
func (h *ListingHandler) List(c *gin.Context) {
	limit, offset := common.GetPagination(c)

	filter := repository.ListingFilter{
		City:      c.Query("city"),
		EventName: c.Query("event"),
		Limit:     limit,
		Offset:    offset,
	}
	if raw := c.Query("max_price"); raw != "" {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			common.RespondBadRequest(c, "invalid max_price")
			return
		}
		filter.MaxPrice = &price
	}
	if raw := c.Query("date_from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			common.RespondBadRequest(c, "invalid date_from, expected RFC3339")
			return
		}
		filter.DateFrom = &from
	}
	if raw := c.Query("date_to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			common.RespondBadRequest(c, "invalid date_to, expected RFC3339")
			return
		}
		filter.DateTo = &to
	}

	listings, total, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.PagedResponse{
		Items:  listings,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// Get GET /api/listings/:id
func (h *ListingHandler) Get(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	listing, err := h.svc.Get(c.Request.Context(), id, true)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

// Update PATCH /api/listings/:id
func (h *ListingHandler) Update(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.UpdateListingRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	listing, err := h.svc.Update(c.Request.Context(), userID, id, service.UpdateListingInput{
		EventName:   req.EventName,
		EventVenue:  req.EventVenue,
		EventCity:   req.EventCity,
		TicketType:  req.TicketType,
		Quantity:    req.Quantity,
		AskingPrice: req.AskingPrice,
		ProofURL:    req.ProofURL,
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

// Cancel DELETE /api/listings/:id
func (h *ListingHandler) Cancel(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.svc.Cancel(c.Request.Context(), userID, id); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "listing cancelled"})
}

// PriceHistory GET /api/listings/:id/price-history
func (h *ListingHandler) PriceHistory(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	entries, err := h.svc.PriceHistory(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, entries)
}
