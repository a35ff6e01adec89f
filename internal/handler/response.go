package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/simcard-market/internal/delivery"
	"github.com/shinyyama/simcard-market/internal/service"
	log "github.com/sirupsen/logrus"
)

type errorPayload struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	// Shortfall is set for insufficient_balance.
	Shortfall *int64 `json:"shortfall,omitempty"`
	// Step is set when a settlement stopped partway.
	Step string `json:"step,omitempty"`
}

type ErrorResponse struct {
	Error errorPayload `json:"error"`
}

func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Error: errorPayload{
			Code:    code,
			Message: message,
		},
	}
}

func currentUID(c echo.Context) string {
	uid, _ := c.Get("uid").(string)
	return uid
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
}

func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// writeServiceError maps service errors to status codes. Anything unknown is
// logged and reported as a generic internal error.
func writeServiceError(c echo.Context, err error) error {
	var (
		ib    *service.InsufficientBalanceError
		verrs delivery.ValidationErrors
		step  *service.StepError
	)
	switch {
	case errors.As(err, &ib):
		resp := NewErrorResponse("insufficient_balance", err.Error())
		shortfall := ib.Shortfall()
		resp.Error.Shortfall = &shortfall
		return c.JSON(http.StatusPaymentRequired, resp)
	case errors.As(err, &verrs):
		resp := NewErrorResponse("invalid_address", "please correct the highlighted fields")
		resp.Error.Fields = verrs
		return c.JSON(http.StatusUnprocessableEntity, resp)
	case errors.As(err, &step):
		log.WithError(err).WithField("step", step.Step).Error("settlement failed")
		resp := NewErrorResponse("settlement_failed", "settlement could not be completed; please try again")
		resp.Error.Step = step.Step
		return c.JSON(http.StatusInternalServerError, resp)
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, NewErrorResponse("not_found", "not found"))
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, NewErrorResponse("forbidden", "not allowed"))
	case errors.Is(err, service.ErrSelfBid),
		errors.Is(err, service.ErrNotWinner):
		return c.JSON(http.StatusForbidden, NewErrorResponse("forbidden", err.Error()))
	case errors.Is(err, service.ErrBidTooLow):
		return c.JSON(http.StatusConflict, NewErrorResponse("bid_too_low", err.Error()))
	case errors.Is(err, service.ErrAuctionEnded),
		errors.Is(err, service.ErrAuctionNotEnded),
		errors.Is(err, service.ErrAlreadySold),
		errors.Is(err, service.ErrSettlementConflict),
		errors.Is(err, service.ErrSettlementNotStarted):
		return c.JSON(http.StatusConflict, NewErrorResponse("conflict", err.Error()))
	case errors.Is(err, service.ErrInvalidBidAmount),
		errors.Is(err, service.ErrNotAuction),
		errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrUnknownGateway),
		errors.Is(err, service.ErrInvalidDeliveryMethod),
		errors.Is(err, service.ErrDeliveryNotRequired),
		errors.Is(err, delivery.ErrMethodUnavailable):
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", err.Error()))
	case errors.Is(err, service.ErrAuctionDetailMissing):
		log.WithError(err).Error("data integrity error")
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("integrity_error", err.Error()))
	}
	log.WithError(err).WithField("path", c.Path()).Error("request failed")
	return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", "something went wrong"))
}
