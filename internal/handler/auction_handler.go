package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/simcard-market/internal/delivery"
	"github.com/shinyyama/simcard-market/internal/model"
	"github.com/shinyyama/simcard-market/internal/service"
)

type AuctionHandler struct {
	auctions    service.AuctionService
	settlements service.SettlementService
}

func NewAuctionHandler(auctions service.AuctionService, settlements service.SettlementService) *AuctionHandler {
	return &AuctionHandler{auctions: auctions, settlements: settlements}
}

type BidRequest struct {
	// Amount accepts a JSON number or a numeric string.
	Amount json.RawMessage `json:"amount"`
}

type BidResponse struct {
	ID            uint64 `json:"id"`
	Amount        int64  `json:"amount"`
	Replayed      bool   `json:"replayed"`
	ReloadAfterMs int64  `json:"reloadAfterMs"`
	CreatedAt     string `json:"createdAt"`
}

type SettleRequest struct {
	DeliveryMethod string            `json:"deliveryMethod"`
	Address        *delivery.Address `json:"address"`
}

type SettlementResponse struct {
	*service.SettlementOutcome
	RedirectAfterMs int64 `json:"redirectAfterMs"`
}

// parseAmount accepts "5000000", "5,000,000" or 5000000.
func parseAmount(raw json.RawMessage) (int64, bool) {
	s := strings.TrimSpace(string(raw))
	s = strings.Trim(s, `"`)
	s = strings.ReplaceAll(s, ",", "")
	n, err := strconv.ParseInt(s, 10, 64)
	return n, err == nil && n > 0
}

func (h *AuctionHandler) View(c echo.Context) error {
	simID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid sim id"))
	}
	v, err := h.settlements.View(c.Request().Context(), simID, currentUID(c))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *AuctionHandler) GuaranteeCheck(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	simID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid sim id"))
	}
	v, err := h.settlements.View(c.Request().Context(), simID, uid)
	if err != nil {
		return writeServiceError(c, err)
	}
	check, err := h.auctions.CheckGuaranteeDepositBalance(c.Request().Context(), uid, v.AuctionID, v.BasePrice, simID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"hasBalance":     check.HasBalance,
		"requiredAmount": check.RequiredAmount,
		"currentBalance": check.CurrentBalance,
		"alreadyBlocked": check.AlreadyBlocked,
		"shortfall":      check.Shortfall(),
	})
}

func (h *AuctionHandler) PlaceBid(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	simID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid sim id"))
	}
	var req BidRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		return writeServiceError(c, service.ErrInvalidBidAmount)
	}
	res, err := h.auctions.PlaceBid(c.Request().Context(), service.PlaceBidInput{
		SimID:          simID,
		UserID:         uid,
		Amount:         amount,
		IdempotencyKey: c.Request().Header.Get("Idempotency-Key"),
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	return c.JSON(status, BidResponse{
		ID:            res.Bid.ID,
		Amount:        res.Bid.Amount,
		Replayed:      res.Replayed,
		ReloadAfterMs: res.ReloadAfter.Milliseconds(),
		CreatedAt:     res.Bid.CreatedAt.Format(time.RFC3339),
	})
}

func (h *AuctionHandler) ListBids(c echo.Context) error {
	simID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid sim id"))
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	bids, err := h.auctions.ListBids(c.Request().Context(), simID, limit)
	if err != nil {
		return writeServiceError(c, err)
	}
	resp := make([]map[string]interface{}, 0, len(bids))
	for _, b := range bids {
		resp = append(resp, map[string]interface{}{
			"id":        b.ID,
			"userId":    b.UserID,
			"amount":    b.Amount,
			"createdAt": b.CreatedAt.Format(time.RFC3339),
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"bids": resp})
}

// Settle runs the winner's settlement. The delivery choice is optional; a
// zero line settled without one answers with requiresDelivery.
func (h *AuctionHandler) Settle(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	simID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid sim id"))
	}
	var req SettleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	in := service.SettleInput{SimID: simID, WinnerID: uid}
	if req.DeliveryMethod != "" {
		in.Delivery = &service.DeliveryChoice{Method: model.DeliveryMethod(req.DeliveryMethod), Address: req.Address}
	}
	out, err := h.settlements.Settle(c.Request().Context(), in)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, SettlementResponse{SettlementOutcome: out, RedirectAfterMs: out.RedirectAfter.Milliseconds()})
}

func (h *AuctionHandler) DeliveryOptions(c echo.Context) error {
	return c.JSON(http.StatusOK, h.settlements.DeliveryOptions(c.Request().Context()))
}

func (h *AuctionHandler) SubmitDelivery(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	simID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid sim id"))
	}
	var req SettleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	out, err := h.settlements.SubmitDelivery(c.Request().Context(), simID, uid, model.DeliveryMethod(req.DeliveryMethod), req.Address)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, SettlementResponse{SettlementOutcome: out, RedirectAfterMs: out.RedirectAfter.Milliseconds()})
}

// Resume is the operator entry point for a settlement that stopped partway.
func (h *AuctionHandler) Resume(c echo.Context) error {
	simID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid sim id"))
	}
	out, err := h.settlements.Resume(c.Request().Context(), simID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, SettlementResponse{SettlementOutcome: out, RedirectAfterMs: out.RedirectAfter.Milliseconds()})
}
