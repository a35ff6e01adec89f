package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/simcard-market/internal/model"
	"github.com/shinyyama/simcard-market/internal/service"
)

type SimHandler struct {
	svc service.SimService
}

func NewSimHandler(svc service.SimService) *SimHandler {
	return &SimHandler{svc: svc}
}

type AuctionDetailResponse struct {
	ID         uint64 `json:"id"`
	BasePrice  int64  `json:"basePrice"`
	CurrentBid int64  `json:"currentBid"`
	EndTime    string `json:"endTime"`
}

type SimResponse struct {
	ID        uint64                 `json:"id"`
	Number    string                 `json:"number"`
	Carrier   string                 `json:"carrier"`
	Price     int64                  `json:"price"`
	Type      string                 `json:"type"`
	IsActive  bool                   `json:"isActive"`
	Status    string                 `json:"status"`
	SellerID  string                 `json:"sellerId"`
	Auction   *AuctionDetailResponse `json:"auction,omitempty"`
	CreatedAt string                 `json:"createdAt"`
}

type SimListResponse struct {
	Sims  []SimResponse `json:"sims"`
	Total int64         `json:"total"`
}

func (h *SimHandler) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid id"))
	}
	sim, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		if err == service.ErrNotFound {
			return c.JSON(http.StatusNotFound, NewErrorResponse("not_found", "sim not found"))
		}
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", "failed to fetch sim"))
	}
	return c.JSON(http.StatusOK, toSimResponse(sim))
}

func (h *SimHandler) List(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	sims, total, err := h.svc.List(c.Request().Context(), c.QueryParam("type"), limit, offset)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", err.Error()))
	}
	resp := SimListResponse{
		Sims:  make([]SimResponse, 0, len(sims)),
		Total: total,
	}
	for i := range sims {
		resp.Sims = append(resp.Sims, toSimResponse(&sims[i]))
	}
	return c.JSON(http.StatusOK, resp)
}

func toSimResponse(sim *model.SimCard) SimResponse {
	resp := SimResponse{
		ID:        sim.ID,
		Number:    sim.Number,
		Carrier:   sim.Carrier,
		Price:     sim.Price,
		Type:      string(sim.Type),
		IsActive:  sim.IsActive,
		Status:    string(sim.Status),
		SellerID:  sim.SellerID,
		CreatedAt: sim.CreatedAt.Format(time.RFC3339),
	}
	if d := sim.AuctionDetail; d != nil {
		resp.Auction = &AuctionDetailResponse{
			ID:         d.ID,
			BasePrice:  d.BasePrice,
			CurrentBid: d.CurrentBid,
			EndTime:    d.EndTime.Format(time.RFC3339),
		}
	}
	return resp
}
