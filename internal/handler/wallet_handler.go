package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/simcard-market/internal/service"
)

type WalletHandler struct {
	svc service.WalletService
}

func NewWalletHandler(svc service.WalletService) *WalletHandler {
	return &WalletHandler{svc: svc}
}

type TransactionResponse struct {
	ID          uint64 `json:"id"`
	Type        string `json:"type"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	CreatedAt   string `json:"createdAt"`
}

func (h *WalletHandler) Get(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	w, err := h.svc.Get(c.Request().Context(), uid)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, w)
}

func (h *WalletHandler) Transactions(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	list, total, err := h.svc.Transactions(c.Request().Context(), uid, limit, offset)
	if err != nil {
		return writeServiceError(c, err)
	}
	resp := make([]TransactionResponse, 0, len(list))
	for _, t := range list {
		resp = append(resp, TransactionResponse{
			ID:          t.ID,
			Type:        string(t.Type),
			Amount:      t.Amount,
			Description: t.Description,
			CreatedAt:   t.CreatedAt.Format(time.RFC3339),
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"transactions": resp,
		"total":        total,
	})
}
