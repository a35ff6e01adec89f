package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/simcard-market/internal/model"
	"github.com/shinyyama/simcard-market/internal/service"
)

type PaymentHandler struct {
	svc service.PaymentService
}

func NewPaymentHandler(svc service.PaymentService) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

type CallbackResponse struct {
	*service.CallbackResult
	RedirectAfterMs int64 `json:"redirectAfterMs"`
}

type TopUpRequest struct {
	Gateway string `json:"gateway"`
	Amount  int64  `json:"amount"`
}

// ZarinPalCallback is the gateway's return URL. The gateway fixes the query
// parameter names Authority and Status.
func (h *PaymentHandler) ZarinPalCallback(c echo.Context) error {
	res := h.svc.HandleZarinPalCallback(c.Request().Context(), c.QueryParam("Authority"), c.QueryParam("Status"))
	return c.JSON(http.StatusOK, CallbackResponse{CallbackResult: res, RedirectAfterMs: res.RedirectAfter.Milliseconds()})
}

// ZibalCallback is the gateway's return URL with trackId, success and status.
func (h *PaymentHandler) ZibalCallback(c echo.Context) error {
	res := h.svc.HandleZibalCallback(c.Request().Context(), c.QueryParam("trackId"), c.QueryParam("success"), c.QueryParam("status"))
	return c.JSON(http.StatusOK, CallbackResponse{CallbackResult: res, RedirectAfterMs: res.RedirectAfter.Milliseconds()})
}

func (h *PaymentHandler) TopUp(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	var req TopUpRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	gw := model.Gateway(strings.ToLower(strings.TrimSpace(req.Gateway)))
	res, err := h.svc.RequestTopUp(c.Request().Context(), uid, gw, req.Amount)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}
