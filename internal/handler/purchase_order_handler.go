package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/simcard-market/internal/model"
	"github.com/shinyyama/simcard-market/internal/service"
	log "github.com/sirupsen/logrus"
)

type PurchaseOrderHandler struct {
	orders        service.PurchaseOrderService
	activations   service.ActivationService
	notifications service.NotificationService
}

func NewPurchaseOrderHandler(orders service.PurchaseOrderService, activations service.ActivationService, notifications service.NotificationService) *PurchaseOrderHandler {
	return &PurchaseOrderHandler{orders: orders, activations: activations, notifications: notifications}
}

type ActivationResponse struct {
	ID             uint64  `json:"id"`
	DeliveryMethod string  `json:"deliveryMethod"`
	Status         string  `json:"status"`
	Address        *string `json:"address,omitempty"`
	City           *string `json:"city,omitempty"`
	PostalCode     *string `json:"postalCode,omitempty"`
	Phone          *string `json:"phone,omitempty"`
}

type PurchaseOrderResponse struct {
	ID                   uint64              `json:"id"`
	SimCardID            uint64              `json:"simCardId"`
	BuyerID              string              `json:"buyerId"`
	SellerID             string              `json:"sellerId"`
	LineType             string              `json:"lineType"`
	Price                int64               `json:"price"`
	CommissionAmount     int64               `json:"commissionAmount"`
	SellerReceivedAmount int64               `json:"sellerReceivedAmount"`
	Status               string              `json:"status"`
	Activation           *ActivationResponse `json:"activation,omitempty"`
	CreatedAt            string              `json:"createdAt"`
}

func toPurchaseOrderResponse(o *model.PurchaseOrder) PurchaseOrderResponse {
	return PurchaseOrderResponse{
		ID:                   o.ID,
		SimCardID:            o.SimCardID,
		BuyerID:              o.BuyerID,
		SellerID:             o.SellerID,
		LineType:             string(o.LineType),
		Price:                o.Price,
		CommissionAmount:     o.CommissionAmount,
		SellerReceivedAmount: o.SellerReceivedAmount,
		Status:               string(o.Status),
		CreatedAt:            o.CreatedAt.Format(time.RFC3339),
	}
}

func (h *PurchaseOrderHandler) ListMine(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	list, err := h.orders.List(c.Request().Context(), uid, model.UserRole(c.QueryParam("role")))
	if err != nil {
		return writeServiceError(c, err)
	}
	resp := make([]PurchaseOrderResponse, 0, len(list))
	for i := range list {
		resp = append(resp, toPurchaseOrderResponse(&list[i]))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"purchaseOrders": resp})
}

// Get returns one order with its activation request and marks the
// notifications pointing at it as read.
func (h *PurchaseOrderHandler) Get(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid id"))
	}
	ctx := c.Request().Context()
	order, err := h.orders.Get(ctx, id, uid)
	if err != nil {
		return writeServiceError(c, err)
	}
	resp := toPurchaseOrderResponse(order)
	ar, err := h.activations.GetByPurchaseOrder(ctx, order.ID, uid)
	switch {
	case err == nil:
		resp.Activation = &ActivationResponse{
			ID:             ar.ID,
			DeliveryMethod: string(ar.DeliveryMethod),
			Status:         string(ar.Status),
			Address:        ar.DeliveryAddress,
			City:           ar.DeliveryCity,
			PostalCode:     ar.DeliveryPostalCode,
			Phone:          ar.DeliveryPhone,
		}
	case !errors.Is(err, service.ErrNotFound):
		return writeServiceError(c, err)
	}
	if err := h.notifications.MarkByPurchaseOrder(ctx, uid, order.ID); err != nil {
		log.WithError(err).WithField("purchase_order_id", order.ID).Warn("failed to mark notifications read")
	}
	return c.JSON(http.StatusOK, resp)
}
