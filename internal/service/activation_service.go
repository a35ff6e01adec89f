package service

import (
	"context"
	"errors"

	"github.com/shinyyama/simcard-market/internal/delivery"
	"github.com/shinyyama/simcard-market/internal/model"
	"github.com/shinyyama/simcard-market/internal/repository"
	log "github.com/sirupsen/logrus"
)

type CreateActivationInput struct {
	PurchaseOrderID uint64
	SimID           uint64
	BuyerID         string
	SellerID        string
	SimNumber       string
	BuyerName       string
	SellerName      string
	Method          model.DeliveryMethod
	Address         *delivery.Address
}

type ActivationService interface {
	Create(ctx context.Context, in CreateActivationInput) (*model.ActivationRequest, error)
	GetByPurchaseOrder(ctx context.Context, purchaseOrderID uint64, userID string) (*model.ActivationRequest, error)
}

type activationService struct {
	repo     repository.ActivationRequestRepository
	notifier NotificationService
}

func NewActivationService(repo repository.ActivationRequestRepository, notifier NotificationService) ActivationService {
	return &activationService{repo: repo, notifier: notifier}
}

// Create registers the seller-fulfilled delivery task for a zero line. At
// most one request exists per purchase order; a repeat returns it unchanged.
func (s *activationService) Create(ctx context.Context, in CreateActivationInput) (*model.ActivationRequest, error) {
	if in.PurchaseOrderID == 0 || in.BuyerID == "" || in.SellerID == "" {
		return nil, errors.New("purchase order, buyer and seller are required")
	}
	ar := &model.ActivationRequest{
		PurchaseOrderID: in.PurchaseOrderID,
		SimCardID:       in.SimID,
		BuyerID:         in.BuyerID,
		SellerID:        in.SellerID,
		SimNumber:       in.SimNumber,
		BuyerName:       in.BuyerName,
		SellerName:      in.SellerName,
		DeliveryMethod:  in.Method,
		Status:          model.ActivationStatusPending,
	}
	switch in.Method {
	case model.DeliveryMethodActivationCode:
	case model.DeliveryMethodPhysicalCard:
		if in.Address == nil {
			return nil, delivery.Address{}.Validate()
		}
		addr := in.Address.Normalize()
		if errs := addr.Validate(); errs != nil {
			return nil, errs
		}
		ar.DeliveryAddress = &addr.Address
		ar.DeliveryCity = &addr.City
		ar.DeliveryPostalCode = &addr.PostalCode
		ar.DeliveryPhone = &addr.Phone
	default:
		return nil, ErrInvalidDeliveryMethod
	}

	out, created, err := s.repo.Create(ctx, ar)
	if err != nil {
		return nil, err
	}
	if created {
		log.WithFields(log.Fields{
			"purchase_order_id": in.PurchaseOrderID,
			"sim_id":            in.SimID,
			"method":            in.Method,
		}).Info("activation request created")
		s.notifier.Notify(ctx, in.SellerID, NotifyActivationRequest, "Activation requested",
			"The buyer of "+in.SimNumber+" chose "+string(in.Method)+".", uint64Ptr(in.SimID), uint64Ptr(in.PurchaseOrderID))
	}
	return out, nil
}

func (s *activationService) GetByPurchaseOrder(ctx context.Context, purchaseOrderID uint64, userID string) (*model.ActivationRequest, error) {
	ar, err := s.repo.FindByPurchaseOrder(ctx, purchaseOrderID)
	if err != nil {
		return nil, notFound(err)
	}
	if ar.BuyerID != userID && ar.SellerID != userID {
		return nil, ErrForbidden
	}
	return ar, nil
}
