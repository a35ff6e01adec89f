package service

import (
	"context"
	"errors"
	"strings"

	"github.com/shinyyama/simcard-market/internal/model"
	"github.com/shinyyama/simcard-market/internal/repository"
	"gorm.io/gorm"
)

type SimService interface {
	Get(ctx context.Context, id uint64) (*model.SimCard, error)
	List(ctx context.Context, simType string, limit, offset int) ([]model.SimCard, int64, error)
}

type simService struct {
	repo repository.SimCardRepository
}

func NewSimService(repo repository.SimCardRepository) SimService {
	return &simService{repo: repo}
}

func (s *simService) Get(ctx context.Context, id uint64) (*model.SimCard, error) {
	sim, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sim, nil
}

func (s *simService) List(ctx context.Context, simType string, limit, offset int) ([]model.SimCard, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	t := model.SimType(strings.TrimSpace(simType))
	switch t {
	case "", model.SimTypeFixed, model.SimTypeAuction, model.SimTypeInquiry:
	default:
		return nil, 0, errors.New("invalid sim type")
	}
	return s.repo.List(ctx, t, limit, offset)
}
