package services

import (
	"context"
	"errors"

	"stockhold/internal/domain"
	"stockhold/internal/repos"
)

// LowStockThreshold is the available count below which a product shows as LOW_STOCK.
const LowStockThreshold = 5

type InventoryService struct {
	Products *repos.ProductRepo
}

func NewInventoryService(products *repos.ProductRepo) *InventoryService {
	return &InventoryService{Products: products}
}

// CheckAvailability converts available stock to IN_STOCK / LOW_STOCK / OUT_OF_STOCK.
func (s *InventoryService) CheckAvailability(ctx context.Context, productID string) (domain.Availability, error) {
	p, err := s.Products.Get(ctx, productID)
	if err != nil {
		// unknown products are simply not available
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Availability{Status: "OUT_OF_STOCK", Qty: 0}, nil
		}
		return domain.Availability{}, classify(err)
	}

	qty := p.AvailableStock
	status := "OUT_OF_STOCK"
	switch {
	case qty >= LowStockThreshold:
		status = "IN_STOCK"
	case qty > 0:
		status = "LOW_STOCK"
	}
	return domain.Availability{Status: status, Qty: qty}, nil
}
