package services

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"agriconnect/internal/domain"
	"agriconnect/internal/repos"
)

var lowStockThreshold = decimal.NewFromInt(5)

type InventoryService struct {
	Inv *repos.InventoryRepo
}

func NewInventoryService(inv *repos.InventoryRepo) *InventoryService {
	return &InventoryService{Inv: inv}
}

// CheckAvailability converts qty to IN_STOCK / LOW_STOCK / OUT_OF_STOCK.
func (s *InventoryService) CheckAvailability(ctx context.Context, productID int64) (domain.Availability, error) {
	qty, err := s.Inv.Qty(ctx, productID)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return domain.Availability{}, err
		}
		return domain.Availability{}, storeErr(err)
	}

	status := "OUT_OF_STOCK"
	switch {
	case qty.GreaterThanOrEqual(lowStockThreshold):
		status = "IN_STOCK"
	case qty.IsPositive():
		status = "LOW_STOCK"
	}
	return domain.Availability{Status: status, Qty: qty}, nil
}

// LowStock lists the farmer's listings that are running out.
func (s *InventoryService) LowStock(ctx context.Context, farmerID int64) ([]repos.LowStockRow, error) {
	rows, err := s.Inv.LowStock(ctx, farmerID, lowStockThreshold)
	return rows, storeErr(err)
}
