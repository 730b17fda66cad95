package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"agriconnect/internal/domain"
	"agriconnect/internal/repos"
)

// ReportService builds the buyer, farmer and earnings views.
type ReportService struct {
	Orders repos.OrderReader
	Now    func() time.Time
}

func NewReportService(orders repos.OrderReader) *ReportService {
	return &ReportService{Orders: orders, Now: func() time.Time { return time.Now().UTC() }}
}

func (s *ReportService) ListOrdersForBuyer(ctx context.Context, buyerID int64) ([]domain.OrderView, error) {
	lines, err := s.Orders.BuyerOrderLines(ctx, buyerID)
	if err != nil {
		return nil, storeErr(err)
	}
	return groupLines(lines), nil
}

// ListOrdersForFarmer shows only the farmer's own items of each order.
func (s *ReportService) ListOrdersForFarmer(ctx context.Context, farmerID int64) ([]domain.OrderView, error) {
	lines, err := s.Orders.FarmerOrderLines(ctx, farmerID)
	if err != nil {
		return nil, storeErr(err)
	}
	return groupLines(lines), nil
}

// ComputeEarnings sums the farmer's line totals on delivered orders.
// Today counts orders created on the current UTC day.
func (s *ReportService) ComputeEarnings(ctx context.Context, farmerID int64) (domain.Earnings, error) {
	lines, err := s.Orders.FarmerOrderLines(ctx, farmerID)
	if err != nil {
		return domain.Earnings{}, storeErr(err)
	}
	now := s.Now().UTC()
	e := domain.Earnings{Total: decimal.Zero, Today: decimal.Zero}
	seen := map[int64]bool{}
	for _, l := range lines {
		if l.Status != domain.StatusDelivered {
			continue
		}
		e.Total = e.Total.Add(l.LineTotal)
		if sameDay(l.CreatedAt.UTC(), now) {
			e.Today = e.Today.Add(l.LineTotal)
		}
		if !seen[l.OrderID] {
			seen[l.OrderID] = true
			e.DeliveredOrders++
		}
	}
	return e, nil
}

// GetOrder returns one order to its buyer, to a farmer selling in it (their
// items only) or to an admin. Anyone else gets ErrOrderNotFound.
func (s *ReportService) GetOrder(ctx context.Context, orderUUID string, viewer *domain.User) (domain.OrderView, error) {
	lines, err := s.Orders.OrderLinesByUUID(ctx, orderUUID)
	if err != nil {
		return domain.OrderView{}, storeErr(err)
	}
	if len(lines) == 0 || viewer == nil {
		return domain.OrderView{}, domain.ErrOrderNotFound
	}

	switch {
	case viewer.Role == domain.RoleAdmin, lines[0].BuyerID == viewer.ID:
	default:
		var own []domain.OrderLine
		for _, l := range lines {
			if l.FarmerID == viewer.ID {
				own = append(own, l)
			}
		}
		if len(own) == 0 {
			return domain.OrderView{}, domain.ErrOrderNotFound
		}
		lines = own
	}
	return groupLines(lines)[0], nil
}

// groupLines folds flat rows into one view per order, keeping row order.
func groupLines(lines []domain.OrderLine) []domain.OrderView {
	out := []domain.OrderView{}
	idx := map[int64]int{}
	for _, l := range lines {
		i, ok := idx[l.OrderID]
		if !ok {
			i = len(out)
			idx[l.OrderID] = i
			out = append(out, domain.OrderView{
				ID:              l.OrderID,
				UUID:            l.OrderUUID,
				Status:          l.Status,
				TotalAmount:     l.TotalAmount,
				PaymentMethod:   l.PaymentMethod,
				DeliveryAddress: l.DeliveryAddress,
				DeliverySlot:    l.DeliverySlot,
				BuyerName:       l.BuyerName,
				BuyerLocation:   l.BuyerLocation,
				CreatedAt:       l.CreatedAt,
			})
		}
		out[i].Items = append(out[i].Items, domain.OrderItemView{
			ItemID:     l.ItemID,
			ProductID:  l.ProductID,
			CropName:   l.CropName,
			FarmerID:   l.FarmerID,
			FarmerName: l.FarmerName,
			Quantity:   l.Quantity,
			PricePerKg: l.PricePerKg,
			LineTotal:  l.LineTotal,
		})
	}
	return out
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
