package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"agriconnect/internal/domain"
	"agriconnect/internal/geo"
	"agriconnect/internal/repos"
	"agriconnect/internal/validate"
)

const (
	DefaultRadiusKm = 20.0
	radiusScanPage  = 500
)

type CatalogService struct {
	Prods *repos.ProductRepo
	Now   func() time.Time
}

func NewCatalogService(prods *repos.ProductRepo) *CatalogService {
	return &CatalogService{Prods: prods, Now: func() time.Time { return time.Now().UTC() }}
}

type ProductInput struct {
	CropName     string          `json:"cropName"`
	PricePerKg   decimal.Decimal `json:"pricePerKg"`
	AvailableQty decimal.Decimal `json:"availableQty"`
	Unit         string          `json:"unit"`
	HarvestDate  *time.Time      `json:"harvestDate"`
	Description  string          `json:"description"`
	ImageURL     string          `json:"imageUrl"`
}

type ProductUpdate struct {
	PricePerKg   decimal.Decimal `json:"pricePerKg"`
	AvailableQty decimal.Decimal `json:"availableQty"`
}

type SearchQuery struct {
	Crop     string
	Lat, Lng *float64
	RadiusKm float64
	Page     int
	PageSize int
}

func checkPriceQty(price, qty decimal.Decimal) error {
	if !validate.Positive(price) {
		return fmt.Errorf("%w: pricePerKg must be greater than zero", domain.ErrValidation)
	}
	if !validate.NonNegative(qty) {
		return fmt.Errorf("%w: availableQty must not be negative", domain.ErrValidation)
	}
	return nil
}

func (s *CatalogService) Create(ctx context.Context, farmerID int64, in ProductInput) (domain.Product, error) {
	crop, ok := validate.CropName(in.CropName)
	if !ok {
		return domain.Product{}, fmt.Errorf("%w: cropName is required (max 80 chars)", domain.ErrValidation)
	}
	if err := checkPriceQty(in.PricePerKg, in.AvailableQty); err != nil {
		return domain.Product{}, err
	}
	unit := strings.TrimSpace(in.Unit)
	if unit == "" {
		unit = "kg"
	}
	if len(in.Description) > 1000 || len(in.ImageURL) > 500 {
		return domain.Product{}, fmt.Errorf("%w: description or imageUrl too long", domain.ErrValidation)
	}

	now := s.Now()
	p := domain.Product{
		FarmerID:     farmerID,
		CropName:     crop,
		PricePerKg:   in.PricePerKg,
		AvailableQty: in.AvailableQty,
		Unit:         unit,
		HarvestDate:  in.HarvestDate,
		Description:  strings.TrimSpace(in.Description),
		ImageURL:     strings.TrimSpace(in.ImageURL),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Prods.Create(ctx, &p); err != nil {
		return domain.Product{}, storeErr(err)
	}
	return p, nil
}

// Update changes price and stock of the farmer's own listing. Orders
// already placed keep their price snapshot.
func (s *CatalogService) Update(ctx context.Context, farmerID, productID int64, in ProductUpdate) (domain.Product, error) {
	if err := checkPriceQty(in.PricePerKg, in.AvailableQty); err != nil {
		return domain.Product{}, err
	}
	p, err := s.Prods.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, storeErr(err)
	}
	if p.FarmerID != farmerID {
		return domain.Product{}, fmt.Errorf("%w: %d", domain.ErrProductNotFound, productID)
	}
	p.PricePerKg = in.PricePerKg
	p.AvailableQty = in.AvailableQty
	p.UpdatedAt = s.Now()
	if err := s.Prods.Update(ctx, p); err != nil {
		return domain.Product{}, storeErr(err)
	}
	return p, nil
}

func (s *CatalogService) Delete(ctx context.Context, farmerID, productID int64) error {
	return storeErr(s.Prods.Delete(ctx, productID, farmerID))
}

func (s *CatalogService) ListForFarmer(ctx context.Context, farmerID int64) ([]domain.Product, error) {
	out, err := s.Prods.ListByFarmer(ctx, farmerID)
	return out, storeErr(err)
}

// Search lists in-stock products. With a location it keeps only farmers
// within the radius, nearest first.
func (s *CatalogService) Search(ctx context.Context, q SearchQuery) ([]domain.ProductListing, error) {
	if !validate.Coordinates(q.Lat, q.Lng) {
		return nil, fmt.Errorf("%w: lat and lng must be given together and in range", domain.ErrValidation)
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 || q.PageSize > 100 {
		q.PageSize = 24
	}
	offset := (q.Page - 1) * q.PageSize

	if q.Lat == nil {
		out, err := s.Prods.Search(ctx, repos.ProductFilter{Query: q.Crop, InStockOnly: true, Limit: q.PageSize, Offset: offset})
		return out, storeErr(err)
	}

	radius := q.RadiusKm
	if radius <= 0 {
		radius = DefaultRadiusKm
	}
	box := geo.BoundingBox(*q.Lat, *q.Lng, radius)
	var near []domain.ProductListing
	for scan := 0; ; scan += radiusScanPage {
		batch, err := s.Prods.Search(ctx, repos.ProductFilter{
			Query: q.Crop, InStockOnly: true, Near: &box, Limit: radiusScanPage, Offset: scan,
		})
		if err != nil {
			return nil, storeErr(err)
		}
		for _, p := range batch {
			if p.LocationLat == nil || p.LocationLng == nil {
				continue
			}
			d := geo.DistanceKm(*q.Lat, *q.Lng, *p.LocationLat, *p.LocationLng)
			if d > radius {
				continue
			}
			p.DistanceKm = &d
			near = append(near, p)
		}
		if len(batch) < radiusScanPage {
			break
		}
	}
	sort.SliceStable(near, func(i, j int) bool { return *near[i].DistanceKm < *near[j].DistanceKm })

	if offset >= len(near) {
		return []domain.ProductListing{}, nil
	}
	end := offset + q.PageSize
	if end > len(near) {
		end = len(near)
	}
	return near[offset:end], nil
}
