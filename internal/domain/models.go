package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID           int64           `db:"id" json:"id"`
	FarmerID     int64           `db:"farmer_id" json:"farmerId"`
	CropName     string          `db:"crop_name" json:"cropName"`
	PricePerKg   decimal.Decimal `db:"price_per_kg" json:"pricePerKg"`
	AvailableQty decimal.Decimal `db:"available_qty" json:"availableQty"`
	Unit         string          `db:"unit" json:"unit"`
	HarvestDate  *time.Time      `db:"harvest_date" json:"harvestDate,omitempty"`
	Description  string          `db:"description" json:"description,omitempty"`
	ImageURL     string          `db:"image_url" json:"imageUrl,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updatedAt"`
}

// ProductListing is a product joined with its farmer's public profile.
type ProductListing struct {
	Product
	FarmerName   string   `db:"farmer_name" json:"farmerName"`
	LocationLat  *float64 `db:"location_lat" json:"locationLat,omitempty"`
	LocationLng  *float64 `db:"location_lng" json:"locationLng,omitempty"`
	LocationText string   `db:"location_text" json:"locationText,omitempty"`
	DistanceKm   *float64 `db:"-" json:"distanceKm,omitempty"`
}

type PaymentMethod string

const (
	PaymentCOD PaymentMethod = "COD"
	PaymentUPI PaymentMethod = "UPI"
)

type Order struct {
	ID               int64           `db:"id" json:"id"`
	UUID             string          `db:"order_uuid" json:"uuid"`
	BuyerID          int64           `db:"buyer_id" json:"buyerId"`
	TotalAmount      decimal.Decimal `db:"total_amount" json:"totalAmount"`
	PaymentMethod    PaymentMethod   `db:"payment_method" json:"paymentMethod"`
	PaymentReference string          `db:"payment_reference" json:"paymentReference,omitempty"`
	Status           Status          `db:"status" json:"status"`
	DeliveryAddress  string          `db:"delivery_address" json:"deliveryAddress"`
	DeliverySlot     string          `db:"delivery_slot" json:"deliverySlot"`
	CreatedAt        time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updatedAt"`
}

type OrderItem struct {
	ID         int64           `db:"id" json:"id"`
	OrderID    int64           `db:"order_id" json:"orderId"`
	ProductID  int64           `db:"product_id" json:"productId"`
	FarmerID   int64           `db:"farmer_id" json:"farmerId"`
	Quantity   decimal.Decimal `db:"quantity" json:"quantity"`
	PricePerKg decimal.Decimal `db:"price_per_kg" json:"pricePerKg"`
	LineTotal  decimal.Decimal `db:"line_total" json:"lineTotal"`
}

// OrderLine is one flat row of the order ⋈ order_items read model, ordered
// newest order first. Views are grouped from these rows.
type OrderLine struct {
	OrderID         int64           `db:"order_id"`
	OrderUUID       string          `db:"order_uuid"`
	BuyerID         int64           `db:"buyer_id"`
	BuyerName       string          `db:"buyer_name"`
	BuyerLocation   string          `db:"buyer_location"`
	Status          Status          `db:"status"`
	TotalAmount     decimal.Decimal `db:"total_amount"`
	PaymentMethod   PaymentMethod   `db:"payment_method"`
	DeliveryAddress string          `db:"delivery_address"`
	DeliverySlot    string          `db:"delivery_slot"`
	CreatedAt       time.Time       `db:"created_at"`
	ItemID          int64           `db:"item_id"`
	ProductID       int64           `db:"product_id"`
	CropName        string          `db:"crop_name"`
	FarmerID        int64           `db:"farmer_id"`
	FarmerName      string          `db:"farmer_name"`
	Quantity        decimal.Decimal `db:"quantity"`
	PricePerKg      decimal.Decimal `db:"price_per_kg"`
	LineTotal       decimal.Decimal `db:"line_total"`
}

type OrderView struct {
	ID              int64           `json:"id"`
	UUID            string          `json:"uuid"`
	Status          Status          `json:"status"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	DeliveryAddress string          `json:"deliveryAddress"`
	DeliverySlot    string          `json:"deliverySlot"`
	BuyerName       string          `json:"buyerName,omitempty"`
	BuyerLocation   string          `json:"buyerLocation,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	Items           []OrderItemView `json:"items"`
}

type OrderItemView struct {
	ItemID     int64           `json:"itemId"`
	ProductID  int64           `json:"productId"`
	CropName   string          `json:"cropName"`
	FarmerID   int64           `json:"farmerId"`
	FarmerName string          `json:"farmerName,omitempty"`
	Quantity   decimal.Decimal `json:"quantity"`
	PricePerKg decimal.Decimal `json:"pricePerKg"`
	LineTotal  decimal.Decimal `json:"lineTotal"`
}

type Earnings struct {
	Total           decimal.Decimal `json:"total"`
	Today           decimal.Decimal `json:"today"`
	DeliveredOrders int             `json:"deliveredOrders"`
}

type Availability struct {
	Status string          `json:"status"` // IN_STOCK | LOW_STOCK | OUT_OF_STOCK
	Qty    decimal.Decimal `json:"qty"`
}
