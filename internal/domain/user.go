package domain

import "time"

const (
	RoleFarmer   = "farmer"
	RoleConsumer = "consumer"
	RoleAdmin    = "admin"
)

type User struct {
	ID           int64     `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	Hash         string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	LocationLat  *float64  `db:"location_lat" json:"locationLat,omitempty"`
	LocationLng  *float64  `db:"location_lng" json:"locationLng,omitempty"`
	LocationText string    `db:"location_text" json:"locationText,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}
