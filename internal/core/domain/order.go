package domain

import "time"

// Order is a purchase created by an authenticated user. Orders are never
// mutated once created.
type Order struct {
	ID        int64     `json:"id" bson:"_id"`
	Address   string    `json:"address" bson:"address"`
	Item      string    `json:"item" bson:"item"`
	CreatedBy int64     `json:"created_by" bson:"created_by"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// CreateOrderInput is the body of POST /api/orders.
type CreateOrderInput struct {
	Address string `json:"address" validate:"required,max=512"`
	Item    string `json:"item" validate:"required,max=255"`
}
