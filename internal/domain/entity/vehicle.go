package entity

import "time"

// Vehicle is the minimal listing record used for order context in system
// messages and conversation embeds; catalog management is external.
type Vehicle struct {
	ID        int64     `json:"id"`
	SellerID  int64     `json:"seller_id"`
	Title     string    `json:"title"`
	Price     float64   `json:"price"`
	Status    string    `json:"status,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
