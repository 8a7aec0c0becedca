package entity

import "time"

const (
	OrderLinkStatusActive   = "active"
	OrderLinkStatusArchived = "archived"
	OrderLinkStatusClosed   = "closed"
)

// Order is the minimal order record the thread linker needs; full order
// management lives outside this core.
type Order struct {
	ID        int64     `json:"id"`
	VehicleID int64     `json:"vehicle_id"`
	BuyerID   int64     `json:"buyer_id"`
	SellerID  int64     `json:"seller_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// OrderConversationLink binds an order to exactly one conversation and vice
// versa. Creation is idempotent: re-linking returns the existing row.
type OrderConversationLink struct {
	ID             int64     `json:"id"`
	OrderID        int64     `json:"order_id"`
	ConversationID int64     `json:"conversation_id"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}
