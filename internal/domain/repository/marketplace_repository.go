package repository

import (
	"context"

	"otomart/internal/domain/entity"
)

type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.User, error)
}

type VehicleRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.Vehicle, error)
}

type OrderRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.Order, error)
}

type OrderLinkRepository interface {
	GetByOrderID(ctx context.Context, orderID int64) (*entity.OrderConversationLink, error)
	// Create inserts the 1:1 link. On a conflicting order the existing link
	// is returned with created=false, making linking idempotent under races.
	Create(ctx context.Context, link *entity.OrderConversationLink) (*entity.OrderConversationLink, bool, error)
}
