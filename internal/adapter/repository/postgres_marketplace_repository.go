package repository

import (
	"context"
	"database/sql"
	"errors"

	"otomart/internal/domain/entity"
	"otomart/internal/domain/repository"
	apperrors "otomart/pkg/errors"
)

type postgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *Database) repository.UserRepository {
	return &postgresUserRepository{db: db.Conn}
}

func (r *postgresUserRepository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	var u entity.User
	err := withRetry(ctx, func() error {
		return r.db.QueryRowContext(ctx, `
            SELECT id, username, email, role, created_at FROM users WHERE id = $1`, id,
		).Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.CreatedAt)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("User", err)
		}
		return nil, err
	}
	return &u, nil
}

type postgresVehicleRepository struct {
	db *sql.DB
}

func NewPostgresVehicleRepository(db *Database) repository.VehicleRepository {
	return &postgresVehicleRepository{db: db.Conn}
}

func (r *postgresVehicleRepository) GetByID(ctx context.Context, id int64) (*entity.Vehicle, error) {
	var v entity.Vehicle
	err := withRetry(ctx, func() error {
		return r.db.QueryRowContext(ctx, `
            SELECT id, seller_id, title, price, status, created_at
            FROM vehicles WHERE id = $1`, id,
		).Scan(&v.ID, &v.SellerID, &v.Title, &v.Price, &v.Status, &v.CreatedAt)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("Vehicle", err)
		}
		return nil, err
	}
	return &v, nil
}

type postgresOrderRepository struct {
	db *sql.DB
}

func NewPostgresOrderRepository(db *Database) repository.OrderRepository {
	return &postgresOrderRepository{db: db.Conn}
}

func (r *postgresOrderRepository) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	var o entity.Order
	err := withRetry(ctx, func() error {
		return r.db.QueryRowContext(ctx, `
            SELECT id, vehicle_id, buyer_id, seller_id, status, created_at
            FROM orders WHERE id = $1`, id,
		).Scan(&o.ID, &o.VehicleID, &o.BuyerID, &o.SellerID, &o.Status, &o.CreatedAt)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("Order", err)
		}
		return nil, err
	}
	return &o, nil
}
