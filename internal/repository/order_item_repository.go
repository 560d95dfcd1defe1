package repository

import (
	"context"

	"app/internal/domain/model"
)

type OrderItemRepository interface {
	FindByID(ctx context.Context, itemID int64) (model.OrderItem, error)
	CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error
	ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error)

	//返品ステータスのCAS更新。reasonは REQUESTED へ移る時だけ格納する。
	UpdateReturnStatusFrom(ctx context.Context, itemID int64, from, to model.ReturnStatus, reason string) error

	DeleteByOrderID(ctx context.Context, orderID int64) error
}
