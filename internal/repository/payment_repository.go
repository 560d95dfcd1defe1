package repository

import (
	"context"

	"app/internal/domain/model"
)

type PaymentRepository interface {
	FindByID(ctx context.Context, paymentID int64) (model.Payment, error)
	//注文と決済は1:1
	FindByOrderID(ctx context.Context, orderID int64) (model.Payment, error)
	Create(ctx context.Context, payment model.Payment) (int64, error)

	//ステータスのCAS更新。fromから動いていたらErrConflict。
	//transactionID / note は空文字なら触らない。
	UpdateStatusFrom(ctx context.Context, paymentID int64, from, to model.PaymentStatus, transactionID, note string) error
}
