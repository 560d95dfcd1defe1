package repository

import (
	"context"
	"errors"
	"time"

	"app/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

// 読み取り時のステータスとCASの期待値が一致しなかった（並行更新）。
var ErrConflict = errors.New("conflict")

type AdminOrderListFilter struct {
	Page   int
	Limit  int
	Status string
	UserID *int64
	From   *time.Time
	To     *time.Time
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error)
	Create(ctx context.Context, order model.Order) (int64, error)

	//ステータスのCAS更新。行のステータスがfromのままの時だけtoへ書く。
	//他と競合して外れたらErrConflict。
	UpdateStatusFrom(ctx context.Context, orderID int64, from, to model.OrderStatus) error

	//決済ステータスの非正規化ビューを同期する。
	UpdatePaymentStatus(ctx context.Context, orderID int64, status model.PaymentStatus) error

	//物理削除（明細もまとめて消す。決済レコードは残す）。
	Delete(ctx context.Context, orderID int64) error

	//検索（同じキーなら同じ結果を返す）
	FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error)
	//管理者用の注文一覧
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, int64, error)
}
