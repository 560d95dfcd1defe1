package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCanceled   OrderStatus = "CANCELED"
)

// 有効なステータス文字列か確認して OrderStatus に変換する
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch OrderStatus(s) {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCanceled:
		return OrderStatus(s), true
	default:
		return "", false
	}
}

// DELIVERED / CANCELED は終端
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCanceled
}

// 遷移ルールはここに集約する（文字列比較を散らばらせない）。
//   - CANCELED へは終端以外のどこからでも可
//   - DELIVERED へは SHIPPED からのみ（受取アクション）
//   - 前進系（PENDING/CONFIRMED/PROCESSING/SHIPPED）同士は管理者の訂正用に行き来できる
func (s OrderStatus) CanTransitionTo(to OrderStatus) bool {
	if s == to {
		return false
	}
	if s.IsTerminal() {
		return false
	}
	switch to {
	case OrderStatusCanceled:
		return true
	case OrderStatusDelivered:
		return s == OrderStatusShipped
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing, OrderStatusShipped:
		return true
	default:
		return false
	}
}

type Order struct {
	ID              int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID          int64           `gorm:"not null;index" json:"user_id"`
	ShippingAddress string          `gorm:"type:varchar(500);not null" json:"shipping_address"`
	Status          OrderStatus     `gorm:"type:varchar(20);not null;index" json:"status"`
	PaymentMethod   PaymentMethod   `gorm:"type:varchar(20);not null" json:"payment_method"`
	PaymentStatus   PaymentStatus   `gorm:"type:varchar(20);not null;index" json:"payment_status"`
	TotalPrice      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_price"`
	IdempotencyKey  string          `gorm:"type:varchar(255);not null;uniqueIndex" json:"-"`
	CreatedAt       time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
