package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodCOD    PaymentMethod = "COD"
	PaymentMethodMomo   PaymentMethod = "MOMO"
	PaymentMethodPayPal PaymentMethod = "PAYPAL"
	PaymentMethodVNPay  PaymentMethod = "VNPAY"
	PaymentMethodBank   PaymentMethod = "BANK"
)

func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch PaymentMethod(s) {
	case PaymentMethodCOD, PaymentMethodMomo, PaymentMethodPayPal,
		PaymentMethodVNPay, PaymentMethodBank:
		return PaymentMethod(s), true
	default:
		return "", false
	}
}

// ゲートウェイ経由の決済か（COD以外）
func (m PaymentMethod) IsOnline() bool {
	return m != PaymentMethodCOD
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

func ParsePaymentStatus(s string) (PaymentStatus, bool) {
	switch PaymentStatus(s) {
	case PaymentStatusPending, PaymentStatusCompleted,
		PaymentStatusFailed, PaymentStatusRefunded:
		return PaymentStatus(s), true
	default:
		return "", false
	}
}

// FAILED / REFUNDED は終端
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusFailed || s == PaymentStatusRefunded
}

// 通常フローの遷移。PENDING → {COMPLETED|FAILED}、COMPLETED → REFUNDED。
// 管理者の直接編集ルール（CODは自由、オンラインはキャンセル済み注文のみ）は
// usecase 側で判定する。
func (s PaymentStatus) CanTransitionTo(to PaymentStatus) bool {
	switch s {
	case PaymentStatusPending:
		return to == PaymentStatusCompleted || to == PaymentStatusFailed
	case PaymentStatusCompleted:
		return to == PaymentStatusRefunded
	default:
		return false
	}
}

// 注文と1:1の決済レコード。注文の削除後も監査用に残す（所有ではなく参照）。
type Payment struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID       int64           `gorm:"not null;uniqueIndex" json:"order_id"`
	UserID        int64           `gorm:"not null;index" json:"user_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Method        PaymentMethod   `gorm:"type:varchar(20);not null" json:"method"`
	Status        PaymentStatus   `gorm:"type:varchar(20);not null;index" json:"status"`
	Reference     string          `gorm:"type:varchar(64);not null;uniqueIndex" json:"reference"`
	TransactionID string          `gorm:"type:varchar(255)" json:"transaction_id,omitempty"`
	Note          string          `gorm:"type:varchar(500)" json:"note,omitempty"`
	CreatedAt     time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
