package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type ReturnStatus string

const (
	ReturnStatusNone      ReturnStatus = "NONE"
	ReturnStatusRequested ReturnStatus = "REQUESTED"
	ReturnStatusApproved  ReturnStatus = "APPROVED"
	ReturnStatusRejected  ReturnStatus = "REJECTED"
	ReturnStatusCompleted ReturnStatus = "COMPLETED"
)

func ParseReturnDecision(s string) (ReturnStatus, bool) {
	switch ReturnStatus(s) {
	case ReturnStatusApproved, ReturnStatusRejected:
		return ReturnStatus(s), true
	default:
		return "", false
	}
}

// 返品は NONE → REQUESTED → {APPROVED|REJECTED}、APPROVED → COMPLETED のみ。
// 注文ステータスとは独立した明細単位の状態機械。
func (s ReturnStatus) CanTransitionTo(to ReturnStatus) bool {
	switch s {
	case ReturnStatusNone:
		return to == ReturnStatusRequested
	case ReturnStatusRequested:
		return to == ReturnStatusApproved || to == ReturnStatusRejected
	case ReturnStatusApproved:
		return to == ReturnStatusCompleted
	default:
		return false
	}
}

type OrderItem struct {
	ID                  int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID             int64           `gorm:"not null;index" json:"order_id"`
	ProductID           int64           `gorm:"not null;index" json:"product_id"`
	ProductNameSnapshot string          `gorm:"type:varchar(255);not null" json:"product_name_snapshot"`
	UnitPriceSnapshot   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price_snapshot"`
	Quantity            int64           `gorm:"not null" json:"quantity"`
	Subtotal            decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	ReturnStatus        ReturnStatus    `gorm:"type:varchar(20);not null;default:NONE" json:"return_status"`
	ReturnReason        string          `gorm:"type:varchar(500)" json:"return_reason,omitempty"`
	CreatedAt           time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
}
