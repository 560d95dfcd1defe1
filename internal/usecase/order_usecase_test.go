package usecase_test

import (
	"context"
	"errors"
	"testing"

	"app/internal/domain/model"
	"app/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type orderFixture struct {
	uc       *usecase.OrderUsecase
	tx       *TxManagerMock
	orders   *OrderRepoMock
	items    *OrderItemRepoMock
	payments *PaymentRepoMock
	audit    *AuditRepoMock
}

func newOrderFixture() orderFixture {
	orders := new(OrderRepoMock)
	items := new(OrderItemRepoMock)
	payments := new(PaymentRepoMock)
	tx := &TxManagerMock{Repos: &TxReposMock{orders: orders, orderItems: items, payments: payments}}
	audit := new(AuditRepoMock)

	sm := usecase.NewOrderStateMachine(tx, audit)
	paymentUC := usecase.NewPaymentUsecase(tx, audit)
	uc := usecase.NewOrderUsecase(tx, sm, paymentUC, audit, &fixedIDGen{id: "ref-0001"}, zap.NewNop())

	return orderFixture{uc: uc, tx: tx, orders: orders, items: items, payments: payments, audit: audit}
}

// VNPAY入金済みの注文をキャンセル → 注文CANCELED、決済REFUNDED
func TestOrderUsecase_Cancel_OnlineCompletedRefunds(t *testing.T) {
	f := newOrderFixture()

	f.tx.On("WithinTx", mock.Anything).Return(nil)
	f.orders.On("FindByID", mock.Anything, int64(10)).
		Return(model.Order{ID: 10, Status: model.OrderStatusConfirmed, PaymentMethod: model.PaymentMethodVNPay, PaymentStatus: model.PaymentStatusCompleted}, nil)
	f.orders.On("UpdateStatusFrom", mock.Anything, int64(10), model.OrderStatusConfirmed, model.OrderStatusCanceled).Return(nil)
	f.payments.On("FindByOrderID", mock.Anything, int64(10)).
		Return(model.Payment{ID: 5, OrderID: 10, Method: model.PaymentMethodVNPay, Status: model.PaymentStatusCompleted}, nil)
	f.payments.On("UpdateStatusFrom", mock.Anything, int64(5), model.PaymentStatusCompleted, model.PaymentStatusRefunded, "", "auto refund on order cancellation").Return(nil)
	f.orders.On("UpdatePaymentStatus", mock.Anything, int64(10), model.PaymentStatusRefunded).Return(nil)
	f.audit.On("Create", mock.Anything, mock.Anything).Return(nil)

	out, err := f.uc.CancelOrder(context.Background(), 1, usecase.RoleAdmin, 10)
	assert.NoError(t, err)
	assert.Equal(t, "CANCELED", out.Status)
	assert.True(t, out.RefundTriggered)
	assert.Empty(t, out.RefundError)
	f.payments.AssertExpectations(t)
}

// COD未入金の注文をキャンセル → 決済は触らない
func TestOrderUsecase_Cancel_CODNoRefund(t *testing.T) {
	f := newOrderFixture()

	f.tx.On("WithinTx", mock.Anything).Return(nil)
	f.orders.On("FindByID", mock.Anything, int64(20)).
		Return(model.Order{ID: 20, Status: model.OrderStatusPending, PaymentMethod: model.PaymentMethodCOD, PaymentStatus: model.PaymentStatusPending}, nil)
	f.orders.On("UpdateStatusFrom", mock.Anything, int64(20), model.OrderStatusPending, model.OrderStatusCanceled).Return(nil)
	f.payments.On("FindByOrderID", mock.Anything, int64(20)).
		Return(model.Payment{ID: 6, OrderID: 20, Method: model.PaymentMethodCOD, Status: model.PaymentStatusPending}, nil)
	f.audit.On("Create", mock.Anything, mock.Anything).Return(nil)

	out, err := f.uc.CancelOrder(context.Background(), 1, usecase.RoleAdmin, 20)
	assert.NoError(t, err)
	assert.False(t, out.RefundTriggered)
	f.payments.AssertNotCalled(t, "UpdateStatusFrom", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// 返金ステップだけ失敗 → キャンセルは残り、失敗は別枠で報告される
func TestOrderUsecase_Cancel_RefundStepFails(t *testing.T) {
	f := newOrderFixture()

	f.tx.On("WithinTx", mock.Anything).Return(nil)
	f.orders.On("FindByID", mock.Anything, int64(10)).
		Return(model.Order{ID: 10, Status: model.OrderStatusShipped, PaymentMethod: model.PaymentMethodMomo, PaymentStatus: model.PaymentStatusCompleted}, nil)
	f.orders.On("UpdateStatusFrom", mock.Anything, int64(10), model.OrderStatusShipped, model.OrderStatusCanceled).Return(nil)
	f.payments.On("FindByOrderID", mock.Anything, int64(10)).
		Return(model.Payment{ID: 5, OrderID: 10, Method: model.PaymentMethodMomo, Status: model.PaymentStatusCompleted}, nil)
	f.payments.On("UpdateStatusFrom", mock.Anything, int64(5), model.PaymentStatusCompleted, model.PaymentStatusRefunded, "", "auto refund on order cancellation").
		Return(errors.New("gateway unreachable"))
	f.audit.On("Create", mock.Anything, mock.Anything).Return(nil)

	out, err := f.uc.CancelOrder(context.Background(), 1, usecase.RoleAdmin, 10)
	assert.NoError(t, err)
	assert.Equal(t, "CANCELED", out.Status)
	assert.False(t, out.RefundTriggered)
	assert.Equal(t, "upstream failure", out.RefundError)
}

// キャンセル済み注文へのリトライ：注文遷移は飛ばして返金だけやり直す
func TestOrderUsecase_Cancel_RetryAfterRefundFailure(t *testing.T) {
	f := newOrderFixture()

	f.tx.On("WithinTx", mock.Anything).Return(nil)
	f.orders.On("FindByID", mock.Anything, int64(10)).
		Return(model.Order{ID: 10, Status: model.OrderStatusCanceled, PaymentMethod: model.PaymentMethodMomo, PaymentStatus: model.PaymentStatusCompleted}, nil)
	f.payments.On("FindByOrderID", mock.Anything, int64(10)).
		Return(model.Payment{ID: 5, OrderID: 10, Method: model.PaymentMethodMomo, Status: model.PaymentStatusCompleted}, nil)
	f.payments.On("UpdateStatusFrom", mock.Anything, int64(5), model.PaymentStatusCompleted, model.PaymentStatusRefunded, "", "auto refund on order cancellation").Return(nil)
	f.orders.On("UpdatePaymentStatus", mock.Anything, int64(10), model.PaymentStatusRefunded).Return(nil)
	f.audit.On("Create", mock.Anything, mock.Anything).Return(nil)

	out, err := f.uc.CancelOrder(context.Background(), 1, usecase.RoleAdmin, 10)
	assert.NoError(t, err)
	assert.True(t, out.AlreadyCanceled)
	assert.True(t, out.RefundTriggered)
	f.orders.AssertNotCalled(t, "UpdateStatusFrom", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderUsecase_Cancel_ForbiddenRole(t *testing.T) {
	f := newOrderFixture()

	_, err := f.uc.CancelOrder(context.Background(), 2, usecase.RoleUser, 10)
	assertErrContains(t, err, "forbidden")
	f.orders.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

// DELIVERED済みはキャンセルできない
func TestOrderUsecase_Cancel_DeliveredFails(t *testing.T) {
	f := newOrderFixture()

	f.tx.On("WithinTx", mock.Anything).Return(nil)
	f.orders.On("FindByID", mock.Anything, int64(10)).
		Return(model.Order{ID: 10, Status: model.OrderStatusDelivered}, nil)

	_, err := f.uc.CancelOrder(context.Background(), 1, usecase.RoleAdmin, 10)
	assertErrContains(t, err, "invalid transition")
	f.payments.AssertNotCalled(t, "FindByOrderID", mock.Anything, mock.Anything)
}

func TestOrderUsecase_PlaceOrder(t *testing.T) {
	f := newOrderFixture()

	f.tx.On("WithinTx", mock.Anything).Return(nil)
	f.orders.On("FindByIdempotencyKey", mock.Anything, int64(2), "key-1").Return(model.Order{}, false, nil)

	//合計 = 19.99*3 + 5.00*1 = 64.97
	wantTotal := decimal.RequireFromString("64.97")

	f.orders.On("Create", mock.Anything, mock.MatchedBy(func(o model.Order) bool {
		return o.UserID == 2 &&
			o.Status == model.OrderStatusPending &&
			o.PaymentMethod == model.PaymentMethodVNPay &&
			o.TotalPrice.Equal(wantTotal)
	})).Return(int64(10), nil)
	f.items.On("CreateBulk", mock.Anything, int64(10), mock.MatchedBy(func(items []model.OrderItem) bool {
		return len(items) == 2 &&
			items[0].Subtotal.Equal(decimal.RequireFromString("59.97")) &&
			items[1].Subtotal.Equal(decimal.RequireFromString("5.00"))
	})).Return(nil)
	f.payments.On("Create", mock.Anything, mock.MatchedBy(func(p model.Payment) bool {
		return p.OrderID == 10 &&
			p.UserID == 2 &&
			p.Method == model.PaymentMethodVNPay &&
			p.Status == model.PaymentStatusPending &&
			p.Amount.Equal(wantTotal) &&
			p.Reference == "ref-0001"
	})).Return(int64(5), nil)

	out, err := f.uc.PlaceOrder(context.Background(), 2, usecase.PlaceOrderInput{
		ShippingAddress: "1-2-3 Harbor St",
		PaymentMethod:   "VNPAY",
		IdempotencyKey:  "key-1",
		Items: []usecase.PlaceOrderItemInput{
			{ProductID: 3, ProductName: "mug", UnitPrice: decimal.RequireFromString("19.99"), Quantity: 3},
			{ProductID: 4, ProductName: "coaster", UnitPrice: decimal.RequireFromString("5.00"), Quantity: 1},
		},
	})
	assert.NoError(t, err)
	assert.Equal(t, "64.97", out.TotalPrice)
	assert.Equal(t, "PENDING", out.PaymentStatus)
	f.payments.AssertExpectations(t)
}

// 同じキーなら既存の注文をそのまま返す
func TestOrderUsecase_PlaceOrder_IdempotentReplay(t *testing.T) {
	f := newOrderFixture()

	existing := model.Order{ID: 10, UserID: 2, Status: model.OrderStatusPending, PaymentMethod: model.PaymentMethodCOD, TotalPrice: decimal.NewFromInt(100)}

	f.tx.On("WithinTx", mock.Anything).Return(nil)
	f.orders.On("FindByIdempotencyKey", mock.Anything, int64(2), "key-1").Return(existing, true, nil)
	f.items.On("ListByOrderID", mock.Anything, int64(10)).Return([]model.OrderItem{}, nil)

	out, err := f.uc.PlaceOrder(context.Background(), 2, usecase.PlaceOrderInput{
		ShippingAddress: "1-2-3 Harbor St",
		PaymentMethod:   "COD",
		IdempotencyKey:  "key-1",
		Items: []usecase.PlaceOrderItemInput{
			{ProductID: 3, ProductName: "mug", UnitPrice: decimal.NewFromInt(100), Quantity: 1},
		},
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(10), out.ID)
	f.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.payments.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestOrderUsecase_PlaceOrder_NegativePrice(t *testing.T) {
	f := newOrderFixture()

	_, err := f.uc.PlaceOrder(context.Background(), 2, usecase.PlaceOrderInput{
		ShippingAddress: "1-2-3 Harbor St",
		PaymentMethod:   "COD",
		IdempotencyKey:  "key-1",
		Items: []usecase.PlaceOrderItemInput{
			{ProductID: 3, ProductName: "mug", UnitPrice: decimal.RequireFromString("-1.00"), Quantity: 1},
		},
	})
	assertErrContains(t, err, "invalid item")
}

func TestOrderUsecase_Receive(t *testing.T) {
	f := newOrderFixture()

	f.tx.On("WithinTx", mock.Anything).Return(nil)
	f.orders.On("FindByID", mock.Anything, int64(10)).
		Return(model.Order{ID: 10, UserID: 2, Status: model.OrderStatusShipped}, nil)
	f.orders.On("UpdateStatusFrom", mock.Anything, int64(10), model.OrderStatusShipped, model.OrderStatusDelivered).Return(nil)
	f.items.On("ListByOrderID", mock.Anything, int64(10)).Return([]model.OrderItem{}, nil)

	out, err := f.uc.ReceiveOrder(context.Background(), 2, 10)
	assert.NoError(t, err)
	assert.Equal(t, "DELIVERED", out.Status)
}

// 発送前の受取確定はできない
func TestOrderUsecase_Receive_NotShipped(t *testing.T) {
	f := newOrderFixture()

	f.tx.On("WithinTx", mock.Anything).Return(nil)
	f.orders.On("FindByID", mock.Anything, int64(10)).
		Return(model.Order{ID: 10, UserID: 2, Status: model.OrderStatusProcessing}, nil)

	_, err := f.uc.ReceiveOrder(context.Background(), 2, 10)
	assertErrContains(t, err, "invalid transition")
}

// 他人の注文は受取確定できない（存在しない扱い）
func TestOrderUsecase_Receive_NotOwner(t *testing.T) {
	f := newOrderFixture()

	f.tx.On("WithinTx", mock.Anything).Return(nil)
	f.orders.On("FindByID", mock.Anything, int64(10)).
		Return(model.Order{ID: 10, UserID: 2, Status: model.OrderStatusShipped}, nil)

	_, err := f.uc.ReceiveOrder(context.Background(), 99, 10)
	assertErrContains(t, err, "not found")
}

// 削除は明細ごと消すが、決済レコードは残す
func TestOrderUsecase_Delete(t *testing.T) {
	f := newOrderFixture()

	f.tx.On("WithinTx", mock.Anything).Return(nil)
	f.orders.On("FindByID", mock.Anything, int64(10)).
		Return(model.Order{ID: 10, Status: model.OrderStatusCanceled, TotalPrice: decimal.NewFromInt(100)}, nil)
	f.items.On("DeleteByOrderID", mock.Anything, int64(10)).Return(nil)
	f.orders.On("Delete", mock.Anything, int64(10)).Return(nil)
	f.audit.On("Create", mock.Anything, mock.MatchedBy(func(l model.AuditLog) bool {
		return l.Action == model.AuditActionDeleteOrder && l.ResourceID == 10
	})).Return(nil)

	err := f.uc.DeleteOrder(context.Background(), 1, usecase.RoleAdmin, 10)
	assert.NoError(t, err)
	f.items.AssertExpectations(t)
	f.audit.AssertExpectations(t)
}

func TestOrderUsecase_Delete_ForbiddenRole(t *testing.T) {
	f := newOrderFixture()

	err := f.uc.DeleteOrder(context.Background(), 2, usecase.RoleUser, 10)
	assertErrContains(t, err, "forbidden")
	f.orders.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}
