package usecase

import (
	"context"
	"net/http"
	"strings"

	"app/internal/domain/model"
	repo "app/internal/repository"
)

type AdminOrderUsecase struct {
	tx     repo.TransactionManager
	sm     *OrderStateMachine
	orders *OrderUsecase
}

func NewAdminOrderUsecase(tx repo.TransactionManager, sm *OrderStateMachine, orders *OrderUsecase) *AdminOrderUsecase {
	return &AdminOrderUsecase{tx: tx, sm: sm, orders: orders}
}

type AdminUpdateOrderStatusInput struct {
	Status string
}

type AdminUpdateOrderStatusOutput struct {
	OrderID int64  `json:"order_id"`
	Status  string `json:"status"`

	//キャンセル遷移のときだけ意味を持つ
	RefundTriggered bool   `json:"refund_triggered,omitempty"`
	RefundError     string `json:"refund_error,omitempty"`
}

// 注文一覧
func (u *AdminOrderUsecase) List(ctx context.Context, f repo.AdminOrderListFilter) ([]OrderOutput, error) {
	if f.Page < 1 {
		return []OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if f.Limit < 1 || f.Limit > 100 {
		return []OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}

	var outs []OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, _, err := r.Orders().ListAdmin(ctx, f)
		if err != nil {
			return repoError(err)
		}

		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return repoError(err)
			}
			outs = append(outs, toOrderOutput(o, items))
		}
		return nil
	})

	if err != nil {
		return []OrderOutput{}, err
	}
	return outs, nil
}

// ステータス更新。CANCELEDだけはキャンセル編成（遷移→自動返金）を通す。
func (u *AdminOrderUsecase) UpdateStatus(ctx context.Context, actorUserID int64, actorRole string, orderID int64, in AdminUpdateOrderStatusInput) (AdminUpdateOrderStatusOutput, error) {
	if actorUserID <= 0 {
		return AdminUpdateOrderStatusOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if actorRole != RoleAdmin {
		return AdminUpdateOrderStatusOutput{}, NewHTTPError(http.StatusForbidden, "forbidden")
	}
	if orderID <= 0 {
		return AdminUpdateOrderStatusOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	target, ok := model.ParseOrderStatus(strings.TrimSpace(in.Status))
	if !ok {
		return AdminUpdateOrderStatusOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	if target == model.OrderStatusCanceled {
		res, err := u.orders.CancelOrder(ctx, actorUserID, actorRole, orderID)
		if err != nil {
			return AdminUpdateOrderStatusOutput{}, err
		}
		return AdminUpdateOrderStatusOutput{
			OrderID:         res.OrderID,
			Status:          res.Status,
			RefundTriggered: res.RefundTriggered,
			RefundError:     res.RefundError,
		}, nil
	}

	res, err := u.sm.Transition(ctx, actorUserID, orderID, target)
	if err != nil {
		return AdminUpdateOrderStatusOutput{}, err
	}
	return AdminUpdateOrderStatusOutput{
		OrderID: res.OrderID,
		Status:  string(res.To),
	}, nil
}

// 物理削除
func (u *AdminOrderUsecase) Delete(ctx context.Context, actorUserID int64, actorRole string, orderID int64) error {
	return u.orders.DeleteOrder(ctx, actorUserID, actorRole, orderID)
}
