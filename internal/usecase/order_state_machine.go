package usecase

import (
	"context"
	"net/http"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"
)

// 注文ステータスの状態機械。遷移の検証と適用だけを担当し、
// キャンセル時は返金判定に必要な情報（決済方法・直前の決済ステータス）を返す。
type OrderStateMachine struct {
	tx    repo.TransactionManager
	audit repo.AuditLogRepository
}

func NewOrderStateMachine(tx repo.TransactionManager, audit repo.AuditLogRepository) *OrderStateMachine {
	return &OrderStateMachine{tx: tx, audit: audit}
}

type TransitionResult struct {
	OrderID int64
	From    model.OrderStatus
	To      model.OrderStatus

	//すでに目標ステータスだった場合はfalse（リトライの吸収）
	Applied bool

	//キャンセル遷移のときだけtrue。返金判定はorchestratorがこれを見て行う。
	Canceled      bool
	PaymentMethod model.PaymentMethod
	PaymentStatus model.PaymentStatus
}

// 1注文分の読み取り〜書き込みを1トランザクションで行う。
// 書き込みは読み取ったステータスからのCASなので、同じ注文への同時遷移は片方が409になる。
func (m *OrderStateMachine) Transition(ctx context.Context, actorUserID int64, orderID int64, target model.OrderStatus) (TransitionResult, error) {
	if orderID <= 0 {
		return TransitionResult{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var result TransitionResult

	err := m.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err != nil {
			return repoError(err)
		}

		//すでに目標ステータスなら何もしない。キャンセルだけは
		//返金リトライのために「キャンセル済み」情報を返す。
		if o.Status == target {
			result = TransitionResult{
				OrderID:       orderID,
				From:          o.Status,
				To:            target,
				Applied:       false,
				Canceled:      target == model.OrderStatusCanceled,
				PaymentMethod: o.PaymentMethod,
				PaymentStatus: o.PaymentStatus,
			}
			return nil
		}

		if !o.Status.CanTransitionTo(target) {
			return NewHTTPError(http.StatusBadRequest, "invalid transition")
		}

		if err := r.Orders().UpdateStatusFrom(ctx, orderID, o.Status, target); err != nil {
			return repoError(err)
		}

		if actorUserID > 0 {
			beforeJSON := `{"status":"` + string(o.Status) + `"}`
			afterJSON := `{"status":"` + string(target) + `"}`
			if err := m.audit.Create(ctx, model.AuditLog{
				ActorUserID:  actorUserID,
				Action:       model.AuditActionUpdateOrderStatus,
				ResourceType: model.AuditResourceOrder,
				ResourceID:   orderID,
				BeforeJSON:   beforeJSON,
				AfterJSON:    afterJSON,
				CreatedAt:    time.Now(),
			}); err != nil {
				return repoError(err)
			}
		}

		result = TransitionResult{
			OrderID:       orderID,
			From:          o.Status,
			To:            target,
			Applied:       true,
			Canceled:      target == model.OrderStatusCanceled,
			PaymentMethod: o.PaymentMethod,
			PaymentStatus: o.PaymentStatus,
		}
		return nil
	})

	if err != nil {
		return TransitionResult{}, err
	}
	return result, nil
}
