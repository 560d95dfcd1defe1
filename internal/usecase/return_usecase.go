package usecase

import (
	"context"
	"net/http"
	"strings"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"
)

// 明細単位の返品ワークフロー。注文ステータスとは独立の状態機械だが、
// リクエスト受付だけは「注文がDELIVERED」であることをここで再確認する
// （キャッシュ側の状態は信用しない）。
type ReturnUsecase struct {
	tx    repo.TransactionManager
	audit repo.AuditLogRepository
}

func NewReturnUsecase(tx repo.TransactionManager, audit repo.AuditLogRepository) *ReturnUsecase {
	return &ReturnUsecase{tx: tx, audit: audit}
}

type ReturnItemOutput struct {
	ID           int64  `json:"id"`
	OrderID      int64  `json:"order_id"`
	ProductID    int64  `json:"product_id"`
	ReturnStatus string `json:"return_status"`
	ReturnReason string `json:"return_reason,omitempty"`
}

func toReturnItemOutput(it model.OrderItem, status model.ReturnStatus, reason string) ReturnItemOutput {
	return ReturnItemOutput{
		ID:           it.ID,
		OrderID:      it.OrderID,
		ProductID:    it.ProductID,
		ReturnStatus: string(status),
		ReturnReason: reason,
	}
}

// 注文の持ち主からの返品リクエスト。NONE → REQUESTED。
func (u *ReturnUsecase) RequestReturn(ctx context.Context, userID int64, itemID int64, reason string) (ReturnItemOutput, error) {
	if userID <= 0 {
		return ReturnItemOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if itemID <= 0 {
		return ReturnItemOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" || len(reason) > 500 {
		return ReturnItemOutput{}, NewHTTPError(http.StatusBadRequest, "invalid reason")
	}

	var out ReturnItemOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		it, err := r.OrderItems().FindByID(ctx, itemID)
		if err != nil {
			return repoError(err)
		}

		o, err := r.Orders().FindByID(ctx, it.OrderID)
		if err != nil {
			return repoError(err)
		}
		//他人の明細は「存在しない扱い」にする
		if o.UserID != userID {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		//返品はお届け完了後のみ
		if o.Status != model.OrderStatusDelivered {
			return NewHTTPError(http.StatusBadRequest, "order not delivered")
		}

		if !it.ReturnStatus.CanTransitionTo(model.ReturnStatusRequested) {
			return NewHTTPError(http.StatusBadRequest, "invalid state")
		}

		if err := r.OrderItems().UpdateReturnStatusFrom(ctx, itemID, it.ReturnStatus, model.ReturnStatusRequested, reason); err != nil {
			return repoError(err)
		}

		out = toReturnItemOutput(it, model.ReturnStatusRequested, reason)
		return nil
	})

	if err != nil {
		return ReturnItemOutput{}, err
	}
	return out, nil
}

// 管理者によるリクエストの裁定。REQUESTED → {APPROVED|REJECTED}。
// 承認しても返金・在庫戻しは行わない。部分返金の計上が必要になったら
// PaymentUsecaseを呼ぶのがここになる。
func (u *ReturnUsecase) ProcessReturn(ctx context.Context, actorUserID int64, actorRole string, itemID int64, decision model.ReturnStatus) (ReturnItemOutput, error) {
	if decision != model.ReturnStatusApproved && decision != model.ReturnStatusRejected {
		return ReturnItemOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}
	return u.adjudicate(ctx, actorUserID, actorRole, itemID, model.ReturnStatusRequested, decision)
}

// 実物の返品受領。APPROVED → COMPLETED（終端）。
func (u *ReturnUsecase) CompleteReturn(ctx context.Context, actorUserID int64, actorRole string, itemID int64) (ReturnItemOutput, error) {
	return u.adjudicate(ctx, actorUserID, actorRole, itemID, model.ReturnStatusApproved, model.ReturnStatusCompleted)
}

func (u *ReturnUsecase) adjudicate(ctx context.Context, actorUserID int64, actorRole string, itemID int64, from, to model.ReturnStatus) (ReturnItemOutput, error) {
	if actorUserID <= 0 {
		return ReturnItemOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if actorRole != RoleAdmin {
		return ReturnItemOutput{}, NewHTTPError(http.StatusForbidden, "forbidden")
	}
	if itemID <= 0 {
		return ReturnItemOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out ReturnItemOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		it, err := r.OrderItems().FindByID(ctx, itemID)
		if err != nil {
			return repoError(err)
		}

		if it.ReturnStatus != from || !it.ReturnStatus.CanTransitionTo(to) {
			return NewHTTPError(http.StatusBadRequest, "invalid state")
		}

		if err := r.OrderItems().UpdateReturnStatusFrom(ctx, itemID, from, to, ""); err != nil {
			return repoError(err)
		}

		beforeJSON := `{"return_status":"` + string(from) + `"}`
		afterJSON := `{"return_status":"` + string(to) + `"}`
		if err := u.audit.Create(ctx, model.AuditLog{
			ActorUserID:  actorUserID,
			Action:       model.AuditActionProcessReturn,
			ResourceType: model.AuditResourceOrderItem,
			ResourceID:   itemID,
			BeforeJSON:   beforeJSON,
			AfterJSON:    afterJSON,
			CreatedAt:    time.Now(),
		}); err != nil {
			return repoError(err)
		}

		out = toReturnItemOutput(it, to, it.ReturnReason)
		return nil
	})

	if err != nil {
		return ReturnItemOutput{}, err
	}
	return out, nil
}
