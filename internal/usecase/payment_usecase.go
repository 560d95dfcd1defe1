package usecase

import (
	"context"
	"net/http"
	"strings"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"
)

// 決済ステータスの状態機械と、キャンセル時の自動返金ポリシーを持つ。
// Order.PaymentStatus（非正規化ビュー）の同期もここで行う。
type PaymentUsecase struct {
	tx    repo.TransactionManager
	audit repo.AuditLogRepository
}

func NewPaymentUsecase(tx repo.TransactionManager, audit repo.AuditLogRepository) *PaymentUsecase {
	return &PaymentUsecase{tx: tx, audit: audit}
}

type PaymentOutput struct {
	ID            int64  `json:"id"`
	OrderID       int64  `json:"order_id"`
	Amount        string `json:"amount"`
	Method        string `json:"method"`
	Status        string `json:"status"`
	Reference     string `json:"reference"`
	TransactionID string `json:"transaction_id,omitempty"`
	Note          string `json:"note,omitempty"`
}

func toPaymentOutput(p model.Payment) PaymentOutput {
	return PaymentOutput{
		ID:            p.ID,
		OrderID:       p.OrderID,
		Amount:        p.Amount.StringFixed(2),
		Method:        string(p.Method),
		Status:        string(p.Status),
		Reference:     p.Reference,
		TransactionID: p.TransactionID,
		Note:          p.Note,
	}
}

// 管理者による直接編集。許される編集先は決済方法で変わる：
//   - COD:      現金回収の手動確定なので4ステータスどこへでも可
//   - オンライン: 注文がCANCELEDの間だけ、PENDING（リセット）かREFUNDEDへのみ可。
//     ゲートウェイを通らずCOMPLETED/FAILEDへ手で書くことはできない。
func (u *PaymentUsecase) UpdateStatusByOrder(ctx context.Context, actorUserID int64, actorRole string, orderID int64, target model.PaymentStatus) (PaymentOutput, error) {
	if actorUserID <= 0 {
		return PaymentOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if actorRole != RoleAdmin {
		return PaymentOutput{}, NewHTTPError(http.StatusForbidden, "forbidden")
	}
	if orderID <= 0 {
		return PaymentOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out PaymentOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Payments().FindByOrderID(ctx, orderID)
		if err != nil {
			return repoError(err)
		}
		o, err := r.Orders().FindByID(ctx, orderID)
		if err != nil {
			return repoError(err)
		}

		if p.Method.IsOnline() {
			if o.Status != model.OrderStatusCanceled {
				return NewHTTPError(http.StatusForbidden, "forbidden")
			}
			if target != model.PaymentStatusPending && target != model.PaymentStatusRefunded {
				return NewHTTPError(http.StatusBadRequest, "invalid transition")
			}
		}

		//すでに同じなら何もしない
		if p.Status == target {
			out = toPaymentOutput(p)
			return nil
		}

		if err := r.Payments().UpdateStatusFrom(ctx, p.ID, p.Status, target, "", ""); err != nil {
			return repoError(err)
		}
		if err := r.Orders().UpdatePaymentStatus(ctx, orderID, target); err != nil {
			return repoError(err)
		}

		if err := u.writeAudit(ctx, actorUserID, p.ID, p.Status, target); err != nil {
			return repoError(err)
		}

		p.Status = target
		out = toPaymentOutput(p)
		return nil
	})

	if err != nil {
		return PaymentOutput{}, err
	}
	return out, nil
}

// ゲートウェイからの入金確定。PENDING → COMPLETED のみ、証跡としてtransactionIdを残す。
func (u *PaymentUsecase) Complete(ctx context.Context, actorUserID int64, actorRole string, paymentID int64, transactionID string) (PaymentOutput, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return PaymentOutput{}, NewHTTPError(http.StatusBadRequest, "invalid transaction_id")
	}
	return u.applyTransition(ctx, actorUserID, actorRole, paymentID, model.PaymentStatusCompleted, transactionID, "")
}

// 返金確定。COMPLETED → REFUNDED のみ、理由をnoteに残す。
func (u *PaymentUsecase) Refund(ctx context.Context, actorUserID int64, actorRole string, paymentID int64, note string) (PaymentOutput, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return PaymentOutput{}, NewHTTPError(http.StatusBadRequest, "invalid note")
	}
	return u.applyTransition(ctx, actorUserID, actorRole, paymentID, model.PaymentStatusRefunded, "", note)
}

func (u *PaymentUsecase) applyTransition(ctx context.Context, actorUserID int64, actorRole string, paymentID int64, target model.PaymentStatus, transactionID, note string) (PaymentOutput, error) {
	if actorUserID <= 0 {
		return PaymentOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if actorRole != RoleAdmin {
		return PaymentOutput{}, NewHTTPError(http.StatusForbidden, "forbidden")
	}
	if paymentID <= 0 {
		return PaymentOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out PaymentOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Payments().FindByID(ctx, paymentID)
		if err != nil {
			return repoError(err)
		}

		if !p.Status.CanTransitionTo(target) {
			return NewHTTPError(http.StatusBadRequest, "invalid transition")
		}

		if err := r.Payments().UpdateStatusFrom(ctx, p.ID, p.Status, target, transactionID, note); err != nil {
			return repoError(err)
		}
		if err := r.Orders().UpdatePaymentStatus(ctx, p.OrderID, target); err != nil {
			return repoError(err)
		}

		if err := u.writeAudit(ctx, actorUserID, p.ID, p.Status, target); err != nil {
			return repoError(err)
		}

		p.Status = target
		if transactionID != "" {
			p.TransactionID = transactionID
		}
		if note != "" {
			p.Note = note
		}
		out = toPaymentOutput(p)
		return nil
	})

	if err != nil {
		return PaymentOutput{}, err
	}
	return out, nil
}

type RefundOutcome struct {
	//オンライン決済かつCOMPLETEDだった場合だけtrue
	Triggered bool
	PaymentID int64
}

// キャンセル時の自動返金ポリシー。
// オンライン決済（MOMO/PAYPAL/VNPAY/BANK）かつCOMPLETEDのときだけ
// COMPLETED → REFUNDED を適用する。COD・未入金なら何もしない。
// 注文遷移とは別トランザクションで確定する（部分失敗は呼び出し側が報告する）。
func (u *PaymentUsecase) AutoRefundOnCancel(ctx context.Context, actorUserID int64, orderID int64) (RefundOutcome, error) {
	var outcome RefundOutcome

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Payments().FindByOrderID(ctx, orderID)
		if err != nil {
			return repoError(err)
		}

		if !p.Method.IsOnline() || p.Status != model.PaymentStatusCompleted {
			return nil
		}

		if err := r.Payments().UpdateStatusFrom(ctx, p.ID, p.Status, model.PaymentStatusRefunded, "", "auto refund on order cancellation"); err != nil {
			return repoError(err)
		}
		if err := r.Orders().UpdatePaymentStatus(ctx, orderID, model.PaymentStatusRefunded); err != nil {
			return repoError(err)
		}

		if actorUserID > 0 {
			if err := u.writeAudit(ctx, actorUserID, p.ID, p.Status, model.PaymentStatusRefunded); err != nil {
				return repoError(err)
			}
		}

		outcome = RefundOutcome{Triggered: true, PaymentID: p.ID}
		return nil
	})

	if err != nil {
		return RefundOutcome{}, err
	}
	return outcome, nil
}

func (u *PaymentUsecase) writeAudit(ctx context.Context, actorUserID int64, paymentID int64, before, after model.PaymentStatus) error {
	beforeJSON := `{"status":"` + string(before) + `"}`
	afterJSON := `{"status":"` + string(after) + `"}`
	return u.audit.Create(ctx, model.AuditLog{
		ActorUserID:  actorUserID,
		Action:       model.AuditActionUpdatePaymentStatus,
		ResourceType: model.AuditResourcePayment,
		ResourceID:   paymentID,
		BeforeJSON:   beforeJSON,
		AfterJSON:    afterJSON,
		CreatedAt:    time.Now(),
	})
}
