package usecase

import (
	"context"
	"net/http"
	"strings"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// 決済レコードの参照コード生成（実装はmainでuuid）
type IDGenerator interface {
	NewID() string
}

// 注文まわりの窓口。複数エンティティをまたぐ操作（キャンセル→返金、削除）は
// ここだけが組み立てる。
type OrderUsecase struct {
	tx       repo.TransactionManager
	sm       *OrderStateMachine
	payments *PaymentUsecase
	audit    repo.AuditLogRepository
	idGen    IDGenerator
	logger   *zap.Logger
}

func NewOrderUsecase(
	tx repo.TransactionManager,
	sm *OrderStateMachine,
	payments *PaymentUsecase,
	audit repo.AuditLogRepository,
	idGen IDGenerator,
	logger *zap.Logger,
) *OrderUsecase {
	return &OrderUsecase{tx: tx, sm: sm, payments: payments, audit: audit, idGen: idGen, logger: logger}
}

type PlaceOrderItemInput struct {
	ProductID   int64
	ProductName string
	UnitPrice   decimal.Decimal
	Quantity    int64
}

type PlaceOrderInput struct {
	ShippingAddress string
	PaymentMethod   string
	IdempotencyKey  string
	Items           []PlaceOrderItemInput
}

type OrderItemOutput struct {
	ID           int64  `json:"id"`
	ProductID    int64  `json:"product_id"`
	Name         string `json:"name"`
	Price        string `json:"price"`
	Quantity     int64  `json:"quantity"`
	Subtotal     string `json:"subtotal"`
	ReturnStatus string `json:"return_status"`
	ReturnReason string `json:"return_reason,omitempty"`
}

type OrderOutput struct {
	ID              int64             `json:"id"`
	UserID          int64             `json:"user_id"`
	ShippingAddress string            `json:"shipping_address"`
	Status          string            `json:"status"`
	PaymentMethod   string            `json:"payment_method"`
	PaymentStatus   string            `json:"payment_status"`
	TotalPrice      string            `json:"total_price"`
	CreatedAt       time.Time         `json:"created_at"`
	Items           []OrderItemOutput `json:"items"`
}

// カート/カタログは外部なので、明細はスナップショットとして受け取る。
// 合計は必ずサーバ側で明細から計算し直す。
func (u *OrderUsecase) PlaceOrder(ctx context.Context, userID int64, in PlaceOrderInput) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	addr := strings.TrimSpace(in.ShippingAddress)
	if addr == "" || len(addr) > 500 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid shipping_address")
	}
	method, ok := model.ParsePaymentMethod(in.PaymentMethod)
	if !ok {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid payment_method")
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if key == "" || len(key) > 255 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid idempotency_key")
	}
	if len(in.Items) == 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "empty items")
	}
	for _, it := range in.Items {
		if it.ProductID <= 0 || it.Quantity <= 0 || strings.TrimSpace(it.ProductName) == "" {
			return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid item")
		}
		if it.UnitPrice.IsNegative() {
			return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid item")
		}
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 同じキーなら同じ結果
		existing, found, err := r.Orders().FindByIdempotencyKey(ctx, userID, key)
		if err != nil {
			return repoError(err)
		}
		if found {
			items, err := r.OrderItems().ListByOrderID(ctx, existing.ID)
			if err != nil {
				return repoError(err)
			}
			out = toOrderOutput(existing, items)
			return nil
		}

		//スナップショットから明細と合計を組み立てる
		now := time.Now()
		orderItems := make([]model.OrderItem, 0, len(in.Items))
		total := decimal.Zero

		for _, it := range in.Items {
			subtotal := it.UnitPrice.Mul(decimal.NewFromInt(it.Quantity))
			orderItems = append(orderItems, model.OrderItem{
				ProductID:           it.ProductID,
				ProductNameSnapshot: strings.TrimSpace(it.ProductName),
				UnitPriceSnapshot:   it.UnitPrice,
				Quantity:            it.Quantity,
				Subtotal:            subtotal,
				ReturnStatus:        model.ReturnStatusNone,
				CreatedAt:           now,
			})
			total = total.Add(subtotal)
		}

		orderID, err := r.Orders().Create(ctx, model.Order{
			UserID:          userID,
			ShippingAddress: addr,
			Status:          model.OrderStatusPending,
			PaymentMethod:   method,
			PaymentStatus:   model.PaymentStatusPending,
			TotalPrice:      total,
			IdempotencyKey:  key,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
		if err != nil {
			//競合（同時に同じキーが入った等）はもう一回検索して同じ結果を返す
			ex2, found2, err2 := r.Orders().FindByIdempotencyKey(ctx, userID, key)
			if err2 == nil && found2 {
				items2, err3 := r.OrderItems().ListByOrderID(ctx, ex2.ID)
				if err3 != nil {
					return repoError(err3)
				}
				out = toOrderOutput(ex2, items2)
				return nil
			}
			return NewHTTPError(http.StatusConflict, "idempotency conflict")
		}

		if err := r.OrderItems().CreateBulk(ctx, orderID, orderItems); err != nil {
			return repoError(err)
		}

		//決済レコードは注文と同時に1件だけ作る。金額は以後変更しない。
		if _, err := r.Payments().Create(ctx, model.Payment{
			OrderID:   orderID,
			UserID:    userID,
			Amount:    total,
			Method:    method,
			Status:    model.PaymentStatusPending,
			Reference: u.idGen.NewID(),
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			return repoError(err)
		}

		created := model.Order{
			ID:              orderID,
			UserID:          userID,
			ShippingAddress: addr,
			Status:          model.OrderStatusPending,
			PaymentMethod:   method,
			PaymentStatus:   model.PaymentStatusPending,
			TotalPrice:      total,
			CreatedAt:       now,
		}
		out = toOrderOutput(created, orderItems)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

type CancelOrderOutput struct {
	OrderID int64  `json:"order_id"`
	Status  string `json:"status"`

	//リトライ時（すでにキャンセル済み）はtrue
	AlreadyCanceled bool `json:"already_canceled"`

	//自動返金が適用されたか
	RefundTriggered bool `json:"refund_triggered"`

	//返金ステップだけ失敗した場合に入る。注文のキャンセルは巻き戻さない。
	RefundError string `json:"refund_error,omitempty"`
}

// キャンセルは2段階：1) 注文遷移、2) 自動返金ポリシー。
// それぞれ独立にコミットし、2)の失敗で1)は巻き戻さない（分散トランザクションなし）。
// すでにCANCELEDの注文に対しては遷移を飛ばして返金だけやり直すので、
// 返金失敗後のリトライはこの1操作で完結する。
func (u *OrderUsecase) CancelOrder(ctx context.Context, actorUserID int64, actorRole string, orderID int64) (CancelOrderOutput, error) {
	if actorUserID <= 0 {
		return CancelOrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if actorRole != RoleAdmin {
		return CancelOrderOutput{}, NewHTTPError(http.StatusForbidden, "forbidden")
	}

	res, err := u.sm.Transition(ctx, actorUserID, orderID, model.OrderStatusCanceled)
	if err != nil {
		return CancelOrderOutput{}, err
	}

	out := CancelOrderOutput{
		OrderID:         orderID,
		Status:          string(model.OrderStatusCanceled),
		AlreadyCanceled: !res.Applied,
	}

	outcome, rerr := u.payments.AutoRefundOnCancel(ctx, actorUserID, orderID)
	if rerr != nil {
		//返金失敗は別枠で報告してオペレータに委ねる
		u.logger.Error("refund step failed after cancellation",
			zap.Int64("order_id", orderID),
			zap.Error(rerr),
		)
		if he, ok := AsHTTPError(rerr); ok {
			out.RefundError = he.Message
		} else {
			out.RefundError = "upstream failure"
		}
		return out, nil
	}

	out.RefundTriggered = outcome.Triggered
	return out, nil
}

// 購入者の受取アクション。SHIPPED → DELIVERED。
func (u *OrderUsecase) ReceiveOrder(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err != nil {
			return repoError(err)
		}
		if o.UserID != userID {
			return NewHTTPError(http.StatusNotFound, "not found")
		}

		//受取済みのリトライは成功扱い
		if o.Status != model.OrderStatusDelivered {
			if !o.Status.CanTransitionTo(model.OrderStatusDelivered) {
				return NewHTTPError(http.StatusBadRequest, "invalid transition")
			}
			if err := r.Orders().UpdateStatusFrom(ctx, orderID, o.Status, model.OrderStatusDelivered); err != nil {
				return repoError(err)
			}
			o.Status = model.OrderStatusDelivered
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return repoError(err)
		}
		out = toOrderOutput(o, items)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// 管理者の物理削除。明細は一緒に消すが、決済レコードは監査用にそのまま残す。
func (u *OrderUsecase) DeleteOrder(ctx context.Context, actorUserID int64, actorRole string, orderID int64) error {
	if actorUserID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if actorRole != RoleAdmin {
		return NewHTTPError(http.StatusForbidden, "forbidden")
	}
	if orderID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err != nil {
			return repoError(err)
		}

		if err := r.OrderItems().DeleteByOrderID(ctx, orderID); err != nil {
			return repoError(err)
		}
		if err := r.Orders().Delete(ctx, orderID); err != nil {
			return repoError(err)
		}

		beforeJSON := `{"status":"` + string(o.Status) + `","total_price":"` + o.TotalPrice.StringFixed(2) + `"}`
		if err := u.audit.Create(ctx, model.AuditLog{
			ActorUserID:  actorUserID,
			Action:       model.AuditActionDeleteOrder,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			BeforeJSON:   beforeJSON,
			AfterJSON:    "{}",
			CreatedAt:    time.Now(),
		}); err != nil {
			return repoError(err)
		}

		return nil
	})
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID int64, page, limit int) ([]OrderOutput, error) {
	if userID <= 0 {
		return []OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}

	var outs []OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, _, err := r.Orders().ListByUserID(ctx, userID, page, limit)
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

func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err != nil {
			return repoError(err)
		}
		if o.UserID != userID {
			//他人の注文は「存在しない扱い」にする
			return NewHTTPError(http.StatusNotFound, "not found")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return repoError(err)
		}

		out = toOrderOutput(o, items)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ID:           it.ID,
			ProductID:    it.ProductID,
			Name:         it.ProductNameSnapshot,
			Price:        it.UnitPriceSnapshot.StringFixed(2),
			Quantity:     it.Quantity,
			Subtotal:     it.Subtotal.StringFixed(2),
			ReturnStatus: string(it.ReturnStatus),
			ReturnReason: it.ReturnReason,
		})
	}

	return OrderOutput{
		ID:              o.ID,
		UserID:          o.UserID,
		ShippingAddress: o.ShippingAddress,
		Status:          string(o.Status),
		PaymentMethod:   string(o.PaymentMethod),
		PaymentStatus:   string(o.PaymentStatus),
		TotalPrice:      o.TotalPrice.StringFixed(2),
		CreatedAt:       o.CreatedAt,
		Items:           outItems,
	}
}
