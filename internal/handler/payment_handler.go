package handler

import (
	"net/http"

	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/middleware"
	"app/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 決済の管理者API
type PaymentHandler struct {
	uc *usecase.PaymentUsecase
}

func NewPaymentHandler(uc *usecase.PaymentUsecase) *PaymentHandler {
	return &PaymentHandler{uc: uc}
}

type PaymentStatusUpdateRequest struct {
	PaymentStatus string `json:"payment_status"`
}

type PaymentCompleteRequest struct {
	TransactionID string `json:"transaction_id"`
}

type PaymentRefundRequest struct {
	Note string `json:"note"`
}

func (h *PaymentHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	admin := e.Group("/admin/payments")
	admin.Use(middleware.AuthJWT(cfg))
	admin.Use(middleware.AdminRoleGuard())

	//:id は注文ID（決済は注文と1:1）
	admin.PUT("/:id", h.updateStatus)
	admin.PUT("/:id/complete", h.complete)
	admin.PUT("/:id/refund", h.refund)
}

func (h *PaymentHandler) updateStatus(c echo.Context) error {
	actorID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, Envelope{ErrCode: http.StatusUnauthorized, ErrMessage: "unauthorized"})
	}
	role, _ := getUserRoleFromContext(c)

	orderID, err := parseIDParam(c, "id")
	if err != nil {
		return writeError(c, err)
	}

	var req PaymentStatusUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, Envelope{ErrCode: http.StatusBadRequest, ErrMessage: "invalid body"})
	}

	target, ok := model.ParsePaymentStatus(req.PaymentStatus)
	if !ok {
		return c.JSON(http.StatusBadRequest, Envelope{ErrCode: http.StatusBadRequest, ErrMessage: "invalid payment_status"})
	}

	out, err := h.uc.UpdateStatusByOrder(c.Request().Context(), actorID, role, orderID, target)
	if err != nil {
		return writeError(c, err)
	}
	return writeOK(c, out)
}

func (h *PaymentHandler) complete(c echo.Context) error {
	actorID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, Envelope{ErrCode: http.StatusUnauthorized, ErrMessage: "unauthorized"})
	}
	role, _ := getUserRoleFromContext(c)

	paymentID, err := parseIDParam(c, "id")
	if err != nil {
		return writeError(c, err)
	}

	var req PaymentCompleteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, Envelope{ErrCode: http.StatusBadRequest, ErrMessage: "invalid body"})
	}

	out, err := h.uc.Complete(c.Request().Context(), actorID, role, paymentID, req.TransactionID)
	if err != nil {
		return writeError(c, err)
	}
	return writeOK(c, out)
}

func (h *PaymentHandler) refund(c echo.Context) error {
	actorID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, Envelope{ErrCode: http.StatusUnauthorized, ErrMessage: "unauthorized"})
	}
	role, _ := getUserRoleFromContext(c)

	paymentID, err := parseIDParam(c, "id")
	if err != nil {
		return writeError(c, err)
	}

	var req PaymentRefundRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, Envelope{ErrCode: http.StatusBadRequest, ErrMessage: "invalid body"})
	}

	out, err := h.uc.Refund(c.Request().Context(), actorID, role, paymentID, req.Note)
	if err != nil {
		return writeError(c, err)
	}
	return writeOK(c, out)
}
