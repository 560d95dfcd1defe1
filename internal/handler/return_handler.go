package handler

import (
	"net/http"

	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/middleware"
	"app/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 返品裁定の管理者API（リクエスト受付は購入者側のOrderHandlerにある）
type ReturnHandler struct {
	uc *usecase.ReturnUsecase
}

func NewReturnHandler(uc *usecase.ReturnUsecase) *ReturnHandler {
	return &ReturnHandler{uc: uc}
}

type ProcessReturnRequest struct {
	Status string `json:"status"`
}

func (h *ReturnHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	admin := e.Group("/admin/order-items")
	admin.Use(middleware.AuthJWT(cfg))
	admin.Use(middleware.AdminRoleGuard())

	admin.PUT("/:id/process-return", h.processReturn)
	admin.PUT("/:id/complete-return", h.completeReturn)
}

func (h *ReturnHandler) processReturn(c echo.Context) error {
	actorID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, Envelope{ErrCode: http.StatusUnauthorized, ErrMessage: "unauthorized"})
	}
	role, _ := getUserRoleFromContext(c)

	itemID, err := parseIDParam(c, "id")
	if err != nil {
		return writeError(c, err)
	}

	var req ProcessReturnRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, Envelope{ErrCode: http.StatusBadRequest, ErrMessage: "invalid body"})
	}

	decision, ok := model.ParseReturnDecision(req.Status)
	if !ok {
		return c.JSON(http.StatusBadRequest, Envelope{ErrCode: http.StatusBadRequest, ErrMessage: "invalid status"})
	}

	out, err := h.uc.ProcessReturn(c.Request().Context(), actorID, role, itemID, decision)
	if err != nil {
		return writeError(c, err)
	}
	return writeOK(c, out)
}

func (h *ReturnHandler) completeReturn(c echo.Context) error {
	actorID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, Envelope{ErrCode: http.StatusUnauthorized, ErrMessage: "unauthorized"})
	}
	role, _ := getUserRoleFromContext(c)

	itemID, err := parseIDParam(c, "id")
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.CompleteReturn(c.Request().Context(), actorID, role, itemID)
	if err != nil {
		return writeError(c, err)
	}
	return writeOK(c, out)
}
