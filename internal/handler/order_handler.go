package handler

import (
	"net/http"
	"strconv"

	"app/internal/config"
	"app/internal/middleware"
	"app/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// 購入者向けの注文API
type OrderHandler struct {
	uc       *usecase.OrderUsecase
	returnUC *usecase.ReturnUsecase
}

func NewOrderHandler(uc *usecase.OrderUsecase, returnUC *usecase.ReturnUsecase) *OrderHandler {
	return &OrderHandler{uc: uc, returnUC: returnUC}
}

type OrderCreateItemRequest struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	UnitPrice   string `json:"unit_price"`
	Quantity    int64  `json:"quantity"`
}

type OrderCreateRequest struct {
	ShippingAddress string                   `json:"shipping_address"`
	PaymentMethod   string                   `json:"payment_method"`
	Items           []OrderCreateItemRequest `json:"items"`
}

type ReturnRequest struct {
	Reason string `json:"reason"`
}

func (h *OrderHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/orders")
	g.Use(middleware.AuthJWT(cfg))

	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.detail)
	g.PUT("/:id/receive", h.receive)
	g.PUT("/items/:id/request-return", h.requestReturn)
}

func (h *OrderHandler) create(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, Envelope{ErrCode: http.StatusUnauthorized, ErrMessage: "unauthorized"})
	}

	var req OrderCreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, Envelope{ErrCode: http.StatusBadRequest, ErrMessage: "invalid body"})
	}

	//二重送信防止キーはヘッダーから受け取る（bodyには入れない）
	idemKey := c.Request().Header.Get("X-Idempotency-Key")

	items := make([]usecase.PlaceOrderItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		price, err := decimal.NewFromString(it.UnitPrice)
		if err != nil {
			return c.JSON(http.StatusBadRequest, Envelope{ErrCode: http.StatusBadRequest, ErrMessage: "invalid unit_price"})
		}
		items = append(items, usecase.PlaceOrderItemInput{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			UnitPrice:   price,
			Quantity:    it.Quantity,
		})
	}

	out, err := h.uc.PlaceOrder(c.Request().Context(), userID, usecase.PlaceOrderInput{
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		IdempotencyKey:  idemKey,
		Items:           items,
	})
	if err != nil {
		return writeError(c, err)
	}
	return writeOK(c, out)
}

func (h *OrderHandler) list(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, Envelope{ErrCode: http.StatusUnauthorized, ErrMessage: "unauthorized"})
	}

	page := 1
	if v := c.QueryParam("page"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, Envelope{ErrCode: http.StatusBadRequest, ErrMessage: "invalid page"})
		}
		page = p
	}
	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, Envelope{ErrCode: http.StatusBadRequest, ErrMessage: "invalid limit"})
		}
		limit = l
	}

	outs, err := h.uc.ListMyOrders(c.Request().Context(), userID, page, limit)
	if err != nil {
		return writeError(c, err)
	}
	return writeOK(c, outs)
}

func (h *OrderHandler) detail(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, Envelope{ErrCode: http.StatusUnauthorized, ErrMessage: "unauthorized"})
	}

	orderID, err := parseIDParam(c, "id")
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.GetMyOrderDetail(c.Request().Context(), userID, orderID)
	if err != nil {
		return writeError(c, err)
	}
	return writeOK(c, out)
}

// 受取確定（SHIPPED → DELIVERED）
func (h *OrderHandler) receive(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, Envelope{ErrCode: http.StatusUnauthorized, ErrMessage: "unauthorized"})
	}

	orderID, err := parseIDParam(c, "id")
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.ReceiveOrder(c.Request().Context(), userID, orderID)
	if err != nil {
		return writeError(c, err)
	}
	return writeOK(c, out)
}

func (h *OrderHandler) requestReturn(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, Envelope{ErrCode: http.StatusUnauthorized, ErrMessage: "unauthorized"})
	}

	itemID, err := parseIDParam(c, "id")
	if err != nil {
		return writeError(c, err)
	}

	var req ReturnRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, Envelope{ErrCode: http.StatusBadRequest, ErrMessage: "invalid body"})
	}

	out, err := h.returnUC.RequestReturn(c.Request().Context(), userID, itemID, req.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return writeOK(c, out)
}
