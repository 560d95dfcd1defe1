package handler

import (
	"net/http"
	"strconv"

	"app/internal/middleware"
	"app/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 全APIの共通封筒。errCode 0 が成功、非0はHTTPステータスと同じ値。
type Envelope struct {
	ErrCode    int         `json:"errCode"`
	ErrMessage string      `json:"errMessage"`
	Data       interface{} `json:"data,omitempty"`
}

func writeOK(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, Envelope{ErrCode: 0, Data: data})
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := usecase.AsHTTPError(err); ok {
		return c.JSON(he.Status, Envelope{ErrCode: he.Status, ErrMessage: he.Message})
	}

	//500
	return c.JSON(http.StatusInternalServerError, Envelope{
		ErrCode:    http.StatusInternalServerError,
		ErrMessage: "internal error",
	})
}

func getUserIDFromContext(c echo.Context) (int64, bool) {
	v := c.Get(middleware.CtxUserIDKey)
	id, ok := v.(int64)
	return id, ok && id > 0
}

func getUserRoleFromContext(c echo.Context) (string, bool) {
	v := c.Get(middleware.CtxUserRoleKey)
	role, ok := v.(string)
	return role, ok && role != ""
}

func parseIDParam(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, usecase.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}
