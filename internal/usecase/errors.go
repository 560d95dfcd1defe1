package usecase

import (
	"errors"
	"fmt"
	"net/http"

	repo "app/internal/repository"
)

type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

// 想定ロールは USER / ADMIN の2種類。発行は外部の認証サービス。
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// repoのエラーをタクソノミに写す。
//   - ErrNotFound → 404
//   - ErrConflict → 409（並行更新。呼び出し側がリトライする）
//   - それ以外    → 502（ストレージ/ゲートウェイ障害。業務ルール違反と区別する）
func repoError(err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return NewHTTPError(http.StatusNotFound, "not found")
	}
	if errors.Is(err, repo.ErrConflict) {
		return NewHTTPError(http.StatusConflict, "conflict")
	}
	return NewHTTPError(http.StatusBadGateway, "upstream failure")
}
