package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound は参照先のエンティティが存在しないことを表します
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized はロールまたは所有者が操作に合わないことを表します
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidTransition は遷移表に反する、または終端状態からの遷移を表します
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrConflict は楽観的更新で競合に負けたことを表します
	ErrConflict = errors.New("conflict")
	// ErrDuplicateReview は同じ予約に対する二件目のレビューを表します
	ErrDuplicateReview = errors.New("duplicate review")
	// ErrValidation はリクエストの形式が不正であることを表します
	ErrValidation = errors.New("validation error")
)

// ValidationError は入力検証エラーの詳細です
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError は新しいValidationErrorを作成します
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is は errors.Is(err, ErrValidation) を成立させます
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
