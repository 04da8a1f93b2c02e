package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/uma-arai/sbcntr-homeservice/internal/model"
)

var errUnauthenticated = errors.New("authentication required")

// ErrorBody はエラーレスポンスの形式です
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusFor はエラーをHTTPステータスとエラーコードに変換します
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errUnauthenticated):
		return http.StatusUnauthorized, "UNAUTHENTICATED"
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, model.ErrUnauthorized):
		return http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, model.ErrInvalidTransition):
		return http.StatusConflict, "INVALID_TRANSITION"
	case errors.Is(err, model.ErrConflict):
		return http.StatusConflict, "CONFLICT"
	case errors.Is(err, model.ErrDuplicateReview):
		return http.StatusConflict, "DUPLICATE_REVIEW"
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest, "VALIDATION_ERROR"
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func abortWithError(c *gin.Context, err error) {
	status, code := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("handler: %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		message = "internal server error"
	}
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		message = ve.Error()
	}
	c.AbortWithStatusJSON(status, ErrorBody{Error: ErrorDetail{Code: code, Message: message}})
}

func badRequest(c *gin.Context, field string, err error) {
	abortWithError(c, model.NewValidationError(field, err.Error()))
}

// validID はUUID列に渡すIDを検証します
// 不正な場合は400を返して false を返します
func validID(c *gin.Context, field, id string) bool {
	if _, err := uuid.Parse(id); err != nil {
		abortWithError(c, model.NewValidationError(field, "must be a UUID"))
		return false
	}
	return true
}
