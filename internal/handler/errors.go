package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"itemsim/internal/service"
	"itemsim/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var statusByKind = map[service.Kind]int{
	service.KindValidation:            http.StatusBadRequest,
	service.KindConflict:              http.StatusConflict,
	service.KindNotFound:              http.StatusNotFound,
	service.KindUnauthorized:          http.StatusUnauthorized,
	service.KindForbidden:             http.StatusForbidden,
	service.KindInsufficientFunds:     http.StatusBadRequest,
	service.KindInsufficientInventory: http.StatusBadRequest,
}

// writeError answers with the status for err's kind. Errors without a kind
// are unexpected: they are logged and reported as a bare 500.
func writeError(c *gin.Context, log *zap.Logger, err error) {
	var serviceErr *service.Error
	if errors.As(err, &serviceErr) {
		if status, ok := statusByKind[serviceErr.Kind]; ok {
			response.Error(c, status, serviceErr.Message)
			return
		}
	}

	log.Error("request failed",
		zap.Error(err),
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.String("request_id", c.GetString(ctxRequestID)),
	)
	response.ServerError(c)
}

// bindError describes a rejected request body without echoing decoder internals.
func bindError(err error) string {
	var invalid validator.ValidationErrors
	if errors.As(err, &invalid) {
		fields := make([]string, 0, len(invalid))
		for _, fe := range invalid {
			fields = append(fields, fe.Field())
		}
		return fmt.Sprintf("Check your input data: invalid %s", strings.Join(fields, ", "))
	}
	if strings.Contains(err.Error(), "unknown field") {
		return "Check your input data: " + err.Error()
	}
	return "Check your input data"
}
