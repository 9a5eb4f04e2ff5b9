package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Leganyst/room-booking/internal/apperror"
	"github.com/Leganyst/room-booking/internal/logger"
	"github.com/Leganyst/room-booking/internal/middleware"
	"github.com/Leganyst/room-booking/internal/service"
)

// errorBody — detail читает Mini App, остальное для остальных клиентов.
type errorBody struct {
	Detail string `json:"detail"`
	apperror.ErrorResponse
}

func writeJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// toAppError переводит доменные ошибки в ответ клиенту.
func toAppError(err error) *apperror.AppError {
	if ve, ok := service.AsValidation(err); ok {
		return apperror.Validation(ve.Reason, ve.Rule, err)
	}

	switch {
	case errors.Is(err, service.ErrNotFound):
		return apperror.NotFound(service.ErrNotFound.Error())
	case errors.Is(err, service.ErrUnknownRoom):
		return apperror.InvalidInput(service.ErrUnknownRoom.Error())
	case errors.Is(err, service.ErrInvalidUserID):
		return apperror.Forbidden("Invalid data")
	case errors.Is(err, context.DeadlineExceeded):
		return apperror.Timeout("Request timeout")
	}
	return apperror.As(err)
}

func writeError(w http.ResponseWriter, r *http.Request, log *logger.Logger, handler string, err error) {
	appErr := toAppError(err)

	if appErr.HTTPStatus >= http.StatusInternalServerError {
		log.Error("request failed",
			"request_id", middleware.RequestID(r.Context()),
			"handler", handler,
			"error", err,
		)
	} else {
		log.Debug("request rejected",
			"request_id", middleware.RequestID(r.Context()),
			"handler", handler,
			"code", appErr.Code,
			"message", appErr.Message,
		)
	}

	body := errorBody{Detail: appErr.Message, ErrorResponse: appErr.Response()}
	if writeErr := writeJSON(w, appErr.StatusCode(), body); writeErr != nil {
		log.Error("failed to write error response", "handler", handler, "error", writeErr)
	}
}
