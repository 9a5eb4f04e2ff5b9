package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Leganyst/room-booking/internal/apperror"
	"github.com/Leganyst/room-booking/internal/calendar"
	"github.com/Leganyst/room-booking/internal/service"
)

type createBookingRequest struct {
	Room          string    `json:"room" validate:"required,room"`
	StartTime     time.Time `json:"start_time" validate:"required"`
	EndTime       time.Time `json:"end_time" validate:"required"`
	OccupantLabel string    `json:"occupant_label" validate:"required_without=UserRoomNumber,max=64"`
	Reason        *string   `json:"reason" validate:"omitempty,max=500"`

	// Старое имя occupant_label, его до сих пор шлёт статический Mini App.
	UserRoomNumber string `json:"user_room_number" validate:"omitempty,max=64"`
}

func (r createBookingRequest) occupantLabel() string {
	if r.OccupantLabel != "" {
		return r.OccupantLabel
	}
	return r.UserRoomNumber
}

func newValidator() (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("room", validateRoom); err != nil {
		return nil, fmt.Errorf("register room validator: %w", err)
	}
	// в ошибках показываем имена из JSON
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v, nil
}

func validateRoom(fl validator.FieldLevel) bool {
	return calendar.IsKnownRoom(fl.Field().String())
}

// decodeJSON читает тело строго: неизвестные поля и мусор после объекта — ошибка.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return apperror.InvalidInput("Request body too large")
		case errors.Is(err, io.EOF):
			return apperror.InvalidInput("Request body is empty")
		default:
			return apperror.InvalidInput("Invalid request body").
				WithDetails(map[string]any{"error": err.Error()})
		}
	}
	if dec.More() {
		return apperror.InvalidInput("Invalid request body")
	}
	return nil
}

// validationFailed собирает ошибки validator в один INVALID_INPUT.
func validationFailed(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.InvalidInput("Invalid request body")
	}

	fields := make([]map[string]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, map[string]string{
			"field": fe.Field(),
			"tag":   fe.Tag(),
		})
	}

	msg := "Invalid request body"
	if len(verrs) > 0 && verrs[0].Tag() == "room" {
		msg = service.ErrUnknownRoom.Error()
	}
	return apperror.InvalidInput(msg).WithDetails(map[string]any{"fields": fields})
}
