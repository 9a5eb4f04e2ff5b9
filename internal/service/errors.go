package service

import "errors"

// Правила брони. Значения уходят клиенту в details.rule.
const (
	RuleStartInPast    = "start_in_past"
	RuleTooFarAhead    = "too_far_ahead"
	RuleEndBeforeStart = "end_before_start"
	RuleTooShort       = "too_short"
	RuleTooLong        = "too_long"
	RuleTooManyActive  = "too_many_active"
	RuleRoomTaken      = "room_taken"
)

// ValidationError — нарушено одно из правил бронирования.
type ValidationError struct {
	Rule   string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

var (
	ErrStartInPast    = &ValidationError{Rule: RuleStartInPast, Reason: "Нельзя бронировать в прошлом"}
	ErrTooFarAhead    = &ValidationError{Rule: RuleTooFarAhead, Reason: "Нельзя бронировать больше, чем на 7 дней вперед"}
	ErrEndBeforeStart = &ValidationError{Rule: RuleEndBeforeStart, Reason: "Время окончания должно быть после времени начала"}
	ErrTooShort       = &ValidationError{Rule: RuleTooShort, Reason: "Минимальная длительность брони - 15 минут."}
	ErrTooLong        = &ValidationError{Rule: RuleTooLong, Reason: "Бронь не может длиться дольше 4 часов"}
	ErrTooManyActive  = &ValidationError{Rule: RuleTooManyActive, Reason: "У вас может быть максимум 2 активные брони"}
	ErrRoomTaken      = &ValidationError{Rule: RuleRoomTaken, Reason: "Эта комната уже занята на выбранное время."}
)

var (
	ErrUnknownRoom   = errors.New("Неизвестная комната")
	ErrInvalidUserID = errors.New("user id must be positive")
	ErrNotFound      = errors.New("Бронь не найдена или у вас нет прав на её удаление")
)

// AsValidation достаёт ValidationError из цепочки ошибок.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
