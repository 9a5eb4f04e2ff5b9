package events

import (
	"strconv"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Leganyst/room-booking/internal/model"
)

// BookingEvent — то, что уходит в шину после коммита.
type BookingEvent struct {
	Type       model.EventType
	Booking    model.Booking
	OccurredAt time.Time
}

// Key — ключ партиционирования: события одной комнаты идут по порядку.
func (e BookingEvent) Key() string {
	return e.Booking.Room
}

// Encode сериализует событие в google.protobuf.Struct (JSON-представление).
func (e BookingEvent) Encode() ([]byte, error) {
	fields := map[string]any{
		"type":           string(e.Type),
		"occurred_at":    e.OccurredAt.UTC().Format(time.RFC3339Nano),
		"booking_id":     strconv.FormatInt(e.Booking.ID, 10),
		"user_id":        strconv.FormatInt(e.Booking.UserID, 10),
		"room":           e.Booking.Room,
		"start_time":     e.Booking.StartTime.UTC().Format(time.RFC3339),
		"end_time":       e.Booking.EndTime.UTC().Format(time.RFC3339),
		"occupant_label": e.Booking.OccupantLabel,
	}
	if e.Booking.Reason != nil {
		fields["reason"] = *e.Booking.Reason
	}

	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	return protojson.Marshal(s)
}

// Decode — обратная операция, нужна потребителям и тестам.
func Decode(data []byte) (map[string]any, error) {
	var s structpb.Struct
	if err := protojson.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return s.AsMap(), nil
}
