package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Тип события аудита.
type EventType string

const (
	EventTypeUserRegistered   EventType = "user_registered"
	EventTypeBookingCreated   EventType = "booking_created"
	EventTypeBookingCancelled EventType = "booking_cancelled"
	EventTypeWelcomeSent      EventType = "welcome_sent"
)

// events — журнал аудита, только дозапись.
type Event struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	Type EventType `gorm:"type:varchar(64);not null;index"`

	CreatedAt time.Time `gorm:"not null;index"`

	UserID    *int64 `gorm:"index"`
	BookingID *int64 `gorm:"index"`

	Details datatypes.JSON
}

// BeforeCreate проставляет ID на стороне приложения: gen_random_uuid()
// есть только в Postgres, а тесты гоняются на SQLite.
func (e *Event) BeforeCreate(_ *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
