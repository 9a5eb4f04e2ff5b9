package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Leganyst/room-booking/internal/calendar"
	"github.com/Leganyst/room-booking/internal/clock"
	"github.com/Leganyst/room-booking/internal/events"
	"github.com/Leganyst/room-booking/internal/logger"
	"github.com/Leganyst/room-booking/internal/model"
	"github.com/Leganyst/room-booking/internal/repository"
)

const (
	MaxAdvance        = 7 * 24 * time.Hour
	MinDuration       = 15 * time.Minute
	MaxDuration       = 4 * time.Hour
	MaxActivePerUser  = 2
	publishTimeout    = 5 * time.Second
	defaultOwnerLabel = "unknown"
)

// NewBooking — заявка на бронь до проверки правил.
type NewBooking struct {
	Room          string
	Start         time.Time
	End           time.Time
	OccupantLabel string
	Reason        *string
}

// BookingWithOwner — строка дневного представления.
type BookingWithOwner struct {
	model.Booking
	Username string `json:"username"`
}

type BookingService struct {
	bookings  repository.BookingRepository
	tx        repository.TxManager
	publisher events.Publisher
	clock     clock.Clock
	log       *logger.Logger
}

func NewBookingService(
	repos repository.Repositories,
	tx repository.TxManager,
	publisher events.Publisher,
	clk clock.Clock,
	log *logger.Logger,
) *BookingService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &BookingService{
		bookings:  repos.Bookings,
		tx:        tx,
		publisher: publisher,
		clock:     clk,
		log:       log,
	}
}

// ListRooms — фиксированный каталог комнат.
func (s *BookingService) ListRooms() []string {
	return calendar.Rooms()
}

// Now — текущее время по часам сервиса.
func (s *BookingService) Now() time.Time {
	return s.clock.Now()
}

func (s *BookingService) ActiveBookingsForUser(ctx context.Context, userID int64, now time.Time) ([]model.Booking, error) {
	bookings, err := s.bookings.ListActiveByUser(ctx, userID, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("list active bookings: %w", err)
	}
	return bookings, nil
}

// BookingsOnDate — брони, начинающиеся в календарные сутки date по поясу loc.
func (s *BookingService) BookingsOnDate(ctx context.Context, date time.Time, loc *time.Location) ([]BookingWithOwner, error) {
	window := calendar.DayWindow(date, loc)

	bookings, err := s.bookings.ListStartingBetween(ctx, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("list bookings on date: %w", err)
	}

	out := make([]BookingWithOwner, 0, len(bookings))
	for _, b := range bookings {
		if !window.Contains(b.StartTime) {
			continue
		}
		owner := defaultOwnerLabel
		if b.User != nil {
			owner = b.User.Username
		}
		b.User = nil
		out = append(out, BookingWithOwner{Booking: b, Username: owner})
	}
	return out, nil
}

// RoomIsFree проверяет пересечение с существующими бронями прямо в хранилище.
func (s *BookingService) RoomIsFree(ctx context.Context, room string, start, end time.Time, excludeID *int64) (bool, error) {
	taken, err := s.bookings.ExistsOverlap(ctx, room, start.UTC(), end.UTC(), excludeID)
	if err != nil {
		return false, fmt.Errorf("check overlap: %w", err)
	}
	return !taken, nil
}

// checkTimeRules — правила 1–5, без обращения к хранилищу.
func checkTimeRules(start, end, now time.Time) error {
	switch {
	case start.Before(now):
		return ErrStartInPast
	case start.After(now.Add(MaxAdvance)):
		return ErrTooFarAhead
	case !end.After(start):
		return ErrEndBeforeStart
	case end.Sub(start) < MinDuration:
		return ErrTooShort
	case end.Sub(start) > MaxDuration:
		return ErrTooLong
	}
	return nil
}

// ValidateAndCreate проверяет правила по порядку и сохраняет бронь.
// Лимит активных броней, проверка комнаты и вставка идут в одной транзакции
// под локами пользователя и комнаты.
func (s *BookingService) ValidateAndCreate(ctx context.Context, userID int64, req NewBooking, now time.Time) (*model.Booking, error) {
	if userID <= 0 {
		return nil, ErrInvalidUserID
	}
	if !calendar.IsKnownRoom(req.Room) {
		return nil, ErrUnknownRoom
	}

	start, end, now := req.Start.UTC(), req.End.UTC(), now.UTC()
	if err := checkTimeRules(start, end, now); err != nil {
		return nil, err
	}

	booking := &model.Booking{
		UserID:        userID,
		Room:          req.Room,
		StartTime:     start,
		EndTime:       end,
		OccupantLabel: strings.TrimSpace(req.OccupantLabel),
		Reason:        normalizeReason(req.Reason),
	}

	err := s.tx.InTx(ctx, func(repos repository.Repositories) error {
		// порядок фиксирован: сначала пользователь, потом комната
		if err := repos.Bookings.LockUser(ctx, userID); err != nil {
			return fmt.Errorf("lock user: %w", err)
		}
		if err := repos.Bookings.LockRoom(ctx, req.Room); err != nil {
			return fmt.Errorf("lock room: %w", err)
		}

		active, err := repos.Bookings.CountActiveByUser(ctx, userID, now)
		if err != nil {
			return fmt.Errorf("count active bookings: %w", err)
		}
		if active >= MaxActivePerUser {
			return ErrTooManyActive
		}

		taken, err := repos.Bookings.ExistsOverlap(ctx, req.Room, start, end, nil)
		if err != nil {
			return fmt.Errorf("check overlap: %w", err)
		}
		if taken {
			return ErrRoomTaken
		}

		if err := repos.Bookings.Create(ctx, booking); err != nil {
			if errors.Is(err, repository.ErrRoomOverlap) {
				return ErrRoomTaken
			}
			return fmt.Errorf("create booking: %w", err)
		}

		return repos.Events.Create(ctx, bookingEvent(model.EventTypeBookingCreated, booking))
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("booking created",
		"booking_id", booking.ID,
		"user_id", userID,
		"room", booking.Room,
		"start", booking.StartTime,
		"end", booking.EndTime,
	)
	s.publish(ctx, model.EventTypeBookingCreated, *booking)
	return booking, nil
}

// Cancel удаляет бронь, только если она принадлежит пользователю.
func (s *BookingService) Cancel(ctx context.Context, bookingID, userID int64) (*model.Booking, error) {
	var deleted *model.Booking
	err := s.tx.InTx(ctx, func(repos repository.Repositories) error {
		b, err := repos.Bookings.DeleteOwned(ctx, bookingID, userID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("delete booking: %w", err)
		}
		deleted = b
		return repos.Events.Create(ctx, bookingEvent(model.EventTypeBookingCancelled, b))
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("booking cancelled", "booking_id", bookingID, "user_id", userID, "room", deleted.Room)
	s.publish(ctx, model.EventTypeBookingCancelled, *deleted)
	return deleted, nil
}

// publish отправляет событие после коммита. Ошибки только логируются:
// бронь уже сохранена.
func (s *BookingService) publish(ctx context.Context, eventType model.EventType, b model.Booking) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	err := s.publisher.Publish(ctx, events.BookingEvent{
		Type:       eventType,
		Booking:    b,
		OccurredAt: s.clock.Now(),
	})
	if err != nil {
		s.log.Warn("publish booking event failed", "type", eventType, "booking_id", b.ID, "error", err)
	}
}

func bookingEvent(eventType model.EventType, b *model.Booking) *model.Event {
	userID, bookingID := b.UserID, b.ID
	details, _ := json.Marshal(map[string]any{
		"room":       b.Room,
		"start_time": b.StartTime.Format(time.RFC3339),
		"end_time":   b.EndTime.Format(time.RFC3339),
	})
	return &model.Event{
		Type:      eventType,
		UserID:    &userID,
		BookingID: &bookingID,
		Details:   details,
	}
}

func normalizeReason(reason *string) *string {
	if reason == nil {
		return nil
	}
	r := strings.TrimSpace(*reason)
	if r == "" {
		return nil
	}
	return &r
}
