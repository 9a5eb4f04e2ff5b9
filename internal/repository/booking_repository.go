package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/Leganyst/room-booking/internal/db"
	"github.com/Leganyst/room-booking/internal/model"
)

// SQLSTATE exclusion_violation.
const pgExclusionViolation = "23P01"

type BookingRepository interface {
	// Создать новое бронирование.
	Create(ctx context.Context, booking *model.Booking) error
	// Получить бронирование по ID.
	GetByID(ctx context.Context, id int64) (*model.Booking, error)
	// Брони пользователя с end_time > now, по возрастанию начала.
	ListActiveByUser(ctx context.Context, userID int64, now time.Time) ([]model.Booking, error)
	CountActiveByUser(ctx context.Context, userID int64, now time.Time) (int64, error)
	// Брони, начинающиеся в [from, to), вместе с владельцем.
	ListStartingBetween(ctx context.Context, from, to time.Time) ([]model.Booking, error)
	// Есть ли бронь комнаты, пересекающая [start, end). excludeID исключает одну бронь.
	ExistsOverlap(ctx context.Context, room string, start, end time.Time, excludeID *int64) (bool, error)
	// Удалить бронь, только если она принадлежит userID. Иначе ErrNotFound.
	DeleteOwned(ctx context.Context, id, userID int64) (*model.Booking, error)

	// Транзакционные advisory-локи. Имеют смысл только внутри транзакции.
	LockUser(ctx context.Context, userID int64) error
	LockRoom(ctx context.Context, room string) error
}

// Реализация на GORM.
type GormBookingRepository struct {
	db *gorm.DB
}

func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

func (r *GormBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	err := r.db.WithContext(ctx).Create(booking).Error
	if isExclusionViolation(err) {
		return ErrRoomOverlap
	}
	return err
}

func (r *GormBookingRepository) GetByID(ctx context.Context, id int64) (*model.Booking, error) {
	var b model.Booking
	if err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *GormBookingRepository) ListActiveByUser(ctx context.Context, userID int64, now time.Time) ([]model.Booking, error) {
	var bookings []model.Booking
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND end_time > ?", userID, now).
		Order("start_time ASC, id ASC").
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *GormBookingRepository) CountActiveByUser(ctx context.Context, userID int64, now time.Time) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("user_id = ? AND end_time > ?", userID, now).
		Count(&total).Error
	return total, err
}

func (r *GormBookingRepository) ListStartingBetween(ctx context.Context, from, to time.Time) ([]model.Booking, error) {
	var bookings []model.Booking
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("start_time >= ? AND start_time < ?", from, to).
		Order("start_time ASC, id ASC").
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *GormBookingRepository) ExistsOverlap(
	ctx context.Context,
	room string,
	start, end time.Time,
	excludeID *int64,
) (bool, error) {
	q := r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("room = ?", room).
		Where("end_time > ? AND start_time < ?", start, end)
	if excludeID != nil {
		q = q.Where("id <> ?", *excludeID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return false, err
	}
	return total > 0, nil
}

// DeleteOwned — условное удаление: владелец входит в предикат DELETE,
// поэтому два параллельных удаления не удалят строку дважды.
func (r *GormBookingRepository) DeleteOwned(ctx context.Context, id, userID int64) (*model.Booking, error) {
	var b model.Booking
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&b).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	tx := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&model.Booking{})
	if tx.Error != nil {
		return nil, tx.Error
	}
	if tx.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (r *GormBookingRepository) LockUser(ctx context.Context, userID int64) error {
	return r.advisoryLock(ctx, fmt.Sprintf("user:%d", userID))
}

func (r *GormBookingRepository) LockRoom(ctx context.Context, room string) error {
	return r.advisoryLock(ctx, "room:"+room)
}

// advisoryLock берёт pg_advisory_xact_lock, который отпускается вместе с транзакцией.
// На SQLite транзакции и так идут по одной.
func (r *GormBookingRepository) advisoryLock(ctx context.Context, key string) error {
	if !db.IsPostgres(r.db) {
		return nil
	}
	return r.db.WithContext(ctx).
		Exec("SELECT pg_advisory_xact_lock(hashtext(?))", key).
		Error
}

func isExclusionViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgExclusionViolation
	}
	return strings.Contains(err.Error(), db.RoomOverlapConstraint)
}
