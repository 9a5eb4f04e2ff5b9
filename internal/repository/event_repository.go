package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Leganyst/room-booking/internal/model"
)

type EventRepository interface {
	Create(ctx context.Context, event *model.Event) error
	// Было ли у пользователя событие данного типа.
	ExistsForUser(ctx context.Context, userID int64, eventType model.EventType) (bool, error)
	ListByUser(ctx context.Context, userID int64) ([]model.Event, error)
}

type GormEventRepository struct {
	db *gorm.DB
}

func NewGormEventRepository(db *gorm.DB) *GormEventRepository {
	return &GormEventRepository{db: db}
}

func (r *GormEventRepository) Create(ctx context.Context, event *model.Event) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *GormEventRepository) ExistsForUser(ctx context.Context, userID int64, eventType model.EventType) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Event{}).
		Where("user_id = ? AND type = ?", userID, eventType).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *GormEventRepository) ListByUser(ctx context.Context, userID int64) ([]model.Event, error) {
	var events []model.Event
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
