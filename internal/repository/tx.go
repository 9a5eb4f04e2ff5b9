package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repositories — набор репозиториев поверх одного *gorm.DB
// (пула соединений или открытой транзакции).
type Repositories struct {
	Users    UserRepository
	Bookings BookingRepository
	Events   EventRepository
}

func NewGormRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Users:    NewGormUserRepository(db),
		Bookings: NewGormBookingRepository(db),
		Events:   NewGormEventRepository(db),
	}
}

// TxManager выполняет fn в одной транзакции. Ошибка из fn — откат.
type TxManager interface {
	InTx(ctx context.Context, fn func(repos Repositories) error) error
}

type GormTxManager struct {
	db *gorm.DB
}

func NewGormTxManager(db *gorm.DB) *GormTxManager {
	return &GormTxManager{db: db}
}

func (m *GormTxManager) InTx(ctx context.Context, fn func(repos Repositories) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewGormRepositories(tx))
	})
}
