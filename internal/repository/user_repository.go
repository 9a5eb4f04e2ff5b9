package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Leganyst/room-booking/internal/model"
)

type UserRepository interface {
	// Найти пользователя по Telegram ID.
	FindByID(ctx context.Context, id int64) (*model.User, error)
	// Создать пользователя, если его ещё нет. created=false — строка уже была.
	CreateIfAbsent(ctx context.Context, user *model.User) (created bool, err error)
}

type GormUserRepository struct {
	db *gorm.DB
}

func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// CreateIfAbsent не падает на гонке двух первых логинов: проигравший INSERT
// просто ничего не вставит.
func (r *GormUserRepository) CreateIfAbsent(ctx context.Context, user *model.User) (bool, error) {
	tx := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(user)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected == 1, nil
}
