package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Leganyst/room-booking/internal/logger"
	"github.com/Leganyst/room-booking/internal/model"
	"github.com/Leganyst/room-booking/internal/repository"
)

// IdentityService сопоставляет Telegram ID с локальным пользователем.
type IdentityService struct {
	users  repository.UserRepository
	events repository.EventRepository
	tx     repository.TxManager
	log    *logger.Logger
}

func NewIdentityService(repos repository.Repositories, tx repository.TxManager, log *logger.Logger) *IdentityService {
	return &IdentityService{users: repos.Users, events: repos.Events, tx: tx, log: log}
}

// ResolveOrCreate возвращает пользователя по Telegram ID, создавая его при первом входе.
// Username существующего пользователя не обновляется.
func (s *IdentityService) ResolveOrCreate(ctx context.Context, id int64, username string) (*model.User, bool, error) {
	if id <= 0 {
		return nil, false, ErrInvalidUserID
	}

	u, err := s.users.FindByID(ctx, id)
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, fmt.Errorf("find user %d: %w", id, err)
	}

	if username == "" {
		username = model.DefaultUsername(id)
	}

	var (
		user    *model.User
		created bool
	)
	err = s.tx.InTx(ctx, func(repos repository.Repositories) error {
		candidate := &model.User{ID: id, Username: username}
		ok, err := repos.Users.CreateIfAbsent(ctx, candidate)
		if err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		created = ok

		if created {
			details, _ := json.Marshal(map[string]string{"username": username})
			if err := repos.Events.Create(ctx, &model.Event{
				Type:    model.EventTypeUserRegistered,
				UserID:  &id,
				Details: details,
			}); err != nil {
				return fmt.Errorf("record user_registered: %w", err)
			}
		}

		// перечитываем: при гонке строку мог вставить соседний запрос
		user, err = repos.Users.FindByID(ctx, id)
		if err != nil {
			return fmt.Errorf("reload user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		s.log.Info("user registered", "user_id", id, "username", user.Username)
	}
	return user, created, nil
}

// WelcomeSent — отправлялось ли пользователю приветствие.
func (s *IdentityService) WelcomeSent(ctx context.Context, userID int64) (bool, error) {
	sent, err := s.events.ExistsForUser(ctx, userID, model.EventTypeWelcomeSent)
	if err != nil {
		return false, fmt.Errorf("check welcome: %w", err)
	}
	return sent, nil
}

// MarkWelcomeSent фиксирует отправку приветствия.
func (s *IdentityService) MarkWelcomeSent(ctx context.Context, userID int64) error {
	if err := s.events.Create(ctx, &model.Event{
		Type:   model.EventTypeWelcomeSent,
		UserID: &userID,
	}); err != nil {
		return fmt.Errorf("record welcome_sent: %w", err)
	}
	return nil
}
