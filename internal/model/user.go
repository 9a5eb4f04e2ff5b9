package model

import (
	"strconv"
	"time"
)

// users
//
// ID — это Telegram ID пользователя, локально не генерируется.
type User struct {
	ID       int64  `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Username string `gorm:"type:varchar(255);index" json:"username"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

// DefaultUsername — заглушка для пользователей без username в Telegram.
func DefaultUsername(id int64) string {
	return "user_" + strconv.FormatInt(id, 10)
}
