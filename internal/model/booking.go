package model

import "time"

// bookings
//
// Интервал полуоткрытый: [StartTime, EndTime). Времена храним в UTC.
type Booking struct {
	ID     int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID int64  `gorm:"not null;index" json:"user_id"`
	Room   string `gorm:"type:varchar(255);not null;index" json:"room"`

	StartTime time.Time `gorm:"not null;index" json:"start_time"`
	EndTime   time.Time `gorm:"not null;index" json:"end_time"`

	// Номер комнаты/места самого жильца.
	OccupantLabel string  `gorm:"type:varchar(255);not null" json:"occupant_label"`
	Reason        *string `gorm:"type:text" json:"reason,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`

	// Заполняется только через Preload для дневного представления.
	User *User `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
}
