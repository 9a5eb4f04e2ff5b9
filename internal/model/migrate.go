package model

import "gorm.io/gorm"

// AutoMigrate выполняет миграцию всех сущностей сервиса бронирования.
// Ограничения, специфичные для диалекта (exclusion constraint в Postgres),
// ставятся отдельно в пакете db.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Booking{},
		&Event{},
	)
}
