package db

import (
	"fmt"

	"gorm.io/gorm"
)

// Имя exclusion constraint; по нему же распознаём нарушение в репозитории.
const RoomOverlapConstraint = "bookings_room_no_overlap"

var postgresConstraints = []string{
	`CREATE EXTENSION IF NOT EXISTS btree_gist`,
	`DO $$
BEGIN
	IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'bookings_time_order') THEN
		ALTER TABLE bookings ADD CONSTRAINT bookings_time_order CHECK (end_time > start_time);
	END IF;
END $$`,
	`DO $$
BEGIN
	IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = '` + RoomOverlapConstraint + `') THEN
		ALTER TABLE bookings ADD CONSTRAINT ` + RoomOverlapConstraint + `
			EXCLUDE USING gist (room WITH =, tstzrange(start_time, end_time, '[)') WITH &&);
	END IF;
END $$`,
}

// EnsureConstraints ставит ограничения, которые AutoMigrate выразить не умеет.
// На SQLite ничего не делает: там гонки закрывает одно соединение.
func EnsureConstraints(db *gorm.DB) error {
	if !IsPostgres(db) {
		return nil
	}
	for _, stmt := range postgresConstraints {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("ensure constraints: %w", err)
		}
	}
	return nil
}
