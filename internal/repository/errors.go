package repository

import "errors"

var (
	ErrNotFound = errors.New("record not found")
	// Сработало ограничение на пересечение броней одной комнаты.
	ErrRoomOverlap = errors.New("room time range overlaps an existing booking")
)
