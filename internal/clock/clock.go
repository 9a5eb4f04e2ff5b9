// Package clock — источник текущего времени, который можно подменить в тестах.
package clock

import (
	"sync"
	"time"
)

// Clock отдаёт текущее время. Сервисы не вызывают time.Now напрямую.
type Clock interface {
	Now() time.Time
}

// Real возвращает часы на основе пакета time. Время всегда в UTC.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// Fake возвращает часы, которые всегда показывают initial.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{current: initial.UTC()}
}

// FakeClock безопасен для конкурентного использования.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}
