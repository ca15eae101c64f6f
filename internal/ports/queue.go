package ports

import "github.com/Eric-Butcher/RealTimeRobot/internal/domain"

type EventQueue interface {
	Enqueue(e *domain.Event) bool
	DequeueBatch(max int) []*domain.Event
	Len() int
}
