package ports

import "github.com/Eric-Butcher/RealTimeRobot/internal/domain"

type EventSink interface {
	WriteBatch(events []*domain.Event) error
	Name() string
}
