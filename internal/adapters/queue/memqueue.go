package queue

import (
	"sync"

	"github.com/Eric-Butcher/RealTimeRobot/internal/domain"
	"github.com/Eric-Butcher/RealTimeRobot/internal/ports"
)

// MemQueue is a bounded in-memory FIFO of telemetry events.
// Enqueue never blocks; a full queue rejects the event and counts the drop.
type MemQueue struct {
	mu      sync.Mutex
	data    []*domain.Event
	cap     int
	dropped uint64
}

func NewMemQueue(capacity int) *MemQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemQueue{
		data: make([]*domain.Event, 0, capacity),
		cap:  capacity,
	}
}

func (q *MemQueue) Enqueue(e *domain.Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) >= q.cap {
		q.dropped++
		return false
	}
	q.data = append(q.data, e)
	return true
}

func (q *MemQueue) DequeueBatch(max int) []*domain.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) == 0 {
		return nil
	}
	if max <= 0 || max > len(q.data) {
		max = len(q.data)
	}
	out := make([]*domain.Event, max)
	copy(out, q.data[:max])
	q.data = append(q.data[:0], q.data[max:]...)
	return out
}

func (q *MemQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data)
}

// Dropped returns the number of events rejected since creation.
func (q *MemQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

var _ ports.EventQueue = (*MemQueue)(nil)
