package geodatabase

import (
	"sync"

	"placemap/internal/domain"
)

// pendingQueue holds staged adds in the order they were made.
type pendingQueue struct {
	mu    sync.Mutex
	items []domain.Feature
}

func (q *pendingQueue) push(f domain.Feature) {
	q.mu.Lock()
	q.items = append(q.items, f)
	q.mu.Unlock()
}

func (q *pendingQueue) take() []domain.Feature {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

// prepend puts fs back in front of anything staged since they were taken.
func (q *pendingQueue) prepend(fs []domain.Feature) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(append([]domain.Feature(nil), fs...), q.items...)
}

func (q *pendingQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
