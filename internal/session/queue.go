package session

import (
	"github.com/google/uuid"
	"github.com/toprakhenaz/sword-combat/internal/domain"
)

// coinQueue holds coin deltas waiting to be persisted. A failed batch is kept
// whole, with its id, and goes out before anything queued after it.
type coinQueue struct {
	pending []domain.CoinDelta
	retry   *domain.CoinBatch
	ready   func(queued int) bool
}

func (q *coinQueue) push(d domain.CoinDelta) {
	q.pending = append(q.pending, d)
}

func (q *coinQueue) take(force bool) (*domain.CoinBatch, bool) {
	if q.retry != nil {
		b := q.retry
		q.retry = nil
		return b, true
	}
	if len(q.pending) == 0 {
		return nil, false
	}
	if !force && q.ready != nil && !q.ready(len(q.pending)) {
		return nil, false
	}
	b := &domain.CoinBatch{ID: uuid.NewString(), Deltas: q.pending}
	q.pending = nil
	return b, true
}

func (q *coinQueue) restore(b *domain.CoinBatch) {
	if q.retry != nil {
		// keep the older batch first
		q.pending = append(b.Deltas, q.pending...)
		return
	}
	q.retry = b
}

func (q *coinQueue) empty() bool {
	return q.retry == nil && len(q.pending) == 0
}

// energyQueue accumulates one net signed energy delta.
type energyQueue struct {
	net int
}

func (q *energyQueue) push(d int) { q.net += d }

func (q *energyQueue) take(bool) (int, bool) {
	if q.net == 0 {
		return 0, false
	}
	d := q.net
	q.net = 0
	return d, true
}

func (q *energyQueue) restore(d int) { q.net += d }

func (q *energyQueue) empty() bool { return q.net == 0 }
