package rebalance

import "github.com/shopspring/decimal"

// position remaining delta of one asset inside the netting loop.
type position struct {
	coinType string
	delta    decimal.Decimal
}

// deque sorted work queue with O(1) pop and re-insert at the front.
// Partially filled entries go back to the front, not to their sorted position.
type deque struct {
	items []position
	head  int
}

func newDeque(items []position) *deque {
	return &deque{items: items}
}

func (q *deque) Len() int {
	return len(q.items) - q.head
}

// PopFront removes and returns the front entry. Callers check Len first.
func (q *deque) PopFront() position {
	p := q.items[q.head]
	q.head++
	return p
}

// PushFront re-inserts an entry at the front.
func (q *deque) PushFront(p position) {
	if q.head > 0 {
		q.head--
		q.items[q.head] = p
		return
	}
	q.items = append([]position{p}, q.items...)
}

// Remaining returns the entries still queued, front first.
func (q *deque) Remaining() []position {
	out := make([]position, q.Len())
	copy(out, q.items[q.head:])
	return out
}
