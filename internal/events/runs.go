package events

import (
	"sync"
	"time"
)

// RunSummary is a domain event describing a finished rebalancing run.
// Amounts are strings to avoid float precision issues when consumed by web clients.
type RunSummary struct {
	Timestamp    time.Time `json:"ts"`
	RunID        string    `json:"run_id"`
	Outcome      string    `json:"outcome"`
	DryRun       bool      `json:"dry_run,omitempty"`
	TotalValue   string    `json:"total_value,omitempty"`
	Planned      int       `json:"planned"`
	Completed    int       `json:"completed"`
	NotAttempted int       `json:"not_attempted"`
	Error        string    `json:"error,omitempty"`
}

// RunBroadcaster fans out run summaries to all subscribers via buffered channels.
type RunBroadcaster struct {
	mu     sync.RWMutex
	subs   map[chan RunSummary]struct{}
	buffer int
}

// NewRunBroadcaster creates a broadcaster with the given per-subscriber buffer.
func NewRunBroadcaster(buffer int) *RunBroadcaster {
	if buffer < 1 {
		buffer = 64
	}
	return &RunBroadcaster{
		subs:   make(map[chan RunSummary]struct{}),
		buffer: buffer,
	}
}

// Publish sends the summary to all subscribers, dropping if a reader is slow.
func (b *RunBroadcaster) Publish(s RunSummary) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- s:
		default:
			// drop slow consumer
		}
	}
}

// Subscribe returns a channel that receives summaries until Unsubscribe is called.
func (b *RunBroadcaster) Subscribe() chan RunSummary {
	ch := make(chan RunSummary, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the channel and closes it.
func (b *RunBroadcaster) Unsubscribe(ch chan RunSummary) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Subscribers returns the number of active subscribers.
func (b *RunBroadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
