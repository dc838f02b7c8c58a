package events

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Snapwave333/klashibot-sub001/internal/model"
)

// DefaultBufferSize is the per-subscriber channel depth.
const DefaultBufferSize = 16

// Hub broadcasts cycle results to any number of subscribers.
type Hub struct {
	logger     *slog.Logger
	bufferSize int

	mu   sync.Mutex
	subs map[chan model.CycleResult]struct{}

	dropped atomic.Int64
}

// NewHub creates a hub. bufferSize <= 0 uses DefaultBufferSize.
func NewHub(bufferSize int, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Hub{
		logger:     logger,
		bufferSize: bufferSize,
		subs:       make(map[chan model.CycleResult]struct{}),
	}
}

// Subscribe registers a new subscriber. The returned cancel func must
// be called exactly once; after cancel the channel is closed.
func (h *Hub) Subscribe() (<-chan model.CycleResult, func()) {
	ch := make(chan model.CycleResult, h.bufferSize)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers a result to every subscriber without blocking.
// Subscribers with a full buffer miss this event.
func (h *Hub) Publish(result model.CycleResult) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs {
		select {
		case ch <- result:
		default:
			h.dropped.Add(1)
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Dropped returns the total events dropped on full subscriber buffers.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}
