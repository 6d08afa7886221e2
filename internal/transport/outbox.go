package transport

import (
	"sync"

	"github.com/danmuck/vrc20/internal/protocol/frame"
	"github.com/danmuck/vrc20/internal/vrc20"
	"github.com/rs/zerolog"
)

// eventOutbox is a bounded per-connection queue of events awaiting push.
// Pushes never block; a full outbox reports false and the connection is
// dropped.
type eventOutbox struct {
	mu       sync.Mutex
	open     bool
	draining bool
	items    chan vrc20.Event
}

func newEventOutbox(size int) *eventOutbox {
	return &eventOutbox{items: make(chan vrc20.Event, max(size, 1))}
}

// subscribe opens the outbox. It reports false when already open.
func (o *eventOutbox) subscribe() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.open {
		return false
	}
	o.open = true
	return true
}

// claimDrain reports true exactly once for an open outbox.
func (o *eventOutbox) claimDrain() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.open || o.draining {
		return false
	}
	o.draining = true
	return true
}

// push queues ev. Closed outboxes accept and discard.
func (o *eventOutbox) push(ev vrc20.Event) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.open {
		return true
	}
	select {
	case o.items <- ev:
		return true
	default:
		return false
	}
}

func (o *eventOutbox) subscribed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.open
}

func (o *eventOutbox) len() int {
	return len(o.items)
}

// drain writes queued events until the connection closes. Any write error
// closes the connection.
func (c *serverConn) drain(logger zerolog.Logger) {
	defer c.drainers.Done()
	for {
		select {
		case <-c.done:
			return
		case ev := <-c.outbox.items:
			if err := c.write(frame.New(frame.TypeEvent, 0, nil, ev.Bytes())); err != nil {
				logger.Warn().Err(err).Msg("event push failed, dropping connection")
				c.close()
				return
			}
		}
	}
}
