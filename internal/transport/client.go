package transport

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/danmuck/vrc20/internal/protocol/codec"
	"github.com/danmuck/vrc20/internal/protocol/frame"
	"github.com/danmuck/vrc20/internal/vrc20"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrClientClosed      = errors.New("transport: client closed")
	ErrUnexpectedFrame   = errors.New("transport: unexpected frame")
	ErrEmptyErrorFrame   = errors.New("transport: empty error frame")
	ErrConnectExhausted  = errors.New("transport: connect attempts exhausted")
	ErrAlreadySubscribed = errors.New("transport: already subscribed")
)

// Client is a remote vrc20 instance reached over one TCP connection.
// It is safe for concurrent use.
type Client struct {
	cfg    Config
	caller codec.Address
	conn   net.Conn
	logger zerolog.Logger

	writeMu sync.Mutex
	nextID  uint64

	mu      sync.Mutex
	pending map[uint64]chan frame.Frame
	events  chan vrc20.Event
	subbed  bool
	err     error
	done    chan struct{}
}

// Dial connects to addr, retrying with backoff up to cfg.MaxConnectAttempts.
func Dial(ctx context.Context, addr string, caller codec.Address, cfg Config) (*Client, error) {
	logger := log.Logger.With().Str("component", "transport.client").Str("addr", addr).Logger()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	attempts := max(cfg.MaxConnectAttempts, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := cfg.Backoff.Delay(attempt-1, rng)
			logger.Debug().Int("attempt", attempt).Dur("delay", delay).Msg("retrying dial")
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
		d := net.Dialer{Timeout: cfg.ConnectTimeout}
		nc, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			return newClient(nc, caller, cfg, logger), nil
		}
		lastErr = err
		logger.Warn().Err(err).Int("attempt", attempt).Msg("dial failed")
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("%w: %w", ErrConnectExhausted, lastErr)
}

// NewClient wraps an established connection.
func NewClient(nc net.Conn, caller codec.Address, cfg Config) *Client {
	return newClient(nc, caller, cfg, log.Logger.With().Str("component", "transport.client").Logger())
}

func newClient(nc net.Conn, caller codec.Address, cfg Config, logger zerolog.Logger) *Client {
	c := &Client{
		cfg:     cfg,
		caller:  caller,
		conn:    nc,
		logger:  logger,
		pending: make(map[uint64]chan frame.Frame),
		events:  make(chan vrc20.Event, max(cfg.EventBuffer, 1)),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Caller is the address stamped into every request.
func (c *Client) Caller() codec.Address { return c.caller }

func (c *Client) Close() error {
	err := c.conn.Close()
	<-c.done
	return err
}

// Events delivers pushed events after Subscribe. It closes with the client.
// Events are dropped when the buffer is full.
func (c *Client) Events() <-chan vrc20.Event {
	return c.events
}

// Subscribe asks the server to push ledger events to this connection.
func (c *Client) Subscribe(ctx context.Context) error {
	c.mu.Lock()
	if c.subbed {
		c.mu.Unlock()
		return ErrAlreadySubscribed
	}
	c.subbed = true
	c.mu.Unlock()

	f, err := c.roundTrip(ctx, frame.TypeSubscribe, nil)
	if err != nil {
		return err
	}
	if f.Header.MessageType != frame.TypeSubscribe {
		return fmt.Errorf("%w: type %d", ErrUnexpectedFrame, f.Header.MessageType)
	}
	return nil
}

// Call sends req and waits for its response. Dispatch rejections come back
// as the vrc20 sentinel errors.
func (c *Client) Call(ctx context.Context, req vrc20.Request) (vrc20.Response, error) {
	f, err := c.roundTrip(ctx, frame.TypeRequest, req.Bytes())
	if err != nil {
		return vrc20.Response{}, err
	}
	switch f.Header.MessageType {
	case frame.TypeResponse:
		return vrc20.ResponseFromBytes(f.Payload), nil
	case frame.TypeError:
		if len(f.Payload) == 0 {
			return vrc20.Response{}, ErrEmptyErrorFrame
		}
		return vrc20.Response{}, vrc20.ErrorFromCode(f.Payload[0])
	default:
		return vrc20.Response{}, fmt.Errorf("%w: type %d", ErrUnexpectedFrame, f.Header.MessageType)
	}
}

func (c *Client) roundTrip(ctx context.Context, messageType uint32, payload []byte) (frame.Frame, error) {
	ch := make(chan frame.Frame, 1)

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return frame.Frame{}, err
	}
	c.nextID++
	id := c.nextID
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	caller := c.caller
	if err := c.write(ctx, frame.New(messageType, id, &caller, payload)); err != nil {
		return frame.Frame{}, err
	}

	select {
	case f, ok := <-ch:
		if !ok {
			return frame.Frame{}, c.closedErr()
		}
		return f, nil
	case <-ctx.Done():
		return frame.Frame{}, ctx.Err()
	}
}

func (c *Client) write(ctx context.Context, f frame.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	deadline := time.Time{}
	if c.cfg.WriteTimeout > 0 {
		deadline = time.Now().Add(c.cfg.WriteTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	_ = c.conn.SetWriteDeadline(deadline)
	return frame.WriteFrame(c.conn, f, c.cfg.Limits)
}

func (c *Client) closedErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	return ErrClientClosed
}

func (c *Client) readLoop() {
	defer close(c.done)
	var readErr error
	for {
		f, err := frame.ReadFrame(c.conn, c.cfg.Limits)
		if err != nil {
			readErr = err
			break
		}
		if f.Header.MessageType == frame.TypeEvent {
			select {
			case c.events <- vrc20.EventFromBytes(f.Payload):
			default:
				c.logger.Warn().Msg("event buffer full, dropping event")
			}
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[f.Header.MessageID]
		c.mu.Unlock()
		if !ok {
			c.logger.Warn().Uint64("message_id", f.Header.MessageID).Msg("response for unknown request")
			continue
		}
		select {
		case ch <- f:
		default:
			c.logger.Warn().Uint64("message_id", f.Header.MessageID).Msg("duplicate response dropped")
		}
	}

	c.mu.Lock()
	c.err = fmt.Errorf("%w: %w", ErrClientClosed, readErr)
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()
	close(c.events)
	c.logger.Debug().Err(readErr).Msg("read loop stopped")
}
