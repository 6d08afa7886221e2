package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/danmuck/vrc20/internal/protocol/codec"
	"github.com/danmuck/vrc20/internal/protocol/frame"
	"github.com/danmuck/vrc20/internal/vrc20"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LedgerProvider hands out a Ledger bound to one caller.
type LedgerProvider interface {
	As(caller codec.Address) vrc20.Ledger
}

// Server answers request frames and pushes events to subscribers.
type Server struct {
	cfg      Config
	provider LedgerProvider
	logger   zerolog.Logger
	observer vrc20.Observer

	mu     sync.Mutex
	conns  map[*serverConn]struct{}
	closed bool
}

// ServerOption configures a Server.
type ServerOption func(*Server)

func WithServerLogger(logger zerolog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithServerObserver(observer vrc20.Observer) ServerOption {
	return func(s *Server) {
		s.observer = observer
	}
}

func NewServer(cfg Config, provider LedgerProvider, opts ...ServerOption) *Server {
	s := &Server{
		cfg:      cfg,
		provider: provider,
		logger:   log.Logger.With().Str("component", "transport.server").Logger(),
		conns:    make(map[*serverConn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve accepts connections until ctx is canceled or ln fails.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("server started")

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = ln.Close()
		case <-stop:
		}
	}()

	var wg sync.WaitGroup
	defer wg.Wait()
	defer s.closeAll()

	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info().Str("addr", ln.Addr().String()).Msg("server stopped")
				return ctx.Err()
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			s.logger.Error().Err(err).Msg("accept error")
			return err
		}

		c := newServerConn(s, nc)
		if !s.track(c) {
			_ = nc.Close()
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer s.untrack(c)
			c.run()
		}()
	}
}

// Emit queues ev on every subscribed connection's outbox and never blocks
// on the network. A subscriber whose outbox is full is disconnected. It
// satisfies ledger.EventSink.
func (s *Server) Emit(ev vrc20.Event) {
	s.mu.Lock()
	targets := make([]*serverConn, 0, len(s.conns))
	for c := range s.conns {
		targets = append(targets, c)
	}
	s.mu.Unlock()

	for _, c := range targets {
		if c.closed() || c.outbox.push(ev) {
			continue
		}
		s.logger.Warn().
			Str("remote", c.conn.RemoteAddr().String()).
			Int("queued", c.outbox.len()).
			Msg("subscriber outbox full, dropping connection")
		c.close()
	}
}

func (s *Server) track(c *serverConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) untrack(c *serverConn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	c.close()
}

func (s *Server) closeAll() {
	s.mu.Lock()
	s.closed = true
	conns := make([]*serverConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		c.close()
	}
}

type serverConn struct {
	server *Server
	conn   net.Conn
	outbox *eventOutbox

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
	drainers  sync.WaitGroup
}

func newServerConn(s *Server, nc net.Conn) *serverConn {
	return &serverConn{
		server: s,
		conn:   nc,
		outbox: newEventOutbox(s.cfg.EventBuffer),
		done:   make(chan struct{}),
	}
}

// close is idempotent. A frame cut short by a failed write cannot be
// resynchronized, so every write failure ends up here.
func (c *serverConn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *serverConn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *serverConn) write(f frame.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if wt := c.server.cfg.WriteTimeout; wt > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(wt))
	}
	return frame.WriteFrame(c.conn, f, c.server.cfg.Limits)
}

func (c *serverConn) run() {
	s := c.server
	logger := s.logger.With().Str("remote", c.conn.RemoteAddr().String()).Logger()
	logger.Debug().Msg("connection opened")
	defer c.drainers.Wait()
	defer c.close()

	for {
		// Subscribers may stay silent while they watch events.
		if it := s.cfg.IdleTimeout; it > 0 && !c.outbox.subscribed() {
			_ = c.conn.SetReadDeadline(time.Now().Add(it))
		} else {
			_ = c.conn.SetReadDeadline(time.Time{})
		}
		f, err := frame.ReadFrame(c.conn, s.cfg.Limits)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				logger.Debug().Msg("connection closed")
			} else {
				logger.Warn().Err(err).Msg("read frame failed")
			}
			return
		}

		reply, ok := c.handle(logger, f)
		if !ok {
			return
		}
		if err := c.write(reply); err != nil {
			logger.Warn().Err(err).Msg("write frame failed")
			return
		}
		if reply.Header.MessageType == frame.TypeSubscribe && c.outbox.claimDrain() {
			c.drainers.Add(1)
			go c.drain(logger)
		}
	}
}

func (c *serverConn) handle(logger zerolog.Logger, f frame.Frame) (frame.Frame, bool) {
	id := f.Header.MessageID
	switch f.Header.MessageType {
	case frame.TypeRequest:
		caller, _, err := f.Caller()
		if err != nil {
			logger.Warn().Err(err).Uint64("message_id", id).Msg("bad caller")
			return frame.Frame{}, false
		}
		return c.server.dispatch(caller, id, f.Payload), true
	case frame.TypeSubscribe:
		if c.outbox.subscribe() {
			logger.Debug().Msg("subscribed to events")
		}
		return frame.New(frame.TypeSubscribe, id, nil, nil), true
	default:
		logger.Warn().Uint32("message_type", f.Header.MessageType).Msg("unexpected frame type")
		return frame.Frame{}, false
	}
}

func (s *Server) dispatch(caller codec.Address, id uint64, payload []byte) frame.Frame {
	opts := []vrc20.ProcessorOption{vrc20.WithLogger(s.logger)}
	if s.observer != nil {
		opts = append(opts, vrc20.WithObserver(s.observer))
	}
	p := vrc20.NewProcessor(s.provider.As(caller), opts...)
	resp, err := p.ProcessBytes(payload)
	if err != nil {
		kind, _ := vrc20.KindOf(err)
		return frame.New(frame.TypeError, id, nil, []byte{uint8(kind)})
	}
	return frame.New(frame.TypeResponse, id, nil, resp.Bytes())
}
