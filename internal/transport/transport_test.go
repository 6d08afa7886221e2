package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/vrc20/internal/ledger"
	"github.com/danmuck/vrc20/internal/protocol/codec"
	"github.com/danmuck/vrc20/internal/protocol/frame"
	"github.com/danmuck/vrc20/internal/testutil/testlog"
	"github.com/danmuck/vrc20/internal/vrc20"
)

func addr(b byte) codec.Address {
	var a codec.Address
	a[31] = b
	return a
}

type harness struct {
	book   *ledger.Book
	server *Server
	addr   string
	cancel context.CancelFunc
	done   chan error
}

func startServer(t *testing.T, opts ...ServerOption) *harness {
	t.Helper()
	return startServerWithConfig(t, DefaultConfig(), opts...)
}

func startServerWithConfig(t *testing.T, cfg Config, opts ...ServerOption) *harness {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	book := ledger.NewBook(ledger.Metadata{Name: "Vara Token", Symbol: "VARA", Decimals: 12})
	book.Mint(addr(1), codec.U256FromUint64(1000))
	srv := NewServer(cfg, book, opts...)
	book.Subscribe(srv)

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{book: book, server: srv, addr: ln.Addr().String(), cancel: cancel, done: make(chan error, 1)}
	go func() { h.done <- srv.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-h.done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("serve returned %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Errorf("server did not stop")
		}
	})
	return h
}

func dial(t *testing.T, h *harness, caller codec.Address) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, h.addr, caller, DefaultConfig())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestInstanceRoundTrip(t *testing.T) {
	testlog.Start(t)
	h := startServer(t)
	alice := NewInstance(dial(t, h, addr(1)))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	name, err := alice.Name(ctx)
	if err != nil || name != "Vara Token" {
		t.Fatalf("name got=%q err=%v", name, err)
	}
	sym, err := alice.Symbol(ctx)
	if err != nil || sym != "VARA" {
		t.Fatalf("symbol got=%q err=%v", sym, err)
	}
	dec, err := alice.Decimals(ctx)
	if err != nil || dec != 12 {
		t.Fatalf("decimals got=%d err=%v", dec, err)
	}
	supply, err := alice.TotalSupply(ctx)
	if err != nil || supply != codec.U256FromUint64(1000) {
		t.Fatalf("supply got=%s err=%v", supply, err)
	}
	ok, err := alice.Transfer(ctx, addr(2), codec.U256FromUint64(250))
	if err != nil || !ok {
		t.Fatalf("transfer got=%v err=%v", ok, err)
	}
	bal, err := alice.BalanceOf(ctx, addr(2))
	if err != nil || bal != codec.U256FromUint64(250) {
		t.Fatalf("balance got=%s err=%v", bal, err)
	}
	ok, err = alice.Approve(ctx, addr(3), codec.U256FromUint64(100))
	if err != nil || !ok {
		t.Fatalf("approve got=%v err=%v", ok, err)
	}

	carol := NewInstance(dial(t, h, addr(3)))
	ok, err = carol.TransferFrom(ctx, addr(1), addr(3), codec.U256FromUint64(60))
	if err != nil || !ok {
		t.Fatalf("transfer_from got=%v err=%v", ok, err)
	}
	left, err := carol.Allowance(ctx, addr(1), addr(3))
	if err != nil || left != codec.U256FromUint64(40) {
		t.Fatalf("allowance got=%s err=%v", left, err)
	}
}

func TestClientReceivesDispatchErrors(t *testing.T) {
	testlog.Start(t)
	h := startServer(t)
	c := dial(t, h, addr(1))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cases := []struct {
		buf  []byte
		want error
	}{
		{make([]byte, 20), vrc20.ErrWrongStandard},
		{vrc20.Prefix.EncodeWithDiscriminant(77), vrc20.ErrWrongCall},
		{vrc20.Prefix.EncodeWithDiscriminantAndPayload(uint8(vrc20.OpTransfer), make([]byte, 10)), vrc20.ErrWrongArguments},
	}
	for _, tc := range cases {
		_, err := c.Call(ctx, vrc20.RequestFromBytes(tc.buf))
		if !errors.Is(err, tc.want) {
			t.Fatalf("expected %v, got %v", tc.want, err)
		}
	}
	name, err := NewInstance(c).Name(ctx)
	if err != nil || name != "Vara Token" {
		t.Fatalf("connection should survive rejected calls, got=%q err=%v", name, err)
	}
}

func TestSubscribeReceivesEvents(t *testing.T) {
	testlog.Start(t)
	h := startServer(t)
	watcher := dial(t, h, addr(9))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := watcher.Subscribe(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := watcher.Subscribe(ctx); !errors.Is(err, ErrAlreadySubscribed) {
		t.Fatalf("expected ErrAlreadySubscribed, got %v", err)
	}

	alice := NewInstance(dial(t, h, addr(1)))
	if ok, err := alice.Transfer(ctx, addr(2), codec.U256FromUint64(5)); err != nil || !ok {
		t.Fatalf("transfer got=%v err=%v", ok, err)
	}

	select {
	case ev := <-watcher.Events():
		tr, err := ev.Transfer()
		if err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if tr.From != addr(1) || tr.To != addr(2) || tr.Value != codec.U256FromUint64(5) {
			t.Fatalf("unexpected event %+v", tr)
		}
	case <-ctx.Done():
		t.Fatalf("no event received")
	}
}

func TestObserverCountsRemoteDispatch(t *testing.T) {
	testlog.Start(t)
	var mu sync.Mutex
	seen := map[vrc20.ErrorKind]int{}
	h := startServer(t, WithServerObserver(vrc20.ObserverFunc(func(_ vrc20.OperationID, kind vrc20.ErrorKind, _ time.Duration) {
		mu.Lock()
		seen[kind]++
		mu.Unlock()
	})))
	c := dial(t, h, addr(1))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _ = c.Call(ctx, vrc20.NewDecimalsRequest())
	_, _ = c.Call(ctx, vrc20.RequestFromBytes(vrc20.Prefix.EncodeWithDiscriminant(50)))

	mu.Lock()
	defer mu.Unlock()
	if seen[0] != 1 || seen[vrc20.KindWrongCall] != 1 {
		t.Fatalf("unexpected observations %v", seen)
	}
}

func TestCallHonorsContext(t *testing.T) {
	testlog.Start(t)
	server, client := net.Pipe()
	defer server.Close()
	c := NewClient(client, addr(1), DefaultConfig())
	defer c.Close()

	// drain the request and never answer
	go func() {
		buf := make([]byte, 1024)
		for {
			if _, err := server.Read(buf); err != nil {
				return
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Call(ctx, vrc20.NewNameRequest())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestCallAfterServerCloseFails(t *testing.T) {
	testlog.Start(t)
	server, client := net.Pipe()
	c := NewClient(client, addr(1), DefaultConfig())
	defer c.Close()
	_ = server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := c.Call(ctx, vrc20.NewNameRequest())
	if err == nil {
		t.Fatalf("expected error after peer close")
	}
}

func TestDialExhaustsAttempts(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	target := ln.Addr().String()
	_ = ln.Close()

	cfg := DefaultConfig()
	cfg.MaxConnectAttempts = 2
	cfg.Backoff = BackoffConfig{InitialDelay: time.Millisecond, Multiplier: 2, MaxDelay: 5 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = Dial(ctx, target, addr(1), cfg)
	if !errors.Is(err, ErrConnectExhausted) {
		t.Fatalf("expected ErrConnectExhausted, got %v", err)
	}
}

func TestBackoffDelayDeterministicNoJitter(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
	}
	cases := map[int]time.Duration{
		1: 250 * time.Millisecond,
		2: 500 * time.Millisecond,
		3: time.Second,
		6: 5 * time.Second,
	}
	for attempt, want := range cases {
		if got := cfg.Delay(attempt, nil); got != want {
			t.Fatalf("attempt%d got=%v want=%v", attempt, got, want)
		}
	}
	cfg.Jitter = true
	if got := cfg.Delay(2, nil); got != 500*time.Millisecond {
		t.Fatalf("nil rng jitter should use midpoint, got=%v", got)
	}
}

func (h *harness) connCount() int {
	h.server.mu.Lock()
	defer h.server.mu.Unlock()
	return len(h.server.conns)
}

func TestStalledSubscriberDoesNotBlockLedger(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.WriteTimeout = 300 * time.Millisecond
	cfg.EventBuffer = 4
	h := startServerWithConfig(t, cfg)
	h.book.Mint(addr(1), codec.U256FromUint64(1_000_000_000))

	stalled, err := net.Dial("tcp", h.addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer stalled.Close()
	if err := frame.WriteFrame(stalled, frame.New(frame.TypeSubscribe, 1, nil, nil), cfg.Limits); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for h.connCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("connection never tracked")
		}
		time.Sleep(5 * time.Millisecond)
	}

	alice := h.book.As(addr(1))
	var slowest time.Duration
	for h.connCount() > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("stalled subscriber was never dropped; slowest transfer %v", slowest)
		}
		for i := 0; i < 500; i++ {
			start := time.Now()
			if !alice.Transfer(addr(2), codec.U256FromUint64(1)) {
				t.Fatalf("transfer %d failed", i)
			}
			slowest = max(slowest, time.Since(start))
		}
	}
	if slowest >= cfg.WriteTimeout {
		t.Fatalf("transfer blocked on subscriber: slowest=%v write_timeout=%v", slowest, cfg.WriteTimeout)
	}

	_ = stalled.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, err := io.Copy(io.Discard, stalled); err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			t.Fatalf("server left the stalled connection open")
		}
	}
}

func TestSubscriberSkipsIdleTimeout(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.IdleTimeout = 100 * time.Millisecond
	h := startServerWithConfig(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, h.addr, addr(9), cfg)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()
	if err := c.Subscribe(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	time.Sleep(3 * cfg.IdleTimeout)

	h.book.As(addr(1)).Transfer(addr(2), codec.U256FromUint64(1))
	select {
	case ev, ok := <-c.Events():
		if !ok {
			t.Fatalf("subscriber was dropped by the idle timeout")
		}
		if kind, err := ev.Kind(); err != nil || kind != vrc20.EventTransfer {
			t.Fatalf("unexpected event kind=%v err=%v", kind, err)
		}
	case <-ctx.Done():
		t.Fatalf("no event received")
	}
}
