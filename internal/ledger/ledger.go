// Package ledger is an in-memory token book satisfying vrc20.Ledger.
//
// A Book holds balances and allowances. Book.As binds a caller so that
// transfer and approve act on the caller's account.
package ledger

import (
	"sort"
	"sync"

	"github.com/danmuck/vrc20/internal/protocol/codec"
	"github.com/danmuck/vrc20/internal/vrc20"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// EventSink receives every event a Book emits, in commit order. Emit runs
// while the Book sequences delivery, so it must not block or call back into
// the Book.
type EventSink interface {
	Emit(vrc20.Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(vrc20.Event)

func (f EventSinkFunc) Emit(ev vrc20.Event) { f(ev) }

// Metadata is the immutable token description.
type Metadata struct {
	Name     string
	Symbol   string
	Decimals uint8
}

type allowanceKey struct {
	owner   codec.Address
	spender codec.Address
}

// Book is safe for concurrent use.
type Book struct {
	meta   Metadata
	logger zerolog.Logger

	// emitMu is taken before mu is released so events leave in the
	// order their commits took mu.
	emitMu sync.Mutex

	mu         sync.RWMutex
	supply     uint256.Int
	balances   map[codec.Address]*uint256.Int
	allowances map[allowanceKey]*uint256.Int
	sinks      []EventSink
}

// Option configures a Book.
type Option func(*Book)

func WithLogger(logger zerolog.Logger) Option {
	return func(b *Book) {
		b.logger = logger
	}
}

func WithSink(sink EventSink) Option {
	return func(b *Book) {
		b.sinks = append(b.sinks, sink)
	}
}

func NewBook(meta Metadata, opts ...Option) *Book {
	b := &Book{
		meta:       meta,
		logger:     log.Logger.With().Str("component", "ledger").Logger(),
		balances:   make(map[codec.Address]*uint256.Int),
		allowances: make(map[allowanceKey]*uint256.Int),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe adds sink after construction.
func (b *Book) Subscribe(sink EventSink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, sink)
}

// Mint credits value to to and grows the supply. It fails on overflow.
func (b *Book) Mint(to codec.Address, value codec.U256) bool {
	v := value.Int()
	b.mu.Lock()
	var supply uint256.Int
	if _, overflow := supply.AddOverflow(&b.supply, v); overflow {
		b.mu.Unlock()
		b.logger.Warn().Str("to", to.String()).Str("value", value.String()).Msg("mint overflows supply")
		return false
	}
	b.supply = supply
	bal := b.balanceLocked(to)
	bal.Add(bal, v)
	b.publishLocked(vrc20.NewTransferEvent(codec.Address{}, to, value))

	b.logger.Info().Str("to", to.String()).Str("value", value.String()).Msg("minted")
	return true
}

// Holders lists accounts with a non-zero balance, sorted by address.
func (b *Book) Holders() []codec.Address {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]codec.Address, 0, len(b.balances))
	for addr, bal := range b.balances {
		if !bal.IsZero() {
			out = append(out, addr)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return string(out[i][:]) < string(out[j][:])
	})
	return out
}

// As returns a vrc20.Ledger acting on behalf of caller.
func (b *Book) As(caller codec.Address) vrc20.Ledger {
	return &Session{book: b, caller: caller}
}

func (b *Book) balanceLocked(addr codec.Address) *uint256.Int {
	bal, ok := b.balances[addr]
	if !ok {
		bal = new(uint256.Int)
		b.balances[addr] = bal
	}
	return bal
}

func (b *Book) balanceOf(addr codec.Address) codec.U256 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if bal, ok := b.balances[addr]; ok {
		return codec.U256FromInt(bal)
	}
	return codec.U256{}
}

func (b *Book) allowance(owner, spender codec.Address) codec.U256 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if v, ok := b.allowances[allowanceKey{owner, spender}]; ok {
		return codec.U256FromInt(v)
	}
	return codec.U256{}
}

// moveLocked debits from and credits to. The caller holds b.mu.
func (b *Book) moveLocked(from, to codec.Address, v *uint256.Int) bool {
	src := b.balanceLocked(from)
	if src.Lt(v) {
		return false
	}
	src.Sub(src, v)
	dst := b.balanceLocked(to)
	dst.Add(dst, v)
	return true
}

func (b *Book) transfer(spender, from, to codec.Address, value codec.U256) bool {
	v := value.Int()
	b.mu.Lock()
	if spender != from {
		key := allowanceKey{owner: from, spender: spender}
		allowed, ok := b.allowances[key]
		if !ok || allowed.Lt(v) {
			b.mu.Unlock()
			b.logger.Debug().Str("spender", spender.String()).Str("from", from.String()).Msg("allowance exceeded")
			return false
		}
		if b.balanceLocked(from).Lt(v) {
			b.mu.Unlock()
			b.logger.Debug().Str("from", from.String()).Msg("insufficient balance")
			return false
		}
		allowed.Sub(allowed, v)
	}
	if !b.moveLocked(from, to, v) {
		b.mu.Unlock()
		b.logger.Debug().Str("from", from.String()).Msg("insufficient balance")
		return false
	}
	b.publishLocked(vrc20.NewTransferEvent(from, to, value))
	return true
}

func (b *Book) approve(owner, spender codec.Address, value codec.U256) bool {
	b.mu.Lock()
	b.allowances[allowanceKey{owner, spender}] = value.Int()
	b.publishLocked(vrc20.NewApprovalEvent(owner, spender, value))
	return true
}

// publishLocked delivers ev to every sink. The caller holds b.mu for
// writing; publishLocked releases it.
func (b *Book) publishLocked(ev vrc20.Event) {
	sinks := b.sinks
	b.emitMu.Lock()
	b.mu.Unlock()
	defer b.emitMu.Unlock()
	for _, sink := range sinks {
		sink.Emit(ev)
	}
}

// Session is a Book bound to one caller.
type Session struct {
	book   *Book
	caller codec.Address
}

var _ vrc20.Ledger = (*Session)(nil)

func (s *Session) Caller() codec.Address { return s.caller }

func (s *Session) Name() string { return s.book.meta.Name }

func (s *Session) Symbol() string { return s.book.meta.Symbol }

func (s *Session) Decimals() uint8 { return s.book.meta.Decimals }

func (s *Session) TotalSupply() codec.U256 {
	s.book.mu.RLock()
	defer s.book.mu.RUnlock()
	return codec.U256FromInt(&s.book.supply)
}

func (s *Session) BalanceOf(owner codec.Address) codec.U256 {
	return s.book.balanceOf(owner)
}

func (s *Session) Transfer(to codec.Address, value codec.U256) bool {
	return s.book.transfer(s.caller, s.caller, to, value)
}

func (s *Session) TransferFrom(from, to codec.Address, value codec.U256) bool {
	return s.book.transfer(s.caller, from, to, value)
}

func (s *Session) Approve(spender codec.Address, value codec.U256) bool {
	return s.book.approve(s.caller, spender, value)
}

func (s *Session) Allowance(owner, spender codec.Address) codec.U256 {
	return s.book.allowance(owner, spender)
}
