package ledger

import (
	"sync"
	"testing"

	"github.com/danmuck/vrc20/internal/protocol/codec"
	"github.com/danmuck/vrc20/internal/testutil/testlog"
	"github.com/danmuck/vrc20/internal/vrc20"
)

type recordingSink struct {
	mu     sync.Mutex
	events []vrc20.Event
}

func (r *recordingSink) Emit(ev vrc20.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func addr(b byte) codec.Address {
	var a codec.Address
	a[0] = b
	return a
}

func amount(v uint64) codec.U256 {
	return codec.U256FromUint64(v)
}

func newBook(t *testing.T) (*Book, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	book := NewBook(Metadata{Name: "Vara Token", Symbol: "VARA", Decimals: 12}, WithSink(sink))
	if !book.Mint(addr(1), amount(1000)) {
		t.Fatalf("mint failed")
	}
	return book, sink
}

func TestMetadataAndSupply(t *testing.T) {
	testlog.Start(t)
	book, sink := newBook(t)
	l := book.As(addr(9))
	if l.Name() != "Vara Token" || l.Symbol() != "VARA" || l.Decimals() != 12 {
		t.Fatalf("unexpected metadata %q %q %d", l.Name(), l.Symbol(), l.Decimals())
	}
	if l.TotalSupply() != amount(1000) {
		t.Fatalf("unexpected supply %s", l.TotalSupply())
	}
	if len(sink.events) != 1 {
		t.Fatalf("expected mint event, got %d", len(sink.events))
	}
	ev, err := sink.events[0].Transfer()
	if err != nil {
		t.Fatalf("decode mint event: %v", err)
	}
	if !ev.From.IsZero() || ev.To != addr(1) || ev.Value != amount(1000) {
		t.Fatalf("unexpected mint event %+v", ev)
	}
}

func TestTransfer(t *testing.T) {
	testlog.Start(t)
	book, sink := newBook(t)
	alice := book.As(addr(1))

	if !alice.Transfer(addr(2), amount(300)) {
		t.Fatalf("transfer should succeed")
	}
	if got := alice.BalanceOf(addr(1)); got != amount(700) {
		t.Fatalf("sender balance got=%s want=700", got)
	}
	if got := alice.BalanceOf(addr(2)); got != amount(300) {
		t.Fatalf("recipient balance got=%s want=300", got)
	}
	if alice.Transfer(addr(2), amount(701)) {
		t.Fatalf("overdraft transfer should fail")
	}
	if got := alice.BalanceOf(addr(1)); got != amount(700) {
		t.Fatalf("failed transfer must not change balance, got=%s", got)
	}
	if len(sink.events) != 2 {
		t.Fatalf("expected mint + one transfer event, got %d", len(sink.events))
	}
}

func TestApproveAndTransferFrom(t *testing.T) {
	testlog.Start(t)
	book, sink := newBook(t)
	alice := book.As(addr(1))
	bob := book.As(addr(2))

	if bob.TransferFrom(addr(1), addr(3), amount(1)) {
		t.Fatalf("transfer_from without allowance should fail")
	}
	if !alice.Approve(addr(2), amount(500)) {
		t.Fatalf("approve should succeed")
	}
	if got := bob.Allowance(addr(1), addr(2)); got != amount(500) {
		t.Fatalf("allowance got=%s want=500", got)
	}
	if !bob.TransferFrom(addr(1), addr(3), amount(200)) {
		t.Fatalf("transfer_from within allowance should succeed")
	}
	if got := bob.Allowance(addr(1), addr(2)); got != amount(300) {
		t.Fatalf("allowance after spend got=%s want=300", got)
	}
	if got := bob.BalanceOf(addr(3)); got != amount(200) {
		t.Fatalf("recipient balance got=%s want=200", got)
	}
	if bob.TransferFrom(addr(1), addr(3), amount(301)) {
		t.Fatalf("transfer_from beyond allowance should fail")
	}
	if !alice.Approve(addr(2), amount(0)) {
		t.Fatalf("approve should overwrite")
	}
	if got := bob.Allowance(addr(1), addr(2)); !got.IsZero() {
		t.Fatalf("allowance should be reset, got=%s", got)
	}

	kinds := make([]vrc20.EventKind, 0, len(sink.events))
	for _, ev := range sink.events {
		k, err := ev.Kind()
		if err != nil {
			t.Fatalf("event kind: %v", err)
		}
		kinds = append(kinds, k)
	}
	want := []vrc20.EventKind{vrc20.EventTransfer, vrc20.EventApproval, vrc20.EventTransfer, vrc20.EventApproval}
	if len(kinds) != len(want) {
		t.Fatalf("events got=%v want=%v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("event %d got=%v want=%v", i, kinds[i], want[i])
		}
	}
}

func TestTransferFromKeepsAllowanceWhenBalanceShort(t *testing.T) {
	testlog.Start(t)
	book, _ := newBook(t)
	book.As(addr(1)).Approve(addr(2), amount(5000))
	bob := book.As(addr(2))
	if bob.TransferFrom(addr(1), addr(3), amount(2000)) {
		t.Fatalf("transfer_from beyond balance should fail")
	}
	if got := bob.Allowance(addr(1), addr(2)); got != amount(5000) {
		t.Fatalf("allowance must be untouched, got=%s", got)
	}
}

func TestMintOverflow(t *testing.T) {
	testlog.Start(t)
	book, _ := newBook(t)
	if book.Mint(addr(4), codec.MaxU256) {
		t.Fatalf("mint beyond 2^256-1 should fail")
	}
	if got := book.As(addr(4)).TotalSupply(); got != amount(1000) {
		t.Fatalf("supply must be unchanged, got=%s", got)
	}
}

func TestHoldersSorted(t *testing.T) {
	testlog.Start(t)
	book, _ := newBook(t)
	book.As(addr(1)).Transfer(addr(3), amount(1))
	book.As(addr(1)).Transfer(addr(2), amount(1))
	got := book.Holders()
	if len(got) != 3 || got[0] != addr(1) || got[1] != addr(2) || got[2] != addr(3) {
		t.Fatalf("unexpected holders %v", got)
	}
}

func TestConcurrentTransfersConserveSupply(t *testing.T) {
	testlog.Start(t)
	book := NewBook(Metadata{Name: "T", Symbol: "T"})
	book.Mint(addr(1), amount(10_000))
	book.Mint(addr(2), amount(10_000))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			book.As(addr(1)).Transfer(addr(2), amount(7))
		}()
		go func() {
			defer wg.Done()
			book.As(addr(2)).Transfer(addr(1), amount(3))
		}()
	}
	wg.Wait()

	l := book.As(addr(9))
	total := l.BalanceOf(addr(1)).Int()
	total.Add(total, l.BalanceOf(addr(2)).Int())
	if codec.U256FromInt(total) != amount(20_000) {
		t.Fatalf("supply not conserved: %s", total.Dec())
	}
	if l.BalanceOf(addr(1)) != amount(10_000-50*7+50*3) {
		t.Fatalf("unexpected balance %s", l.BalanceOf(addr(1)))
	}
}

func TestProcessorOverBook(t *testing.T) {
	testlog.Start(t)
	book, _ := newBook(t)
	p := vrc20.NewProcessor(book.As(addr(1)))
	resp, err := p.Process(vrc20.NewTransferRequest(addr(2), amount(10)))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	ok, err := resp.Transfer()
	if err != nil || !ok {
		t.Fatalf("transfer response got=%v err=%v", ok, err)
	}
	resp, err = p.Process(vrc20.NewBalanceOfRequest(addr(2)))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	bal, err := resp.BalanceOf()
	if err != nil || bal != amount(10) {
		t.Fatalf("balance got=%s err=%v", bal, err)
	}
}

func TestConcurrentApprovalsDeliverInCommitOrder(t *testing.T) {
	testlog.Start(t)
	owner, spender := addr(1), addr(2)
	for round := 0; round < 50; round++ {
		book, sink := newBook(t)
		var wg sync.WaitGroup
		for i := 1; i <= 16; i++ {
			wg.Add(1)
			go func(v uint64) {
				defer wg.Done()
				book.As(owner).Approve(spender, amount(v))
			}(uint64(i))
		}
		wg.Wait()

		sink.mu.Lock()
		last := sink.events[len(sink.events)-1]
		sink.mu.Unlock()
		ev, err := last.Approval()
		if err != nil {
			t.Fatalf("round %d: decode last event: %v", round, err)
		}
		if final := book.As(owner).Allowance(owner, spender); ev.Value != final {
			t.Fatalf("round %d: last event value=%s final allowance=%s", round, ev.Value, final)
		}
	}
}
