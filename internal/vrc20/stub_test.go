package vrc20

import "github.com/danmuck/vrc20/internal/protocol/codec"

type stubCall struct {
	Op   OperationID
	Args []any
}

// stubLedger answers every operation with deterministic values derived from
// its arguments and records the calls it receives.
type stubLedger struct {
	calls []stubCall
}

func (s *stubLedger) record(op OperationID, args ...any) {
	s.calls = append(s.calls, stubCall{Op: op, Args: args})
}

func (s *stubLedger) Name() string {
	s.record(OpName)
	return "Vara Token"
}

func (s *stubLedger) Symbol() string {
	s.record(OpSymbol)
	return "VARA"
}

func (s *stubLedger) Decimals() uint8 {
	s.record(OpDecimals)
	return 12
}

func (s *stubLedger) TotalSupply() codec.U256 {
	s.record(OpTotalSupply)
	return codec.MaxU256
}

func (s *stubLedger) BalanceOf(owner codec.Address) codec.U256 {
	s.record(OpBalanceOf, owner)
	return fill256(owner[0] * 2)
}

func (s *stubLedger) Transfer(to codec.Address, value codec.U256) bool {
	s.record(OpTransfer, to, value)
	return !value.IsZero()
}

func (s *stubLedger) TransferFrom(from, to codec.Address, value codec.U256) bool {
	s.record(OpTransferFrom, from, to, value)
	return from != to
}

func (s *stubLedger) Approve(spender codec.Address, value codec.U256) bool {
	s.record(OpApprove, spender, value)
	return true
}

func (s *stubLedger) Allowance(owner, spender codec.Address) codec.U256 {
	s.record(OpAllowance, owner, spender)
	return fill256(owner[0] ^ spender[0])
}

func fillAddr(b byte) codec.Address {
	var a codec.Address
	for i := range a {
		a[i] = b
	}
	return a
}

func fill256(b byte) codec.U256 {
	var v codec.U256
	for i := range v {
		v[i] = b
	}
	return v
}
