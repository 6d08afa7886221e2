package vrc20

import "github.com/danmuck/vrc20/internal/protocol/codec"

// Ledger is the token state a Processor dispatches into. Implementations
// are bound to a caller; Transfer and Approve act on the caller's account.
// Only Transfer, TransferFrom and Approve may mutate state.
type Ledger interface {
	Name() string
	Symbol() string
	Decimals() uint8
	TotalSupply() codec.U256
	BalanceOf(owner codec.Address) codec.U256
	Transfer(to codec.Address, value codec.U256) bool
	TransferFrom(from, to codec.Address, value codec.U256) bool
	Approve(spender codec.Address, value codec.U256) bool
	Allowance(owner, spender codec.Address) codec.U256
}
