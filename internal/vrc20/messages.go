package vrc20

import (
	"github.com/danmuck/vrc20/internal/protocol/codec"
	"github.com/danmuck/vrc20/internal/protocol/prefix"
)

// Request is an encoded call into the catalog.
type Request struct{ buf []byte }

// Response is the encoded result of one catalog operation.
type Response struct{ buf []byte }

// Event is an encoded ledger notification (discriminant 0).
type Event struct{ buf []byte }

// RequestFromBytes wraps a received buffer. The bytes are copied.
func RequestFromBytes(b []byte) Request { return Request{buf: clone(b)} }

// ResponseFromBytes wraps a received buffer. The bytes are copied.
func ResponseFromBytes(b []byte) Response { return Response{buf: clone(b)} }

// EventFromBytes wraps a received buffer. The bytes are copied.
func EventFromBytes(b []byte) Event { return Event{buf: clone(b)} }

// Bytes returns the wire encoding. Callers must not modify it.
func (r Request) Bytes() []byte { return r.buf }

// Bytes returns the wire encoding. Callers must not modify it.
func (r Response) Bytes() []byte { return r.buf }

// Bytes returns the wire encoding. Callers must not modify it.
func (e Event) Bytes() []byte { return e.buf }

// Discriminant returns the operation byte, or false when buf is too short.
func Discriminant(buf []byte) (OperationID, bool) {
	if len(buf) <= prefix.DiscriminantOffset {
		return 0, false
	}
	return OperationID(buf[prefix.DiscriminantOffset]), true
}

func payloadOf(buf []byte) []byte {
	if len(buf) < prefix.PayloadOffset {
		return nil
	}
	return buf[prefix.PayloadOffset:]
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func message(id OperationID, payload []byte) []byte {
	if len(payload) == 0 {
		return Prefix.EncodeWithDiscriminant(uint8(id))
	}
	return Prefix.EncodeWithDiscriminantAndPayload(uint8(id), payload)
}

// NewNameRequest asks for the token name.
func NewNameRequest() Request { return Request{buf: message(OpName, nil)} }

// NewSymbolRequest asks for the token symbol.
func NewSymbolRequest() Request { return Request{buf: message(OpSymbol, nil)} }

// NewDecimalsRequest asks for the display decimals.
func NewDecimalsRequest() Request { return Request{buf: message(OpDecimals, nil)} }

// NewTotalSupplyRequest asks for the total supply.
func NewTotalSupplyRequest() Request { return Request{buf: message(OpTotalSupply, nil)} }

// NewBalanceOfRequest asks for the balance held by owner.
func NewBalanceOfRequest(owner codec.Address) Request {
	return Request{buf: message(OpBalanceOf, codec.NewEncoder(codec.AddressLen).Address(owner).Bytes())}
}

// NewTransferRequest moves value from the caller to to.
func NewTransferRequest(to codec.Address, value codec.U256) Request {
	payload := codec.AddressAmount{Address: to, Amount: value}.Encode(codec.NewEncoder(64)).Bytes()
	return Request{buf: message(OpTransfer, payload)}
}

// NewTransferFromRequest moves value from from to to on the caller's allowance.
func NewTransferFromRequest(from, to codec.Address, value codec.U256) Request {
	payload := codec.TransferTuple{From: from, To: to, Value: value}.Encode(codec.NewEncoder(96)).Bytes()
	return Request{buf: message(OpTransferFrom, payload)}
}

// NewApproveRequest sets the caller's allowance for spender.
func NewApproveRequest(spender codec.Address, value codec.U256) Request {
	payload := codec.AddressAmount{Address: spender, Amount: value}.Encode(codec.NewEncoder(64)).Bytes()
	return Request{buf: message(OpApprove, payload)}
}

// NewAllowanceRequest asks how much spender may move on behalf of owner.
func NewAllowanceRequest(owner, spender codec.Address) Request {
	payload := codec.AddressPair{First: owner, Second: spender}.Encode(codec.NewEncoder(64)).Bytes()
	return Request{buf: message(OpAllowance, payload)}
}

func NewNameResponse(name string) Response {
	return Response{buf: message(OpName, codec.NewEncoder(codec.StringHeaderLen+len(name)).String(name).Bytes())}
}

func NewSymbolResponse(symbol string) Response {
	return Response{buf: message(OpSymbol, codec.NewEncoder(codec.StringHeaderLen+len(symbol)).String(symbol).Bytes())}
}

func NewDecimalsResponse(decimals uint8) Response {
	return Response{buf: message(OpDecimals, []byte{decimals})}
}

func NewTotalSupplyResponse(supply codec.U256) Response {
	return Response{buf: message(OpTotalSupply, supply[:])}
}

func NewBalanceOfResponse(balance codec.U256) Response {
	return Response{buf: message(OpBalanceOf, balance[:])}
}

func NewTransferResponse(success bool) Response {
	return Response{buf: message(OpTransfer, codec.NewEncoder(1).Bool(success).Bytes())}
}

func NewTransferFromResponse(success bool) Response {
	return Response{buf: message(OpTransferFrom, codec.NewEncoder(1).Bool(success).Bytes())}
}

func NewApproveResponse(success bool) Response {
	return Response{buf: message(OpApprove, codec.NewEncoder(1).Bool(success).Bytes())}
}

func NewAllowanceResponse(allowance codec.U256) Response {
	return Response{buf: message(OpAllowance, allowance[:])}
}

// NewTransferEvent records value moving from from to to.
func NewTransferEvent(from, to codec.Address, value codec.U256) Event {
	enc := codec.NewEncoder(97).U8(uint8(EventTransfer))
	payload := codec.TransferTuple{From: from, To: to, Value: value}.Encode(enc).Bytes()
	return Event{buf: message(OpEvent, payload)}
}

// NewApprovalEvent records owner granting spender an allowance of value.
func NewApprovalEvent(owner, spender codec.Address, value codec.U256) Event {
	enc := codec.NewEncoder(97).U8(uint8(EventApproval))
	payload := codec.TransferTuple{From: owner, To: spender, Value: value}.Encode(enc).Bytes()
	return Event{buf: message(OpEvent, payload)}
}
