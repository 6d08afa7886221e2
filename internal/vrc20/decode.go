package vrc20

import (
	"fmt"

	"github.com/danmuck/vrc20/internal/protocol/codec"
)

func responsePayload(buf []byte, want OperationID) ([]byte, error) {
	id, err := header(buf)
	if err != nil {
		return nil, err
	}
	if id != want {
		return nil, fmt.Errorf("%w: got %s want %s", ErrMessageMismatch, id, want)
	}
	return payloadOf(buf), nil
}

func decodeResponse[T any](r Response, op OperationID, read func(*codec.Decoder) T) (T, error) {
	payload, err := responsePayload(r.buf, op)
	if err != nil {
		var zero T
		return zero, err
	}
	v, err := codec.Decode(payload, read)
	if err != nil {
		return v, fmt.Errorf("%w: %s: %w", ErrWrongArguments, op, err)
	}
	return v, nil
}

// Op returns the operation this response answers.
func (r Response) Op() (OperationID, error) {
	return header(r.buf)
}

func (r Response) Name() (string, error) {
	return decodeResponse(r, OpName, codec.ReadString)
}

func (r Response) Symbol() (string, error) {
	return decodeResponse(r, OpSymbol, codec.ReadString)
}

func (r Response) Decimals() (uint8, error) {
	return decodeResponse(r, OpDecimals, codec.ReadU8)
}

func (r Response) TotalSupply() (codec.U256, error) {
	return decodeResponse(r, OpTotalSupply, codec.ReadU256)
}

func (r Response) BalanceOf() (codec.U256, error) {
	return decodeResponse(r, OpBalanceOf, codec.ReadU256)
}

func (r Response) Transfer() (bool, error) {
	return decodeResponse(r, OpTransfer, codec.ReadBool)
}

func (r Response) TransferFrom() (bool, error) {
	return decodeResponse(r, OpTransferFrom, codec.ReadBool)
}

func (r Response) Approve() (bool, error) {
	return decodeResponse(r, OpApprove, codec.ReadBool)
}

func (r Response) Allowance() (codec.U256, error) {
	return decodeResponse(r, OpAllowance, codec.ReadU256)
}

// TransferEvent is the decoded form of an EventTransfer message.
type TransferEvent struct {
	From  codec.Address
	To    codec.Address
	Value codec.U256
}

// ApprovalEvent is the decoded form of an EventApproval message.
type ApprovalEvent struct {
	Owner   codec.Address
	Spender codec.Address
	Value   codec.U256
}

// Kind returns the event sub-discriminant.
func (e Event) Kind() (EventKind, error) {
	id, err := header(e.buf)
	if err != nil {
		return 0, err
	}
	if id != OpEvent {
		return 0, fmt.Errorf("%w: got %s want event", ErrMessageMismatch, id)
	}
	payload := payloadOf(e.buf)
	if len(payload) == 0 {
		return 0, fmt.Errorf("%w: missing sub-discriminant", ErrUnknownEvent)
	}
	kind := EventKind(payload[0])
	if _, ok := LookupEvent(kind); !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownEvent, payload[0])
	}
	return kind, nil
}

func (e Event) tuple(want EventKind) (codec.TransferTuple, error) {
	kind, err := e.Kind()
	if err != nil {
		return codec.TransferTuple{}, err
	}
	if kind != want {
		return codec.TransferTuple{}, fmt.Errorf("%w: got %s want %s", ErrMessageMismatch, kind, want)
	}
	t, err := codec.Decode(payloadOf(e.buf)[1:], codec.ReadTransferTuple)
	if err != nil {
		return t, fmt.Errorf("%w: %s: %w", ErrWrongArguments, want, err)
	}
	return t, nil
}

func (e Event) Transfer() (TransferEvent, error) {
	t, err := e.tuple(EventTransfer)
	if err != nil {
		return TransferEvent{}, err
	}
	return TransferEvent{From: t.From, To: t.To, Value: t.Value}, nil
}

func (e Event) Approval() (ApprovalEvent, error) {
	t, err := e.tuple(EventApproval)
	if err != nil {
		return ApprovalEvent{}, err
	}
	return ApprovalEvent{Owner: t.From, Spender: t.To, Value: t.Value}, nil
}
