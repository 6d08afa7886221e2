package vrc20

import (
	"time"

	"github.com/danmuck/vrc20/internal/protocol/codec"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Observer receives one callback per Process call. kind is zero on success.
type Observer interface {
	ObserveDispatch(op OperationID, kind ErrorKind, elapsed time.Duration)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(op OperationID, kind ErrorKind, elapsed time.Duration)

func (f ObserverFunc) ObserveDispatch(op OperationID, kind ErrorKind, elapsed time.Duration) {
	f(op, kind, elapsed)
}

// Processor decodes requests, calls the Ledger and encodes responses.
// It holds no mutable state and is safe for concurrent use when its
// Ledger is.
type Processor struct {
	ledger   Ledger
	logger   zerolog.Logger
	observer Observer
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

func WithLogger(logger zerolog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = logger
	}
}

func WithObserver(observer Observer) ProcessorOption {
	return func(p *Processor) {
		p.observer = observer
	}
}

// NewProcessor is the only way to obtain a Processor; a nil ledger panics.
func NewProcessor(ledger Ledger, opts ...ProcessorOption) *Processor {
	if ledger == nil {
		panic("vrc20: nil ledger")
	}
	p := &Processor{
		ledger: ledger,
		logger: log.Logger.With().Str("component", "vrc20.processor").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs one request. Failures are always *DispatchError.
func (p *Processor) Process(req Request) (Response, error) {
	return p.ProcessBytes(req.buf)
}

// ProcessBytes is Process over a raw buffer. buf is not retained.
func (p *Processor) ProcessBytes(buf []byte) (Response, error) {
	start := time.Now()
	op, _ := Discriminant(buf)
	resp, err := p.dispatch(buf)

	var kind ErrorKind
	if err != nil {
		kind = err.Kind
		p.logger.Warn().
			Str("op", op.String()).
			Str("kind", kind.String()).
			Err(err.Err).
			Msg("dispatch rejected")
	} else {
		p.logger.Debug().Str("op", op.String()).Int("response_bytes", len(resp.buf)).Msg("dispatch ok")
	}
	if p.observer != nil {
		p.observer.ObserveDispatch(op, kind, time.Since(start))
	}
	if err != nil {
		return Response{}, err
	}
	return resp, nil
}

func (p *Processor) dispatch(buf []byte) (Response, *DispatchError) {
	if !Prefix.Match(buf) {
		return Response{}, &DispatchError{Kind: KindWrongStandard}
	}
	id, ok := Discriminant(buf)
	if !ok {
		return Response{}, &DispatchError{Kind: KindWrongCall, Op: id}
	}
	payload := payloadOf(buf)
	l := p.ledger

	switch id {
	case OpName:
		if err := expectEmpty(id, payload); err != nil {
			return Response{}, err
		}
		return NewNameResponse(l.Name()), nil
	case OpSymbol:
		if err := expectEmpty(id, payload); err != nil {
			return Response{}, err
		}
		return NewSymbolResponse(l.Symbol()), nil
	case OpDecimals:
		if err := expectEmpty(id, payload); err != nil {
			return Response{}, err
		}
		return NewDecimalsResponse(l.Decimals()), nil
	case OpTotalSupply:
		if err := expectEmpty(id, payload); err != nil {
			return Response{}, err
		}
		return NewTotalSupplyResponse(l.TotalSupply()), nil
	case OpBalanceOf:
		owner, err := decodeArgs(id, payload, codec.ReadAddress)
		if err != nil {
			return Response{}, err
		}
		return NewBalanceOfResponse(l.BalanceOf(owner)), nil
	case OpTransfer:
		args, err := decodeArgs(id, payload, codec.ReadAddressAmount)
		if err != nil {
			return Response{}, err
		}
		return NewTransferResponse(l.Transfer(args.Address, args.Amount)), nil
	case OpTransferFrom:
		args, err := decodeArgs(id, payload, codec.ReadTransferTuple)
		if err != nil {
			return Response{}, err
		}
		return NewTransferFromResponse(l.TransferFrom(args.From, args.To, args.Value)), nil
	case OpApprove:
		args, err := decodeArgs(id, payload, codec.ReadAddressAmount)
		if err != nil {
			return Response{}, err
		}
		return NewApproveResponse(l.Approve(args.Address, args.Amount)), nil
	case OpAllowance:
		args, err := decodeArgs(id, payload, codec.ReadAddressPair)
		if err != nil {
			return Response{}, err
		}
		return NewAllowanceResponse(l.Allowance(args.First, args.Second)), nil
	default:
		return Response{}, &DispatchError{Kind: KindWrongCall, Op: id}
	}
}

func decodeArgs[T any](id OperationID, payload []byte, read func(*codec.Decoder) T) (T, *DispatchError) {
	v, err := codec.Decode(payload, read)
	if err != nil {
		return v, &DispatchError{Kind: KindWrongArguments, Op: id, Err: err}
	}
	return v, nil
}

func expectEmpty(id OperationID, payload []byte) *DispatchError {
	if len(payload) == 0 {
		return nil
	}
	return &DispatchError{
		Kind: KindWrongArguments,
		Op:   id,
		Err:  &codec.DecodeError{Offset: 0, Want: 0, Have: len(payload), Err: codec.ErrTrailingBytes},
	}
}
