package vrc20

import (
	"fmt"

	"github.com/danmuck/vrc20/internal/protocol/codec"
	"github.com/danmuck/vrc20/internal/protocol/prefix"
)

// Prefix identifies VRC-20 messages.
var Prefix = prefix.New(1)

// OperationID is the discriminant byte at offset 16.
type OperationID uint8

const (
	OpEvent        OperationID = 0
	OpName         OperationID = 1
	OpSymbol       OperationID = 2
	OpDecimals     OperationID = 3
	OpTotalSupply  OperationID = 4
	OpBalanceOf    OperationID = 5
	OpTransfer     OperationID = 6
	OpTransferFrom OperationID = 7
	OpApprove      OperationID = 8
	OpAllowance    OperationID = 9
)

func (id OperationID) String() string {
	if op, ok := Lookup(id); ok {
		return op.Name
	}
	if id == OpEvent {
		return "event"
	}
	return fmt.Sprintf("op(%d)", uint8(id))
}

// ParamType is the wire type of one tuple element.
type ParamType uint8

const (
	TypeAddress ParamType = iota + 1
	TypeU256
	TypeU8
	TypeBool
	TypeString
)

func (t ParamType) String() string {
	switch t {
	case TypeAddress:
		return "address"
	case TypeU256:
		return "u256"
	case TypeU8:
		return "u8"
	case TypeBool:
		return "bool"
	case TypeString:
		return "string"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// Width is the fixed encoded size of t, or -1 for strings.
func (t ParamType) Width() int {
	switch t {
	case TypeAddress:
		return codec.AddressLen
	case TypeU256:
		return codec.U256Len
	case TypeU8:
		return codec.U8Len
	case TypeBool:
		return codec.BoolLen
	default:
		return -1
	}
}

// Param names one element of an argument or event tuple.
type Param struct {
	Name string
	Type ParamType
}

// Operation is one catalog entry.
type Operation struct {
	ID      OperationID
	Name    string
	Title   string
	Args    []Param
	Returns Param
	Mutates bool
}

// ArgsLen is the exact request payload length for op.
func (op Operation) ArgsLen() int {
	n := 0
	for _, p := range op.Args {
		n += p.Type.Width()
	}
	return n
}

var catalog = [...]Operation{
	OpName:        {ID: OpName, Name: "name", Title: "Name", Returns: Param{"name", TypeString}},
	OpSymbol:      {ID: OpSymbol, Name: "symbol", Title: "Symbol", Returns: Param{"symbol", TypeString}},
	OpDecimals:    {ID: OpDecimals, Name: "decimals", Title: "Decimals", Returns: Param{"decimals", TypeU8}},
	OpTotalSupply: {ID: OpTotalSupply, Name: "total_supply", Title: "TotalSupply", Returns: Param{"total_supply", TypeU256}},
	OpBalanceOf: {
		ID: OpBalanceOf, Name: "balance_of", Title: "BalanceOf",
		Args:    []Param{{"owner", TypeAddress}},
		Returns: Param{"balance", TypeU256},
	},
	OpTransfer: {
		ID: OpTransfer, Name: "transfer", Title: "Transfer",
		Args:    []Param{{"to", TypeAddress}, {"value", TypeU256}},
		Returns: Param{"success", TypeBool},
		Mutates: true,
	},
	OpTransferFrom: {
		ID: OpTransferFrom, Name: "transfer_from", Title: "TransferFrom",
		Args:    []Param{{"from", TypeAddress}, {"to", TypeAddress}, {"value", TypeU256}},
		Returns: Param{"success", TypeBool},
		Mutates: true,
	},
	OpApprove: {
		ID: OpApprove, Name: "approve", Title: "Approve",
		Args:    []Param{{"spender", TypeAddress}, {"value", TypeU256}},
		Returns: Param{"success", TypeBool},
		Mutates: true,
	},
	OpAllowance: {
		ID: OpAllowance, Name: "allowance", Title: "Allowance",
		Args:    []Param{{"owner", TypeAddress}, {"spender", TypeAddress}},
		Returns: Param{"allowance", TypeU256},
	},
}

// Lookup returns the catalog entry for id. OpEvent is not a catalog entry.
func Lookup(id OperationID) (Operation, bool) {
	if id == OpEvent || int(id) >= len(catalog) {
		return Operation{}, false
	}
	return catalog[id], true
}

// LookupName finds an operation by its snake_case name.
func LookupName(name string) (Operation, bool) {
	for _, op := range catalog[1:] {
		if op.Name == name {
			return op, true
		}
	}
	return Operation{}, false
}

// Operations lists the catalog in discriminant order.
func Operations() []Operation {
	out := make([]Operation, 0, len(catalog)-1)
	out = append(out, catalog[1:]...)
	return out
}

// EventKind is the inner sub-discriminant of an event payload.
type EventKind uint8

const (
	EventTransfer EventKind = 1
	EventApproval EventKind = 2
)

// EventSpec is one event catalog entry.
type EventSpec struct {
	Kind   EventKind
	Title  string
	Fields []Param
}

var events = map[EventKind]EventSpec{
	EventTransfer: {
		Kind: EventTransfer, Title: "Transfer",
		Fields: []Param{{"from", TypeAddress}, {"to", TypeAddress}, {"value", TypeU256}},
	},
	EventApproval: {
		Kind: EventApproval, Title: "Approval",
		Fields: []Param{{"owner", TypeAddress}, {"spender", TypeAddress}, {"value", TypeU256}},
	},
}

func LookupEvent(kind EventKind) (EventSpec, bool) {
	spec, ok := events[kind]
	return spec, ok
}

func (k EventKind) String() string {
	if spec, ok := events[k]; ok {
		return spec.Title
	}
	return fmt.Sprintf("event(%d)", uint8(k))
}
