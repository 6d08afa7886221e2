package vrc20

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/danmuck/vrc20/internal/protocol/codec"
)

// MessageKind says which builder family produced a message.
type MessageKind uint8

const (
	KindRequest MessageKind = iota + 1
	KindResponse
	KindEvent
)

func (k MessageKind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindResponse:
		return "response"
	case KindEvent:
		return "event"
	default:
		return "unknown"
	}
}

// Value is one decoded tuple element.
type Value struct {
	Type    ParamType
	Address codec.Address
	Amount  codec.U256
	U8      uint8
	Bool    bool
	String  string
}

// Render formats v for diagnostics.
func (v Value) Render() string {
	switch v.Type {
	case TypeAddress:
		return v.Address.String()
	case TypeU256:
		return v.Amount.String()
	case TypeU8:
		return strconv.Itoa(int(v.U8))
	case TypeBool:
		return strconv.FormatBool(v.Bool)
	case TypeString:
		return strconv.Quote(v.String)
	default:
		return "?"
	}
}

// Field is a named decoded value.
type Field struct {
	Name  string
	Value Value
}

// View is the human-readable form of one message.
type View struct {
	Kind   MessageKind
	Op     OperationID
	Title  string
	Fields []Field
}

// String renders "Title" or "Title{name: value, ...}".
func (v View) String() string {
	if len(v.Fields) == 0 {
		return v.Title
	}
	var b strings.Builder
	b.WriteString(v.Title)
	b.WriteByte('{')
	for i, f := range v.Fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(f.Name)
		b.WriteString(": ")
		b.WriteString(f.Value.Render())
	}
	b.WriteByte('}')
	return b.String()
}

// Field returns the named field value.
func (v View) Field(name string) (Value, bool) {
	for _, f := range v.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

func readValue(d *codec.Decoder, t ParamType) Value {
	v := Value{Type: t}
	switch t {
	case TypeAddress:
		v.Address = d.Address()
	case TypeU256:
		v.Amount = d.U256()
	case TypeU8:
		v.U8 = d.U8()
	case TypeBool:
		v.Bool = d.Bool()
	case TypeString:
		v.String = d.String()
	}
	return v
}

func readFields(payload []byte, params []Param) ([]Field, error) {
	return codec.Decode(payload, func(d *codec.Decoder) []Field {
		fields := make([]Field, 0, len(params))
		for _, p := range params {
			fields = append(fields, Field{Name: p.Name, Value: readValue(d, p.Type)})
		}
		return fields
	})
}

func header(buf []byte) (OperationID, error) {
	if !Prefix.Match(buf) {
		return 0, ErrWrongStandard
	}
	id, ok := Discriminant(buf)
	if !ok {
		return 0, fmt.Errorf("%w: missing discriminant", ErrWrongCall)
	}
	return id, nil
}

// InspectRequest decodes buf as a request. Unknown discriminants fail.
func InspectRequest(buf []byte) (View, error) {
	id, err := header(buf)
	if err != nil {
		return View{}, err
	}
	op, ok := Lookup(id)
	if !ok {
		return View{}, fmt.Errorf("%w: discriminant %d", ErrWrongCall, uint8(id))
	}
	fields, err := readFields(payloadOf(buf), op.Args)
	if err != nil {
		return View{}, fmt.Errorf("%w: %s: %w", ErrWrongArguments, op.Name, err)
	}
	return View{Kind: KindRequest, Op: id, Title: op.Title, Fields: fields}, nil
}

// InspectResponse decodes buf as a response.
func InspectResponse(buf []byte) (View, error) {
	id, err := header(buf)
	if err != nil {
		return View{}, err
	}
	op, ok := Lookup(id)
	if !ok {
		return View{}, fmt.Errorf("%w: discriminant %d", ErrWrongCall, uint8(id))
	}
	fields, err := readFields(payloadOf(buf), []Param{op.Returns})
	if err != nil {
		return View{}, fmt.Errorf("%w: %s: %w", ErrWrongArguments, op.Name, err)
	}
	return View{Kind: KindResponse, Op: id, Title: op.Title, Fields: fields}, nil
}

// InspectEvent decodes buf as an event.
func InspectEvent(buf []byte) (View, error) {
	id, err := header(buf)
	if err != nil {
		return View{}, err
	}
	if id != OpEvent {
		return View{}, fmt.Errorf("%w: discriminant %d is not an event", ErrWrongCall, uint8(id))
	}
	payload := payloadOf(buf)
	if len(payload) == 0 {
		return View{}, fmt.Errorf("%w: missing sub-discriminant", ErrUnknownEvent)
	}
	spec, ok := LookupEvent(EventKind(payload[0]))
	if !ok {
		return View{}, fmt.Errorf("%w: %d", ErrUnknownEvent, payload[0])
	}
	fields, err := readFields(payload[1:], spec.Fields)
	if err != nil {
		return View{}, fmt.Errorf("%w: %s: %w", ErrWrongArguments, spec.Title, err)
	}
	return View{Kind: KindEvent, Op: OpEvent, Title: spec.Title, Fields: fields}, nil
}

// Inspect picks a reader from the discriminant. Catalog discriminants are
// ambiguous between requests and responses, so kind must say which.
func Inspect(kind MessageKind, buf []byte) (View, error) {
	switch kind {
	case KindRequest:
		return InspectRequest(buf)
	case KindResponse:
		return InspectResponse(buf)
	case KindEvent:
		return InspectEvent(buf)
	default:
		return View{}, fmt.Errorf("vrc20: unknown message kind %d", kind)
	}
}

func describe(name string, v View, err error) string {
	if err != nil {
		return fmt.Sprintf("%s(%v)", name, err)
	}
	return v.String()
}

func (r Request) String() string {
	v, err := InspectRequest(r.buf)
	return describe("Request", v, err)
}

func (r Response) String() string {
	v, err := InspectResponse(r.buf)
	return describe("Response", v, err)
}

func (e Event) String() string {
	v, err := InspectEvent(e.buf)
	return describe("Event", v, err)
}
