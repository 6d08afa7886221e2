package codec

// Decode runs read over buf and requires the whole buffer to be consumed.
// Short, malformed and over-long input are reported as *DecodeError.
func Decode[T any](buf []byte, read func(*Decoder) T) (T, error) {
	d := NewDecoder(buf)
	v := read(d)
	if err := d.Finish(); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// MustDecode is Decode for buffers this process built itself.
// It panics on malformed input and must not see untrusted bytes.
func MustDecode[T any](buf []byte, read func(*Decoder) T) T {
	v, err := Decode(buf, read)
	if err != nil {
		panic(err)
	}
	return v
}

// AddressPair is the (Address, Address) tuple.
type AddressPair struct {
	First  Address
	Second Address
}

// AddressAmount is the (Address, U256) tuple.
type AddressAmount struct {
	Address Address
	Amount  U256
}

// TransferTuple is the (Address, Address, U256) tuple.
type TransferTuple struct {
	From  Address
	To    Address
	Value U256
}

func ReadAddress(d *Decoder) Address { return d.Address() }

func ReadU256(d *Decoder) U256 { return d.U256() }

func ReadU8(d *Decoder) uint8 { return d.U8() }

func ReadBool(d *Decoder) bool { return d.Bool() }

func ReadString(d *Decoder) string { return d.String() }

func ReadAddressPair(d *Decoder) AddressPair {
	return AddressPair{First: d.Address(), Second: d.Address()}
}

func ReadAddressAmount(d *Decoder) AddressAmount {
	return AddressAmount{Address: d.Address(), Amount: d.U256()}
}

func ReadTransferTuple(d *Decoder) TransferTuple {
	return TransferTuple{From: d.Address(), To: d.Address(), Value: d.U256()}
}

func (p AddressPair) Encode(e *Encoder) *Encoder {
	return e.Address(p.First).Address(p.Second)
}

func (p AddressAmount) Encode(e *Encoder) *Encoder {
	return e.Address(p.Address).U256(p.Amount)
}

func (t TransferTuple) Encode(e *Encoder) *Encoder {
	return e.Address(t.From).Address(t.To).U256(t.Value)
}
