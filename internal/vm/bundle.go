package vm

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// Bundle is the self-contained serialized form of a compiled program.
// Only constant value kinds appear inline in code, so the wire format
// covers nil, booleans, numbers, strings, addresses and indices.
type Bundle struct {
	ID      string     `cbor:"id"`
	Version int        `cbor:"version"`
	Source  string     `cbor:"source"`
	Units   []WireUnit `cbor:"units"`
	Root    WireRoot   `cbor:"root"`
}

// BundleVersion guards against stale cached bundles when the wire
// format changes.
const BundleVersion = 1

type WireUnit struct {
	Kind uint8     `cbor:"k"`
	Op   uint8     `cbor:"o,omitempty"`
	Val  WireValue `cbor:"v,omitempty"`
	Line int       `cbor:"l,omitempty"`
}

type WireValue struct {
	Type uint8   `cbor:"t"`
	Num  float64 `cbor:"n,omitempty"`
	Int  int64   `cbor:"i,omitempty"`
	Bool bool    `cbor:"b,omitempty"`
	Str  string  `cbor:"s,omitempty"`
}

type WireRoot struct {
	NumLocals int `cbor:"locals"`
	EntryPC   int `cbor:"entry"`
	EndPC     int `cbor:"end"`
}

// cborEncMode uses canonical encoding for deterministic bundles.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// NewBundle converts a program into its wire form, stamping a fresh id.
func NewBundle(program *Program) (*Bundle, error) {
	b := &Bundle{
		ID:      uuid.NewString(),
		Version: BundleVersion,
		Source:  program.Source,
		Root: WireRoot{
			NumLocals: program.Root.NumLocals,
			EntryPC:   program.Root.EntryPC,
			EndPC:     program.Root.EndPC,
		},
	}
	for _, u := range program.Code.Units {
		wu := WireUnit{Kind: uint8(u.Kind), Line: u.Line}
		switch u.Kind {
		case UnitInstruction:
			wu.Op = uint8(u.Op)
		case UnitValue:
			wv, err := wireValue(u.Val)
			if err != nil {
				return nil, err
			}
			wu.Val = wv
		}
		b.Units = append(b.Units, wu)
	}
	return b, nil
}

// Program reconstructs the runnable form of a bundle.
func (b *Bundle) Program() (*Program, error) {
	if b.Version != BundleVersion {
		return nil, fmt.Errorf("bundle version %d not supported", b.Version)
	}
	code := NewCode()
	for _, wu := range b.Units {
		u := Unit{Kind: UnitKind(wu.Kind), Line: wu.Line}
		switch u.Kind {
		case UnitInstruction:
			u.Op = Opcode(wu.Op)
		case UnitValue:
			v, err := wu.Val.value()
			if err != nil {
				return nil, err
			}
			u.Val = v
		case UnitEndClosure:
		default:
			return nil, fmt.Errorf("bundle holds unknown unit kind %d", wu.Kind)
		}
		code.Units = append(code.Units, u)
	}
	return &Program{
		Code:   code,
		Source: b.Source,
		Root: &Closure{
			NumLocals: b.Root.NumLocals,
			EntryPC:   b.Root.EntryPC,
			EndPC:     b.Root.EndPC,
			Name:      "main",
		},
	}, nil
}

func wireValue(v Value) (WireValue, error) {
	switch v.Type {
	case ValNil:
		return WireValue{Type: uint8(ValNil)}, nil
	case ValBoolean:
		return WireValue{Type: uint8(ValBoolean), Bool: v.AsBool()}, nil
	case ValNumber:
		return WireValue{Type: uint8(ValNumber), Num: v.AsNumber()}, nil
	case ValString:
		return WireValue{Type: uint8(ValString), Str: v.AsString()}, nil
	case ValAddress:
		return WireValue{Type: uint8(ValAddress), Int: int64(v.AsAddress())}, nil
	case ValIndex:
		return WireValue{Type: uint8(ValIndex), Int: int64(v.AsIndex())}, nil
	}
	return WireValue{}, fmt.Errorf("value kind %s cannot be serialized", v.TypeName())
}

func (wv WireValue) value() (Value, error) {
	switch ValueType(wv.Type) {
	case ValNil:
		return NilVal(), nil
	case ValBoolean:
		return BoolVal(wv.Bool), nil
	case ValNumber:
		return NumberVal(wv.Num), nil
	case ValString:
		return StringVal(wv.Str), nil
	case ValAddress:
		return AddressVal(int(wv.Int)), nil
	case ValIndex:
		return IndexVal(int(wv.Int)), nil
	}
	return NilVal(), fmt.Errorf("bundle holds unknown value kind %d", wv.Type)
}

// MarshalBundle serializes a bundle to canonical CBOR bytes.
func MarshalBundle(b *Bundle) ([]byte, error) {
	return cborEncMode.Marshal(b)
}

// UnmarshalBundle deserializes a bundle from CBOR bytes.
func UnmarshalBundle(data []byte) (*Bundle, error) {
	var b Bundle
	if err := cbor.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("vm: unmarshal bundle: %w", err)
	}
	return &b, nil
}
