package value

import (
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
)

// wireValue is the CBOR-visible shape of a Value. Kind is encoded as a
// small integer tag and only the payload fields of that variant are set
// (Int and Neg for an Int; zero-valued payloads are omitted), keeping the
// encoding compact and matching cbor's CanonicalEncOptions
// field-ordering guarantee (map keys sorted by encoded length then byte
// value) so that encode(v) is stable across processes and Go versions.
type wireValue struct {
	Kind int        `cbor:"1,keyasint"`
	Int  []byte     `cbor:"2,keyasint,omitempty"`
	Neg  bool       `cbor:"3,keyasint,omitempty"`
	Bool bool       `cbor:"4,keyasint,omitempty"`
	Blob []byte     `cbor:"5,keyasint,omitempty"`
	Dict []wirePair `cbor:"6,keyasint,omitempty"`
}

type wirePair struct {
	Key wireValue `cbor:"1,keyasint"`
	Val wireValue `cbor:"2,keyasint"`
}

func toWire(v Value) wireValue {
	switch v.Kind {
	case KindInt:
		mag := v.Int.Bytes()
		return wireValue{Kind: int(KindInt), Int: mag, Neg: v.Int.Sign() < 0}
	case KindBool:
		return wireValue{Kind: int(KindBool), Bool: v.Bool}
	case KindBlob:
		return wireValue{Kind: int(KindBlob), Blob: v.Blob}
	case KindDict:
		pairs := make([]wirePair, len(v.Dict))
		for i, p := range v.Dict {
			pairs[i] = wirePair{Key: toWire(p.Key), Val: toWire(p.Val)}
		}
		return wireValue{Kind: int(KindDict), Dict: pairs}
	default:
		return wireValue{Kind: int(v.Kind)}
	}
}

func fromWire(w wireValue) (Value, error) {
	switch Kind(w.Kind) {
	case KindInt:
		n := new(big.Int).SetBytes(w.Int)
		if w.Neg {
			n.Neg(n)
		}
		return IntVal(n), nil
	case KindBool:
		return BoolVal(w.Bool), nil
	case KindBlob:
		return BlobVal(w.Blob), nil
	case KindDict:
		pairs := make([]Pair, len(w.Dict))
		for i, wp := range w.Dict {
			k, err := fromWire(wp.Key)
			if err != nil {
				return Value{}, err
			}
			val, err := fromWire(wp.Val)
			if err != nil {
				return Value{}, err
			}
			pairs[i] = Pair{Key: k, Val: val}
		}
		return Value{Kind: KindDict, Dict: pairs}, nil
	default:
		return Value{}, fmt.Errorf("value: unknown wire kind %d", w.Kind)
	}
}

// canonicalEncMode is used by Marshal so every encoded Value uses the same
// deterministic (sorted map keys, shortest-form integers)
// CBOR options, per spec.md's decode(encode(v)) == v round-trip contract.
var canonicalEncMode = func() cbor.EncMode {
	mode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("value: building canonical CBOR encoder: %v", err))
	}
	return mode
}()

// Marshal encodes v as deterministic CBOR.
func Marshal(v Value) ([]byte, error) {
	return canonicalEncMode.Marshal(toWire(v))
}

// Unmarshal decodes a Value previously produced by Marshal.
func Unmarshal(data []byte) (Value, error) {
	var w wireValue
	if err := cbor.Unmarshal(data, &w); err != nil {
		return Value{}, fmt.Errorf("value: decoding CBOR: %w", err)
	}
	return fromWire(w)
}
