package sats

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Encode writes v's canonical fixed-size encoding for type ty into dst,
// which must be exactly len(dst) == ty.FixedSizeOf(ts) bytes. The
// encoding is little-endian, has no padding, and orders product fields
// in schema order - this is what makes row identity (package flat)
// content-addressable: two logically equal rows always produce
// byte-identical encodings.
func Encode(ts Typespace, ty AlgebraicType, v AlgebraicValue, dst []byte) error {
	ty = ty.Resolve(ts)
	switch ty.Kind {
	case KindBool:
		if v.Bool {
			dst[0] = 1
		} else {
			dst[0] = 0
		}
	case KindI8:
		dst[0] = byte(v.I8)
	case KindU8:
		dst[0] = v.U8
	case KindI16:
		binary.LittleEndian.PutUint16(dst, uint16(v.I16))
	case KindU16:
		binary.LittleEndian.PutUint16(dst, v.U16)
	case KindI32:
		binary.LittleEndian.PutUint32(dst, uint32(v.I32))
	case KindU32:
		binary.LittleEndian.PutUint32(dst, v.U32)
	case KindF32:
		binary.LittleEndian.PutUint32(dst, math.Float32bits(v.F32))
	case KindI64:
		binary.LittleEndian.PutUint64(dst, uint64(v.I64))
	case KindU64:
		binary.LittleEndian.PutUint64(dst, v.U64)
	case KindF64:
		binary.LittleEndian.PutUint64(dst, math.Float64bits(v.F64))
	case KindI128:
		putInt128(dst, v.I128)
	case KindU128:
		putInt128(dst, v.U128)
	case KindString:
		return encodeInline(dst, []byte(v.Str))
	case KindArray:
		enc, err := encodeArray(ts, ty, v)
		if err != nil {
			return err
		}
		return encodeInline(dst, enc)
	case KindMap:
		enc, err := encodeMap(ts, ty, v)
		if err != nil {
			return err
		}
		return encodeInline(dst, enc)
	case KindSum:
		if int(v.Sum.Tag) >= len(ty.Variants) {
			return fmt.Errorf("sats: sum tag %d out of range", v.Sum.Tag)
		}
		dst[0] = v.Sum.Tag
		variant := ty.Variants[v.Sum.Tag]
		sz, err := variant.Ty.FixedSizeOf(ts)
		if err != nil {
			return err
		}
		var payload AlgebraicValue
		if v.Sum.Val != nil {
			payload = *v.Sum.Val
		}
		return Encode(ts, variant.Ty, payload, dst[1:1+sz])
	case KindProduct:
		if len(v.Product) != len(ty.Product) {
			return fmt.Errorf("sats: product arity mismatch: value has %d fields, type has %d", len(v.Product), len(ty.Product))
		}
		off := 0
		for i, elem := range ty.Product {
			sz, err := elem.Ty.FixedSizeOf(ts)
			if err != nil {
				return err
			}
			if err := Encode(ts, elem.Ty, v.Product[i], dst[off:off+sz]); err != nil {
				return err
			}
			off += sz
		}
	default:
		return fmt.Errorf("sats: cannot encode kind %d", ty.Kind)
	}
	return nil
}

// encodeInline packs a variable-length payload into the fixed
// InlineBudget window as a 4-byte little-endian length followed by the
// bytes themselves, zero-padded. Payloads that overflow the budget are
// rejected - spilling to a variable-length region is out of scope
// (spec.md section 3.1).
func encodeInline(dst []byte, payload []byte) error {
	if len(payload) > InlineBudget-4 {
		return fmt.Errorf("sats: %d-byte value exceeds inline budget of %d bytes", len(payload), InlineBudget-4)
	}
	binary.LittleEndian.PutUint32(dst[:4], uint32(len(payload)))
	copy(dst[4:], payload)
	for i := 4 + len(payload); i < InlineBudget; i++ {
		dst[i] = 0
	}
	return nil
}

func decodeInline(src []byte) []byte {
	n := binary.LittleEndian.Uint32(src[:4])
	return src[4 : 4+n]
}

func encodeArray(ts Typespace, ty AlgebraicType, v AlgebraicValue) ([]byte, error) {
	if ty.Elem == nil {
		return nil, nil
	}
	elemSz, err := ty.Elem.FixedSizeOf(ts)
	if err != nil {
		return nil, err
	}
	out := make([]byte, elemSz*len(v.Arr))
	off := 0
	for _, e := range v.Arr {
		if err := Encode(ts, *ty.Elem, e, out[off:off+elemSz]); err != nil {
			return nil, err
		}
		off += elemSz
	}
	return out, nil
}

func encodeMap(ts Typespace, ty AlgebraicType, v AlgebraicValue) ([]byte, error) {
	if ty.Key == nil || ty.Val == nil {
		return nil, nil
	}
	keySz, err := ty.Key.FixedSizeOf(ts)
	if err != nil {
		return nil, err
	}
	valSz, err := ty.Val.FixedSizeOf(ts)
	if err != nil {
		return nil, err
	}
	entries := make([]MapEntry, len(v.Map))
	copy(entries, v.Map)
	sortMapEntries(ts, *ty.Key, entries)
	out := make([]byte, (keySz+valSz)*len(entries))
	off := 0
	for _, e := range entries {
		if err := Encode(ts, *ty.Key, e.Key, out[off:off+keySz]); err != nil {
			return nil, err
		}
		off += keySz
		if err := Encode(ts, *ty.Val, e.Val, out[off:off+valSz]); err != nil {
			return nil, err
		}
		off += valSz
	}
	return out, nil
}

func sortMapEntries(ts Typespace, keyTy AlgebraicType, entries []MapEntry) {
	// Simple insertion sort: map cardinality is small (it lives inside a
	// 32-byte inline budget), so this never matters for performance.
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && Compare(ts, keyTy, entries[j-1].Key, entries[j].Key) > 0; j-- {
			entries[j-1], entries[j] = entries[j], entries[j-1]
		}
	}
}

// Decode reads a value of type ty back out of its canonical encoding.
func Decode(ts Typespace, ty AlgebraicType, src []byte) (AlgebraicValue, error) {
	ty = ty.Resolve(ts)
	switch ty.Kind {
	case KindBool:
		return BoolVal(src[0] != 0), nil
	case KindI8:
		return I8Val(int8(src[0])), nil
	case KindU8:
		return U8Val(src[0]), nil
	case KindI16:
		return I16Val(int16(binary.LittleEndian.Uint16(src))), nil
	case KindU16:
		return U16Val(binary.LittleEndian.Uint16(src)), nil
	case KindI32:
		return I32Val(int32(binary.LittleEndian.Uint32(src))), nil
	case KindU32:
		return U32Val(binary.LittleEndian.Uint32(src)), nil
	case KindF32:
		return F32Val(math.Float32frombits(binary.LittleEndian.Uint32(src))), nil
	case KindI64:
		return I64Val(int64(binary.LittleEndian.Uint64(src))), nil
	case KindU64:
		return U64Val(binary.LittleEndian.Uint64(src)), nil
	case KindF64:
		return F64Val(math.Float64frombits(binary.LittleEndian.Uint64(src))), nil
	case KindI128:
		return AlgebraicValue{Kind: KindI128, I128: getInt128(src)}, nil
	case KindU128:
		return AlgebraicValue{Kind: KindU128, U128: getInt128(src)}, nil
	case KindString:
		return StrVal(string(decodeInline(src))), nil
	case KindArray:
		return decodeArray(ts, ty, src)
	case KindMap:
		return decodeMap(ts, ty, src)
	case KindSum:
		tag := src[0]
		if int(tag) >= len(ty.Variants) {
			return AlgebraicValue{}, fmt.Errorf("sats: sum tag %d out of range", tag)
		}
		variant := ty.Variants[tag]
		sz, err := variant.Ty.FixedSizeOf(ts)
		if err != nil {
			return AlgebraicValue{}, err
		}
		payload, err := Decode(ts, variant.Ty, src[1:1+sz])
		if err != nil {
			return AlgebraicValue{}, err
		}
		return SumVal(tag, payload), nil
	case KindProduct:
		fields := make([]AlgebraicValue, len(ty.Product))
		off := 0
		for i, elem := range ty.Product {
			sz, err := elem.Ty.FixedSizeOf(ts)
			if err != nil {
				return AlgebraicValue{}, err
			}
			f, err := Decode(ts, elem.Ty, src[off:off+sz])
			if err != nil {
				return AlgebraicValue{}, err
			}
			fields[i] = f
			off += sz
		}
		return AlgebraicValue{Kind: KindProduct, Product: fields}, nil
	default:
		return AlgebraicValue{}, fmt.Errorf("sats: cannot decode kind %d", ty.Kind)
	}
}

func decodeArray(ts Typespace, ty AlgebraicType, src []byte) (AlgebraicValue, error) {
	payload := decodeInline(src)
	if ty.Elem == nil || len(payload) == 0 {
		return AlgebraicValue{Kind: KindArray}, nil
	}
	elemSz, err := ty.Elem.FixedSizeOf(ts)
	if err != nil {
		return AlgebraicValue{}, err
	}
	n := len(payload) / elemSz
	out := make([]AlgebraicValue, n)
	for i := 0; i < n; i++ {
		v, err := Decode(ts, *ty.Elem, payload[i*elemSz:(i+1)*elemSz])
		if err != nil {
			return AlgebraicValue{}, err
		}
		out[i] = v
	}
	return AlgebraicValue{Kind: KindArray, Arr: out}, nil
}

func decodeMap(ts Typespace, ty AlgebraicType, src []byte) (AlgebraicValue, error) {
	payload := decodeInline(src)
	if ty.Key == nil || ty.Val == nil || len(payload) == 0 {
		return AlgebraicValue{Kind: KindMap}, nil
	}
	keySz, err := ty.Key.FixedSizeOf(ts)
	if err != nil {
		return AlgebraicValue{}, err
	}
	valSz, err := ty.Val.FixedSizeOf(ts)
	if err != nil {
		return AlgebraicValue{}, err
	}
	stride := keySz + valSz
	n := len(payload) / stride
	out := make([]MapEntry, n)
	for i := 0; i < n; i++ {
		chunk := payload[i*stride : (i+1)*stride]
		k, err := Decode(ts, *ty.Key, chunk[:keySz])
		if err != nil {
			return AlgebraicValue{}, err
		}
		v, err := Decode(ts, *ty.Val, chunk[keySz:])
		if err != nil {
			return AlgebraicValue{}, err
		}
		out[i] = MapEntry{Key: k, Val: v}
	}
	return AlgebraicValue{Kind: KindMap, Map: out}, nil
}

func putInt128(dst []byte, v Int128) {
	binary.LittleEndian.PutUint64(dst[:8], v.Lo)
	binary.LittleEndian.PutUint64(dst[8:], v.Hi)
}

func getInt128(src []byte) Int128 {
	return Int128{
		Lo: binary.LittleEndian.Uint64(src[:8]),
		Hi: binary.LittleEndian.Uint64(src[8:]),
	}
}
