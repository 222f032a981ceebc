package sats

import "fmt"

// Kind discriminates the shape of an AlgebraicType.
type Kind uint8

const (
	KindBool Kind = iota
	KindI8
	KindI16
	KindI32
	KindI64
	KindI128
	KindU8
	KindU16
	KindU32
	KindU64
	KindU128
	KindF32
	KindF64
	KindString
	KindArray
	KindMap
	KindSum
	KindProduct
	KindRef
)

// InlineBudget is the fixed number of bytes reserved for a string, array,
// or map element within a row's fixed-size layout. Values whose canonical
// encoding would not fit are rejected rather than spilled to a
// variable-length region - spilling is explicitly out of scope (spec.md
// section 3.1).
const InlineBudget = 32

// SumVariant is one named arm of a sum type.
type SumVariant struct {
	Name string
	Ty   AlgebraicType
}

// ProductElem is one named field of a product type.
type ProductElem struct {
	Name string
	Ty   AlgebraicType
}

// ProductType is an ordered list of named, typed fields - the schema of a
// row.
type ProductType []ProductElem

// Typespace is a flat list of types that Ref indexes into, used to express
// recursive or shared types without ownership cycles.
type Typespace []AlgebraicType

// AlgebraicType is the structural type of a value: a sum, a product, a
// built-in primitive, a homogeneous array, a map, or a reference into a
// Typespace.
type AlgebraicType struct {
	Kind Kind

	// KindArray
	Elem *AlgebraicType

	// KindMap
	Key *AlgebraicType
	Val *AlgebraicType

	// KindSum
	Variants []SumVariant

	// KindProduct
	Product ProductType

	// KindRef
	Ref uint32
}

func Bool() AlgebraicType   { return AlgebraicType{Kind: KindBool} }
func I8() AlgebraicType     { return AlgebraicType{Kind: KindI8} }
func I16() AlgebraicType    { return AlgebraicType{Kind: KindI16} }
func I32() AlgebraicType    { return AlgebraicType{Kind: KindI32} }
func I64() AlgebraicType    { return AlgebraicType{Kind: KindI64} }
func I128() AlgebraicType   { return AlgebraicType{Kind: KindI128} }
func U8() AlgebraicType     { return AlgebraicType{Kind: KindU8} }
func U16() AlgebraicType    { return AlgebraicType{Kind: KindU16} }
func U32() AlgebraicType    { return AlgebraicType{Kind: KindU32} }
func U64() AlgebraicType    { return AlgebraicType{Kind: KindU64} }
func U128() AlgebraicType   { return AlgebraicType{Kind: KindU128} }
func F32() AlgebraicType    { return AlgebraicType{Kind: KindF32} }
func F64() AlgebraicType    { return AlgebraicType{Kind: KindF64} }
func Str() AlgebraicType    { return AlgebraicType{Kind: KindString} }

func ArrayOf(elem AlgebraicType) AlgebraicType {
	return AlgebraicType{Kind: KindArray, Elem: &elem}
}

func MapOf(key, val AlgebraicType) AlgebraicType {
	return AlgebraicType{Kind: KindMap, Key: &key, Val: &val}
}

func Sum(variants ...SumVariant) AlgebraicType {
	return AlgebraicType{Kind: KindSum, Variants: variants}
}

func Product(elems ...ProductElem) AlgebraicType {
	return AlgebraicType{Kind: KindProduct, Product: elems}
}

func RefTo(idx uint32) AlgebraicType {
	return AlgebraicType{Kind: KindRef, Ref: idx}
}

// FixedSizeOf returns the fixed byte size of the type under the
// canonical encoding, computed on each call. ts resolves KindRef; it may
// be nil if the type contains no references.
func (t AlgebraicType) FixedSizeOf(ts Typespace) (int, error) {
	switch t.Kind {
	case KindBool, KindI8, KindU8:
		return 1, nil
	case KindI16, KindU16:
		return 2, nil
	case KindI32, KindU32, KindF32:
		return 4, nil
	case KindI64, KindU64, KindF64:
		return 8, nil
	case KindI128, KindU128:
		return 16, nil
	case KindString, KindArray, KindMap:
		return InlineBudget, nil
	case KindSum:
		max := 0
		for _, v := range t.Variants {
			sz, err := v.Ty.FixedSizeOf(ts)
			if err != nil {
				return 0, err
			}
			if sz > max {
				max = sz
			}
		}
		return 1 + max, nil
	case KindProduct:
		total := 0
		for _, e := range t.Product {
			sz, err := e.Ty.FixedSizeOf(ts)
			if err != nil {
				return 0, err
			}
			total += sz
		}
		return total, nil
	case KindRef:
		if ts == nil || int(t.Ref) >= len(ts) {
			return 0, fmt.Errorf("sats: dangling type reference %d", t.Ref)
		}
		return ts[t.Ref].FixedSizeOf(ts)
	default:
		return 0, fmt.Errorf("sats: unknown type kind %d", t.Kind)
	}
}

// Resolve follows a KindRef through ts, returning t unchanged for any
// other kind.
func (t AlgebraicType) Resolve(ts Typespace) AlgebraicType {
	for t.Kind == KindRef && ts != nil && int(t.Ref) < len(ts) {
		t = ts[t.Ref]
	}
	return t
}

// FixedSizeOf computes the fixed row size of a schema; flat.Table keeps
// the result as its per-table row size (spec.md 3.4).
func (p ProductType) FixedSizeOf(ts Typespace) (int, error) {
	return AlgebraicType{Kind: KindProduct, Product: p}.FixedSizeOf(ts)
}
