package sats

import "strings"

// Compare implements the total order over AlgebraicValue required by
// spec.md section 4.5: lexicographic on products, by tag then payload on
// sums, numeric on numerics, lexicographic on strings/byte sequences.
// It returns -1, 0, or 1. ty (resolved through ts) must describe both a
// and b.
func Compare(ts Typespace, ty AlgebraicType, a, b AlgebraicValue) int {
	ty = ty.Resolve(ts)
	switch ty.Kind {
	case KindBool:
		return boolCmp(a.Bool, b.Bool)
	case KindI8:
		return intCmp(int64(a.I8), int64(b.I8))
	case KindI16:
		return intCmp(int64(a.I16), int64(b.I16))
	case KindI32:
		return intCmp(int64(a.I32), int64(b.I32))
	case KindI64:
		return intCmp(a.I64, b.I64)
	case KindU8:
		return uintCmp(uint64(a.U8), uint64(b.U8))
	case KindU16:
		return uintCmp(uint64(a.U16), uint64(b.U16))
	case KindU32:
		return uintCmp(uint64(a.U32), uint64(b.U32))
	case KindU64:
		return uintCmp(a.U64, b.U64)
	case KindI128:
		return i128Cmp(a.I128, b.I128)
	case KindU128:
		return u128Cmp(a.U128, b.U128)
	case KindF32:
		return floatCmp(float64(a.F32), float64(b.F32))
	case KindF64:
		return floatCmp(a.F64, b.F64)
	case KindString:
		return strings.Compare(a.Str, b.Str)
	case KindArray:
		return arrCmp(ts, ty, a.Arr, b.Arr)
	case KindMap:
		return mapCmp(ts, ty, a.Map, b.Map)
	case KindSum:
		if c := intCmp(int64(a.Sum.Tag), int64(b.Sum.Tag)); c != 0 {
			return c
		}
		if a.Sum.Val == nil || b.Sum.Val == nil {
			return 0
		}
		variant := ty.Variants[a.Sum.Tag]
		return Compare(ts, variant.Ty, *a.Sum.Val, *b.Sum.Val)
	case KindProduct:
		for i := range ty.Product {
			if c := Compare(ts, ty.Product[i].Ty, a.Product[i], b.Product[i]); c != 0 {
				return c
			}
		}
		return 0
	default:
		return 0
	}
}

func boolCmp(a, b bool) int {
	if a == b {
		return 0
	}
	if !a {
		return -1
	}
	return 1
}

func intCmp(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func uintCmp(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func floatCmp(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// u128Cmp compares as unsigned 128-bit magnitudes.
func u128Cmp(a, b Int128) int {
	if c := uintCmp(a.Hi, b.Hi); c != 0 {
		return c
	}
	return uintCmp(a.Lo, b.Lo)
}

// i128Cmp compares as signed two's-complement 128-bit integers by
// flipping the sign bit of the high word, which maps signed ordering
// onto unsigned ordering.
func i128Cmp(a, b Int128) int {
	const signBit = uint64(1) << 63
	av := Int128{Hi: a.Hi ^ signBit, Lo: a.Lo}
	bv := Int128{Hi: b.Hi ^ signBit, Lo: b.Lo}
	return u128Cmp(av, bv)
}

func arrCmp(ts Typespace, ty AlgebraicType, a, b []AlgebraicValue) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if ty.Elem != nil {
		for i := 0; i < n; i++ {
			if c := Compare(ts, *ty.Elem, a[i], b[i]); c != 0 {
				return c
			}
		}
	}
	return intCmp(int64(len(a)), int64(len(b)))
}

func mapCmp(ts Typespace, ty AlgebraicType, a, b []MapEntry) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if ty.Key != nil && ty.Val != nil {
		for i := 0; i < n; i++ {
			if c := Compare(ts, *ty.Key, a[i].Key, b[i].Key); c != 0 {
				return c
			}
			if c := Compare(ts, *ty.Val, a[i].Val, b[i].Val); c != 0 {
				return c
			}
		}
	}
	return intCmp(int64(len(a)), int64(len(b)))
}
