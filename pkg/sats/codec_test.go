package sats

import "testing"

func requireNoErr(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFixedSizeOfPrimitives(t *testing.T) {
	cases := []struct {
		ty   AlgebraicType
		want int
	}{
		{Bool(), 1},
		{I8(), 1},
		{U8(), 1},
		{I16(), 2},
		{I32(), 4},
		{F32(), 4},
		{I64(), 8},
		{F64(), 8},
		{I128(), 16},
		{U128(), 16},
		{Str(), InlineBudget},
		{ArrayOf(I32()), InlineBudget},
	}
	for _, c := range cases {
		got, err := c.ty.FixedSizeOf(nil)
		requireNoErr(t, err)
		if got != c.want {
			t.Errorf("FixedSizeOf(%v) = %d, want %d", c.ty.Kind, got, c.want)
		}
	}
}

func TestFixedSizeOfProductSumsFields(t *testing.T) {
	ty := Product(
		ProductElem{Name: "a", Ty: I32()},
		ProductElem{Name: "b", Ty: I64()},
		ProductElem{Name: "c", Ty: Bool()},
	)
	sz, err := ty.FixedSizeOf(nil)
	requireNoErr(t, err)
	if sz != 4+8+1 {
		t.Errorf("product fixed size = %d, want 13", sz)
	}
}

func TestFixedSizeOfSumIsOnePlusMaxVariant(t *testing.T) {
	ty := Sum(
		SumVariant{Name: "small", Ty: I8()},
		SumVariant{Name: "big", Ty: I64()},
	)
	sz, err := ty.FixedSizeOf(nil)
	requireNoErr(t, err)
	if sz != 1+8 {
		t.Errorf("sum fixed size = %d, want 9", sz)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	ty := Product(
		ProductElem{Ty: I32()},
		ProductElem{Ty: Str()},
		ProductElem{Ty: Bool()},
		ProductElem{Ty: ArrayOf(U8())},
	)
	v := ProductVal(
		I32Val(-7),
		StrVal("hello"),
		BoolVal(true),
		ArrVal(U8Val(1), U8Val(2), U8Val(3)),
	)
	sz, err := ty.FixedSizeOf(nil)
	requireNoErr(t, err)

	buf := make([]byte, sz)
	requireNoErr(t, Encode(nil, ty, v, buf))

	got, err := Decode(nil, ty, buf)
	requireNoErr(t, err)

	if Compare(nil, ty, v, got) != 0 {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, v)
	}
}

func TestEncodeIsCanonicalAndDeterministic(t *testing.T) {
	ty := Product(ProductElem{Ty: I64()}, ProductElem{Ty: Str()})
	v := ProductVal(I64Val(42), StrVal("row"))
	sz, err := ty.FixedSizeOf(nil)
	requireNoErr(t, err)

	a := make([]byte, sz)
	b := make([]byte, sz)
	requireNoErr(t, Encode(nil, ty, v, a))
	requireNoErr(t, Encode(nil, ty, v, b))

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("encoding not deterministic at byte %d: %x vs %x", i, a, b)
		}
	}
}

func TestEncodeRejectsInlineOverflow(t *testing.T) {
	ty := Str()
	long := make([]byte, InlineBudget)
	for i := range long {
		long[i] = 'x'
	}
	buf := make([]byte, InlineBudget)
	if err := Encode(nil, ty, StrVal(string(long)), buf); err == nil {
		t.Fatal("expected inline budget overflow to error")
	}
}

func TestCompareTotalOrder(t *testing.T) {
	ty := I32()
	if Compare(nil, ty, I32Val(1), I32Val(2)) >= 0 {
		t.Fatal("1 should sort before 2")
	}
	if Compare(nil, ty, I32Val(2), I32Val(1)) <= 0 {
		t.Fatal("2 should sort after 1")
	}
	if Compare(nil, ty, I32Val(1), I32Val(1)) != 0 {
		t.Fatal("1 should equal 1")
	}
}

func TestCompareProductIsLexicographic(t *testing.T) {
	ty := Product(ProductElem{Ty: I32()}, ProductElem{Ty: I32()})
	a := ProductVal(I32Val(0), I32Val(5))
	b := ProductVal(I32Val(0), I32Val(6))
	c := ProductVal(I32Val(1), I32Val(0))
	if Compare(nil, ty, a, b) >= 0 {
		t.Fatal("(0,5) should sort before (0,6)")
	}
	if Compare(nil, ty, b, c) >= 0 {
		t.Fatal("(0,6) should sort before (1,0)")
	}
}
