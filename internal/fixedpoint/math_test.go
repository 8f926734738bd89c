package fixedpoint

import (
	"math/big"
	"testing"
)

func TestSqrt(t *testing.T) {
	cases := []struct {
		in   int64
		want int64
	}{
		{0, 0},
		{1, 1},
		{3, 1},
		{4, 2},
		{2000000, 1414},
		{1000000000000, 1000000},
	}
	for _, tc := range cases {
		got := Sqrt(big.NewInt(tc.in))
		if got.Int64() != tc.want {
			t.Fatalf("Sqrt(%d) = %s, want %d", tc.in, got, tc.want)
		}
	}
}

func TestMulDivWidens(t *testing.T) {
	// a * b overflows 64 bits; the full-width intermediate must not.
	a := new(big.Int).SetUint64(1 << 63)
	b := big.NewInt(4)
	got := MulDiv(a, b, big.NewInt(2))
	want := new(big.Int).Lsh(big.NewInt(1), 64)
	if got.Cmp(want) != 0 {
		t.Fatalf("MulDiv = %s, want %s", got, want)
	}
}

func TestCeilDiv(t *testing.T) {
	cases := []struct {
		a, b, want int64
	}{
		{10, 5, 2},
		{11, 5, 3},
		{1, 5, 1},
		{0, 5, 0},
	}
	for _, tc := range cases {
		got := CeilDiv(big.NewInt(tc.a), big.NewInt(tc.b))
		if got.Int64() != tc.want {
			t.Fatalf("CeilDiv(%d, %d) = %s, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestMulDivCeil(t *testing.T) {
	got := MulDivCeil(big.NewInt(7), big.NewInt(3), big.NewInt(4))
	if got.Int64() != 6 {
		t.Fatalf("MulDivCeil(7,3,4) = %s, want 6", got)
	}
}

func TestPriceUQ112(t *testing.T) {
	// price of 2/1 encodes to 2 << 112
	got := PriceUQ112(big.NewInt(2), big.NewInt(1))
	want := EncodeUQ112(big.NewInt(2))
	if !got.Eq(want) {
		t.Fatalf("PriceUQ112(2,1) = %s, want %s", got, want)
	}

	// price of 1/2 encodes to 2^111
	got = PriceUQ112(big.NewInt(1), big.NewInt(2))
	want = UQDiv(EncodeUQ112(big.NewInt(1)), big.NewInt(2))
	if !got.Eq(want) {
		t.Fatalf("PriceUQ112(1,2) = %s, want %s", got, want)
	}
	half := new(big.Int).Lsh(big.NewInt(1), 111)
	if got.ToBig().Cmp(half) != 0 {
		t.Fatalf("PriceUQ112(1,2) = %s, want %s", got.ToBig(), half)
	}
}
