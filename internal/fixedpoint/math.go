// Package fixedpoint provides the integer arithmetic helpers the pool and
// router math is built on: integer square root, widened multiply-then-divide,
// ceiling division, and the UQ112.112 price encoding used by the cumulative
// price accumulators.
package fixedpoint

import (
	"math/big"

	"github.com/holiman/uint256"
)

// Q112 is 2^112, the scaling factor of the UQ112.112 encoding.
var Q112 = new(big.Int).Lsh(big.NewInt(1), 112)

// MaxReserve is the largest reserve value the UQ112.112 encoding supports.
var MaxReserve = new(big.Int).Sub(Q112, big.NewInt(1))

// Sqrt returns the floor of the square root of x. x must be non-negative.
func Sqrt(x *big.Int) *big.Int {
	return new(big.Int).Sqrt(x)
}

// MulDiv returns floor(a * b / denom). The intermediate product is computed
// at full width, so it never overflows regardless of operand size.
func MulDiv(a, b, denom *big.Int) *big.Int {
	product := new(big.Int).Mul(a, b)
	return product.Div(product, denom)
}

// MulDivCeil returns ceil(a * b / denom).
func MulDivCeil(a, b, denom *big.Int) *big.Int {
	product := new(big.Int).Mul(a, b)
	return CeilDiv(product, denom)
}

// CeilDiv returns ceil(a / b) for non-negative a and positive b.
func CeilDiv(a, b *big.Int) *big.Int {
	quo, rem := new(big.Int).QuoRem(a, b, new(big.Int))
	if rem.Sign() != 0 {
		quo.Add(quo, big.NewInt(1))
	}
	return quo
}

// EncodeUQ112 returns x << 112 as an unsigned 256-bit value.
// x must fit in 112 bits.
func EncodeUQ112(x *big.Int) *uint256.Int {
	v, _ := uint256.FromBig(x)
	return v.Lsh(v, 112)
}

// UQDiv divides a UQ112.112 value by a plain integer, yielding a UQ112.112
// result.
func UQDiv(x *uint256.Int, y *big.Int) *uint256.Int {
	d, _ := uint256.FromBig(y)
	return new(uint256.Int).Div(x, d)
}

// PriceUQ112 returns the UQ112.112 encoding of numerator/denominator, the
// instantaneous price used by the accumulators. Both operands must fit in
// 112 bits and denominator must be nonzero.
func PriceUQ112(numerator, denominator *big.Int) *uint256.Int {
	return UQDiv(EncodeUQ112(numerator), denominator)
}
