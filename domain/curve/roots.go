package curve

import (
	"math/big"

	"github.com/shopspring/decimal"
)

const (
	// rootDigits is the number of fractional digits kept by squareRoot, which
	// only feeds spot prices and the general power path.
	rootDigits = 38
	// quoDigits is the number of fractional digits kept by truncating divisions.
	quoDigits = 38
	// powDigits is the precision of fractional powers other than 0.5.
	powDigits = 38
)

var (
	half          = decimal.New(5, -1)
	oneAndHalf    = decimal.New(15, -1)
	twoAndQuarter = decimal.New(225, -2)
	two           = decimal.NewFromInt(2)
	four          = decimal.NewFromInt(4)
	nine          = decimal.NewFromInt(9)
)

// quo divides truncating toward zero, so it never rounds up.
func quo(a, b decimal.Decimal) decimal.Decimal {
	q, _ := a.QuoRem(b, quoDigits)
	return q
}

// floorQuo returns floor(a / b) as an integer for a >= 0 and b > 0. The
// division is exact whatever the exponents of a and b.
func floorQuo(a, b decimal.Decimal) *big.Int {
	if a.Sign() <= 0 {
		return new(big.Int)
	}
	q, _ := a.QuoRem(b, 0)
	return q.BigInt()
}

// floorSqrt returns floor(sqrt(n)). Since floor(sqrt(x)) == floor(sqrt(floor(x)))
// for any real x >= 0, taking it on a floored integer loses nothing.
func floorSqrt(n *big.Int) *big.Int {
	if n.Sign() <= 0 {
		return new(big.Int)
	}
	return new(big.Int).Sqrt(n)
}

// squareRoot scales d up by an even power of ten, truncates, takes the integer
// square root and scales back down. The result is floored at rootDigits.
func squareRoot(d decimal.Decimal) decimal.Decimal {
	if d.Sign() <= 0 {
		return decimal.Zero
	}
	scaled := d.Shift(2 * rootDigits).BigInt()
	return decimal.NewFromBigInt(new(big.Int).Sqrt(scaled), -rootDigits)
}

// floorCbrt returns floor(cbrt(n)) by Newton iteration from above.
func floorCbrt(n *big.Int) *big.Int {
	if n.Sign() <= 0 {
		return new(big.Int)
	}
	three := big.NewInt(3)
	x := new(big.Int).Lsh(big.NewInt(1), uint((n.BitLen()+2)/3))
	for {
		// y = (2x + n/x^2) / 3
		y := new(big.Int).Mul(x, x)
		y.Quo(n, y)
		y.Add(y, new(big.Int).Lsh(x, 1))
		y.Quo(y, three)
		if y.Cmp(x) >= 0 {
			return x
		}
		x = y
	}
}

// pow raises a non-negative base to a positive exponent.
func pow(base, exp decimal.Decimal) decimal.Decimal {
	if base.Sign() <= 0 {
		return decimal.Zero
	}
	if exp.Equal(half) {
		return squareRoot(base)
	}
	if exp.IsInteger() {
		return base.Pow(exp)
	}
	r, err := base.PowWithPrecision(exp, powDigits)
	if err != nil {
		// only reachable for 0^0 or a negative base, both excluded above
		return decimal.Zero
	}
	return r
}
