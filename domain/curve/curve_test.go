package curve

import (
	"math/big"
	"testing"

	"curvebond/domain/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func amount(v uint64) model.Amount {
	return model.NewAmount(v)
}

func pow10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}

func bigAmount(t *testing.T, b *big.Int) model.Amount {
	t.Helper()
	a, err := model.AmountFromBig(b)
	require.NoError(t, err)
	return a
}

func mustCurve(t *testing.T, shape Shape, places DecimalPlaces) *Curve {
	t.Helper()
	c, err := New(shape, places)
	require.NoError(t, err)
	return c
}

func requireDecimal(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	require.Truef(t, decimal.RequireFromString(expected).Equal(actual), "expected %s, got %s", expected, actual)
}

func TestConstantCurve(t *testing.T) {
	require := require.New(t)

	// price 1.5
	c := mustCurve(t, Constant{Value: decimal.NewFromInt(15), Scale: 1}, NewDecimalPlaces(2, 8))

	requireDecimal(t, "1.5", c.SpotPrice(amount(123)))
	requireDecimal(t, "1.5", c.SpotPrice(amount(0)))

	// 45 supply needs 67.5 reserve
	reserve, err := c.ReserveForSupply(amount(4500))
	require.NoError(err)
	require.Equal(amount(6_750_000_000), reserve)

	// 15 reserve buys 10 supply
	supply, err := c.SupplyForReserve(amount(1_500_000_000))
	require.NoError(err)
	require.Equal(amount(1000), supply)
}

func TestConstantCurveOneToOne(t *testing.T) {
	require := require.New(t)

	c := mustCurve(t, Constant{Value: decimal.NewFromInt(10), Scale: 1}, NewDecimalPlaces(6, 6))
	requireDecimal(t, "1", c.SpotPrice(amount(0)))

	for _, v := range []uint64{0, 1, 5, 10, 5_000_000, 10_000_000, 123_456_789_012} {
		reserve, err := c.ReserveForSupply(amount(v))
		require.NoError(err)
		require.Equal(amount(v), reserve)

		supply, err := c.SupplyForReserve(amount(v))
		require.NoError(err)
		require.Equal(amount(v), supply)
	}
}

func TestLinearCurve(t *testing.T) {
	require := require.New(t)

	// slope 0.1
	c := mustCurve(t, Linear{Slope: decimal.NewFromInt(1), Scale: 1}, NewDecimalPlaces(2, 9))

	requireDecimal(t, "0", c.SpotPrice(amount(0)))
	requireDecimal(t, "0.1", c.SpotPrice(amount(100)))
	requireDecimal(t, "3", c.SpotPrice(amount(3000)))

	// 0.5 * 0.1 * 1^2 = 0.05
	reserve, err := c.ReserveForSupply(amount(100))
	require.NoError(err)
	require.Equal(amount(50_000_000), reserve)

	// 0.5 * 0.1 * 30^2 = 45
	reserve, err = c.ReserveForSupply(amount(3000))
	require.NoError(err)
	require.Equal(amount(45_000_000_000), reserve)

	supply, err := c.SupplyForReserve(amount(45_000_000_000))
	require.NoError(err)
	require.Equal(amount(3000), supply)

	supply, err = c.SupplyForReserve(amount(50_000_000))
	require.NoError(err)
	require.Equal(amount(100), supply)
}

func TestSquareRootCurve(t *testing.T) {
	require := require.New(t)

	// slope 0.35, power 0.5
	c := mustCurve(t, SquareRoot{Slope: decimal.NewFromInt(35), Power: decimal.RequireFromString("0.5"), Scale: 2}, NewDecimalPlaces(2, 8))

	requireDecimal(t, "0", c.SpotPrice(amount(0)))
	requireDecimal(t, "0.35", c.SpotPrice(amount(100)))
	requireDecimal(t, "0.7", c.SpotPrice(amount(400)))

	// 0.35 * 1^1.5 / 1.5 = 0.2333...
	reserve, err := c.ReserveForSupply(amount(100))
	require.NoError(err)
	require.Equal(amount(23_333_333), reserve)

	// 0.35 * 4^1.5 / 1.5 = 1.8666...
	reserve, err = c.ReserveForSupply(amount(400))
	require.NoError(err)
	require.Equal(amount(186_666_666), reserve)

	// both legs floor, so the inverse lands one unit short
	supply, err := c.SupplyForReserve(amount(186_666_666))
	require.NoError(err)
	require.Equal(amount(399), supply)

	supply, err = c.SupplyForReserve(amount(23_333_333))
	require.NoError(err)
	require.Equal(amount(99), supply)
}

func TestSquareRootCustomPower(t *testing.T) {
	require := require.New(t)

	c := mustCurve(t, SquareRoot{Slope: decimal.NewFromInt(1), Power: decimal.NewFromInt(2), Scale: 0}, NewDecimalPlaces(0, 6))

	// 1 * 3^2
	requireDecimal(t, "9", c.SpotPrice(amount(3)))

	// 1 * 3 * 3^2 / 1.5 = 18
	reserve, err := c.ReserveForSupply(amount(3))
	require.NoError(err)
	require.Equal(amount(18_000_000), reserve)

	price := c.SpotPrice(amount(4))
	requireDecimal(t, "16", price)

	// a fractional exponent other than 0.5 takes the general power path
	c = mustCurve(t, SquareRoot{Slope: decimal.NewFromInt(1), Power: decimal.RequireFromString("1.5"), Scale: 0}, NewDecimalPlaces(0, 6))
	price = c.SpotPrice(amount(4))
	require.True(price.Sub(decimal.NewFromInt(8)).Abs().LessThan(decimal.New(1, -10)), price.String())
}

func TestZeroSupplyBaseCase(t *testing.T) {
	require := require.New(t)

	places := NewDecimalPlaces(6, 6)
	for _, shape := range testShapes() {
		c := mustCurve(t, shape, places)

		reserve, err := c.ReserveForSupply(amount(0))
		require.NoError(err, shape.Type())
		require.True(reserve.IsZero(), shape.Type())

		supply, err := c.SupplyForReserve(amount(0))
		require.NoError(err, shape.Type())
		require.True(supply.IsZero(), shape.Type())

		if _, ok := shape.(Constant); ok {
			require.True(c.SpotPrice(amount(0)).IsPositive())
		} else {
			require.True(c.SpotPrice(amount(0)).IsZero(), shape.Type())
		}
	}
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		shape  Shape
		places DecimalPlaces
	}{
		{
			name:   "constant",
			shape:  Constant{Value: decimal.NewFromInt(15), Scale: 1},
			places: NewDecimalPlaces(6, 6),
		},
		{
			name:   "linear",
			shape:  Linear{Slope: decimal.NewFromInt(1), Scale: 1},
			places: NewDecimalPlaces(2, 9),
		},
		{
			name:   "square root",
			shape:  SquareRoot{Slope: decimal.NewFromInt(35), Power: decimal.RequireFromString("0.5"), Scale: 2},
			places: NewDecimalPlaces(2, 8),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			c := mustCurve(t, tt.shape, tt.places)

			check := func(s uint64) model.Amount {
				reserve, err := c.ReserveForSupply(amount(s))
				require.NoError(err)
				back, err := c.SupplyForReserve(reserve)
				require.NoError(err)

				require.False(back.Gt(amount(s)), "supply %d came back as %s", s, back)
				diff, err := amount(s).Sub(back)
				require.NoError(err)
				require.False(diff.Gt(amount(1)), "supply %d came back as %s", s, back)
				return back
			}

			prev := model.ZeroAmount()
			for s := uint64(0); s <= 500; s++ {
				back := check(s)
				require.False(back.Lt(prev), "not monotonic at %d", s)
				prev = back
			}

			for v := uint64(1000); v <= uint64(1e15); v *= 10 {
				check(v)
				check(v + 7)
			}
		})
	}
}

// Raw units of 18 and 30 places are far below one logical unit, so the
// conversions must stay exact at that depth. Supplies start where one raw
// supply unit costs at least one raw reserve unit.
func TestRoundTripAtHighPrecision(t *testing.T) {
	sqrt := SquareRoot{Slope: decimal.NewFromInt(35), Power: decimal.RequireFromString("0.5"), Scale: 2}
	tests := []struct {
		name     string
		shape    Shape
		places   DecimalPlaces
		from, to int64
	}{
		{"constant 18", Constant{Value: decimal.NewFromInt(15), Scale: 1}, NewDecimalPlaces(18, 18), 0, 27},
		{"linear 18", Linear{Slope: decimal.NewFromInt(1), Scale: 1}, NewDecimalPlaces(18, 18), 19, 27},
		{"square root 18", sqrt, NewDecimalPlaces(18, 18), 19, 27},
		{"square root 30", sqrt, NewDecimalPlaces(30, 30), 31, 35},
		{"square root 6/18", sqrt, NewDecimalPlaces(6, 18), 0, 19},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			c := mustCurve(t, tt.shape, tt.places)

			for e := tt.from; e <= tt.to; e++ {
				for _, delta := range []int64{0, 1, 7, 123_456_789} {
					s := bigAmount(t, new(big.Int).Add(pow10(e), big.NewInt(delta)))

					reserve, err := c.ReserveForSupply(s)
					require.NoError(err)
					back, err := c.SupplyForReserve(reserve)
					require.NoError(err)

					require.False(back.Gt(s), "supply %s came back as %s", s, back)
					diff, err := s.Sub(back)
					require.NoError(err)
					require.False(diff.Gt(amount(1)), "supply %s came back as %s", s, back)
				}
			}
		})
	}
}

func TestSquareRootReserveIsExactFloor(t *testing.T) {
	require := require.New(t)

	// k = 0.35 at 18/18: R is the floor of sqrt(4900 * s^3 / 9 / 10^22)
	c := mustCurve(t, SquareRoot{Slope: decimal.NewFromInt(35), Power: decimal.RequireFromString("0.5"), Scale: 2}, NewDecimalPlaces(18, 18))
	scale := new(big.Int).Mul(big.NewInt(9), pow10(22))

	for _, e := range []int64{0, 5, 18, 21, 24, 27} {
		s := new(big.Int).Add(pow10(e), big.NewInt(3))
		reserve, err := c.ReserveForSupply(bigAmount(t, s))
		require.NoError(err)

		target := new(big.Int).Exp(s, big.NewInt(3), nil)
		target.Mul(target, big.NewInt(4900))

		r := reserve.Big()
		low := new(big.Int).Mul(new(big.Int).Mul(r, r), scale)
		r1 := new(big.Int).Add(r, big.NewInt(1))
		high := new(big.Int).Mul(new(big.Int).Mul(r1, r1), scale)
		require.LessOrEqual(low.Cmp(target), 0, "reserve %s too high for supply %s", reserve, s)
		require.Equal(1, high.Cmp(target), "reserve %s too low for supply %s", reserve, s)
	}

	// 1e21 at 18/18 round trips within one raw unit
	s := bigAmount(t, pow10(21))
	reserve, err := c.ReserveForSupply(s)
	require.NoError(err)
	back, err := c.SupplyForReserve(reserve)
	require.NoError(err)
	diff, err := s.Sub(back)
	require.NoError(err)
	require.False(diff.Gt(amount(1)), diff.String())
}

func TestInverseIsExactFloor(t *testing.T) {
	require := require.New(t)

	// 1 raw reserve at 38 places against price 3: 10^38 / 3 / 10^38 supply
	c := mustCurve(t, Constant{Value: decimal.NewFromInt(3), Scale: 0}, NewDecimalPlaces(38, 38))
	supply, err := c.SupplyForReserve(bigAmount(t, pow10(38)))
	require.NoError(err)
	want := new(big.Int).Quo(pow10(38), big.NewInt(3))
	require.Zero(want.Cmp(supply.Big()), supply.String())

	// sqrt(2 * 2 / 1) = 2 exactly, and 3 reserve buys floor(sqrt(6)) at 30 places
	c = mustCurve(t, Linear{Slope: decimal.NewFromInt(1), Scale: 0}, NewDecimalPlaces(30, 30))
	supply, err = c.SupplyForReserve(bigAmount(t, new(big.Int).Mul(big.NewInt(2), pow10(30))))
	require.NoError(err)
	require.Zero(new(big.Int).Mul(big.NewInt(2), pow10(30)).Cmp(supply.Big()), supply.String())

	supply, err = c.SupplyForReserve(bigAmount(t, new(big.Int).Mul(big.NewInt(3), pow10(30))))
	require.NoError(err)
	want = new(big.Int).Sqrt(new(big.Int).Mul(big.NewInt(6), pow10(60)))
	require.Zero(want.Cmp(supply.Big()), supply.String())
}

func TestReserveOverflow(t *testing.T) {
	c := mustCurve(t, Constant{Value: decimal.NewFromInt(10), Scale: 0}, NewDecimalPlaces(0, 0))

	_, err := c.ReserveForSupply(model.MaxAmount())
	require.ErrorIs(t, err, model.ErrArithmeticOverflow)
}

func TestNewRejectsInvalidShapes(t *testing.T) {
	tests := []struct {
		name  string
		shape Shape
		err   error
	}{
		{"nil", nil, ErrInvalidShape},
		{"zero constant", Constant{Value: decimal.Zero}, ErrInvalidValue},
		{"negative slope", Linear{Slope: decimal.NewFromInt(-1)}, ErrInvalidSlope},
		{"zero power", SquareRoot{Slope: decimal.NewFromInt(1)}, ErrInvalidPower},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.shape, NewDecimalPlaces(6, 6))
			require.ErrorIs(t, err, tt.err)
		})
	}

	_, err := New(Constant{Value: decimal.NewFromInt(1)}, NewDecimalPlaces(MaxPlaces+1, 6))
	require.ErrorIs(t, err, ErrInvalidPlaces)
}

func TestParamsRoundTrip(t *testing.T) {
	require := require.New(t)

	for _, shape := range testShapes() {
		got, err := ParamsOf(shape).Shape()
		require.NoError(err)
		require.Equal(shape.Type(), got.Type())
		require.Equal(ParamsOf(shape), ParamsOf(got))
	}

	_, err := Params{Type: "exponential"}.Shape()
	require.ErrorIs(err, ErrInvalidShape)
}

func TestFloorCbrt(t *testing.T) {
	require := require.New(t)

	for n := int64(0); n <= 2000; n++ {
		r := floorCbrt(big.NewInt(n)).Int64()
		require.LessOrEqual(r*r*r, n)
		require.Greater((r+1)*(r+1)*(r+1), n)
	}

	huge := new(big.Int).Exp(big.NewInt(10), big.NewInt(60), nil)
	want := new(big.Int).Exp(big.NewInt(10), big.NewInt(20), nil)
	require.Zero(want.Cmp(floorCbrt(huge)))
}

func testShapes() []Shape {
	return []Shape{
		Constant{Value: decimal.NewFromInt(10), Scale: 1},
		Linear{Slope: decimal.NewFromInt(1), Scale: 1},
		SquareRoot{Slope: decimal.NewFromInt(35), Power: decimal.RequireFromString("0.5"), Scale: 2},
	}
}
