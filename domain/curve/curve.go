// Package curve prices a bonding token. It converts between the spot price, the
// reserve backing a given supply (the integral of the spot price) and the supply
// a given reserve can back, for constant, linear and square-root curves.
//
// The engine is stateless and deterministic. All conversions back to raw
// integer units round down, so a ledger built on it never owes more reserve
// than it holds and never mints more supply than its reserve justifies.
package curve

import (
	"math/big"

	"curvebond/domain/model"

	"github.com/shopspring/decimal"
)

// Curve combines a shape with the decimal places of both tokens. It is
// immutable once built.
type Curve struct {
	shape  Shape
	places DecimalPlaces
}

func New(shape Shape, places DecimalPlaces) (*Curve, error) {
	if shape == nil {
		return nil, ErrInvalidShape
	}
	if err := shape.validate(); err != nil {
		return nil, err
	}
	if err := places.validate(); err != nil {
		return nil, err
	}
	return &Curve{shape: shape, places: places}, nil
}

func (c *Curve) Shape() Shape {
	return c.shape
}

func (c *Curve) Places() DecimalPlaces {
	return c.places
}

// SpotPrice is the marginal price of one supply unit, in reserve units, at the
// given raw supply.
func (c *Curve) SpotPrice(supply model.Amount) decimal.Decimal {
	x := c.places.FromSupply(supply)
	switch s := c.shape.(type) {
	case Constant:
		return coefficient(s.Value, s.Scale)
	case Linear:
		return coefficient(s.Slope, s.Scale).Mul(x)
	case SquareRoot:
		return coefficient(s.Slope, s.Scale).Mul(pow(x, s.Power))
	}
	return decimal.Zero
}

// ReserveForSupply returns the raw reserve needed to have minted exactly supply
// raw units. Constant, linear and square-root (power 0.5) curves are floored
// exactly at the reserve places.
func (c *Curve) ReserveForSupply(supply model.Amount) (model.Amount, error) {
	x := c.places.FromSupply(supply)
	var reserve decimal.Decimal
	switch s := c.shape.(type) {
	case Constant:
		reserve = x.Mul(coefficient(s.Value, s.Scale))
	case Linear:
		reserve = half.Mul(coefficient(s.Slope, s.Scale)).Mul(x).Mul(x)
	case SquareRoot:
		k := coefficient(s.Slope, s.Scale)
		if s.Power.Equal(half) {
			// k * x^1.5 / 1.5 is sqrt(4 * k^2 * x^3 / 9), taken as one integer root
			n := k.Mul(k).Mul(x).Mul(x).Mul(x).Mul(four).Shift(2 * int32(c.places.Reserve))
			return model.AmountFromBig(floorSqrt(floorQuo(n, nine)))
		}
		// the 1.5 divisor integrates x^0.5; it is kept for every power
		reserve = quo(k.Mul(x).Mul(pow(x, s.Power)), oneAndHalf)
	default:
		return model.Amount{}, ErrInvalidShape
	}
	return c.places.ToReserve(reserve)
}

// SupplyForReserve is the inverse of ReserveForSupply: the raw supply the given
// raw reserve can back. Each case is one exact integer division and root, so
// the result is the true floor at the supply places.
func (c *Curve) SupplyForReserve(reserve model.Amount) (model.Amount, error) {
	r := c.places.FromReserve(reserve)
	places := int32(c.places.Supply)
	var supply *big.Int
	switch s := c.shape.(type) {
	case Constant:
		supply = floorQuo(r.Shift(places), coefficient(s.Value, s.Scale))
	case Linear:
		// sqrt(2r / k)
		supply = floorSqrt(floorQuo(two.Mul(r).Shift(2*places), coefficient(s.Slope, s.Scale)))
	case SquareRoot:
		// (1.5r / k)^(2/3), the inverse of the power 0.5 integral
		k := coefficient(s.Slope, s.Scale)
		supply = floorCbrt(floorQuo(twoAndQuarter.Mul(r).Mul(r).Shift(3*places), k.Mul(k)))
	default:
		return model.Amount{}, ErrInvalidShape
	}
	return model.AmountFromBig(supply)
}

func coefficient(v decimal.Decimal, scale uint32) decimal.Decimal {
	return v.Shift(-int32(scale))
}
