package curve

import (
	"curvebond/domain/model"

	"github.com/shopspring/decimal"
)

// MaxPlaces bounds the fractional digits of either token.
const MaxPlaces = 38

// DecimalPlaces holds how many fractional digits the supply and reserve tokens
// use. It converts raw integer amounts to logical decimal quantities and back.
type DecimalPlaces struct {
	Supply  uint32 `json:"supply"`
	Reserve uint32 `json:"reserve"`
}

func NewDecimalPlaces(supply, reserve uint32) DecimalPlaces {
	return DecimalPlaces{Supply: supply, Reserve: reserve}
}

func (p DecimalPlaces) validate() error {
	if p.Supply > MaxPlaces || p.Reserve > MaxPlaces {
		return ErrInvalidPlaces
	}
	return nil
}

func (p DecimalPlaces) FromSupply(a model.Amount) decimal.Decimal {
	return decimal.NewFromBigInt(a.Big(), -int32(p.Supply))
}

func (p DecimalPlaces) FromReserve(a model.Amount) decimal.Decimal {
	return decimal.NewFromBigInt(a.Big(), -int32(p.Reserve))
}

// ToReserve floors a logical reserve quantity to raw reserve units.
func (p DecimalPlaces) ToReserve(d decimal.Decimal) (model.Amount, error) {
	return toRaw(d, p.Reserve)
}

func toRaw(d decimal.Decimal, places uint32) (model.Amount, error) {
	if d.Sign() < 0 {
		return model.Amount{}, model.ErrArithmeticUnderflow
	}
	return model.AmountFromBig(d.Shift(int32(places)).Floor().BigInt())
}
