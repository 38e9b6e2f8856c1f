package domain

import (
	"encoding/json"

	"curvebond/domain/curve"
)

type Memorable interface {
	ToJson() string
	FromJson(jstr string) error
}

type Memo struct {
	Key  string `json:"key"`
	Memo string `json:"memo"`
}

// CurveMemo pins the curve a ledger was instantiated with. The curve of a
// running ledger never changes, so a later start with different parameters
// must be refused.
type CurveMemo struct {
	Params       curve.Params        `json:"params"`
	Places       curve.DecimalPlaces `json:"places"`
	ReserveDenom string              `json:"reserve_denom"`
}

func NewCurveMemo(c *curve.Curve, reserveDenom string) *CurveMemo {
	return &CurveMemo{
		Params:       curve.ParamsOf(c.Shape()),
		Places:       c.Places(),
		ReserveDenom: reserveDenom,
	}
}

func (obj *CurveMemo) ToJson() string {
	jstr, err := json.Marshal(obj)
	if err != nil {
		return err.Error()
	}
	return string(jstr)
}

func (obj *CurveMemo) FromJson(jstr string) error {
	err := json.Unmarshal([]byte(jstr), obj)
	return err
}

// Matches compares numerically, so "0.35" and "0.350" are the same slope.
func (obj *CurveMemo) Matches(other *CurveMemo) bool {
	a, b := obj.Params, other.Params
	return a.Type == b.Type &&
		a.Value.Equal(b.Value) &&
		a.Slope.Equal(b.Slope) &&
		a.Power.Equal(b.Power) &&
		a.Scale == b.Scale &&
		obj.Places == other.Places &&
		obj.ReserveDenom == other.ReserveDenom
}
