package curve

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	TypeConstant   = "constant"
	TypeLinear     = "linear"
	TypeSquareRoot = "square_root"
)

var (
	ErrInvalidShape  = errors.New("invalid curve shape")
	ErrInvalidValue  = errors.New("curve value must be positive")
	ErrInvalidSlope  = errors.New("curve slope must be positive")
	ErrInvalidPower  = errors.New("curve power must be positive")
	ErrInvalidPlaces = errors.New("decimal places out of range")
)

// Shape is one of Constant, Linear or SquareRoot. The set is closed: only this
// package can add implementations.
type Shape interface {
	Type() string
	validate() error
}

// Constant prices every unit at Value * 10^-Scale.
type Constant struct {
	Value decimal.Decimal
	Scale uint32
}

// Linear prices at Slope * 10^-Scale * supply.
type Linear struct {
	Slope decimal.Decimal
	Scale uint32
}

// SquareRoot prices at Slope * 10^-Scale * supply^Power. Power is usually 0.5.
type SquareRoot struct {
	Slope decimal.Decimal
	Power decimal.Decimal
	Scale uint32
}

func (Constant) Type() string   { return TypeConstant }
func (Linear) Type() string     { return TypeLinear }
func (SquareRoot) Type() string { return TypeSquareRoot }

func (c Constant) validate() error {
	if !c.Value.IsPositive() {
		return ErrInvalidValue
	}
	return nil
}

func (l Linear) validate() error {
	if !l.Slope.IsPositive() {
		return ErrInvalidSlope
	}
	return nil
}

func (s SquareRoot) validate() error {
	if !s.Slope.IsPositive() {
		return ErrInvalidSlope
	}
	if !s.Power.IsPositive() {
		return ErrInvalidPower
	}
	return nil
}

// Params is the flat, serializable form of a Shape.
type Params struct {
	Type  string          `json:"type"`
	Value decimal.Decimal `json:"value"`
	Slope decimal.Decimal `json:"slope"`
	Power decimal.Decimal `json:"power"`
	Scale uint32          `json:"scale"`
}

// Shape builds and validates the shape described by p.
func (p Params) Shape() (Shape, error) {
	var shape Shape
	switch strings.ToLower(strings.TrimSpace(p.Type)) {
	case TypeConstant:
		shape = Constant{Value: p.Value, Scale: p.Scale}
	case TypeLinear:
		shape = Linear{Slope: p.Slope, Scale: p.Scale}
	case TypeSquareRoot, "squareroot", "sqrt":
		shape = SquareRoot{Slope: p.Slope, Power: p.Power, Scale: p.Scale}
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidShape, p.Type)
	}
	if err := shape.validate(); err != nil {
		return nil, err
	}
	return shape, nil
}

func ParamsOf(shape Shape) Params {
	switch s := shape.(type) {
	case Constant:
		return Params{Type: TypeConstant, Value: s.Value, Scale: s.Scale}
	case Linear:
		return Params{Type: TypeLinear, Slope: s.Slope, Scale: s.Scale}
	case SquareRoot:
		return Params{Type: TypeSquareRoot, Slope: s.Slope, Power: s.Power, Scale: s.Scale}
	}
	return Params{}
}
