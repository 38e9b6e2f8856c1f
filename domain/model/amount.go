package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// AmountBits is the width of every token amount handled by the ledger.
const AmountBits = 128

var (
	ErrArithmeticOverflow  = errors.New("arithmetic overflow")
	ErrArithmeticUnderflow = errors.New("arithmetic underflow")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrDivisionByZero      = errors.New("division by zero")
)

// Amount is a raw, unsigned integer quantity of a token, bounded to 128 bits.
// All arithmetic is checked; the zero value is a valid zero amount.
type Amount struct {
	v uint256.Int
}

func NewAmount(v uint64) Amount {
	return Amount{v: *uint256.NewInt(v)}
}

func ZeroAmount() Amount {
	return Amount{}
}

// MaxAmount returns 2^128 - 1.
func MaxAmount() Amount {
	var a Amount
	a.v.Lsh(uint256.NewInt(1), AmountBits)
	a.v.Sub(&a.v, uint256.NewInt(1))
	return a
}

// AmountFromBig converts an arbitrary precision integer, rejecting negative values and values
// wider than 128 bits.
func AmountFromBig(b *big.Int) (Amount, error) {
	if b == nil {
		return Amount{}, ErrInvalidAmount
	}
	if b.Sign() < 0 {
		return Amount{}, ErrArithmeticUnderflow
	}
	if b.BitLen() > AmountBits {
		return Amount{}, ErrArithmeticOverflow
	}
	v, overflow := uint256.FromBig(b)
	if overflow {
		return Amount{}, ErrArithmeticOverflow
	}
	return Amount{v: *v}, nil
}

// ParseAmount reads a base-10 integer string.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return AmountFromBig(b)
}

func (a Amount) IsZero() bool {
	return a.v.IsZero()
}

func (a Amount) Cmp(b Amount) int {
	return a.v.Cmp(&b.v)
}

func (a Amount) Lt(b Amount) bool {
	return a.v.Lt(&b.v)
}

func (a Amount) Gt(b Amount) bool {
	return a.v.Gt(&b.v)
}

func (a Amount) Eq(b Amount) bool {
	return a.v.Eq(&b.v)
}

func (a Amount) Add(b Amount) (Amount, error) {
	var r Amount
	if _, overflow := r.v.AddOverflow(&a.v, &b.v); overflow || r.v.BitLen() > AmountBits {
		return Amount{}, ErrArithmeticOverflow
	}
	return r, nil
}

func (a Amount) Sub(b Amount) (Amount, error) {
	var r Amount
	if _, underflow := r.v.SubOverflow(&a.v, &b.v); underflow {
		return Amount{}, ErrArithmeticUnderflow
	}
	return r, nil
}

func (a Amount) Mul(b Amount) (Amount, error) {
	var r Amount
	if _, overflow := r.v.MulOverflow(&a.v, &b.v); overflow || r.v.BitLen() > AmountBits {
		return Amount{}, ErrArithmeticOverflow
	}
	return r, nil
}

// Quo returns the truncated quotient a / b.
func (a Amount) Quo(b Amount) (Amount, error) {
	if b.IsZero() {
		return Amount{}, ErrDivisionByZero
	}
	var r Amount
	r.v.Div(&a.v, &b.v)
	return r, nil
}

func (a Amount) Big() *big.Int {
	return a.v.ToBig()
}

func (a Amount) String() string {
	return a.v.ToBig().String()
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts both a quoted decimal string and a bare JSON number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Scan reads a Postgres numeric column.
func (a *Amount) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*a = Amount{}
		return nil
	case []byte:
		return a.scanString(string(v))
	case string:
		return a.scanString(v)
	case int64:
		if v < 0 {
			return ErrArithmeticUnderflow
		}
		*a = NewAmount(uint64(v))
		return nil
	default:
		return fmt.Errorf("%w: cannot scan %T", ErrInvalidAmount, src)
	}
}

func (a *Amount) scanString(s string) error {
	// numeric(39,0) may still come back as "123.0" from some drivers
	if i := strings.IndexByte(s, '.'); i >= 0 {
		if strings.Trim(s[i+1:], "0") != "" {
			return fmt.Errorf("%w: fractional value %q", ErrInvalidAmount, s)
		}
		s = s[:i]
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}
