package util

import (
	"fmt"
	"math/big"
	"strings"

	"curvebond/domain/model"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// HumanAmount renders a raw amount with its decimal places applied and the
// integer part grouped by thousands, e.g. 1234567890 with 6 places is
// "1,234.56789".
func HumanAmount(a model.Amount, places uint32, unit string) string {
	d := decimal.NewFromBigInt(a.Big(), -int32(places))
	return withUnit(HumanDecimal(d), unit)
}

// HumanDecimal groups the integer part of d by thousands and keeps every
// fractional digit.
func HumanDecimal(d decimal.Decimal) string {
	str := d.String()
	sign := ""
	if strings.HasPrefix(str, "-") {
		sign, str = "-", str[1:]
	}
	intPart, fracPart, _ := strings.Cut(str, ".")

	grouped := intPart
	if whole, ok := new(big.Int).SetString(intPart, 10); ok {
		grouped = humanize.BigComma(whole)
	}
	if fracPart == "" {
		return sign + grouped
	}
	return sign + grouped + "." + fracPart
}

func RawString(a model.Amount, unit string) string {
	return withUnit(humanize.BigComma(a.Big()), unit)
}

func withUnit(s, unit string) string {
	if unit == "" {
		return s
	}
	return fmt.Sprintf("%v %v", s, unit)
}
