// Package money holds the fixed-point helpers used for every stored amount.
// Amounts are shopspring decimals rounded to cents, half away from zero.
package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

const Places = 2

var ErrInvalidAmount = errors.New("invalid amount")

// Round2 rounds v to cents.
func Round2(v decimal.Decimal) decimal.Decimal {
	return v.Round(Places)
}

func Parse(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return Round2(value), nil
}

func MustParse(raw string) decimal.Decimal {
	value, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return value
}

// SplitEvenly divides total into n equal shares, each rounded to cents.
func SplitEvenly(total decimal.Decimal, n int) decimal.Decimal {
	if n <= 0 {
		return decimal.Zero
	}
	return Round2(total.Div(decimal.NewFromInt(int64(n))))
}

func Format(v decimal.Decimal) string {
	return Round2(v).StringFixed(Places)
}
