package transactions

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var amountPrefix = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)`)

// ParseAmount разбирает денежную ячейку. Все символы, кроме цифр, знака, запятой и точки,
// отбрасываются; первая запятая считается десятичным разделителем. Разбирается самый длинный
// числовой префикс, поэтому "1.234,56" дает 1.234. Пустое или некорректное значение дает 0.
func ParseAmount(value string) decimal.Decimal {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9':
			return r
		case r == '+', r == '-', r == ',', r == '.':
			return r
		default:
			return -1
		}
	}, value)
	if cleaned == "" {
		return decimal.Zero
	}

	cleaned = strings.Replace(cleaned, ",", ".", 1)
	match := amountPrefix.FindString(cleaned)
	if match == "" {
		return decimal.Zero
	}

	negative := strings.HasPrefix(match, "-")
	number := strings.TrimLeft(match, "+-")
	number = strings.TrimSuffix(number, ".")
	if strings.HasPrefix(number, ".") {
		number = "0" + number
	}

	amount, err := decimal.NewFromString(number)
	if err != nil {
		return decimal.Zero
	}
	if negative {
		return amount.Neg()
	}
	return amount
}

func nonNegative(value decimal.Decimal) decimal.Decimal {
	if value.IsNegative() {
		return decimal.Zero
	}
	return value
}
