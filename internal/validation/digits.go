// Package validation содержит функции валидации входных данных.
package validation

import (
	"unicode"

	"github.com/shopspring/decimal"
)

// TicketDigits задаёт длину номера лотерейного билета.
const TicketDigits = 6

// IsDigits проверяет, что строка состоит ровно из n десятичных цифр.
func IsDigits(s string, n int) bool {
	if n <= 0 || len(s) != n {
		return false
	}

	for i := 0; i < len(s); i++ {
		if !unicode.IsDigit(rune(s[i])) {
			return false
		}
	}

	return true
}

// IsTicketNumber проверяет корректность номера билета.
func IsTicketNumber(number string) bool {
	return IsDigits(number, TicketDigits)
}

// IsSearchPattern проверяет шаблон поиска: от одной до шести цифр.
func IsSearchPattern(pattern string) bool {
	if pattern == "" || len(pattern) > TicketDigits {
		return false
	}
	return IsDigits(pattern, len(pattern))
}

// IsMoneyAmount проверяет, что сумма положительна и имеет не более двух знаков после запятой.
func IsMoneyAmount(amount decimal.Decimal) bool {
	if !amount.IsPositive() {
		return false
	}
	return amount.Equal(amount.Round(2))
}
