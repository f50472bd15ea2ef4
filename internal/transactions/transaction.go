package transactions

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultDescription    = "N/A"
	CategoryIncome        = "Income"
	CategoryUncategorized = "Uncategorized"

	KindIncome  = "income"
	KindExpense = "expense"
)

// Transaction описывает одну операцию из загруженного файла.
// Ровно одно из полей Income/Expense строго положительно, второе равно нулю.
type Transaction struct {
	Date        time.Time
	Description string
	Income      decimal.Decimal
	Expense     decimal.Decimal
	Category    string
}

// IsIncome сообщает, является ли операция доходом.
func (t Transaction) IsIncome() bool {
	return t.Income.IsPositive()
}

// Amount возвращает положительную сумму операции.
func (t Transaction) Amount() decimal.Decimal {
	if t.IsIncome() {
		return t.Income
	}
	return t.Expense
}

// SignedAmount возвращает сумму со знаком: доход положительный, расход отрицательный.
func (t Transaction) SignedAmount() decimal.Decimal {
	if t.IsIncome() {
		return t.Income
	}
	return t.Expense.Neg()
}

// Kind возвращает тип операции: income или expense.
func (t Transaction) Kind() string {
	if t.IsIncome() {
		return KindIncome
	}
	return KindExpense
}
