package analysis

import (
	"sort"

	"github.com/shopspring/decimal"

	"example.com/finance-visualizer/backend/internal/transactions"
)

// MonthlyPoint содержит доходы и расходы за один календарный месяц.
type MonthlyPoint struct {
	Period  Period
	Label   string
	Income  decimal.Decimal
	Expense decimal.Decimal
}

// Net возвращает разницу доходов и расходов за месяц.
func (p MonthlyPoint) Net() decimal.Decimal {
	return p.Income.Sub(p.Expense)
}

// CategoryTotal содержит сумму расходов по одной категории.
type CategoryTotal struct {
	Category string
	Total    decimal.Decimal
}

// Result представляет неизменяемый снимок анализа загруженного файла.
type Result struct {
	TotalIncome         decimal.Decimal
	TotalExpenses       decimal.Decimal
	NetBalance          decimal.Decimal
	IncomeExpenseData   []MonthlyPoint
	ExpenseCategoryData []CategoryTotal
}

// Aggregate считает итоги, помесячный ряд и разбивку расходов по категориям.
// Функция тотальна: пустой вход дает нулевые итоги и пустые ряды.
func Aggregate(txs []transactions.Transaction) Result {
	totalIncome := decimal.Zero
	totalExpenses := decimal.Zero

	months := make(map[Period]*MonthlyPoint)
	categories := make(map[string]int)
	categoryData := make([]CategoryTotal, 0)

	for _, tx := range txs {
		totalIncome = totalIncome.Add(tx.Income)
		totalExpenses = totalExpenses.Add(tx.Expense)

		if tx.Expense.IsPositive() {
			index, ok := categories[tx.Category]
			if !ok {
				categories[tx.Category] = len(categoryData)
				categoryData = append(categoryData, CategoryTotal{Category: tx.Category, Total: tx.Expense})
			} else {
				categoryData[index].Total = categoryData[index].Total.Add(tx.Expense)
			}
		}

		period := PeriodOf(tx.Date)
		point, ok := months[period]
		if !ok {
			point = &MonthlyPoint{Period: period, Label: period.Label(), Income: decimal.Zero, Expense: decimal.Zero}
			months[period] = point
		}
		point.Income = point.Income.Add(tx.Income)
		point.Expense = point.Expense.Add(tx.Expense)
	}

	monthly := make([]MonthlyPoint, 0, len(months))
	for _, point := range months {
		monthly = append(monthly, *point)
	}
	sort.Slice(monthly, func(i, j int) bool {
		return monthly[i].Period.Before(monthly[j].Period)
	})

	sort.SliceStable(categoryData, func(i, j int) bool {
		return categoryData[i].Total.GreaterThan(categoryData[j].Total)
	})

	return Result{
		TotalIncome:         totalIncome,
		TotalExpenses:       totalExpenses,
		NetBalance:          totalIncome.Sub(totalExpenses),
		IncomeExpenseData:   monthly,
		ExpenseCategoryData: categoryData,
	}
}

// CategoryShare возвращает долю категории в общих расходах, в процентах.
func (r Result) CategoryShare(index int) float64 {
	if index < 0 || index >= len(r.ExpenseCategoryData) || !r.TotalExpenses.IsPositive() {
		return 0
	}

	share := r.ExpenseCategoryData[index].Total.Div(r.TotalExpenses).Mul(decimal.NewFromInt(100))
	return share.Round(1).InexactFloat64()
}

// TopCategory возвращает категорию с наибольшими расходами.
func (r Result) TopCategory() (CategoryTotal, bool) {
	if len(r.ExpenseCategoryData) == 0 {
		return CategoryTotal{}, false
	}
	return r.ExpenseCategoryData[0], true
}
