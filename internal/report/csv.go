package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"example.com/finance-visualizer/backend/internal/analysis"
	"example.com/finance-visualizer/backend/internal/transactions"
)

const (
	TypeMonthly      = "monthly"
	TypeCategories   = "categories"
	TypeTransactions = "transactions"
)

const dateLayout = "2006-01-02"

// WriteMonthlyCSV выгружает помесячный ряд доходов и расходов.
func WriteMonthlyCSV(w io.Writer, comma rune, result analysis.Result) error {
	writer := newWriter(w, comma)

	if err := writer.Write([]string{"period", "label", "income", "expense", "net"}); err != nil {
		return err
	}

	for _, point := range result.IncomeExpenseData {
		record := []string{
			point.Period.String(),
			point.Label,
			point.Income.StringFixed(2),
			point.Expense.StringFixed(2),
			point.Net().StringFixed(2),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return flush(writer)
}

// WriteCategoriesCSV выгружает расходы по категориям с долей в процентах.
func WriteCategoriesCSV(w io.Writer, comma rune, result analysis.Result) error {
	writer := newWriter(w, comma)

	if err := writer.Write([]string{"category", "total", "share_percent"}); err != nil {
		return err
	}

	for i, category := range result.ExpenseCategoryData {
		record := []string{
			category.Category,
			category.Total.StringFixed(2),
			strconv.FormatFloat(result.CategoryShare(i), 'f', 1, 64),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return flush(writer)
}

// WriteTransactionsCSV выгружает нормализованные операции в формате, который снова принимает парсер.
func WriteTransactionsCSV(w io.Writer, comma rune, txs []transactions.Transaction) error {
	writer := newWriter(w, comma)

	if err := writer.Write([]string{"fecha", "descripcion", "ingreso", "gasto", "categoria"}); err != nil {
		return err
	}

	for _, tx := range txs {
		record := []string{
			tx.Date.Format(dateLayout),
			tx.Description,
			formatAmount(tx.Income.IsPositive(), tx.Income.StringFixed(2)),
			formatAmount(tx.Expense.IsPositive(), tx.Expense.StringFixed(2)),
			tx.Category,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return flush(writer)
}

func newWriter(w io.Writer, comma rune) *csv.Writer {
	writer := csv.NewWriter(w)
	if comma != 0 {
		writer.Comma = comma
	}
	return writer
}

func flush(writer *csv.Writer) error {
	writer.Flush()
	return writer.Error()
}

func formatAmount(positive bool, value string) string {
	if !positive {
		return ""
	}
	return value
}
