package transactions

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	columnDate        = "fecha"
	columnIncome      = "ingreso"
	columnExpense     = "gasto"
	columnDescription = "descripción"
	columnDescPlain   = "descripcion"
	columnCategory    = "categoría"
	columnCatPlain    = "categoria"

	byteOrderMark = "\ufeff"
)

var requiredColumns = []string{columnDate, columnIncome, columnExpense}

// Report описывает, что парсер сделал со строками файла.
type Report struct {
	Separator          rune
	Columns            []string
	Lines              int
	Kept               int
	DroppedZero        int
	DroppedInvalidDate int
	Split              int
}

type Parser struct {
	detect  SeparatorDetector
	layouts []string
}

type Option func(*Parser)

// WithSeparatorDetector подменяет шаг определения разделителя.
func WithSeparatorDetector(detect SeparatorDetector) Option {
	return func(p *Parser) {
		if detect != nil {
			p.detect = detect
		}
	}
}

// WithDateLayouts задает форматы дат вместо DefaultDateLayouts.
func WithDateLayouts(layouts ...string) Option {
	return func(p *Parser) {
		if len(layouts) > 0 {
			p.layouts = layouts
		}
	}
}

// NewParser создает парсер с детектором по заголовку и стандартными форматами дат.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		detect:  DetectFromHeader,
		layouts: DefaultDateLayouts,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse разбирает текст парсером по умолчанию.
func Parse(raw string) ([]Transaction, error) {
	txs, _, err := NewParser().ParseWithReport(raw)
	return txs, err
}

// Parse разбирает текст и возвращает операции в порядке файла.
func (p *Parser) Parse(raw string) ([]Transaction, error) {
	txs, _, err := p.ParseWithReport(raw)
	return txs, err
}

type columns struct {
	date        int
	income      int
	expense     int
	description int
	category    int
}

// ParseWithReport разбирает текст и дополнительно возвращает статистику по строкам.
// Пустой результат не является ошибкой: решение принимает вызывающий код.
func (p *Parser) ParseWithReport(raw string) ([]Transaction, Report, error) {
	lines := splitLines(raw)
	if len(lines) < 2 {
		return nil, Report{}, &EmptyInputError{Lines: len(lines)}
	}

	separator := p.detect(lines)
	header := splitFields(lines[0], separator)
	for i, field := range header {
		header[i] = strings.ToLower(field)
	}

	report := Report{Separator: separator, Columns: header}

	cols, missing := resolveColumns(header)
	if len(missing) > 0 {
		return nil, report, &MissingColumnsError{Missing: missing, Found: header}
	}

	out := make([]Transaction, 0, len(lines)-1)
	for _, line := range lines[1:] {
		report.Lines++
		values := splitFields(line, separator)

		income := nonNegative(ParseAmount(cell(values, cols.income)))
		expense := nonNegative(ParseAmount(cell(values, cols.expense)))
		if !income.IsPositive() && !expense.IsPositive() {
			report.DroppedZero++
			continue
		}

		date, ok := ParseDate(cell(values, cols.date), p.layouts)
		if !ok {
			report.DroppedInvalidDate++
			continue
		}

		description := cell(values, cols.description)
		if description == "" {
			description = DefaultDescription
		}

		if income.IsPositive() {
			out = append(out, Transaction{
				Date:        date,
				Description: description,
				Income:      income,
				Expense:     decimal.Zero,
				Category:    CategoryIncome,
			})
		}

		if expense.IsPositive() {
			category := cell(values, cols.category)
			if category == "" {
				category = CategoryUncategorized
			}
			out = append(out, Transaction{
				Date:        date,
				Description: description,
				Income:      decimal.Zero,
				Expense:     expense,
				Category:    category,
			})
		}

		if income.IsPositive() && expense.IsPositive() {
			report.Split++
		}
	}

	report.Kept = len(out)
	return out, report, nil
}

func splitLines(raw string) []string {
	raw = strings.TrimPrefix(raw, byteOrderMark)
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")

	lines := make([]string, 0)
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		lines = append(lines, trimmed)
	}
	return lines
}

func splitFields(line string, separator rune) []string {
	parts := strings.Split(line, string(separator))
	for i, part := range parts {
		parts[i] = cleanValue(part)
	}
	return parts
}

func cleanValue(value string) string {
	value = strings.TrimSpace(value)
	value = strings.Trim(value, `"`)
	return strings.TrimSpace(value)
}

func resolveColumns(header []string) (columns, []string) {
	cols := columns{
		date:        indexOf(header, columnDate),
		income:      indexOf(header, columnIncome),
		expense:     indexOf(header, columnExpense),
		description: indexOf(header, columnDescription, columnDescPlain),
		category:    indexOf(header, columnCategory, columnCatPlain),
	}

	missing := make([]string, 0)
	for i, index := range []int{cols.date, cols.income, cols.expense} {
		if index < 0 {
			missing = append(missing, requiredColumns[i])
		}
	}

	return cols, missing
}

func indexOf(header []string, names ...string) int {
	for _, name := range names {
		for i, field := range header {
			if field == name {
				return i
			}
		}
	}
	return -1
}

func cell(values []string, index int) string {
	if index < 0 || index >= len(values) {
		return ""
	}
	return values[index]
}
