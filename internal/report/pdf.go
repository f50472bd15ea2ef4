package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"

	"example.com/finance-visualizer/backend/internal/analysis"
)

// BuildPDF собирает PDF-отчет: итоги, помесячный ряд, категории и текст AI-анализа.
func BuildPDF(fileName string, result analysis.Result, insights string, generatedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetTitle(tr("Visualizador de Finanzas"), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, tr("Visualizador de Finanzas"))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, tr(fmt.Sprintf("Archivo: %s", fileName)))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Generado: %s", generatedAt.UTC().Format("2006-01-02 15:04 MST")))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, "Resumen")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(60, 7, "Ingresos totales")
	pdf.Cell(40, 7, result.TotalIncome.StringFixed(2))
	pdf.Ln(6)
	pdf.Cell(60, 7, "Gastos totales")
	pdf.Cell(40, 7, result.TotalExpenses.StringFixed(2))
	pdf.Ln(6)
	pdf.Cell(60, 7, "Balance neto")
	pdf.Cell(40, 7, result.NetBalance.StringFixed(2))
	pdf.Ln(10)

	if len(result.IncomeExpenseData) > 0 {
		pdf.SetFont("Helvetica", "B", 13)
		pdf.Cell(0, 8, "Ingresos vs. gastos por mes")
		pdf.Ln(8)

		pdf.SetFont("Helvetica", "B", 11)
		pdf.Cell(40, 7, "Mes")
		pdf.Cell(40, 7, "Ingresos")
		pdf.Cell(40, 7, "Gastos")
		pdf.Cell(40, 7, "Neto")
		pdf.Ln(7)

		pdf.SetFont("Helvetica", "", 11)
		for _, point := range result.IncomeExpenseData {
			pdf.Cell(40, 7, point.Label)
			pdf.Cell(40, 7, point.Income.StringFixed(2))
			pdf.Cell(40, 7, point.Expense.StringFixed(2))
			pdf.Cell(40, 7, point.Net().StringFixed(2))
			pdf.Ln(7)
		}
		pdf.Ln(4)
	}

	if len(result.ExpenseCategoryData) > 0 {
		pdf.SetFont("Helvetica", "B", 13)
		pdf.Cell(0, 8, tr("Gastos por categoría"))
		pdf.Ln(8)

		pdf.SetFont("Helvetica", "B", 11)
		pdf.Cell(70, 7, tr("Categoría"))
		pdf.Cell(50, 7, "Total")
		pdf.Cell(30, 7, "%")
		pdf.Ln(7)

		pdf.SetFont("Helvetica", "", 11)
		for i, category := range result.ExpenseCategoryData {
			pdf.Cell(70, 7, tr(category.Category))
			pdf.Cell(50, 7, category.Total.StringFixed(2))
			pdf.Cell(30, 7, fmt.Sprintf("%.1f%%", result.CategoryShare(i)))
			pdf.Ln(7)
		}
		pdf.Ln(4)
	}

	if text := strings.TrimSpace(insights); text != "" {
		pdf.SetFont("Helvetica", "B", 13)
		pdf.Cell(0, 8, "Insights")
		pdf.Ln(8)

		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, tr(plainMarkdown(text)), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// plainMarkdown убирает разметку, которую PDF не отображает.
func plainMarkdown(text string) string {
	replacer := strings.NewReplacer("**", "", "__", "", "`", "")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " ")
		trimmed = strings.TrimLeft(trimmed, "#")
		if strings.HasPrefix(trimmed, "* ") || strings.HasPrefix(trimmed, "- ") {
			trimmed = "• " + trimmed[2:]
		}
		lines[i] = replacer.Replace(strings.TrimSpace(trimmed))
	}
	return strings.Join(lines, "\n")
}
