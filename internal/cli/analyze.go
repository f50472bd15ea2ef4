package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"example.com/finance-visualizer/backend/internal/ai"
	"example.com/finance-visualizer/backend/internal/analysis"
	"example.com/finance-visualizer/backend/internal/config"
	"example.com/finance-visualizer/backend/internal/handlers"
	"example.com/finance-visualizer/backend/internal/report"
	"example.com/finance-visualizer/backend/internal/transactions"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputCSV   = "csv"
)

type analyzeOptions struct {
	separator string
	output    string
	csvType   string
	insights  bool
}

type analyzeOutput struct {
	File     string
	Report   transactions.Report
	Analysis analysis.Result
	Insights string
}

type analyzeJSON struct {
	File     string                    `json:"file"`
	Report   handlers.ReportResponse   `json:"report"`
	Analysis handlers.AnalysisResponse `json:"analysis"`
	Insights string                    `json:"insights,omitempty"`
}

func newAnalyzeCmd() *cobra.Command {
	opts := analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze [csv-file]",
		Short: "Parse a transaction file and print the analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.separator, "separator", "s", "header", "Separator detection: header or sample")
	cmd.Flags().StringVarP(&opts.output, "output", "o", outputTable, "Output format: table, json or csv")
	cmd.Flags().StringVar(&opts.csvType, "csv", report.TypeMonthly, "CSV dataset for --output csv: monthly, categories or transactions")
	cmd.Flags().BoolVar(&opts.insights, "insights", false, "Request language-model insights from the configured AI provider")

	return cmd
}

func runAnalyze(ctx context.Context, stdout, stderr io.Writer, path string, opts analyzeOptions) error {
	detect, ok := transactions.DetectorByName(opts.separator)
	if !ok {
		return fmt.Errorf("unknown separator mode %q", opts.separator)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	txs, parseReport, err := transactions.NewParser(transactions.WithSeparatorDetector(detect)).ParseWithReport(string(raw))
	if err != nil {
		return err
	}
	if len(txs) == 0 {
		return fmt.Errorf("no valid transactions found in file")
	}

	result := analysis.Aggregate(txs)
	out := analyzeOutput{File: path, Report: parseReport, Analysis: result}

	if opts.insights {
		out.Insights = requestInsights(ctx, stderr, txs, result)
	}

	switch strings.ToLower(opts.output) {
	case outputJSON:
		encoder := json.NewEncoder(stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(analyzeJSON{
			File:     out.File,
			Report:   handlers.ToReportResponse(out.Report),
			Analysis: handlers.ToAnalysisResponse(out.Analysis),
			Insights: out.Insights,
		})
	case outputCSV:
		return writeCSV(stdout, opts.csvType, txs, result)
	case outputTable:
		return writeTable(stdout, out)
	default:
		return fmt.Errorf("unknown output format %q", opts.output)
	}
}

func requestInsights(ctx context.Context, stderr io.Writer, txs []transactions.Transaction, result analysis.Result) string {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "warning: %v\n", err)
		return ai.FallbackInsights(result)
	}

	client, err := ai.NewClient(ctx, cfg.AI)
	if err != nil {
		fmt.Fprintf(stderr, "warning: %v\n", err)
		return ai.FallbackInsights(result)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.AI.Timeout)
	defer cancel()

	text, _, _, err := ai.NewService(client).Insights(ctx, txs)
	if err != nil {
		fmt.Fprintf(stderr, "warning: insights unavailable: %v\n", err)
		return ai.FallbackInsights(result)
	}
	return text
}

func writeCSV(w io.Writer, csvType string, txs []transactions.Transaction, result analysis.Result) error {
	switch strings.ToLower(csvType) {
	case report.TypeMonthly:
		return report.WriteMonthlyCSV(w, ',', result)
	case report.TypeCategories:
		return report.WriteCategoriesCSV(w, ',', result)
	case report.TypeTransactions:
		return report.WriteTransactionsCSV(w, ',', txs)
	default:
		return fmt.Errorf("unknown csv dataset %q", csvType)
	}
}

func writeTable(w io.Writer, out analyzeOutput) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	result := out.Analysis

	fmt.Fprintf(tw, "File:\t%s\t\n", out.File)
	fmt.Fprintf(tw, "Transactions:\t%d\t\n", out.Report.Kept)
	fmt.Fprintf(tw, "Dropped rows:\t%d\t\n", out.Report.DroppedZero+out.Report.DroppedInvalidDate)
	fmt.Fprintf(tw, "Total income:\t%s\t\n", result.TotalIncome.StringFixed(2))
	fmt.Fprintf(tw, "Total expenses:\t%s\t\n", result.TotalExpenses.StringFixed(2))
	fmt.Fprintf(tw, "Net balance:\t%s\t\n", result.NetBalance.StringFixed(2))
	fmt.Fprintln(tw, "\t\t")

	fmt.Fprintln(tw, "Month\tIncome\tExpenses\tNet\t")
	for _, point := range result.IncomeExpenseData {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", point.Label, point.Income.StringFixed(2), point.Expense.StringFixed(2), point.Net().StringFixed(2))
	}
	fmt.Fprintln(tw, "\t\t")

	fmt.Fprintln(tw, "Category\tTotal\tShare\t")
	for i, category := range result.ExpenseCategoryData {
		fmt.Fprintf(tw, "%s\t%s\t%.1f%%\t\n", category.Category, category.Total.StringFixed(2), result.CategoryShare(i))
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	if out.Insights != "" {
		_, err := fmt.Fprintf(w, "\n%s\n", out.Insights)
		return err
	}
	return nil
}
