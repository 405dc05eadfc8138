package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/clearspend/reconciler/internal/analysis"
	bq "github.com/clearspend/reconciler/internal/bigquery"
	"github.com/clearspend/reconciler/internal/config"
	"github.com/clearspend/reconciler/internal/domain"
	infraBQ "github.com/clearspend/reconciler/internal/infra/bigquery"
	"github.com/clearspend/reconciler/internal/logger"
	"github.com/clearspend/reconciler/internal/reconcile"
	"github.com/clearspend/reconciler/internal/reports"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "reconcile":
		runReconcile(log)
	case "summary":
		runSummary(log)
	case "inspect":
		runInspect(log)
	case "report":
		runReport(log)
	case "seed":
		runSeed(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("ClearSpend Reconciler CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  reconcile  Run reconciliation for a user")
	fmt.Println("  summary    Show a user's budget summary")
	fmt.Println("  inspect    List a user's transactions with their classifications")
	fmt.Println("  report     Print an archived run report from its gs:// URI")
	fmt.Println("  seed       Insert transactions from a JSON file")
	fmt.Println("  help       Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func runReconcile(log zerolog.Logger) {
	fs := flag.NewFlagSet("reconcile", flag.ExitOnError)
	userID := fs.String("user-id", "", "User ID to reconcile")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Error: --user-id is required")
	}

	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	repo, err := infraBQ.NewBigQueryTransactionRepository(ctx, cfg.GCPProjectID, cfg.BQDataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create transaction repository")
	}
	defer repo.Close()

	var archiver reconcile.ReportArchiver
	if cfg.ReportsBucket != "" {
		gcsArchiver, err := reports.NewGCSArchiver(ctx, cfg.ReportsBucket)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create report archiver")
		}
		defer gcsArchiver.Close()
		archiver = gcsArchiver
	}

	engine := reconcile.NewEngine(repo, cfg.ReconcileConfig(), log)
	runner := reconcile.NewRunner(engine, reconcile.NewUserGuard(), repo, archiver, log)

	log.Info().Str("user_id", *userID).Msg("Starting reconciliation")

	result, err := runner.Run(ctx, *userID)
	if err != nil {
		log.Fatal().Err(err).Msg("Reconciliation failed")
	}

	fmt.Println("\n=== Reconciliation Result ===")
	printResult(result)
}

func runSummary(log zerolog.Logger) {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	userID := fs.String("user-id", "", "User ID to summarize")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Error: --user-id is required")
	}

	cfg := config.Load()
	ctx := logger.WithContext(context.Background(), log)

	repo, err := infraBQ.NewBigQueryTransactionRepository(ctx, cfg.GCPProjectID, cfg.BQDataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create transaction repository")
	}
	defer repo.Close()

	txs, err := repo.ListTransactionsByUser(ctx, *userID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list transactions")
	}

	summary := analysis.BuildSummary(*userID, txs)

	fmt.Println("\n=== Budget Summary ===")
	fmt.Printf("User:         %s\n", summary.UserID)
	fmt.Printf("Income:       %s\n", formatCents(summary.IncomeCents))
	fmt.Printf("Expenses:     %s\n", formatCents(summary.ExpenseCents))
	fmt.Printf("Net:          %s\n", formatCents(summary.NetCents))
	fmt.Printf("Transactions: %d (%d excluded from analysis)\n", summary.TransactionCount, summary.ExcludedCount)

	if len(summary.ByMonth) > 0 {
		fmt.Println("\nBy month:")
		for _, m := range summary.ByMonth {
			fmt.Printf("  %s  in %s / out %s\n", m.Month, formatCents(m.IncomeCents), formatCents(m.ExpenseCents))
		}
	}
}

func runInspect(log zerolog.Logger) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	userID := fs.String("user-id", "", "User ID to inspect")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Error: --user-id is required")
	}

	cfg := config.Load()
	ctx := logger.WithContext(context.Background(), log)

	repo, err := infraBQ.NewBigQueryTransactionRepository(ctx, cfg.GCPProjectID, cfg.BQDataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create transaction repository")
	}
	defer repo.Close()

	txs, err := repo.ListTransactionsByUser(ctx, *userID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list transactions")
	}

	fmt.Printf("\n=== Transactions (%d) ===\n", len(txs))
	for i, tx := range txs {
		direction := "out"
		if tx.EntryType == domain.EntryIncoming {
			direction = "in"
		}
		fmt.Printf("\n%d. %s\n", i+1, tx.DisplayText())
		fmt.Printf("   ID:     %s\n", tx.ID)
		fmt.Printf("   Date:   %s\n", tx.TransactionDate.Format("2006-01-02"))
		fmt.Printf("   Amount: %s %s\n", formatCents(tx.AmountCents), direction)
		fmt.Printf("   Type:   %s\n", tx.TransactionType)
		if tx.LinkedTransactionID != nil {
			fmt.Printf("   Linked: %s\n", *tx.LinkedTransactionID)
		}
		if tx.ExcludeFromAnalysis {
			fmt.Println("   Excluded from analysis")
		}
	}
	fmt.Println()
}

func runReport(log zerolog.Logger) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	uri := fs.String("uri", "", "gs:// URI of an archived run report")
	fs.Parse(os.Args[2:])

	if *uri == "" {
		log.Fatal().Msg("Error: --uri is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	report, err := reports.FetchRunReport(ctx, *uri)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to fetch run report")
	}

	fmt.Println("\n=== Run Report ===")
	fmt.Printf("Run:      %s\n", report.RunID)
	fmt.Printf("User:     %s\n", report.UserID)
	fmt.Printf("Started:  %s\n", report.StartedAt.Format(time.RFC3339))
	fmt.Printf("Finished: %s\n", report.FinishedAt.Format(time.RFC3339))
	fmt.Println()
	printResult(report.Result)
}

func runSeed(log zerolog.Logger) {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	file := fs.String("file", "", "JSON file with an array of transactions")
	fs.Parse(os.Args[2:])

	if *file == "" {
		log.Fatal().Msg("Error: --file is required")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read transactions file")
	}

	var txs []*domain.EnrichedTransaction
	if err := json.Unmarshal(data, &txs); err != nil {
		log.Fatal().Err(err).Msg("Failed to parse transactions file")
	}
	if len(txs) == 0 {
		log.Fatal().Msg("Transactions file is empty")
	}

	rows := make([]*bq.TransactionRow, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, bq.RowFromDomain(tx))
	}

	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	repo, err := infraBQ.NewBigQueryTransactionRepository(ctx, cfg.GCPProjectID, cfg.BQDataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create transaction repository")
	}
	defer repo.Close()

	if err := repo.InsertTransactions(ctx, rows); err != nil {
		log.Fatal().Err(err).Msg("Failed to insert transactions")
	}

	fmt.Printf("Inserted %d transactions\n", len(rows))
}

// formatCents formats a pence amount as pounds, e.g. 1500 -> "£15.00".
func formatCents(cents int64) string {
	return fmt.Sprintf("£%.2f", float64(cents)/100)
}

func printResult(result reconcile.Result) {
	fmt.Printf("Transfers detected:       %d\n", result.TransfersDetected)
	fmt.Printf("Refunds detected:         %d\n", result.RefundsDetected)
	fmt.Printf("Bounced payments:         %d\n", result.BouncedPaymentsDetected)
	fmt.Printf("Transactions updated:     %d\n", result.TransactionsUpdated)
	if result.UpdateFailures > 0 {
		fmt.Printf("Update failures:          %d\n", result.UpdateFailures)
	}
}
