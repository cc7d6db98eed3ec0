package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/clinicops/receivables/internal/core/config"
	"github.com/clinicops/receivables/internal/infra/storage/postgres"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger <patient-id> <budget-id>",
	Short: "Show the payment ledger for a patient's budget",
	Args:  cobra.ExactArgs(2),
	Run:   runLedger,
}

func init() {
	rootCmd.AddCommand(ledgerCmd)
}

func runLedger(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	repo := postgres.NewLedgerRepo(db)
	patientID, budgetID := args[0], args[1]

	payments, err := repo.ListByBudget(ctx, patientID, budgetID)
	if err != nil {
		slog.Error("Failed to list payments", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "PAYMENT\tAMOUNT\tMETHOD\tSTATUS\tPAID AT")

	for _, p := range payments {
		_, _ = fmt.Fprintf(w, "%s\t%d.%02d\t%s\t%s\t%s\n",
			p.ID, p.AmountCents/100, p.AmountCents%100,
			p.Method, p.Status, p.PaidAt.Format("2006-01-02 15:04"))
	}
	_ = w.Flush()

	total, err := repo.PaidTotal(ctx, patientID, budgetID)
	if err != nil {
		slog.Error("Failed to sum payments", "error", err)
		os.Exit(1)
	}
	fmt.Printf("\nSettled total: %d.%02d\n", total/100, total%100)
}
