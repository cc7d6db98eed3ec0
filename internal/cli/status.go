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

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pending and failed lab orders",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
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

	rows, err := db.QueryContext(ctx,
		`SELECT id, patient_id, status, retry_count, estimated_cost_cents
		 FROM lab_orders
		 WHERE status != 'sent'
		 ORDER BY created_at`)
	if err != nil {
		slog.Error("Failed to query lab orders", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = rows.Close()
	}()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "ORDER\tPATIENT\tSTATUS\tRETRIES\tEST. COST")

	for rows.Next() {
		var id, patientID, status string
		var retries int
		var costCents int64
		if err := rows.Scan(&id, &patientID, &status, &retries, &costCents); err != nil {
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d.%02d\n",
			id, patientID, status, retries, costCents/100, costCents%100)
	}
	_ = w.Flush()
}
