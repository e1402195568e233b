package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "List attendance records",
	Long: `List attendance records from the local database.

Examples:
  # All records
  face-attendance records

  # Records for one person
  face-attendance records --name "Jane Doe"

  # JSON output
  face-attendance records --json`,
	RunE: runRecords,
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show attendance counts per person",
	RunE:  runSummary,
}

func init() {
	rootCmd.AddCommand(recordsCmd)
	rootCmd.AddCommand(summaryCmd)

	recordsCmd.Flags().String("name", "", "Only show records for this person")
	recordsCmd.Flags().Bool("json", false, "Output as JSON")
	summaryCmd.Flags().Bool("json", false, "Output as JSON")
}

func openStore() (*attendance.Store, error) {
	cfg := config.Load()
	store, err := attendance.OpenStore(cfg.Attendance.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open attendance store: %w", err)
	}
	return store, nil
}

func runRecords(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	name := mustGetString(cmd, "name")
	ctx := context.Background()

	var records []attendance.Record
	if name != "" {
		records, err = store.ListByName(ctx, name)
	} else {
		records, err = store.List(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}

	if mustGetBool(cmd, "json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Println("No attendance records found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDATE\tTIME\tMODE")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", rec.Name, rec.Date, rec.Time, rec.Mode)
	}
	return w.Flush()
}

func runSummary(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	summary, err := store.Summary(context.Background())
	if err != nil {
		return fmt.Errorf("failed to summarize records: %w", err)
	}

	if mustGetBool(cmd, "json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	if len(summary) == 0 {
		fmt.Println("No attendance records found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCOUNT")
	for _, entry := range summary {
		fmt.Fprintf(w, "%s\t%d\n", entry.Name, entry.Count)
	}
	return w.Flush()
}
