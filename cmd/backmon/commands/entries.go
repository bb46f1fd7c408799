package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/backmon-io/backmon/internal/cli/output"
	"github.com/backmon-io/backmon/pkg/catalog/models"
)

var (
	entriesOutput string
	entriesJobID  uint
	entriesLimit  int
)

var entriesCmd = &cobra.Command{
	Use:   "entries",
	Short: "Inspect catalogue entries",
	Long: `Inspect the append-only catalogue of backup cycle decisions.

Each entry is one immutable decision the scanner made for a job cycle:
SUCCESS, FAILED_* or MISSING.`,
}

var entriesListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List recent entries",
	RunE:    runEntriesList,
}

func init() {
	entriesListCmd.Flags().StringVarP(&entriesOutput, "output", "o", "table", "Output format (table|json|yaml)")
	entriesListCmd.Flags().UintVar(&entriesJobID, "job", 0, "Only entries for this job ID")
	entriesListCmd.Flags().IntVar(&entriesLimit, "limit", 50, "Maximum number of entries")

	entriesCmd.AddCommand(entriesListCmd)
}

func runEntriesList(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(entriesOutput)
	if err != nil {
		return err
	}

	catalogStore, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = catalogStore.Close() }()

	ctx := context.Background()
	entries, err := listEntries(ctx, catalogStore)
	if err != nil {
		return fmt.Errorf("failed to list entries: %w", err)
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, entries)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, entries)
	}

	if len(entries) == 0 {
		fmt.Println("No entries found")
		return nil
	}

	table := output.NewTableData("ID", "JOB", "TIMESTAMP", "STATUS", "AGENT", "REPORT", "MESSAGE")
	for _, e := range entries {
		report := e.OperationLogFileName
		if report == "" {
			report = "-"
		}
		msg := e.Message
		if len(msg) > 60 {
			msg = msg[:57] + "..."
		}
		table.AddRow(
			strconv.FormatUint(uint64(e.ID), 10),
			strconv.FormatUint(uint64(e.ExpectedJobID), 10),
			e.Timestamp.UTC().Format(time.RFC3339),
			string(e.Status),
			e.AgentID,
			report,
			msg,
		)
	}
	return output.PrintTable(os.Stdout, table)
}

type entryLister interface {
	ListEntries(ctx context.Context, jobID uint, limit int) ([]*models.BackupEntry, error)
	ListAllEntries(ctx context.Context, limit int) ([]*models.BackupEntry, error)
}

func listEntries(ctx context.Context, s entryLister) ([]*models.BackupEntry, error) {
	if entriesJobID != 0 {
		return s.ListEntries(ctx, entriesJobID, entriesLimit)
	}
	return s.ListAllEntries(ctx, entriesLimit)
}
