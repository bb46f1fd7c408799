package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/backmon-io/backmon/internal/cli/output"
	"github.com/backmon-io/backmon/pkg/catalog/models"
	"github.com/backmon-io/backmon/pkg/config"
)

var (
	jobsOutput   string
	jobsSeedFile string
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage expected backup jobs",
	Long: `Inspect and seed the catalogue of expected backup jobs.

These commands talk to the catalogue database directly and do not
require a running server.`,
}

var jobsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List expected jobs",
	RunE:    runJobsList,
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one expected job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsShow,
}

var jobsSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed expected jobs from a JSON mapping file",
	Long: `Load expected jobs into the catalogue from a JSON mapping file.

The file maps site keys to job definitions:

  {
    "ACME_SPRINGFIELD_NORTH_END_2025": [
      {
        "database_name": "acme_main",
        "expected_hour_utc": 3,
        "expected_minute_utc": 30,
        "expected_frequency": "daily",
        "days_of_week": "Mo,Tu,We,Th,Fr",
        "final_storage_template": ""
      }
    ]
  }

The key is <COMPANY>_<CITY>_<NEIGHBORHOOD>_<YEAR>. The neighborhood may
itself contain underscores; the year is always the final token.

Definitions without a days_of_week list inherit the configured
scanner.expected_days_of_week.

Seeding is idempotent: jobs that already exist are skipped and
reported, never modified.`,
	RunE: runJobsSeed,
}

func init() {
	jobsListCmd.Flags().StringVarP(&jobsOutput, "output", "o", "table", "Output format (table|json|yaml)")
	jobsShowCmd.Flags().StringVarP(&jobsOutput, "output", "o", "yaml", "Output format (json|yaml)")
	jobsSeedCmd.Flags().StringVar(&jobsSeedFile, "file", "", "Path to the seed JSON file (required)")
	_ = jobsSeedCmd.MarkFlagRequired("file")

	jobsCmd.AddCommand(jobsListCmd, jobsShowCmd, jobsSeedCmd)
}

func runJobsList(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(jobsOutput)
	if err != nil {
		return err
	}

	catalogStore, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = catalogStore.Close() }()

	jobs, err := catalogStore.ListJobs(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, jobs)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, jobs)
	}

	if len(jobs) == 0 {
		fmt.Println("No expected jobs found")
		return nil
	}

	table := output.NewTableData("ID", "AGENT", "DATABASE", "YEAR", "ANCHOR", "FREQ", "STATUS", "ACTIVE")
	for _, j := range jobs {
		active := "yes"
		if !j.IsActive {
			active = "no"
		}
		table.AddRow(
			strconv.FormatUint(uint64(j.ID), 10),
			j.AgentID().String(),
			j.DatabaseName,
			strconv.Itoa(j.Year),
			fmt.Sprintf("%02d:%02d", j.ExpectedHourUTC, j.ExpectedMinuteUTC),
			string(j.Frequency),
			string(j.CurrentStatus),
			active,
		)
	}
	return output.PrintTable(os.Stdout, table)
}

func runJobsShow(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(jobsOutput)
	if err != nil {
		return err
	}

	id, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid job id %q", args[0])
	}

	catalogStore, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = catalogStore.Close() }()

	job, err := catalogStore.GetJob(context.Background(), uint(id))
	if err != nil {
		if errors.Is(err, models.ErrJobNotFound) {
			return fmt.Errorf("job %d not found", id)
		}
		return fmt.Errorf("failed to get job: %w", err)
	}

	if format == output.FormatJSON {
		return output.PrintJSON(os.Stdout, job)
	}
	return output.PrintYAML(os.Stdout, job)
}

// seedJob is one job definition in the seed file.
type seedJob struct {
	DatabaseName         string `json:"database_name"`
	ExpectedHourUTC      int    `json:"expected_hour_utc"`
	ExpectedMinuteUTC    int    `json:"expected_minute_utc"`
	ExpectedFrequency    string `json:"expected_frequency,omitempty"`
	DaysOfWeek           string `json:"days_of_week,omitempty"`
	FinalStorageTemplate string `json:"final_storage_template,omitempty"`
}

func runJobsSeed(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(jobsSeedFile)
	if err != nil {
		return fmt.Errorf("failed to read seed file: %w", err)
	}

	var mapping map[string][]seedJob
	if err := json.Unmarshal(data, &mapping); err != nil {
		return fmt.Errorf("invalid seed file: %w", err)
	}

	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	catalogStore, err := openStoreFrom(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = catalogStore.Close() }()

	ctx := context.Background()
	var created, skipped, failed int

	for key, defs := range mapping {
		company, city, neighborhood, year, err := parseSeedKey(key)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skipping key %q: %v\n", key, err)
			failed += len(defs)
			continue
		}

		for _, def := range defs {
			job := seedJobModel(company, city, neighborhood, year, def, cfg.Scanner.ExpectedDaysOfWeek)

			_, err := catalogStore.CreateJob(ctx, job)
			switch {
			case err == nil:
				created++
			case errors.Is(err, models.ErrDuplicateJob):
				skipped++
				fmt.Printf("exists, skipped: %s/%s (%04d)\n", key, def.DatabaseName, year)
			default:
				failed++
				fmt.Fprintf(os.Stderr, "failed: %s/%s: %v\n", key, def.DatabaseName, err)
			}
		}
	}

	fmt.Printf("\nSeed complete: %d created, %d skipped, %d failed\n", created, skipped, failed)
	if failed > 0 {
		return fmt.Errorf("%d job(s) failed to seed", failed)
	}
	return nil
}

// seedJobModel builds the catalogue job for one seed definition.
// Definitions without their own days list inherit defaultDays.
func seedJobModel(company, city, neighborhood string, year int, def seedJob, defaultDays string) *models.ExpectedJob {
	days := def.DaysOfWeek
	if days == "" {
		days = defaultDays
	}
	return &models.ExpectedJob{
		Year:                 year,
		Company:              company,
		City:                 city,
		Neighborhood:         neighborhood,
		DatabaseName:         def.DatabaseName,
		ExpectedHourUTC:      def.ExpectedHourUTC,
		ExpectedMinuteUTC:    def.ExpectedMinuteUTC,
		Frequency:            models.Frequency(def.ExpectedFrequency),
		DaysOfWeek:           days,
		FinalStorageTemplate: def.FinalStorageTemplate,
		IsActive:             true,
	}
}

// parseSeedKey splits "<COMPANY>_<CITY>_<NEIGHBORHOOD...>_<YEAR>" into
// its parts. The neighborhood may contain underscores; the year is the
// final token.
func parseSeedKey(key string) (company, city, neighborhood string, year int, err error) {
	parts := strings.Split(key, "_")
	if len(parts) < 4 {
		return "", "", "", 0, fmt.Errorf("expected COMPANY_CITY_NEIGHBORHOOD_YEAR, got %d part(s)", len(parts))
	}

	yearStr := parts[len(parts)-1]
	year, err = strconv.Atoi(yearStr)
	if err != nil || year < 2000 || year > 9999 {
		return "", "", "", 0, fmt.Errorf("final token %q is not a valid year", yearStr)
	}

	company = strings.ToLower(parts[0])
	city = strings.ToLower(parts[1])
	neighborhood = strings.ToLower(strings.Join(parts[2:len(parts)-1], "_"))
	return company, city, neighborhood, year, nil
}
