package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/campusops/facultyhours/cmd/facultyhours/commands"
	"github.com/campusops/facultyhours/logger"
)

var rootCmd = &cobra.Command{
	Use:   "facultyhours",
	Short: "Faculty hours reporting pipeline",
	Long: `facultyhours - faculty activity hours extraction and reporting.

Extracts instruction and tutoring events from the campus calendar
database, aggregates them into per-person monthly hour totals,
resolves each person against the CRM contact directory, and delivers
the resulting reports through one or more handlers.

Available commands:
  report - Build monthly reports and deliver them through handlers
  events - Export the raw event and monthly-hours listings as CSV
  version - Show version information

Examples:
  facultyhours report --current-month                  # CSV reports for this month
  facultyhours report --month 2025-04 --handlers csv,s3
  facultyhours report --all-months --group tutor
  facultyhours events --month 2025-04`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json-logs")
		if err := logger.Initialize(jsonOutput); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			logger.SetVerbose()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit structured JSON logs instead of console output")

	rootCmd.AddCommand(commands.ReportCmd)
	rootCmd.AddCommand(commands.EventsCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
