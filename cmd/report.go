package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/pomosync/internal/report"
)

var (
	reportFormat string
	reportOut    string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render today's statistics and sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		renderer, err := report.NewRenderer(reportFormat)
		if err != nil {
			return err
		}
		snap, err := readState(cmd.Context())
		if err != nil {
			return err
		}

		rep := report.Build(snap, time.Now())
		rep.Device = deviceID()
		if prof := GetProfile(); prof != nil {
			rep.Author = prof.Name
		}

		data, err := renderer.Render(rep)
		if err != nil {
			return fmt.Errorf("render report: %w", err)
		}

		if reportOut == "" || reportOut == "-" {
			_, err := cmd.OutOrStdout().Write(data)
			return err
		}
		if err := os.WriteFile(reportOut, data, 0o644); err != nil {
			return fmt.Errorf("write output file: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", reportOut)
		return nil
	},
}

var reportShowCmd = &cobra.Command{
	Use:   "show <file>",
	Short: "Read back a report written by 'pomo report'",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("file not found: %s", path)
			}
			return err
		}
		rep, err := report.Parse(data)
		if err != nil {
			return err
		}
		printReport(cmd.OutOrStdout(), rep)
		return nil
	},
}

// printReport writes a plain-text summary of rep.
func printReport(out io.Writer, rep *report.Report) {
	sum := rep.Summary
	fmt.Fprintf(out, "Report for %s", sum.Date)
	if rep.Author != "" {
		fmt.Fprintf(out, " by %s", rep.Author)
	}
	fmt.Fprintf(out, " (generated %s)\n\n", rep.GeneratedAt.Format("2006-01-02 15:04:05 MST"))

	printSummary(out, sum)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Sessions:")
	if len(sum.Sessions) == 0 {
		fmt.Fprintln(out, "  (none)")
	}
	for _, s := range sum.Sessions {
		at := time.UnixMilli(s.Timestamp).In(rep.GeneratedAt.Location()).Format("15:04")
		line := fmt.Sprintf("  %s  %-10s %3d min", at, s.Mode, s.DurationMinutes)
		if s.TaskName != "" {
			line += "  " + s.TaskName
		}
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Tasks:")
	if len(rep.Tasks) == 0 {
		fmt.Fprintln(out, "  (none)")
	}
	for _, t := range rep.Tasks {
		check := " "
		if t.Done {
			check = "x"
		}
		fmt.Fprintf(out, "  [%s] %s (%d pomodoros)\n", check, t.Name, t.CompletedPomodoros)
	}
}

func init() {
	reportCmd.Flags().StringVarP(&reportFormat, "format", "f", "markdown", "output format: markdown or json")
	reportCmd.Flags().StringVarP(&reportOut, "out", "o", "", "write the report to a file instead of stdout")
	reportCmd.AddCommand(reportShowCmd)
	rootCmd.AddCommand(reportCmd)
}
