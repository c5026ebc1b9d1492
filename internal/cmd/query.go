package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"logvault/internal/output"
	"logvault/internal/query"
	"logvault/internal/stats"
	"logvault/internal/tail"
	"logvault/pkg/models"
)

// filterFlags are shared by entries and export
type filterFlags struct {
	search    string
	severity  string
	timeRange string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.search, "search", "s", "", "case-insensitive text to search for")
	cmd.Flags().StringVar(&f.severity, "severity", models.SeverityAll, "severity to keep (all, low, medium, high, critical, info, warning, error)")
	cmd.Flags().StringVarP(&f.timeRange, "time-range", "t", models.WindowDay, "time window: 1h, 6h, 24h, all")
}

func (a *app) renderer(cmd *cobra.Command) output.Renderer {
	return output.New(a.outputFormat(), cmd.OutOrStdout())
}

func (a *app) filesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "files",
		Short: "List log files, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, svc, err := a.setup("text")
			if err != nil {
				return err
			}
			return a.renderer(cmd).Files(svc.ListFiles())
		},
	}
}

func (a *app) entriesCmd() *cobra.Command {
	var (
		filter   filterFlags
		page     int
		pageSize int
	)
	cmd := &cobra.Command{
		Use:   "entries",
		Short: "Show one page of matching log entries",
		Long: `Stream every log file through the filters and print one page of
matching entries, newest first. Pages start at 1.

Examples:
  logvault entries --severity high --time-range 1h
  logvault entries -s "login failed" --page 2 --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, svc, err := a.setup("text")
			if err != nil {
				return err
			}
			result := svc.GetEntries(filter.search, filter.severity, filter.timeRange, page, pageSize)
			return a.renderer(cmd).Entries(result)
		},
	}
	filter.register(cmd)
	cmd.Flags().IntVarP(&page, "page", "p", 1, "page number, starting at 1")
	cmd.Flags().IntVar(&pageSize, "size", query.DefaultPageSize, "entries per page (max 500)")
	return cmd
}

func (a *app) tailCmd() *cobra.Command {
	var (
		search string
		lines  int
	)
	cmd := &cobra.Command{
		Use:   "tail NAME",
		Short: "Print the last lines of one log file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := a.setup("text")
			if err != nil {
				return err
			}
			content, err := svc.FileContent(args[0], search, lines)
			if errors.Is(err, query.ErrNotFound) {
				return fmt.Errorf("%s: log file not found", args[0])
			}
			if err != nil {
				return err
			}

			var out []string
			if content != "" {
				out = strings.Split(content, "\n")
			}
			return a.renderer(cmd).Lines(out)
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "only lines containing this text (case-insensitive)")
	cmd.Flags().IntVarP(&lines, "lines", "n", tail.DefaultMaxLines, "maximum number of lines")
	return cmd
}

func (a *app) exportCmd() *cobra.Command {
	var (
		filter filterFlags
		file   string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export matching entries as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, svc, err := a.setup("text")
			if err != nil {
				return err
			}
			csv := svc.ExportCSV(filter.search, filter.severity, filter.timeRange)

			if file == "" || file == "-" {
				if _, err := io.WriteString(cmd.OutOrStdout(), csv); err != nil {
					return fmt.Errorf("write export: %w", err)
				}
				return nil
			}
			return writeExportFile(file, csv)
		},
	}
	filter.register(cmd)
	cmd.Flags().StringVarP(&file, "file", "f", "-", "output file (- for stdout)")
	return cmd
}

// writeExportFile reports close errors, which is where a failed flush shows up
func writeExportFile(path, csv string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	if _, err := io.WriteString(f, csv); err != nil {
		f.Close()
		return fmt.Errorf("write export: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close export file: %w", err)
	}
	return nil
}

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarise cached metadata and recent entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, svc, err := a.setup("text")
			if err != nil {
				return err
			}
			svc.Preload()
			return a.renderer(cmd).Summary(stats.NewAggregator(svc).Summarize())
		},
	}
}
