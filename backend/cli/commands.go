package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/PhilHem/logstore/backend/logstore"
	"github.com/PhilHem/logstore/backend/models"

	"github.com/spf13/cobra"
)

// filterFlags are shared by query and export.
type filterFlags struct {
	level  string
	search string
	from   string
	to     string
	since  time.Duration
}

func (ff *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&ff.level, "level", "", "Only entries of this level (debug, information, warning, error, fatal)")
	cmd.Flags().StringVar(&ff.search, "search", "", "Case-insensitive text to find in message or exception")
	cmd.Flags().StringVar(&ff.from, "from", "", "Earliest creation time (RFC 3339)")
	cmd.Flags().StringVar(&ff.to, "to", "", "Latest creation time (RFC 3339)")
	cmd.Flags().DurationVar(&ff.since, "since", 0, "Only entries newer than this, e.g. 2h (overrides --from)")
}

func (ff *filterFlags) filter() (logstore.Filter, error) {
	f := logstore.Filter{Message: ff.search}
	if ff.level != "" {
		level, err := models.ParseLevel(ff.level)
		if err != nil {
			return f, err
		}
		f.Level = &level
	}
	if ff.from != "" {
		t, err := time.Parse(time.RFC3339, ff.from)
		if err != nil {
			return f, fmt.Errorf("invalid --from: %w", err)
		}
		f.From = &t
	}
	if ff.to != "" {
		t, err := time.Parse(time.RFC3339, ff.to)
		if err != nil {
			return f, fmt.Errorf("invalid --to: %w", err)
		}
		f.To = &t
	}
	if ff.since > 0 {
		t := time.Now().Add(-ff.since)
		f.From = &t
	}
	return f, nil
}

func (a *app) printEntries(entries []models.LogEntry) error {
	if a.output == "json" {
		return a.printJSON(entries)
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tLEVEL\tUSER\tIP\tMESSAGE")
	for _, e := range entries {
		msg, _, _ := strings.Cut(e.Message, "\n")
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\n",
			e.ID, e.CreatedOn.UTC().Format(time.RFC3339), e.Level, e.UserID, e.IPAddress, msg)
	}
	return tw.Flush()
}

func newQueryCmd(a *app) *cobra.Command {
	var (
		ff       filterFlags
		page     int
		pageSize int
	)
	cmd := &cobra.Command{
		Use:   "query",
		Short: "List log entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := ff.filter()
			if err != nil {
				return err
			}
			f.PageIndex = page
			f.PageSize = pageSize

			result, err := a.store.Query(cmd.Context(), f)
			if err != nil {
				return err
			}
			if a.output == "json" {
				return a.printJSON(result)
			}
			if err := a.printEntries(result.Entries); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "\npage %d of %d (%d entries)\n", page+1, result.TotalPages(), result.Total)
			return nil
		},
	}
	ff.register(cmd)
	cmd.Flags().IntVar(&page, "page", 0, "Zero-based page index")
	cmd.Flags().IntVar(&pageSize, "page-size", 50, "Entries per page")
	return cmd
}

func parseIDs(args []string) ([]uint, error) {
	ids := make([]uint, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseUint(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", arg)
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show a single log entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			entry, err := a.store.GetByID(cmd.Context(), ids[0])
			if err != nil {
				return err
			}
			if entry == nil {
				return fmt.Errorf("log entry %d not found", ids[0])
			}
			if a.output == "json" {
				return a.printJSON(entry)
			}
			fmt.Fprintf(a.out, "ID:        %d\nCreated:   %s\nLevel:     %s\nUser:      %d\nIP:        %s\nPage:      %s\nReferrer:  %s\nMessage:   %s\n",
				entry.ID, entry.CreatedOn.UTC().Format(time.RFC3339Nano), entry.Level, entry.UserID,
				entry.IPAddress, entry.PageURL, entry.ReferrerURL, entry.Message)
			if entry.Exception != "" {
				fmt.Fprintf(a.out, "Exception:\n%s\n", entry.Exception)
			}
			return nil
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID...",
		Short: "Delete log entries by ID",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			n, err := a.store.DeleteByIDs(cmd.Context(), ids)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "deleted %d entries\n", n)
			return nil
		},
	}
}

func newClearCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every log entry",
		Long:  "Delete every log entry one at a time. An interrupted clear leaves the remaining entries in place.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear all logs without --yes")
			}
			n, err := a.store.ClearAll(cmd.Context())
			fmt.Fprintf(a.out, "deleted %d entries\n", n)
			return err
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deleting every entry")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var (
		ff       filterFlags
		compress bool
		outPath  string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write matching entries as newline-delimited JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := ff.filter()
			if err != nil {
				return err
			}

			if outPath == "" || outPath == "-" {
				_, err := a.store.Export(cmd.Context(), a.out, f, compress)
				return err
			}

			n, err := a.exportFile(cmd.Context(), outPath, f, compress)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "exported %d entries to %s\n", n, outPath)
			return nil
		},
	}
	ff.register(cmd)
	cmd.Flags().BoolVar(&compress, "compress", false, "zstd-compress the output")
	cmd.Flags().StringVar(&outPath, "out", "-", "Output file, - for stdout")
	return cmd
}

// exportFile writes the export to path and reports a failed close.
func (a *app) exportFile(ctx context.Context, path string, f logstore.Filter, compress bool) (n int, err error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return a.store.Export(ctx, file, f, compress)
}

func newTimelineCmd(a *app) *cobra.Command {
	var (
		interval string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Count entries per minute, hour or day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			points, err := a.store.Timeline(cmd.Context(), interval, limit)
			if err != nil {
				return err
			}
			if a.output == "json" {
				return a.printJSON(points)
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tCOUNT")
			for _, p := range points {
				fmt.Fprintf(tw, "%s\t%d\n", p.Time, p.Count)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&interval, "interval", "hour", "Bucket size: minute, hour or day")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of buckets")
	return cmd
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.output == "json" {
				return a.printJSON(map[string]string{"version": version, "commit": commit})
			}
			fmt.Fprintf(a.out, "logctl version %s (commit: %s)\n", version, commit)
			return nil
		},
	}
}
