package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"ytscrape/batch"
	"ytscrape/harvest"
	"ytscrape/internal/metrics"
	"ytscrape/storage"
	"ytscrape/youtube"
)

func printReport(w io.Writer, report *batch.Report, mode youtube.Mode) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CHANNEL\tSTATUS\tLINKS\tEMAIL\tLOCATION\tTIME\tERROR")

	for _, o := range report.Outcomes {
		var links, email, location string
		if r := o.Result; r != nil {
			if mode != youtube.ModeDetails {
				links = fmt.Sprintf("%d", len(r.Links))
			}
			if d := r.Details; d != nil {
				email, location = d.Email, d.Location
			}
		}
		errMsg := ""
		if o.Err != nil {
			errMsg = truncate(o.Err.Error(), 60)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			o.Channel,
			status(o),
			links,
			email,
			location,
			o.Duration.Round(time.Second),
			errMsg,
		)
	}
	tw.Flush()

	fmt.Fprintf(w, "\nRun %s: %d succeeded, %d failed in %s\n",
		report.RunID, report.Succeeded(), report.Failed(),
		report.Finished.Sub(report.Started).Round(time.Second))
}

func status(o batch.Outcome) string {
	switch {
	case o.Err == nil:
		return "ok"
	case errors.Is(o.Err, harvest.ErrHarvestIncomplete):
		return "partial"
	default:
		return "failed"
	}
}

func printMetrics(w io.Writer) {
	fmt.Fprint(w, "\n"+metrics.Format())
}

// printStore lists every stored channel with its details and scrape state.
func printStore(ctx context.Context, w io.Writer, store storage.Store) error {
	channels, err := store.ListChannels(ctx)
	if err != nil {
		return err
	}
	if len(channels) == 0 {
		fmt.Fprintln(w, "No channels stored.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tSTATUS\tLINKS\tLAST SCRAPE\tEMAIL\tLOCATION\tLINKS FILE\tLAST ERROR")
	for _, ch := range channels {
		st, err := store.GetSyncState(ctx, ch.ID)
		if err != nil {
			return err
		}
		d, err := store.GetDetails(ctx, ch.ID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		var email, location string
		if d != nil {
			email, location = d.Email, d.Location
			if email == "" && !d.EmailRevealed && len(d.Warnings) > 0 {
				email = "(hidden)"
			}
		}
		links := fmt.Sprintf("%d", st.LinksFound)
		if st.Incomplete {
			links += "+"
		}
		last := ""
		if !st.LastSyncAt.IsZero() {
			last = st.LastSyncAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			ch.Key,
			st.Status,
			links,
			last,
			email,
			location,
			st.LinksPath,
			truncate(st.LastError, 60),
		)
	}
	tw.Flush()
	fmt.Fprintf(w, "\nTotal: %d channels\n", len(channels))
	return nil
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
