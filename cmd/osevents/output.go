package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/alfredjeanlab/osevents/internal/client"
	"github.com/alfredjeanlab/osevents/internal/events"
	"github.com/alfredjeanlab/osevents/internal/model"
	"github.com/alfredjeanlab/osevents/internal/sources"
	"github.com/alfredjeanlab/osevents/internal/ui"
)

const (
	eventTimeLayout = "Mon Jan 02 2006 15:04"
	runTimeLayout   = "2006-01-02 15:04:05"
	titleWidth      = 48
)

func printJSON(w io.Writer, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Fprintln(w, string(data))
}

func printEventTable(w io.Writer, evs []*model.Event, loc *time.Location) {
	if len(evs) == 0 {
		fmt.Fprintln(w, "No upcoming events.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "START\tSOURCE\tTITLE\tLOCATION")
	for _, e := range evs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			ui.RenderMuted(e.StartDate.In(loc).Format(eventTimeLayout)),
			ui.RenderAccent(e.SourceName),
			ui.Truncate(e.Title, titleWidth),
			e.Location,
		)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d events\n", len(evs))
}

func printCrawlRun(w io.Writer, run *model.CrawlRun) {
	fmt.Fprintf(w, "Run:       %s\n", run.ID)
	fmt.Fprintf(w, "Selector:  %s\n", run.Selector)
	if !run.StartedAt.IsZero() && !run.FinishedAt.IsZero() {
		fmt.Fprintf(w, "Duration:  %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}
	if len(run.Sources) == 0 {
		fmt.Fprintln(w, "\nNo sources matched.")
		return
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tFETCHED\tINSERTED\tDUPLICATES\tIMAGES\tRESULT")
	for _, r := range run.Sources {
		result := ui.RenderSuccess("ok")
		if r.Error != "" {
			result = ui.RenderFailure(r.Error)
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%s\n",
			ui.RenderAccent(r.Source), r.Fetched, r.Inserted, r.Duplicates, r.ImagesRehosted, result)
	}
	tw.Flush()

	fetched, inserted := run.Totals()
	fmt.Fprintf(w, "\n%d fetched, %d new\n", fetched, inserted)
}

func printRunsTable(w io.Writer, runs []*model.CrawlRun, loc *time.Location) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No crawl runs recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSELECTOR\tSOURCES\tFETCHED\tNEW\tSTATUS")
	for _, r := range runs {
		fetched, inserted := r.Totals()
		status := ui.RenderSuccess("ok")
		if r.Failed() {
			status = ui.RenderFailure("failed")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.ID,
			ui.RenderMuted(r.StartedAt.In(loc).Format(runTimeLayout)),
			r.Selector,
			len(r.Sources),
			fetched,
			inserted,
			status,
		)
	}
	tw.Flush()
}

func printSourcesTable(w io.Writer, settings map[string]sources.Settings, rehostConfigured bool) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tENABLED\tMONTHS\tREHOST IMAGES\tBASE URL")
	for _, name := range sources.BuiltinNames {
		s := settings[name]
		base := s.BaseURL
		if base == "" {
			base = ui.RenderMuted("(default)")
		}
		rehost := strconv.FormatBool(s.RehostImages && rehostConfigured)
		fmt.Fprintf(tw, "%s\t%t\t%d\t%s\t%s\n", ui.RenderAccent(name), s.Enabled, s.Months, rehost, base)
	}
	tw.Flush()
	if !rehostConfigured {
		fmt.Fprintln(w, ui.RenderMuted("\nImage rehosting is off (OSEVENTS_IMAGE_BUCKET not set)."))
	}
}

func printNotification(w io.Writer, n client.Notification, loc *time.Location) {
	switch n.Topic {
	case events.TopicCrawlCompleted:
		var ev events.CrawlCompleted
		if err := json.Unmarshal(n.Data, &ev); err == nil && ev.Run != nil {
			fetched, inserted := ev.Run.Totals()
			fmt.Fprintf(w, "%s run %s (%s) finished: %d fetched, %d new\n",
				ui.RenderMuted(ev.Run.FinishedAt.In(loc).Format(runTimeLayout)),
				ev.Run.ID, ev.Run.Selector, fetched, inserted)
			return
		}
	case events.TopicSourceFailed:
		var ev events.SourceFailed
		if err := json.Unmarshal(n.Data, &ev); err == nil {
			fmt.Fprintf(w, "%s %s failed in run %s: %s\n",
				ui.RenderFailure("✗"), ui.RenderAccent(ev.Source), ev.RunID, ev.Error)
			return
		}
	}
	fmt.Fprintf(w, "%s %s\n", n.Topic, n.Data)
}
