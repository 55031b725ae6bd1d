package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/satindergrewal/echoframe/internal/config"
	"github.com/satindergrewal/echoframe/internal/history"
)

func runHistory(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	limit := fs.Int("n", 20, "number of jobs to list, 0 for all")
	del := fs.String("delete", "", "remove the job with this id from the history")
	fs.Parse(args)

	store, err := history.Open(cfg.HistoryDB, nil)
	if err != nil {
		return err
	}
	defer store.Close()

	if *del != "" {
		if err := store.Delete(ctx, *del); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", *del)
		return nil
	}

	records, err := store.List(ctx, *limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No exports recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FINISHED\tJOB\tTITLE\tSTATUS\tFRAMES\tTOOK\tOUTPUT")
	for _, r := range records {
		status := r.Status
		if r.Stage != "" {
			status += " (" + r.Stage + ")"
		}
		out := r.OutputPath
		if out == "" {
			out = r.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			r.FinishedAt.Format(time.DateTime), r.JobID, r.Title, status, r.Frames,
			r.Elapsed().Round(time.Second), out)
	}
	return tw.Flush()
}
