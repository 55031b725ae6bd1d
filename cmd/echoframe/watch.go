package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/satindergrewal/echoframe/internal/config"
	"github.com/satindergrewal/echoframe/internal/export"
	"github.com/satindergrewal/echoframe/internal/history"
	"github.com/satindergrewal/echoframe/internal/inbox"
)

func runWatch(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	dir := fs.String("dir", cfg.InboxDir, "inbox directory to watch for JSON manifests")
	quiet := fs.Duration("quiet", 2*time.Second, "how long a manifest must stay unchanged before it runs")
	fs.Parse(args)

	opts, err := exportOptions(cfg)
	if err != nil {
		return err
	}
	var lastDecile int
	opts.OnProgress = func(p export.Progress) {
		if d := p.Percent / 10; d != lastDecile {
			lastDecile = d
			log.Printf("Export %s: %s %d%%", p.JobID, p.Stage, p.Percent)
		}
	}
	ex := export.New(opts)

	store, err := history.Open(cfg.HistoryDB, nil)
	if err != nil {
		return err
	}
	defer store.Close()

	w := inbox.NewWatcher(*dir, func(ctx context.Context, req export.Request) error {
		started := time.Now()
		art, err := ex.Run(ctx, req)
		recordExport(ctx, store, ex, req, art, err, started)
		return err
	}, inbox.Options{Quiet: *quiet})
	return w.Run(ctx)
}
