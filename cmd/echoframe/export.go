package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/satindergrewal/echoframe/internal/config"
	"github.com/satindergrewal/echoframe/internal/export"
	"github.com/satindergrewal/echoframe/internal/history"
)

func runExport(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	audioPath := fs.String("audio", "", "audio file (wav, mp3, or anything ffmpeg decodes)")
	bgPath := fs.String("background", "", "background image")
	avatarPath := fs.String("avatar", "", "optional avatar image")
	lyricsPath := fs.String("lyrics", "", "optional LRC file")
	title := fs.String("title", "", "title text, defaults to the audio file name")
	outDir := fs.String("out", cfg.OutputDir, "output directory")
	noHistory := fs.Bool("no-history", false, "do not record the job in the history database")
	fs.Parse(args)

	if *audioPath == "" || *bgPath == "" {
		fs.Usage()
		return errors.New("-audio and -background are required")
	}

	opts, err := exportOptions(cfg)
	if err != nil {
		return err
	}

	var store *history.Store
	if !*noHistory {
		if store, err = history.Open(cfg.HistoryDB, nil); err != nil {
			log.Printf("History: disabled: %v", err)
			store = nil
		} else {
			defer store.Close()
		}
	}

	p := mpb.NewWithContext(ctx, mpb.WithWidth(64))
	var stage atomic.Value
	stage.Store(export.Idle.String())
	bar := p.AddBar(100,
		mpb.PrependDecorators(
			decor.Any(func(decor.Statistics) string { return stage.Load().(string) }, decor.WCSyncSpaceR),
			decor.Percentage(),
		),
		mpb.AppendDecorators(
			decor.Elapsed(decor.ET_STYLE_GO),
		),
	)
	opts.OnProgress = func(pr export.Progress) {
		stage.Store(pr.Stage.String())
		bar.SetCurrent(int64(pr.Percent))
	}

	ex := export.New(opts)
	req := export.Request{
		AudioPath:      *audioPath,
		BackgroundPath: *bgPath,
		AvatarPath:     *avatarPath,
		LyricsPath:     *lyricsPath,
		Title:          *title,
		OutputDir:      *outDir,
	}

	started := time.Now()
	art, err := ex.Run(ctx, req)
	if err != nil {
		bar.Abort(false)
	}
	p.Wait()
	recordExport(ctx, store, ex, req, art, err, started)
	if err != nil {
		return err
	}

	fmt.Printf("Wrote %s (%d frames, %.1fs audio, took %s)\n",
		art.Path, art.Frames, art.Duration, time.Since(started).Round(time.Millisecond))
	return nil
}
