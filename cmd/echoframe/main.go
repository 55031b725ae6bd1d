package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/satindergrewal/echoframe/internal/config"
	"github.com/satindergrewal/echoframe/internal/export"
	"github.com/satindergrewal/echoframe/internal/history"
	"github.com/satindergrewal/echoframe/internal/lyrics"
)

func usage() {
	fmt.Fprint(os.Stderr, `Usage: echoframe <command> [flags]

Commands:
  export      render one video: audio + background (+ avatar, lyrics)
  preview     serve the live preview page and audio streams
  watch       export every manifest dropped into the inbox folder
  history     list or delete recorded exports
  testsignal  write the stereo test stimulus and its lyrics

Run "echoframe <command> -h" for the flags of a command.
`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cfg := config.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "export":
		err = runExport(ctx, cfg, os.Args[2:])
	case "preview":
		err = runPreview(ctx, cfg, os.Args[2:])
	case "watch":
		err = runWatch(ctx, cfg, os.Args[2:])
	case "history":
		err = runHistory(ctx, cfg, os.Args[2:])
	case "testsignal":
		err = runTestSignal(cfg, os.Args[2:])
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

// exportOptions maps configuration onto exporter options.
func exportOptions(cfg config.Config) (export.Options, error) {
	font, err := loadFont(cfg)
	if err != nil {
		return export.Options{}, err
	}
	return export.Options{
		Width:        cfg.Width,
		Height:       cfg.Height,
		FPS:          cfg.FPS,
		QueueDepth:   cfg.QueueDepth,
		Gravity:      cfg.ExportGravity,
		BinCount:     cfg.FFTSize / 2,
		Smoothing:    cfg.Smoothing,
		OutputDir:    cfg.OutputDir,
		WorkDir:      cfg.WorkDir,
		FFmpegPath:   cfg.FFmpegPath,
		VideoBitrate: cfg.VideoBitrate,
		FontData:     font,
		Converter:    lyricConverter(cfg),
	}, nil
}

func loadFont(cfg config.Config) ([]byte, error) {
	if cfg.FontPath == "" {
		return nil, nil
	}
	data, err := os.ReadFile(cfg.FontPath)
	if err != nil {
		return nil, fmt.Errorf("load font: %w", err)
	}
	return data, nil
}

// lyricConverter returns the Traditional to Simplified converter when
// enabled. A missing dictionary only disables conversion.
func lyricConverter(cfg config.Config) lyrics.TextConverter {
	if !cfg.LyricsT2S {
		return nil
	}
	cc, err := lyrics.NewOpenCC()
	if err != nil {
		log.Printf("Lyrics: t2s conversion disabled: %v", err)
		return nil
	}
	return cc
}

// recordExport writes the outcome of one export to the ledger. Ledger
// failures are logged, never fatal.
func recordExport(ctx context.Context, store *history.Store, ex *export.Exporter, req export.Request, art *export.Artifact, runErr error, started time.Time) {
	if store == nil || errors.Is(runErr, export.ErrBusy) {
		return
	}
	r := history.Record{
		JobID:      ex.Status().ID,
		Title:      req.Title,
		AudioPath:  req.AudioPath,
		Status:     history.StatusReady,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if r.Title == "" {
		r.Title = export.DefaultTitle(req.AudioPath)
	}
	if art != nil {
		r.JobID = art.JobID
		r.Title = art.Title
		r.OutputPath = art.Path
		r.Frames = art.Frames
		r.Duration = art.Duration
	}
	if runErr != nil {
		r.Status = history.StatusFailed
		r.Error = runErr.Error()
		var xerr *export.Error
		if errors.As(runErr, &xerr) {
			r.Stage = xerr.Stage.String()
		}
	}
	if err := store.Add(context.WithoutCancel(ctx), r); err != nil {
		log.Printf("History: %v", err)
	}
}
