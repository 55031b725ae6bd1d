package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/satindergrewal/echoframe/internal/audio"
	"github.com/satindergrewal/echoframe/internal/config"
)

// Test stimulus file names.
const (
	testSignalWAV = "DEBUG_STEREO_TEST.wav"
	testSignalLRC = "DEBUG_STEREO_TEST.lrc"
)

func runTestSignal(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("testsignal", flag.ExitOnError)
	outDir := fs.String("out", cfg.OutputDir, "output directory")
	rate := fs.Int("rate", 44100, "sample rate in Hz")
	fs.Parse(args)

	wavPath, lrcPath, err := writeTestSignal(*outDir, *rate)
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %s and %s\n", wavPath, lrcPath)
	return nil
}

// writeTestSignal writes the stereo stimulus and matching lyrics to dir.
func writeTestSignal(dir string, rate int) (wavPath, lrcPath string, err error) {
	if rate <= 0 {
		return "", "", fmt.Errorf("invalid sample rate %d", rate)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create output dir: %w", err)
	}
	wavPath = filepath.Join(dir, testSignalWAV)
	lrcPath = filepath.Join(dir, testSignalLRC)
	if err := os.WriteFile(wavPath, audio.EncodeWAV(audio.TestSignal(rate)), 0o644); err != nil {
		return "", "", fmt.Errorf("write test signal: %w", err)
	}
	if err := os.WriteFile(lrcPath, []byte(audio.TestSignalLyrics), 0o644); err != nil {
		return "", "", fmt.Errorf("write test lyrics: %w", err)
	}
	return wavPath, lrcPath, nil
}
