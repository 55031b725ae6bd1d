package export

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Encoder turns a numbered frame sequence into a video file. WriteFrame is
// called from a single goroutine with increasing indices and must not keep
// img after returning.
type Encoder interface {
	WriteFrame(i int, img *image.RGBA) error
	// Finish encodes the written frames and returns the video path.
	// encoded receives the running count of encoded frames.
	Finish(ctx context.Context, encoded func(frames int)) (string, error)
}

// Muxer combines a video stream and an audio file into outPath.
type Muxer interface {
	Mux(ctx context.Context, videoPath, audioPath, outPath string) error
}

// EncoderFactory creates the encoder for one job working in dir.
type EncoderFactory func(dir string) Encoder

// FFmpegEncoder stores frames as numbered JPEGs and encodes them to H.264.
type FFmpegEncoder struct {
	FFmpegPath string
	Dir        string
	FPS        int
	Quality    int
	Preset     string
	Bitrate    string
}

const frameName = "frame_%06d.jpg"

// WriteFrame writes frame i as Dir/frame_%06d.jpg.
func (e *FFmpegEncoder) WriteFrame(i int, img *image.RGBA) error {
	path := filepath.Join(e.Dir, fmt.Sprintf(frameName, i))
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriterSize(f, 256<<10)
	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: e.Quality}); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Finish runs libx264 over the frame sequence into Dir/video.mp4.
func (e *FFmpegEncoder) Finish(ctx context.Context, encoded func(int)) (string, error) {
	out := filepath.Join(e.Dir, "video.mp4")
	args := []string{
		"-y",
		"-framerate", strconv.Itoa(e.FPS),
		"-i", filepath.Join(e.Dir, frameName),
		"-c:v", "libx264",
		"-preset", e.Preset,
		"-pix_fmt", "yuv420p",
		"-b:v", e.Bitrate,
		"-progress", "pipe:1",
		"-nostats",
		"-loglevel", "error",
		out,
	}
	cmd := exec.CommandContext(ctx, ffmpegPath(e.FFmpegPath), args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start ffmpeg: %w", err)
	}

	parseProgress(stdout, encoded)

	if err := cmd.Wait(); err != nil {
		return "", fmt.Errorf("ffmpeg encode: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// parseProgress reads ffmpeg -progress key=value output and reports each
// frame=N line until r is exhausted.
func parseProgress(r io.Reader, fn func(int)) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		v, ok := strings.CutPrefix(strings.TrimSpace(sc.Text()), "frame=")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || fn == nil {
			continue
		}
		fn(n)
	}
}

// FFmpegMuxer copies the video stream and encodes the audio to AAC,
// stopping at the shorter input.
type FFmpegMuxer struct {
	FFmpegPath string
}

func (m *FFmpegMuxer) Mux(ctx context.Context, videoPath, audioPath, outPath string) error {
	cmd := exec.CommandContext(ctx, ffmpegPath(m.FFmpegPath),
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-c:v", "copy",
		"-c:a", "aac",
		"-shortest",
		"-loglevel", "error",
		outPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg mux: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func ffmpegPath(p string) string {
	if p == "" {
		return "ffmpeg"
	}
	return p
}
