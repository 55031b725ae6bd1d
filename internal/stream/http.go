package stream

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os/exec"
	"strconv"

	"github.com/satindergrewal/echoframe/internal/audio"
)

// DefaultMP3Bitrate is the preview stream bitrate.
const DefaultMP3Bitrate = "192k"

// HTTPHandler serves the preview audio as a chunked MP3 stream. Every
// request gets its own encoder process fed from a PCM listener.
type HTTPHandler struct {
	pcm     *Broadcaster[[]int16]
	ffmpeg  string
	Bitrate string
}

// NewHTTPHandler creates an MP3 stream handler. An empty ffmpegPath uses
// ffmpeg from PATH.
func NewHTTPHandler(pcm *Broadcaster[[]int16], ffmpegPath string) *HTTPHandler {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &HTTPHandler{pcm: pcm, ffmpeg: ffmpegPath, Bitrate: DefaultMP3Bitrate}
}

// mp3Args converts preview PCM on stdin to MP3 on stdout, flushing every
// packet so playback starts at once.
func (h *HTTPHandler) mp3Args() []string {
	return []string{
		"-f", "s16le",
		"-ar", strconv.Itoa(audio.SampleRate),
		"-ac", strconv.Itoa(audio.Channels),
		"-i", "pipe:0",
		"-codec:a", "libmp3lame",
		"-b:a", h.Bitrate,
		"-f", "mp3",
		"-fflags", "nobuffer",
		"-flush_packets", "1",
		"-loglevel", "error",
		"pipe:1",
	}
}

// mp3Encoder is one running ffmpeg process.
type mp3Encoder struct {
	cmd *exec.Cmd
	in  io.WriteCloser
	out io.ReadCloser
}

func (h *HTTPHandler) startEncoder(ctx context.Context) (*mp3Encoder, error) {
	cmd := exec.CommandContext(ctx, h.ffmpeg, h.mp3Args()...)
	in, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start encoder: %w", err)
	}
	return &mp3Encoder{cmd: cmd, in: in, out: out}, nil
}

// feed writes PCM frames to w as s16le until the listener goes away, ctx
// ends or w stops accepting data. It closes w.
func feed(ctx context.Context, l *Listener[[]int16], w io.WriteCloser) {
	defer w.Close()
	var buf []byte
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.Done():
			return
		case frame := <-l.C:
			buf = audio.AppendSamples(buf[:0], frame)
			if _, err := w.Write(buf); err != nil {
				return
			}
		}
	}
}

// flushWriter pushes every chunk to the client as soon as it is written.
type flushWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

func (fw flushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	fw.f.Flush()
	return n, err
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	enc, err := h.startEncoder(ctx)
	if err != nil {
		log.Printf("HTTP stream: %v", err)
		http.Error(w, "encoder unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "close")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	l :=h.pcm.Subscribe(PCMBuffer)
	log.Printf("HTTP stream: listener connected (total: %d)", h.pcm.ListenerCount())
	go feed(ctx, l, enc.in)

	n, err := io.Copy(flushWriter{w: w, f: flusher}, enc.out)
	if err != nil && ctx.Err() == nil {
		log.Printf("HTTP stream: %v", err)
	}

	h.pcm.Unsubscribe(l)
	cancel()
	enc.cmd.Wait()
	log.Printf("HTTP stream: listener disconnected after %d bytes", n)
}
