package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hajimehoshi/go-mp3"
)

// DecodeError reports audio input that could not be turned into a Track.
type DecodeError struct {
	Format string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s audio: %v", e.Format, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

var errNoSamples = errors.New("no samples")

// Decoder turns encoded audio into a Track. WAV and MP3 are decoded in
// process; everything else goes through FFmpeg.
type Decoder struct {
	FFmpegPath string
}

// DefaultDecoder uses ffmpeg from PATH for the fallback branch.
var DefaultDecoder = &Decoder{FFmpegPath: "ffmpeg"}

// Decode decodes data with DefaultDecoder.
func Decode(data []byte) (*Track, error) {
	return DefaultDecoder.Decode(data)
}

// DecodeFile reads path and decodes it with DefaultDecoder.
func DecodeFile(path string) (*Track, error) {
	return DefaultDecoder.DecodeFile(path)
}

// DecodeFile reads path and decodes its contents.
func (d *Decoder) DecodeFile(path string) (*Track, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &DecodeError{Format: filepath.Ext(path), Err: err}
	}
	return d.Decode(data)
}

// Decode sniffs the container and decodes data.
func (d *Decoder) Decode(data []byte) (*Track, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Format: "unknown", Err: errors.New("empty input")}
	}

	var (
		t      *Track
		err    error
		format string
	)
	switch {
	case isWAV(data):
		format = "wav"
		t, err = decodeWAV(data)
	case isMP3(data):
		format = "mp3"
		t, err = decodeMP3(data)
	default:
		format = "ffmpeg"
		t, err = d.decodeFFmpeg(data)
	}
	if err != nil {
		return nil, &DecodeError{Format: format, Err: err}
	}
	if t.Len() == 0 {
		return nil, &DecodeError{Format: format, Err: errNoSamples}
	}
	return t, nil
}

func isWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

func isMP3(data []byte) bool {
	if len(data) >= 3 && string(data[0:3]) == "ID3" {
		return true
	}
	return len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0
}

func decodeMP3(data []byte) (*Track, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("read mp3 stream: %w", err)
	}

	// go-mp3 always yields interleaved stereo s16le.
	n := len(pcm) / 4
	left := make([]float32, n)
	right := make([]float32, n)
	for i := 0; i < n; i++ {
		left[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*4:]))) / 32768
		right[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*4+2:]))) / 32768
	}
	return NewTrack(dec.SampleRate(), [][]float32{left, right}), nil
}

// decodeFFmpeg runs FFmpeg to decode data to interleaved float32 stereo at
// the source's native rate (as reported by ffprobe).
func (d *Decoder) decodeFFmpeg(data []byte) (*Track, error) {
	rate := d.probeSampleRate(data)

	cmd := exec.Command(d.ffmpeg(),
		"-i", "pipe:0",
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-ar", strconv.Itoa(rate),
		"-ac", "2",
		"-loglevel", "error",
		"pipe:1",
	)
	cmd.Stdin = bytes.NewReader(data)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg decode: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	n := len(out) / 8
	left := make([]float32, n)
	right := make([]float32, n)
	for i := 0; i < n; i++ {
		left[i] = math.Float32frombits(binary.LittleEndian.Uint32(out[i*8:]))
		right[i] = math.Float32frombits(binary.LittleEndian.Uint32(out[i*8+4:]))
	}
	return NewTrack(rate, [][]float32{left, right}), nil
}

func (d *Decoder) probeSampleRate(data []byte) int {
	cmd := exec.Command(d.ffprobe(),
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=sample_rate",
		"-of", "default=noprint_wrappers=1:nokey=1",
		"-i", "pipe:0",
	)
	cmd.Stdin = bytes.NewReader(data)
	out, err := cmd.Output()
	if err != nil {
		return SampleRate
	}
	rate, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil || rate <= 0 {
		return SampleRate
	}
	return rate
}

func (d *Decoder) ffmpeg() string {
	if d.FFmpegPath == "" {
		return "ffmpeg"
	}
	return d.FFmpegPath
}

// ffprobe lives next to ffmpeg when FFmpegPath is absolute.
func (d *Decoder) ffprobe() string {
	p := d.ffmpeg()
	if dir := filepath.Dir(p); dir != "." {
		return filepath.Join(dir, "ffprobe")
	}
	return "ffprobe"
}

// AppendSamples appends int16 samples to dst as little-endian bytes.
func AppendSamples(dst []byte, samples []int16) []byte {
	for _, s := range samples {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(s))
	}
	return dst
}
