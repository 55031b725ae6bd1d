package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, loaded from environment variables
// (and a .env file in the working directory, if present).
type Config struct {
	// Server
	Port int

	// Files
	OutputDir  string // finished exports
	WorkDir    string // per-job scratch space, os temp dir if empty
	FFmpegPath string
	FontPath   string // TTF/OTF for titles and lyrics, built-in bold if empty
	HistoryDB  string // sqlite export ledger
	InboxDir   string // watched folder for batch exports

	// Export
	Width         int
	Height        int
	FPS           int
	QueueDepth    int     // frames pending encode
	ExportGravity float64 // bar fall per frame in px
	VideoBitrate  string

	// Preview
	PreviewWidth  int
	PreviewHeight int
	PreviewFPS    int
	LiveGravity   float64

	// Analysis
	FFTSize   int
	Smoothing float64

	// Lyrics
	LyricsT2S bool // convert Traditional Chinese lyrics to Simplified
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port: envInt("ECHOFRAME_PORT", 8080),

		OutputDir:  envStr("ECHOFRAME_OUTPUT_DIR", "."),
		WorkDir:    envStr("ECHOFRAME_WORK_DIR", ""),
		FFmpegPath: envStr("ECHOFRAME_FFMPEG_PATH", "ffmpeg"),
		FontPath:   envStr("ECHOFRAME_FONT_PATH", ""),
		HistoryDB:  envStr("ECHOFRAME_HISTORY_DB", "echoframe.db"),
		InboxDir:   envStr("ECHOFRAME_INBOX_DIR", "inbox"),

		Width:         envInt("ECHOFRAME_WIDTH", 1920),
		Height:        envInt("ECHOFRAME_HEIGHT", 1080),
		FPS:           envInt("ECHOFRAME_FPS", 60),
		QueueDepth:    envInt("ECHOFRAME_QUEUE_DEPTH", 10),
		ExportGravity: envFloat("ECHOFRAME_EXPORT_GRAVITY", 3.0),
		VideoBitrate:  envStr("ECHOFRAME_VIDEO_BITRATE", "8000k"),

		PreviewWidth:  envInt("ECHOFRAME_PREVIEW_WIDTH", 960),
		PreviewHeight: envInt("ECHOFRAME_PREVIEW_HEIGHT", 540),
		PreviewFPS:    envInt("ECHOFRAME_PREVIEW_FPS", 60),
		LiveGravity:   envFloat("ECHOFRAME_LIVE_GRAVITY", 1.8),

		FFTSize:   envInt("ECHOFRAME_FFT_SIZE", 512),
		Smoothing: envFloat("ECHOFRAME_SMOOTHING", 0.85),

		LyricsT2S: envBool("ECHOFRAME_LYRICS_T2S", false),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
