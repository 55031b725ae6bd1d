package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/satindergrewal/echoframe/internal/audio"
	"github.com/satindergrewal/echoframe/internal/config"
	"github.com/satindergrewal/echoframe/internal/lyrics"
	"github.com/satindergrewal/echoframe/internal/preview"
	"github.com/satindergrewal/echoframe/internal/render"
	"github.com/satindergrewal/echoframe/internal/stream"
	"github.com/satindergrewal/echoframe/internal/web"
)

func runPreview(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("preview", flag.ExitOnError)
	audioPath := fs.String("audio", "", "audio file")
	bgPath := fs.String("background", "", "background image")
	avatarPath := fs.String("avatar", "", "optional avatar image")
	lyricsPath := fs.String("lyrics", "", "optional LRC file")
	title := fs.String("title", "", "title text, defaults to the audio file name")
	port := fs.Int("port", cfg.Port, "HTTP port")
	console := fs.Bool("console", true, "interactive play/pause/seek console")
	fs.Parse(args)

	if *audioPath == "" || *bgPath == "" {
		fs.Usage()
		return errors.New("-audio and -background are required")
	}

	dec := &audio.Decoder{FFmpegPath: cfg.FFmpegPath}
	track, err := dec.DecodeFile(*audioPath)
	if err != nil {
		return err
	}
	bg, err := render.LoadImage(*bgPath)
	if err != nil {
		return err
	}
	var avatar image.Image
	if *avatarPath != "" {
		if avatar, err = render.LoadImage(*avatarPath); err != nil {
			return err
		}
	}
	var cues []lyrics.Cue
	if *lyricsPath != "" {
		if cues, err = lyrics.ReadFile(*lyricsPath, lyrics.ReadOptions{Converter: lyricConverter(cfg)}); err != nil {
			return fmt.Errorf("load lyrics: %w", err)
		}
	}
	font, err := loadFont(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hub := stream.NewFrameHub()
	player := preview.NewPlayer(preview.Options{
		Width:     cfg.PreviewWidth,
		Height:    cfg.PreviewHeight,
		FPS:       cfg.PreviewFPS,
		Gravity:   cfg.LiveGravity,
		FFTSize:   cfg.FFTSize,
		Smoothing: cfg.Smoothing,
		FontData:  font,
	}, bg, avatar, hub)

	name := filepath.Base(*audioPath)
	if *title == "" {
		*title = name
	}
	if err := player.Load(name, *title, track, cues); err != nil {
		return err
	}
	go player.Run(ctx)

	addr := fmt.Sprintf(":%d", *port)
	server := &http.Server{Addr: addr, Handler: newPreviewMux(player, hub, cfg.FFmpegPath)}
	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		server.Close()
	}()

	if *console {
		go func() {
			runConsole(player)
			cancel()
		}()
	}

	log.Printf("Preview live on http://localhost%s", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// newPreviewMux wires the page, streams and control API.
func newPreviewMux(player *preview.Player, hub *stream.FrameHub, ffmpegPath string) *http.ServeMux {
	webrtcHandler := stream.NewWebRTCHandler(player.Broadcaster())

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(web.IndexHTML)
	})

	mux.Handle("/stream", stream.NewHTTPHandler(player.Broadcaster(), ffmpegPath))
	mux.Handle("/offer", webrtcHandler)
	mux.Handle("/frames", hub)

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		st := player.Status()
		writeJSON(w, map[string]any{
			"name":             st.Name,
			"playing":          st.Playing,
			"rendering":        st.Rendering,
			"position":         st.Position,
			"duration":         st.Duration,
			"listeners":        st.Listeners,
			"webrtc_listeners": webrtcHandler.PeerCount(),
			"frame_clients":    hub.ClientCount(),
			"frames_sent":      hub.Sent(),
		})
	})

	control := func(fn func()) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				http.Error(w, "POST required", http.StatusMethodNotAllowed)
				return
			}
			fn()
			writeJSON(w, map[string]any{"ok": true, "playing": player.Status().Playing})
		}
	}
	mux.HandleFunc("/api/play", control(player.Play))
	mux.HandleFunc("/api/pause", control(player.Pause))
	mux.HandleFunc("/api/stop", control(player.Stop))

	mux.HandleFunc("/api/seek", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Position *float64 `json:"position"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Position == nil || *req.Position < 0 {
			http.Error(w, "invalid position", http.StatusBadRequest)
			return
		}
		player.Seek(time.Duration(*req.Position * float64(time.Second)))
		writeJSON(w, map[string]any{"ok": true, "position": player.Status().Position})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	json.NewEncoder(w).Encode(v)
}

// runConsole reads playback commands until EOF, interrupt or quit.
func runConsole(player *preview.Player) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt: "echoframe> ",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("play"),
			readline.PcItem("pause"),
			readline.PcItem("stop"),
			readline.PcItem("seek"),
			readline.PcItem("status"),
			readline.PcItem("quit"),
		),
	})
	if err != nil {
		log.Printf("Console: %v", err)
		return
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			return
		}
		if quit := consoleCommand(player, strings.Fields(line), rl.Stdout()); quit {
			return
		}
	}
}

// consoleCommand runs one console command and reports whether to quit.
func consoleCommand(player *preview.Player, fields []string, out io.Writer) bool {
	if len(fields) == 0 {
		return false
	}
	switch fields[0] {
	case "play":
		player.Play()
	case "pause":
		player.Pause()
	case "stop":
		player.Stop()
	case "seek":
		if len(fields) < 2 {
			fmt.Fprintln(out, "usage: seek <seconds>")
			return false
		}
		sec, err := strconv.ParseFloat(fields[1], 64)
		if err != nil || sec < 0 {
			fmt.Fprintf(out, "invalid position %q\n", fields[1])
			return false
		}
		player.Seek(time.Duration(sec * float64(time.Second)))
	case "status":
		st := player.Status()
		state := "paused"
		if st.Playing {
			state = "playing"
		}
		fmt.Fprintf(out, "%s  %.1f / %.1fs  %s  listeners: %d\n", st.Name, st.Position, st.Duration, state, st.Listeners)
	case "quit", "exit":
		return true
	default:
		fmt.Fprintf(out, "unknown command %q (play, pause, stop, seek <s>, status, quit)\n", fields[0])
	}
	return false
}
