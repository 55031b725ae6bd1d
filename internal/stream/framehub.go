package stream

import (
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Websocket tuning for the frame feed.
const (
	frameBuffer = 2 // frames queued per client before dropping
	writeWait   = 5 * time.Second
	pongWait    = 30 * time.Second
	pingPeriod  = pongWait * 9 / 10
)

// FrameHub pushes encoded preview frames to websocket clients. Each client
// gets the newest frames it can keep up with; the rest are dropped.
type FrameHub struct {
	frames   *Broadcaster[[]byte]
	upgrader websocket.Upgrader
	sent     atomic.Uint64
}

// NewFrameHub creates an empty hub.
func NewFrameHub() *FrameHub {
	return &FrameHub{
		frames: NewBroadcaster[[]byte](),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 << 10,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Publish hands one encoded frame to every client. It never blocks.
func (h *FrameHub) Publish(frame []byte) {
	h.frames.Publish(frame)
}

// ClientCount returns the number of connected clients.
func (h *FrameHub) ClientCount() int {
	return h.frames.ListenerCount()
}

// Sent counts frames written to clients.
func (h *FrameHub) Sent() uint64 {
	return h.sent.Load()
}

func (h *FrameHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Frames: upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	l := h.frames.Subscribe(frameBuffer)
	defer h.frames.Unsubscribe(l)
	log.Printf("Frames: client connected (total: %d)", h.ClientCount())
	defer log.Printf("Frames: client disconnected")

	// The read side only services control frames and notices disconnects.
	closed := make(chan struct{})
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-l.Done():
			return
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case frame := <-l.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return
			}
			h.sent.Add(1)
		}
	}
}
