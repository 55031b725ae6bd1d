package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// --- Broadcaster ---

func TestNewBroadcaster(t *testing.T) {
	b := NewBroadcaster[[]int16]()
	if b == nil {
		t.Fatal("NewBroadcaster returned nil")
	}
	if b.ListenerCount() != 0 {
		t.Errorf("Initial ListenerCount = %d, want 0", b.ListenerCount())
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroadcaster[[]int16]()

	l1 := b.Subscribe(PCMBuffer)
	l2 := b.Subscribe(PCMBuffer)
	if b.ListenerCount() != 2 {
		t.Errorf("After 2 subscribes: ListenerCount = %d, want 2", b.ListenerCount())
	}

	b.Unsubscribe(l1)
	if b.ListenerCount() != 1 {
		t.Errorf("After 1 unsubscribe: ListenerCount = %d, want 1", b.ListenerCount())
	}

	b.Unsubscribe(l2)
	b.Unsubscribe(l2) // second call must not panic
	if b.ListenerCount() != 0 {
		t.Errorf("After all unsubscribed: ListenerCount = %d, want 0", b.ListenerCount())
	}
}

func TestBroadcastDelivers(t *testing.T) {
	b := NewBroadcaster[[]int16]()
	l := b.Subscribe(PCMBuffer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	source := make(chan []int16, 10)
	go b.Run(ctx, source)

	frame := []int16{100, 200, 300, 400}
	source <- frame

	select {
	case got := <-l.C:
		if len(got) != len(frame) {
			t.Fatalf("Received frame length %d, want %d", len(got), len(frame))
		}
		for i, v := range got {
			if v != frame[i] {
				t.Errorf("Frame[%d] = %d, want %d", i, v, frame[i])
			}
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for frame")
	}
	b.Unsubscribe(l)
}

func TestPublishMultipleListeners(t *testing.T) {
	b := NewBroadcaster[string]()
	listeners := make([]*Listener[string], 5)
	for i := range listeners {
		listeners[i] = b.Subscribe(1)
	}

	b.Publish("frame")

	for i, l := range listeners {
		select {
		case got := <-l.C:
			if got != "frame" {
				t.Errorf("Listener %d got %q, want frame", i, got)
			}
		default:
			t.Errorf("Listener %d got nothing", i)
		}
	}
}

func TestPublishDropsForFullListener(t *testing.T) {
	b := NewBroadcaster[int]()
	slow := b.Subscribe(3)
	fast := b.Subscribe(100)

	for i := 0; i < 10; i++ {
		b.Publish(i)
	}

	if got := len(slow.C); got != 3 {
		t.Errorf("slow listener holds %d values, want 3", got)
	}
	if got := len(fast.C); got != 10 {
		t.Errorf("fast listener holds %d values, want 10", got)
	}
	if got := b.Dropped(); got != 7 {
		t.Errorf("Dropped = %d, want 7", got)
	}
	// Oldest values are the ones kept.
	if v := <-slow.C; v != 0 {
		t.Errorf("first kept value = %d, want 0", v)
	}
}

func TestBroadcastStopsOnContextCancel(t *testing.T) {
	b := NewBroadcaster[[]int16]()
	ctx, cancel := context.WithCancel(context.Background())
	source := make(chan []int16, 10)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.Run(ctx, source)
	}()
	cancel()

	waitOrFail(t, &wg, "Broadcaster did not stop after context cancel")
}

func TestBroadcastStopsOnSourceClose(t *testing.T) {
	b := NewBroadcaster[[]int16]()
	source := make(chan []int16, 10)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.Run(context.Background(), source)
	}()
	close(source)

	waitOrFail(t, &wg, "Broadcaster did not stop after source closed")
}

func TestListenerDone(t *testing.T) {
	b := NewBroadcaster[[]int16]()
	l := b.Subscribe(1)
	b.Unsubscribe(l)

	select {
	case <-l.Done():
	default:
		t.Error("Listener Done channel not closed after unsubscribe")
	}
}

func waitOrFail(t *testing.T, wg *sync.WaitGroup, msg string) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal(msg)
	}
}

// --- FrameHub ---

func TestFrameHubDeliversFrames(t *testing.T) {
	hub := NewFrameHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Publish([]byte{0xFF, 0xD8, 0x01})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if kind != websocket.BinaryMessage {
		t.Errorf("message type = %d, want binary", kind)
	}
	if len(data) != 3 || data[2] != 0x01 {
		t.Errorf("data = %v, want [ff d8 01]", data)
	}
}

func TestFrameHubRejectsPlainHTTP(t *testing.T) {
	hub := NewFrameHub()
	rec := httptest.NewRecorder()
	hub.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/frames", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount = %d, want 0", hub.ClientCount())
	}
}
