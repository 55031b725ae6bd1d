// Package stream fans preview output out to browsers: PCM audio over HTTP
// (MP3) and WebRTC (Opus), rendered frames over websockets.
package stream

import (
	"context"
	"sync"
	"sync/atomic"
)

// Broadcaster fans out values from one source to N listeners. Slow
// listeners lose values instead of stalling the source.
type Broadcaster[T any] struct {
	mu        sync.RWMutex
	listeners map[*Listener[T]]struct{}
	dropped   atomic.Uint64
}

// Listener receives values from a Broadcaster.
type Listener[T any] struct {
	C    chan T
	done chan struct{}
	once sync.Once
}

// Done is closed when the listener is unsubscribed.
func (l *Listener[T]) Done() <-chan struct{} { return l.done }

// PCMBuffer holds ~3 seconds of 20ms frames.
const PCMBuffer = 150

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{
		listeners: make(map[*Listener[T]]struct{}),
	}
}

// Subscribe registers a listener with room for buffer pending values.
func (b *Broadcaster[T]) Subscribe(buffer int) *Listener[T] {
	l := &Listener[T]{
		C:    make(chan T, buffer),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.listeners[l] = struct{}{}
	b.mu.Unlock()
	return l
}

// Unsubscribe removes a listener and closes its Done channel. Calling it
// twice is harmless.
func (b *Broadcaster[T]) Unsubscribe(l *Listener[T]) {
	b.mu.Lock()
	delete(b.listeners, l)
	b.mu.Unlock()
	l.once.Do(func() { close(l.done) })
}

// ListenerCount returns the number of active listeners.
func (b *Broadcaster[T]) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Dropped counts values discarded for full listeners.
func (b *Broadcaster[T]) Dropped() uint64 {
	return b.dropped.Load()
}

// Publish delivers v to every listener that has room.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.RLock()
	for l := range b.listeners {
		select {
		case l.C <- v:
		default:
			b.dropped.Add(1)
		}
	}
	b.mu.RUnlock()
}

// Run publishes everything read from source until ctx ends or source closes.
func (b *Broadcaster[T]) Run(ctx context.Context, source <-chan T) {
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-source:
			if !ok {
				return
			}
			b.Publish(v)
		}
	}
}
