// Package ipc serves the node's two optional Unix-domain sockets: a
// newline-JSON now-playing feed and a raw audio byte feed. Both are local
// trust boundaries (filesystem permissions), so neither authenticates.
package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/shortwave/go-shortwave/internal/bufpool"
	"github.com/shortwave/go-shortwave/internal/errors"
	"github.com/shortwave/go-shortwave/internal/logger"
	"github.com/shortwave/go-shortwave/internal/radio/hub"
	"github.com/shortwave/go-shortwave/internal/radio/nowplaying"
	"github.com/shortwave/go-shortwave/internal/radio/types"
)

// AudioChunkSize is the audio socket read unit.
const AudioChunkSize = 16 * 1024

// maxMetadataLine bounds one now-playing JSON line.
const maxMetadataLine = 64 * 1024

// nowPlayingLine is the socket wire form; every field optional.
type nowPlayingLine struct {
	Title    string `json:"title,omitempty"`
	Artist   string `json:"artist,omitempty"`
	Album    string `json:"album,omitempty"`
	CoverURL string `json:"cover_url,omitempty"`
}

// Listener owns one Unix socket and a per-connection handler.
type Listener struct {
	path    string
	handler func(conn net.Conn)
	log     *slog.Logger

	mu      sync.Mutex
	l       net.Listener
	closing bool
}

// NewNowPlayingListener serves newline-delimited JSON metadata into store.
// Bad lines are logged and skipped; the connection stays up.
func NewNowPlayingListener(path string, store *nowplaying.Store) *Listener {
	return NewNowPlayingListenerWithClock(path, store, time.Now)
}

// NewNowPlayingListenerWithClock injects the updated_at clock for tests.
func NewNowPlayingListenerWithClock(path string, store *nowplaying.Store, now func() time.Time) *Listener {
	log := logger.WithSocket(logger.Logger().With("component", "ipc_nowplaying"), path)
	return &Listener{
		path: path,
		log:  log,
		handler: func(conn net.Conn) {
			scanner := bufio.NewScanner(conn)
			scanner.Buffer(make([]byte, 4096), maxMetadataLine)
			for scanner.Scan() {
				line := scanner.Bytes()
				if len(line) == 0 {
					continue
				}
				var meta nowPlayingLine
				if err := json.Unmarshal(line, &meta); err != nil {
					log.Warn("skipping bad metadata line", "error", err)
					continue
				}
				store.Set(types.NowPlaying{
					Title:     meta.Title,
					Artist:    meta.Artist,
					Album:     meta.Album,
					CoverURL:  meta.CoverURL,
					UpdatedAt: now(),
				})
			}
			if err := scanner.Err(); err != nil {
				log.Warn("metadata connection read failed", "error", err)
			}
		},
	}
}

// NewAudioListener forwards raw socket bytes to the audio hub verbatim, in
// chunks of up to 16 KiB.
func NewAudioListener(path string, audio *hub.Hub[[]byte]) *Listener {
	log := logger.WithSocket(logger.Logger().With("component", "ipc_audio"), path)
	return &Listener{
		path: path,
		log:  log,
		handler: func(conn net.Conn) {
			buf := bufpool.Get(AudioChunkSize)
			defer bufpool.Put(buf)
			for {
				n, err := conn.Read(buf)
				if n > 0 {
					chunk := make([]byte, n)
					copy(chunk, buf[:n])
					audio.Publish(chunk)
				}
				if err != nil {
					if !stderrors.Is(err, io.EOF) {
						log.Warn("audio connection read failed",
							"error", errors.NewTransportError("ipc.audio.read", err))
					}
					return
				}
			}
		},
	}
}

// Start unlinks any stale socket file, binds, and launches the accept loop.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.l != nil {
		l.mu.Unlock()
		return stderrors.New("listener already started")
	}
	// A previous run's socket file would fail the bind.
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		l.mu.Unlock()
		return fmt.Errorf("unlink %s: %w", l.path, err)
	}
	ln, err := net.Listen("unix", l.path)
	if err != nil {
		l.mu.Unlock()
		return fmt.Errorf("listen %s: %w", l.path, err)
	}
	l.l = ln
	l.mu.Unlock()

	l.log.Info("ipc listening")
	go func() {
		<-ctx.Done()
		l.Close()
	}()
	go l.acceptLoop()
	return nil
}

func (l *Listener) acceptLoop() {
	for {
		l.mu.Lock()
		ln := l.l
		closing := l.closing
		l.mu.Unlock()
		if ln == nil || closing {
			return
		}
		conn, err := ln.Accept()
		if err != nil {
			l.mu.Lock()
			closing := l.closing
			l.mu.Unlock()
			if closing {
				return
			}
			// Per-connection accept errors never kill the loop.
			l.log.Warn("ipc accept failed", "error", err)
			continue
		}
		go func() {
			defer conn.Close()
			l.handler(conn)
		}()
	}
}

// Close stops accepting and removes the socket file. Best effort.
func (l *Listener) Close() {
	l.mu.Lock()
	if l.closing {
		l.mu.Unlock()
		return
	}
	l.closing = true
	ln := l.l
	l.mu.Unlock()
	if ln != nil {
		_ = ln.Close()
	}
	_ = os.Remove(l.path)
}
