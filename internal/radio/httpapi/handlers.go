package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/shortwave/go-shortwave/internal/bufpool"
	"github.com/shortwave/go-shortwave/internal/radio/blocklist"
	"github.com/shortwave/go-shortwave/internal/radio/freq"
	"github.com/shortwave/go-shortwave/internal/radio/hub"
	"github.com/shortwave/go-shortwave/internal/radio/nowplaying"
	"github.com/shortwave/go-shortwave/internal/radio/peers"
	"github.com/shortwave/go-shortwave/internal/radio/registry"
	"github.com/shortwave/go-shortwave/internal/radio/types"
)

// AudioChunkSize is the unit the source ingest reads and the stream route
// relays. 16 KiB keeps per-chunk overhead low without starving slow clients.
const AudioChunkSize = 16 * 1024

// Deps are the collaborators the handlers read from and write to.
type Deps struct {
	Node        types.NodeInfo
	Registry    *registry.Registry
	NowPlaying  *nowplaying.Store
	Audio       *hub.Hub[[]byte]
	Blocklist   *blocklist.Store
	Peers       *peers.Directory
	SourceToken string // empty means open ingest
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/healthz", s.handleHealthz)
	mux.HandleFunc("GET /api/v1/stations", s.handleStations)
	mux.HandleFunc("GET /api/v1/stations/{frequency}", s.handleStation)
	mux.HandleFunc("GET /api/v1/events", s.handleEvents)
	mux.HandleFunc("GET /api/v1/now", s.handleNow)
	mux.HandleFunc("GET /api/v1/now/events", s.handleNowEvents)
	mux.HandleFunc("GET /api/v1/peers", s.handlePeers)
	mux.HandleFunc("PUT /api/v1/source", s.handleSource)
	mux.HandleFunc("GET /stream", s.handleStream)
	return s.blocklisted(s.cors(mux))
}

// blocklisted rejects requests from blocked source IPs before routing.
func (s *Server) blocklisted(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err == nil {
			if ip := net.ParseIP(host); ip != nil && s.deps.Blocklist != nil && s.deps.Blocklist.Contains(ip) {
				writeError(w, http.StatusForbidden, "blocked")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// cors applies the permissive policy: any origin may read the registry and
// tune the stream. Ingest is still gated by the bearer token.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, PUT, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Node)
}

func (s *Server) handleStations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Registry.Snapshot())
}

func (s *Server) handleStation(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("frequency")
	f, err := freq.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid frequency '%s'", raw))
		return
	}
	// Get carries no expiry filter: an expired-but-unswept row is still
	// served here, and the 404 echoes the raw path string.
	a, ok := s.deps.Registry.Get(f.Key())
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("frequency '%s' not found", raw))
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	fl, ok := sseStart(w)
	if !ok {
		return
	}
	sub := s.deps.Registry.Events().Subscribe()
	defer sub.Close()
	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-sub.C():
			if !ok {
				return
			}
			if err := sseWrite(w, fl, ev); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleNow(w http.ResponseWriter, _ *http.Request) {
	np, ok := s.deps.NowPlaying.Get()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, np)
}

func (s *Server) handleNowEvents(w http.ResponseWriter, r *http.Request) {
	fl, ok := sseStart(w)
	if !ok {
		return
	}
	// Subscribe before replaying the current value so an update landing in
	// between is not lost (it may be delivered twice, which is harmless for
	// last-write-wins metadata).
	sub := s.deps.NowPlaying.Updates().Subscribe()
	defer sub.Close()
	if np, present := s.deps.NowPlaying.Get(); present {
		if err := sseWrite(w, fl, np); err != nil {
			return
		}
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case np, ok := <-sub.C():
			if !ok {
				return
			}
			if err := sseWrite(w, fl, np); err != nil {
				return
			}
		}
	}
}

func (s *Server) handlePeers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Peers.List())
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	contentType := r.URL.Query().Get("content_type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Cache-Control", "no-store")
	h.Set("Cross-Origin-Resource-Policy", "cross-origin")

	fl, _ := w.(http.Flusher)
	sub := s.deps.Audio.Subscribe()
	defer sub.Close()
	w.WriteHeader(http.StatusOK)
	if fl != nil {
		fl.Flush()
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case chunk, ok := <-sub.C():
			if !ok {
				return
			}
			if _, err := w.Write(chunk); err != nil {
				return
			}
			if fl != nil {
				fl.Flush()
			}
		}
	}
}

func (s *Server) handleSource(w http.ResponseWriter, r *http.Request) {
	if s.deps.SourceToken != "" {
		if r.Header.Get("Authorization") != "Bearer "+s.deps.SourceToken {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
	}
	s.log.Info("source connected", "remote", r.RemoteAddr)
	buf := bufpool.Get(AudioChunkSize)
	defer bufpool.Put(buf)
	for {
		// Plain Read, not ReadFull: a live source trickles bytes and every
		// read's worth should reach listeners immediately.
		n, err := r.Body.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.deps.Audio.Publish(chunk)
		}
		if err != nil {
			if err != io.EOF {
				s.log.Warn("source read failed", "error", err)
			}
			break
		}
	}
	s.log.Info("source disconnected", "remote", r.RemoteAddr)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg})
}

func sseStart(w http.ResponseWriter) (http.Flusher, bool) {
	fl, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return nil, false
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-store")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fl.Flush()
	return fl, true
}

func sseWrite(w http.ResponseWriter, fl http.Flusher, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	fl.Flush()
	return nil
}
