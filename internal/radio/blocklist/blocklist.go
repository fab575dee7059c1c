// Package blocklist maintains the set of banned client IPs and refreshes it
// from a remote list. The HTTP surface consults Contains before routing.
package blocklist

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shortwave/go-shortwave/internal/logger"
)

// Store is the replace-whole-set membership store. Reads vastly outnumber
// writes (one membership test per request vs one replace per refresh), so a
// readers-writer lock keeps both sides from stalling under contention.
type Store struct {
	mu  sync.RWMutex
	ips map[string]struct{}
}

// NewStore creates an empty store (nothing blocked).
func NewStore() *Store {
	return &Store{ips: make(map[string]struct{})}
}

// Set atomically replaces the current set.
func (s *Store) Set(ips []net.IP) {
	next := make(map[string]struct{}, len(ips))
	for _, ip := range ips {
		if ip != nil {
			next[ip.String()] = struct{}{}
		}
	}
	s.mu.Lock()
	s.ips = next
	s.mu.Unlock()
}

// Contains reports whether ip is blocked.
func (s *Store) Contains(ip net.IP) bool {
	if ip == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ips[ip.String()]
	return ok
}

// Len returns the current set size.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ips)
}

// ParseList reads a blocklist body: one IP per line, blank lines skipped,
// '#' starts a comment (full-line or trailing). Unparseable lines are
// ignored so one bad row cannot poison a refresh.
func ParseList(body string) []net.IP {
	var out []net.IP
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if left, _, found := strings.Cut(line, "#"); found {
			line = strings.TrimSpace(left)
		}
		if ip := net.ParseIP(line); ip != nil {
			out = append(out, ip)
		}
	}
	return out
}

// Fetcher periodically downloads the blocklist and replaces the store set.
type Fetcher struct {
	store    *Store
	url      string
	interval time.Duration
	client   *http.Client
	log      *slog.Logger
}

// NewFetcher creates a fetcher for url every interval.
func NewFetcher(store *Store, url string, interval time.Duration) *Fetcher {
	return &Fetcher{
		store:    store,
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: 30 * time.Second},
		log:      logger.Logger().With("component", "blocklist"),
	}
}

// Run fetches immediately and then on every tick until ctx is cancelled.
// Fetch failures are logged and retried at the next tick; they never stop
// the loop.
func (f *Fetcher) Run(ctx context.Context) {
	f.refresh(ctx)
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.refresh(ctx)
		}
	}
}

func (f *Fetcher) refresh(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		f.log.Warn("blocklist request build failed", "error", err)
		return
	}
	resp, err := f.client.Do(req)
	if err != nil {
		f.log.Warn("blocklist fetch failed", "error", err, "url", f.url)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		f.log.Warn("blocklist fetch bad status", "status", resp.StatusCode, "url", f.url)
		return
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxListBytes))
	if err != nil {
		f.log.Warn("blocklist read failed", "error", err)
		return
	}
	ips := ParseList(string(body))
	f.store.Set(ips)
	f.log.Info("blocklist refreshed", "entries", len(ips))
}

// maxListBytes bounds a single blocklist download.
const maxListBytes = 8 << 20
