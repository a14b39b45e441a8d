package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/creditshare/creditshare/internal/config"
	"github.com/creditshare/creditshare/internal/logger"
)

// WindowCounter counts hits in a fixed time window. Implemented by
// database.Redis.
type WindowCounter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// Middleware holds all HTTP middleware
type Middleware struct {
	counter        WindowCounter
	log            *logger.Logger
	cfg            *config.Config
	trustedProxies []*net.IPNet
}

// New creates a new Middleware instance. counter may be nil, which
// disables request rate limiting.
func New(counter WindowCounter, log *logger.Logger, cfg *config.Config) *Middleware {
	trusted, err := cfg.Server.TrustedProxyNets()
	if err != nil {
		log.Warn().Err(err).Msg("ignoring invalid trusted proxy list")
		trusted = nil
	}
	return &Middleware{
		counter:        counter,
		log:            log,
		cfg:            cfg,
		trustedProxies: trusted,
	}
}

// ClientIPKey holds the client address resolved by RealIP
const ClientIPKey contextKey = "client_ip"

// RealIP resolves the client address once per request. X-Forwarded-For is
// honoured only when the socket peer is a trusted proxy; the client is then
// the rightmost entry that is not itself a trusted proxy.
func (m *Middleware) RealIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := m.resolveClientIP(r)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ClientIPKey, ip)))
	})
}

func (m *Middleware) resolveClientIP(r *http.Request) string {
	peer := peerHost(r)
	if !m.trusted(peer) {
		return peer
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if net.ParseIP(hop) == nil {
			// A malformed hop was not written by a trusted proxy.
			break
		}
		if !m.trusted(hop) {
			return hop
		}
		peer = hop
	}
	return peer
}

func (m *Middleware) trusted(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, n := range m.trustedProxies {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP returns the client address resolved by RealIP, or the socket
// peer when RealIP has not run. Client-supplied headers are never read here.
func ClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(ClientIPKey).(string); ok && ip != "" {
		return ip
	}
	return peerHost(r)
}

func peerHost(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
