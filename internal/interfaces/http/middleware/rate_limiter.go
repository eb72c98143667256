package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Shedder ограничивает поток событий глобально и по IP.
// Отброшенные события получают тот же ответ 200, что и принятые.
type Shedder struct {
	global *rate.Limiter
	perIP  map[string]*clientLimiter
	mu     sync.Mutex

	rps   rate.Limit
	burst int
}

// NewShedder создает ограничитель; rps <= 0 отключает ограничение
func NewShedder(rps float64, burst int) *Shedder {
	if rps <= 0 {
		return nil
	}
	return &Shedder{
		global: rate.NewLimiter(rate.Limit(rps), burst),
		perIP:  make(map[string]*clientLimiter),
		rps:    rate.Limit(rps),
		burst:  burst,
	}
}

// Shed возвращает middleware. onDrop вызывается для каждого отброшенного события.
// nil Shedder пропускает все запросы.
func Shed(s *Shedder, onDrop func()) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if s == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost && !s.allow(clientIP(r)) {
				if onDrop != nil {
					onDrop()
				}
				w.Header().Set("Content-Type", "text/plain")
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Shedder) allow(ip string) bool {
	if !s.global.Allow() {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	item, ok := s.perIP[ip]
	if !ok {
		item = &clientLimiter{limiter: rate.NewLimiter(s.rps, s.burst)}
		s.perIP[ip] = item
	}
	item.lastSeen = now

	if len(s.perIP) > 10_000 {
		s.cleanupLocked(now.Add(-10 * time.Minute))
	}

	return item.limiter.Allow()
}

func (s *Shedder) cleanupLocked(threshold time.Time) {
	for ip, entry := range s.perIP {
		if entry.lastSeen.Before(threshold) {
			delete(s.perIP, ip)
		}
	}
}

func clientIP(r *http.Request) string {
	if forwardedFor := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwardedFor != "" {
		first, _, _ := strings.Cut(forwardedFor, ",")
		return strings.TrimSpace(first)
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
