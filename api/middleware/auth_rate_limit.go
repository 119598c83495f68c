package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/threshingfloor/roastery-backend/api/responses"
	"github.com/threshingfloor/roastery-backend/internal/access"
	pkgerrors "github.com/threshingfloor/roastery-backend/pkg/errors"
	"github.com/threshingfloor/roastery-backend/pkg/logger"
)

// Credentials bodies are tiny; anything past this is not inspected for an email.
const maxPeekBytes = 16 << 10

type rateLimiterStore interface {
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
	RateLimitKey(scope string) string
}

// AuthRateLimitPolicy throttles one auth endpoint with fixed windows counted
// per client address and per submitted email. A zero limit disables that
// dimension.
type AuthRateLimitPolicy struct {
	Name       string
	Window     time.Duration
	IPLimit    int
	EmailLimit int
}

func NewAuthRateLimitPolicy(name string, window time.Duration, ipLimit, emailLimit int) AuthRateLimitPolicy {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "auth"
	}
	return AuthRateLimitPolicy{Name: name, Window: window, IPLimit: ipLimit, EmailLimit: emailLimit}
}

func (p AuthRateLimitPolicy) active() bool {
	return p.Window > 0 && (p.IPLimit > 0 || p.EmailLimit > 0)
}

type rateCounter struct {
	dimension string
	value     string
	limit     int
}

func (p AuthRateLimitPolicy) counters(r *http.Request) []rateCounter {
	var out []rateCounter
	if p.IPLimit > 0 {
		if ip := clientIP(r); ip != "" {
			out = append(out, rateCounter{dimension: "ip", value: ip, limit: p.IPLimit})
		}
	}
	if p.EmailLimit > 0 {
		if email := access.NormalizeEmail(peekEmail(r)); email != "" {
			out = append(out, rateCounter{dimension: "email", value: digest(email), limit: p.EmailLimit})
		}
	}
	return out
}

// AuthRateLimit rejects a request with 429 once any of its counters passes
// the limit for the current window. Redis failures surface as 503.
func AuthRateLimit(policy AuthRateLimitPolicy, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil || !policy.active() {
			return next
		}
		retryAfter := strconv.Itoa(int(policy.Window.Round(time.Second) / time.Second))

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			for _, c := range policy.counters(r) {
				key := store.RateLimitKey(policy.Name + ":" + c.dimension + ":" + c.value)
				hits, err := store.IncrWithTTL(ctx, key, policy.Window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if hits <= int64(c.limit) {
					continue
				}
				if logg != nil {
					logg.Warn(logg.WithFields(ctx, map[string]any{
						"policy":    policy.Name,
						"dimension": c.dimension,
						"attempts":  hits,
						"limit":     c.limit,
					}), "auth.rate_limit.blocked")
				}
				w.Header().Set("Retry-After", retryAfter)
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, slow down"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// peekEmail reads the JSON email field and restores the body for the handler.
func peekEmail(r *http.Request) string {
	if r.Body == nil {
		return ""
	}
	head, err := io.ReadAll(io.LimitReader(r.Body, maxPeekBytes))
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), r.Body), r.Body}
	if err != nil {
		return ""
	}
	var creds struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(head, &creds) != nil {
		return ""
	}
	return creds.Email
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

// digest keeps raw addresses out of redis keys and logs.
func digest(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:12])
}
