package http

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"

	"github.com/melih/lighthouse-panel/internal/core/domain"
	"github.com/melih/lighthouse-panel/internal/core/services"
)

// TokenCookie is the cookie the login endpoint sets.
const TokenCookie = "lighthouse_token"

const subjectKey = "subject"

// Authenticator resolves a token to an active user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}

// TokenFromRequest returns the bearer token or, failing that, the cookie.
func TokenFromRequest(header, cookie string) string {
	if h := strings.TrimSpace(header); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return cookie
}

// RequireAuth rejects requests without a valid token and stores the
// caller's identity for the handlers.
func RequireAuth(auth Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := TokenFromRequest(c.Get(fiber.HeaderAuthorization), c.Cookies(TokenCookie))
		u, err := auth.Authenticate(c.UserContext(), token)
		if err != nil {
			return err
		}
		c.Locals(subjectKey, u.Subject())
		return c.Next()
	}
}

// RequireAdmin short-circuits non-admin callers before the handler runs.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := services.Authorize(subject(c), nil, services.ActionManage); err != nil {
			return err
		}
		return c.Next()
	}
}

func subject(c *fiber.Ctx) domain.Subject {
	sub, _ := c.Locals(subjectKey).(domain.Subject)
	return sub
}

// ipLimiter hands out one token bucket per client IP.
type ipLimiter struct {
	mu      sync.Mutex
	every   rate.Limit
	burst   int
	buckets map[string]*visitor
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPLimiter(perMinute int) *ipLimiter {
	if perMinute <= 0 {
		perMinute = 10
	}
	return &ipLimiter{
		every:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   perMinute,
		buckets: make(map[string]*visitor),
	}
}

func (l *ipLimiter) allow(ip string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for k, v := range l.buckets {
		if now.Sub(v.lastSeen) > 10*time.Minute {
			delete(l.buckets, k)
		}
	}
	v, ok := l.buckets[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.every, l.burst)}
		l.buckets[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// RateLimit throttles requests per client IP.
func RateLimit(perMinute int) fiber.Handler {
	l := newIPLimiter(perMinute)
	return func(c *fiber.Ctx) error {
		if !l.allow(c.IP(), time.Now()) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many login attempts, please try again later",
			})
		}
		return c.Next()
	}
}
