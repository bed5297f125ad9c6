package handlers

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/huanth/bi-a-manager/internal/platform/httpx"
	"github.com/huanth/bi-a-manager/internal/services"
)

const (
	defaultLoginAttempts = 10
	defaultLoginWindow   = time.Minute
	maxLoginBodySize     = 2 * 1024
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthHandlers exposes staff login.
type AuthHandlers struct {
	auth    services.AuthService
	limiter rateLimiter
}

// AuthOption customises AuthHandlers.
type AuthOption func(*authHandlerConfig)

type authHandlerConfig struct {
	attempts int
	window   time.Duration
	clock    func() time.Time
}

// WithLoginRateLimit caps login attempts per username and client address. A zero limit
// disables throttling.
func WithLoginRateLimit(attempts int, window time.Duration) AuthOption {
	return func(cfg *authHandlerConfig) {
		cfg.attempts = attempts
		cfg.window = window
	}
}

// WithLoginClock overrides the clock used by the login throttle.
func WithLoginClock(clock func() time.Time) AuthOption {
	return func(cfg *authHandlerConfig) {
		cfg.clock = clock
	}
}

// NewAuthHandlers constructs a new AuthHandlers instance.
func NewAuthHandlers(svc services.AuthService, opts ...AuthOption) *AuthHandlers {
	cfg := authHandlerConfig{attempts: defaultLoginAttempts, window: defaultLoginWindow}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &AuthHandlers{
		auth:    svc,
		limiter: newSimpleRateLimiter(cfg.attempts, cfg.window, cfg.clock),
	}
}

// Routes registers the /auth endpoints.
func (h *AuthHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/login", h.login)
}

func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.auth == nil {
		serviceUnavailable(w, r, "auth")
		return
	}

	var req loginRequest
	if err := httpx.DecodeJSON(r, &req, maxLoginBodySize, false); err != nil {
		httpx.WriteError(ctx, w, *err)
		return
	}

	key := strings.ToLower(strings.TrimSpace(req.Username)) + "|" + clientAddress(r)
	if h.limiter != nil {
		if ok, retryAfter := h.limiter.Allow(key); !ok {
			httpx.WriteError(ctx, w, httpx.NewError("too_many_attempts", "too many login attempts; retry later", http.StatusTooManyRequests).
				WithRetryAfter(retryAfter))
			return
		}
	}

	session, err := h.auth.Login(ctx, services.LoginCommand{Username: req.Username, Password: req.Password})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, session)
}

func clientAddress(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
