package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	domain "github.com/huanth/bi-a-manager/internal/domain"
	"github.com/huanth/bi-a-manager/internal/platform/auth"
	"github.com/huanth/bi-a-manager/internal/platform/httpx"
	"github.com/huanth/bi-a-manager/internal/platform/observability"
)

// RouteRegistrar registers a set of routes against the provided router.
type RouteRegistrar func(r chi.Router)

// access is the minimum credential a route group demands.
type access int

const (
	accessPublic access = iota
	accessStaff
	accessOwner
)

type routeGroup struct {
	path      string
	access    access
	registrar RouteRegistrar
}

// defaultGroups lists every /api/v1 group in mount order. Unregistered groups answer 501.
func defaultGroups() []routeGroup {
	return []routeGroup{
		{path: "/auth", access: accessPublic},
		{path: "/tables", access: accessStaff},
		{path: "/orders", access: accessStaff},
		{path: "/revenue", access: accessOwner},
		{path: "/admin", access: accessOwner},
	}
}

type routerConfig struct {
	basePath    string
	middlewares []func(http.Handler) http.Handler
	health      *HealthHandlers
	verifier    auth.Verifier
	groups      []routeGroup
}

// Option customises the router configuration before construction.
type Option func(*routerConfig)

const (
	defaultAPIPrefix  = "/api/v1"
	defaultTimeout    = 60 * time.Second
	errorNotFoundCode = "route_not_found"
)

// NewRouter builds the chi router. Tables and orders accept any logged-in staff member;
// revenue and admin need the owner role; auth is public.
func NewRouter(opts ...Option) chi.Router {
	cfg := routerConfig{
		basePath: defaultAPIPrefix,
		middlewares: []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Timeout(defaultTimeout),
		},
		groups: defaultGroups(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.health == nil {
		cfg.health = NewHealthHandlers()
	}

	r := chi.NewRouter()
	for _, mw := range cfg.middlewares {
		if mw != nil {
			r.Use(mw)
		}
	}
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError(errorNotFoundCode, "no route for "+req.URL.Path, http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed",
			fmt.Sprintf("%s is not allowed on %s", req.Method, req.URL.Path), http.StatusMethodNotAllowed))
	})

	r.Get("/healthz", cfg.health.Healthz)
	r.Get("/readyz", cfg.health.Readyz)

	r.Route(cfg.basePath, func(api chi.Router) {
		api.Use(middleware.NoCache)
		for _, g := range cfg.groups {
			api.Route(g.path, func(group chi.Router) {
				group.Use(guard(cfg.verifier, g.access)...)
				if g.registrar == nil {
					registerNotImplemented(group, g.path)
					return
				}
				g.registrar(group)
			})
		}
	})
	return r
}

func guard(verifier auth.Verifier, level access) []func(http.Handler) http.Handler {
	switch level {
	case accessStaff:
		return []func(http.Handler) http.Handler{auth.RequireStaff(verifier), observability.ActorMiddleware}
	case accessOwner:
		return []func(http.Handler) http.Handler{auth.RequireStaff(verifier, domain.UserRoleOwner), observability.ActorMiddleware}
	default:
		return nil
	}
}

func withGroup(path string, reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		for i := range cfg.groups {
			if cfg.groups[i].path == path {
				cfg.groups[i].registrar = reg
				return
			}
		}
	}
}

// WithMiddlewares appends global middleware after the request id, real ip and timeout defaults.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithHealthHandlers overrides the /healthz and /readyz handlers.
func WithHealthHandlers(h *HealthHandlers) Option {
	return func(cfg *routerConfig) {
		cfg.health = h
	}
}

// WithTokenVerifier sets the verifier guarding the staff and owner groups. Without one those
// groups answer 401.
func WithTokenVerifier(verifier auth.Verifier) Option {
	return func(cfg *routerConfig) {
		cfg.verifier = verifier
	}
}

// WithAuthRoutes mounts the login endpoints.
func WithAuthRoutes(reg RouteRegistrar) Option { return withGroup("/auth", reg) }

// WithTableRoutes mounts the table session endpoints.
func WithTableRoutes(reg RouteRegistrar) Option { return withGroup("/tables", reg) }

// WithOrderRoutes mounts the order endpoints.
func WithOrderRoutes(reg RouteRegistrar) Option { return withGroup("/orders", reg) }

// WithRevenueRoutes mounts the owner revenue endpoints.
func WithRevenueRoutes(reg RouteRegistrar) Option { return withGroup("/revenue", reg) }

// WithAdminRoutes mounts the owner export endpoints.
func WithAdminRoutes(reg RouteRegistrar) Option { return withGroup("/admin", reg) }

func registerNotImplemented(r chi.Router, path string) {
	handler := func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("not_implemented",
			fmt.Sprintf("%s routes are not mounted", path), http.StatusNotImplemented))
	}
	r.HandleFunc("/*", handler)
	r.HandleFunc("/", handler)
	r.NotFound(handler)
	r.MethodNotAllowed(handler)
}
