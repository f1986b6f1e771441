package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"salesdesk/backend/internal/apperr"
	"salesdesk/backend/internal/domain"
	"salesdesk/backend/internal/logging"
	"salesdesk/backend/internal/service"
)

const requestIDHeader = "X-Request-Id"

type API struct {
	service       *service.Service
	auth          *AuthManager
	log           *logging.Logger
	gatherer      prometheus.Gatherer
	allowedOrigin string
	loginLimiter  *attemptLimiter
	unlockLimiter *attemptLimiter
}

type Options struct {
	AllowedOrigin string
	Logger        *logging.Logger
	// Gatherer backs /metrics. Nil leaves the route unregistered.
	Gatherer prometheus.Gatherer
}

func New(svc *service.Service, auth *AuthManager, opts Options) *API {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	origin := opts.AllowedOrigin
	if origin == "" {
		origin = "*"
	}
	return &API{
		service:       svc,
		auth:          auth,
		log:           logger,
		gatherer:      opts.Gatherer,
		allowedOrigin: origin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		unlockLimiter: newAttemptLimiter(5, time.Minute),
	}
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(a.recoverer, a.requestID, a.requestLogger, a.securityHeaders)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		a.writeError(w, r, apperr.New(apperr.CodeNotFound, "route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("METHOD_NOT_ALLOWED", "method not allowed", nil))
	})

	r.Get("/healthz", a.handleHealth)
	if a.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", a.handleLogin)
		r.Get("/stores", a.handleListStores)
		r.Post("/stores", a.handleCreateStore)

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth(domain.RoleStore, domain.RoleAdmin))
			adminOnly := a.requireAuth(domain.RoleAdmin)

			r.Post("/admin/unlock", a.handleAdminUnlock)
			r.Get("/stores/{id}", a.handleGetStore)

			r.Route("/shops", func(r chi.Router) {
				r.Get("/", a.handleListShops)
				r.Post("/", a.handleCreateShop)
				r.Get("/sales", a.handleShopSales)
				r.Get("/{id}", a.handleGetShop)
				r.Patch("/{id}", a.handleUpdateShop)
			})
			r.Route("/salesmen", func(r chi.Router) {
				r.Get("/", a.handleListSalesmen)
				r.Post("/", a.handleCreateSalesman)
				r.Get("/{id}", a.handleGetSalesman)
				r.Patch("/{id}", a.handleUpdateSalesman)
				r.With(adminOnly).Delete("/{id}", a.handleDeleteSalesman)
			})
			r.Route("/products", func(r chi.Router) {
				r.Get("/", a.handleListProducts)
				r.Post("/", a.handleCreateProduct)
				r.Get("/sales", a.handleProductSales)
				r.Get("/{id}", a.handleGetProduct)
				r.Patch("/{id}", a.handleUpdateProduct)
				r.With(adminOnly).Delete("/{id}", a.handleDeleteProduct)
			})
			r.Route("/sales", func(r chi.Router) {
				r.Get("/", a.handleListSales)
				r.Post("/", a.handleCreateSale)
				r.Get("/current-month", a.handleCurrentMonthSales)
				r.Get("/{id}", a.handleGetSale)
				r.Get("/{id}/invoice.pdf", a.handleInvoice)
				r.With(adminOnly).Patch("/{id}", a.handleEditSale)
				r.With(adminOnly).Delete("/{id}", a.handleDeleteSale)
			})
			r.Route("/reports", func(r chi.Router) {
				r.Get("/sales", a.handleSalesReport)
				r.Get("/sales.xlsx", a.handleSalesReportXLSX)
				r.Get("/salesmen", a.handleSalesmanReport)
			})
		})
	})

	return r
}

// requireAuth parses the bearer token, checks the role and puts the actor
// in the request context.
func (a *API) requireAuth(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authorization := strings.TrimSpace(r.Header.Get("Authorization"))
			if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
				a.writeError(w, r, apperr.New(apperr.CodeUnauthorized, "missing bearer token"))
				return
			}

			token := strings.TrimSpace(authorization[len("Bearer "):])
			actor, err := a.auth.ParseToken(token)
			if err != nil {
				a.writeError(w, r, err)
				return
			}

			if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
				a.writeError(w, r, apperr.New(apperr.CodeForbidden, "admin role required"))
				return
			}

			ctx := service.WithActor(r.Context(), actor)
			ctx = a.log.WithFields(ctx, map[string]any{"store_id": actor.StoreID, "role": actor.Role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func actorFrom(r *http.Request) domain.Actor {
	actor, _ := service.ActorFromContext(r.Context())
	return actor
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		a.writeError(w, r, apperr.New(apperr.CodeRateLimit, "too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.log.Info(a.log.WithField(r.Context(), "store_id", resp.StoreID), "auth.login")
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleAdminUnlock(w http.ResponseWriter, r *http.Request) {
	if !a.unlockLimiter.Allow(clientKey(r)) {
		a.writeError(w, r, apperr.New(apperr.CodeRateLimit, "too many unlock attempts"))
		return
	}

	var req domain.AdminUnlockRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	resp, err := a.auth.UnlockAdmin(actorFrom(r), req.Password)
	if err != nil {
		a.log.Warn(r.Context(), "auth.unlock_rejected", nil)
		a.writeError(w, r, err)
		return
	}
	a.log.Info(r.Context(), "auth.unlock")
	writeJSON(w, http.StatusOK, resp)
}

// Middleware

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (a *API) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := a.log.WithField(r.Context(), "request_id", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		ctx := a.log.WithFields(r.Context(), map[string]any{
			"method": r.Method,
			"path":   r.URL.Path,
		})
		r = r.WithContext(ctx)

		next.ServeHTTP(rec, r)

		done := a.log.WithFields(ctx, map[string]any{
			"status":      rec.status,
			"duration_ms": time.Since(startedAt).Milliseconds(),
		})
		a.log.Info(done, "request.complete")
	})
}

func (a *API) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				a.log.Error(r.Context(), "panic recovered", fmt.Errorf("%v", rec))
				a.writeError(w, r, apperr.New(apperr.CodeInternal, "panic"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (a *API) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-Id")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Responses

func errorBody(code string, message string, details any) map[string]any {
	body := map[string]any{"code": code, "message": message}
	if details != nil {
		body["details"] = details
	}
	return map[string]any{"error": body}
}

// writeError maps err onto its code metadata. 5xx messages are replaced by
// the public message and the cause is logged.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	typed := apperr.As(err)
	if typed == nil {
		typed = apperr.Wrap(apperr.CodeInternal, err, "unexpected error")
	}
	meta := apperr.MetadataFor(typed.Code())

	message := typed.Message()
	details := typed.Details()
	if meta.HTTPStatus >= http.StatusInternalServerError {
		a.log.Error(contextOf(r), "request.failed", err)
		message = meta.PublicMessage
		details = nil
	}
	if meta.Retryable {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, meta.HTTPStatus, errorBody(string(typed.Code()), message, details))
}

func contextOf(r *http.Request) context.Context {
	if r == nil {
		return context.Background()
	}
	return r.Context()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
