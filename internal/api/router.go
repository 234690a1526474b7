package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"visra.app/studio/pkg/logger"
	"visra.app/studio/pkg/metrics"
)

// DefaultMaxBodyBytes caps request bodies when RouterConfig leaves it unset.
// Images travel as base64 data URIs, so the cap is generous.
const DefaultMaxBodyBytes = 32 << 20

type RouterConfig struct {
	AllowedOrigins    []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	MaxBodyBytes      int64
}

func NewRouter(apiHandler *APIHandler, cfg RouterConfig, log *logger.Logger) http.Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(log.Named("http")))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(middleware.RequestSize(cfg.MaxBodyBytes))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Handle("/metrics", promhttp.Handler())

	// All API routes will be under /api
	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/login", apiHandler.LoginHandler)
		r.Get("/health", apiHandler.HealthHandler)

		// User-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.JWTAuthMiddleware)

			r.Get("/state", apiHandler.GetStateHandler)
			r.Get("/events", apiHandler.EventsHandler)

			// Generation and mask rendering are the expensive routes.
			r.Group(func(r chi.Router) {
				if cfg.RateLimitRequests > 0 && cfg.RateLimitWindow > 0 {
					r.Use(httprate.LimitByIP(cfg.RateLimitRequests, cfg.RateLimitWindow))
				}
				r.Post("/messages", apiHandler.SendMessageHandler)
				r.Post("/pending-edit", apiHandler.PendingEditHandler)
				r.Post("/keys/enter", apiHandler.EnterHandler)
			})

			r.Patch("/messages/{messageID}", apiHandler.UpdateMessageHandler)
			r.Post("/stop", apiHandler.StopHandler)
			r.Post("/chats/new", apiHandler.NewChatHandler)

			// Session directory
			r.Get("/sessions", apiHandler.ListSessionsHandler)
			r.Get("/sessions/{sessionID}", apiHandler.GetSessionHandler)
			r.Post("/sessions/{sessionID}/select", apiHandler.SelectSessionHandler)
			r.Patch("/sessions/{sessionID}", apiHandler.RenameSessionHandler)
			r.Delete("/sessions/{sessionID}", apiHandler.DeleteSessionHandler)

			r.Put("/staged-image", apiHandler.StageImageHandler)
			r.Delete("/staged-image", apiHandler.ClearStagedImageHandler)
			r.Delete("/pending-edit", apiHandler.ClearPendingEditHandler)

			r.Get("/preferences", apiHandler.GetPreferencesHandler)
			r.Put("/preferences", apiHandler.UpdatePreferencesHandler)
			r.Post("/logout", apiHandler.LogoutHandler)
			r.Post("/keys/escape", apiHandler.EscapeHandler)
		})
	})

	return r
}

// requestLogger logs each request once it completes and records its latency
// under the matched route pattern.
func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			elapsed := time.Since(start)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			metrics.RecordRequest(r.Method, route, strconv.Itoa(status), elapsed.Seconds())
			log.Debug("request completed",
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.Int("status", status),
				zap.Duration("elapsed", elapsed),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
