package api

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/example/inventory-ledger/internal/api/middleware"
	"github.com/example/inventory-ledger/internal/auth"
)

// NewRouter wires the HTTP surface. jwtService may be nil, which leaves every
// route open; authHandlers and metricsHandler may be nil to omit those routes.
func NewRouter(handlers *Handlers, authHandlers *AuthHandlers, jwtService *auth.JWTService, metricsHandler http.Handler) http.Handler {
	mux := http.NewServeMux()

	protect := func(scope string, h http.HandlerFunc) http.Handler {
		if jwtService == nil {
			return h
		}
		return middleware.AuthMiddleware(jwtService)(middleware.RequireScope(scope)(h))
	}

	if authHandlers != nil {
		mux.HandleFunc("/auth/token", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost:
				authHandlers.IssueToken(w, r)
			default:
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			}
		})
	}

	// Commands
	commands := []struct {
		path    string
		scope   string
		handler http.HandlerFunc
	}{
		{"/inventory/reserve", "reserve", handlers.Reserve},
		{"/inventory/release", "release", handlers.Release},
		{"/inventory/allocate", "allocate", handlers.Allocate},
		{"/inventory/replenish", "replenish", handlers.Replenish},
		{"/inventory/sync", "sync", handlers.Sync},
		{"/inventory/sync-product", "sync", handlers.SyncProduct},
	}
	for _, c := range commands {
		protected := protect(c.scope, c.handler)
		mux.Handle(c.path, methodHandler(http.MethodPost, protected))
	}

	// Queries
	mux.HandleFunc("/inventory", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handlers.GetInventory(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/inventory/", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handlers.GetInventoryItem(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/availability", getOnly(handlers.GetAvailability))
	mux.HandleFunc("/can-fulfill", getOnly(handlers.CanFulfill))

	// Monitoring
	mux.HandleFunc("/stockout", getOnly(handlers.GetStockout))
	mux.HandleFunc("/anomalies", getOnly(handlers.GetAnomalies))
	mux.HandleFunc("/health", getOnly(handlers.GetHealth))

	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}

	return withLogging(mux)
}

func getOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

func methodHandler(method string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
