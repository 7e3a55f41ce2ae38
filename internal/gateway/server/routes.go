package server

import (
	"net/http"

	"ctibridge/internal/gateway/handler/rpc"
	"ctibridge/internal/gateway/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts the tool endpoints. metrics may be nil.
func NewRouter(tools *rpc.ToolHandler, metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}
	r.Get("/tools", tools.ListTools)

	path, h := tools.Handler()
	r.Handle(path, h)
	return r
}
