package server

import (
	"net/http"

	"github.com/Praises003/aether/internal/metrics"
	"github.com/Praises003/aether/internal/server/handlers"
)

type Router struct {
	server      *Server
	mux         *http.ServeMux
	middlewares []Middleware
}

type Middleware func(http.Handler) http.Handler

func NewRouter(srv *Server) *Router {
	r := &Router{
		server: srv,
		mux:    http.NewServeMux(),
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

func (r *Router) setupMiddleware() {
	cfg := r.server.cfg.Server

	r.Use(RecoveryMiddleware)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(MetricsMiddleware)

	if cfg.CORS.Enabled {
		r.Use(CORSMiddleware(cfg.CORS))
	}
	if cfg.MaxBodySize > 0 {
		r.Use(MaxBodySizeMiddleware(cfg.MaxBodySize))
	}
}

func (r *Router) Use(mw Middleware) {
	r.middlewares = append(r.middlewares, mw)
}

func (r *Router) setupRoutes() {
	srv := r.server
	h := handlers.New(srv.jobs, srv.functions)

	health := handlers.NewHealthHandlers(srv.db, srv.broker, srv.version)
	for name, check := range srv.checks {
		health.AddCheck(name, check)
	}
	r.mux.HandleFunc("GET /health", health.Health)
	r.mux.HandleFunc("GET /health/stats", health.Stats)
	r.mux.Handle("GET /metrics", metrics.Handler())

	submit := http.Handler(http.HandlerFunc(h.SubmitJob))
	if srv.limiter != nil {
		submit = srv.limiter.Middleware(submit)
	}
	r.mux.Handle("POST /api/jobs", submit)
	r.mux.HandleFunc("GET /api/results/{jobId}", h.GetResult)

	r.mux.HandleFunc("GET /api/functions", h.ListFunctions)
	r.mux.HandleFunc("GET /api/functions/{id}", h.GetFunction)
	r.mux.HandleFunc("POST /api/functions", h.UpsertFunction)

	if srv.broker != nil {
		stream := handlers.NewReceiptStreamHandler(srv.broker, srv.cfg.Server.CORS.AllowedOrigins)
		r.mux.HandleFunc("GET /api/receipts/stream", stream.HandleWebSocket)
	}
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	handler := http.Handler(r.mux)

	for i := len(r.middlewares) - 1; i >= 0; i-- {
		handler = r.middlewares[i](handler)
	}

	handler.ServeHTTP(w, req)
}
