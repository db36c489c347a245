package router

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"geo-cluster-pipeline/pkg/logging"
)

type HandlerFunc func(http.ResponseWriter, *http.Request)

// Router wraps a chi mux, logs every request and keeps a registry of
// METHOD:PATH keys for introspection.
type Router struct {
	mux    *chi.Mux
	logger logging.Logger
	routes map[string]HandlerFunc // key = METHOD:PATH
	paths  map[string]bool        // track registered paths
	server *http.Server

	readTimeout, writeTimeout, shutdownTimeout time.Duration
}

func New(logger logging.Logger) *Router {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	r := &Router{
		mux:    chi.NewRouter(),
		logger: logger.Named("http"),
		routes: make(map[string]HandlerFunc),
		paths:  make(map[string]bool),

		shutdownTimeout: 10 * time.Second,
	}

	r.mux.Use(chimw.RequestID)
	r.mux.Use(chimw.Recoverer)
	r.mux.Use(r.logRequests)

	r.mux.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})
	r.mux.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	})

	return r
}

func (r *Router) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, req.ProtoMajor)
		next.ServeHTTP(ww, req)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		fields := []logging.Field{
			logging.String("method", req.Method),
			logging.String("path", req.URL.Path),
			logging.Int("status", status),
			logging.Int("bytes", ww.BytesWritten()),
			logging.Duration("elapsed", time.Since(start)),
			logging.String("request_id", chimw.GetReqID(req.Context())),
		}
		switch {
		case status >= 500:
			r.logger.Error("request", fields...)
		case status >= 400:
			r.logger.Warn("request", fields...)
		default:
			r.logger.Info("request", fields...)
		}
	})
}

// --- Register paths ---
func (r *Router) register(method, path string, handler HandlerFunc) {
	key := method + ":" + path
	r.routes[key] = handler
	r.paths[path] = true
	r.mux.MethodFunc(method, path, http.HandlerFunc(handler))
}

func (r *Router) GET(path string, handler HandlerFunc)   { r.register(http.MethodGet, path, handler) }
func (r *Router) POST(path string, handler HandlerFunc)  { r.register(http.MethodPost, path, handler) }
func (r *Router) PUT(path string, handler HandlerFunc)   { r.register(http.MethodPut, path, handler) }
func (r *Router) PATCH(path string, handler HandlerFunc) { r.register(http.MethodPatch, path, handler) }
func (r *Router) DELETE(path string, handler HandlerFunc) {
	r.register(http.MethodDelete, path, handler)
}

// Handle mounts an http.Handler for every method, e.g. /metrics or /swagger/*.
func (r *Router) Handle(path string, h http.Handler) {
	r.paths[path] = true
	r.mux.Handle(path, h)
}

// Param returns a named path parameter such as {id}.
func Param(req *http.Request, name string) string {
	return chi.URLParam(req, name)
}

// Getter methods for testing
func (r *Router) Routes() map[string]HandlerFunc {
	return r.routes
}

func (r *Router) Paths() map[string]bool {
	return r.paths
}

// Handler exposes the underlying mux, e.g. for httptest.
func (r *Router) Handler() http.Handler {
	return r.mux
}

// --- Start server ---

// SetTimeouts configures the server. Zero values keep the defaults.
func (r *Router) SetTimeouts(read, write, shutdown time.Duration) {
	r.readTimeout, r.writeTimeout = read, write
	if shutdown > 0 {
		r.shutdownTimeout = shutdown
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (r *Router) Start(ctx context.Context, addr string) error {
	r.server = &http.Server{
		Addr:              addr,
		Handler:           r.mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       r.readTimeout,
		WriteTimeout:      r.writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		r.logger.Info("server started", logging.String("addr", addr))
		if err := r.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), r.shutdownTimeout)
		defer cancel()
		r.logger.Info("server shutting down")
		return r.server.Shutdown(shutdownCtx)
	}
}
