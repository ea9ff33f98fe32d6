package metrics

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Server routes a Registry's /metrics scrape endpoint and a /healthz liveness
// probe, the way cmd/explorer's Server routes its HTTP surface with
// gorilla/mux.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
}

// NewServer builds the router for reg, bound to addr. Call ListenAndServe to
// start serving.
func NewServer(addr string, reg *Registry, log *logrus.Entry) *Server {
	s := &Server{router: mux.NewRouter()}
	s.router.Use(loggingMiddleware(log))
	s.router.Handle("/metrics", promhttp.HandlerFor(reg.reg, promhttp.HandlerOpts{}))
	s.router.HandleFunc("/healthz", handleHealthz).Methods(http.MethodGet)
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}
	return s
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// ListenAndServe blocks, serving the registry's HTTP surface until Close is
// called from another goroutine.
func (s *Server) ListenAndServe() error {
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Close shuts down the HTTP listener. Process supervision and graceful
// in-flight-request drain are out of scope (spec.md §6); this just stops
// accepting.
func (s *Server) Close() error { return s.httpServer.Close() }

func loggingMiddleware(log *logrus.Entry) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.WithField("path", r.URL.Path).Debug("metrics http request")
			next.ServeHTTP(w, r)
		})
	}
}
