package interfaces

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// NewRouter registers the distribution API.
func NewRouter(run *RunHandler, query *QueryHandler) *mux.Router {
	r := mux.NewRouter()
	if run != nil {
		r.Handle("/api/v1/distributions/run", run).Methods(http.MethodPost)
	}
	if query != nil {
		r.HandleFunc("/api/v1/periods", query.HandlePeriods).Methods(http.MethodGet)
		r.HandleFunc("/api/v1/periods/{period}", query.HandlePeriod).Methods(http.MethodGet)
		r.HandleFunc("/api/v1/periods/{period}/report.{format:pdf|xlsx}", query.HandleReport).Methods(http.MethodGet)
		r.HandleFunc("/api/v1/periods/{period}/distributions/{miner}/proof", query.HandleProof).Methods(http.MethodGet)
		r.HandleFunc("/api/v1/accounts/{id}/balance", query.HandleBalance).Methods(http.MethodGet)
		r.HandleFunc("/api/v1/accounts/{id}/entries", query.HandleEntries).Methods(http.MethodGet)
	}
	return r
}

// LoggingMiddleware writes one access log line per request.
func LoggingMiddleware(next http.Handler, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Info("http",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", resp.status),
			zap.Duration("duration", time.Since(start)))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
