package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/stockread/internal/api/handlers"
	"github.com/wonny/stockread/pkg/logger"
)

// RouterOptions configures the HTTP router
type RouterOptions struct {
	RateLimit float64 // rps per client IP, 0 disables
	RateBurst int
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(insight *handlers.InsightHandler, system *handlers.SystemHandler, stream http.Handler, opts RouterOptions, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/", rootHandler).Methods(http.MethodGet)

	// Health & status
	r.HandleFunc("/healthz", system.Healthz).Methods(http.MethodGet)
	r.HandleFunc("/services", system.Services).Methods(http.MethodGet)

	// Live insight stream
	if stream != nil {
		r.Handle("/ws/insights", stream).Methods(http.MethodGet)
	}

	// Analysis endpoints (LLM 호출 → rate limit 적용)
	analysis := r.NewRoute().Subrouter()
	analysis.HandleFunc("/ingest", insight.Ingest).Methods(http.MethodPost)
	analysis.HandleFunc("/analyze", insight.Analyze).Methods(http.MethodPost)
	analysis.HandleFunc("/summarize", insight.Summarize).Methods(http.MethodPost)
	analysis.Use(rateLimitMiddleware(opts.RateLimit, opts.RateBurst))

	// Apply middleware
	r.Use(requestIDMiddleware())
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// rootHandler identifies the service
func rootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "active",
		"service": "stockread",
	})
}
