package httpadapter

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/roadsight/road-safety-assistant/internal/core/domain"
	"github.com/roadsight/road-safety-assistant/internal/core/ports"
	"github.com/roadsight/road-safety-assistant/internal/core/usecase"
	"github.com/roadsight/road-safety-assistant/internal/observability/metrics"
)

// RouterConfig carries everything the HTTP surface needs from bootstrap.
type RouterConfig struct {
	Service        string
	Answerer       ports.QuestionAnswerer
	Stats          ports.RetrieverStats
	History        ports.HistoryStore
	Metrics        *metrics.HTTPServerMetrics
	HistoryLimit   int
	RateLimitRPS   float64
	RateLimitBurst int
	MaxInFlight    int
	GraphConnected bool
	QueueConnected bool
}

type Router struct {
	cfg RouterConfig
}

func NewRouter(cfg RouterConfig) *Router {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 50
	}
	return &Router{cfg: cfg}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", rt.chat)
	mux.HandleFunc("/api/health", rt.health)
	mux.HandleFunc("/api/chat-history", rt.chatHistory)
	if rt.cfg.Metrics != nil {
		mux.Handle("/metrics", rt.cfg.Metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.cfg.MaxInFlight > 0 {
		handler = backpressureMiddleware(handler, rt.cfg.MaxInFlight, 100*time.Millisecond)
	}
	if rt.cfg.RateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst)
	}
	if rt.cfg.Metrics != nil {
		handler = rt.cfg.Metrics.Middleware(rt.cfg.Service, handler)
	}
	handler = corsMiddleware(handler)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) chat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message is required"})
		return
	}

	start := time.Now()
	answer := rt.cfg.Answerer.AnswerQuestion(r.Context(), req.Message)
	if rt.cfg.Metrics != nil {
		rt.cfg.Metrics.RecordQuestion(
			rt.cfg.Service,
			time.Since(start),
			answer.Text == usecase.InsufficientContextPhrase,
			answer.UsedTemplate,
			answer.GraphRows,
			answer.ChunksRetrieved,
		)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"response":      answer.Text,
		"graph_result":  answer.GraphDiagnostic,
		"vector_result": answer.VectorDiagnostic,
		"query":         answer.Query,
	})
}

func (rt *Router) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var corpus domain.CorpusStats
	if rt.cfg.Stats != nil {
		corpus = rt.cfg.Stats.Stats()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"graph_connected": rt.cfg.GraphConnected,
		"queue_connected": rt.cfg.QueueConnected,
		"corpus":          corpus,
	})
}

func (rt *Router) chatHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if rt.cfg.History == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "chat history not configured"})
		return
	}

	limit := rt.cfg.HistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		if parsed < limit {
			limit = parsed
		}
	}

	entries, err := rt.cfg.History.ListRecent(r.Context(), limit)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
