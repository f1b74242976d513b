package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"ad_copy_planner/catalog"
	"ad_copy_planner/generator"
	"ad_copy_planner/history"
)

// maxImageBytes 上传图片大小上限。
const maxImageBytes = 10 << 20

var errSessionNotFound = errors.New("session not found")

// Options 注入服务依赖。Agent 为 nil 时 AgentErr 说明原因（通常是缺少 API key）。
type Options struct {
	Agent     *generator.Agent
	AgentErr  error
	Catalog   catalog.Store
	History   *history.Store
	JWTSecret string
}

type Server struct {
	agent    *generator.Agent
	agentErr error
	catalog  catalog.Store
	history  *history.Store
	store    *sessionStore
	auth     authenticator
}

// sessionEntry 的 tenantID 在创建后不变，读取它不需要 mu。
type sessionEntry struct {
	tenantID string
	mu       sync.Mutex
	sess     generator.Session
}

type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

func newStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*sessionEntry)}
}

func (s *sessionStore) set(sess generator.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = &sessionEntry{tenantID: sess.TenantID, sess: sess}
}

func (s *sessionStore) entry(tenantID, id string) (*sessionEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok || e.tenantID != tenantID {
		return nil, false
	}
	return e, true
}

func (s *sessionStore) get(tenantID, id string) (generator.Session, bool) {
	e, ok := s.entry(tenantID, id)
	if !ok {
		return generator.Session{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess, true
}

// update 串行化同一 session 上的操作；fn 返回错误时保留原 session。
func (s *sessionStore) update(tenantID, id string, fn func(generator.Session) (generator.Session, error)) (generator.Session, error) {
	e, ok := s.entry(tenantID, id)
	if !ok {
		return generator.Session{}, errSessionNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	next, err := fn(e.sess)
	if err != nil {
		return e.sess, err
	}
	e.sess = next
	return next, nil
}

func New(opts Options) (*Server, error) {
	if opts.Agent == nil && opts.AgentErr == nil {
		return nil, errors.New("generator agent required")
	}
	if opts.Catalog == nil {
		return nil, errors.New("catalog store required")
	}
	if opts.History == nil {
		return nil, errors.New("history store required")
	}
	return &Server{
		agent:    opts.Agent,
		agentErr: opts.AgentErr,
		catalog:  opts.Catalog,
		history:  opts.History,
		store:    newStore(),
		auth:     authenticator{secret: []byte(opts.JWTSecret)},
	}, nil
}

func (s *Server) Routes() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /api/sessions", s.handleSessionCreate)
	api.HandleFunc("GET /api/sessions/{id}", s.handleSessionGet)
	api.HandleFunc("POST /api/sessions/{id}/script", s.handleSessionScript)
	api.HandleFunc("POST /api/sessions/{id}/image", s.handleSessionImage)
	api.HandleFunc("DELETE /api/sessions/{id}/seed", s.handleSessionClearSeed)
	api.HandleFunc("POST /api/sessions/{id}/turns", s.handleSessionTurn)
	api.HandleFunc("POST /api/sessions/{id}/generate", s.handleSessionGenerate)
	api.HandleFunc("POST /api/sessions/{id}/regenerate", s.handleSessionRegenerate)
	api.HandleFunc("POST /api/sessions/{id}/batches/{n}", s.handleSessionBatch)
	api.HandleFunc("POST /api/generate/stream", s.handleBatchStream)
	api.HandleFunc("POST /api/copies", s.handleCopies)

	api.HandleFunc("GET /api/history", s.handleHistoryList)
	api.HandleFunc("DELETE /api/history/{id}", s.handleHistoryDelete)
	api.HandleFunc("GET /api/history/{id}/export.csv", s.handleHistoryExport)

	api.HandleFunc("GET /api/advertisers", s.handleAdvertiserList)
	api.HandleFunc("POST /api/advertisers", s.handleAdvertiserSave)
	api.HandleFunc("GET /api/advertisers/{id}", s.handleAdvertiserGet)
	api.HandleFunc("PUT /api/advertisers/{id}", s.handleAdvertiserSave)
	api.HandleFunc("DELETE /api/advertisers/{id}", s.handleAdvertiserDelete)

	api.HandleFunc("GET /api/plans", s.handlePlanList)
	api.HandleFunc("POST /api/plans", s.handlePlanSave)
	api.HandleFunc("GET /api/plans/{id}", s.handlePlanGet)
	api.HandleFunc("PUT /api/plans/{id}", s.handlePlanSave)
	api.HandleFunc("DELETE /api/plans/{id}", s.handlePlanDelete)
	api.HandleFunc("GET /api/plans/{id}/export.html", s.handlePlanExport)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("/api/", s.auth.middleware(api))
	return logMiddleware(mux)
}

// requireAgent 在模型未配置时返回 503，不产生任何部分数据。
func (s *Server) requireAgent(w http.ResponseWriter) bool {
	if s.agent != nil {
		return true
	}
	err := s.agentErr
	if err == nil {
		err = generator.ErrMissingCredential
	}
	writeError(w, http.StatusServiceUnavailable, err)
	return false
}

// brandFor 加载广告主品牌信息；advertiserID 为空时返回 nil。
func (s *Server) brandFor(ctx context.Context, tenantID, advertiserID string) (*generator.Brand, error) {
	if advertiserID == "" {
		return nil, nil
	}
	adv, err := s.catalog.GetAdvertiser(ctx, tenantID, advertiserID)
	if err != nil {
		return nil, err
	}
	return adv.Brand(), nil
}

// --- Helpers ---

func newSessionID() string {
	return uuid.NewString()
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errBadRequest{err}
	}
	return nil
}

type errBadRequest struct{ err error }

func (e errBadRequest) Error() string { return "invalid JSON body: " + e.err.Error() }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps domain errors to HTTP status codes; fallback covers the rest.
func statusFor(err error, fallback int) int {
	var bad errBadRequest
	switch {
	case errors.As(err, &bad),
		errors.Is(err, catalog.ErrInvalid),
		errors.Is(err, generator.ErrNoSeed),
		errors.Is(err, generator.ErrNothingToRegenerate),
		errors.Is(err, generator.ErrUnknownBatch):
		return http.StatusBadRequest
	case errors.Is(err, generator.ErrNotReady):
		return http.StatusConflict
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, history.ErrNotFound),
		errors.Is(err, errSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, generator.ErrMissingCredential):
		return http.StatusServiceUnavailable
	}
	return fallback
}

func writeError(w http.ResponseWriter, fallback int, err error) {
	writeJSON(w, statusFor(err, fallback), map[string]string{"error": err.Error()})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying Flusher.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		path := r.URL.Path
		if path == "" {
			path = "/"
		}
		log.Info().
			Str("method", r.Method).
			Str("path", path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	})
}
