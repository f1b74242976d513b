package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"ad_copy_planner/generator"
	"ad_copy_planner/history"
	"ad_copy_planner/publisher"
)

type sessionCreateReq struct {
	AdvertiserID string `json:"advertiser_id"`
	Script       string `json:"script"`
}

type sessionResp struct {
	Session         generator.Session `json:"session"`
	Readiness       int               `json:"readiness"`
	ReadyToGenerate bool              `json:"ready_to_generate"`
}

type scriptReq struct {
	Script string `json:"script"`
}

type turnReq struct {
	Text string `json:"text"`
}

type turnResp struct {
	Reply           string   `json:"reply"`
	Options         []string `json:"options,omitempty"`
	MultiSelect     bool     `json:"multi_select"`
	Readiness       int      `json:"readiness"`
	ReadyToGenerate bool     `json:"ready_to_generate"`
}

type regenerateReq struct {
	Feedback string `json:"feedback"`
}

type copiesReq struct {
	Brief        string `json:"brief"`
	AdvertiserID string `json:"advertiser_id"`
}

// progressEvent 是 generate 接口 NDJSON 模式下的一行。
type progressEvent struct {
	Batch  *generator.BatchState `json:"batch,omitempty"`
	Result *generateResp         `json:"result,omitempty"`
	Error  string                `json:"error,omitempty"`
}

type generateResp struct {
	sessionResp
	Run generator.RunResult `json:"run"`
}

func (s *Server) sessionResponse(sess generator.Session) sessionResp {
	tr := s.tracker()
	return sessionResp{
		Session:         sess,
		Readiness:       sess.Readiness(tr),
		ReadyToGenerate: tr.Ready(sess.Turns, sess.Seed.Present()),
	}
}

func (s *Server) tracker() generator.Tracker {
	if s.agent == nil {
		return generator.Tracker{ReadyTurns: generator.DefaultReadyTurns}
	}
	return s.agent.Tracker()
}

func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	var req sessionCreateReq
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	tenant := tenantFrom(r.Context())
	brand, err := s.brandFor(r.Context(), tenant, req.AdvertiserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	sess := generator.NewSession(newSessionID(), tenant)
	sess.AdvertiserID = req.AdvertiserID
	sess.Brand = brand
	if strings.TrimSpace(req.Script) != "" {
		if !s.requireAgent(w) {
			return
		}
		sess, err = s.agent.StartScript(r.Context(), sess, req.Script)
		if err != nil {
			writeError(w, http.StatusBadGateway, err)
			return
		}
	}
	s.store.set(sess)
	writeJSON(w, http.StatusCreated, s.sessionResponse(sess))
}

func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.store.get(tenantFrom(r.Context()), r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, errSessionNotFound)
		return
	}
	writeJSON(w, http.StatusOK, s.sessionResponse(sess))
}

func (s *Server) handleSessionScript(w http.ResponseWriter, r *http.Request) {
	if !s.requireAgent(w) {
		return
	}
	var req scriptReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sess, err := s.store.update(tenantFrom(r.Context()), r.PathValue("id"), func(sess generator.Session) (generator.Session, error) {
		return s.agent.StartScript(r.Context(), sess, req.Script)
	})
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sessionResponse(sess))
}

func (s *Server) handleSessionImage(w http.ResponseWriter, r *http.Request) {
	if !s.requireAgent(w) {
		return
	}
	img, err := readImage(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sess, err := s.store.update(tenantFrom(r.Context()), r.PathValue("id"), func(sess generator.Session) (generator.Session, error) {
		return s.agent.StartImage(r.Context(), sess, img)
	})
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sessionResponse(sess))
}

// readImage 读取 multipart 字段 "image"。
func readImage(w http.ResponseWriter, r *http.Request) (generator.Image, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)
	file, header, err := r.FormFile("image")
	if err != nil {
		return generator.Image{}, fmt.Errorf("image upload: %w", err)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return generator.Image{}, fmt.Errorf("image upload: %w", err)
	}
	mime := header.Header.Get("Content-Type")
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mime, "image/") {
		return generator.Image{}, fmt.Errorf("image upload: unsupported content type %q", mime)
	}
	return generator.Image{Data: data, MIMEType: mime}, nil
}

func (s *Server) handleSessionClearSeed(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.update(tenantFrom(r.Context()), r.PathValue("id"), func(sess generator.Session) (generator.Session, error) {
		return sess.ClearSeed(), nil
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sessionResponse(sess))
}

func (s *Server) handleSessionTurn(w http.ResponseWriter, r *http.Request) {
	if !s.requireAgent(w) {
		return
	}
	var req turnReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, errors.New("text is required"))
		return
	}
	sess, err := s.store.update(tenantFrom(r.Context()), r.PathValue("id"), func(sess generator.Session) (generator.Session, error) {
		return s.agent.Respond(r.Context(), sess, req.Text)
	})
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	last, _ := sess.LastTurn()
	tr := s.tracker()
	writeJSON(w, http.StatusOK, turnResp{
		Reply:           last.Text,
		Options:         last.Options,
		MultiSelect:     last.MultiSelect,
		Readiness:       sess.Readiness(tr),
		ReadyToGenerate: tr.Ready(sess.Turns, sess.Seed.Present()),
	})
}

func (s *Server) handleSessionGenerate(w http.ResponseWriter, r *http.Request) {
	s.runGeneration(w, r, func(sess generator.Session, onUpdate generator.UpdateFunc) (generator.Session, generator.RunResult, error) {
		return s.agent.Generate(r.Context(), sess, onUpdate)
	})
}

func (s *Server) handleSessionRegenerate(w http.ResponseWriter, r *http.Request) {
	var req regenerateReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.runGeneration(w, r, func(sess generator.Session, onUpdate generator.UpdateFunc) (generator.Session, generator.RunResult, error) {
		return s.agent.Regenerate(r.Context(), sess, req.Feedback, onUpdate)
	})
}

type runFunc func(generator.Session, generator.UpdateFunc) (generator.Session, generator.RunResult, error)

// runGeneration 执行一次生成；Accept: application/x-ndjson 时逐批推送预览。
func (s *Server) runGeneration(w http.ResponseWriter, r *http.Request, run runFunc) {
	if !s.requireAgent(w) {
		return
	}
	tenant := tenantFrom(r.Context())
	id := r.PathValue("id")
	if _, ok := s.store.get(tenant, id); !ok {
		writeError(w, http.StatusNotFound, errSessionNotFound)
		return
	}

	var nw *ndjsonWriter
	var onUpdate generator.UpdateFunc
	if strings.Contains(r.Header.Get("Accept"), "application/x-ndjson") {
		nw = newNDJSONWriter(w)
		onUpdate = func(st generator.BatchState) {
			nw.send(progressEvent{Batch: &st})
		}
	}

	var res generator.RunResult
	sess, err := s.store.update(tenant, id, func(sess generator.Session) (generator.Session, error) {
		next, out, err := run(sess, onUpdate)
		res = out
		return next, err
	})
	if err != nil {
		if nw != nil {
			nw.send(progressEvent{Error: err.Error()})
			return
		}
		writeError(w, http.StatusBadGateway, err)
		return
	}

	if !res.Skipped && len(res.Variations) > 0 {
		if err := s.history.Add(history.NewEntry(sess)); err != nil {
			log.Error().Err(err).Str("session", sess.ID).Msg("failed to write history")
		}
	}
	if err := res.Err(); err != nil {
		log.Warn().Err(err).Str("session", sess.ID).Msg("generation finished with failed batches")
	}

	out := generateResp{sessionResp: s.sessionResponse(sess), Run: res}
	if nw != nil {
		nw.send(progressEvent{Result: &out})
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleSessionBatch streams batch n of the session's generation run.
func (s *Server) handleSessionBatch(w http.ResponseWriter, r *http.Request) {
	if !s.requireAgent(w) {
		return
	}
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid batch index %q", r.PathValue("n")))
		return
	}
	sess, ok := s.store.get(tenantFrom(r.Context()), r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, errSessionNotFound)
		return
	}
	req, err := s.agent.BatchRequest(sess, n)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.streamBatch(w, r, req)
}

// handleBatchStream is the internal generation API: one batch in, a JSON-lines
// stream of {text}/{done}/{error} out.
func (s *Server) handleBatchStream(w http.ResponseWriter, r *http.Request) {
	if !s.requireAgent(w) {
		return
	}
	var req generator.BatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !req.Seed.Present() {
		writeError(w, http.StatusBadRequest, generator.ErrNoSeed)
		return
	}
	s.streamBatch(w, r, req)
}

func (s *Server) streamBatch(w http.ResponseWriter, r *http.Request, req generator.BatchRequest) {
	events, err := s.agent.OpenBatch(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	nw := newNDJSONWriter(w)
	for ev := range events {
		nw.send(ev)
	}
}

func (s *Server) handleCopies(w http.ResponseWriter, r *http.Request) {
	if !s.requireAgent(w) {
		return
	}
	var req copiesReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	brand, err := s.brandFor(r.Context(), tenantFrom(r.Context()), req.AdvertiserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	ideas, err := s.agent.Copies(r.Context(), req.Brief, brand)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="copies.csv"`)
		if err := publisher.WriteCopyIdeasCSV(w, ideas); err != nil {
			log.Error().Err(err).Msg("failed to write copies csv")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"copies": ideas})
}

// ndjsonWriter 串行化多个批次 goroutine 的写入并在每行后 flush。
type ndjsonWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
	rc  *http.ResponseController
}

func newNDJSONWriter(w http.ResponseWriter) *ndjsonWriter {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	return &ndjsonWriter{enc: json.NewEncoder(w), rc: http.NewResponseController(w)}
}

func (n *ndjsonWriter) send(v any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.enc.Encode(v); err != nil {
		return
	}
	_ = n.rc.Flush()
}
