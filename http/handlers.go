package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"matclass/features"
	"matclass/ml"
	"matclass/monitoring"
	"matclass/session"
)

// SessionCookie 会话Cookie名称
const SessionCookie = "matclass_session"

type handlers struct {
	sessions  *session.Manager
	predictor ml.Predictor
	hub       *monitoring.Hub
	logger    *zap.Logger
}

func newHandlers(deps Deps) *handlers {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &handlers{
		sessions:  deps.Sessions,
		predictor: deps.Predictor,
		hub:       deps.Hub,
		logger:    deps.Logger,
	}
}

// RegisterHandlers 注册页面与接口
func RegisterHandlers(mux *http.ServeMux, deps Deps) {
	h := newHandlers(deps)
	mux.HandleFunc("GET /{$}", h.handlePage)
	mux.HandleFunc("POST /{$}", h.handleFormSubmit)
	mux.Handle("GET /static/", http.FileServerFS(staticFS))

	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("GET /api/features", h.handleFeatures)
	mux.HandleFunc("PUT /api/features/{index}", h.handleSetFeature)
	mux.HandleFunc("POST /api/predict", h.handlePredict)
	mux.HandleFunc("GET /api/result", h.handleResult)
	if h.hub != nil {
		mux.HandleFunc("GET /api/ws", h.handleWebSocket)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// sessionFor 取得请求对应的会话，必要时创建并下发Cookie
func (h *handlers) sessionFor(w http.ResponseWriter, r *http.Request) *session.Session {
	var id string
	if c, err := r.Cookie(SessionCookie); err == nil {
		id = c.Value
	}
	s, created := h.sessions.GetOrCreate(id)
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    s.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return s
}

// submit 发起预测并等待结果。
// 客户端断开不会取消请求，结果仍写入会话并推送。
func (h *handlers) submit(r *http.Request, s *session.Session) ml.Outcome {
	ctx := context.WithoutCancel(r.Context())
	out := s.Submit(ctx, h.predictor)
	h.logger.Debug("prediction submitted",
		zap.String("request_id", GetRequestID(r.Context())),
		zap.String("session", s.ID),
		zap.String("status", out.Kind.String()),
	)
	return out
}

func (h *handlers) handlePage(w http.ResponseWriter, r *http.Request) {
	s := h.sessionFor(w, r)
	h.renderPage(w, s)
}

func (h *handlers) handleFormSubmit(w http.ResponseWriter, r *http.Request) {
	s := h.sessionFor(w, r)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	for i, key := range features.Keys {
		s.Features.SetFeature(i, r.PostForm.Get(key))
	}
	h.submit(r, s)
	h.renderPage(w, s)
}

type featureView struct {
	Index int    `json:"index"`
	Key   string `json:"key"`
	Label string `json:"label"`
	Unit  string `json:"unit,omitempty"`
	Value string `json:"value"`
}

func featureViews(snapshot [features.Count]string) []featureView {
	views := make([]featureView, features.Count)
	for i := range views {
		views[i] = featureView{
			Index: i,
			Key:   features.Keys[i],
			Label: features.Labels[i],
			Unit:  features.Units[i],
			Value: snapshot[i],
		}
	}
	return views
}

func (h *handlers) handleFeatures(w http.ResponseWriter, r *http.Request) {
	s := h.sessionFor(w, r)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"features": featureViews(s.Features.Snapshot()),
	})
}

type setFeatureRequest struct {
	Value *string `json:"value"`
}

func (h *handlers) handleSetFeature(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || !features.ValidIndex(index) {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("index must be between 0 and %d", features.Count-1))
		return
	}

	var req setFeatureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Value == nil {
		respondError(w, http.StatusBadRequest, "value is required")
		return
	}

	s := h.sessionFor(w, r)
	s.Features.SetFeature(index, *req.Value)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"features": featureViews(s.Features.Snapshot()),
	})
}

type predictRequest struct {
	Features map[string]string `json:"features"`
}

func (h *handlers) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// 先校验全部键名，避免部分写入
	updates := make(map[int]string, len(req.Features))
	for key, value := range req.Features {
		idx := keyIndex(key)
		if idx < 0 {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown feature %q", key))
			return
		}
		updates[idx] = value
	}

	s := h.sessionFor(w, r)
	for idx, value := range updates {
		s.Features.SetFeature(idx, value)
	}
	out := h.submit(r, s)
	respondJSON(w, http.StatusOK, out.View())
}

func (h *handlers) handleResult(w http.ResponseWriter, r *http.Request) {
	s := h.sessionFor(w, r)
	respondJSON(w, http.StatusOK, s.Result.Current().View())
}

func (h *handlers) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s := h.sessionFor(w, r)
	h.hub.Serve(w, r, s.ID)
}

func keyIndex(key string) int {
	for i, k := range features.Keys {
		if k == key {
			return i
		}
	}
	return -1
}

// respondJSON 统一JSON响应
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
