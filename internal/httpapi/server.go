package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/mcallaghan/moira/internal/brain"
	"github.com/mcallaghan/moira/internal/companion"
	"github.com/mcallaghan/moira/internal/config"
	"github.com/mcallaghan/moira/internal/family"
	"github.com/mcallaghan/moira/internal/health"
	"github.com/mcallaghan/moira/internal/memory"
	"github.com/mcallaghan/moira/internal/observability"
	"github.com/mcallaghan/moira/internal/research"
	"github.com/mcallaghan/moira/internal/session"
	"github.com/mcallaghan/moira/internal/store"
	"github.com/mcallaghan/moira/internal/voice"
)

// Deps collects everything the API surface exposes. Transcriber, Generator
// and Metrics may be nil; the matching endpoints degrade gracefully.
type Deps struct {
	Companion   *companion.Companion
	Sessions    *session.Manager
	Tracker     *health.Tracker
	Registry    *family.Registry
	DailyLog    *memory.DailyLog
	Memory      memory.Store
	Research    *research.Library
	Generator   brain.Generator
	Records     *store.Store
	Transcriber voice.Transcriber
	Metrics     *observability.Metrics
}

type Server struct {
	cfg      config.Config
	deps     Deps
	paths    store.Paths
	upgrader websocket.Upgrader
	static   http.Handler
}

func New(cfg config.Config, deps Deps, paths store.Paths) *Server {
	return &Server{
		cfg:    cfg,
		deps:   deps,
		paths:  paths,
		static: newStaticHandler(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only allow browser websocket connections from the same
				// origin unless explicitly opened up. A caregiver's chat
				// history is not something another website should reach.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ui/", http.StatusTemporaryRedirect)
	})
	r.Get("/ui", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ui/", http.StatusTemporaryRedirect)
	})
	r.Handle("/ui/*", http.StripPrefix("/ui/", s.static))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/api/chat", s.handleChat)
	r.Get("/api/chat/ws", s.handleChatWS)
	r.Post("/api/transcribe", s.handleTranscribe)
	r.Get("/documents/{filename}", s.handleDocument)
	r.Get("/audio/{filename}", s.handleAudio)

	r.Get("/api/health/issues", s.handleListIssues)
	r.Post("/api/health/issues/{id}/update", s.handleUpdateIssue)
	r.Post("/api/health/issues/{id}/resolve", s.handleResolveIssue)
	r.Get("/api/health/summary/{patient}", s.handleHealthSummary)

	r.Get("/api/family", s.handleListFamily)
	r.Get("/api/logs/{date}", s.handleGetLog)
	r.Post("/api/research/resummarize", s.handleResummarize)
	r.Post("/api/admin/reset", s.handleReset)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ready",
		"family_members":  len(s.deps.Registry.Names()),
		"open_issues":     len(s.deps.Tracker.OpenIssues()),
		"research_cached": s.researchCount(),
	})
}

func (s *Server) researchCount() int {
	if s.deps.Research == nil {
		return 0
	}
	return s.deps.Research.Count()
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID string `json:"session_id"`
	Response  string `json:"response"`
	AudioURL  string `json:"audio_url,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	reply, err := s.deps.Companion.HandleMessage(r.Context(), req.SessionID, req.Message)
	if err != nil {
		if errors.Is(err, companion.ErrEmptyMessage) {
			respondError(w, http.StatusBadRequest, "empty_message", "No message provided")
			return
		}
		respondError(w, http.StatusInternalServerError, "chat_failed", err.Error())
		return
	}
	s.trackSessions()
	respondJSON(w, http.StatusOK, toChatResponse(reply))
}

func toChatResponse(reply companion.Reply) chatResponse {
	out := chatResponse{SessionID: reply.SessionID, Response: reply.Text}
	if reply.AudioFile != "" {
		out.AudioURL = "/audio/" + reply.AudioFile
	}
	return out
}

func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if m := s.deps.Metrics; m != nil {
		m.SessionEvents.WithLabelValues("ws_connected").Inc()
	}

	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Minute))

	for {
		var req chatRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(10 * time.Minute))
		if req.SessionID == "" {
			req.SessionID = sessionID
		}

		reply, err := s.deps.Companion.HandleMessage(r.Context(), req.SessionID, req.Message)
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err != nil {
			if writeErr := conn.WriteJSON(errorResponse{Error: err.Error(), Code: "chat_failed"}); writeErr != nil {
				return
			}
			continue
		}
		sessionID = reply.SessionID
		s.trackSessions()
		if err := conn.WriteJSON(toChatResponse(reply)); err != nil {
			return
		}
	}
}

func (s *Server) trackSessions() {
	if m := s.deps.Metrics; m != nil {
		m.ActiveSessions.Set(float64(s.deps.Sessions.ActiveCount()))
	}
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if s.deps.Transcriber == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "transcription not configured")
		return
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing_audio", "No audio file provided")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(io.LimitReader(file, 25<<20))
	if err != nil {
		respondError(w, http.StatusBadRequest, "read_failed", err.Error())
		return
	}
	text, err := s.deps.Transcriber.Transcribe(r.Context(), audio, header.Filename)
	if err != nil {
		if m := s.deps.Metrics; m != nil {
			m.ProviderErrors.WithLabelValues("transcriber", "transcribe").Inc()
		}
		respondError(w, http.StatusBadGateway, "transcribe_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"text": text})
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	name, ok := safeFilename(chi.URLParam(r, "filename"))
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_filename", "bad document name")
		return
	}
	w.Header().Set("Content-Disposition", "attachment; filename="+name)
	http.ServeFile(w, r, filepath.Join(s.paths.DocumentsDir, name))
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	name, ok := safeFilename(chi.URLParam(r, "filename"))
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_filename", "bad audio name")
		return
	}
	http.ServeFile(w, r, filepath.Join(s.paths.AudioDir, name))
}

// safeFilename rejects anything that could escape the serving directory.
func safeFilename(name string) (string, bool) {
	if name == "" || strings.ContainsAny(name, "/\\") || name != filepath.Base(name) || strings.HasPrefix(name, "..") {
		return "", false
	}
	return name, true
}

func (s *Server) handleListIssues(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"issues": s.deps.Tracker.OpenIssues()})
}

type issueUpdateRequest struct {
	Text   string `json:"text"`
	Status string `json:"status"`
}

func (s *Server) handleUpdateIssue(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req issueUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "update text is required")
		return
	}
	issue, err := s.deps.Tracker.AddUpdate(id, req.Text, req.Status)
	if err != nil {
		if errors.Is(err, health.ErrIssueNotFound) {
			respondError(w, http.StatusNotFound, "issue_not_found", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "update_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, issue)
}

func (s *Server) handleResolveIssue(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	issue, err := s.deps.Tracker.Resolve(id)
	if err != nil {
		if errors.Is(err, health.ErrIssueNotFound) {
			respondError(w, http.StatusNotFound, "issue_not_found", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "resolve_failed", err.Error())
		return
	}
	if m := s.deps.Metrics; m != nil {
		m.HealthResolved.Inc()
	}
	respondJSON(w, http.StatusOK, issue)
}

func (s *Server) handleHealthSummary(w http.ResponseWriter, r *http.Request) {
	patient := chi.URLParam(r, "patient")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(s.deps.Tracker.Summarize(patient)))
}

func (s *Server) handleListFamily(w http.ResponseWriter, _ *http.Request) {
	profiles, err := s.deps.Registry.List()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"family": profiles})
}

func (s *Server) handleGetLog(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if _, err := time.Parse(memory.LogDateLayout, date); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return
	}
	content, err := s.deps.DailyLog.Retrieve(date)
	if err != nil {
		if errors.Is(err, memory.ErrNoLog) {
			respondError(w, http.StatusNotFound, "log_not_found", "no log for "+date)
			return
		}
		respondError(w, http.StatusInternalServerError, "log_read_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"date": date, "log": content})
}

func (s *Server) handleResummarize(w http.ResponseWriter, r *http.Request) {
	if s.deps.Research == nil || s.deps.Generator == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "research library not configured")
		return
	}
	processed, err := s.deps.Research.Resummarize(r.Context(), s.deps.Generator)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "resummarize_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{
		"processed": processed,
		"cached":    s.deps.Research.Count(),
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Records.Reset(); err != nil {
		respondError(w, http.StatusInternalServerError, "reset_failed", err.Error())
		return
	}
	if err := s.deps.Memory.Reset(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, "reset_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
