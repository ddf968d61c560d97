package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcallaghan/moira/internal/brain"
	"github.com/mcallaghan/moira/internal/companion"
	"github.com/mcallaghan/moira/internal/config"
	"github.com/mcallaghan/moira/internal/docs"
	"github.com/mcallaghan/moira/internal/family"
	"github.com/mcallaghan/moira/internal/health"
	"github.com/mcallaghan/moira/internal/memory"
	"github.com/mcallaghan/moira/internal/research"
	"github.com/mcallaghan/moira/internal/session"
	"github.com/mcallaghan/moira/internal/store"
	"github.com/mcallaghan/moira/internal/voice"
)

type apiFixture struct {
	server  *Server
	paths   store.Paths
	records *store.Store
	tracker *health.Tracker
	reg     *family.Registry
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	paths := store.NewPaths(t.TempDir())
	if err := paths.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs() error = %v", err)
	}
	records := store.New(paths, nil)
	registry := family.NewRegistry(records)
	tracker := health.NewTracker(records, registry.Names, 90, 80)
	daily := memory.NewDailyLog(paths)
	mem := memory.NewFileStore(records)
	lib := research.NewLibrary(records, paths)
	gen := brain.NewMockGenerator()
	sessions := session.NewManager(time.Minute)

	comp := companion.New(companion.Config{ContextWindow: 5}, companion.Deps{
		Sessions:  sessions,
		Registry:  registry,
		Tracker:   tracker,
		Memory:    mem,
		DailyLog:  daily,
		Research:  lib,
		Generator: gen,
		Documents: docs.NewWriter(paths.DocumentsDir),
	})

	srv := New(config.Config{AllowAnyOrigin: true}, Deps{
		Companion:   comp,
		Sessions:    sessions,
		Tracker:     tracker,
		Registry:    registry,
		DailyLog:    daily,
		Memory:      mem,
		Research:    lib,
		Generator:   gen,
		Records:     records,
		Transcriber: voice.NewMockTranscriber(),
	}, paths)
	return &apiFixture{server: srv, paths: paths, records: records, tracker: tracker, reg: registry}
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func getPath(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestChatEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	router := f.server.Router()

	rec := postJSON(t, router, "/api/chat", map[string]string{"message": "hello there"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var out struct {
		SessionID string `json:"session_id"`
		Response  string `json:"response"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.SessionID == "" || out.Response == "" {
		t.Fatalf("incomplete chat response: %+v", out)
	}
}

func TestChatEndpointRejectsEmptyMessage(t *testing.T) {
	f := newAPIFixture(t)
	rec := postJSON(t, f.server.Router(), "/api/chat", map[string]string{"message": "  "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "empty_message") {
		t.Fatalf("body = %s", rec.Body)
	}
}

func TestHealthIssueLifecycleOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	router := f.server.Router()

	issue, err := f.tracker.Open("Callan", "Callan has a fever")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	rec := getPath(t, router, "/api/health/issues")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), issue.ID) {
		t.Fatalf("list status = %d, body %s", rec.Code, rec.Body)
	}

	rec = postJSON(t, router, "/api/health/issues/"+issue.ID+"/update", map[string]string{"text": "fever down this morning"})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rec.Code, rec.Body)
	}

	rec = postJSON(t, router, "/api/health/issues/"+issue.ID+"/resolve", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("resolve status = %d, body %s", rec.Code, rec.Body)
	}
	if len(f.tracker.OpenIssues()) != 0 {
		t.Fatalf("issue still open after resolve")
	}

	rec = postJSON(t, router, "/api/health/issues/"+issue.ID+"/resolve", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second resolve status = %d, want 404", rec.Code)
	}
}

func TestLogEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	router := f.server.Router()

	if err := os.WriteFile(f.paths.LogFile("2025-06-14"), []byte("[ts] User: hi\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	rec := getPath(t, router, "/api/logs/2025-06-14")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "User: hi") {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	if rec := getPath(t, router, "/api/logs/2025-06-15"); rec.Code != http.StatusNotFound {
		t.Fatalf("missing log status = %d, want 404", rec.Code)
	}
	if rec := getPath(t, router, "/api/logs/june-first"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date status = %d, want 400", rec.Code)
	}
}

func TestFamilyEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	if err := f.reg.Save(family.Profile{Name: "Amelia", Pronouns: "she/her"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	rec := getPath(t, f.server.Router(), "/api/family")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Amelia") {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
}

func TestTranscribeEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("audio", "clip.webm")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("fake-audio")); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	form.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/transcribe", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	rec := httptest.NewRecorder()
	f.server.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "hello moira") {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
}

func TestTranscribeEndpointMissingFile(t *testing.T) {
	f := newAPIFixture(t)
	rec := postJSON(t, f.server.Router(), "/api/transcribe", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDocumentDownload(t *testing.T) {
	f := newAPIFixture(t)
	if err := os.WriteFile(filepath.Join(f.paths.DocumentsDir, "dialogue_20250615_143005.txt"), []byte("User: hi\n"), 0o644); err != nil {
		t.Fatalf("write document: %v", err)
	}
	rec := getPath(t, f.server.Router(), "/documents/dialogue_20250615_143005.txt")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "attachment") {
		t.Fatalf("Content-Disposition = %q", got)
	}
}

func TestSafeFilename(t *testing.T) {
	for _, bad := range []string{"", "../secret", "a/b.txt", `a\b.txt`, ".."} {
		if _, ok := safeFilename(bad); ok {
			t.Fatalf("safeFilename(%q) accepted", bad)
		}
	}
	if name, ok := safeFilename("schedule_today_20250615_143005.txt"); !ok || name == "" {
		t.Fatalf("safeFilename rejected a valid name")
	}
}

func TestResummarizeEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	if err := os.WriteFile(filepath.Join(f.paths.ResearchDir, "study.txt"), []byte("Routine reduces meltdowns."), 0o644); err != nil {
		t.Fatalf("write research file: %v", err)
	}
	rec := postJSON(t, f.server.Router(), "/api/research/resummarize", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var out map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out["processed"] != 1 || out["cached"] != 1 {
		t.Fatalf("resummarize response = %v", out)
	}
}

func TestResetEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	router := f.server.Router()

	if _, err := f.tracker.Open("Callan", "fever"); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	rec := postJSON(t, router, "/api/chat", map[string]string{"message": "hello"})
	if rec.Code != http.StatusOK {
		t.Fatalf("seed chat status = %d", rec.Code)
	}

	if rec := postJSON(t, router, "/api/admin/reset", nil); rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d, body %s", rec.Code, rec.Body)
	}
	if len(f.tracker.OpenIssues()) != 0 {
		t.Fatalf("open issues survived reset")
	}
	mem := memory.NewFileStore(f.records)
	turns, err := mem.Recent(context.Background(), 0)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("memory survived reset: %d turns", len(turns))
	}
}

func TestChatWebSocket(t *testing.T) {
	f := newAPIFixture(t)
	srv := httptest.NewServer(f.server.Router())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]string{"message": "good morning"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var out struct {
		SessionID string `json:"session_id"`
		Response  string `json:"response"`
	}
	if err := conn.ReadJSON(&out); err != nil {
		t.Fatalf("read: %v", err)
	}
	if out.SessionID == "" || out.Response == "" {
		t.Fatalf("incomplete ws reply: %+v", out)
	}

	// Second turn reuses the same session.
	if err := conn.WriteJSON(map[string]string{"message": "and another thing"}); err != nil {
		t.Fatalf("write second: %v", err)
	}
	var second struct {
		SessionID string `json:"session_id"`
	}
	if err := conn.ReadJSON(&second); err != nil {
		t.Fatalf("read second: %v", err)
	}
	if second.SessionID != out.SessionID {
		t.Fatalf("ws session changed between turns: %q vs %q", second.SessionID, out.SessionID)
	}
}
