package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/taxpilot/taxpilot/internal/conversation"
	"github.com/taxpilot/taxpilot/internal/profile"
	"github.com/taxpilot/taxpilot/internal/session"
)

type stubChat struct {
	reply string
	err   error

	sessionID string
	message   string
}

func (s *stubChat) Chat(ctx context.Context, sessionID, message string) (string, error) {
	s.sessionID = sessionID
	s.message = message
	return s.reply, s.err
}

type stubExtractor struct {
	text string
	err  error
}

func (s stubExtractor) ExtractText(path string) (string, error) {
	return s.text, s.err
}

type testApp struct {
	handler http.Handler
	store   *session.Memory
	chat    *stubChat
}

func newTestApp(t *testing.T, extractor stubExtractor) *testApp {
	t.Helper()
	store := session.NewMemory()
	chat := &stubChat{reply: "default reply"}
	handler := NewHandler(AppDeps{
		Sessions:       store,
		Conversations:  conversation.NewManager(store, 0),
		Advisor:        chat,
		Extractor:      extractor,
		Locks:          session.NewLocker(),
		UploadDir:      t.TempDir(),
		SystemDocChars: 1000,
	})
	return &testApp{handler: handler, store: store, chat: chat}
}

func (a *testApp) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func postJSON(t *testing.T, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshalling request body: %v", err)
	}
	req := httptest.NewRequest("POST", path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	decodeBody(t, rec, &payload)
	return payload.Error.Message
}

func multipartUpload(t *testing.T, filename, content, sessionID string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("pdf", filename)
	if err != nil {
		t.Fatalf("creating form file: %v", err)
	}
	part.Write([]byte(content))
	if sessionID != "" {
		w.WriteField("sessionId", sessionID)
	}
	w.Close()

	req := httptest.NewRequest("POST", "/api/upload-pdf", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, stubExtractor{})
	rec := app.do(t, httptest.NewRequest("GET", "/health", nil))
	if rec.Code != 200 {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestChat(t *testing.T) {
	app := newTestApp(t, stubExtractor{})
	app.chat.reply = "File by the 20th."

	rec := app.do(t, postJSON(t, "/api/chat", map[string]string{
		"message":   "when is GSTR-3B due?",
		"sessionId": "s1",
	}))

	if rec.Code != 200 {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp map[string]string
	decodeBody(t, rec, &resp)
	if resp["reply"] != "File by the 20th." {
		t.Errorf("reply = %q", resp["reply"])
	}
	if resp["sessionId"] != "s1" {
		t.Errorf("sessionId = %q, want s1", resp["sessionId"])
	}
	if app.chat.message != "when is GSTR-3B due?" {
		t.Errorf("advisor got message %q", app.chat.message)
	}
}

func TestChat_GeneratesSessionID(t *testing.T) {
	app := newTestApp(t, stubExtractor{})

	rec := app.do(t, postJSON(t, "/api/chat", map[string]string{"message": "hello"}))

	var resp map[string]string
	decodeBody(t, rec, &resp)
	if resp["sessionId"] == "" {
		t.Error("expected a generated session id")
	}
	if resp["sessionId"] != app.chat.sessionID {
		t.Error("response session id differs from the one passed to the advisor")
	}
}

func TestChat_MissingMessage(t *testing.T) {
	app := newTestApp(t, stubExtractor{})

	rec := app.do(t, postJSON(t, "/api/chat", map[string]string{"sessionId": "s1"}))
	if rec.Code != 400 {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "message is required" {
		t.Errorf("error = %q", msg)
	}
}

func TestChat_AdvisorFailure(t *testing.T) {
	app := newTestApp(t, stubExtractor{})
	app.chat.err = errors.New("upstream down")

	rec := app.do(t, postJSON(t, "/api/chat", map[string]string{"message": "hi"}))
	if rec.Code != 500 {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if msg := errorMessage(t, rec); !strings.Contains(msg, "failed to fetch chat completion") {
		t.Errorf("error = %q", msg)
	}
}

func TestUploadPDF(t *testing.T) {
	app := newTestApp(t, stubExtractor{text: "extracted invoice text"})

	rec := app.do(t, multipartUpload(t, "invoice.pdf", "%PDF-1.4 fake", "s1"))
	if rec.Code != 200 {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp map[string]any
	decodeBody(t, rec, &resp)
	if resp["success"] != true {
		t.Errorf("success = %v, want true", resp["success"])
	}
	if resp["filename"] != "invoice.pdf" {
		t.Errorf("filename = %v", resp["filename"])
	}

	text, ok, _ := app.store.GetDocument("s1")
	if !ok || text != "extracted invoice text" {
		t.Errorf("stored document = %q ok=%v", text, ok)
	}

	turns, ok, _ := app.store.GetConversation("s1")
	if !ok || len(turns) == 0 {
		t.Fatal("conversation not initialized by upload")
	}
	if turns[0].Role != session.RoleSystem ||
		!strings.Contains(turns[0].Content, "extracted invoice text... (and more).") {
		t.Errorf("system turn not grounded: %q", turns[0].Content)
	}
}

func TestUploadPDF_UppercaseExtensionAccepted(t *testing.T) {
	app := newTestApp(t, stubExtractor{text: "x"})

	rec := app.do(t, multipartUpload(t, "RETURN.PDF", "content", "s1"))
	if rec.Code != 200 {
		t.Errorf("status = %d, want 200 for .PDF", rec.Code)
	}
}

func TestUploadPDF_RejectsNonPDF(t *testing.T) {
	app := newTestApp(t, stubExtractor{text: "x"})

	rec := app.do(t, multipartUpload(t, "notes.txt", "plain text", "s1"))
	if rec.Code != 400 {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "only PDF files are allowed" {
		t.Errorf("error = %q", msg)
	}

	// Rejection must not touch session state.
	if _, ok, _ := app.store.GetDocument("s1"); ok {
		t.Error("document stored despite rejection")
	}
	if _, ok, _ := app.store.GetConversation("s1"); ok {
		t.Error("conversation created despite rejection")
	}
}

func TestUploadPDF_MissingFile(t *testing.T) {
	app := newTestApp(t, stubExtractor{})

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	w.WriteField("sessionId", "s1")
	w.Close()

	req := httptest.NewRequest("POST", "/api/upload-pdf", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())

	rec := app.do(t, req)
	if rec.Code != 400 {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "no PDF file uploaded" {
		t.Errorf("error = %q", msg)
	}
}

func TestUploadPDF_ExtractionFailure(t *testing.T) {
	app := newTestApp(t, stubExtractor{err: errors.New("corrupt pdf")})

	rec := app.do(t, multipartUpload(t, "bad.pdf", "garbage", "s1"))
	if rec.Code != 500 {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if _, ok, _ := app.store.GetDocument("s1"); ok {
		t.Error("document stored despite extraction failure")
	}
}

func TestReset(t *testing.T) {
	app := newTestApp(t, stubExtractor{})

	app.store.PutProfile("s1", profile.Business{Location: "Pune"})
	app.store.PutDocument("s1", "doc text")
	app.store.PutConversation("s1", []session.Turn{
		{Role: session.RoleSystem, Content: "directive"},
		{Role: session.RoleUser, Content: "hello"},
	})

	rec := app.do(t, postJSON(t, "/api/reset", map[string]string{"sessionId": "s1"}))
	if rec.Code != 200 {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp map[string]string
	decodeBody(t, rec, &resp)
	if resp["message"] != "Conversation history cleared, but business profile preserved." {
		t.Errorf("message = %q", resp["message"])
	}

	turns, _, _ := app.store.GetConversation("s1")
	if len(turns) != 1 || turns[0].Role != session.RoleSystem {
		t.Errorf("turns after reset = %+v", turns)
	}
	if _, ok, _ := app.store.GetDocument("s1"); ok {
		t.Error("document survived reset")
	}
	p, ok, _ := app.store.GetProfile("s1")
	if !ok || p.Location != "Pune" {
		t.Errorf("profile after reset = %+v ok=%v, want preserved", p, ok)
	}
}

func TestGetProfile(t *testing.T) {
	app := newTestApp(t, stubExtractor{})
	app.store.PutProfile("s1", profile.Business{BusinessType: "LLC"})

	rec := app.do(t, httptest.NewRequest("GET", "/api/business-profile?sessionId=s1", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}

	var p profile.Business
	decodeBody(t, rec, &p)
	if p.BusinessType != "LLC" {
		t.Errorf("BusinessType = %q, want LLC", p.BusinessType)
	}
}

func TestGetProfile_UnknownSession(t *testing.T) {
	app := newTestApp(t, stubExtractor{})

	rec := app.do(t, httptest.NewRequest("GET", "/api/business-profile?sessionId=ghost", nil))
	if rec.Code != 404 {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if msg := errorMessage(t, rec); !strings.Contains(msg, "ghost") {
		t.Errorf("error = %q, want it to name the session", msg)
	}
}

func TestUpdateProfile(t *testing.T) {
	app := newTestApp(t, stubExtractor{})
	app.store.PutProfile("s1", profile.Business{
		Industry:           "retail",
		ComplianceConcerns: []string{"late filing"},
	})

	rec := app.do(t, postJSON(t, "/api/business-profile", map[string]any{
		"sessionId": "s1",
		"profile": map[string]any{
			"business_type":       "LLC",
			"compliance_concerns": []string{"GST mismatch", "late filing"},
		},
	}))
	if rec.Code != 200 {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Message string           `json:"message"`
		Profile profile.Business `json:"profile"`
	}
	decodeBody(t, rec, &resp)
	if resp.Profile.BusinessType != "LLC" {
		t.Errorf("BusinessType = %q", resp.Profile.BusinessType)
	}
	if resp.Profile.Industry != "retail" {
		t.Errorf("Industry = %q, want retail preserved", resp.Profile.Industry)
	}
	want := []string{"late filing", "GST mismatch"}
	if len(resp.Profile.ComplianceConcerns) != 2 ||
		resp.Profile.ComplianceConcerns[0] != want[0] ||
		resp.Profile.ComplianceConcerns[1] != want[1] {
		t.Errorf("ComplianceConcerns = %v, want %v", resp.Profile.ComplianceConcerns, want)
	}
}

func TestUpdateProfile_Empty(t *testing.T) {
	app := newTestApp(t, stubExtractor{})

	rec := app.do(t, postJSON(t, "/api/business-profile", map[string]any{
		"sessionId": "s1",
		"profile":   map[string]any{},
	}))
	if rec.Code != 400 {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "no profile updates provided" {
		t.Errorf("error = %q", msg)
	}
}

func TestUpdateProfile_DefaultSession(t *testing.T) {
	app := newTestApp(t, stubExtractor{})

	rec := app.do(t, postJSON(t, "/api/business-profile", map[string]any{
		"profile": map[string]any{"location": "Mumbai"},
	}))
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}

	p, ok, _ := app.store.GetProfile("default")
	if !ok || p.Location != "Mumbai" {
		t.Errorf("default session profile = %+v ok=%v", p, ok)
	}
}
