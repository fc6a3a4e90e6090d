package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/taxpilot/taxpilot/internal/composer"
	"github.com/taxpilot/taxpilot/internal/conversation"
	"github.com/taxpilot/taxpilot/internal/document"
	"github.com/taxpilot/taxpilot/internal/profile"
	"github.com/taxpilot/taxpilot/internal/session"
)

const (
	maxRequestBodySize = 1 << 20  // 1MB
	maxUploadBodySize  = 20 << 20 // 20MB
)

// defaultSessionID is used when reset/profile requests omit a session id,
// mirroring the original single-user deployment behavior.
const defaultSessionID = "default"

// ChatService runs a full chat turn. Implemented by advisor.Advisor.
type ChatService interface {
	Chat(ctx context.Context, sessionID, message string) (string, error)
}

// AppDeps holds the collaborators for the HTTP layer.
type AppDeps struct {
	Sessions      session.Store
	Conversations *conversation.Manager
	Advisor       ChatService
	Extractor     document.TextExtractor
	Locks         *session.Locker

	UploadDir      string
	SystemDocChars int    // bounded prefix installed into the system turn
	WebDir         string // optional static asset directory
}

// NewHandler returns the http.Handler for all advisor endpoints.
func NewHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Post("/api/upload-pdf", handleUploadPDF(deps))
	r.Post("/api/chat", handleChat(deps))
	r.Post("/api/reset", handleReset(deps))
	r.Get("/api/business-profile", handleGetProfile(deps))
	r.Post("/api/business-profile", handleUpdateProfile(deps))

	if deps.WebDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(deps.WebDir)))
	}

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleUploadPDF(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBodySize)
		defer r.Body.Close()

		file, header, err := r.FormFile("pdf")
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "no PDF file uploaded")
			return
		}
		defer file.Close()

		if header.Filename == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "no selected file")
			return
		}
		if !document.IsPDFFilename(header.Filename) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "only PDF files are allowed")
			return
		}

		sessionID := r.FormValue("sessionId")
		if sessionID == "" {
			sessionID = uuid.New().String()
		}

		path, err := document.SaveUpload(deps.UploadDir, header.Filename, file)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save upload: %v", err)
			return
		}

		text, err := deps.Extractor.ExtractText(path)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to extract document text: %v", err)
			return
		}

		unlock := deps.Locks.Lock(sessionID)
		defer unlock()

		// Full replace of any prior document for this session.
		if err := deps.Sessions.PutDocument(sessionID, text); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to store document: %v", err)
			return
		}

		if err := deps.Conversations.EnsureInitialized(sessionID); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to initialize conversation: %v", err)
			return
		}
		grounded := conversation.GroundedSystemPrompt(composer.Prefix(text, deps.SystemDocChars))
		if err := deps.Conversations.SetSystemTurn(sessionID, grounded); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to update system turn: %v", err)
			return
		}

		writeJSON(w, map[string]any{
			"success":   true,
			"message":   "PDF uploaded and processed successfully.",
			"sessionId": sessionID,
			"filename":  header.Filename,
		})
	}
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

func handleChat(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Message == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required")
			return
		}

		sessionID := req.SessionID
		if sessionID == "" {
			sessionID = uuid.New().String()
		}

		reply, err := deps.Advisor.Chat(r.Context(), sessionID, req.Message)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to fetch chat completion: %v", err)
			return
		}

		writeJSON(w, map[string]string{
			"reply":     reply,
			"sessionId": sessionID,
		})
	}
}

type resetRequest struct {
	SessionID string `json:"sessionId"`
}

func handleReset(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req resetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		sessionID := req.SessionID
		if sessionID == "" {
			sessionID = defaultSessionID
		}

		unlock := deps.Locks.Lock(sessionID)
		defer unlock()

		if err := deps.Conversations.Reset(sessionID); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to reset conversation: %v", err)
			return
		}

		writeJSON(w, map[string]string{
			"message": "Conversation history cleared, but business profile preserved.",
		})
	}
}

func handleGetProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.URL.Query().Get("sessionId")
		if sessionID == "" {
			sessionID = defaultSessionID
		}

		p, ok, err := deps.Sessions.GetProfile(sessionID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get profile: %v", err)
			return
		}
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "no business profile for session %s", sessionID)
			return
		}

		writeJSON(w, p)
	}
}

type updateProfileRequest struct {
	SessionID string         `json:"sessionId"`
	Profile   profile.Update `json:"profile"`
}

func handleUpdateProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req updateProfileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Profile.IsEmpty() {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "no profile updates provided")
			return
		}

		sessionID := req.SessionID
		if sessionID == "" {
			sessionID = defaultSessionID
		}

		unlock := deps.Locks.Lock(sessionID)
		defer unlock()

		p, _, err := deps.Sessions.GetProfile(sessionID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get profile: %v", err)
			return
		}
		p.Merge(req.Profile)
		if err := deps.Sessions.PutProfile(sessionID, p); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save profile: %v", err)
			return
		}

		writeJSON(w, map[string]any{
			"message": "Business profile updated successfully.",
			"profile": p,
		})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
