package profile

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

const extractionTimeout = 15 * time.Second

// StructuredClient is the structured-extraction capability of the model
// facade. Implemented by groq.Client.
type StructuredClient interface {
	ExtractJSON(ctx context.Context, instruction, message string) (json.RawMessage, error)
}

// Store is the subset of session state the Extractor needs.
// Implemented by session.Memory and storage.Store.
type Store interface {
	GetProfile(sessionID string) (Business, bool, error)
	PutProfile(sessionID string, p Business) error
}

// Extractor infers business profile fields from free-text user messages and
// merges non-empty results into the session's stored profile.
type Extractor struct {
	client StructuredClient
	store  Store
}

// NewExtractor creates an Extractor using the given model client and store.
func NewExtractor(client StructuredClient, store Store) *Extractor {
	return &Extractor{client: client, store: store}
}

// Extract ensures a default profile exists for the session, asks the model
// for structured fields, and merges non-empty values. On any failure — the
// call erroring, storage erroring, or the response not matching the expected
// shape — the error is logged and the previously stored profile is returned
// unchanged: extraction never fails the chat turn.
func (e *Extractor) Extract(ctx context.Context, sessionID, message string) Business {
	stored, ok, err := e.store.GetProfile(sessionID)
	if err != nil {
		slog.Warn("profile extraction: loading stored profile failed", "session_id", sessionID, "error", err)
		return Business{}
	}
	if !ok {
		if err := e.store.PutProfile(sessionID, stored); err != nil {
			slog.Warn("profile extraction: creating default profile failed", "session_id", sessionID, "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, extractionTimeout)
	defer cancel()

	raw, err := e.client.ExtractJSON(ctx, extractionPrompt, extractionQuery(message))
	if err != nil {
		slog.Warn("profile extraction call failed", "session_id", sessionID, "error", err)
		return stored
	}

	var upd Update
	if err := json.Unmarshal(raw, &upd); err != nil {
		slog.Warn("failed to unmarshal profile fields from model response", "error", err, "response", string(raw))
		return stored
	}

	stored.Merge(upd)
	if err := e.store.PutProfile(sessionID, stored); err != nil {
		slog.Warn("profile extraction: saving merged profile failed", "session_id", sessionID, "error", err)
	}
	return stored
}
