package session

import (
	"github.com/taxpilot/taxpilot/internal/profile"
)

// Roles for conversation turns.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is a single conversation entry.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Store is the session state manager contract. Profiles, documents, and
// conversations are three independent families keyed by an opaque session
// identifier — a conversation may exist without a profile or document and
// vice versa; no referential integrity is enforced between them.
type Store interface {
	GetProfile(sessionID string) (profile.Business, bool, error)
	PutProfile(sessionID string, p profile.Business) error

	GetDocument(sessionID string) (string, bool, error)
	PutDocument(sessionID string, text string) error
	DeleteDocument(sessionID string) error

	GetConversation(sessionID string) ([]Turn, bool, error)
	PutConversation(sessionID string, turns []Turn) error
}
