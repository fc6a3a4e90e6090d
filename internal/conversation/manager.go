package conversation

import (
	"fmt"

	"github.com/taxpilot/taxpilot/internal/session"
)

// DefaultSystemPrompt is the directive installed as turn 0 of every new
// conversation. Uploading a document replaces it with a grounded variant.
const DefaultSystemPrompt = `You are a knowledgeable tax advisor specializing in GST (Goods and Services Tax) and other business tax regulations.
Provide accurate tax advice, compliance guidance, and tax optimization strategies for business owners.
Remember to always provide disclaimers when appropriate, encouraging users to consult with a professional tax advisor for final decisions.`

const defaultHistoryLimit = 20

// GroundedSystemPrompt returns the system directive installed after a
// document upload. docPrefix is the bounded head of the extracted text; the
// larger per-turn prefix is injected separately by the composer.
func GroundedSystemPrompt(docPrefix string) string {
	return `You are a knowledgeable tax advisor specializing in GST (Goods and Services Tax) and other business tax regulations.
Provide accurate tax advice, compliance guidance, and tax optimization strategies for business owners.
You have access to the following document content: ` + docPrefix + `... (and more).
Answer questions based on this document when relevant.`
}

// Store is the subset of session state the Manager needs.
// Implemented by session.Memory and storage.Store.
type Store interface {
	GetConversation(sessionID string) ([]session.Turn, bool, error)
	PutConversation(sessionID string, turns []session.Turn) error
	DeleteDocument(sessionID string) error
}

// Manager owns conversation history mutation: initialization, appends, the
// retained-size cap, and reset-while-preserving-profile semantics.
type Manager struct {
	store Store
	limit int
}

// NewManager creates a Manager with the given history limit.
// If limit <= 1, the default (20) is used.
func NewManager(store Store, limit int) *Manager {
	if limit <= 1 {
		limit = defaultHistoryLimit
	}
	return &Manager{store: store, limit: limit}
}

// EnsureInitialized creates the history for a session if it does not exist,
// containing the single default system turn. Idempotent.
func (m *Manager) EnsureInitialized(sessionID string) error {
	_, ok, err := m.store.GetConversation(sessionID)
	if err != nil {
		return fmt.Errorf("loading conversation: %w", err)
	}
	if ok {
		return nil
	}
	turns := []session.Turn{{Role: session.RoleSystem, Content: DefaultSystemPrompt}}
	if err := m.store.PutConversation(sessionID, turns); err != nil {
		return fmt.Errorf("initializing conversation: %w", err)
	}
	return nil
}

// SetSystemTurn replaces turn 0 with the given system directive. If the
// history is missing or does not start with a system turn, the directive is
// inserted at the front instead.
func (m *Manager) SetSystemTurn(sessionID, content string) error {
	turns, ok, err := m.store.GetConversation(sessionID)
	if err != nil {
		return fmt.Errorf("loading conversation: %w", err)
	}
	sys := session.Turn{Role: session.RoleSystem, Content: content}
	switch {
	case !ok || len(turns) == 0:
		turns = []session.Turn{sys}
	case turns[0].Role != session.RoleSystem:
		turns = append([]session.Turn{sys}, turns...)
	default:
		turns[0] = sys
	}
	if err := m.store.PutConversation(sessionID, turns); err != nil {
		return fmt.Errorf("saving conversation: %w", err)
	}
	return nil
}

// AppendUser pushes a user turn to the end of the history.
func (m *Manager) AppendUser(sessionID, message string) error {
	return m.append(sessionID, session.Turn{Role: session.RoleUser, Content: message}, false)
}

// AppendAssistant pushes an assistant turn and applies the trim policy:
// once the history exceeds the limit it is rewritten to turn 0 plus the
// most recent limit-1 turns, preserving recency and the system turn.
func (m *Manager) AppendAssistant(sessionID, reply string) error {
	return m.append(sessionID, session.Turn{Role: session.RoleAssistant, Content: reply}, true)
}

func (m *Manager) append(sessionID string, turn session.Turn, trim bool) error {
	turns, ok, err := m.store.GetConversation(sessionID)
	if err != nil {
		return fmt.Errorf("loading conversation: %w", err)
	}
	if !ok {
		turns = []session.Turn{{Role: session.RoleSystem, Content: DefaultSystemPrompt}}
	}
	turns = append(turns, turn)

	if trim && len(turns) > m.limit {
		tail := turns[len(turns)-(m.limit-1):]
		trimmed := make([]session.Turn, 0, m.limit)
		trimmed = append(trimmed, turns[0])
		trimmed = append(trimmed, tail...)
		turns = trimmed
	}

	if err := m.store.PutConversation(sessionID, turns); err != nil {
		return fmt.Errorf("saving conversation: %w", err)
	}
	return nil
}

// History returns the current turns for a session. The second return value
// is false when no history exists yet.
func (m *Manager) History(sessionID string) ([]session.Turn, bool, error) {
	return m.store.GetConversation(sessionID)
}

// Reset re-initializes the history to its system turn alone, synthesizing
// the default directive when turn 0 is missing or not a system turn, and
// deletes any stored document text for the session. The business profile is
// deliberately untouched.
func (m *Manager) Reset(sessionID string) error {
	turns, ok, err := m.store.GetConversation(sessionID)
	if err != nil {
		return fmt.Errorf("loading conversation: %w", err)
	}

	sys := session.Turn{Role: session.RoleSystem, Content: DefaultSystemPrompt}
	if ok && len(turns) > 0 && turns[0].Role == session.RoleSystem {
		sys = turns[0]
	}
	if err := m.store.PutConversation(sessionID, []session.Turn{sys}); err != nil {
		return fmt.Errorf("saving conversation: %w", err)
	}

	if err := m.store.DeleteDocument(sessionID); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}
