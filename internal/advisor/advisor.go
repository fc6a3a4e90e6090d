package advisor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/taxpilot/taxpilot/internal/composer"
	"github.com/taxpilot/taxpilot/internal/conversation"
	"github.com/taxpilot/taxpilot/internal/groq"
	"github.com/taxpilot/taxpilot/internal/profile"
	"github.com/taxpilot/taxpilot/internal/session"
)

// taxKnowledgePrompt is the static system directive sent with every
// completion request. The per-session system turn carries the uploaded
// document grounding; this one carries current filing knowledge.
const taxKnowledgePrompt = `You are a knowledgeable tax advisor specializing in GST (Goods and Services Tax) and other business tax regulations.
Provide accurate tax advice, compliance guidance, and tax optimization strategies for business owners.

Current GST knowledge (as of October 2024):
- Regular GST filing deadlines: GSTR-1 by 11th, GSTR-3B by 20th of each month
- Composition scheme: Quarterly returns (CMP-08) by 18th of month following quarter end
- Annual return (GSTR-9) by December 31st
- Current GST slabs: 0%, 5%, 12%, 18%, and 28%
- E-invoicing mandatory for businesses with turnover >Rs.5 crore
- Input Tax Credit (ITC) must be claimed within specified time limits

Remember to always provide disclaimers when appropriate, encouraging users to consult with a professional tax advisor for final decisions.

If you know the user's business details from previous conversations, use that information to personalize your response.`

// Completer is the completion capability of the model facade.
// Implemented by groq.Client.
type Completer interface {
	Complete(ctx context.Context, messages []groq.Message) (string, error)
}

// DocumentReader is the document lookup the Advisor needs.
// Implemented by session.Memory and storage.Store.
type DocumentReader interface {
	GetDocument(sessionID string) (string, bool, error)
}

// Advisor runs a full chat turn: profile extraction, context assembly,
// history mutation, and the completion call, serialized per session.
type Advisor struct {
	extractor *profile.Extractor
	conv      *conversation.Manager
	comp      *composer.Composer
	docs      DocumentReader
	completer Completer
	locks     *session.Locker
}

// New wires an Advisor to all turn components.
func New(
	extractor *profile.Extractor,
	conv *conversation.Manager,
	comp *composer.Composer,
	docs DocumentReader,
	completer Completer,
	locks *session.Locker,
) *Advisor {
	return &Advisor{
		extractor: extractor,
		conv:      conv,
		comp:      comp,
		docs:      docs,
		completer: completer,
		locks:     locks,
	}
}

// Chat processes one turn for the session and returns the model's reply.
// Extraction failures degrade to the stored profile; a completion failure is
// terminal for this turn only — the appended user turn stays in history so
// the next turn can retry.
func (a *Advisor) Chat(ctx context.Context, sessionID, message string) (string, error) {
	unlock := a.locks.Lock(sessionID)
	defer unlock()

	start := time.Now()

	prof := a.extractor.Extract(ctx, sessionID, message)

	docText, _, err := a.docs.GetDocument(sessionID)
	if err != nil {
		slog.Warn("loading session document failed, continuing without it", "session_id", sessionID, "error", err)
		docText = ""
	}

	if err := a.conv.EnsureInitialized(sessionID); err != nil {
		return "", fmt.Errorf("initializing conversation: %w", err)
	}

	enriched := a.comp.Build(message, prof, docText)

	if err := a.conv.AppendUser(sessionID, message); err != nil {
		return "", fmt.Errorf("appending user turn: %w", err)
	}

	reply, err := a.completer.Complete(ctx, []groq.Message{
		{Role: session.RoleSystem, Content: taxKnowledgePrompt},
		{Role: session.RoleUser, Content: enriched},
	})
	if err != nil {
		return "", fmt.Errorf("fetching chat completion: %w", err)
	}

	if err := a.conv.AppendAssistant(sessionID, reply); err != nil {
		return "", fmt.Errorf("appending assistant turn: %w", err)
	}

	slog.Debug("chat turn complete",
		"session_id", sessionID,
		"has_document", docText != "",
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return reply, nil
}
