package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/taxpilot/taxpilot/internal/profile"
	"github.com/taxpilot/taxpilot/internal/session"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Sessions session.Store
	Advisor  ChatService
	Locks    *session.Locker
}

// NewMCPServer creates an MCP server exposing the tax advisor over stdio.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"taxpilot",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("taxpilot — session-scoped GST tax advisor with business profile memory and document grounding."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask_tax_advisor",
			mcp.WithDescription("Ask the tax advisor a question. Maintains conversation history and a business profile per session."),
			mcp.WithString("message", mcp.Description("The question to ask"), mcp.Required()),
			mcp.WithString("session_id", mcp.Description("Session identifier; a new one is generated when omitted")),
		),
		mcpAsk(deps),
	)

	s.AddTool(
		mcp.NewTool("get_business_profile",
			mcp.WithDescription("Return the stored business profile for a session as JSON."),
			mcp.WithString("session_id", mcp.Description("Session identifier"), mcp.Required()),
		),
		mcpGetProfile(deps),
	)

	s.AddTool(
		mcp.NewTool("update_business_profile",
			mcp.WithDescription("Merge profile fields into a session's business profile."),
			mcp.WithString("session_id", mcp.Description("Session identifier"), mcp.Required()),
			mcp.WithString("profile", mcp.Description("JSON object of profile fields to merge"), mcp.Required()),
		),
		mcpUpdateProfile(deps),
	)

	return s
}

func mcpAsk(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}

		sessionID := req.GetString("session_id", "")
		if sessionID == "" {
			sessionID = uuid.New().String()
		}

		reply, err := deps.Advisor.Chat(ctx, sessionID, message)
		if err != nil {
			return mcpError(fmt.Sprintf("chat failed: %v", err)), nil
		}

		b, err := json.Marshal(map[string]string{
			"reply":      reply,
			"session_id": sessionID,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGetProfile(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID, err := req.RequireString("session_id")
		if err != nil {
			return mcpError("session_id is required"), nil
		}

		p, ok, err := deps.Sessions.GetProfile(sessionID)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to get profile: %v", err)), nil
		}
		if !ok {
			return mcpError(fmt.Sprintf("no business profile for session %s", sessionID)), nil
		}

		b, err := json.Marshal(p)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal profile: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpUpdateProfile(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID, err := req.RequireString("session_id")
		if err != nil {
			return mcpError("session_id is required"), nil
		}
		fields, err := req.RequireString("profile")
		if err != nil {
			return mcpError("profile is required"), nil
		}

		var upd profile.Update
		if err := json.Unmarshal([]byte(fields), &upd); err != nil {
			return mcpError(fmt.Sprintf("invalid profile JSON: %v", err)), nil
		}
		if upd.IsEmpty() {
			return mcpError("no profile updates provided"), nil
		}

		unlock := deps.Locks.Lock(sessionID)
		defer unlock()

		p, _, err := deps.Sessions.GetProfile(sessionID)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to get profile: %v", err)), nil
		}
		p.Merge(upd)
		if err := deps.Sessions.PutProfile(sessionID, p); err != nil {
			return mcpError(fmt.Sprintf("failed to save profile: %v", err)), nil
		}

		b, err := json.Marshal(p)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal profile: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
