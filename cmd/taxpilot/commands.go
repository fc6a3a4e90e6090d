package main

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taxpilot/taxpilot/internal/config"
)

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Ask the tax advisor a question",
	Long: `Ask the tax advisor a question.

Examples:
  taxpilot ask "What is the GST rate on restaurant services?"
  taxpilot ask --session my-shop "When is my GSTR-3B due?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		message := strings.Join(args, " ")
		sessionID, _ := cmd.Flags().GetString("session")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]string{"message": message}
		if sessionID != "" {
			req["sessionId"] = sessionID
		}

		resp, err := client.post(cmd.Context(), "/api/chat", req)
		if err != nil {
			return err
		}

		var result struct {
			Reply     string `json:"reply"`
			SessionID string `json:"sessionId"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result.Reply)
		if sessionID == "" {
			fmt.Fprintf(os.Stderr, "\n(session: %s)\n", result.SessionID)
		}
		return nil
	},
}

func init() {
	askCmd.Flags().String("session", "", "session id to continue a conversation")
}

// --- upload ---

var uploadCmd = &cobra.Command{
	Use:   "upload <file.pdf>",
	Short: "Upload a PDF document for grounded answers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		sessionID, _ := cmd.Flags().GetString("session")

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening file: %w", err)
		}
		defer f.Close()

		var buf strings.Builder
		writer := multipart.NewWriter(&buf)
		part, err := writer.CreateFormFile("pdf", filepath.Base(path))
		if err != nil {
			return err
		}
		if _, err := io.Copy(part, f); err != nil {
			return fmt.Errorf("reading file: %w", err)
		}
		if sessionID != "" {
			if err := writer.WriteField("sessionId", sessionID); err != nil {
				return err
			}
		}
		if err := writer.Close(); err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.postMultipart(cmd.Context(), "/api/upload-pdf", writer.FormDataContentType(), strings.NewReader(buf.String()))
		if err != nil {
			return err
		}

		var result struct {
			Message   string `json:"message"`
			SessionID string `json:"sessionId"`
			Filename  string `json:"filename"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("%s (session %s)", result.Message, result.SessionID)
		return nil
	},
}

func init() {
	uploadCmd.Flags().String("session", "", "session id to attach the document to")
}

// --- reset ---

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear a session's conversation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]string{}
		if sessionID != "" {
			req["sessionId"] = sessionID
		}

		resp, err := client.post(cmd.Context(), "/api/reset", req)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("%s", result["message"])
		return nil
	},
}

func init() {
	resetCmd.Flags().String("session", "", "session id to reset")
}

// --- profile ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage the business profile",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the business profile as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := "/api/business-profile"
		if sessionID != "" {
			path += "?sessionId=" + sessionID
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var profile any
		if err := decodeJSON(resp, &profile); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(profile)
	},
}

var profileSetCmd = &cobra.Command{
	Use:   "set <field> <value>",
	Short: "Set a business profile field",
	Long: `Set a business profile field.

Fields: business_type, industry, revenue_range, tax_filing_status,
last_filing_date, gst_number, location, compliance_concerns
(compliance_concerns takes a comma-separated list).`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		field, value := args[0], args[1]
		sessionID, _ := cmd.Flags().GetString("session")

		update := map[string]any{}
		if field == "compliance_concerns" {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			update[field] = parts
		} else {
			update[field] = value
		}

		req := map[string]any{"profile": update}
		if sessionID != "" {
			req["sessionId"] = sessionID
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/api/business-profile", req)
		if err != nil {
			return err
		}

		var result struct {
			Message string `json:"message"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Set %s = %s", field, value)
		return nil
	},
}

func init() {
	profileShowCmd.Flags().String("session", "", "session id")
	profileSetCmd.Flags().String("session", "", "session id")
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileSetCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadClient()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
