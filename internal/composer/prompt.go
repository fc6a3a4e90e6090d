package composer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/taxpilot/taxpilot/internal/profile"
)

const defaultDocContextChars = 5000

// unknownValue is rendered for unset scalar profile fields so the model
// always sees the full profile shape.
const unknownValue = "Unknown"

// Composer builds the enriched per-turn input from the raw user message,
// the current business profile, and the session's document text. Output is
// a pure function of its inputs.
type Composer struct {
	DocContextChars int
}

// New creates a Composer with the given document prefix budget.
// If docContextChars <= 0, the default (5000) is used.
func New(docContextChars int) *Composer {
	if docContextChars <= 0 {
		docContextChars = defaultDocContextChars
	}
	return &Composer{DocContextChars: docContextChars}
}

// Build assembles the enriched text. Every profile field is rendered even
// when unset; the document section appears only when docText is non-empty
// and is bounded to the configured prefix.
func (c *Composer) Build(message string, p profile.Business, docText string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "User question: %s\n\n", message)

	sb.WriteString("Business Profile Information:\n")
	writeField(&sb, "Business Type", p.BusinessType)
	writeField(&sb, "Industry", p.Industry)
	writeField(&sb, "Revenue Range", p.RevenueRange)
	writeField(&sb, "Tax Filing Status", p.TaxFilingStatus)
	writeField(&sb, "Compliance Concerns", renderConcerns(p.ComplianceConcerns))
	writeField(&sb, "Last Filing Date", p.LastFilingDate)
	writeField(&sb, "GST Number", p.GSTNumber)
	writeField(&sb, "Location", p.Location)

	if docText != "" {
		fmt.Fprintf(&sb, "\nRelevant document content: %s", Prefix(docText, c.DocContextChars))
	}

	return sb.String()
}

func writeField(sb *strings.Builder, label, value string) {
	if value == "" {
		value = unknownValue
	}
	fmt.Fprintf(sb, "- %s: %s\n", label, value)
}

func renderConcerns(concerns []string) string {
	if len(concerns) == 0 {
		return "None"
	}
	return strings.Join(concerns, ", ")
}

// Prefix returns the first n bytes of s without splitting a multi-byte
// UTF-8 character.
func Prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
