package profile

// extractionPrompt instructs the model to infer business profile fields from
// a single user message, returning explicit nulls for unmentioned fields.
const extractionPrompt = `You are a business profile analyzer. Extract relevant business information from the user message.
Return ONLY a JSON object with these fields (leave as null if not mentioned):
- business_type: The type of business (e.g., sole proprietorship, LLC, corporation)
- industry: The industry the business operates in
- revenue_range: Annual revenue range (e.g., "under 20 lakhs", "20-50 lakhs", "50 lakhs - 1 crore", "above 1 crore")
- tax_filing_status: Current tax filing status or concerns
- compliance_concerns: Array of specific compliance concerns mentioned
- last_filing_date: Last tax filing date if mentioned
- gst_number: GST registration number if mentioned
- location: Business location if mentioned`

// extractionQuery wraps the raw user message for the extraction call.
func extractionQuery(message string) string {
	return "Extract business information from this message: " + message
}
