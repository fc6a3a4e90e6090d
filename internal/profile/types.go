package profile

// Business is the fixed-shape business profile maintained per session.
// Fields are optional scalars except ComplianceConcerns, which only grows
// via de-duplicated union. No other fields are ever added.
type Business struct {
	BusinessType       string   `json:"business_type"`
	Industry           string   `json:"industry"`
	RevenueRange       string   `json:"revenue_range"`
	TaxFilingStatus    string   `json:"tax_filing_status"`
	LastFilingDate     string   `json:"last_filing_date"`
	GSTNumber          string   `json:"gst_number"`
	Location           string   `json:"location"`
	ComplianceConcerns []string `json:"compliance_concerns"`
}

// Update carries a partial set of profile values, as returned by the
// extraction model or supplied by a direct profile update. Nil pointers
// mean "not mentioned".
type Update struct {
	BusinessType       *string  `json:"business_type"`
	Industry           *string  `json:"industry"`
	RevenueRange       *string  `json:"revenue_range"`
	TaxFilingStatus    *string  `json:"tax_filing_status"`
	LastFilingDate     *string  `json:"last_filing_date"`
	GSTNumber          *string  `json:"gst_number"`
	Location           *string  `json:"location"`
	ComplianceConcerns []string `json:"compliance_concerns"`
}

// IsEmpty reports whether the update carries no values at all.
func (u Update) IsEmpty() bool {
	return u.BusinessType == nil &&
		u.Industry == nil &&
		u.RevenueRange == nil &&
		u.TaxFilingStatus == nil &&
		u.LastFilingDate == nil &&
		u.GSTNumber == nil &&
		u.Location == nil &&
		len(u.ComplianceConcerns) == 0
}

// Merge applies an update to the profile. Scalar fields overwrite only when
// the update carries a non-empty value (last write wins, no weighting).
// Compliance concerns are appended in first-seen order, skipping duplicates;
// nothing is ever removed by this path.
func (b *Business) Merge(u Update) {
	mergeScalar(&b.BusinessType, u.BusinessType)
	mergeScalar(&b.Industry, u.Industry)
	mergeScalar(&b.RevenueRange, u.RevenueRange)
	mergeScalar(&b.TaxFilingStatus, u.TaxFilingStatus)
	mergeScalar(&b.LastFilingDate, u.LastFilingDate)
	mergeScalar(&b.GSTNumber, u.GSTNumber)
	mergeScalar(&b.Location, u.Location)

	for _, concern := range u.ComplianceConcerns {
		if concern == "" || containsString(b.ComplianceConcerns, concern) {
			continue
		}
		b.ComplianceConcerns = append(b.ComplianceConcerns, concern)
	}
}

// Clone returns a copy that shares no slice storage with the receiver.
func (b Business) Clone() Business {
	cp := b
	if b.ComplianceConcerns != nil {
		cp.ComplianceConcerns = make([]string, len(b.ComplianceConcerns))
		copy(cp.ComplianceConcerns, b.ComplianceConcerns)
	}
	return cp
}

func mergeScalar(dst *string, src *string) {
	if src != nil && *src != "" {
		*dst = *src
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
