package model

import "time"

// ResultSource identifies which finder produced a candidate.
type ResultSource string

const (
	SourceDatabase     ResultSource = "database"
	SourceManualSearch ResultSource = "manual_search"
	SourceAIWebSearch  ResultSource = "ai_web_search"
)

// PartQuery is the caller's request: a generic description plus optional
// equipment identity.
type PartQuery struct {
	Description string `json:"description"`
	Make        string `json:"make,omitempty"`
	Model       string `json:"model,omitempty"`
	Year        string `json:"year,omitempty"`
}

// SearchSource is a single search hit that backed an AI answer.
type SearchSource struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// PartCandidate is one source's answer to "what part number is this".
// An empty OEMPartNumber means the source found nothing.
type PartCandidate struct {
	Found                bool              `json:"found"`
	OEMPartNumber        string            `json:"oem_part_number"`
	Manufacturer         string            `json:"manufacturer,omitempty"`
	Description          string            `json:"description,omitempty"`
	Confidence           float64           `json:"confidence"`
	AlternatePartNumbers []string          `json:"alternate_part_numbers,omitempty"`
	Source               ResultSource      `json:"source"`
	Validation           *ValidationResult `json:"validation,omitempty"`

	// Provenance.
	ManualTitle string         `json:"manual_title,omitempty"`
	ManualURL   string         `json:"manual_url,omitempty"`
	Sources     []SearchSource `json:"sources,omitempty"`

	// Deterministic vetoes applied after the AI answered.
	PlaceholderRejected bool   `json:"placeholder_rejected,omitempty"`
	ModelNumberWarning  string `json:"model_number_warning,omitempty"`

	Error string `json:"error,omitempty"`
}

// Validated reports whether the candidate passed secondary validation.
func (c *PartCandidate) Validated() bool {
	return c != nil && c.Validation != nil && c.Validation.IsValid
}

// ValidationConfidence returns the validator's confidence, or 0 when the
// candidate was never validated.
func (c *PartCandidate) ValidationConfidence() float64 {
	if c == nil || c.Validation == nil {
		return 0
	}
	return c.Validation.ConfidenceScore
}

// ValidationResult is the outcome of the secondary search + AI judgment.
type ValidationResult struct {
	IsValid         bool    `json:"is_valid"`
	ConfidenceScore float64 `json:"confidence_score"`
	Assessment      string  `json:"assessment,omitempty"`
	PartDescription string  `json:"part_description,omitempty"`
	PartTypeMatch   bool    `json:"part_type_match"`
}

// Comparison explains the difference between two validated candidates that
// disagree on the part number.
type Comparison struct {
	PartNumbersMatch bool   `json:"part_numbers_match"`
	KeyDifferences   string `json:"key_differences,omitempty"`
	Recommendation   string `json:"recommendation,omitempty"`
	Interchangeable  bool   `json:"interchangeable"`
	Explanation      string `json:"explanation,omitempty"`
}

// SimilarPart is a lower-trust candidate surfaced by the fallback shopping
// search. Never auto-selected as the recommendation.
type SimilarPart struct {
	PartNumber      string  `json:"part_number"`
	Description     string  `json:"description,omitempty"`
	Manufacturer    string  `json:"manufacturer,omitempty"`
	ImageURL        string  `json:"image_url,omitempty"`
	ConfidenceScore float64 `json:"confidence_score"`
	Source          string  `json:"source,omitempty"`
	Price           string  `json:"price,omitempty"`
}

// SupplierListing is a shopping hit for the winning part number.
type SupplierListing struct {
	Site  string `json:"site"`
	Title string `json:"title,omitempty"`
	URL   string `json:"url,omitempty"`
	Price string `json:"price,omitempty"`
}

// ResolutionResponse is the complete outcome of one resolve call. The shape
// is always fully populated; "nothing found" and "something broke" differ
// only in the Error field.
type ResolutionResponse struct {
	Query PartQuery `json:"query"`

	DatabaseResult *PartCandidate `json:"database_result,omitempty"`
	ManualResult   *PartCandidate `json:"manual_result,omitempty"`
	WebResult      *PartCandidate `json:"web_result,omitempty"`

	Comparison *Comparison `json:"comparison,omitempty"`

	RecommendedResult    *PartCandidate `json:"recommended_result,omitempty"`
	RecommendationReason string         `json:"recommendation_reason,omitempty"`

	SimilarPartsTriggered bool              `json:"similar_parts_triggered"`
	SimilarParts          []SimilarPart     `json:"similar_parts,omitempty"`
	Suppliers             []SupplierListing `json:"suppliers,omitempty"`

	Error string `json:"error,omitempty"`
}

// Candidates returns the per-source results in priority order
// (database, manual, web), skipping sources that did not run.
func (r *ResolutionResponse) Candidates() []*PartCandidate {
	var out []*PartCandidate
	for _, c := range []*PartCandidate{r.DatabaseResult, r.ManualResult, r.WebResult} {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}

// Part is a stored, previously-resolved part. The natural key is
// (manufacturer, oem_part_number); re-saving merges alternates.
type Part struct {
	ID                   string    `json:"id"`
	GenericDescription   string    `json:"generic_description"`
	OEMPartNumber        string    `json:"oem_part_number"`
	Manufacturer         string    `json:"manufacturer,omitempty"`
	Description          string    `json:"description,omitempty"`
	AlternatePartNumbers []string  `json:"alternate_part_numbers,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Supplier is a seller observed offering resolved parts. Reliability is a
// 0-1 score nudged up each time the supplier shows up in shopping results.
type Supplier struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Domain      string    `json:"domain,omitempty"`
	Reliability float64   `json:"reliability"`
	Sightings   int       `json:"sightings"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Manual records a downloaded equipment manual so repeat resolutions reuse
// the local copy instead of re-fetching.
type Manual struct {
	ID        string    `json:"id"`
	Make      string    `json:"make"`
	Model     string    `json:"model,omitempty"`
	Title     string    `json:"title,omitempty"`
	URL       string    `json:"url"`
	LocalPath string    `json:"local_path"`
	FetchedAt time.Time `json:"fetched_at"`
}
