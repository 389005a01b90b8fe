package resolver

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/parts-cli/internal/config"
	"github.com/sells-group/parts-cli/internal/fetcher"
	"github.com/sells-group/parts-cli/internal/model"
	"github.com/sells-group/parts-cli/internal/ocr"
	"github.com/sells-group/parts-cli/internal/quality"
	"github.com/sells-group/parts-cli/internal/store"
	"github.com/sells-group/parts-cli/pkg/anthropic"
	"github.com/sells-group/parts-cli/pkg/serpapi"
)

// Snippet extraction limits for manual text mining.
const (
	snippetWindow     = 500
	snippetsPerTerm   = 3
	snippetsMax       = 5
	snippetsCharCap   = 5000
	fallbackSliceSize = 2500
)

const manualSystemText = "You are a parts specialist reading equipment manual excerpts. Return a valid JSON object only."

const manualExtractPrompt = `Find the OEM part number for this component in the manual excerpts below.

Equipment: %s
Requested part: %s

Manual excerpts:
%s

Rules:
- NEVER invent a part number. The number must appear verbatim in the excerpts.
- If no part number for this component appears in the text, return an empty string.
- The part MUST be the same type of component as requested. Confidence MUST be 0 if the part number is absent from the text or the component type does not match.

Return a valid JSON object:
{"oem_part_number": "<number or empty string>", "manufacturer": "<manufacturer or empty>", "description": "<what the part is>", "confidence": <0.0-1.0>, "alternate_part_numbers": ["<other numbers for the same component>"]}`

// partAnswer is the shared AI answer shape for the manual and web finders.
type partAnswer struct {
	OEMPartNumber        string               `json:"oem_part_number"`
	Manufacturer         string               `json:"manufacturer"`
	Description          string               `json:"description"`
	Confidence           float64              `json:"confidence"`
	AlternatePartNumbers []string             `json:"alternate_part_numbers"`
	Sources              []model.SearchSource `json:"sources"`
}

// ManualFinder resolves a part by finding the equipment's parts manual,
// extracting its text, and asking the AI to pull the part number out of the
// relevant excerpts.
type ManualFinder struct {
	search    serpapi.Client
	ai        anthropic.Client
	fetch     fetcher.Fetcher
	extractor ocr.Extractor
	store     store.Store
	validator *Validator
	rules     quality.Rules
	aiCfg     config.AnthropicConfig
	manualDir string
}

// NewManualFinder creates a ManualFinder.
func NewManualFinder(
	search serpapi.Client,
	ai anthropic.Client,
	fetch fetcher.Fetcher,
	extractor ocr.Extractor,
	st store.Store,
	validator *Validator,
	rules quality.Rules,
	aiCfg config.AnthropicConfig,
	manualDir string,
) *ManualFinder {
	return &ManualFinder{
		search:    search,
		ai:        ai,
		fetch:     fetch,
		extractor: extractor,
		store:     st,
		validator: validator,
		rules:     rules,
		aiCfg:     aiCfg,
		manualDir: manualDir,
	}
}

// Find locates a manual for the equipment, mines it for the requested part,
// and validates the result. Failures come back as a not-found candidate with
// the error attached, never as a raised error.
func (f *ManualFinder) Find(ctx context.Context, q model.PartQuery, noCache bool) *model.PartCandidate {
	candidate := &model.PartCandidate{Source: model.SourceManualSearch}

	manual, err := f.locateManual(ctx, q, noCache)
	if err != nil {
		zap.L().Warn("manual finder: no manual located",
			zap.String("make", q.Make),
			zap.String("model", q.Model),
			zap.Error(err),
		)
		candidate.Error = err.Error()
		return candidate
	}
	candidate.ManualTitle = manual.Title
	candidate.ManualURL = manual.URL

	text, err := f.extractor.ExtractText(ctx, manual.LocalPath)
	if err != nil {
		zap.L().Warn("manual finder: text extraction failed",
			zap.String("path", manual.LocalPath),
			zap.Error(err),
		)
		candidate.Error = err.Error()
		return candidate
	}

	excerpts := buildExcerpts(text, q.Description)

	prompt := fmt.Sprintf(manualExtractPrompt,
		joinNonEmpty(q.Make, q.Model, q.Year),
		q.Description,
		excerpts,
	)

	var answer partAnswer
	if err := askJSON(ctx, f.ai, f.aiCfg.SonnetModel, f.aiCfg.MaxTokens, manualSystemText, prompt, &answer); err != nil {
		zap.L().Warn("manual finder: extraction failed", zap.Error(err))
		candidate.Error = err.Error()
		return candidate
	}

	if answer.OEMPartNumber == "" {
		return candidate
	}

	// Safety net beyond the prompt's own rules: the AI does not reliably
	// follow the "never invent a number" instruction.
	if f.rules.RejectCandidate(answer.OEMPartNumber) {
		zap.L().Info("manual finder: placeholder rejected",
			zap.String("part_number", answer.OEMPartNumber),
		)
		candidate.PlaceholderRejected = true
		candidate.Confidence = 0
		return candidate
	}

	candidate.Found = true
	candidate.OEMPartNumber = answer.OEMPartNumber
	candidate.Manufacturer = answer.Manufacturer
	candidate.Description = answer.Description
	candidate.Confidence = answer.Confidence
	candidate.AlternatePartNumbers = answer.AlternatePartNumbers
	candidate.Validation = f.validator.Validate(ctx, candidate.OEMPartNumber, q, noCache)

	return candidate
}

// locateManual returns a cached manual when one exists on disk, otherwise
// searches for one, downloads it, and caches the record.
func (f *ManualFinder) locateManual(ctx context.Context, q model.PartQuery, noCache bool) (*model.Manual, error) {
	if !noCache {
		if cached, err := f.store.GetManual(ctx, q.Make, q.Model); err == nil && cached != nil {
			if _, statErr := os.Stat(cached.LocalPath); statErr == nil {
				return cached, nil
			}
		}
	}

	title, manualURL, err := f.searchManual(ctx, q, noCache)
	if err != nil {
		return nil, err
	}

	localPath, err := f.fetch.DownloadToFile(ctx, manualURL, f.manualDir)
	if err != nil {
		return nil, err
	}

	manual := model.Manual{
		Make:      q.Make,
		Model:     q.Model,
		Title:     title,
		URL:       manualURL,
		LocalPath: localPath,
		FetchedAt: time.Now().UTC(),
	}
	if err := f.store.SaveManual(ctx, manual); err != nil {
		zap.L().Warn("manual finder: cache save failed", zap.Error(err))
	}

	return &manual, nil
}

// searchManual tries progressively broader queries until one returns results.
func (f *ManualFinder) searchManual(ctx context.Context, q model.PartQuery, noCache bool) (title, manualURL string, err error) {
	queries := []string{
		joinNonEmpty(q.Make, q.Model, "parts manual pdf"),
		joinNonEmpty(q.Make, q.Model, "technical manual pdf"),
		joinNonEmpty(q.Make, "parts manual pdf"),
	}

	var lastErr error
	for _, query := range queries {
		resp, searchErr := f.search.Search(ctx, query, serpapi.SearchOptions{Num: 5, NoCache: noCache})
		if searchErr != nil {
			lastErr = searchErr
			continue
		}
		if len(resp.Organic) == 0 {
			continue
		}
		// Prefer a direct PDF link; fall back to the top hit.
		for _, r := range resp.Organic {
			if strings.HasSuffix(strings.ToLower(r.URL), ".pdf") {
				return r.Title, r.URL, nil
			}
		}
		return resp.Organic[0].Title, resp.Organic[0].URL, nil
	}

	if lastErr != nil {
		return "", "", lastErr
	}
	return "", "", errNoManualFound
}

var errNoManualFound = fmt.Errorf("no manual found for equipment")

// buildExcerpts pulls context windows around description-term matches from
// the full manual text. If no term matches anywhere, it falls back to the
// head and tail of the document.
func buildExcerpts(text, description string) string {
	terms := buildSearchTerms(description)
	lower := strings.ToLower(text)

	var b strings.Builder
	total := 0
	snippets := 0

	for _, term := range terms {
		if snippets >= snippetsMax || total >= snippetsCharCap {
			break
		}
		offset := 0
		for hits := 0; hits < snippetsPerTerm && snippets < snippetsMax && total < snippetsCharCap; hits++ {
			idx := strings.Index(lower[offset:], strings.ToLower(term))
			if idx < 0 {
				break
			}
			idx += offset

			start := idx - snippetWindow
			if start < 0 {
				start = 0
			}
			end := idx + len(term) + snippetWindow
			if end > len(text) {
				end = len(text)
			}

			snippet := text[start:end]
			if total+len(snippet) > snippetsCharCap {
				snippet = snippet[:snippetsCharCap-total]
			}
			fmt.Fprintf(&b, "--- excerpt (match: %q) ---\n%s\n\n", term, snippet)
			total += len(snippet)
			snippets++

			offset = idx + len(term)
		}
	}

	if snippets > 0 {
		return b.String()
	}

	// Nothing matched: hand the AI the head and tail, where tables of
	// contents and parts indexes usually live.
	if len(text) <= 2*fallbackSliceSize {
		return text
	}
	return text[:fallbackSliceSize] + "\n\n[...]\n\n" + text[len(text)-fallbackSliceSize:]
}

// manualStopWords are description words that match everywhere in a manual.
var manualStopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "assembly": true,
	"unit": true, "part": true, "parts": true, "replacement": true,
}

// buildSearchTerms derives match terms from a generic description: the full
// phrase first, then individual meaningful words, then the trailing one or
// two words (the noun usually sits at the end of a description).
func buildSearchTerms(description string) []string {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil
	}

	var terms []string
	seen := map[string]bool{}
	add := func(t string) {
		key := strings.ToLower(strings.TrimSpace(t))
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		terms = append(terms, t)
	}

	add(description)

	words := strings.Fields(description)
	for _, w := range words {
		w = strings.Trim(w, ".,;:()[]\"'")
		if len(w) > 3 && !manualStopWords[strings.ToLower(w)] {
			add(w)
		}
	}

	if n := len(words); n >= 2 {
		add(strings.Join(words[n-2:], " "))
	}
	if n := len(words); n >= 1 {
		add(words[n-1])
	}

	return terms
}
