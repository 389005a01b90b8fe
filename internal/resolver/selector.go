package resolver

import (
	"strings"

	"github.com/sells-group/parts-cli/internal/model"
	"github.com/sells-group/parts-cli/internal/quality"
)

// validationWeight is how much the validator's confidence contributes to a
// candidate's composite score, on top of the source-reported confidence.
const validationWeight = 0.1

// invalidResultsReason is the recommendation reason when the safety net
// refuses to recommend the winning candidate.
const invalidResultsReason = "primary methods returned invalid results"

// sourcePriority breaks composite-score ties: a trusted prior beats a manual
// hit beats a web guess. Lower index wins.
var sourcePriority = []model.ResultSource{
	model.SourceDatabase,
	model.SourceManualSearch,
	model.SourceAIWebSearch,
}

// candidateState tags a winner for the fallback decision table.
type candidateState struct {
	Found         bool
	Verified      bool
	HasAlternates bool
}

// fallbackOutcome is one row of the decision table.
type fallbackOutcome struct {
	SearchSimilar bool
	Reason        string
}

// fallbackTable decides whether the similar-parts fallback runs, keyed on
// the winner's state. Alternate part numbers are an acceptable hedge for an
// unverified result; a verified result without them still gets the fallback
// so the caller sees more options.
var fallbackTable = map[candidateState]fallbackOutcome{
	{Found: false}: {
		SearchSimilar: true,
		Reason:        "no source found a part number",
	},
	{Found: true, Verified: true, HasAlternates: true}: {
		SearchSimilar: false,
		Reason:        "verified part number with alternates",
	},
	{Found: true, Verified: true, HasAlternates: false}: {
		SearchSimilar: true,
		Reason:        "verified part number, searching for alternates",
	},
	{Found: true, Verified: false, HasAlternates: true}: {
		SearchSimilar: false,
		Reason:        "unverified part number, alternates available",
	},
	{Found: true, Verified: false, HasAlternates: false}: {
		SearchSimilar: true,
		Reason:        "unverified part number with no alternates",
	},
}

// Selection is the selector's verdict over the per-source candidates.
type Selection struct {
	// Winner is the recommended candidate, nil when nothing qualifies.
	Winner *model.PartCandidate
	Reason string
	// SearchSimilar asks the pipeline to run the fallback shopping search.
	SearchSimilar bool
}

// Selector ranks per-source candidates by composite score and decides
// whether the similar-parts fallback is warranted.
type Selector struct {
	rules quality.Rules
	// lowValidationScore is the floor below which a validated winner is
	// refused outright.
	lowValidationScore float64
}

// NewSelector creates a Selector.
func NewSelector(rules quality.Rules, lowValidationScore float64) *Selector {
	return &Selector{rules: rules, lowValidationScore: lowValidationScore}
}

// compositeScore ranks a candidate across sources. Validation contributes
// only when the candidate actually passed.
func compositeScore(c *model.PartCandidate) float64 {
	score := c.Confidence
	if c.Validated() {
		score += validationWeight * c.ValidationConfidence()
	}
	return score
}

// Select picks a winner among the candidates (in sourcePriority order) and
// evaluates the fallback decision table plus the structural safety net.
func (s *Selector) Select(candidates []*model.PartCandidate, q model.PartQuery) Selection {
	var winner *model.PartCandidate
	var winnerScore float64

	for _, priority := range sourcePriority {
		for _, c := range candidates {
			if c == nil || c.Source != priority {
				continue
			}
			if !c.Found || strings.TrimSpace(c.OEMPartNumber) == "" {
				continue
			}
			// Strict greater-than keeps the earlier (higher-priority) source
			// on ties.
			if score := compositeScore(c); winner == nil || score > winnerScore {
				winner = c
				winnerScore = score
			}
		}
	}

	state := candidateState{}
	if winner != nil {
		state = candidateState{
			Found:         true,
			Verified:      winner.Validated(),
			HasAlternates: len(winner.AlternatePartNumbers) > 0,
		}
	}
	outcome := fallbackTable[state]

	sel := Selection{
		Winner:        winner,
		Reason:        outcome.Reason,
		SearchSimilar: outcome.SearchSimilar,
	}

	// Safety net, always checked: a structurally bad part number or a
	// rock-bottom validation score means no recommendation at all, even
	// though a winner exists.
	if winner != nil && s.refuseWinner(winner, q) {
		sel.Winner = nil
		sel.Reason = invalidResultsReason
		sel.SearchSimilar = true
	}

	return sel
}

// refuseWinner reports whether the winner must be withheld: its number is
// the model number, the make+model string, a placeholder, or its validation
// came back below the floor.
func (s *Selector) refuseWinner(winner *model.PartCandidate, q model.PartQuery) bool {
	pn := strings.TrimSpace(winner.OEMPartNumber)
	if q.Model != "" && equalFold(pn, q.Model) {
		return true
	}
	if q.Make != "" && q.Model != "" && equalFold(pn, q.Make+" "+q.Model) {
		return true
	}
	if s.rules.ContainsBannedToken(pn) {
		return true
	}
	if winner.Validation != nil && winner.Validation.ConfidenceScore < s.lowValidationScore {
		return true
	}
	return false
}
