// Package store persists resolved parts, supplier sightings, and the manual
// download cache behind a driver-agnostic interface.
package store

import (
	"context"
	"strings"

	"github.com/sells-group/parts-cli/internal/model"
)

// Store defines the persistence interface for the resolution pipeline.
type Store interface {
	// Parts
	FindExactPart(ctx context.Context, description, manufacturer string) (*model.Part, error)
	FindSimilarParts(ctx context.Context, description string, limit int) ([]model.Part, error)
	UpsertPart(ctx context.Context, part model.Part) (*model.Part, error)
	ListParts(ctx context.Context, limit, offset int) ([]model.Part, error)

	// Suppliers
	UpsertSupplier(ctx context.Context, name, domain string) (*model.Supplier, error)
	ListSuppliers(ctx context.Context, limit int) ([]model.Supplier, error)

	// Manual cache
	GetManual(ctx context.Context, equipMake, equipModel string) (*model.Manual, error)
	SaveManual(ctx context.Context, manual model.Manual) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// reliabilityStep is how much one shopping-result sighting nudges a
// supplier's reliability score, capped at 1.0.
const reliabilityStep = 0.05

// bumpReliability applies one sighting to a reliability score.
func bumpReliability(current float64) float64 {
	next := current + reliabilityStep
	if next > 1.0 {
		next = 1.0
	}
	return next
}

// mergeAlternates merges new alternate part numbers into existing ones,
// deduplicating case-insensitively while preserving first-seen order.
func mergeAlternates(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing))
	merged := make([]string, 0, len(existing)+len(incoming))
	for _, pn := range existing {
		key := strings.ToUpper(strings.TrimSpace(pn))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, pn)
	}
	for _, pn := range incoming {
		key := strings.ToUpper(strings.TrimSpace(pn))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, pn)
	}
	return merged
}

// descriptionKeywords splits a generic description into match fragments for
// the similar-part OR query. Words of three characters or fewer are noise.
func descriptionKeywords(description string) []string {
	var words []string
	for _, w := range strings.Fields(strings.ToLower(description)) {
		w = strings.Trim(w, ".,;:()[]\"'")
		if len(w) > 3 {
			words = append(words, w)
		}
	}
	return words
}
