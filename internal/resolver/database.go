package resolver

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/parts-cli/internal/model"
	"github.com/sells-group/parts-cli/internal/store"
)

// DatabaseFinder resolves a part from previously saved results. A hit is a
// trusted prior with confidence 1.0, but it still goes through the Validator
// since a saved number is not automatically re-confirmed as current.
type DatabaseFinder struct {
	store     store.Store
	validator *Validator
}

// NewDatabaseFinder creates a DatabaseFinder.
func NewDatabaseFinder(st store.Store, validator *Validator) *DatabaseFinder {
	return &DatabaseFinder{store: st, validator: validator}
}

// Find looks up an exact (case-insensitive) match on description and, when
// given, manufacturer. Returns nil when nothing is stored.
func (f *DatabaseFinder) Find(ctx context.Context, q model.PartQuery, noCache bool) *model.PartCandidate {
	part, err := f.store.FindExactPart(ctx, q.Description, q.Make)
	if err != nil {
		zap.L().Warn("database finder: lookup failed",
			zap.String("description", q.Description),
			zap.Error(err),
		)
		return &model.PartCandidate{
			Source: model.SourceDatabase,
			Error:  err.Error(),
		}
	}
	if part == nil {
		return nil
	}

	candidate := &model.PartCandidate{
		Found:                true,
		OEMPartNumber:        part.OEMPartNumber,
		Manufacturer:         part.Manufacturer,
		Description:          part.Description,
		Confidence:           1.0,
		AlternatePartNumbers: part.AlternatePartNumbers,
		Source:               model.SourceDatabase,
	}
	candidate.Validation = f.validator.Validate(ctx, candidate.OEMPartNumber, q, noCache)

	return candidate
}
