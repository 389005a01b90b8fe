// Package resolver implements the part resolution pipeline: database lookup,
// manual text mining, AI web search, multi-source reconciliation with
// confidence-scored selection, and a similar-parts fallback.
package resolver

import (
	"context"
	"fmt"

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

// Request controls one resolution run. Source flags let a caller skip
// sources; BypassCache skips the database shortcut and adds cache-busting
// to all downstream searches.
type Request struct {
	Query           model.PartQuery `json:"query"`
	UseDatabase     bool            `json:"use_database"`
	UseManualSearch bool            `json:"use_manual_search"`
	UseWebSearch    bool            `json:"use_web_search"`
	SaveResults     bool            `json:"save_results"`
	BypassCache     bool            `json:"bypass_cache"`
}

// DefaultRequest returns a Request with all sources enabled.
func DefaultRequest(q model.PartQuery) Request {
	return Request{
		Query:           q,
		UseDatabase:     true,
		UseManualSearch: true,
		UseWebSearch:    true,
	}
}

// Resolver chains the source finders, the selector, the comparator, and the
// fallback into one resolve operation.
type Resolver struct {
	database  *DatabaseFinder
	manual    *ManualFinder
	web       *WebFinder
	selector  *Selector
	compare   *Comparator
	similar   *SimilarFinder
	suppliers *SupplierLocator
	store     store.Store
	cfg       config.ResolverConfig
}

// New wires a Resolver from its collaborators. Quality rules load from the
// configured path, falling back to the built-in defaults.
func New(
	st store.Store,
	search serpapi.Client,
	ai anthropic.Client,
	fetch fetcher.Fetcher,
	extractor ocr.Extractor,
	aiCfg config.AnthropicConfig,
	cfg config.ResolverConfig,
) *Resolver {
	rules := quality.DefaultRules()
	if cfg.QualityRulesPath != "" {
		loaded, err := quality.LoadRules(cfg.QualityRulesPath)
		if err != nil {
			zap.L().Warn("resolver: quality rules load failed, using defaults",
				zap.String("path", cfg.QualityRulesPath),
				zap.Error(err),
			)
		}
		rules = loaded
	}

	validator := NewValidator(search, ai, aiCfg)

	return &Resolver{
		database:  NewDatabaseFinder(st, validator),
		manual:    NewManualFinder(search, ai, fetch, extractor, st, validator, rules, aiCfg, cfg.ManualDir),
		web:       NewWebFinder(search, ai, validator, aiCfg),
		selector:  NewSelector(rules, cfg.LowValidationScore),
		compare:   NewComparator(ai, aiCfg),
		similar:   NewSimilarFinder(search, ai, aiCfg),
		suppliers: NewSupplierLocator(search, st),
		store:     st,
		cfg:       cfg,
	}
}

// Resolve runs the full pipeline for one request. It never returns an error:
// every failure is folded into the response so the caller always gets a
// complete shape, with "nothing found" and "something broke" distinguished
// only by the Error field.
func (r *Resolver) Resolve(ctx context.Context, req Request) (resp *model.ResolutionResponse) {
	resp = &model.ResolutionResponse{Query: req.Query}

	defer func() {
		if rec := recover(); rec != nil {
			zap.L().Error("resolver: panic during resolve",
				zap.String("description", req.Query.Description),
				zap.Any("panic", rec),
			)
			resp.Error = fmt.Sprintf("internal error: %v", rec)
		}
	}()

	zap.L().Info("resolver: starting resolution",
		zap.String("description", req.Query.Description),
		zap.String("make", req.Query.Make),
		zap.String("model", req.Query.Model),
	)

	if req.UseDatabase && !req.BypassCache {
		resp.DatabaseResult = r.database.Find(ctx, req.Query, req.BypassCache)
	}
	if req.UseManualSearch {
		resp.ManualResult = r.manual.Find(ctx, req.Query, req.BypassCache)
	}
	if req.UseWebSearch {
		resp.WebResult = r.web.Find(ctx, req.Query, req.BypassCache)
	}

	resp.Comparison = r.buildComparison(ctx, resp, req.Query)

	sel := r.selector.Select(resp.Candidates(), req.Query)
	resp.RecommendedResult = sel.Winner
	resp.RecommendationReason = sel.Reason

	if sel.SearchSimilar {
		resp.SimilarPartsTriggered = true
		failed := ""
		if sel.Winner != nil {
			failed = sel.Winner.OEMPartNumber
		} else if best := firstFound(resp.Candidates()); best != nil {
			failed = best.OEMPartNumber
		}
		resp.SimilarParts = r.similar.Find(ctx, req.Query, failed, r.cfg.MaxSimilarParts, req.BypassCache)
	}

	if resp.RecommendedResult != nil {
		resp.Suppliers = r.suppliers.Locate(ctx, resp.RecommendedResult.OEMPartNumber, req.Query, req.BypassCache)
	}

	if req.SaveResults && resp.RecommendedResult != nil {
		if err := r.saveRecommended(ctx, req.Query, resp.RecommendedResult); err != nil {
			zap.L().Warn("resolver: save failed", zap.Error(err))
		}
	}

	return resp
}

// buildComparison populates the comparison block: only when both the manual
// and web finders found a part number. Matching numbers short-circuit
// without an AI call; differing numbers get the full comparison only when
// both candidates passed validation.
func (r *Resolver) buildComparison(ctx context.Context, resp *model.ResolutionResponse, q model.PartQuery) *model.Comparison {
	m, w := resp.ManualResult, resp.WebResult
	if m == nil || w == nil || !m.Found || !w.Found {
		return nil
	}

	if equalFold(m.OEMPartNumber, w.OEMPartNumber) {
		return &model.Comparison{PartNumbersMatch: true}
	}

	if !m.Validated() || !w.Validated() {
		return nil
	}
	return r.compare.Compare(ctx, m, w, q)
}

// saveRecommended persists only the winning candidate. The store merges
// alternates into any existing record instead of overwriting.
func (r *Resolver) saveRecommended(ctx context.Context, q model.PartQuery, winner *model.PartCandidate) error {
	manufacturer := winner.Manufacturer
	if manufacturer == "" {
		manufacturer = q.Make
	}

	_, err := r.store.UpsertPart(ctx, model.Part{
		GenericDescription:   q.Description,
		OEMPartNumber:        winner.OEMPartNumber,
		Manufacturer:         manufacturer,
		Description:          winner.Description,
		AlternatePartNumbers: winner.AlternatePartNumbers,
	})
	return err
}

// firstFound returns the first candidate that produced a part number, in
// source priority order.
func firstFound(candidates []*model.PartCandidate) *model.PartCandidate {
	for _, c := range candidates {
		if c != nil && c.Found && c.OEMPartNumber != "" {
			return c
		}
	}
	return nil
}
