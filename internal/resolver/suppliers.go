package resolver

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/parts-cli/internal/model"
	"github.com/sells-group/parts-cli/internal/store"
	"github.com/sells-group/parts-cli/pkg/serpapi"
)

// supplierListingCap limits how many listings one part lookup surfaces.
const supplierListingCap = 10

// SupplierLocator finds listings selling a resolved part number and records
// each seller sighting so reliability scores accumulate over time.
type SupplierLocator struct {
	search serpapi.Client
	store  store.Store
}

// NewSupplierLocator creates a SupplierLocator.
func NewSupplierLocator(search serpapi.Client, st store.Store) *SupplierLocator {
	return &SupplierLocator{search: search, store: st}
}

// Locate runs a shopping search for the part number and upserts one supplier
// sighting per distinct seller. Each upsert is its own transaction; a failed
// save never blocks the listings from being returned.
func (l *SupplierLocator) Locate(ctx context.Context, partNumber string, q model.PartQuery, noCache bool) []model.SupplierListing {
	query := joinNonEmpty(partNumber, q.Make)

	results, err := l.search.SearchShopping(ctx, query, serpapi.SearchOptions{NoCache: noCache})
	if err != nil {
		zap.L().Warn("supplier locator: shopping search failed",
			zap.String("part_number", partNumber),
			zap.Error(err),
		)
		return nil
	}

	var listings []model.SupplierListing
	seenSellers := map[string]bool{}
	for _, r := range results {
		if len(listings) >= supplierListingCap {
			break
		}
		if r.Source == "" {
			continue
		}

		listings = append(listings, model.SupplierListing{
			Site:  r.Source,
			Title: r.Title,
			URL:   r.URL,
			Price: r.Price,
		})

		key := strings.ToLower(r.Source)
		if seenSellers[key] {
			continue
		}
		seenSellers[key] = true

		if _, err := l.store.UpsertSupplier(ctx, r.Source, hostOf(r.URL)); err != nil {
			zap.L().Warn("supplier locator: sighting save failed",
				zap.String("supplier", r.Source),
				zap.Error(err),
			)
		}
	}

	return listings
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
