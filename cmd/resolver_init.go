package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/parts-cli/internal/fetcher"
	"github.com/sells-group/parts-cli/internal/ocr"
	"github.com/sells-group/parts-cli/internal/resolver"
	"github.com/sells-group/parts-cli/internal/store"
	anthropicpkg "github.com/sells-group/parts-cli/pkg/anthropic"
	"github.com/sells-group/parts-cli/pkg/serpapi"
)

// resolverEnv holds the initialized store and pipeline needed by the
// resolve/batch/serve commands.
type resolverEnv struct {
	Store    store.Store
	Resolver *resolver.Resolver
}

// Close releases resources held by the environment.
func (e *resolverEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured database backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "open postgres store")
		}
		return st, nil
	case "sqlite", "":
		st, err := store.NewSQLite(cfg.Store.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "open sqlite store")
		}
		return st, nil
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// initResolver sets up the store, API clients, OCR, and the resolver.
// Callers should defer env.Close().
func initResolver(ctx context.Context) (*resolverEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	var serpOpts []serpapi.Option
	if cfg.SerpAPI.BaseURL != "" {
		serpOpts = append(serpOpts, serpapi.WithBaseURL(cfg.SerpAPI.BaseURL))
	}
	searchClient := serpapi.NewClient(cfg.SerpAPI.Key, serpOpts...)

	aiClient := anthropicpkg.NewClient(cfg.Anthropic.Key)

	extractor, err := ocr.NewExtractor(cfg.OCR)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	fetch := fetcher.New(fetcher.Options{})

	r := resolver.New(st, searchClient, aiClient, fetch, extractor, cfg.Anthropic, cfg.Resolver)

	return &resolverEnv{Store: st, Resolver: r}, nil
}
