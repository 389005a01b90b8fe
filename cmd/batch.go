package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/parts-cli/internal/fetcher"
	"github.com/sells-group/parts-cli/internal/model"
	"github.com/sells-group/parts-cli/internal/resolver"
)

var (
	batchLimit       int
	batchSave        bool
	batchBypassCache bool
	batchOutput      string
)

var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Resolve parts in bulk from a CSV or XLSX file",
	Long:  "Reads rows of description,make,model,year and resolves each part concurrently. Results are written as a JSON array.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		queries, err := readBatchFile(args[0])
		if err != nil {
			return err
		}

		env, err := initResolver(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		results, err := processBatch(ctx, queries, batchLimit, cfg.Batch.MaxConcurrentRequests, func(ctx context.Context, q model.PartQuery) *model.ResolutionResponse {
			req := resolver.DefaultRequest(q)
			req.SaveResults = batchSave
			req.BypassCache = batchBypassCache
			return env.Resolver.Resolve(ctx, req)
		})
		if err != nil {
			return err
		}

		return writeBatchResults(results, batchOutput)
	},
}

func init() {
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of rows to process (0 = all)")
	batchCmd.Flags().BoolVar(&batchSave, "save", false, "persist each recommended result")
	batchCmd.Flags().BoolVar(&batchBypassCache, "bypass-cache", false, "skip database shortcuts and bust search caches")
	batchCmd.Flags().StringVarP(&batchOutput, "output", "o", "", "output file (default stdout)")
	rootCmd.AddCommand(batchCmd)
}

// readBatchFile parses a CSV or XLSX part list into queries. Expected
// columns: description, make, model, year; a header row is detected by the
// literal "description" in the first cell.
func readBatchFile(path string) ([]model.PartQuery, error) {
	var rows [][]string
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = fetcher.ReadXLSX(path, fetcher.XLSXOptions{})
	case ".csv":
		rows, err = readCSV(path)
	default:
		return nil, eris.Errorf("unsupported batch file type %q (want .csv or .xlsx)", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	var queries []model.PartQuery
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		if i == 0 && strings.EqualFold(strings.TrimSpace(row[0]), "description") {
			continue
		}

		q := model.PartQuery{Description: strings.TrimSpace(row[0])}
		if q.Description == "" {
			continue
		}
		if len(row) > 1 {
			q.Make = strings.TrimSpace(row[1])
		}
		if len(row) > 2 {
			q.Model = strings.TrimSpace(row[2])
		}
		if len(row) > 3 {
			q.Year = strings.TrimSpace(row[3])
		}
		queries = append(queries, q)
	}

	return queries, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "batch: open csv")
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "batch: parse csv")
	}
	return rows, nil
}

// resolveFunc is the callback signature for resolving one query.
type resolveFunc func(ctx context.Context, q model.PartQuery) *model.ResolutionResponse

// processBatch applies limit, then resolves queries concurrently with a
// bounded pool. Individual failures never abort the batch.
func processBatch(ctx context.Context, queries []model.PartQuery, limit, concurrency int, resolve resolveFunc) ([]*model.ResolutionResponse, error) {
	if len(queries) == 0 {
		zap.L().Info("no rows to process")
		return nil, nil
	}

	if limit > 0 && len(queries) > limit {
		queries = queries[:limit]
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("rows", len(queries)),
		zap.Int("concurrency", concurrency),
	)

	results := make([]*model.ResolutionResponse, len(queries))
	var recommended, degraded atomic.Int64
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, q := range queries {
		g.Go(func() error {
			log := zap.L().With(zap.String("description", q.Description))

			resp := resolve(gctx, q)

			switch {
			case resp.Error != "":
				degraded.Add(1)
				log.Warn("resolution degraded", zap.String("error", resp.Error))
			case resp.RecommendedResult != nil:
				recommended.Add(1)
				log.Info("part resolved",
					zap.String("part_number", resp.RecommendedResult.OEMPartNumber),
					zap.String("source", string(resp.RecommendedResult.Source)),
				)
			default:
				log.Info("no recommendation", zap.String("reason", resp.RecommendationReason))
			}

			mu.Lock()
			results[i] = resp
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("recommended", recommended.Load()),
		zap.Int64("degraded", degraded.Load()),
		zap.Int("total", len(queries)),
	)
	return results, nil
}

func writeBatchResults(results []*model.ResolutionResponse, path string) error {
	out := os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrap(err, "batch: create output file")
		}
		defer f.Close() //nolint:errcheck
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return eris.Wrap(err, "batch: encode results")
	}
	return nil
}
