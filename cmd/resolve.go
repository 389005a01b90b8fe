package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/parts-cli/internal/model"
	"github.com/sells-group/parts-cli/internal/resolver"
)

var (
	resolveMake        string
	resolveModel       string
	resolveYear        string
	resolveNoDatabase  bool
	resolveNoManual    bool
	resolveNoWeb       bool
	resolveSave        bool
	resolveBypassCache bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <description>",
	Short: "Resolve a part description to an OEM part number",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initResolver(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		req := resolver.Request{
			Query: model.PartQuery{
				Description: args[0],
				Make:        resolveMake,
				Model:       resolveModel,
				Year:        resolveYear,
			},
			UseDatabase:     !resolveNoDatabase,
			UseManualSearch: !resolveNoManual,
			UseWebSearch:    !resolveNoWeb,
			SaveResults:     resolveSave,
			BypassCache:     resolveBypassCache,
		}

		resp := env.Resolver.Resolve(ctx, req)

		if resp.RecommendedResult != nil {
			zap.L().Info("resolution complete",
				zap.String("part_number", resp.RecommendedResult.OEMPartNumber),
				zap.String("source", string(resp.RecommendedResult.Source)),
				zap.String("reason", resp.RecommendationReason),
			)
		} else {
			zap.L().Info("no recommendation",
				zap.String("reason", resp.RecommendationReason),
				zap.Int("similar_parts", len(resp.SimilarParts)),
			)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return eris.Wrap(err, "encode response")
		}
		return nil
	},
}

func init() {
	resolveCmd.Flags().StringVar(&resolveMake, "make", "", "equipment manufacturer")
	resolveCmd.Flags().StringVar(&resolveModel, "model", "", "equipment model number")
	resolveCmd.Flags().StringVar(&resolveYear, "year", "", "equipment year")
	resolveCmd.Flags().BoolVar(&resolveNoDatabase, "no-database", false, "skip the database lookup")
	resolveCmd.Flags().BoolVar(&resolveNoManual, "no-manual", false, "skip the manual search")
	resolveCmd.Flags().BoolVar(&resolveNoWeb, "no-web", false, "skip the AI web search")
	resolveCmd.Flags().BoolVar(&resolveSave, "save", false, "persist the recommended result")
	resolveCmd.Flags().BoolVar(&resolveBypassCache, "bypass-cache", false, "skip the database shortcut and bust search caches")
	rootCmd.AddCommand(resolveCmd)
}
