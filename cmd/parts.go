package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	partsLimit  int
	partsOffset int
)

var partsCmd = &cobra.Command{
	Use:   "parts",
	Short: "List stored parts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		parts, err := st.ListParts(ctx, partsLimit, partsOffset)
		if err != nil {
			return eris.Wrap(err, "list parts")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(parts)
	},
}

var suppliersCmd = &cobra.Command{
	Use:   "suppliers",
	Short: "List known suppliers by reliability",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		suppliers, err := st.ListSuppliers(ctx, partsLimit)
		if err != nil {
			return eris.Wrap(err, "list suppliers")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(suppliers)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate")
		}
		return nil
	},
}

func init() {
	partsCmd.Flags().IntVar(&partsLimit, "limit", 50, "max rows to return")
	partsCmd.Flags().IntVar(&partsOffset, "offset", 0, "rows to skip")
	suppliersCmd.Flags().IntVar(&partsLimit, "limit", 50, "max rows to return")
	rootCmd.AddCommand(partsCmd)
	rootCmd.AddCommand(suppliersCmd)
	rootCmd.AddCommand(migrateCmd)
}
