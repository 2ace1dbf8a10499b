package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"bank_reviews/internal/storage/sqlstore"
)

var migratePrint bool

func init() {
	migrateCmd.Flags().BoolVar(&migratePrint, "print", false, "print the schema for $STORE_BACKEND instead of applying it")
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Creates the banks, reviews and ingest_runs tables.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if migratePrint {
			b, err := sqlstore.ParseBackend(cfg.StoreBackend)
			if err != nil {
				return err
			}
			ddl, err := sqlstore.Schema(b)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), ddl)
			return nil
		}
		repo, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer repo.Close()
		return repo.Migrate(cmd.Context())
	},
}
