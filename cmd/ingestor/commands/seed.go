package commands

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"bank_reviews/internal/app"
	"bank_reviews/internal/shared"
)

func init() {
	rootCmd.AddCommand(seedCmd)
}

var seedCmd = &cobra.Command{
	Use:   "seed-banks",
	Short: "Upserts the bank catalog into the banks table.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cat, err := shared.LoadCatalog(cfg.CatalogFile)
		if err != nil {
			return err
		}
		repo, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer repo.Close()
		cache, closeCache := newCache(ctx, cfg)
		defer closeCache()

		ing := app.NewIngestionService(app.IngestionDeps{Repo: repo, Cache: cache, Catalog: cat})
		if err := ing.SeedBanks(ctx); err != nil {
			return err
		}
		log.Info().Int("banks", len(cat.Banks())).Msg("banks seeded")
		return nil
	},
}
