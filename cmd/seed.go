package cmd

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/chrisdamba/foodispatch/internal/factories"
	"github.com/chrisdamba/foodispatch/internal/geoindex"
)

const seedBatchSize = 500

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert a fleet of fake delivery partners around the configured city",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openPostgres(ctx, "seed", cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		if cmd.Flags().Changed("partners") {
			cfg.Seed.Partners, _ = cmd.Flags().GetInt("partners")
		}
		randomSeed, _ := cmd.Flags().GetInt64("random-seed")
		partners := factories.NewDeliveryPartnerFactory(randomSeed).CreateDeliveryPartners(cfg.Seed)

		bar := progressbar.Default(int64(len(partners)), "seeding partners")
		for start := 0; start < len(partners); start += seedBatchSize {
			end := min(start+seedBatchSize, len(partners))
			if err := store.Partners().BulkCreate(ctx, partners[start:end]); err != nil {
				return fmt.Errorf("insert partners %d-%d: %w", start, end, err)
			}
			bar.Add(end - start)
		}

		if cfg.Redis.Enabled {
			client := geoindex.NewClient(cfg.Redis)
			defer client.Close()
			index := geoindex.NewRedisIndex(client, cfg.Redis.GeoKey, store.Partners())
			if err := index.Rebuild(ctx, partners); err != nil {
				return fmt.Errorf("index partners: %w", err)
			}
		}

		total, err := store.Partners().Count(ctx)
		if err != nil {
			return err
		}
		zap.L().Info("seeded delivery partners", zap.Int("inserted", len(partners)), zap.Int("total", total))
		return nil
	},
}

func init() {
	seedCmd.Flags().Int("partners", 50, "Number of delivery partners to create")
	seedCmd.Flags().Int64("random-seed", 42, "Random seed for the generated fleet")
	seedCmd.Flags().Float64("online-share", 0.7, "Share of partners that start online and idle")

	viper.BindPFlag("seed.online_share", seedCmd.Flags().Lookup("online-share"))
}
