package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/chrisdamba/foodispatch/internal/logging"
	"github.com/chrisdamba/foodispatch/internal/models"
	"github.com/chrisdamba/foodispatch/internal/repositories"
	"github.com/chrisdamba/foodispatch/internal/repositories/memory"
	"github.com/chrisdamba/foodispatch/internal/repositories/postgres"
)

const appName = "foodispatch"

var (
	cfgFile string
	cfg     *models.Config
)

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Dispatches food delivery orders to nearby delivery partners",
	Long: `foodispatch offers confirmed orders to idle delivery partners near the restaurant,
widens the search while nobody accepts, assigns the order to the first partner who does
and settles the partner's earning once the order is delivered.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = models.LoadConfig(viper.GetViper(), cfgFile)
		if err != nil {
			return err
		}
		if err := logging.Init(appName, cfg.Log); err != nil {
			return fmt.Errorf("init logging: %w", err)
		}
		if used := viper.ConfigFileUsed(); used != "" {
			zap.L().Info("using config file", zap.String("path", used))
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./foodispatch.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("store", "memory", "Store driver (memory, postgres)")
	rootCmd.PersistentFlags().String("database-url", "", "Postgres connection string")

	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("store.driver", rootCmd.PersistentFlags().Lookup("store"))
	viper.BindPFlag("database.url", rootCmd.PersistentFlags().Lookup("database-url"))

	rootCmd.AddCommand(serveCmd, seedCmd, exportCmd, migrateCmd, simulateCmd)
}

func openStore(ctx context.Context, config *models.Config) (repositories.Store, error) {
	switch config.Store.Driver {
	case "memory", "":
		return memory.NewStore(), nil
	case "postgres":
		return postgres.NewStore(ctx, config.Database)
	default:
		return nil, fmt.Errorf("unknown store driver %q", config.Store.Driver)
	}
}

// openPostgres is for commands that only make sense against a shared database.
func openPostgres(ctx context.Context, command string, config *models.Config) (*postgres.Store, error) {
	if config.Store.Driver != "postgres" {
		return nil, fmt.Errorf("%s needs the postgres store, got %q", command, config.Store.Driver)
	}
	return postgres.NewStore(ctx, config.Database)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
