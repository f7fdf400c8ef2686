package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chrisdamba/foodispatch/internal/api"
	"github.com/chrisdamba/foodispatch/internal/consumer"
	"github.com/chrisdamba/foodispatch/internal/directory"
	"github.com/chrisdamba/foodispatch/internal/dispatch"
	"github.com/chrisdamba/foodispatch/internal/geoindex"
	"github.com/chrisdamba/foodispatch/internal/models"
	"github.com/chrisdamba/foodispatch/internal/notify"
	"github.com/chrisdamba/foodispatch/internal/pricing"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dispatch engine: HTTP API, order consumer and offer retry scanner",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

func init() {
	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	serveCmd.Flags().Bool("kafka-enabled", false, "Consume order events from and publish dispatch events to Kafka")
	serveCmd.Flags().StringSlice("kafka-brokers", []string{"localhost:9092"}, "Kafka broker list")
	serveCmd.Flags().Bool("redis-enabled", false, "Index partner positions in Redis")

	viper.BindPFlag("http.listen_addr", serveCmd.Flags().Lookup("listen"))
	viper.BindPFlag("kafka.enabled", serveCmd.Flags().Lookup("kafka-enabled"))
	viper.BindPFlag("kafka.brokers", serveCmd.Flags().Lookup("kafka-brokers"))
	viper.BindPFlag("redis.enabled", serveCmd.Flags().Lookup("redis-enabled"))
}

func serve(ctx context.Context, config *models.Config) error {
	store, err := openStore(ctx, config)
	if err != nil {
		return err
	}
	defer store.Close()

	var source directory.Source = store.Partners()
	var opts []dispatch.Option
	if config.Redis.Enabled {
		client := geoindex.NewClient(config.Redis)
		defer client.Close()

		index := geoindex.NewRedisIndex(client, config.Redis.GeoKey, store.Partners())
		partners, err := store.Partners().All(ctx)
		if err != nil {
			return err
		}
		if err := index.Rebuild(ctx, partners); err != nil {
			return err
		}
		zap.L().Info("partner geo index rebuilt", zap.Int("partners", len(partners)))
		source = index
		opts = append(opts, dispatch.WithLocationTracker(index))
	}

	var out notify.OutputDestination = &notify.ConsoleOutput{}
	if config.Kafka.Enabled {
		out, err = notify.NewKafkaOutput(config.Kafka)
		if err != nil {
			return err
		}
	}
	defer out.Close()

	svc := dispatch.NewService(store, directory.New(source), pricing.NewPolicy(config.Pricing),
		notify.NewNotifier(out), config.Dispatch, opts...)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := svc.RunScanner(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if config.Kafka.Enabled {
		processor, err := consumer.NewProcessor(config.Kafka, svc)
		if err != nil {
			return err
		}
		defer processor.Close()
		g.Go(func() error { return processor.Run(ctx) })
	}

	server := api.NewServer(config.HTTP, svc)
	g.Go(func() error {
		zap.L().Info("http server listening", zap.String("addr", config.HTTP.ListenAddr))
		return server.ListenAndServe(config.HTTP.ListenAddr)
	})
	g.Go(func() error {
		<-ctx.Done()
		zap.L().Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return server.ShutdownWithContext(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
