package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chrisdamba/foodispatch/internal/cloudwriter"
	"github.com/chrisdamba/foodispatch/internal/ledger"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write one day of partner earnings to a parquet file, locally or on S3",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		dayFlag, _ := cmd.Flags().GetString("day")
		day := time.Now().UTC().AddDate(0, 0, -1).Truncate(24 * time.Hour)
		if dayFlag != "" {
			parsed, err := time.Parse(time.DateOnly, dayFlag)
			if err != nil {
				return fmt.Errorf("invalid --day %q: %w", dayFlag, err)
			}
			day = parsed
		}

		store, err := openPostgres(ctx, "export", cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		var factory cloudwriter.CloudWriterFactory
		switch cfg.Export.Destination {
		case "s3":
			factory, err = cloudwriter.NewS3WriterFactory(ctx, cfg.Export.Region)
			if err != nil {
				return err
			}
		case "local", "":
		default:
			return fmt.Errorf("unknown export destination %q", cfg.Export.Destination)
		}

		summary, err := ledger.NewExporter(store.Earnings(), cfg.Export, factory).Export(ctx, day, day.AddDate(0, 0, 1))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d earnings (net %.2f) written to %s\n", summary.Records, summary.NetAmount, summary.Location)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("day", "", "UTC day to export as YYYY-MM-DD (default yesterday)")
	exportCmd.Flags().String("destination", "local", "Export destination (local, s3)")
	exportCmd.Flags().String("bucket", "", "S3 bucket for the s3 destination")

	viper.BindPFlag("export.destination", exportCmd.Flags().Lookup("destination"))
	viper.BindPFlag("export.bucket", exportCmd.Flags().Lookup("bucket"))
}
