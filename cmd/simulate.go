package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chrisdamba/foodispatch/internal/notify"
	"github.com/chrisdamba/foodispatch/internal/repositories/memory"
	"github.com/chrisdamba/foodispatch/internal/simulator"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Replay synthetic order traffic through the dispatch engine on a virtual clock",
	RunE: func(cmd *cobra.Command, args []string) error {
		var out notify.OutputDestination = notify.NewMemoryOutput()
		if verbose, _ := cmd.Flags().GetBool("print-events"); verbose {
			out = &notify.ConsoleOutput{}
		}
		if cfg.Kafka.Enabled {
			kafka, err := notify.NewKafkaOutput(cfg.Kafka)
			if err != nil {
				return err
			}
			out = kafka
		}
		defer out.Close()

		if cmd.Flags().Changed("partners") {
			cfg.Seed.Partners, _ = cmd.Flags().GetInt("partners")
		}

		store := memory.NewStore()
		sim := simulator.NewSimulator(cfg, store, notify.NewNotifier(out), simulator.WithProgress(os.Stderr))
		report, err := sim.Run(cmd.Context())
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "\norders:           %d\n", report.Orders)
		fmt.Fprintf(w, "delivered:        %d (%d on time)\n", report.Delivered, report.OnTime)
		fmt.Fprintf(w, "no courier:       %d\n", report.NoCourier)
		fmt.Fprintf(w, "cancelled:        %d\n", report.Cancelled)
		fmt.Fprintf(w, "still open:       %d waiting, %d in flight\n", report.Waiting, report.InFlight)
		fmt.Fprintf(w, "fees:             %.2f\n", report.Fees)
		fmt.Fprintf(w, "partner earnings: %.2f\n", report.PartnerEarnings)
		fmt.Fprintf(w, "platform fees:    %.2f\n", report.PlatformFees)
		fmt.Fprintf(w, "offers widened:   %d, exhausted: %d\n", report.Scans.Expanded, report.Scans.Exhausted)
		return nil
	},
}

func init() {
	simulateCmd.Flags().Duration("duration", 0, "Simulated time span (default from config)")
	simulateCmd.Flags().Float64("orders-per-hour", 0, "Base order rate before meal-time multipliers")
	simulateCmd.Flags().Int("partners", 50, "Number of simulated delivery partners")
	simulateCmd.Flags().Int64("random-seed", 42, "Random seed for the simulation")
	simulateCmd.Flags().Bool("print-events", false, "Print dispatch events to stdout")

	viper.BindPFlag("simulation.duration", simulateCmd.Flags().Lookup("duration"))
	viper.BindPFlag("simulation.orders_per_hour", simulateCmd.Flags().Lookup("orders-per-hour"))
	viper.BindPFlag("simulation.seed", simulateCmd.Flags().Lookup("random-seed"))
}
