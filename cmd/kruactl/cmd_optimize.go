package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/werawoot/Krua-Thai1-sub006/internal/database"
	"github.com/werawoot/Krua-Thai1-sub006/internal/routing"
	"github.com/werawoot/Krua-Thai1-sub006/internal/services"
)

func newOptimizeCmd(opts *globalOptions) *cobra.Command {
	var (
		date, timeSlot string
		drivers        int
		buffer         int
		noForce        bool
		preview        bool
	)

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Assign a date's deliveries to drivers and print the routes as JSON",
		Long: `Run the route assignment for one delivery date and print the outcome.

With --preview only the demand and capacity plan are printed and the route
optimization service is not called. Unset tuning flags use the configured
defaults; every value is clamped to the configured bounds.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := opts.setup(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			settings, err := e.cfg.Settings()
			if err != nil {
				return err
			}
			zones, err := database.ListZones(ctx, e.db)
			if err != nil {
				return err
			}
			settings.Zones = database.MergeZones(settings.Zones, zones)

			var solver routing.Solver
			if !preview {
				solver = services.NewRouteOptimizationFromCredentials(ctx, e.cfg.SolverCredentials(), e.logger.Named("solver"))
			}

			optimizer := routing.NewOptimizer(database.NewSubscriptionStore(e.db), solver, settings, e.logger.Named("optimizer"))

			p := settings.Defaults
			p.Date = date
			p.TimeSlot = timeSlot
			if cmd.Flags().Changed("drivers") {
				p.Drivers = drivers
			}
			if cmd.Flags().Changed("buffer") {
				p.CapacityBuffer = buffer
			}
			if noForce {
				p.ForceEqualDistribution = false
			}

			var result interface{}
			if preview {
				result, err = optimizer.Preview(ctx, p)
			} else {
				result, err = optimizer.Run(ctx, p)
			}
			if err != nil {
				if kind := routing.FailureKindOf(err); kind != "" {
					return fmt.Errorf("%s: %w", kind, err)
				}
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	cmd.Flags().StringVar(&date, "date", time.Now().Format(routing.DateLayout), "Delivery date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&timeSlot, "time-slot", "", "Only deliveries with this preferred time slot")
	cmd.Flags().IntVar(&drivers, "drivers", 0, "Number of drivers")
	cmd.Flags().IntVar(&buffer, "buffer", 0, "Per-driver capacity buffer in items")
	cmd.Flags().BoolVar(&noForce, "no-force", false, "Let the solver concentrate deliveries on fewer drivers")
	cmd.Flags().BoolVar(&preview, "preview", false, "Only print the demand, do not call the solver")
	return cmd
}
