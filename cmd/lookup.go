package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/vehicle-data/internal/model"
)

var (
	lookupTypes   []string
	lookupForce   bool
	lookupMaxCost float64
	verifyTypes   []string
)

var lookupCmd = &cobra.Command{
	Use:   "lookup REGISTRATION",
	Short: "Resolve vehicle data for one registration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		types, err := model.ParseDataTypes(lookupTypes)
		if err != nil {
			return eris.Wrap(err, "--types")
		}

		env, err := initLookup(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		maxCost := cfg.Lookup.DefaultMaxCost
		if cmd.Flags().Changed("max-cost") {
			maxCost = lookupMaxCost
		}

		result, err := env.Manager.GetVehicleData(cmd.Context(), model.LookupRequest{
			Registration: args[0],
			DataTypes:    types,
			ForceRefresh: lookupForce,
			MaxCost:      maxCost,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), result)
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify REGISTRATION",
	Short: "Report which cached categories are still fresh",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		types, err := model.ParseDataTypes(verifyTypes)
		if err != nil {
			return eris.Wrap(err, "--types")
		}

		env, err := initLookup(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		cats, ok, err := env.Manager.VerifyCacheIntegrity(cmd.Context(), args[0], types)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"registration": args[0],
			"categories":   cats,
			"ok":           ok,
		})
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary REGISTRATION",
	Short: "Show the stored record, completeness and freshness",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initLookup(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		summary, err := env.Manager.Summary(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), summary)
	},
}

func init() {
	lookupCmd.Flags().StringSliceVar(&lookupTypes, "types", nil, "data types: basic,technical,image,mot,service (default from config)")
	lookupCmd.Flags().BoolVar(&lookupForce, "force", false, "ignore cached data")
	lookupCmd.Flags().Float64Var(&lookupMaxCost, "max-cost", 0, "GBP ceiling for this lookup (default from config)")
	verifyCmd.Flags().StringSliceVar(&verifyTypes, "types", nil, "data types to check (default from config)")

	rootCmd.AddCommand(lookupCmd, verifyCmd, summaryCmd)
}
