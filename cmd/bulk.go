package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/vehicle-data/internal/model"
	"github.com/sells-group/vehicle-data/internal/reglist"
	"github.com/sells-group/vehicle-data/internal/vehicledata"
)

var (
	bulkFile     string
	bulkColumn   string
	bulkSheet    string
	bulkTypes    []string
	bulkForce    bool
	bulkMaxCost  float64
	bulkMaxTotal float64
)

var bulkCmd = &cobra.Command{
	Use:   "bulk [REGISTRATION...]",
	Short: "Resolve vehicle data for many registrations in sequence",
	Long:  "Registrations come from arguments and/or a CSV or XLSX file. Each vehicle gets --max-cost; --max-total caps the whole batch.",
	RunE: func(cmd *cobra.Command, args []string) error {
		types, err := model.ParseDataTypes(bulkTypes)
		if err != nil {
			return eris.Wrap(err, "--types")
		}

		regs := append([]string(nil), args...)
		if bulkFile != "" {
			fromFile, err := reglist.ReadFile(cmd.Context(), bulkFile, reglist.Options{
				Column: bulkColumn,
				Sheet:  bulkSheet,
			})
			if err != nil {
				return err
			}
			regs = append(regs, fromFile...)
		}
		if len(regs) == 0 {
			return eris.New("bulk: no registrations given (pass arguments or --file)")
		}

		env, err := initLookup(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		perVehicle := cfg.Lookup.DefaultMaxCost
		if cmd.Flags().Changed("max-cost") {
			perVehicle = bulkMaxCost
		}

		zap.L().Info("bulk lookup starting",
			zap.Int("registrations", len(regs)),
			zap.Float64("max_cost_per_vehicle", perVehicle),
			zap.Float64("max_total_cost", bulkMaxTotal),
		)

		result, err := env.Manager.GetBulkVehicleData(cmd.Context(), vehicledata.BulkRequest{
			Registrations:     regs,
			DataTypes:         types,
			ForceRefresh:      bulkForce,
			MaxCostPerVehicle: perVehicle,
			MaxTotalCost:      bulkMaxTotal,
		})
		if result != nil {
			if perr := printJSON(cmd.OutOrStdout(), result); perr != nil {
				return perr
			}
		}
		return err
	},
}

func init() {
	bulkCmd.Flags().StringVar(&bulkFile, "file", "", "CSV or XLSX file of registrations")
	bulkCmd.Flags().StringVar(&bulkColumn, "column", "", "header of the registration column (default: auto-detect)")
	bulkCmd.Flags().StringVar(&bulkSheet, "sheet", "", "XLSX sheet name (default: first sheet)")
	bulkCmd.Flags().StringSliceVar(&bulkTypes, "types", nil, "data types: basic,technical,image,mot,service (default from config)")
	bulkCmd.Flags().BoolVar(&bulkForce, "force", false, "ignore cached data")
	bulkCmd.Flags().Float64Var(&bulkMaxCost, "max-cost", 0, "GBP ceiling per vehicle (default from config)")
	bulkCmd.Flags().Float64Var(&bulkMaxTotal, "max-total", 0, "GBP ceiling for the whole batch (0 = none)")

	rootCmd.AddCommand(bulkCmd)
}
