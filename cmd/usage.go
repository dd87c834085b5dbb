package main

import (
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/vehicle-data/internal/model"
)

var (
	usageSince  string
	budgetMonth string
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Summarize provider calls and spend from the cost ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		since := model.MonthStart(time.Now())
		if usageSince != "" {
			t, err := parseSince(usageSince)
			if err != nil {
				return err
			}
			since = t
		}

		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		usage, err := st.UsageSummary(cmd.Context(), since)
		if err != nil {
			return err
		}
		if usage == nil {
			usage = []model.UsageSummary{}
		}
		return printJSON(cmd.OutOrStdout(), usage)
	},
}

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Manage monthly provider budgets",
}

var budgetSetCmd = &cobra.Command{
	Use:   "set PROVIDER AMOUNT",
	Short: "Set a provider's monthly spend limit in GBP (0 = unlimited)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, err := strconv.ParseFloat(args[1], 64)
		if err != nil || limit < 0 {
			return eris.Errorf("budget: amount %q must be a non-negative number", args[1])
		}

		month := time.Now()
		if budgetMonth != "" {
			month, err = time.Parse("2006-01", budgetMonth)
			if err != nil {
				return eris.Wrapf(err, "budget: month %q is not YYYY-MM", budgetMonth)
			}
		}

		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		b, err := st.SetBudget(cmd.Context(), args[0], month, limit)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), b)
	},
}

// parseSince accepts RFC 3339 timestamps or plain dates.
func parseSince(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, eris.Errorf("usage: --since %q is not a date or RFC 3339 timestamp", v)
	}
	return t, nil
}

func init() {
	usageCmd.Flags().StringVar(&usageSince, "since", "", "start of the reporting window (default: start of this month)")
	budgetSetCmd.Flags().StringVar(&budgetMonth, "month", "", "month the limit starts, YYYY-MM (default: this month)")

	budgetCmd.AddCommand(budgetSetCmd)
	rootCmd.AddCommand(usageCmd, budgetCmd)
}
