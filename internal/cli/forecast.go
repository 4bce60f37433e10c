package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/soomorita/macro-micro-linkage/internal/app"
)

var (
	forecastStatsID    string
	forecastCategory   string
	forecastArea       string
	forecastInputCSV   string
	forecastHorizon    int
	forecastConfidence float64
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Fetch a series, fit a seasonal ARIMA model, and print the forecast",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ForecastOptions{
			StatsDataID:     forecastStatsID,
			Category:        forecastCategory,
			Area:            forecastArea,
			InputCSV:        forecastInputCSV,
			Horizon:         forecastHorizon,
			ConfidenceLevel: forecastConfidence,
		}

		outcome, err := getApp().Forecast(cmd.Context(), opts)
		if err != nil {
			return err
		}

		result := outcome.Result
		fmt.Fprintf(cmd.OutOrStdout(), "source: %s\n", outcome.Source)
		fmt.Fprintf(cmd.OutOrStdout(), "series: %s .. %s (%d observations, %d rows dropped)\n",
			result.Series.MonthAt(0).Format("2006-01"),
			result.Series.End().Format("2006-01"),
			result.Series.Len(),
			outcome.Dropped,
		)
		fmt.Fprintf(cmd.OutOrStdout(), "model:  %s  AIC=%.2f  BIC=%.2f  (%d candidates evaluated)\n",
			result.Fit.Spec, result.Fit.AIC, result.Fit.BIC, result.Evaluated)
		fmt.Fprintf(cmd.OutOrStdout(), "residuals: Ljung-Box Q=%.3f p=%.4f lags=%d verdict=%s\n\n",
			result.Diagnostic.Statistic, result.Diagnostic.PValue, result.Diagnostic.Lags, result.Diagnostic.Verdict)

		writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(writer, "Month\tForecast\tLower\tUpper")
		for _, step := range result.Forecast {
			fmt.Fprintf(writer, "%s\t%.3f\t%.3f\t%.3f\n",
				step.Date.Format("2006-01"), step.Point, step.Lower, step.Upper)
		}
		return writer.Flush()
	},
}

func init() {
	forecastCmd.Flags().StringVar(&forecastStatsID, "stats-id", "", "e-Stat statsDataId to fetch")
	forecastCmd.Flags().StringVar(&forecastCategory, "cat", "", "Category code filter (cdCat01)")
	forecastCmd.Flags().StringVar(&forecastArea, "area", "", "Area code filter (cdArea)")
	forecastCmd.Flags().StringVar(&forecastInputCSV, "input", "", "Read token,value rows from a CSV instead of e-Stat")
	forecastCmd.Flags().IntVar(&forecastHorizon, "horizon", 0, "Forecast horizon in months (defaults to config)")
	forecastCmd.Flags().Float64Var(&forecastConfidence, "confidence", 0, "Confidence level within (0,1) (defaults to config)")
}
