package cli

import (
	"github.com/spf13/cobra"

	"github.com/soomorita/macro-micro-linkage/internal/app"
)

var (
	exportStatsID    string
	exportCategory   string
	exportArea       string
	exportInputCSV   string
	exportHorizon    int
	exportConfidence float64
	exportPNGPath    string
	exportCSVPath    string
	exportMaxPoints  int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Run a forecast and export history plus forecast as CSV and/or PNG",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			ForecastOptions: app.ForecastOptions{
				StatsDataID:     exportStatsID,
				Category:        exportCategory,
				Area:            exportArea,
				InputCSV:        exportInputCSV,
				Horizon:         exportHorizon,
				ConfidenceLevel: exportConfidence,
			},
			PNGPath:   exportPNGPath,
			CSVPath:   exportCSVPath,
			MaxPoints: exportMaxPoints,
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportStatsID, "stats-id", "", "e-Stat statsDataId to fetch")
	exportCmd.Flags().StringVar(&exportCategory, "cat", "", "Category code filter (cdCat01)")
	exportCmd.Flags().StringVar(&exportArea, "area", "", "Area code filter (cdArea)")
	exportCmd.Flags().StringVar(&exportInputCSV, "input", "", "Read token,value rows from a CSV instead of e-Stat")
	exportCmd.Flags().IntVar(&exportHorizon, "horizon", 0, "Forecast horizon in months (defaults to config)")
	exportCmd.Flags().Float64Var(&exportConfidence, "confidence", 0, "Confidence level within (0,1) (defaults to config)")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum history points to export (defaults to config)")
}
