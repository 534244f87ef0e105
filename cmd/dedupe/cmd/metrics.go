package cmd

import (
	"fmt"

	"github.com/dbsmedya/dedupe/internal/database"
	"github.com/dbsmedya/dedupe/internal/metrics"
	"github.com/dbsmedya/dedupe/internal/render"
	"github.com/spf13/cobra"
)

var metricsEntity string

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show data quality metrics",
	Long: `Metrics reports record counts, pending duplicates, missing contact data
and broken foreign keys per entity type, each summarized as a quality score
between 0 and 100.

Example:
  dedupe metrics
  dedupe metrics --entity customer`,
	RunE: runMetrics,
}

func init() {
	metricsCmd.Flags().StringVarP(&metricsEntity, "entity", "e", "",
		"Limit the report to one entity type")

	rootCmd.AddCommand(metricsCmd)
}

func runMetrics(cmd *cobra.Command, args []string) error {
	ctx := database.SetupSignalHandler()

	env, err := newAppEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	if metricsEntity != "" {
		entityType, perr := parseEntity(metricsEntity)
		if perr != nil {
			return perr
		}
		m, merr := env.eng.CalculateMetrics(ctx, entityType)
		if merr != nil {
			return fmt.Errorf("failed to calculate metrics: %w", merr)
		}
		render.Metrics(outputWriter, []*metrics.Metrics{m})
		return nil
	}

	all, err := env.eng.CalculateAllMetrics(ctx)
	if err != nil {
		return fmt.Errorf("failed to calculate metrics: %w", err)
	}
	render.Metrics(outputWriter, all)

	overall, err := env.eng.OverallQualityScore(ctx)
	if err != nil {
		return fmt.Errorf("failed to calculate overall score: %w", err)
	}
	fmt.Fprintf(outputWriter, "\nOverall quality score: %.2f\n", overall)
	return nil
}
