package cmd

import (
	"fmt"

	"github.com/dbsmedya/dedupe/internal/database"
	"github.com/dbsmedya/dedupe/internal/render"
	"github.com/spf13/cobra"
)

var (
	previewEntity string
	previewMaster string
	previewIDs    []string
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Preview a merge without changing anything",
	Long: `Preview computes what a merge would do: which fields would be gap-filled
or conflict, and which dependent records would be repointed at the master.

Nothing is written. Run the merge command to execute.

Example:
  dedupe preview --entity customer --master c1 --ids c2,c3`,
	RunE: runPreview,
}

func init() {
	previewCmd.Flags().StringVarP(&previewEntity, "entity", "e", "",
		"Entity type of the records (required)")
	previewCmd.MarkFlagRequired("entity")

	previewCmd.Flags().StringVarP(&previewMaster, "master", "m", "",
		"ID of the record that survives the merge (required)")
	previewCmd.MarkFlagRequired("master")

	previewCmd.Flags().StringSliceVar(&previewIDs, "ids", nil,
		"Comma-separated IDs of the records to merge into the master (required)")
	previewCmd.MarkFlagRequired("ids")

	rootCmd.AddCommand(previewCmd)
}

func runPreview(cmd *cobra.Command, args []string) error {
	entityType, err := parseScannableEntity(previewEntity)
	if err != nil {
		return err
	}

	ctx := database.SetupSignalHandler()

	env, err := newAppEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	preview, err := env.eng.GeneratePreview(ctx, entityType, previewMaster, previewIDs)
	if err != nil {
		return fmt.Errorf("failed to generate preview: %w", err)
	}

	render.Preview(outputWriter, preview)
	return nil
}
