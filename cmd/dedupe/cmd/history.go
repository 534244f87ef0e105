package cmd

import (
	"fmt"

	"github.com/dbsmedya/dedupe/internal/database"
	"github.com/dbsmedya/dedupe/internal/render"
	"github.com/dbsmedya/dedupe/internal/types"
	"github.com/spf13/cobra"
)

var historyEntity string

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the merge audit log",
	Long: `History lists executed merges in chronological order: which records were
merged, into which master, by whom and when.

Example:
  dedupe history
  dedupe history --entity customer`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVarP(&historyEntity, "entity", "e", "",
		"Limit the log to one entity type")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	var entityType types.EntityType
	if historyEntity != "" {
		et, err := parseScannableEntity(historyEntity)
		if err != nil {
			return err
		}
		entityType = et
	}

	ctx := database.SetupSignalHandler()

	env, err := newAppEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	ops, err := env.eng.GetMergeLog(ctx, entityType)
	if err != nil {
		return fmt.Errorf("failed to read merge log: %w", err)
	}

	render.MergeLog(outputWriter, ops)
	return nil
}
