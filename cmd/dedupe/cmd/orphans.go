package cmd

import (
	"fmt"

	"github.com/dbsmedya/dedupe/internal/database"
	"github.com/dbsmedya/dedupe/internal/render"
	"github.com/spf13/cobra"
)

var orphansEntity string

var orphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "Find records with broken foreign keys",
	Long: `Orphans lists records whose foreign key points at a parent record that
does not exist. Records merged into a master still resolve and are not
reported.

Example:
  dedupe orphans --entity contact`,
	RunE: runOrphans,
}

func init() {
	orphansCmd.Flags().StringVarP(&orphansEntity, "entity", "e", "",
		"Entity type to check (required)")
	orphansCmd.MarkFlagRequired("entity")

	rootCmd.AddCommand(orphansCmd)
}

func runOrphans(cmd *cobra.Command, args []string) error {
	entityType, err := parseEntity(orphansEntity)
	if err != nil {
		return err
	}

	ctx := database.SetupSignalHandler()

	env, err := newAppEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	orphans, err := env.eng.FindOrphans(ctx, entityType)
	if err != nil {
		return fmt.Errorf("failed to find orphans: %w", err)
	}

	render.Orphans(outputWriter, orphans)
	return nil
}
