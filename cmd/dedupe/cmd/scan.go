package cmd

import (
	"fmt"

	"github.com/dbsmedya/dedupe/internal/database"
	"github.com/dbsmedya/dedupe/internal/render"
	"github.com/dbsmedya/dedupe/internal/scanner"
	"github.com/dbsmedya/dedupe/internal/types"
	"github.com/spf13/cobra"
)

var (
	scanEntity string
	scanAll    bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for duplicate records",
	Long: `Scan compares records pairwise using the configured matching rules and
stores probable duplicates as pending groups for review.

A rescan refreshes match data on existing groups but never reopens groups
that were already merged, ignored or marked not-duplicate.

Example:
  dedupe scan --config dedupe.yaml --entity customer
  dedupe scan --config dedupe.yaml --all`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVarP(&scanEntity, "entity", "e", "",
		"Entity type to scan (customer, supplier, inventory, contact, employee)")
	scanCmd.Flags().BoolVar(&scanAll, "all", false,
		"Scan all scannable entity types")

	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	if !scanAll && scanEntity == "" {
		return fmt.Errorf("either --entity or --all is required")
	}
	if scanAll && scanEntity != "" {
		return fmt.Errorf("--entity and --all are mutually exclusive")
	}

	var entityType types.EntityType
	if !scanAll {
		var err error
		entityType, err = parseScannableEntity(scanEntity)
		if err != nil {
			return err
		}
	}

	ctx := database.SetupSignalHandler()

	env, err := newAppEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	onProgress := func(p scanner.Progress) {
		if p.Err != nil || p.IsComplete {
			fmt.Fprintf(outputWriter, "\r%s\n", render.ProgressLine(p))
			return
		}
		fmt.Fprintf(outputWriter, "\r%s", render.ProgressLine(p))
	}

	var found []*types.DuplicateGroup
	if scanAll {
		env.log.Infow("Starting duplicate scan", "scope", "all")
		found, err = env.eng.ScanAll(ctx, nil, onProgress)
	} else {
		env.log.Infow("Starting duplicate scan", "entity", entityType)
		found, err = env.eng.Scan(ctx, entityType, onProgress)
	}
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	fmt.Fprintln(outputWriter)
	render.Groups(outputWriter, found)
	return nil
}
