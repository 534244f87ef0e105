package cmd

import (
	"fmt"
	"strings"

	"github.com/dbsmedya/dedupe/internal/database"
	"github.com/dbsmedya/dedupe/internal/render"
	"github.com/dbsmedya/dedupe/internal/types"
	"github.com/spf13/cobra"
)

var (
	mergeEntity  string
	mergeMaster  string
	mergeIDs     []string
	mergeGroup   string
	mergeResolve []string
	mergeBy      string
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge duplicate records into a master",
	Long: `Merge consolidates duplicate records: the master keeps its values, empty
master fields are filled from the duplicates, dependent records are repointed
at the master, and the duplicates are soft-deleted with a reference back to
the master. Every merge is recorded in the audit log.

Field conflicts keep the master's value unless resolved with --resolve.

Records can be named explicitly, or taken from a scanned group with --group
(the group's suggested master applies when --master is omitted).

Example:
  dedupe merge --entity customer --master c1 --ids c2,c3 --by alice
  dedupe merge --entity customer --master c1 --ids c2 --resolve phone=0612345678
  dedupe merge --group 4fca1b2e-... --by alice`,
	RunE: runMerge,
}

func init() {
	mergeCmd.Flags().StringVarP(&mergeEntity, "entity", "e", "",
		"Entity type of the records")
	mergeCmd.Flags().StringVarP(&mergeMaster, "master", "m", "",
		"ID of the record that survives the merge")
	mergeCmd.Flags().StringSliceVar(&mergeIDs, "ids", nil,
		"Comma-separated IDs of the records to merge into the master")
	mergeCmd.Flags().StringVarP(&mergeGroup, "group", "g", "",
		"Merge the members of a scanned duplicate group")
	mergeCmd.Flags().StringArrayVar(&mergeResolve, "resolve", nil,
		"Resolve a field conflict as field=value (repeatable)")
	mergeCmd.Flags().StringVar(&mergeBy, "by", "cli",
		"Operator recorded in the audit log")

	rootCmd.AddCommand(mergeCmd)
}

func runMerge(cmd *cobra.Command, args []string) error {
	if mergeGroup == "" {
		if mergeEntity == "" || mergeMaster == "" || len(mergeIDs) == 0 {
			return fmt.Errorf("either --group or all of --entity, --master and --ids are required")
		}
	} else if mergeEntity != "" || len(mergeIDs) > 0 {
		return fmt.Errorf("--group cannot be combined with --entity or --ids")
	}

	resolutions, err := parseResolutions(mergeResolve)
	if err != nil {
		return err
	}

	var entityType types.EntityType
	if mergeGroup == "" {
		entityType, err = parseScannableEntity(mergeEntity)
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

	var op *types.MergeOperation
	if mergeGroup != "" {
		op, err = env.eng.MergeGroup(ctx, mergeGroup, mergeMaster, resolutions, mergeBy)
	} else {
		op, err = env.eng.Merge(ctx, entityType, mergeMaster, mergeIDs, resolutions, mergeBy)
	}
	if err != nil {
		return fmt.Errorf("merge failed: %w", err)
	}

	fmt.Fprintf(outputWriter, "Merged %s into %s\n",
		strings.Join(op.MergedRecordIDs, ", "), op.MasterRecordID)
	fmt.Fprintf(outputWriter, "Fields merged: %d, conflicts resolved: %d\n",
		len(op.MergeDetails.FieldsMerged), len(op.MergeDetails.ConflictsResolved))
	for _, rel := range op.MergeDetails.RelationsRelocated {
		fmt.Fprintf(outputWriter, "Relocated %d %s record(s)\n", rel.Count, rel.EntityType)
	}
	fmt.Fprintf(outputWriter, "Audit entry: %s\n", render.ShortID(op.ID))
	return nil
}

// parseResolutions converts repeated field=value flags into conflict
// resolutions. The value side may contain further '=' characters.
func parseResolutions(pairs []string) ([]types.ConflictResolution, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	resolutions := make([]types.ConflictResolution, 0, len(pairs))
	for _, pair := range pairs {
		field, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(field) == "" {
			return nil, fmt.Errorf("invalid --resolve value %q (expected field=value)", pair)
		}
		resolutions = append(resolutions, types.ConflictResolution{
			Field:       strings.TrimSpace(field),
			ChosenValue: value,
		})
	}
	return resolutions, nil
}
