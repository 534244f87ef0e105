package cmd

import (
	"fmt"

	"github.com/dbsmedya/dedupe/internal/database"
	"github.com/dbsmedya/dedupe/internal/groups"
	"github.com/dbsmedya/dedupe/internal/render"
	"github.com/dbsmedya/dedupe/internal/types"
	"github.com/spf13/cobra"
)

var (
	groupsEntity string
	groupsStatus string
)

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "List and adjudicate duplicate groups",
	Long: `Groups manages the duplicate groups produced by scans.

Pending groups can be merged (see the merge command), ignored, marked as
not-duplicate, or removed entirely. Adjudications are one-way: a merged,
ignored or not-duplicate group never returns to pending.

Example:
  dedupe groups list --entity customer --status pending
  dedupe groups show 4fca1b2e
  dedupe groups ignore 4fca1b2e-...
  dedupe groups not-duplicate 4fca1b2e-...
  dedupe groups remove 4fca1b2e-...`,
}

var groupsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List duplicate groups",
	RunE:  runGroupsList,
}

var groupsShowCmd = &cobra.Command{
	Use:   "show <group-id>",
	Short: "Show one duplicate group in detail",
	Args:  cobra.ExactArgs(1),
	RunE:  runGroupsShow,
}

var groupsIgnoreCmd = &cobra.Command{
	Use:   "ignore <group-id>",
	Short: "Dismiss a pending group without deciding",
	Args:  cobra.ExactArgs(1),
	RunE:  runGroupsIgnore,
}

var groupsNotDuplicateCmd = &cobra.Command{
	Use:   "not-duplicate <group-id>",
	Short: "Mark a pending group as distinct records",
	Args:  cobra.ExactArgs(1),
	RunE:  runGroupsNotDuplicate,
}

var groupsRemoveCmd = &cobra.Command{
	Use:   "remove <group-id>",
	Short: "Delete a group regardless of status",
	Args:  cobra.ExactArgs(1),
	RunE:  runGroupsRemove,
}

func init() {
	groupsListCmd.Flags().StringVarP(&groupsEntity, "entity", "e", "",
		"Filter by entity type")
	groupsListCmd.Flags().StringVarP(&groupsStatus, "status", "s", "",
		"Filter by status (pending, merged, ignored, not_duplicate)")

	groupsCmd.AddCommand(groupsListCmd)
	groupsCmd.AddCommand(groupsShowCmd)
	groupsCmd.AddCommand(groupsIgnoreCmd)
	groupsCmd.AddCommand(groupsNotDuplicateCmd)
	groupsCmd.AddCommand(groupsRemoveCmd)

	rootCmd.AddCommand(groupsCmd)
}

func runGroupsList(cmd *cobra.Command, args []string) error {
	filter := groups.Filter{}

	if groupsEntity != "" {
		entityType, err := parseScannableEntity(groupsEntity)
		if err != nil {
			return err
		}
		filter.EntityType = entityType
	}
	if groupsStatus != "" {
		status := types.GroupStatus(groupsStatus)
		if !status.Valid() {
			return fmt.Errorf("unknown status %q", groupsStatus)
		}
		filter.Status = status
	}

	ctx := database.SetupSignalHandler()

	env, err := newAppEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	list, err := env.eng.ListGroups(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to list groups: %w", err)
	}

	render.Groups(outputWriter, list)
	return nil
}

func runGroupsShow(cmd *cobra.Command, args []string) error {
	ctx := database.SetupSignalHandler()

	env, err := newAppEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	group, err := env.eng.GetGroup(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get group: %w", err)
	}

	fmt.Fprintf(outputWriter, "Group:     %s\n", group.ID)
	fmt.Fprintf(outputWriter, "Entity:    %s\n", group.EntityType)
	fmt.Fprintf(outputWriter, "Status:    %s\n", render.Status(group.Status))
	fmt.Fprintf(outputWriter, "Score:     %s\n", render.Score(group.OverallScore))
	fmt.Fprintf(outputWriter, "Master:    %s (suggested)\n", group.SuggestedMasterID)
	fmt.Fprintf(outputWriter, "Reason:    %s\n", group.MatchReason)
	fmt.Fprintf(outputWriter, "Last scan: %s\n\n", group.LastScanAt.Format("2006-01-02 15:04:05"))

	rows := make([][]string, 0, len(group.Matches))
	for _, m := range group.Matches {
		rows = append(rows, []string{
			m.RecordID,
			render.Score(m.Score),
			fmt.Sprintf("%v", m.MatchedFields),
		})
	}
	render.Table(outputWriter, []string{"RECORD", "SCORE", "MATCHED FIELDS"}, rows)
	return nil
}

func runGroupsIgnore(cmd *cobra.Command, args []string) error {
	return adjudicateGroup(args[0], types.GroupStatusIgnored)
}

func runGroupsNotDuplicate(cmd *cobra.Command, args []string) error {
	return adjudicateGroup(args[0], types.GroupStatusNotDuplicate)
}

func adjudicateGroup(groupID string, status types.GroupStatus) error {
	ctx := database.SetupSignalHandler()

	env, err := newAppEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	if err := env.eng.SetGroupStatus(ctx, groupID, status); err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}

	fmt.Fprintf(outputWriter, "Group %s marked %s\n", render.ShortID(groupID), status)
	return nil
}

func runGroupsRemove(cmd *cobra.Command, args []string) error {
	ctx := database.SetupSignalHandler()

	env, err := newAppEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	if err := env.eng.RemoveGroup(ctx, args[0]); err != nil {
		return fmt.Errorf("failed to remove group: %w", err)
	}

	fmt.Fprintf(outputWriter, "Group %s removed\n", render.ShortID(args[0]))
	return nil
}
