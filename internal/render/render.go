// Package render formats duplicate groups, merge previews and quality
// metrics as aligned terminal tables.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"

	"github.com/dbsmedya/dedupe/internal/metrics"
	"github.com/dbsmedya/dedupe/internal/scanner"
	"github.com/dbsmedya/dedupe/internal/types"
)

// Table writes rows under headers with columns padded to their widest cell.
// Widths are measured in display cells, so wide runes stay aligned.
func Table(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && runewidth.StringWidth(stripped(cell)) > widths[i] {
				widths[i] = runewidth.StringWidth(stripped(cell))
			}
		}
	}

	writeRow := func(cells []string) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			pad := widths[i] - runewidth.StringWidth(stripped(cell))
			parts[i] = cell + strings.Repeat(" ", pad)
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
	}

	writeRow(headers)
	separator := make([]string, len(headers))
	for i := range headers {
		separator[i] = strings.Repeat("-", widths[i])
	}
	writeRow(separator)
	for _, row := range rows {
		writeRow(row)
	}
}

// stripped removes ANSI color sequences so padding math sees only the
// visible text.
func stripped(s string) string {
	return color.ClearCode(s)
}

// Status renders a group status with its conventional color.
func Status(s types.GroupStatus) string {
	switch s {
	case types.GroupStatusPending:
		return color.Yellow.Sprint(string(s))
	case types.GroupStatusMerged:
		return color.Green.Sprint(string(s))
	case types.GroupStatusIgnored:
		return color.Gray.Sprint(string(s))
	case types.GroupStatusNotDuplicate:
		return color.Cyan.Sprint(string(s))
	default:
		return string(s)
	}
}

// Score renders a similarity score, highlighting near-certain duplicates.
func Score(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	if v >= 0.95 {
		return color.Red.Sprint(s)
	}
	if v >= 0.85 {
		return color.Yellow.Sprint(s)
	}
	return s
}

// ShortID abbreviates a UUID for table display.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Groups writes a table of duplicate groups.
func Groups(w io.Writer, groups []*types.DuplicateGroup) {
	if len(groups) == 0 {
		fmt.Fprintln(w, "No duplicate groups found.")
		return
	}
	rows := make([][]string, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, []string{
			ShortID(g.ID),
			string(g.EntityType),
			strings.Join(g.RecordIDs, ","),
			Score(g.OverallScore),
			Status(g.Status),
			g.MatchReason,
		})
	}
	Table(w, []string{"GROUP", "ENTITY", "RECORDS", "SCORE", "STATUS", "REASON"}, rows)
}

// Metrics writes a table of per-entity quality metrics.
func Metrics(w io.Writer, all []*metrics.Metrics) {
	rows := make([][]string, 0, len(all))
	for _, m := range all {
		rows = append(rows, []string{
			string(m.EntityType),
			fmt.Sprintf("%d", m.TotalRecords),
			fmt.Sprintf("%d", m.ActiveRecords),
			fmt.Sprintf("%d", m.DuplicateCount),
			fmt.Sprintf("%d", m.MissingEmailCount),
			fmt.Sprintf("%d", m.MissingPhoneCount),
			fmt.Sprintf("%d", m.OrphanedCount),
			qualityCell(m.QualityScore),
		})
	}
	Table(w, []string{"ENTITY", "TOTAL", "ACTIVE", "DUPES", "NO EMAIL", "NO PHONE", "ORPHANS", "SCORE"}, rows)
}

func qualityCell(score float64) string {
	s := fmt.Sprintf("%.2f", score)
	switch {
	case score >= 90:
		return color.Green.Sprint(s)
	case score >= 70:
		return color.Yellow.Sprint(s)
	default:
		return color.Red.Sprint(s)
	}
}

// Orphans writes a table of broken foreign-key references.
func Orphans(w io.Writer, orphans []metrics.Orphan) {
	if len(orphans) == 0 {
		fmt.Fprintln(w, "No orphaned records found.")
		return
	}
	rows := make([][]string, 0, len(orphans))
	for _, o := range orphans {
		rows = append(rows, []string{
			string(o.EntityType),
			o.RecordID,
			o.ForeignKey,
			string(o.ParentType),
			o.ParentID,
		})
	}
	Table(w, []string{"ENTITY", "RECORD", "FOREIGN KEY", "PARENT", "MISSING ID"}, rows)
}

// Preview writes a human-readable merge preview: the field decisions first,
// then the dependent records that would be relocated.
func Preview(w io.Writer, p *types.MergePreview) {
	fmt.Fprintf(w, "Master: %s\n", p.MasterRecord.ID())
	ids := make([]string, 0, len(p.RecordsToMerge))
	for _, rec := range p.RecordsToMerge {
		ids = append(ids, rec.ID())
	}
	fmt.Fprintf(w, "Merging: %s\n\n", strings.Join(ids, ", "))

	if len(p.FieldsToMerge) > 0 {
		rows := make([][]string, 0, len(p.FieldsToMerge))
		for _, fm := range p.FieldsToMerge {
			state := "fill"
			if fm.Conflict {
				state = color.Red.Sprint("CONFLICT")
			} else if !types.IsEmpty(fm.MasterValue) {
				state = "keep"
			}
			rows = append(rows, []string{
				fm.Field,
				types.ToString(fm.MasterValue),
				types.ToString(fm.MergeValue),
				state,
			})
		}
		Table(w, []string{"FIELD", "MASTER", "CANDIDATE", "ACTION"}, rows)
	}

	if len(p.RelationsToRelocate) > 0 {
		fmt.Fprintln(w)
		rows := make([][]string, 0, len(p.RelationsToRelocate))
		for _, rel := range p.RelationsToRelocate {
			rows = append(rows, []string{
				string(rel.EntityType),
				rel.RelationField,
				fmt.Sprintf("%d", rel.Count),
			})
		}
		Table(w, []string{"RELOCATE", "FOREIGN KEY", "RECORDS"}, rows)
	}
}

// MergeLog writes the audit trail as a table.
func MergeLog(w io.Writer, ops []*types.MergeOperation) {
	if len(ops) == 0 {
		fmt.Fprintln(w, "No merges recorded.")
		return
	}
	rows := make([][]string, 0, len(ops))
	for _, op := range ops {
		rows = append(rows, []string{
			ShortID(op.ID),
			string(op.EntityType),
			op.MasterRecordID,
			strings.Join(op.MergedRecordIDs, ","),
			op.MergedBy,
			op.MergedAt.Format("2006-01-02 15:04:05"),
		})
	}
	Table(w, []string{"MERGE", "ENTITY", "MASTER", "MERGED", "BY", "AT"}, rows)
}

// ProgressLine formats one scan progress update for a live status line.
func ProgressLine(p scanner.Progress) string {
	if p.Err != nil {
		return fmt.Sprintf("%s: scan failed: %v", p.EntityType, p.Err)
	}
	if p.IsComplete {
		return fmt.Sprintf("%s: %d/%d records, %d duplicate groups",
			p.EntityType, p.ProcessedRecords, p.TotalRecords, p.FoundDuplicates)
	}
	return fmt.Sprintf("%s: %d/%d records...", p.EntityType, p.ProcessedRecords, p.TotalRecords)
}
