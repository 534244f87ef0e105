package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"

	"github.com/dbsmedya/dedupe/internal/metrics"
	"github.com/dbsmedya/dedupe/internal/scanner"
	"github.com/dbsmedya/dedupe/internal/types"
)

func TestMain(m *testing.M) {
	color.Disable()
	m.Run()
}

func TestTableAlignment(t *testing.T) {
	var buf bytes.Buffer
	Table(&buf, []string{"ID", "NAME"}, [][]string{
		{"1", "Acme BV"},
		{"22", "Zeta"},
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want header, separator and 2 rows", len(lines))
	}
	if !strings.HasPrefix(lines[0], "ID") {
		t.Errorf("header = %q", lines[0])
	}
	// Both data rows start their second column at the same offset.
	if strings.Index(lines[2], "Acme") != strings.Index(lines[3], "Zeta") {
		t.Errorf("columns misaligned:\n%s\n%s", lines[2], lines[3])
	}
}

func TestTableWideRunes(t *testing.T) {
	var buf bytes.Buffer
	Table(&buf, []string{"NAME", "CITY"}, [][]string{
		{"株式会社", "Tokyo"},
		{"Acme", "Rotterdam"},
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	// The CJK name occupies 8 display cells over 12 bytes, so alignment is
	// judged in display cells, not byte offsets.
	tokyoCol := runewidth.StringWidth(lines[2][:strings.Index(lines[2], "Tokyo")])
	rotterdamCol := runewidth.StringWidth(lines[3][:strings.Index(lines[3], "Rotterdam")])
	if tokyoCol != rotterdamCol {
		t.Errorf("wide runes break alignment (%d vs %d display cells):\n%s\n%s",
			tokyoCol, rotterdamCol, lines[2], lines[3])
	}
}

func TestGroupsEmpty(t *testing.T) {
	var buf bytes.Buffer
	Groups(&buf, nil)
	if !strings.Contains(buf.String(), "No duplicate groups") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestGroupsTable(t *testing.T) {
	var buf bytes.Buffer
	Groups(&buf, []*types.DuplicateGroup{{
		ID:           "0f5a1c2b-3d4e-5f60-7182-93a4b5c6d7e8",
		EntityType:   types.EntityCustomer,
		RecordIDs:    []string{"c1", "c2"},
		OverallScore: 0.92,
		MatchReason:  "email",
		Status:       types.GroupStatusPending,
	}})

	out := buf.String()
	for _, want := range []string{"0f5a1c2b", "customer", "c1,c2", "0.92", "pending", "email"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "0f5a1c2b-3d4e") {
		t.Error("group id not abbreviated")
	}
}

func TestMetricsTable(t *testing.T) {
	var buf bytes.Buffer
	Metrics(&buf, []*metrics.Metrics{{
		EntityType:    types.EntityCustomer,
		TotalRecords:  10,
		ActiveRecords: 8,
		QualityScore:  87.5,
	}})

	out := buf.String()
	for _, want := range []string{"customer", "10", "87.50"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPreviewOutput(t *testing.T) {
	var buf bytes.Buffer
	Preview(&buf, &types.MergePreview{
		MasterRecord:   types.Record{"id": "c1", "phone": "0612345678"},
		RecordsToMerge: []types.Record{{"id": "c2"}},
		FieldsToMerge: []types.FieldMerge{
			{Field: "phone", MasterValue: "0612345678", MergeValue: "0687654321", Conflict: true},
			{Field: "email", MergeValue: "info@acme.nl"},
		},
		RelationsToRelocate: []types.RelationRelocation{
			{EntityType: types.EntityInvoice, RelationField: "customer_id", Count: 3},
		},
	})

	out := buf.String()
	for _, want := range []string{"Master: c1", "Merging: c2", "CONFLICT", "fill", "invoice", "3"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestMergeLogTable(t *testing.T) {
	var buf bytes.Buffer
	MergeLog(&buf, []*types.MergeOperation{{
		ID:              "a1b2c3d4-0000-0000-0000-000000000000",
		EntityType:      types.EntityCustomer,
		MasterRecordID:  "c1",
		MergedRecordIDs: []string{"c2", "c3"},
		MergedBy:        "operator",
		MergedAt:        time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
	}})

	out := buf.String()
	for _, want := range []string{"a1b2c3d4", "c2,c3", "operator", "2026-03-01 09:30:00"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestProgressLine(t *testing.T) {
	p := scanner.Progress{EntityType: types.EntityCustomer, TotalRecords: 10, ProcessedRecords: 4}
	if got := ProgressLine(p); !strings.Contains(got, "4/10") {
		t.Errorf("ProgressLine = %q", got)
	}

	p.IsComplete = true
	p.ProcessedRecords = 10
	p.FoundDuplicates = 2
	if got := ProgressLine(p); !strings.Contains(got, "2 duplicate groups") {
		t.Errorf("ProgressLine complete = %q", got)
	}
}
