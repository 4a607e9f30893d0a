package content_test

import (
	"fmt"
	"testing"

	"github.com/p-n-ai/pai-content/internal/apperr"
	"github.com/p-n-ai/pai-content/internal/content"
	"github.com/p-n-ai/pai-content/internal/hierarchy"
	"github.com/p-n-ai/pai-content/internal/period"
)

var biologyScope = hierarchy.Scope{
	ExamID: "exam-1", SubjectID: "subject-1", TrackID: "track-weekly", SubCategoryID: "subcat-plan",
	ExamName: "WASSCE", SubjectName: "Biology", TrackName: "Biology Weekly", SubCategoryName: "studyplan",
}

func periodQuery(t *testing.T, scope hierarchy.Scope, typ period.TrackType, id string) content.PeriodQuery {
	t.Helper()
	enc, err := period.Encode(typ, id)
	if err != nil {
		t.Fatalf("Encode(%s, %q) error = %v", typ, id, err)
	}
	return content.PeriodQuery{Scope: scope, Period: enc}
}

func newEnricher(t *testing.T) *content.Enricher {
	t.Helper()
	e, err := content.NewEnricher()
	if err != nil {
		t.Fatalf("NewEnricher() error = %v", err)
	}
	return e
}

func inputs(n int) []content.Input {
	out := make([]content.Input, n)
	for i := range out {
		out[i] = content.Input{Name: fmt.Sprintf("cells_%d", i+1), DisplayName: fmt.Sprintf("Cells %d", i+1)}
	}
	return out
}

func TestEnrich_WeekFive(t *testing.T) {
	e := newEnricher(t)
	q := periodQuery(t, biologyScope, period.Weeks, "5")

	items, err := e.Enrich(q, inputs(3), nil)
	if err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len(items) = %d, want 3", len(items))
	}

	for i, it := range items {
		wantName := fmt.Sprintf("week5_cells_%d", i+1)
		if it.Name != wantName {
			t.Errorf("items[%d].Name = %q, want %q", i, it.Name, wantName)
		}
		wantDisplay := fmt.Sprintf("Week 5 - Cells %d", i+1)
		if it.DisplayName != wantDisplay {
			t.Errorf("items[%d].DisplayName = %q, want %q", i, it.DisplayName, wantDisplay)
		}
		if want := int64(5000 + i); it.OrderIndex != want {
			t.Errorf("items[%d].OrderIndex = %d, want %d", i, it.OrderIndex, want)
		}
		if it.Metadata["week"] != 5 || it.Metadata["timeBasedContent"] != true {
			t.Errorf("items[%d].Metadata = %v, want week 5 and timeBasedContent", i, it.Metadata)
		}
		if it.PeriodKey != "weeks:5" {
			t.Errorf("items[%d].PeriodKey = %q, want weeks:5", i, it.PeriodKey)
		}
		if it.TrackName != "Biology Weekly" || it.ExamName != "WASSCE" {
			t.Errorf("items[%d] scope names = %q/%q, want denormalized names", i, it.ExamName, it.TrackName)
		}
		if it.Kind != content.KindContent {
			t.Errorf("items[%d].Kind = %q, want content", i, it.Kind)
		}
	}
}

func TestEnrich_DescriptionAndDisplayDefaults(t *testing.T) {
	e := newEnricher(t)
	q := periodQuery(t, biologyScope, period.Months, "3")

	items, err := e.Enrich(q, []content.Input{
		{Name: "photosynthesis"},
		{Name: "respiration", DisplayName: "Respiration", Description: "How cells release energy"},
	}, nil)
	if err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}

	if items[0].DisplayName != "March - photosynthesis" {
		t.Errorf("DisplayName = %q, want %q", items[0].DisplayName, "March - photosynthesis")
	}
	if items[0].Description != "March: photosynthesis" {
		t.Errorf("Description = %q, want %q", items[0].Description, "March: photosynthesis")
	}
	if items[1].Description != "How cells release energy" {
		t.Errorf("Description = %q, want caller value", items[1].Description)
	}
}

func TestEnrich_PeriodFieldsOverrideCallerMetadata(t *testing.T) {
	e := newEnricher(t)
	q := periodQuery(t, biologyScope, period.Weeks, "2")

	items, err := e.Enrich(q, []content.Input{
		{Name: "genetics", Metadata: map[string]any{"week": 9, "difficulty": "hard"}},
	}, nil)
	if err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}
	if items[0].Metadata["week"] != 2 {
		t.Errorf("week = %v, want 2", items[0].Metadata["week"])
	}
	if items[0].Metadata["difficulty"] != "hard" {
		t.Errorf("difficulty = %v, want caller value kept", items[0].Metadata["difficulty"])
	}
}

func TestEnrich_KeepsExistingPrefix(t *testing.T) {
	e := newEnricher(t)
	q := periodQuery(t, biologyScope, period.Weeks, "4")

	items, err := e.Enrich(q, []content.Input{{Name: "week4_ecology", DisplayName: "Week 4 - Ecology"}}, nil)
	if err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}
	if items[0].Name != "week4_ecology" {
		t.Errorf("Name = %q, want %q", items[0].Name, "week4_ecology")
	}
	if items[0].DisplayName != "Week 4 - Ecology" {
		t.Errorf("DisplayName = %q, want %q", items[0].DisplayName, "Week 4 - Ecology")
	}
	if items[0].Description != "Week 4: Ecology" {
		t.Errorf("Description = %q, want %q", items[0].Description, "Week 4: Ecology")
	}
}

func TestEnrich_Semester(t *testing.T) {
	e := newEnricher(t)
	q := periodQuery(t, biologyScope, period.Semester, "First Semester")

	items, err := e.Enrich(q, inputs(2), nil)
	if err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}
	if items[1].Name != "semester1_cells_2" {
		t.Errorf("Name = %q, want semester1_cells_2", items[1].Name)
	}
	if items[1].OrderIndex != 100_001 {
		t.Errorf("OrderIndex = %d, want 100001", items[1].OrderIndex)
	}
	if items[0].Metadata["semesterName"] != "First Semester" || items[0].Metadata["semester"] != 1 {
		t.Errorf("Metadata = %v, want semester 1 and semesterName", items[0].Metadata)
	}
	if items[0].DisplayName != "First Semester - Cells 1" {
		t.Errorf("DisplayName = %q", items[0].DisplayName)
	}
}

func TestEnrich_Questions(t *testing.T) {
	e := newEnricher(t)
	scope := biologyScope
	scope.TrackID, scope.TrackName = "track-past", "Past Papers"
	q := periodQuery(t, scope, period.Years, "2021")

	items, err := e.Enrich(q, []content.Input{
		{Name: "q1", Topic: " Cell Biology ", Question: "What is a cell?", Options: []string{"A", "B"}, Answer: "A"},
	}, []string{"topic-cells"})
	if err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}
	it := items[0]
	if it.Kind != content.KindQuestion {
		t.Errorf("Kind = %q, want question", it.Kind)
	}
	if it.Year != 2021 {
		t.Errorf("Year = %d, want 2021", it.Year)
	}
	if it.TopicID != "topic-cells" || it.Topic != "Cell Biology" {
		t.Errorf("topic = %q/%q, want topic-cells/Cell Biology", it.TopicID, it.Topic)
	}
	if it.OrderIndex != 2021*1_000_000 {
		t.Errorf("OrderIndex = %d, want %d", it.OrderIndex, 2021*1_000_000)
	}
}

func TestEnrich_Rejections(t *testing.T) {
	e := newEnricher(t)

	tests := []struct {
		name   string
		typ    period.TrackType
		id     string
		inputs []content.Input
		kind   apperr.Kind
	}{
		{"missing name", period.Weeks, "1", []content.Input{{Name: "ok"}, {Name: "  "}}, apperr.KindInvalidInput},
		{"year before schema minimum", period.Years, "1850", []content.Input{{Name: "old"}}, apperr.KindInvalidInput},
		{"week capacity", period.Weeks, "1", inputs(101), apperr.KindCapacityExceeded},
		{"day capacity", period.Days, "1", inputs(101), apperr.KindCapacityExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := periodQuery(t, biologyScope, tt.typ, tt.id)
			_, err := e.Enrich(q, tt.inputs, nil)
			if got := apperr.KindOf(err); got != tt.kind {
				t.Errorf("Enrich() kind = %q, want %q (err = %v)", got, tt.kind, err)
			}
		})
	}
}

func TestEnrich_RejectionDetailsListEveryItem(t *testing.T) {
	e := newEnricher(t)
	q := periodQuery(t, biologyScope, period.Weeks, "1")

	_, err := e.Enrich(q, []content.Input{{Name: ""}, {Name: "fine"}, {Name: ""}}, nil)
	failures, ok := apperr.DetailsOf(err).([]content.ItemError)
	if !ok {
		t.Fatalf("DetailsOf() = %T, want []content.ItemError", apperr.DetailsOf(err))
	}
	if len(failures) != 2 || failures[0].Index != 0 || failures[1].Index != 2 {
		t.Errorf("failures = %+v, want indices 0 and 2", failures)
	}
}
