package report_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-adaptive/internal/knowledge"
	"github.com/p-n-ai/pai-adaptive/internal/mastery"
	"github.com/p-n-ai/pai-adaptive/internal/recommend"
	"github.com/p-n-ai/pai-adaptive/internal/report"
	"github.com/p-n-ai/pai-adaptive/internal/review"
)

var fixedNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func collect(t *testing.T) report.Data {
	t.Helper()
	ctx := t.Context()
	g, err := knowledge.LoadSeed()
	if err != nil {
		t.Fatalf("LoadSeed() error = %v", err)
	}
	clock := func() time.Time { return fixedNow }
	tracker := mastery.NewTracker(mastery.TrackerConfig{Now: clock})
	engine := recommend.NewEngine(recommend.EngineConfig{Graph: g, Tracker: tracker, Now: clock})
	sched := review.NewScheduler(review.SchedulerConfig{
		Store:   review.NewMemoryStore(),
		Graph:   g,
		Tracker: tracker,
		Now:     clock,
	})

	for _, id := range []string{"g4-comp-02", "g4-comp-01"} {
		if _, err := tracker.UpdateMastery(ctx, "u1", id, true, 30*time.Second); err != nil {
			t.Fatalf("UpdateMastery(%s) error = %v", id, err)
		}
	}
	if _, err := sched.CreateReviewSchedule(ctx, "u1", "g4-comp-01", 0); err != nil {
		t.Fatalf("CreateReviewSchedule() error = %v", err)
	}

	return report.Collector{
		Graph:     g,
		Engine:    engine,
		Tracker:   tracker,
		Schedules: sched,
		Now:       clock,
	}.Collect(ctx, "u1")
}

func TestCollect(t *testing.T) {
	d := collect(t)

	if d.Grade != 4 {
		t.Errorf("Grade = %d, want 4", d.Grade)
	}
	if d.Progress.Total != 3 {
		t.Errorf("Progress.Total = %d, want 3", d.Progress.Total)
	}
	if len(d.Mastery) != 2 || d.Mastery[0].Node.ID != "g4-comp-01" || d.Mastery[1].Node.ID != "g4-comp-02" {
		t.Fatalf("Mastery rows = %+v, want g4-comp-01 then g4-comp-02", d.Mastery)
	}
	if d.Mastery[0].Node.Name == "" {
		t.Error("mastery row should carry the node name")
	}
	if len(d.Reviews) != 1 {
		t.Errorf("Reviews = %d, want 1", len(d.Reviews))
	}
}

func TestWriteProgressWorkbook(t *testing.T) {
	d := collect(t)

	var buf bytes.Buffer
	if err := report.WriteProgressWorkbook(&buf, d); err != nil {
		t.Fatalf("WriteProgressWorkbook() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	want := []string{report.SummarySheet, report.MasterySheet, report.ReviewSheet}
	if len(sheets) != len(want) {
		t.Fatalf("sheets = %v, want %v", sheets, want)
	}
	for i := range want {
		if sheets[i] != want[i] {
			t.Errorf("sheet %d = %q, want %q", i, sheets[i], want[i])
		}
	}

	user, _ := f.GetCellValue(report.SummarySheet, "B1")
	if user != "u1" {
		t.Errorf("summary user = %q, want u1", user)
	}

	rows, err := f.GetRows(report.MasterySheet)
	if err != nil {
		t.Fatalf("GetRows(mastery) error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("mastery rows = %d, want header + 2", len(rows))
	}
	if rows[0][0] != "Knowledge ID" || rows[1][0] != "g4-comp-01" {
		t.Errorf("mastery rows = %v", rows)
	}

	reviews, err := f.GetRows(report.ReviewSheet)
	if err != nil {
		t.Fatalf("GetRows(reviews) error = %v", err)
	}
	if len(reviews) != 2 {
		t.Fatalf("review rows = %d, want header + 1", len(reviews))
	}
	if reviews[1][1] != "g4-comp-01" || reviews[1][3] != "1" {
		t.Errorf("review row = %v, want g4-comp-01 at stage 1", reviews[1])
	}
}

func TestWriteProgressWorkbook_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := report.WriteProgressWorkbook(&buf, report.Data{UserID: "nobody", GeneratedAt: fixedNow}); err != nil {
		t.Fatalf("WriteProgressWorkbook() error = %v", err)
	}
	if buf.Len() == 0 {
		t.Error("workbook is empty")
	}
}
