// Package report exports a learner's progress as an XLSX workbook.
package report

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-adaptive/internal/knowledge"
	"github.com/p-n-ai/pai-adaptive/internal/mastery"
	"github.com/p-n-ai/pai-adaptive/internal/recommend"
	"github.com/p-n-ai/pai-adaptive/internal/review"
)

// Sheet names.
const (
	SummarySheet = "Summary"
	MasterySheet = "Mastery"
	ReviewSheet  = "Reviews"
)

const timeLayout = "2006-01-02 15:04"

// MasteryRow is one knowledge point in the mastery sheet.
type MasteryRow struct {
	Node   knowledge.Node
	Record mastery.Record
}

// Data is everything a progress workbook shows.
type Data struct {
	UserID      string
	Grade       int
	GeneratedAt time.Time
	Progress    recommend.Progress
	Mastery     []MasteryRow
	Reviews     []review.Schedule
	names       map[string]string
}

// MasteryReader lists a learner's mastery records.
type MasteryReader interface {
	GetAllMasteries(ctx context.Context, userID string) map[string]mastery.Record
}

// ScheduleLister lists a learner's review schedules.
type ScheduleLister interface {
	Schedules(ctx context.Context, userID string) []review.Schedule
}

// Collector gathers report data from the live components.
type Collector struct {
	Graph     knowledge.Reader
	Engine    *recommend.Engine
	Tracker   MasteryReader
	Schedules ScheduleLister
	Now       func() time.Time
}

// Collect builds the report data for userID. Knowledge points missing from
// the graph are still listed, by ID.
func (c Collector) Collect(ctx context.Context, userID string) Data {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	d := Data{
		UserID:      userID,
		Grade:       c.Engine.Grade(ctx, userID),
		GeneratedAt: now(),
		Progress:    c.Engine.LearningProgress(ctx, userID),
		names:       make(map[string]string),
	}

	for id, rec := range c.Tracker.GetAllMasteries(ctx, userID) {
		node, err := c.Graph.Node(ctx, id)
		if err != nil {
			slog.Debug("report: knowledge point not in graph", "knowledge_id", id, "error", err)
			node = knowledge.Node{ID: id, Name: id}
		}
		d.names[id] = node.Name
		d.Mastery = append(d.Mastery, MasteryRow{Node: node, Record: rec})
	}
	slices.SortFunc(d.Mastery, func(a, b MasteryRow) int {
		return cmp.Or(cmp.Compare(a.Node.Grade, b.Node.Grade), cmp.Compare(a.Node.ID, b.Node.ID))
	})

	if c.Schedules != nil {
		d.Reviews = c.Schedules.Schedules(ctx, userID)
		for _, sc := range d.Reviews {
			if _, ok := d.names[sc.KnowledgeID]; ok {
				continue
			}
			if node, err := c.Graph.Node(ctx, sc.KnowledgeID); err == nil {
				d.names[sc.KnowledgeID] = node.Name
			}
		}
	}
	return d
}

// WriteProgressWorkbook writes d as an XLSX workbook with summary, mastery
// and review sheets.
func WriteProgressWorkbook(w io.Writer, d Data) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return fmt.Errorf("renaming summary sheet: %w", err)
	}
	for _, name := range []string{MasterySheet, ReviewSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("creating sheet %s: %w", name, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	percent, err := f.NewStyle(&excelize.Style{NumFmt: 10})
	if err != nil {
		return fmt.Errorf("creating percent style: %w", err)
	}

	if err := writeSummary(f, d, bold); err != nil {
		return err
	}
	if err := writeMastery(f, d, bold, percent); err != nil {
		return err
	}
	if err := writeReviews(f, d, bold); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, d Data, bold int) error {
	rows := [][]any{
		{"User", d.UserID},
		{"Grade", d.Grade},
		{"Generated", d.GeneratedAt.Format(timeLayout)},
		{"Knowledge points", d.Progress.Total},
		{"Mastered", d.Progress.Mastered},
		{"In progress", d.Progress.InProgress},
		{"Not started", d.Progress.NotStarted},
		{"Progress %", d.Progress.Percentage},
	}
	for i, row := range rows {
		if err := setRow(f, SummarySheet, i+1, row); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(SummarySheet, "A1", fmt.Sprintf("A%d", len(rows)), bold); err != nil {
		return fmt.Errorf("styling summary: %w", err)
	}
	return f.SetColWidth(SummarySheet, "A", "A", 18)
}

func writeMastery(f *excelize.File, d Data, bold, percent int) error {
	header := []any{"Knowledge ID", "Name", "Grade", "Module", "Difficulty",
		"Mastery", "Attempts", "Correct", "Reviews", "Last attempt", "Next review"}
	if err := writeHeader(f, MasterySheet, header, bold); err != nil {
		return err
	}

	for i, row := range d.Mastery {
		r := row.Record
		values := []any{row.Node.ID, row.Node.Name, row.Node.Grade, row.Node.Module, row.Node.Difficulty,
			r.Mastery, r.Attempts, r.Correct, r.ReviewCount, formatTime(r.LastAttemptAt), formatTime(r.NextReviewAt)}
		if err := setRow(f, MasterySheet, i+2, values); err != nil {
			return err
		}
	}
	if len(d.Mastery) > 0 {
		if err := f.SetCellStyle(MasterySheet, "F2", fmt.Sprintf("F%d", len(d.Mastery)+1), percent); err != nil {
			return fmt.Errorf("styling mastery column: %w", err)
		}
	}
	return f.SetColWidth(MasterySheet, "A", "B", 20)
}

func writeReviews(f *excelize.File, d Data, bold int) error {
	header := []any{"Review ID", "Knowledge ID", "Name", "Stage", "Scheduled", "Completed",
		"Performance", "Interval (days)", "Ease factor"}
	if err := writeHeader(f, ReviewSheet, header, bold); err != nil {
		return err
	}

	for i, sc := range d.Reviews {
		completed := ""
		if sc.CompletedAt != nil {
			completed = sc.CompletedAt.Format(timeLayout)
		}
		values := []any{sc.ID, sc.KnowledgeID, d.names[sc.KnowledgeID], sc.Stage + 1,
			sc.ScheduledAt.Format(timeLayout), completed, string(sc.Performance), sc.IntervalDays, sc.EaseFactor}
		if err := setRow(f, ReviewSheet, i+2, values); err != nil {
			return err
		}
	}
	return f.SetColWidth(ReviewSheet, "A", "A", 38)
}

func writeHeader(f *excelize.File, sheet string, header []any, bold int) error {
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return fmt.Errorf("header range: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
		return fmt.Errorf("styling %s header: %w", sheet, err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("row %d: %w", row, err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("writing %s row %d: %w", sheet, row, err)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timeLayout)
}
