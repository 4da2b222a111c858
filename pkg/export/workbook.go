// Package export writes collection results as a multi-sheet XLSX workbook.
package export

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"xengage/pkg/collector"
	"xengage/pkg/logger"
	"xengage/pkg/models"
)

// Sheet names in workbook order.
const (
	SheetCombined = "Combined"
	SheetLikes    = "Likes"
	SheetReposts  = "Reposts"
	SheetReplies  = "Replies"
)

var (
	identityHeader = []interface{}{"Handle", "Display Name", "User ID", "Kind"}
	repliesHeader  = []interface{}{"Handle", "Display Name", "User ID", "Kind", "Reply Text", "Reply Source ID", "Observed At"}

	// One width per column, in header order. Reply text gets the room.
	columnWidths = []float64{20, 26, 22, 12, 60, 22, 22}
)

// Writer builds XLSX workbooks from collection results.
type Writer struct {
	logger logger.Logger
}

// NewWriter creates a workbook writer.
func NewWriter(log logger.Logger) *Writer {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Writer{logger: log}
}

// Build assembles the workbook in memory. The Combined sheet is always
// present, even when the run collected nothing; the per-kind sheets exist
// only when they carry records. Identity ids are written as text so Excel
// does not mangle snowflake ids into scientific notation.
func (w *Writer) Build(res *collector.Result) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", SheetCombined); err != nil {
		return nil, fmt.Errorf("renaming combined sheet: %w", err)
	}
	if err := w.writeIdentitySheet(f, SheetCombined, res.Combined); err != nil {
		return nil, err
	}

	if len(res.Likes) > 0 {
		if _, err := f.NewSheet(SheetLikes); err != nil {
			return nil, fmt.Errorf("creating likes sheet: %w", err)
		}
		if err := w.writeIdentitySheet(f, SheetLikes, res.Likes); err != nil {
			return nil, err
		}
	}
	if len(res.Reposts) > 0 {
		if _, err := f.NewSheet(SheetReposts); err != nil {
			return nil, fmt.Errorf("creating reposts sheet: %w", err)
		}
		if err := w.writeIdentitySheet(f, SheetReposts, res.Reposts); err != nil {
			return nil, err
		}
	}
	if len(res.Replies) > 0 {
		if _, err := f.NewSheet(SheetReplies); err != nil {
			return nil, fmt.Errorf("creating replies sheet: %w", err)
		}
		if err := w.writeRepliesSheet(f, res.Replies); err != nil {
			return nil, err
		}
	}

	idx, err := f.GetSheetIndex(SheetCombined)
	if err != nil {
		return nil, fmt.Errorf("locating combined sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	return f, nil
}

// Save builds the workbook and writes it to path.
func (w *Writer) Save(res *collector.Result, path string) error {
	f, err := w.Build(res)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}

	w.logger.InfoWithFields("workbook written", map[string]interface{}{
		"path":    path,
		"records": len(res.Combined),
		"sheets":  len(f.GetSheetList()),
	})
	return nil
}

func (w *Writer) writeIdentitySheet(f *excelize.File, sheet string, records []models.InteractionRecord) error {
	if err := f.SetSheetRow(sheet, "A1", &identityHeader); err != nil {
		return fmt.Errorf("writing %s header: %w", sheet, err)
	}
	for i, rec := range records {
		row := []interface{}{
			rec.Identity.Handle,
			rec.Identity.DisplayName,
			rec.Identity.PlatformUserID,
			string(rec.Kind),
		}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, i+2, err)
		}
	}
	return w.styleSheet(f, sheet, len(identityHeader))
}

func (w *Writer) writeRepliesSheet(f *excelize.File, records []models.InteractionRecord) error {
	if err := f.SetSheetRow(SheetReplies, "A1", &repliesHeader); err != nil {
		return fmt.Errorf("writing %s header: %w", SheetReplies, err)
	}
	for i, rec := range records {
		observed := ""
		if !rec.ObservedAt.IsZero() {
			observed = rec.ObservedAt.Format(time.RFC3339)
		}
		row := []interface{}{
			rec.Identity.Handle,
			rec.Identity.DisplayName,
			rec.Identity.PlatformUserID,
			string(rec.Kind),
			rec.ReplyText,
			rec.ReplySourceID,
			observed,
		}
		if err := f.SetSheetRow(SheetReplies, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return fmt.Errorf("writing %s row %d: %w", SheetReplies, i+2, err)
		}
	}
	return w.styleSheet(f, SheetReplies, len(repliesHeader))
}

// styleSheet bolds the header row and sizes the columns.
func (w *Writer) styleSheet(f *excelize.File, sheet string, columns int) error {
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(columns, 1)
	if err != nil {
		return fmt.Errorf("locating %s header range: %w", sheet, err)
	}
	if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
		return fmt.Errorf("styling %s header: %w", sheet, err)
	}

	for i := 0; i < columns; i++ {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("sizing %s columns: %w", sheet, err)
		}
		if err := f.SetColWidth(sheet, col, col, columnWidths[i]); err != nil {
			return fmt.Errorf("sizing %s columns: %w", sheet, err)
		}
	}
	return nil
}
