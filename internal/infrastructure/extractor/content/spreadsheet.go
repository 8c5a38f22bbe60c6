package content

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/domain"
)

// sheetWriter flattens sheets into "=== Sheet: name ===" blocks of
// tab-separated rows, dropping rows with no visible cell.
type sheetWriter struct {
	b      strings.Builder
	sheets int
}

func (w *sheetWriter) startSheet(name string) {
	if w.b.Len() > 0 {
		w.b.WriteString("\n")
	}
	w.b.WriteString("=== Sheet: ")
	w.b.WriteString(name)
	w.b.WriteString(" ===\n")
	w.sheets++
}

func (w *sheetWriter) writeRow(cells []string) {
	empty := true
	for i, c := range cells {
		c = strings.TrimSpace(c)
		cells[i] = c
		if c != "" {
			empty = false
		}
	}
	if empty {
		return
	}
	w.b.WriteString(strings.Join(cells, "\t"))
	w.b.WriteString("\n")
}

func (w *sheetWriter) content(kind domain.ContentKind) domain.NormalizedContent {
	return domain.NormalizedContent{
		Kind:      kind,
		Text:      w.b.String(),
		PageCount: w.sheets,
	}
}

func normalizeXLSX(path string) (domain.NormalizedContent, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return domain.NormalizedContent{}, domain.WrapError(domain.ErrCorruptInput, "open xlsx", err)
	}
	defer f.Close()

	var w sheetWriter
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return domain.NormalizedContent{}, domain.WrapError(domain.ErrCorruptInput, "read xlsx sheet "+name, err)
		}
		w.startSheet(name)
		for _, row := range rows {
			w.writeRow(row)
		}
	}
	return w.content(domain.ContentSpreadsheet), nil
}

func normalizeXLS(path string, rowCap int) (result domain.NormalizedContent, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.WrapError(domain.ErrCorruptInput, "read xls", fmt.Errorf("decoder panic: %v", r))
		}
	}()

	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return domain.NormalizedContent{}, domain.WrapError(domain.ErrCorruptInput, "open xls", err)
	}

	var w sheetWriter
	for i := 0; i < wb.NumSheets(); i++ {
		sheet := wb.GetSheet(i)
		if sheet == nil {
			continue
		}
		w.startSheet(sheet.Name)
		for r := 0; r <= int(sheet.MaxRow) && r < rowCap; r++ {
			row := sheet.Row(r)
			if row == nil {
				continue
			}
			cells := make([]string, 0, row.LastCol())
			for c := row.FirstCol(); c < row.LastCol(); c++ {
				cells = append(cells, row.Col(c))
			}
			w.writeRow(cells)
		}
	}
	return w.content(domain.ContentSpreadsheet), nil
}

func normalizeCSV(path, sheetName string) (domain.NormalizedContent, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.NormalizedContent{}, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var w sheetWriter
	w.startSheet(sheetName)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.NormalizedContent{}, domain.WrapError(domain.ErrCorruptInput, "read csv", err)
		}
		w.writeRow(record)
	}
	return w.content(domain.ContentCSV), nil
}
