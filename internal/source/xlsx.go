package source

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/llm-d/llm-d-group-allocator/api/v1alpha1"
)

// DecodeXLSX reads a roster from a worksheet whose first row holds the
// column headings. An empty sheet name selects the first sheet. Blank rows
// are skipped.
func DecodeXLSX(r io.Reader, sheet string) ([]v1alpha1.StudentRecord, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
		if sheet == "" {
			return nil, errors.New("workbook does not contain any sheets")
		}
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows from sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %s is empty", sheet)
	}

	header := normalizeHeader(rows[0])
	if err := checkColumns(header); err != nil {
		return nil, fmt.Errorf("sheet %s: %w", sheet, err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}
	cell := func(row []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	records := make([]v1alpha1.StudentRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if blank(row) {
			continue
		}
		records = append(records, v1alpha1.StudentRecord{
			ID:             cell(row, colID),
			Name:           cell(row, colName),
			GPA:            cell(row, colGPA),
			Gender:         cell(row, colGender),
			Specialisation: cell(row, colSpecialisation),
			Ethnicity:      cell(row, colEthnicity),
		})
	}
	return records, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
