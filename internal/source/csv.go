package source

import (
	"encoding/csv"
	"errors"
	"io"

	"github.com/gocarina/gocsv"

	"github.com/llm-d/llm-d-group-allocator/api/v1alpha1"
)

// DecodeCSV reads a roster with a header row. Columns are matched by
// heading, in any order; extra columns are ignored.
func DecodeCSV(r io.Reader) ([]v1alpha1.StudentRecord, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	hr := &headerReader{r: cr}

	var records []v1alpha1.StudentRecord
	if err := gocsv.UnmarshalCSV(hr, &records); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil, errors.New("empty roster file")
		}
		if hr.err != nil {
			return nil, hr.err
		}
		return nil, err
	}
	if hr.err != nil {
		return nil, hr.err
	}
	return records, nil
}

// headerReader normalizes and checks the header row before gocsv maps
// columns onto struct tags.
type headerReader struct {
	r      *csv.Reader
	header bool
	err    error
}

func (h *headerReader) Read() ([]string, error) {
	row, err := h.r.Read()
	if err != nil || h.header {
		return row, err
	}
	h.header = true
	row = normalizeHeader(row)
	if err := checkColumns(row); err != nil {
		h.err = err
		return nil, err
	}
	return row, nil
}

func (h *headerReader) ReadAll() ([][]string, error) {
	var rows [][]string
	for {
		row, err := h.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
}
