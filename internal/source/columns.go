package source

import (
	"fmt"
	"strings"
)

// Canonical column names, matching the csv tags of v1alpha1.StudentRecord.
const (
	colID             = "id"
	colName           = "name"
	colGPA            = "gpa"
	colGender         = "gender"
	colSpecialisation = "specialisation"
	colEthnicity      = "ethnicity"
)

var requiredColumns = []string{colID, colGPA, colGender, colSpecialisation, colEthnicity}

var columnAliases = map[string]string{
	"studentid":      colID,
	"upi":            colID,
	"studentname":    colName,
	"fullname":       colName,
	"sex":            colGender,
	"specialization": colSpecialisation,
	"discipline":     colSpecialisation,
}

// normalizeHeader maps spreadsheet headings such as "Student ID" or
// "Specialization" onto canonical column names. Unknown headings are
// lower-cased and otherwise kept.
func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		h = strings.ToLower(strings.TrimSpace(h))
		key := strings.NewReplacer(" ", "", "_", "", "-", "").Replace(h)
		if alias, ok := columnAliases[key]; ok {
			h = alias
		} else if isCanonical(key) {
			h = key
		}
		out[i] = h
	}
	return out
}

func isCanonical(name string) bool {
	switch name {
	case colID, colName, colGPA, colGender, colSpecialisation, colEthnicity:
		return true
	}
	return false
}

// checkColumns reports the first required column missing from a
// normalized header.
func checkColumns(header []string) error {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}
	for _, c := range requiredColumns {
		if !present[c] {
			return fmt.Errorf("missing column %q", c)
		}
	}
	return nil
}
