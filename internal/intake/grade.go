package intake

import (
	"strings"

	"golang.org/x/text/cases"
)

var gradeFolder = cases.Fold()

// ClassifyGrade resolves the grade classification once at assignment time.
// Reject grades are "2", "class 2" or anything mentioning industrial,
// compared case-insensitively.
func ClassifyGrade(grade string) GradeClass {
	folded := gradeFolder.String(strings.TrimSpace(grade))
	if folded == "2" || folded == "class 2" || strings.Contains(folded, "industrial") {
		return GradeClassReject
	}
	return GradeClassTable
}
