package record

import (
	"sort"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/grade"
)

// SemesterSummary is the GPA of a student over one semester.
type SemesterSummary struct {
	SemesterID   string  `json:"semester_id"`
	SemesterName string  `json:"semester_name"`
	GPA          float64 `json:"gpa"`
	Credits      int     `json:"credits"`
}

type Transcript struct {
	StudentID      string            `json:"student_id"`
	StudentName    string            `json:"student_name"`
	StudentCode    string            `json:"student_code"`
	Entries        []Entry           `json:"entries"`
	Semesters      []SemesterSummary `json:"semesters"`
	GPA            float64           `json:"gpa"`
	Credits        int               `json:"credits"`
	Classification string            `json:"classification"`
}

// Summarize fills the GPAs of t out of its entries. Semesters keep the order of their first entry.
func (t *Transcript) Summarize() {
	t.GPA, t.Credits = GPA(t.Entries)
	t.Classification = Classify(t.GPA)

	t.Semesters = t.Semesters[:0]
	bySemester := make(map[string][]Entry)
	for _, e := range t.Entries {
		if _, ok := bySemester[e.SemesterID]; !ok {
			t.Semesters = append(t.Semesters, SemesterSummary{SemesterID: e.SemesterID, SemesterName: e.SemesterName})
		}
		bySemester[e.SemesterID] = append(bySemester[e.SemesterID], e)
	}
	for i, sum := range t.Semesters {
		t.Semesters[i].GPA, t.Semesters[i].Credits = GPA(bySemester[sum.SemesterID])
	}
}

type Dashboard struct {
	Students         int `json:"students" db:"students"`
	Lecturers        int `json:"lecturers" db:"lecturers"`
	Courses          int `json:"courses" db:"courses"`
	Classes          int `json:"classes" db:"classes"`
	LockedAccounts   int `json:"locked_accounts" db:"locked_accounts"`
	InProgressGrades int `json:"in_progress_grades" db:"in_progress_grades"`
}

// ClassReport sums up the grades of a class.
type ClassReport struct {
	ClassID      string         `json:"class_id"`
	Enrolled     int            `json:"enrolled"`
	Graded       int            `json:"graded"`
	Locked       int            `json:"locked"`
	Average      float64        `json:"average"`
	Highest      float64        `json:"highest"`
	Lowest       float64        `json:"lowest"`
	Distribution map[string]int `json:"distribution"`
}

// SummarizeClass builds the ClassReport of grades. Only graded totals count in the statistics.
func SummarizeClass(classID string, grades []grade.Grade) ClassReport {
	report := ClassReport{
		ClassID:  classID,
		Enrolled: len(grades),
		Distribution: map[string]int{
			grade.LetterA: 0, grade.LetterB: 0, grade.LetterC: 0, grade.LetterD: 0, grade.LetterF: 0,
		},
	}

	totals := make([]float64, 0, len(grades))
	for _, g := range grades {
		if g.Locked {
			report.Locked++
		}
		if g.Total == nil {
			continue
		}
		totals = append(totals, *g.Total)
		report.Distribution[g.Letter]++
	}
	report.Graded = len(totals)
	if len(totals) == 0 {
		return report
	}

	sort.Float64s(totals)
	var sum float64
	for _, total := range totals {
		sum += total
	}
	report.Average = core.Round(sum/float64(len(totals)), 2)
	report.Lowest = totals[0]
	report.Highest = totals[len(totals)-1]
	return report
}
