package grade

import (
	"github.com/trezcool/shule/core"
)

// Score weights of the total.
const (
	AttendanceWeight = 0.1
	MidtermWeight    = 0.3
	FinalWeight      = 0.6

	MinScore = 0
	MaxScore = 10
)

// Letters
const (
	LetterA = "A"
	LetterB = "B"
	LetterC = "C"
	LetterD = "D"
	LetterF = "F"
)

var bands = []struct {
	min    float64
	letter string
}{
	{8.5, LetterA},
	{7.0, LetterB},
	{5.5, LetterC},
	{4.0, LetterD},
}

var gradePoints = map[string]float64{
	LetterA: 4,
	LetterB: 3,
	LetterC: 2,
	LetterD: 1,
	LetterF: 0,
}

// ComputeTotal weighs the three sub-scores and rounds the result to 2 decimals.
func ComputeTotal(attendance, midterm, final float64) float64 {
	return core.Round(attendance*AttendanceWeight+midterm*MidtermWeight+final*FinalWeight, 2)
}

// LetterFor bands a total into a letter grade.
func LetterFor(total float64) string {
	for _, b := range bands {
		if total >= b.min {
			return b.letter
		}
	}
	return LetterF
}

// GradePoint returns the 4-point value of letter. Unknown letters are worth 0.
func GradePoint(letter string) float64 {
	return gradePoints[letter]
}

// IsLetter reports whether letter is a known letter grade.
func IsLetter(letter string) bool {
	_, ok := gradePoints[letter]
	return ok
}
