package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGPA(t *testing.T) {
	tests := []struct {
		name        string
		entries     []Entry
		wantGPA     float64
		wantCredits int
	}{
		{name: "no entries"},
		{name: "empty slice", entries: []Entry{}},
		{
			name:        "A & B",
			entries:     []Entry{{Letter: "A", Credits: 3}, {Letter: "B", Credits: 2}},
			wantGPA:     3.6,
			wantCredits: 5,
		},
		{
			name:        "in progress ignored",
			entries:     []Entry{{Letter: "C", Credits: 4}, {Letter: "", Credits: 3}},
			wantGPA:     2,
			wantCredits: 4,
		},
		{
			name:        "only in progress",
			entries:     []Entry{{Credits: 3}},
			wantGPA:     0,
			wantCredits: 0,
		},
		{
			name:        "F counts",
			entries:     []Entry{{Letter: "A", Credits: 2}, {Letter: "F", Credits: 2}},
			wantGPA:     2,
			wantCredits: 4,
		},
		{
			name:        "rounded",
			entries:     []Entry{{Letter: "A", Credits: 1}, {Letter: "B", Credits: 1}, {Letter: "D", Credits: 1}},
			wantGPA:     2.67,
			wantCredits: 3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gpa, credits := GPA(tt.entries)
			assert.Equal(t, tt.wantGPA, gpa)
			assert.Equal(t, tt.wantCredits, credits)
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		gpa  float64
		want string
	}{
		{4, Excellent},
		{3.6, Excellent},
		{3.59, VeryGood},
		{3.2, VeryGood},
		{3.19, Good},
		{2.5, Good},
		{2.49, Average},
		{0, Average},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.gpa), "Classify(%v)", tt.gpa)
	}
}
