package grade

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fPtr(f float64) *float64 { return &f }

func TestGrade_Recompute(t *testing.T) {
	tests := []struct {
		name       string
		g          Grade
		wantTotal  *float64
		wantLetter string
	}{
		{name: "no scores", g: Grade{}},
		{name: "missing final", g: Grade{Attendance: fPtr(10), Midterm: fPtr(10)}},
		{name: "complete", g: Grade{Attendance: fPtr(7), Midterm: fPtr(6), Final: fPtr(5)}, wantTotal: fPtr(5.5), wantLetter: LetterC},
		{
			name:      "stale total cleared",
			g:         Grade{Attendance: fPtr(7), Midterm: fPtr(6), Total: fPtr(9), Letter: LetterA},
			wantTotal: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.g.Recompute()
			assert.Equal(t, tt.wantTotal, tt.g.Total)
			assert.Equal(t, tt.wantLetter, tt.g.Letter)
		})
	}
}

func TestGrade_Apply(t *testing.T) {
	g := Grade{}
	require.NoError(t, g.Apply(Scores{Attendance: fPtr(10), Midterm: fPtr(10), Final: fPtr(10)}))
	assert.Equal(t, fPtr(10), g.Total)
	assert.Equal(t, LetterA, g.Letter)

	g.Locked = true
	err := g.Apply(Scores{Attendance: fPtr(0), Midterm: fPtr(0), Final: fPtr(0)})
	assert.Equal(t, ErrGradeLocked, err)
	assert.Equal(t, fPtr(10), g.Total)
}

func TestGrade_Lock(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	incomplete := Grade{Attendance: fPtr(10)}
	assert.Equal(t, ErrIncomplete, incomplete.Lock(now))
	assert.False(t, incomplete.Locked)

	g := Grade{Attendance: fPtr(8), Midterm: fPtr(7), Final: fPtr(7)}
	require.NoError(t, g.Lock(now))
	assert.True(t, g.Locked)
	assert.Equal(t, now, g.LockedAt)
	assert.Equal(t, LetterB, g.Letter)

	// already locked
	require.NoError(t, g.Lock(now.Add(time.Hour)))
	assert.Equal(t, now, g.LockedAt)
}
