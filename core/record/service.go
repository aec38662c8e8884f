package record

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/grade"
	"github.com/trezcool/shule/core/user"
)

var ErrNotStudent = errors.New("only students have a transcript")

type (
	Repository interface {
		// QueryEntries lists the grades of a student by semester start date & course code.
		QueryEntries(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]Entry, error)
		GetDashboard(ctx context.Context, exec ...core.DBExecutor) (Dashboard, error)
	}

	UserGetter interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	GradeLister interface {
		ListByClass(ctx context.Context, classID string) ([]grade.Grade, error)
	}

	Service interface {
		Transcript(ctx context.Context, studentID string) (Transcript, error)
		Dashboard(ctx context.Context) (Dashboard, error)
		ClassReport(ctx context.Context, classID string) (ClassReport, error)
	}

	service struct {
		repo   Repository
		users  UserGetter
		grades GradeLister
	}
)

func NewService(repo Repository, users UserGetter, grades GradeLister) Service {
	return &service{repo: repo, users: users, grades: grades}
}

func (svc *service) Transcript(ctx context.Context, studentID string) (Transcript, error) {
	student, err := svc.users.GetByID(ctx, studentID)
	if err != nil {
		return Transcript{}, err
	}
	if !student.IsStudent() {
		return Transcript{}, ErrNotStudent
	}

	entries, err := svc.repo.QueryEntries(ctx, student.ID)
	if err != nil {
		return Transcript{}, err
	}
	t := Transcript{
		StudentID:   student.ID,
		StudentName: student.Name,
		Entries:     entries,
	}
	if student.Student != nil {
		t.StudentCode = student.Student.Code
	}
	t.Summarize()
	return t, nil
}

func (svc *service) Dashboard(ctx context.Context) (Dashboard, error) {
	return svc.repo.GetDashboard(ctx)
}

func (svc *service) ClassReport(ctx context.Context, classID string) (ClassReport, error) {
	grades, err := svc.grades.ListByClass(ctx, classID)
	if err != nil {
		return ClassReport{}, err
	}
	return SummarizeClass(classID, grades), nil
}
