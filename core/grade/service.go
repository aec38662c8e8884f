package grade

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/academic"
	"github.com/trezcool/shule/core/user"
)

var (
	ErrNotFound         = errors.New("grade not found")
	ErrGradeLocked      = errors.New("grade is locked")
	ErrIncomplete       = errors.New("all scores must be entered before locking")
	ErrAlreadyEnrolled  = errors.New("student is already enrolled in this class")
	ErrNotStudent       = errors.New("only students can be enrolled")
	ErrEnrollmentClosed = errors.New("enrollment is closed for this semester")
	ErrClassFull        = errors.New("class is full")
)

type (
	Repository interface {
		// CreateGrade returns ErrAlreadyEnrolled when the student already has a grade in the class.
		CreateGrade(ctx context.Context, g Grade, exec ...core.DBExecutor) (Grade, error)
		QueryGrades(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) ([]Grade, error)
		CountGrades(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) (int, error)
		GetGrade(ctx context.Context, id string, exec ...core.DBExecutor) (Grade, error)
		// UpdateGrade persists the scores & lock state of g.
		// ErrGradeLocked is returned when the stored grade is locked, even if g was read unlocked.
		UpdateGrade(ctx context.Context, g Grade, exec ...core.DBExecutor) (Grade, error)
		// DeleteGrade removes an unlocked grade, returning ErrGradeLocked for a locked one.
		DeleteGrade(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	UserGetter interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	ClassGetter interface {
		GetClass(ctx context.Context, id string) (academic.Class, error)
		GetSemester(ctx context.Context, id string) (academic.Semester, error)
	}

	Service interface {
		// Enroll opens an in-progress grade for a student in a class of an open semester.
		Enroll(ctx context.Context, studentID, classID string) (Grade, error)
		// Unenroll removes an unlocked grade.
		Unenroll(ctx context.Context, id string) error
		// EnterScores sets the sub-scores of an unlocked grade and recomputes its total & letter.
		EnterScores(ctx context.Context, id string, s Scores) (Grade, error)
		// Lock freezes a complete grade.
		Lock(ctx context.Context, id string) (Grade, error)
		// LockClass locks every grade of a class, failing with ErrIncomplete when one is missing scores.
		LockClass(ctx context.Context, classID string) (int, error)
		Get(ctx context.Context, id string) (Grade, error)
		ListByClass(ctx context.Context, classID string) ([]Grade, error)
		ListByStudent(ctx context.Context, studentID string) ([]Grade, error)
	}

	service struct {
		db      core.DB
		repo    Repository
		users   UserGetter
		classes ClassGetter
		logger  core.Logger
		nowFunc func() time.Time
	}
)

func NewService(db core.DB, repo Repository, users UserGetter, classes ClassGetter, logger core.Logger) Service {
	return &service{db: db, repo: repo, users: users, classes: classes, logger: logger, nowFunc: time.Now}
}

func (svc *service) Enroll(ctx context.Context, studentID, classID string) (Grade, error) {
	student, err := svc.users.GetByID(ctx, studentID)
	if err != nil {
		if err == user.ErrNotFound {
			return Grade{}, ErrNotStudent
		}
		return Grade{}, err
	}
	if !student.IsStudent() || !student.IsActive {
		return Grade{}, ErrNotStudent
	}

	class, err := svc.classes.GetClass(ctx, classID)
	if err != nil {
		return Grade{}, err
	}
	sem, err := svc.classes.GetSemester(ctx, class.SemesterID)
	if err != nil {
		return Grade{}, err
	}
	now := svc.nowFunc().UTC()
	if !sem.IsOpen(now) {
		return Grade{}, ErrEnrollmentClosed
	}

	var g Grade
	err = core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if class.Capacity > 0 {
			cnt, err := svc.repo.CountGrades(ctx, &QueryFilter{ClassID: class.ID}, tx)
			if err != nil {
				return err
			}
			if cnt >= class.Capacity {
				return ErrClassFull
			}
		}
		created, err := svc.repo.CreateGrade(ctx, Grade{
			StudentID: student.ID,
			ClassID:   class.ID,
			CreatedAt: now,
			UpdatedAt: now,
		}, tx)
		if err != nil {
			return err
		}
		g = created
		return nil
	})
	if err != nil {
		return Grade{}, err
	}
	return svc.repo.GetGrade(ctx, g.ID)
}

func (svc *service) Unenroll(ctx context.Context, id string) error {
	return core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		g, err := svc.repo.GetGrade(ctx, id, tx)
		if err != nil {
			return err
		}
		if g.Locked {
			return ErrGradeLocked
		}
		return svc.repo.DeleteGrade(ctx, id, tx)
	})
}

func (svc *service) EnterScores(ctx context.Context, id string, s Scores) (Grade, error) {
	var g Grade
	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if g, err = svc.repo.GetGrade(ctx, id, tx); err != nil {
			return err
		}
		if err = g.Apply(s); err != nil {
			return err
		}
		g.UpdatedAt = svc.nowFunc().UTC()
		g, err = svc.repo.UpdateGrade(ctx, g, tx)
		return err
	})
	if err != nil {
		return Grade{}, err
	}
	return g, nil
}

func (svc *service) Lock(ctx context.Context, id string) (Grade, error) {
	var g Grade
	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if g, err = svc.repo.GetGrade(ctx, id, tx); err != nil {
			return err
		}
		if g.Locked {
			return nil
		}
		now := svc.nowFunc().UTC()
		if err = g.Lock(now); err != nil {
			return err
		}
		g.UpdatedAt = now
		g, err = svc.repo.UpdateGrade(ctx, g, tx)
		return err
	})
	if err == ErrGradeLocked {
		// locked concurrently
		return svc.repo.GetGrade(ctx, id)
	}
	if err != nil {
		return Grade{}, err
	}
	return g, nil
}

func (svc *service) LockClass(ctx context.Context, classID string) (int, error) {
	if _, err := svc.classes.GetClass(ctx, classID); err != nil {
		return 0, err
	}

	var locked int
	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		notLocked := false
		grades, err := svc.repo.QueryGrades(ctx, &QueryFilter{ClassID: classID, Locked: &notLocked}, tx)
		if err != nil {
			return err
		}
		now := svc.nowFunc().UTC()
		for _, g := range grades {
			if err = g.Lock(now); err != nil {
				return err
			}
			g.UpdatedAt = now
			if _, err = svc.repo.UpdateGrade(ctx, g, tx); err != nil {
				if err == ErrGradeLocked {
					continue
				}
				return err
			}
			locked++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	svc.logger.Info(fmt.Sprintf("%d grade(s) of class %q locked", locked, classID))
	return locked, nil
}

func (svc *service) Get(ctx context.Context, id string) (Grade, error) {
	return svc.repo.GetGrade(ctx, id)
}

func (svc *service) ListByClass(ctx context.Context, classID string) ([]Grade, error) {
	return svc.repo.QueryGrades(ctx, &QueryFilter{ClassID: classID})
}

func (svc *service) ListByStudent(ctx context.Context, studentID string) ([]Grade, error) {
	return svc.repo.QueryGrades(ctx, &QueryFilter{StudentID: studentID})
}
