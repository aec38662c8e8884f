package user

import (
	"context"
	"time"

	"github.com/trezcool/shule/core"
)

type serviceMock struct {
	*service
}

// NewServiceMock returns a Service that sends its emails synchronously.
func NewServiceMock(db core.DB, repo Repository, opts Options) Service {
	return &serviceMock{service: newService(db, repo, opts)}
}

// SetNowFunc overrides the clock of a Service returned by NewServiceMock.
func SetNowFunc(svc Service, now func() time.Time) {
	if mock, ok := svc.(*serviceMock); ok {
		mock.nowFunc = now
		mock.tokens.NowFunc = now
	}
}

func (svc *serviceMock) RequestPasswordReset(ctx context.Context, email string) error {
	usr, token, err := svc.issueResetToken(ctx, email)
	if err != nil {
		return err
	}
	// run synchronously
	svc.sendPasswordResetMail(usr, token)
	return nil
}
