package user

import (
	"context"

	"github.com/spist/campus/core"
)

type serviceMock struct {
	service
}

// NewServiceMock returns a service that sends its emails synchronously.
func NewServiceMock(repo Repository, tx core.Transactor, mailSvc core.EmailService) *serviceMock {
	return &serviceMock{service: *NewService(repo, tx, mailSvc, core.Conf)}
}

func (svc *serviceMock) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.Active() {
		return ErrNotFound
	}
	// run synchronously
	svc.sendPasswordResetMail(usr)
	return nil
}
