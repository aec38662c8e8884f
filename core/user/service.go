package user

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

var (
	ErrNotFound        = errors.New("user not found")
	ErrEmailExists     = errors.New("a user with this email already exists")
	ErrUsernameExists  = errors.New("a user with this username already exists")
	ErrCodeExists      = errors.New("a user with this code already exists")
	ErrSessionNotFound = errors.New("session expired or not found")
	ErrHasGrades       = errors.New("students with grade records cannot be deleted, deactivate them instead")
)

type (
	Repository interface {
		// CheckUsernameUniqueness returns ErrUsernameExists or ErrEmailExists when taken by anyone but excludedUsers.
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []User, exec ...core.DBExecutor) error
		// CreateUser inserts usr along with its role profile. ErrCodeExists is returned on a duplicate profile code.
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		// UpdateUser persists everything but the lockout state & last login.
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		// UpdateCredential only persists the lockout state & last login of usr.
		UpdateCredential(ctx context.Context, usr User, exec ...core.DBExecutor) error
		// RecordFailedAttempt atomically increments the failed counter of an unlocked User,
		// locking it once maxAttempts is reached, and returns the resulting Credential.
		// ErrAccountLocked is returned when the User was already locked.
		RecordFailedAttempt(ctx context.Context, id string, now time.Time, maxAttempts int, exec ...core.DBExecutor) (Credential, error)
		// RecordLogin resets the failed counter & sets the last login of an unlocked User.
		// ErrAccountLocked is returned when the User is locked.
		RecordLogin(ctx context.Context, id string, now time.Time, exec ...core.DBExecutor) error
		// DeleteUsersByID deletes nothing and returns ErrHasGrades when one of the users has grade records.
		DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)
	}

	Service interface {
		Create(ctx context.Context, nu NewUser) (User, error)
		Query(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		Update(ctx context.Context, usr User, uu UpdateUser) (User, error)
		Delete(ctx context.Context, ids ...string) (int, error)
		// CheckUniqueness returns a ValidationError when uname or email is taken by anyone but exclUsers.
		CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error

		// Authenticate checks the credentials of a User and opens a Session.
		// Failed attempts are counted against existing accounts only.
		Authenticate(ctx context.Context, uname, pwd string) (User, Session, error)
		GetSession(key string) (Session, error)
		Logout(key string)

		// RequestPasswordReset emails a reset code to the User owning email.
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, rp ResetUserPassword) (User, error)
		// Unlock clears the lockout of a User.
		Unlock(ctx context.Context, id string) (User, error)
	}

	// Options holds the collaborators of a user Service.
	Options struct {
		Conf        *core.Config
		Logger      core.Logger
		MailSvc     core.EmailService
		Sessions    SessionStore
		ResetTokens ResetTokenStore
	}

	service struct {
		db       core.DB
		repo     Repository
		conf     *core.Config
		logger   core.Logger
		mailSvc  core.EmailService
		sessions SessionStore
		tokens   *ResetTokens
		nowFunc  func() time.Time
	}
)

func NewService(db core.DB, repo Repository, opts Options) Service {
	return newService(db, repo, opts)
}

func newService(db core.DB, repo Repository, opts Options) *service {
	return &service{
		db:       db,
		repo:     repo,
		conf:     opts.Conf,
		logger:   opts.Logger,
		mailSvc:  opts.MailSvc,
		sessions: opts.Sessions,
		tokens:   NewResetTokens(opts.ResetTokens, opts.Conf.Auth.ResetTokenTimeout),
		nowFunc:  time.Now,
	}
}

func (svc *service) checkUniqueness(ctx context.Context, db core.DBExecutor, uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(ctx, uname, email, exclUsers, db); err != nil {
		var field string
		switch err {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *service) CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error {
	return svc.checkUniqueness(ctx, nil, uname, email, exclUsers...)
}

func codeExistsError(role Role) error {
	field := string(role)
	return core.NewValidationError(ErrCodeExists, core.FieldError{Field: field, Error: ErrCodeExists.Error()})
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := svc.nowFunc().UTC()
	usr := User{
		Name:       nu.Name,
		Username:   nu.Username,
		Email:      nu.Email,
		Role:       nu.Role,
		IsActive:   true,
		Credential: Credential{Status: StatusActive},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	switch nu.Role {
	case RoleStudent:
		usr.Student = nu.Student
	case RoleLecturer:
		usr.Lecturer = nu.Lecturer
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}

	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.checkUniqueness(ctx, tx, usr.Username, usr.Email); err != nil {
			return err
		}
		created, err := svc.repo.CreateUser(ctx, usr, tx)
		if err != nil {
			if err == ErrCodeExists {
				return codeExistsError(usr.Role)
			}
			return err
		}
		usr = created
		return nil
	})
	if err != nil {
		return User{}, err
	}
	return usr, nil
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]User, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

func (svc *service) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	usr.Name = uu.Name
	usr.Username = uu.Username
	usr.Email = uu.Email
	usr.Role = uu.Role
	usr.UpdatedAt = svc.nowFunc().UTC()
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	usr.Student, usr.Lecturer = nil, nil
	switch usr.Role {
	case RoleStudent:
		usr.Student = uu.Student
	case RoleLecturer:
		usr.Lecturer = uu.Lecturer
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "hashing password")
		}
	}

	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.checkUniqueness(ctx, tx, usr.Username, usr.Email, usr); err != nil {
			return err
		}
		updated, err := svc.repo.UpdateUser(ctx, usr, tx)
		if err != nil {
			if err == ErrCodeExists {
				return codeExistsError(usr.Role)
			}
			return err
		}
		usr = updated
		return nil
	})
	if err != nil {
		return User{}, err
	}
	return usr, nil
}

func (svc *service) Delete(ctx context.Context, ids ...string) (int, error) {
	return svc.repo.DeleteUsersByID(ctx, ids)
}

func (svc *service) Authenticate(ctx context.Context, uname, pwd string) (User, Session, error) {
	usr, err := svc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		if err == ErrNotFound {
			return User{}, Session{}, ErrAuthenticationFailed
		}
		return User{}, Session{}, err
	}
	if usr.Credential.IsLocked() {
		return User{}, Session{}, ErrAccountLocked
	}

	now := svc.nowFunc().UTC()
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, Session{}, svc.recordFailedAttempt(ctx, usr, now)
	}
	if !usr.IsActive {
		return User{}, Session{}, ErrAccountDeactivated
	}

	// a concurrent failure may have locked the account meanwhile
	if err = svc.repo.RecordLogin(ctx, usr.ID, now); err != nil {
		if err == ErrAccountLocked {
			return User{}, Session{}, err
		}
		return User{}, Session{}, errors.Wrap(err, "recording login")
	}
	usr.Credential = RecordSuccess(usr.Credential)
	usr.LastLogin = now

	key, err := GenerateToken()
	if err != nil {
		return User{}, Session{}, errors.Wrap(err, "generating session key")
	}
	sess := Session{Key: key, UserID: usr.ID, Role: usr.Role, CreatedAt: now}
	svc.sessions.Put(key, sess)
	return usr, sess, nil
}

func (svc *service) recordFailedAttempt(ctx context.Context, usr User, now time.Time) error {
	maxAttempts := svc.conf.Auth.MaxFailedAttempts
	var cred Credential
	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		cred, err = svc.repo.RecordFailedAttempt(ctx, usr.ID, now, maxAttempts, tx)
		return err
	})
	if err != nil {
		if err == ErrAccountLocked {
			return err
		}
		return errors.Wrap(err, "recording failed attempt")
	}

	outcome := OutcomeOf(cred, maxAttempts)
	if outcome.Locked {
		usr.Credential = cred
		svc.logger.Warn(fmt.Sprintf("account %q locked after %d failed login attempts", usr.ID, cred.FailedAttempts), usr)
	}
	return outcome.Err()
}

func (svc *service) GetSession(key string) (Session, error) {
	sess, ok := svc.sessions.Get(key)
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return sess, nil
}

func (svc *service) Logout(key string) {
	svc.sessions.Delete(key)
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, token, err := svc.issueResetToken(ctx, email)
	if err != nil {
		return err
	}
	go svc.sendPasswordResetMail(usr, token)
	return nil
}

func (svc *service) issueResetToken(ctx context.Context, email string) (User, string, error) {
	usr, err := svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
	if err != nil {
		return User{}, "", err
	}
	if !usr.IsActive {
		return User{}, "", ErrNotFound
	}
	token, err := svc.tokens.Issue(usr.ID)
	if err != nil {
		return User{}, "", errors.Wrap(err, "issuing reset token")
	}
	return usr, token, nil
}

func (svc *service) sendPasswordResetMail(usr User, token string) {
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{
			"Name":     usr.Name,
			"Token":    token,
			"ValidFor": svc.tokens.Timeout().String(),
		},
	}
	if err := msg.Render(); err != nil {
		svc.logger.Error(fmt.Sprintf("rendering password reset mail: %v", err), err, usr)
		return
	}
	svc.mailSvc.SendMessages(msg)
}

func (svc *service) ResetPassword(ctx context.Context, rp ResetUserPassword) (User, error) {
	uid, err := svc.tokens.Validate(rp.Token)
	if err != nil {
		return User{}, err
	}
	usr, err := svc.GetByID(ctx, uid)
	if err != nil {
		if err == ErrNotFound {
			svc.tokens.Consume(rp.Token)
			return User{}, ErrTokenInvalid
		}
		return User{}, err
	}

	if err = usr.SetPassword(rp.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = svc.nowFunc().UTC()
	if usr, err = svc.repo.UpdateUser(ctx, usr); err != nil {
		return User{}, err
	}
	svc.tokens.Consume(rp.Token)
	return usr, nil
}

func (svc *service) Unlock(ctx context.Context, id string) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	usr.Credential = Credential{Status: StatusActive}
	if err = svc.repo.UpdateCredential(ctx, usr); err != nil {
		return User{}, errors.Wrap(err, "unlocking account")
	}
	svc.logger.Info(fmt.Sprintf("account %q unlocked", usr.ID))
	return usr, nil
}
