package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/shule/core"
)

type (
	Role   string
	Status string
)

// Roles
const (
	RoleAdmin    Role = "admin"
	RoleLecturer Role = "lecturer"
	RoleStudent  Role = "student"
)

// Credential statuses
const (
	StatusActive Status = "active"
	StatusLocked Status = "locked"
)

var (
	AllRoles = []Role{RoleAdmin, RoleLecturer, RoleStudent}

	rolePriorities = map[Role]int{
		RoleAdmin:    30,
		RoleLecturer: 20,
		RoleStudent:  10,
	}

	Roles = []RoleInfo{
		{Name: "Student", Value: RoleStudent},
		{Name: "Lecturer", Value: RoleLecturer},
		{Name: "Admin", Value: RoleAdmin},
	}
)

func (r Role) Priority() int { return rolePriorities[r] }

func (r Role) IsValid() bool {
	_, ok := rolePriorities[r]
	return ok
}

type RoleInfo struct {
	Name  string `json:"name"`
	Value Role   `json:"value"`
}

// Credential holds the login lockout state of a User.
type Credential struct {
	FailedAttempts int       `json:"failed_attempts"`
	Status         Status    `json:"status"`
	LockedAt       time.Time `json:"locked_at,omitempty"` // UTC
}

func (c Credential) IsLocked() bool { return c.Status == StatusLocked }

type StudentProfile struct {
	Code        string    `json:"code"`
	Major       string    `json:"major,omitempty"`
	CohortYear  int       `json:"cohort_year,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	DateOfBirth time.Time `json:"date_of_birth,omitempty"`
}

type LecturerProfile struct {
	Code       string `json:"code"`
	Department string `json:"department,omitempty"`
	Title      string `json:"title,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

type User struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Username     string           `json:"username"`
	Email        string           `json:"email"`
	Role         Role             `json:"role"`
	IsActive     bool             `json:"is_active"`
	Credential   Credential       `json:"credential"`
	Student      *StudentProfile  `json:"student,omitempty"`
	Lecturer     *LecturerProfile `json:"lecturer,omitempty"`
	PasswordHash []byte           `json:"-"`
	CreatedAt    time.Time        `json:"created_at"` // UTC
	UpdatedAt    time.Time        `json:"updated_at"` // UTC
	LastLogin    time.Time        `json:"last_login"` // UTC
}

// HashPassword one-way hashes pwd with bcrypt.
func HashPassword(pwd string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
}

func (u *User) SetPassword(pwd string) error {
	hash, err := HashPassword(pwd)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsAdmin() bool    { return u.Role == RoleAdmin }
func (u *User) IsLecturer() bool { return u.Role == RoleLecturer }
func (u *User) IsStudent() bool  { return u.Role == RoleStudent }

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string           `json:"name" validate:"required,notblank"`
	Username        string           `json:"username" validate:"omitempty,min=4,alphanum_"`
	Email           string           `json:"email" validate:"omitempty,email"`
	Role            Role             `json:"role" validate:"required,allroles"`
	Password        string           `json:"password" validate:"required"`
	PasswordConfirm string           `json:"password_confirm" validate:"required,eqfield=Password"`
	Student         *StudentProfile  `json:"student" validate:"omitempty"`
	Lecturer        *LecturerProfile `json:"lecturer" validate:"omitempty"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Student = cleanStudentProfile(nu.Student)
	nu.Lecturer = cleanLecturerProfile(nu.Lecturer)
	return validate.Struct(nu)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Name            string           `json:"name"`
	Username        string           `json:"username" validate:"omitempty,min=4,alphanum_"`
	Email           string           `json:"email" validate:"omitempty,email"`
	IsActive        *bool            `json:"is_active"`
	Role            Role             `json:"role" validate:"omitempty,allroles"`
	Password        string           `json:"password" validate:"omitempty"`
	PasswordConfirm string           `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
	Student         *StudentProfile  `json:"student"`
	Lecturer        *LecturerProfile `json:"lecturer"`
}

// Validate fills blank fields with the ones of origUsr, then validates.
func (uu *UpdateUser) Validate(origUsr User, validate *validator.Validate) error {
	if name := core.CleanString(uu.Name); name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}
	if uname := core.CleanString(uu.Username, true /* lower */); uname != "" {
		uu.Username = uname
	} else {
		uu.Username = origUsr.Username
	}
	if email := core.CleanString(uu.Email, true /* lower */); email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}
	if uu.Role == "" {
		uu.Role = origUsr.Role
	}
	if uu.Student == nil {
		uu.Student = origUsr.Student
	}
	if uu.Lecturer == nil {
		uu.Lecturer = origUsr.Lecturer
	}
	uu.Student = cleanStudentProfile(uu.Student)
	uu.Lecturer = cleanLecturerProfile(uu.Lecturer)
	return validate.Struct(uu)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp *ResetUserPassword) Validate(validate *validator.Validate) error {
	rp.Token = core.CleanString(rp.Token)
	return validate.Struct(rp)
}

type QueryFilter struct {
	Search      string    `query:"search"`
	Roles       []string  `query:"role"`
	IsActive    *bool     `query:"is_active"`
	Status      string    `query:"status"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.IsActive == nil && qf.Status == "" &&
		qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
}

// GetFilter finds a single User; the first non-empty field wins.
type GetFilter struct {
	ID              string
	Username        string
	Email           string
	UsernameOrEmail string
}

func cleanStudentProfile(p *StudentProfile) *StudentProfile {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Code = core.CleanString(cp.Code)
	cp.Major = core.CleanString(cp.Major)
	cp.Phone = core.CleanString(cp.Phone)
	return &cp
}

func cleanLecturerProfile(p *LecturerProfile) *LecturerProfile {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Code = core.CleanString(cp.Code)
	cp.Department = core.CleanString(cp.Department)
	cp.Title = core.CleanString(cp.Title)
	cp.Phone = core.CleanString(cp.Phone)
	return &cp
}
