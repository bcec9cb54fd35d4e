// Package form parses and checks the portal's HTML forms before anything is
// sent to the backend. Validation methods return the message shown to the
// visitor, or "" when the form is acceptable.
package form

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/galvanai/portal/internal/backend"
	"github.com/galvanai/portal/internal/model"
)

const (
	MsgRequired      = "Please fill in all required fields."
	MsgEmailFormat   = "Invalid email format."
	MsgPasswordShort = "Password must be at least 6 characters."
	MsgMobile        = "Please enter your mobile number."
	MsgOTP           = "Please enter the OTP."
	MsgLogin         = "Please enter your email and password."
	MsgNewPassword   = "Password is required for new users."
	MsgRole          = "Please choose a valid role."
)

const minPasswordLen = 6

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether s looks like an email address.
func ValidEmail(s string) bool {
	return emailRe.MatchString(s)
}

func value(r *http.Request, key string) string {
	return strings.TrimSpace(r.PostFormValue(key))
}

// Registration is the self-service sign-up form.
type Registration struct {
	FirstName    string
	LastName     string
	Email        string
	Password     string
	MobileNumber string
}

func ParseRegistration(r *http.Request) Registration {
	return Registration{
		FirstName:    value(r, "first_name"),
		LastName:     value(r, "last_name"),
		Email:        value(r, "email"),
		Password:     r.PostFormValue("password"),
		MobileNumber: value(r, "mobile_number"),
	}
}

// Validate checks the fields in a fixed order and reports the first failure.
func (f Registration) Validate() string {
	switch {
	case f.FirstName == "" || f.LastName == "" || f.Email == "" || f.Password == "":
		return MsgRequired
	case !ValidEmail(f.Email):
		return MsgEmailFormat
	case len(f.Password) < minPasswordLen:
		return MsgPasswordShort
	case f.MobileNumber == "":
		return MsgMobile
	}
	return ""
}

func (f Registration) Input(pic *backend.File) backend.RegisterInput {
	return backend.RegisterInput{
		FirstName:    f.FirstName,
		LastName:     f.LastName,
		Email:        f.Email,
		Password:     f.Password,
		MobileNumber: f.MobileNumber,
		ProfilePic:   pic,
	}
}

type Login struct {
	Email    string
	Password string
}

func ParseLogin(r *http.Request) Login {
	return Login{Email: value(r, "email"), Password: r.PostFormValue("password")}
}

func (f Login) Validate() string {
	if f.Email == "" || f.Password == "" {
		return MsgLogin
	}
	return ""
}

type OTP struct {
	Email string
	Code  string
}

func ParseOTP(r *http.Request) OTP {
	return OTP{Email: value(r, "email"), Code: value(r, "otp")}
}

func (f OTP) Validate() string {
	if f.Code == "" {
		return MsgOTP
	}
	return ""
}

// User is the superadmin create/edit form. Create is false in edit mode.
type User struct {
	ID           int64
	FirstName    string
	LastName     string
	Email        string
	Password     string
	MobileNumber string
	Role         model.Role
	ProfilePic   string
	Create       bool
}

// UserFrom pre-fills the edit form from a list row.
func UserFrom(u model.User) User {
	return User{
		ID:           u.ID,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Email:        u.Email,
		MobileNumber: u.MobileNumber,
		Role:         u.Role,
		ProfilePic:   u.ProfilePic,
	}
}

func ParseUser(r *http.Request, create bool) User {
	f := User{
		FirstName:    value(r, "first_name"),
		LastName:     value(r, "last_name"),
		Email:        value(r, "email"),
		MobileNumber: value(r, "mobile_number"),
		Role:         model.Role(value(r, "role")),
		Create:       create,
	}
	if create {
		f.Password = r.PostFormValue("password")
	}
	if f.Role == "" {
		f.Role = model.RoleUser
	}
	return f
}

func (f User) Validate() string {
	switch {
	case f.FirstName == "" || f.LastName == "" || f.Email == "":
		return MsgRequired
	case !ValidEmail(f.Email):
		return MsgEmailFormat
	case f.Create && f.Password == "":
		return MsgNewPassword
	case !f.Role.Valid():
		return MsgRole
	}
	return ""
}

func (f User) Input(pic *backend.File) backend.UserInput {
	in := backend.UserInput{
		FirstName:    f.FirstName,
		LastName:     f.LastName,
		Email:        f.Email,
		MobileNumber: f.MobileNumber,
		Role:         f.Role,
		ProfilePic:   pic,
	}
	if f.Create {
		in.Password = f.Password
	}
	return in
}
