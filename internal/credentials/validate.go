package credentials

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

const (
	MinPasswordLength = 6
	MinNameLength     = 2
)

const (
	MsgInvalidEmail     = "Invalid email address."
	MsgPasswordTooShort = "Password must be at least 6 characters."
	MsgNameTooShort     = "Name must be at least 2 characters."
	MsgPasswordMismatch = "Passwords do not match."
)

// FieldErrors maps a form field to its validation message.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	parts := make([]string, 0, len(fe))
	for _, field := range []string{"name", "email", "password", "confirm_password"} {
		if msg, ok := fe[field]; ok {
			parts = append(parts, field+": "+msg)
		}
	}
	return strings.Join(parts, "; ")
}

type SignInForm struct {
	Email    string
	Password string
}

// Validate returns nil or FieldErrors.
func (f SignInForm) Validate() error {
	fe := FieldErrors{}
	checkEmail(fe, f.Email)
	checkPassword(fe, f.Password)
	if len(fe) == 0 {
		return nil
	}
	return fe
}

type SignUpForm struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
}

func (f SignUpForm) Validate() error {
	fe := FieldErrors{}
	if utf8.RuneCountInString(f.Name) < MinNameLength {
		fe["name"] = MsgNameTooShort
	}
	checkEmail(fe, f.Email)
	checkPassword(fe, f.Password)
	if f.Password != f.ConfirmPassword {
		fe["confirm_password"] = MsgPasswordMismatch
	}
	if len(fe) == 0 {
		return nil
	}
	return fe
}

func checkEmail(fe FieldErrors, email string) {
	addr, err := mail.ParseAddress(email)
	// ParseAddress accepts "Name <a@b.c>"; only a bare address is valid here
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		fe["email"] = MsgInvalidEmail
	}
}

func checkPassword(fe FieldErrors, password string) {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		fe["password"] = MsgPasswordTooShort
	}
}
