package credentials

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignInFormValidate(t *testing.T) {
	assert.NoError(t, SignInForm{Email: "ann@example.com", Password: "secret"}.Validate())

	err := SignInForm{Email: "ann", Password: "123"}.Validate()
	var fe FieldErrors
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, FieldErrors{"email": MsgInvalidEmail, "password": MsgPasswordTooShort}, fe)
}

func TestSignUpFormValidate(t *testing.T) {
	valid := SignUpForm{Name: "Ann", Email: "ann@example.com", Password: "secret", ConfirmPassword: "secret"}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name  string
		form  SignUpForm
		field string
		msg   string
	}{
		{"short name", SignUpForm{Name: "A", Email: "ann@example.com", Password: "secret", ConfirmPassword: "secret"}, "name", MsgNameTooShort},
		{"display form address", SignUpForm{Name: "Ann", Email: "Ann <ann@example.com>", Password: "secret", ConfirmPassword: "secret"}, "email", MsgInvalidEmail},
		{"no domain dot", SignUpForm{Name: "Ann", Email: "ann@localhost", Password: "secret", ConfirmPassword: "secret"}, "email", MsgInvalidEmail},
		{"short password", SignUpForm{Name: "Ann", Email: "ann@example.com", Password: "12345", ConfirmPassword: "12345"}, "password", MsgPasswordTooShort},
		{"mismatch", SignUpForm{Name: "Ann", Email: "ann@example.com", Password: "secret", ConfirmPassword: "secreT"}, "confirm_password", MsgPasswordMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fe FieldErrors
			require.True(t, errors.As(tt.form.Validate(), &fe))
			assert.Len(t, fe, 1)
			assert.Equal(t, tt.msg, fe[tt.field])
		})
	}
}

func TestFieldErrorsMessageIsStable(t *testing.T) {
	fe := FieldErrors{"password": MsgPasswordTooShort, "email": MsgInvalidEmail}
	assert.Equal(t, "email: Invalid email address.; password: Password must be at least 6 characters.", fe.Error())
}
