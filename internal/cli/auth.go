package cli

import (
	"errors"

	"github.com/Novip1906/taskmaster/internal/credentials"
	appErrors "github.com/Novip1906/taskmaster/internal/errors"
	"github.com/spf13/cobra"
)

func newSignUpCommand(e *env) *cobra.Command {
	var form credentials.SignUpForm

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if form.ConfirmPassword == "" {
				form.ConfirmPassword = form.Password
			}
			if err := e.validate(form.Validate()); err != nil {
				return err
			}

			if _, err := e.gateway.SignUp(cmd.Context(), form.Name, form.Email, form.Password); err != nil {
				return e.fail(appErrors.OpSignUp, err)
			}
			e.notify(credentials.NoticeSignedUp)
			return nil
		},
	}
	cmd.Flags().StringVar(&form.Name, "name", "", "display name")
	cmd.Flags().StringVar(&form.Email, "email", "", "e-mail address")
	cmd.Flags().StringVar(&form.Password, "password", "", "password")
	cmd.Flags().StringVar(&form.ConfirmPassword, "confirm-password", "", "password again (defaults to --password)")
	return cmd
}

func newSignInCommand(e *env) *cobra.Command {
	var form credentials.SignInForm

	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in to an existing account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.validate(form.Validate()); err != nil {
				return err
			}

			if _, err := e.gateway.SignIn(cmd.Context(), form.Email, form.Password); err != nil {
				return e.fail(appErrors.OpSignIn, err)
			}
			e.notify(credentials.NoticeSignedIn)
			return nil
		},
	}
	cmd.Flags().StringVar(&form.Email, "email", "", "e-mail address")
	cmd.Flags().StringVar(&form.Password, "password", "", "password")
	return cmd
}

func newSignOutCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Sign out and forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.gateway.SignOut(cmd.Context()); err != nil {
				return e.fail(appErrors.OpSignOut, err)
			}
			e.notify(credentials.NoticeSignedOut)
			return nil
		},
	}
}

func newWhoAmICommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user := e.session.Identity()
			if user == nil {
				e.printf("Not signed in\n")
				return nil
			}
			name := user.DisplayName
			if name == "" {
				name = user.Email
			}
			e.printf("%s <%s>\n", name, user.Email)
			return nil
		},
	}
}

// validate prints field errors, one per line.
func (e *env) validate(err error) error {
	var fe credentials.FieldErrors
	if !errors.As(err, &fe) {
		return err
	}
	for _, field := range []string{"name", "email", "password", "confirm_password"} {
		if msg, ok := fe[field]; ok {
			e.printf("%s: %s\n", field, msg)
		}
	}
	return ErrReported
}
