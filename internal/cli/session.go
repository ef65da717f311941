package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	goVolunteer "github.com/MrEthical07/goVolunteer"
	"github.com/spf13/cobra"
)

const passwordEnv = "VOLUNTEERHUB_PASSWORD"

func newLoginCommand(o *rootOptions) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login <email> [password]",
		Short: "Sign in and keep the session for later commands",
		Long: `Sign in with email and password. The password is taken from the second
argument, --password, $VOLUNTEERHUB_PASSWORD, or read from stdin.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := password
			if len(args) == 2 {
				secret = args[1]
			}
			if secret == "" {
				secret = os.Getenv(passwordEnv)
			}
			if secret == "" {
				var err error
				if secret, err = readLine(cmd, "Password: "); err != nil {
					return err
				}
			}

			app := o.app
			res := app.Store.Login(cmd.Context(), args[0], secret)
			if !res.Success {
				app.Toasts.Error(res.Message)
				return resultError(res)
			}
			u := app.Store.User()
			app.Toasts.Success(fmt.Sprintf("Welcome back, %s", displayName(u)))
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s (%s)\n", u.Email, u.Role)
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	return cmd
}

func newRegisterCommand(o *rootOptions) *cobra.Command {
	var (
		name, email, password, role string
		fields                      map[string]string
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			profile := goVolunteer.Profile{Name: name, Email: email, Password: password}
			if role != "" {
				r, err := goVolunteer.ParseRole(role)
				if err != nil {
					return err
				}
				profile.Role = r
			}
			if len(fields) > 0 {
				profile.Extra = make(map[string]any, len(fields))
				for k, v := range fields {
					profile.Extra[k] = v
				}
			}

			app := o.app
			res := app.Store.Register(cmd.Context(), profile)
			if !res.Success {
				app.Toasts.Error(res.Message)
				return resultError(res)
			}
			u := app.Store.User()
			app.Toasts.Success(fmt.Sprintf("Welcome, %s", displayName(u)))
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s (%s)\n", u.Email, u.Role)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&name, "name", "", "display name")
	f.StringVar(&email, "email", "", "account email")
	f.StringVar(&password, "password", "", "account password")
	f.StringVar(&role, "role", "volunteer", "volunteer or organization")
	f.StringToStringVar(&fields, "field", nil, "extra profile field, key=value (repeatable)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			o.app.Store.Logout()
			o.app.Toasts.Info("Logged out")
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}
}

func newWhoamiCommand(o *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Restore the stored session and show the current user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := o.app
			app.Bootstrap(cmd.Context())

			out := cmd.OutOrStdout()
			u := app.Store.User()
			if u == nil {
				fmt.Fprintln(out, "anonymous")
				return nil
			}
			if asJSON {
				fmt.Fprintln(out, userJSON(u))
				return nil
			}
			fmt.Fprintf(out, "%s <%s>\nrole: %s\nid:   %s\n", displayName(u), u.Email, u.Role, u.ID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the user record as JSON")
	return cmd
}

func newLanguageCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "language [code]",
		Short: "Show or set the language sent with every request",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), o.app.Store.Language(cmd.Context()))
				return nil
			}
			return resultError(o.app.Store.SetLanguage(cmd.Context(), args[0]))
		},
	}
}

func displayName(u *goVolunteer.User) string {
	if u == nil {
		return ""
	}
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

func readLine(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	sc := bufio.NewScanner(cmd.InOrStdin())
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", err
		}
		return "", errors.New("no password given")
	}
	return strings.TrimRight(sc.Text(), "\r\n"), nil
}
