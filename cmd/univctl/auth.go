package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/univ-admin-client/pkg/api"
	"github.com/Sternrassler/univ-admin-client/pkg/models"
	"github.com/Sternrassler/univ-admin-client/pkg/session"
)

// passwordEnv is read when --password is not given.
const passwordEnv = "UNIV_PASSWORD"

func newLoginCmd(c *cli) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <login-or-email>",
		Short: "Sign in and store the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv(passwordEnv)
			}
			user, err := c.app.Session.LogIn(cmd.Context(), api.Credentials{Login: args[0], Password: password})
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s)\n", user.UserProfile().FullName(), user.Role())
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (default $"+passwordEnv+")")
	return cmd
}

func newLogoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !c.app.Session.Active(cmd.Context()) {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
				return nil
			}
			if err := c.app.Session.LogOut(cmd.Context()); err != nil {
				return describe(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newWhoamiCmd(c *cli) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var (
				user models.User
				err  error
			)
			if refresh {
				user, err = c.app.Session.RefreshUser(ctx)
			} else {
				user, err = c.app.Session.CurrentUser(ctx)
			}
			if errors.Is(err, session.ErrNoSession) {
				return errors.New("not signed in")
			}
			if err != nil {
				return describe(err)
			}
			printUser(cmd, user, c.app.Config.Backend.BaseURL)
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "reload the user from the backend")
	return cmd
}

func printUser(cmd *cobra.Command, user models.User, baseURL string) {
	out := cmd.OutOrStdout()
	p := user.UserProfile()
	fmt.Fprintf(out, "%s\n", p.FullName())
	fmt.Fprintf(out, "  role:     %s\n", user.Role())
	fmt.Fprintf(out, "  login:    %s\n", p.LoginName)
	fmt.Fprintf(out, "  email:    %s\n", p.Email)
	if !p.Birthday.IsZero() {
		fmt.Fprintf(out, "  birthday: %s\n", p.Birthday.Format("2006-01-02"))
	}
	if photo := p.PhotoURL(baseURL); photo != "" {
		fmt.Fprintf(out, "  photo:    %s\n", photo)
	}

	switch u := user.(type) {
	case *models.Student:
		fmt.Fprintf(out, "  balance:  %.2f (due %.2f)\n", u.Balance, u.NeedPaySum)
		fmt.Fprintf(out, "  group:    %d\n", u.GroupID)
		if u.Blocked {
			fmt.Fprintln(out, "  blocked")
		}
	case *models.Teacher:
		fmt.Fprintf(out, "  cathedra: %d\n", u.CathedraID)
	}
}
