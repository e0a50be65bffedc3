package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/99minutos/orderdesk/internal/client/authz"
	"github.com/99minutos/orderdesk/internal/client/session"
	"github.com/99minutos/orderdesk/internal/core/domain"
)

func (rt *runtime) loginCommand() *cobra.Command {
	var (
		username      string
		password      string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and keep the session for later commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := rt.enter(authz.LoginView.Path); err != nil {
				return err
			}
			if passwordStdin {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password from stdin: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}

			s, err := rt.app.Login(cmd.Context(), username, password)
			var decodeErr *domain.DecodeError
			switch {
			case errors.As(err, &decodeErr):
				fmt.Fprintf(rt.stderr(), "warning: %v; continuing without admin access\n", err)
			case err != nil:
				return err
			}

			if rt.flags.jsonOutput {
				return rt.printJSON(whoami{Authenticated: true, Username: username, UserType: string(s.Role), Degraded: s.Degraded()})
			}
			role := string(s.Role)
			if role == "" {
				role = "unknown role"
			}
			fmt.Fprintf(rt.stdout(), "Logged in as %s (%s)\n", username, role)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}

func (rt *runtime) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Drop the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := rt.app.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(rt.stdout(), "Logged out")
			return nil
		},
	}
}

type whoami struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
	UserID        int64  `json:"user_id,omitempty"`
	UserType      string `json:"user_type,omitempty"`
	Degraded      bool   `json:"degraded,omitempty"`
}

func (rt *runtime) whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := rt.app.Sessions().Current()
			out := whoami{Authenticated: s.Authenticated(), UserType: string(s.Role), Degraded: s.Degraded()}
			if claims, err := session.Decode(s.Token); err == nil {
				out.Username, out.UserID = claims.Username, claims.UserID
			}

			if rt.flags.jsonOutput {
				return rt.printJSON(out)
			}
			switch {
			case !out.Authenticated:
				fmt.Fprintln(rt.stdout(), "Not logged in")
			case out.Degraded:
				fmt.Fprintln(rt.stdout(), "Logged in with an unreadable token (no admin access)")
			default:
				fmt.Fprintf(rt.stdout(), "%s (id %d, %s)\n", out.Username, out.UserID, out.UserType)
			}
			return nil
		},
	}
}

func (rt *runtime) openCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "open <path>",
		Short: "Navigate to a view and report where the gate lands",
		Long:  "Navigate to a view (/login, / or /users) and report the authorization decision.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t := rt.app.Open(args[0])
			if rt.flags.jsonOutput {
				return rt.printJSON(map[string]string{
					"requested": t.Requested.Path,
					"landed":    t.To.Path,
					"view":      t.To.Name,
					"decision":  t.Decision.String(),
				})
			}
			fmt.Fprintf(rt.stdout(), "%s -> %s (%s)\n", t.Requested.Path, t.To.Path, t.Decision)
			return nil
		},
	}
}
