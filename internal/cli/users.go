package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/99minutos/orderdesk/internal/client/authz"
	"github.com/99minutos/orderdesk/internal/core/domain"
)

func (rt *runtime) usersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage user accounts (admin only)",
	}
	cmd.AddCommand(
		rt.usersListCommand(),
		rt.usersGetCommand(),
		rt.usersCreateCommand(),
		rt.usersUpdateCommand(),
		rt.usersDeleteCommand(),
	)
	return cmd
}

func (rt *runtime) usersListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := rt.enter(authz.UsersView.Path); err != nil {
				return err
			}
			users, err := rt.app.Users(cmd.Context())
			if err != nil {
				return err
			}
			if rt.flags.jsonOutput {
				if users == nil {
					users = []domain.User{}
				}
				return rt.printJSON(users)
			}

			w := rt.table()
			fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tFULL NAME\tTYPE")
			for _, u := range users {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", u.ID, u.Username, deref(u.Email), deref(u.FullName), u.UserType)
			}
			return w.Flush()
		},
	}
}

func (rt *runtime) usersGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := rt.enter(authz.UsersView.Path); err != nil {
				return err
			}
			user, err := rt.app.User(cmd.Context(), id)
			if err != nil {
				return err
			}
			return rt.printUser(user)
		},
	}
}

func (rt *runtime) usersCreateCommand() *cobra.Command {
	var (
		in       domain.CreateUserInput
		email    string
		fullName string
		userType string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := rt.enter(authz.UsersView.Path); err != nil {
				return err
			}
			in.UserType = domain.Role(userType)
			if email != "" {
				in.Email = &email
			}
			if fullName != "" {
				in.FullName = &fullName
			}
			user, err := rt.app.CreateUser(cmd.Context(), in)
			if err != nil {
				return err
			}
			if rt.flags.jsonOutput {
				return rt.printJSON(user)
			}
			fmt.Fprintf(rt.stdout(), "Created user %d (%s, %s)\n", user.ID, user.Username, user.UserType)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&in.Username, "username", "", "login name")
	f.StringVar(&in.Password, "password", "", "initial password")
	f.StringVar(&email, "email", "", "email address")
	f.StringVar(&fullName, "full-name", "", "display name")
	f.StringVar(&userType, "user-type", string(domain.RoleDefault), "default or admin")
	return cmd
}

func (rt *runtime) usersUpdateCommand() *cobra.Command {
	var (
		username string
		email    string
		fullName string
		userType string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of an account; only the flags given are sent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := rt.enter(authz.UsersView.Path); err != nil {
				return err
			}

			var in domain.UpdateUserInput
			f := cmd.Flags()
			if f.Changed("username") {
				in.Username = &username
			}
			if f.Changed("email") {
				in.Email = &email
			}
			if f.Changed("full-name") {
				in.FullName = &fullName
			}
			if f.Changed("user-type") {
				role := domain.Role(userType)
				in.UserType = &role
			}

			user, err := rt.app.UpdateUser(cmd.Context(), id, in)
			if err != nil {
				return err
			}
			return rt.printUser(user)
		},
	}

	f := cmd.Flags()
	f.StringVar(&username, "username", "", "new login name")
	f.StringVar(&email, "email", "", "new email address")
	f.StringVar(&fullName, "full-name", "", "new display name")
	f.StringVar(&userType, "user-type", "", "default or admin")
	return cmd
}

func (rt *runtime) usersDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := rt.enter(authz.UsersView.Path); err != nil {
				return err
			}
			if err := rt.app.DeleteUser(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(rt.stdout(), "Deleted user %d\n", id)
			return nil
		},
	}
}

func (rt *runtime) printUser(u *domain.User) error {
	if rt.flags.jsonOutput {
		return rt.printJSON(u)
	}
	w := rt.table()
	fmt.Fprintf(w, "ID\t%d\n", u.ID)
	fmt.Fprintf(w, "Username\t%s\n", u.Username)
	fmt.Fprintf(w, "Email\t%s\n", deref(u.Email))
	fmt.Fprintf(w, "Full name\t%s\n", deref(u.FullName))
	fmt.Fprintf(w, "Type\t%s\n", u.UserType)
	return w.Flush()
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, &domain.ValidationError{Message: fmt.Sprintf("invalid user id %q", s)}
	}
	return id, nil
}
