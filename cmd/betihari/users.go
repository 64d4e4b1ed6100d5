package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"betihari-backend/pkg/database"
	"betihari-backend/pkg/models"
	"betihari-backend/pkg/server"
	"betihari-backend/pkg/utils"
)

// openApp builds the application without starting the HTTP server.
func openApp(cmd *cobra.Command) (*server.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	app, err := server.Build(cmd.Context(), cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(cmd.Context(), app.DB); err != nil {
		return nil, err
	}
	return app, nil
}

func bootstrapAdminCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap-admin",
		Short: "Create the default administrator if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer database.ClosePool()

			created, err := app.Auth.EnsureDefaultAdmin(cmd.Context())
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "created administrator %s\n", app.Config.DefaultAdminEmail)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "administrator %s already exists\n", app.Config.DefaultAdminEmail)
			}
			return nil
		},
	}
}

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage dashboard users",
	}
	cmd.AddCommand(usersCreateCmd())
	return cmd
}

func usersCreateCmd() *cobra.Command {
	var req models.CreateUserRequest
	var inactive bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a dashboard user",
		Long: fmt.Sprintf(`Create a dashboard user.

Teams: %s

Example:
  betihari users create --email jane@example.org --first Jane --last Doe \
    --team Finance --password 's3cret-pass'`, teamNames()),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := utils.ValidateStruct(&req); err != nil {
				return fmt.Errorf("invalid user: %w", err)
			}
			app, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer database.ClosePool()

			active := !inactive
			req.IsActive = &active
			user, err := app.Users.Create(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s <%s> in %s (id %s)\n", user.FullName(), user.Email, user.Team, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Email, "email", "", "email address")
	cmd.Flags().StringVar(&req.FirstName, "first", "", "first name")
	cmd.Flags().StringVar(&req.LastName, "last", "", "last name")
	cmd.Flags().StringVar(&req.Team, "team", "", "team name")
	cmd.Flags().StringVar(&req.Position, "position", "", "position shown in the dashboard")
	cmd.Flags().StringVar(&req.Password, "password", "", "initial password (min 8 characters)")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "create the account deactivated")
	for _, name := range []string{"email", "first", "last", "team", "password"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func teamNames() string {
	names := make([]string, len(models.AllTeams))
	for i, t := range models.AllTeams {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
