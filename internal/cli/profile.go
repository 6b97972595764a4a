package cli

import (
	"fmt"

	"learnpath-quiz/internal/domain"

	"github.com/spf13/cobra"
)

// NewLoginCmd records who the terminal client acts as.
func NewLoginCmd(configPath *string) *cobra.Command {
	var (
		user  domain.User
		admin bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Set the current user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if user.Login == "" {
				return fmt.Errorf("--login is required")
			}
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			p, err := loadProfile(cfg)
			if err != nil {
				return err
			}
			if user.ID == "" {
				user.ID = user.Login
			}
			if user.Name == "" {
				user.Name = user.Login
			}
			if admin {
				user.Role = domain.RoleAdmin
			}
			if err := p.Login(user, ""); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s (%s)\n", user.Name, user.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&user.ID, "id", "", "user id (defaults to the login)")
	cmd.Flags().StringVar(&user.Name, "name", "", "display name")
	cmd.Flags().StringVar(&user.Login, "login", "", "login name")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant the admin role")
	return cmd
}

// NewLogoutCmd clears the current user.
func NewLogoutCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the current user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			p, err := loadProfile(cfg)
			if err != nil {
				return err
			}
			if err := p.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}
