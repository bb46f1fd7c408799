package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/backmon-io/backmon/internal/cli/output"
	"github.com/backmon-io/backmon/internal/cli/prompt"
	"github.com/backmon-io/backmon/internal/cli/timeutil"
	"github.com/backmon-io/backmon/pkg/catalog/models"
	"github.com/backmon-io/backmon/pkg/catalog/store"
	"github.com/backmon-io/backmon/pkg/config"
)

var (
	userOutput      string
	userRole        string
	userDisplayName string
	userEmail       string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage catalogue users",
	Long: `Manage the users that can authenticate against the backmon API.

Users live in the catalogue database, not the config file. These
commands talk to the database directly and do not require a running
server.`,
}

var userListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List users",
	RunE:    runUserList,
}

var userCreateCmd = &cobra.Command{
	Use:     "create <username>",
	Aliases: []string{"add"},
	Short:   "Create a user (prompts for password)",
	Args:    cobra.ExactArgs(1),
	RunE:    runUserCreate,
}

var userPasswdCmd = &cobra.Command{
	Use:     "passwd <username>",
	Aliases: []string{"password"},
	Short:   "Change a user's password",
	Args:    cobra.ExactArgs(1),
	RunE:    runUserPasswd,
}

var userDeleteCmd = &cobra.Command{
	Use:     "delete <username>",
	Aliases: []string{"remove", "rm"},
	Short:   "Delete a user",
	Args:    cobra.ExactArgs(1),
	RunE:    runUserDelete,
}

func init() {
	userListCmd.Flags().StringVarP(&userOutput, "output", "o", "table", "Output format (table|json|yaml)")
	userCreateCmd.Flags().StringVar(&userRole, "role", "user", "User role (user|admin)")
	userCreateCmd.Flags().StringVar(&userDisplayName, "display-name", "", "Display name")
	userCreateCmd.Flags().StringVar(&userEmail, "email", "", "Email address")

	userCmd.AddCommand(userListCmd, userCreateCmd, userPasswdCmd, userDeleteCmd)
}

// openStore loads the configuration and opens the catalogue store.
// The caller must Close the returned store.
func openStore() (*store.GORMStore, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return openStoreFrom(cfg)
}

// openStoreFrom opens the catalogue store for an already loaded
// configuration.
func openStoreFrom(cfg *config.Config) (*store.GORMStore, error) {
	storeCfg, err := cfg.Database.StoreConfig()
	if err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}
	catalogStore, err := store.New(storeCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalogue store: %w", err)
	}
	return catalogStore, nil
}

func runUserList(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(userOutput)
	if err != nil {
		return err
	}

	catalogStore, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = catalogStore.Close() }()

	users, err := catalogStore.ListUsers(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, users)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, users)
	}

	if len(users) == 0 {
		fmt.Println("No users found")
		return nil
	}

	table := output.NewTableData("USERNAME", "ROLE", "ENABLED", "CREATED", "LAST LOGIN")
	for _, u := range users {
		enabled := "yes"
		if !u.Enabled {
			enabled = "no"
		}
		lastLogin := "-"
		if u.LastLogin != nil {
			lastLogin = timeutil.FormatTime(u.LastLogin.Format("2006-01-02T15:04:05Z07:00"))
		}
		table.AddRow(u.Username, u.Role, enabled,
			u.CreatedAt.Format("2006-01-02"), lastLogin)
	}
	return output.PrintTable(os.Stdout, table)
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	username := args[0]

	role := models.UserRole(userRole)
	if !role.IsValid() {
		return fmt.Errorf("invalid role %q (valid: user, admin)", userRole)
	}

	password, err := prompt.PasswordWithConfirmation("Password", "Confirm password", 8)
	if err != nil {
		return err
	}

	hash, err := models.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	catalogStore, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = catalogStore.Close() }()

	_, err = catalogStore.CreateUser(context.Background(), &models.User{
		Username:     username,
		PasswordHash: hash,
		Role:         string(role),
		Enabled:      true,
		DisplayName:  userDisplayName,
		Email:        userEmail,
	})
	if err != nil {
		if errors.Is(err, models.ErrDuplicateUser) {
			return fmt.Errorf("user %q already exists", username)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Printf("User %q created (role: %s)\n", username, role)
	return nil
}

func runUserPasswd(cmd *cobra.Command, args []string) error {
	username := args[0]

	catalogStore, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = catalogStore.Close() }()

	ctx := context.Background()
	if _, err := catalogStore.GetUser(ctx, username); err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return fmt.Errorf("user %q not found", username)
		}
		return fmt.Errorf("failed to look up user: %w", err)
	}

	password, err := prompt.PasswordWithConfirmation("New password", "Confirm password", 8)
	if err != nil {
		return err
	}

	hash, err := models.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := catalogStore.UpdatePassword(ctx, username, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	fmt.Printf("Password changed for user %q\n", username)
	return nil
}

func runUserDelete(cmd *cobra.Command, args []string) error {
	username := args[0]

	confirmed, err := prompt.Confirm(fmt.Sprintf("Delete user %q?", username), false)
	if err != nil {
		return err
	}
	if !confirmed {
		fmt.Println("Aborted")
		return nil
	}

	catalogStore, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = catalogStore.Close() }()

	if err := catalogStore.DeleteUser(context.Background(), username); err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return fmt.Errorf("user %q not found", username)
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}

	fmt.Printf("User %q deleted\n", username)
	return nil
}
