package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/carnet-scolaire/carnet/internal/auth"
	"github.com/carnet-scolaire/carnet/internal/config"
	"github.com/carnet-scolaire/carnet/internal/logging"
	"github.com/carnet-scolaire/carnet/internal/store"
)

func newAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(newAccountCreateCmd())
	cmd.AddCommand(newAccountListCmd())
	cmd.AddCommand(newAccountSetPasswordCmd())
	return cmd
}

// withCredentials opens the data-access layer for a one-shot command.
func withCredentials(fn func(creds *store.Credentials) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	database, err := openDAL(cfg, logging.New(os.Stderr, cfg.Log.Level, cfg.Env))
	if err != nil {
		return err
	}
	defer func() { _ = database.Close() }()
	return fn(store.NewCredentials(database))
}

// readPassword returns flagValue, or the first line of r when fromStdin is set.
func readPassword(flagValue string, fromStdin bool, r io.Reader) (string, error) {
	if !fromStdin {
		if flagValue == "" {
			return "", errors.New("--password or --password-stdin is required")
		}
		return flagValue, nil
	}
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty password on stdin")
	}
	return line, nil
}

func newAccountCreateCmd() *cobra.Command {
	var (
		roleName, loginID, password string
		lastName, firstName, class  string
		passwordStdin               bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := store.ParseRole(roleName)
			if err != nil {
				return err
			}
			if class != "" && role != store.RoleStudent {
				return errors.New("--class only applies to students")
			}
			pw, err := readPassword(password, passwordStdin, cmd.InOrStdin())
			if err != nil {
				return err
			}
			hash, err := auth.HashPassword(pw)
			if err != nil {
				return err
			}
			return withCredentials(func(creds *store.Credentials) error {
				u, err := creds.Create(cmd.Context(), role, store.Account{
					LoginID:      strings.TrimSpace(loginID),
					PasswordHash: hash,
					LastName:     lastName,
					FirstName:    firstName,
					ClassName:    class,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %s %q (id %d)\n", u.Role, u.LoginID, u.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&roleName, "role", "", "account role: admin, teacher, student, parent, school_staff")
	cmd.Flags().StringVar(&loginID, "login", "", "login identifier")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	cmd.Flags().StringVar(&lastName, "last-name", "", "family name")
	cmd.Flags().StringVar(&firstName, "first-name", "", "given name")
	cmd.Flags().StringVar(&class, "class", "", "class (students only)")
	_ = cmd.MarkFlagRequired("role")
	_ = cmd.MarkFlagRequired("login")
	return cmd
}

func newAccountListCmd() *cobra.Command {
	var roleName string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts of a role",
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := store.ParseRole(roleName)
			if err != nil {
				return err
			}
			return withCredentials(func(creds *store.Credentials) error {
				users, err := creds.List(cmd.Context(), role)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tLOGIN\tNAME\tCLASS")
				for _, u := range users {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", u.ID, u.LoginID, u.DisplayName(), u.ClassName)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&roleName, "role", "", "account role")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func newAccountSetPasswordCmd() *cobra.Command {
	var (
		roleName, loginID, password string
		passwordStdin               bool
	)
	cmd := &cobra.Command{
		Use:   "set-password",
		Short: "Replace an account's password",
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := store.ParseRole(roleName)
			if err != nil {
				return err
			}
			pw, err := readPassword(password, passwordStdin, cmd.InOrStdin())
			if err != nil {
				return err
			}
			hash, err := auth.HashPassword(pw)
			if err != nil {
				return err
			}
			return withCredentials(func(creds *store.Credentials) error {
				ctx := cmd.Context()
				c, err := creds.FindByLogin(ctx, role, loginID)
				if err != nil {
					return err
				}
				if err := creds.UpdatePasswordHash(ctx, role, c.ID, hash); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "password updated for %s %q\n", role, c.LoginID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&roleName, "role", "", "account role")
	cmd.Flags().StringVar(&loginID, "login", "", "login identifier")
	cmd.Flags().StringVar(&password, "password", "", "new password")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	_ = cmd.MarkFlagRequired("role")
	_ = cmd.MarkFlagRequired("login")
	return cmd
}
