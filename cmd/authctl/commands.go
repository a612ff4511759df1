package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	authsync "github.com/goliatone/go-auth-sync"
	goerrors "github.com/goliatone/go-errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var stdin = bufio.NewReader(os.Stdin)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate and store the session locally",
	RunE:  runLogin,
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and log in with it",
	RunE:  runRegister,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the local session",
	RunE:  runLogout,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the local session",
	RunE:  runStatus,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Ask the identity service who the stored token belongs to",
	RunE:  runWhoami,
}

func init() {
	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, statusCmd, whoamiCmd)

	for _, cmd := range []*cobra.Command{loginCmd, registerCmd} {
		cmd.Flags().StringP("email", "e", "", "account email")
		cmd.Flags().StringP("password", "p", "", "account password (prompted when empty)")
	}
	registerCmd.Flags().String("password-confirm", "", "password confirmation (prompted when empty)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	email, err := flagOrPrompt(cmd, "email", "Email: ", false)
	if err != nil {
		return err
	}
	password, err := flagOrPrompt(cmd, "password", "Password: ", true)
	if err != nil {
		return err
	}

	unwatch := current.controller.Watch(traceSession)
	defer unwatch()

	if err := current.controller.Login(cmd.Context(), email, password); err != nil {
		return err
	}

	printSession(current.controller.Snapshot())
	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	email, err := flagOrPrompt(cmd, "email", "Email: ", false)
	if err != nil {
		return err
	}
	password, err := flagOrPrompt(cmd, "password", "Password: ", true)
	if err != nil {
		return err
	}
	confirm, err := flagOrPrompt(cmd, "password-confirm", "Confirm password: ", true)
	if err != nil {
		return err
	}

	msg := authsync.RegisterAccountMessage{
		Email:           email,
		Password:        password,
		PasswordConfirm: confirm,
	}
	if err := msg.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, err.Error())
	}

	unwatch := current.controller.Watch(traceSession)
	defer unwatch()

	if err := current.controller.Register(cmd.Context(), email, password, confirm); err != nil {
		return err
	}

	color.Green("account created")
	printSession(current.controller.Snapshot())
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	if !current.controller.Snapshot().Authenticated() {
		color.Yellow("not logged in")
		return nil
	}

	current.controller.Logout()
	color.Green("logged out")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	printSession(current.controller.Snapshot())
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	user, err := current.client.Me(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("%s %s\n", color.CyanString("id:"), user.ID())
	fmt.Printf("%s %s\n", color.CyanString("email:"), user.Email())
	fmt.Printf("%s %s\n", color.CyanString("username:"), user.Username())
	fmt.Printf("%s %s\n", color.CyanString("role:"), user.Role())
	return nil
}

func printSession(session authsync.Session) {
	if !session.Authenticated() {
		color.Yellow("not logged in")
		return
	}

	fmt.Printf("%s %s\n", color.CyanString("logged in as:"), session.Identity.Email())

	info, err := authsync.InspectToken(session.Token)
	if err != nil {
		color.Yellow("token could not be decoded: %s", err)
		return
	}

	if info.ExpiresAt.IsZero() {
		fmt.Printf("%s never\n", color.CyanString("expires:"))
		return
	}

	if info.Expired(time.Now()) {
		color.Red("token expired at %s", info.ExpiresAt.Format(time.RFC3339))
		return
	}

	fmt.Printf("%s %s (in %s)\n",
		color.CyanString("expires:"),
		info.ExpiresAt.Format(time.RFC3339),
		time.Until(info.ExpiresAt).Round(time.Minute),
	)
}

func traceSession(session authsync.Session) {
	if verbose {
		fmt.Fprintln(os.Stderr, color.HiBlackString("session: %s", session))
	}
}

func flagOrPrompt(cmd *cobra.Command, name, prompt string, secret bool) (string, error) {
	value, _ := cmd.Flags().GetString(name)
	if value != "" {
		return value, nil
	}

	fmt.Fprint(os.Stderr, prompt)

	if secret && term.IsTerminal(int(os.Stdin.Fd())) {
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to read "+name)
		}
		return string(raw), nil
	}

	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to read "+name)
	}
	return strings.TrimSpace(line), nil
}
