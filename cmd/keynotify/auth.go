package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/keynotify"
	"github.com/spf13/cobra"
)

func loginCmd(a *app, connect connectFunc) *cobra.Command {
	var (
		username string
		password string
		invite   string
		remember bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in, registering the account first if it is new",
		Long: `Sign in with a username and password. New usernames are registered on the
fly and need an invite code. The token is kept in the durable store unless
--remember=false is given, in which case it lives only for this process.`,
		RunE: withClient(a, connect, func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			req := keynotify.LoginOrRegisterRequest{Username: username, Password: password}
			status, err := a.client.CheckUserStatus(ctx, username)
			switch {
			case err != nil:
				warn(out, "could not check %q, sending invite code if given", username)
				setInvite(&req, invite)
			case !status.IsRegistered:
				info(out, "%s is not registered yet, registering", username)
				setInvite(&req, invite)
			}

			pair, err := a.client.LoginOrRegister(ctx, req)
			if err != nil {
				return err
			}
			if err := a.client.Session().Login(ctx, pair.AccessToken, remember); err != nil {
				return err
			}
			success(out, "signed in as %s", username)
			return nil
		}),
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "account name")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	cmd.Flags().StringVar(&invite, "invite", "", "invite code for new accounts")
	cmd.Flags().BoolVar(&remember, "remember", true, "keep the token in the durable store")
	return cmd
}

func setInvite(req *keynotify.LoginOrRegisterRequest, code string) {
	if code = strings.TrimSpace(code); code != "" {
		req.InviteCode = &code
	}
}

func logoutCmd(a *app, connect connectFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token",
		RunE: withClient(a, connect, func(cmd *cobra.Command, args []string) error {
			if err := a.client.Session().Logout(cmd.Context()); err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "signed out")
			return nil
		}),
	}
}

func statusCmd(a *app, connect connectFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Verify the stored token with the server",
		RunE: withClient(a, connect, func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			res := a.client.Verify(cmd.Context())
			switch res.Outcome {
			case keynotify.VerifyNoToken:
				info(out, "not signed in")
			case keynotify.VerifyConfirmed:
				success(out, "signed in as %s", res.User.Username)
			case keynotify.VerifyRejected:
				warn(out, "stored token was rejected and has been removed")
			case keynotify.VerifyDegraded:
				warn(out, "server unreachable, keeping stored token: %v", res.Err)
			}
			return nil
		}),
	}
}

func checkCmd(a *app, connect connectFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "check <username>",
		Short: "Report whether a username is registered",
		Args:  cobra.ExactArgs(1),
		RunE: withClient(a, connect, func(cmd *cobra.Command, args []string) error {
			status, err := a.client.CheckUserStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if status.IsRegistered {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: registered\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: available (invite code required)\n", args[0])
			}
			return nil
		}),
	}
}

// requireSession resolves the stored token before a protected command runs.
func requireSession(ctx context.Context, a *app) error {
	res := a.client.Verify(ctx)
	if !a.client.State().Authenticated() {
		if res.Err != nil {
			return res.Err
		}
		return errors.New("not signed in, run keynotify login first")
	}
	return nil
}
