package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/MrEthical07/keynotify"
	"github.com/spf13/cobra"
)

func settingsCmd(a *app, connect connectFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change keyword notification settings",
	}
	cmd.AddCommand(settingsGetCmd(a, connect), settingsSetCmd(a, connect))
	return cmd
}

func settingsGetCmd(a *app, connect connectFunc) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print the current notification settings",
		RunE: withClient(a, connect, func(cmd *cobra.Command, args []string) error {
			if err := requireSession(cmd.Context(), a); err != nil {
				return err
			}
			s, err := a.client.GetNotifySettings(cmd.Context())
			if err != nil {
				return err
			}
			return printSettings(cmd, s, asJSON)
		}),
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	return cmd
}

func settingsSetCmd(a *app, connect connectFunc) *cobra.Command {
	var (
		notifyType string
		email      string
		keywords   []string
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Save notification settings, creating them on first use",
		RunE: withClient(a, connect, func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := requireSession(ctx, a); err != nil {
				return err
			}

			in := keynotify.NotifySettings{
				NotifyType:   keynotify.NotifyType(notifyType),
				EmailAddress: email,
				Keywords:     keywords,
			}
			in.Normalize()
			if err := in.Validate(); err != nil {
				return err
			}

			save := a.client.UpdateNotifySettings
			if _, err := a.client.GetNotifySettings(ctx); err != nil {
				var apiErr *keynotify.APIError
				if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
					return err
				}
				save = a.client.CreateNotifySettings
			}

			out, err := save(ctx, in)
			if err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "settings saved")
			return printSettings(cmd, out, false)
		}),
	}
	cmd.Flags().StringVar(&notifyType, "type", string(keynotify.NotifyEmail), "notification channel")
	cmd.Flags().StringVar(&email, "email", "", "address notifications are sent to")
	cmd.Flags().StringSliceVarP(&keywords, "keywords", "k", nil, "comma-separated keywords to watch")
	return cmd
}

func printSettings(cmd *cobra.Command, s *keynotify.NotifySettings, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}
	info(out, "Channel:  %s", s.NotifyType)
	info(out, "Email:    %s", s.EmailAddress)
	info(out, "Keywords: %s", strings.Join(s.Keywords, ", "))
	if s.UpdatedAt != nil {
		info(out, "Updated:  %s", *s.UpdatedAt)
	}
	fmt.Fprintln(out)
	return nil
}
