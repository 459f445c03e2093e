package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/MrEthical07/keynotify/basedata"
	"github.com/spf13/cobra"
)

func baseCmd(a *app, connect connectFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "base",
		Short: "Work with the base data list",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list [key=value...]",
		Short: "Fetch the base data list, passing each key=value as a query parameter",
		RunE: withClient(a, connect, func(cmd *cobra.Command, args []string) error {
			params := make(map[string]any, len(args))
			for _, arg := range args {
				k, v, ok := strings.Cut(arg, "=")
				if !ok || k == "" {
					return fmt.Errorf("invalid parameter %q, want key=value", arg)
				}
				params[k] = v
			}

			if err := requireSession(cmd.Context(), a); err != nil {
				return err
			}
			st, err := basedata.NewLoader(a.client).Load(cmd.Context(), params)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME")
			for _, item := range st.Items {
				fmt.Fprintf(tw, "%s\t%s\n", item.ID, item.Name)
			}
			return tw.Flush()
		}),
	})
	return cmd
}
