package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func getCmdLocale(gs *globalState) *cobra.Command {
	localeCmd := &cobra.Command{
		Use:   "locale",
		Short: "Show or change the page locale",
	}

	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Print the current locale",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := gs.client()
			if err != nil {
				return err
			}
			res, err := c.Locale(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(gs.stdOut, res.Locale)
			return err
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <tag>",
		Short: "Switch every page to a BCP 47 locale",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := gs.client()
			if err != nil {
				return err
			}
			res, err := c.SetLocale(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(gs.stdOut, res.Locale)
			return err
		},
	}

	localeCmd.AddCommand(getCmd, setCmd)
	return localeCmd
}
