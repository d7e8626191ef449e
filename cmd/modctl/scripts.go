package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func getCmdScripts(gs *globalState) *cobra.Command {
	scriptsCmd := &cobra.Command{
		Use:   "scripts",
		Short: "Manage remote scripts",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered scripts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := gs.client()
			if err != nil {
				return err
			}
			scripts, err := c.Scripts(cmd.Context())
			if err != nil {
				return err
			}
			return yamlPrint(gs.stdOut, scripts)
		},
	}

	var name string
	var config []string
	addCmd := &cobra.Command{
		Use:   "add <hash>",
		Short: "Register a script by paste hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := parseConfig(config)
			if err != nil {
				return err
			}
			c, err := gs.client()
			if err != nil {
				return err
			}
			rec, err := c.RegisterScript(cmd.Context(), args[0], name, cfg)
			if err != nil {
				return err
			}
			return yamlPrint(gs.stdOut, rec)
		},
	}
	addCmd.Flags().StringVarP(&name, "name", "n", "", "display name")
	addCmd.Flags().StringArrayVarP(&config, "set", "s", nil, "initial config as key=value (repeatable)")

	toggleCmd := &cobra.Command{
		Use:   "toggle <hash> <on|off>",
		Short: "Enable or disable a script",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled, err := parseSwitch(args[1])
			if err != nil {
				return err
			}
			c, err := gs.client()
			if err != nil {
				return err
			}
			return c.ToggleScript(cmd.Context(), args[0], enabled)
		},
	}

	var set []string
	configCmd := &cobra.Command{
		Use:   "config <hash>",
		Short: "Show a script's config, or merge --set pairs into it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := gs.client()
			if err != nil {
				return err
			}
			if len(set) == 0 {
				cfg, err := c.ScriptConfig(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return yamlPrint(gs.stdOut, cfg)
			}
			partial, err := parseConfig(set)
			if err != nil {
				return err
			}
			cfg, err := c.UpdateScriptConfig(cmd.Context(), args[0], partial)
			if err != nil {
				return err
			}
			return yamlPrint(gs.stdOut, cfg)
		},
	}
	configCmd.Flags().StringArrayVarP(&set, "set", "s", nil, "config key=value to merge (repeatable)")

	sourceCmd := &cobra.Command{
		Use:   "source <hash>",
		Short: "Print a script body",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := gs.client()
			if err != nil {
				return err
			}
			src, err := c.ScriptSource(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(gs.stdOut, src)
			return err
		},
	}

	rmCmd := &cobra.Command{
		Use:   "rm <hash>",
		Short: "Remove a script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := gs.client()
			if err != nil {
				return err
			}
			return c.RemoveScript(cmd.Context(), args[0])
		},
	}

	var force bool
	reloadCmd := &cobra.Command{
		Use:   "reload",
		Short: "Push the script registry to every ready page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := gs.client()
			if err != nil {
				return err
			}
			return c.ReloadScripts(cmd.Context(), force)
		},
	}
	reloadCmd.Flags().BoolVarP(&force, "force", "f", false, "re-run scripts that already ran")

	scriptsCmd.AddCommand(listCmd, addCmd, toggleCmd, configCmd, sourceCmd, rmCmd, reloadCmd)
	return scriptsCmd
}
