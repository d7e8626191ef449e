package main

import (
	"github.com/spf13/cobra"
)

func getCmdMods(gs *globalState) *cobra.Command {
	modsCmd := &cobra.Command{
		Use:   "mods",
		Short: "Manage bundled mods",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List bundled mods in registry order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := gs.client()
			if err != nil {
				return err
			}
			mods, err := c.Mods(cmd.Context())
			if err != nil {
				return err
			}
			return yamlPrint(gs.stdOut, mods)
		},
	}

	toggleCmd := &cobra.Command{
		Use:   "toggle <name> <on|off>",
		Short: "Enable or disable a mod",
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
			mods, err := c.ToggleMod(cmd.Context(), args[0], enabled)
			if err != nil {
				return err
			}
			return yamlPrint(gs.stdOut, mods)
		},
	}

	var set []string
	configCmd := &cobra.Command{
		Use:   "config <name>",
		Short: "Show a mod's config, or merge --set pairs into it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := gs.client()
			if err != nil {
				return err
			}
			if len(set) == 0 {
				cfg, err := c.ModConfig(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return yamlPrint(gs.stdOut, cfg)
			}
			partial, err := parseConfig(set)
			if err != nil {
				return err
			}
			cfg, err := c.UpdateModConfig(cmd.Context(), args[0], partial)
			if err != nil {
				return err
			}
			return yamlPrint(gs.stdOut, cfg)
		},
	}
	configCmd.Flags().StringArrayVarP(&set, "set", "s", nil, "config key=value to merge (repeatable)")

	var force bool
	execCmd := &cobra.Command{
		Use:   "exec <name>",
		Short: "Run a mod on the active page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := gs.client()
			if err != nil {
				return err
			}
			return c.ExecuteMod(cmd.Context(), args[0], force)
		},
	}
	execCmd.Flags().BoolVarP(&force, "force", "f", false, "run again even if the mod already ran")

	reloadCmd := &cobra.Command{
		Use:   "reload",
		Short: "Ask every ready page to register its bundled mods again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := gs.client()
			if err != nil {
				return err
			}
			return c.ReloadMods(cmd.Context())
		},
	}

	modsCmd.AddCommand(listCmd, toggleCmd, configCmd, execCmd, reloadCmd)
	return modsCmd
}
