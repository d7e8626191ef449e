package main

import (
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/modbridge/internal/localmods"
)

func getCmdManifest(gs *globalState) *cobra.Command {
	manifestCmd := &cobra.Command{
		Use:   "manifest",
		Short: "Work with the bundled mod manifest",
	}

	var pattern string
	generateCmd := &cobra.Command{
		Use:   "generate <mods-dir>",
		Short: "Print a manifest listing every mod under a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := localmods.GenerateManifest(args[0], pattern)
			if err != nil {
				return err
			}
			return m.Encode(gs.stdOut)
		},
	}
	generateCmd.Flags().StringVarP(&pattern, "pattern", "p", localmods.DefaultPattern, "glob selecting mod files")

	manifestCmd.AddCommand(generateCmd)
	return manifestCmd
}
