package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/modbridge/internal/api/client"
	"github.com/GriffinCanCode/modbridge/internal/shared/types"
)

const defaultAddress = "http://localhost:8000"

type globalFlags struct {
	address string
}

type globalState struct {
	stdOut io.Writer
	flags  globalFlags
}

func newGlobalState(stdOut io.Writer) *globalState {
	address := os.Getenv("MODCTL_ADDRESS")
	if address == "" {
		address = defaultAddress
	}
	return &globalState{stdOut: stdOut, flags: globalFlags{address: address}}
}

func (gs *globalState) client() (*client.Client, error) {
	return client.New(gs.flags.address)
}

func newRootCommand(gs *globalState) *cobra.Command {
	root := &cobra.Command{
		Use:           "modctl",
		Short:         "Manage mods on a running coordinator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&gs.flags.address, "address", "a", gs.flags.address, "address of the coordinator API")

	root.AddCommand(
		getCmdScripts(gs),
		getCmdMods(gs),
		getCmdLocale(gs),
		getCmdTabs(gs),
		getCmdManifest(gs),
	)
	return root
}

func getCmdTabs(gs *globalState) *cobra.Command {
	return &cobra.Command{
		Use:   "tabs",
		Short: "List attached pages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := gs.client()
			if err != nil {
				return err
			}
			tabs, err := c.Tabs(cmd.Context())
			if err != nil {
				return err
			}
			return yamlPrint(gs.stdOut, tabs)
		},
	}
}

func yamlPrint(w io.Writer, v interface{}) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("could not marshal YAML: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// parseSwitch accepts on/off as well as anything strconv.ParseBool does.
func parseSwitch(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "enable", "enabled":
		return true, nil
	case "off", "disable", "disabled":
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%q is not on or off: %w", s, types.ErrInvalid)
	}
	return b, nil
}

// parseConfig reads key=value pairs. Values that parse as YAML scalars keep
// their type, so speed=3 is a number and muted=true a bool.
func parseConfig(pairs []string) (types.Config, error) {
	cfg := types.Config{}
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("config %q is not key=value: %w", pair, types.ErrInvalid)
		}
		var v interface{}
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v == nil {
			v = raw
		}
		cfg[key] = v
	}
	return cfg, nil
}
