package main

import (
	"github.com/spf13/cobra"

	"github.com/jonwraymond/sparqlops/pool"
)

type rootOptions struct {
	configPath string
	envPrefix  string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "sparqlctl",
		Short:         "Probe, query and federate SPARQL endpoints",
		Version:       pool.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "configuration file (yaml, json or toml)")
	flags.StringVar(&opts.envPrefix, "env-prefix", "", "environment override prefix (default SPARQLOPS_)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")

	cmd.AddCommand(
		newPingCmd(opts),
		newQueryCmd(opts),
		newFederateCmd(opts),
		newServeCmd(opts),
	)
	return cmd
}
