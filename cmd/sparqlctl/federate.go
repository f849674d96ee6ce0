package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/sparqlops/executor"
	"github.com/jonwraymond/sparqlops/sparql"
)

func newFederateCmd(root *rootOptions) *cobra.Command {
	var (
		endpoints   []string
		strategy    string
		parallel    bool
		failOnError bool
		timeout     time.Duration
		format      string
	)

	cmd := &cobra.Command{
		Use:   "federate <query|@file>",
		Short: "Run a query against several endpoints and merge the answers",
		Long: `Run a query against the --endpoint list, or every configured endpoint,
and merge the answers with the union, intersection or sequential strategy.
Flags left unset take their values from the federation configuration.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := readQuery(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			rf, err := sparql.ParseFormat(format)
			if err != nil {
				return err
			}

			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(context.WithoutCancel(ctx)) }()

			eps, err := a.selectEndpoints(endpoints)
			if err != nil {
				return err
			}
			infos := make([]sparql.EndpointInfo, len(eps))
			for i, ep := range eps {
				infos[i] = ep.Info
			}

			fq, err := cfg.FederatedQuery(infos, executor.Options{Format: rf})
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("strategy") {
				if fq.Strategy, err = executor.ParseStrategy(strategy); err != nil {
					return err
				}
			}
			if flags.Changed("parallel") {
				fq.Parallel = parallel
			}
			if flags.Changed("fail-on-error") {
				fq.FailOnError = failOnError
			}
			if flags.Changed("timeout") {
				fq.Timeout = timeout
			}

			res := a.exec.ExecuteFederated(ctx, query, fq)
			if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.OK() {
				return fmt.Errorf("federation %s: %s", res.Status, res.ErrorMessage)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVarP(&endpoints, "endpoint", "e", nil, "endpoint name or URL (repeatable)")
	flags.StringVarP(&strategy, "strategy", "s", "union", "merge strategy: union, intersection or sequential")
	flags.BoolVar(&parallel, "parallel", true, "query endpoints concurrently")
	flags.BoolVar(&failOnError, "fail-on-error", false, "abort at the first failed endpoint")
	flags.DurationVarP(&timeout, "timeout", "t", 0, "per-endpoint timeout")
	flags.StringVarP(&format, "format", "f", "", "result format")
	return cmd
}
