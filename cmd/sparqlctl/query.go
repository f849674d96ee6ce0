package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/sparqlops/config"
	"github.com/jonwraymond/sparqlops/executor"
	"github.com/jonwraymond/sparqlops/recovery"
	"github.com/jonwraymond/sparqlops/sparql"
)

type queryFlags struct {
	format       string
	timeout      time.Duration
	stream       bool
	withRecovery bool
	alternatives []string
}

// queryOutput is printed by the query command.
type queryOutput struct {
	Endpoint string              `json:"endpoint"`
	Result   *sparql.QueryResult `json:"result"`
	Recovery *recoveryOutput     `json:"recovery,omitempty"`
}

type recoveryOutput struct {
	ID               string                  `json:"id"`
	Success          bool                    `json:"success"`
	Attempts         int                     `json:"attempts"`
	Strategy         recovery.Strategy       `json:"strategy"`
	Phase            recovery.Phase          `json:"phase"`
	Context          recovery.ErrorContext   `json:"context"`
	FallbackEndpoint string                  `json:"fallback_endpoint,omitempty"`
	RewrittenQuery   string                  `json:"rewritten_query,omitempty"`
	Errors           []recovery.ErrorContext `json:"errors"`
	RecoveryTime     time.Duration           `json:"recovery_time"`
}

func newQueryCmd(root *rootOptions) *cobra.Command {
	f := &queryFlags{}

	cmd := &cobra.Command{
		Use:   "query <endpoint> <query|@file>",
		Short: "Run a query against one endpoint and print the result as JSON",
		Long: `Run a query against one endpoint, named by configured name or URL. The
query may be given inline or read from a file with @path (@- reads stdin).

With --recover a failed query goes through the recovery handler: retries
following the failure's category, then the --alt endpoints, then a rewrite
that adds a LIMIT.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := readQuery(args[1], cmd.InOrStdin())
			if err != nil {
				return err
			}
			format, err := sparql.ParseFormat(f.format)
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

			ep, err := a.endpoint(args[0])
			if err != nil {
				return err
			}
			alts, err := a.selectEndpoints(f.alternatives)
			if err != nil && len(f.alternatives) > 0 {
				return err
			}

			opts := executor.Options{Format: format, Timeout: f.timeout, Stream: f.stream}
			out, ok := a.query(ctx, query, ep.Info, opts, f.withRecovery, alts)
			if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("query %s: %s", out.Result.Status, out.Result.ErrorMessage)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.format, "format", "f", "", "result format: json, xml, csv, tsv, turtle, ntriples, rdfxml")
	flags.DurationVarP(&f.timeout, "timeout", "t", 0, "query timeout (default from endpoint or configuration)")
	flags.BoolVar(&f.stream, "stream", false, "decode JSON results incrementally")
	flags.BoolVar(&f.withRecovery, "recover", false, "try to recover a failed query")
	flags.StringSliceVar(&f.alternatives, "alt", nil, "fallback endpoints for --recover (default: every other configured endpoint)")
	return cmd
}

// query runs query once and, when asked, hands a failure to a recovery
// handler. ok reports the final outcome.
func (a *app) query(ctx context.Context, query string, ep sparql.EndpointInfo, opts executor.Options, withRecovery bool, alts []config.Endpoint) (queryOutput, bool) {
	res := a.Execute(ctx, query, ep, opts)
	out := queryOutput{Endpoint: ep.URL, Result: &res}
	if res.OK() || !withRecovery {
		return out, res.OK()
	}

	infos := make([]sparql.EndpointInfo, 0, len(alts))
	for _, alt := range alts {
		if alt.Info.URL != ep.URL {
			infos = append(infos, alt.Info)
		}
	}

	h := recovery.NewHandler(a.cfg.RecoveryConfig(a.logger))
	rr := h.Recover(ctx, res.Err(), query, ep, recovery.FromExecutor(a, opts), infos)

	if rr.Result != nil {
		out.Result = rr.Result
	}
	if rr.FallbackUsed {
		out.Endpoint = rr.FallbackEndpoint
	}
	out.Recovery = &recoveryOutput{
		ID:               rr.ID,
		Success:          rr.Success,
		Attempts:         rr.Attempts,
		Strategy:         rr.Strategy,
		Phase:            rr.Phase,
		Context:          rr.Context,
		FallbackEndpoint: rr.FallbackEndpoint,
		RewrittenQuery:   rr.RewrittenQuery,
		Errors:           rr.Errors,
		RecoveryTime:     rr.RecoveryTime,
	}
	return out, rr.Success
}
