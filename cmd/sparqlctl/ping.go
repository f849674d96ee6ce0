package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/sparqlops/config"
	"github.com/jonwraymond/sparqlops/health"
)

func newPingCmd(root *rootOptions) *cobra.Command {
	var checkQuery string

	cmd := &cobra.Command{
		Use:   "ping [endpoint...]",
		Short: "Probe endpoints and print their health as JSON",
		Long: `Probe the given endpoints, named by configured name or URL, or every
configured endpoint when none are given. Exits non-zero when any endpoint is
not usable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
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

			eps, err := a.selectEndpoints(args)
			if err != nil {
				return err
			}

			results := a.ping(ctx, eps, checkQuery)
			if err := writeJSON(cmd.OutOrStdout(), results); err != nil {
				return err
			}

			down := 0
			for _, h := range results {
				if !h.Status.Usable() {
					down++
				}
			}
			if down > 0 {
				return fmt.Errorf("%d of %d endpoints not usable", down, len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&checkQuery, "query", "q", "", "ASK probe to send (default from configuration)")
	return cmd
}

// ping probes endpoints without credentials together through PingMany and
// the rest one by one with their own credentials. Results keep input order.
func (a *app) ping(ctx context.Context, eps []config.Endpoint, checkQuery string) []health.EndpointHealth {
	results := make([]health.EndpointHealth, len(eps))

	var (
		plain []string
		index []int
	)
	for i, ep := range eps {
		if ep.Credentials == nil {
			plain = append(plain, ep.Info.URL)
			index = append(index, i)
			continue
		}
		cc := a.cfg.ConnectionConfig()
		cc.Credentials = ep.Credentials
		results[i] = a.pinger.Ping(ctx, ep.Info.URL, checkQuery, &cc)
	}

	if len(plain) > 0 {
		for j, h := range a.pinger.PingMany(ctx, plain, checkQuery, nil) {
			results[index[j]] = h
		}
	}
	return results
}
