package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aixgo-dev/dailyagent/pkg/observability"
)

func newHealthCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the tool server and print the health report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(o.cfg, o.log)
			if err != nil {
				return err
			}
			defer a.close()

			report := a.health.Check(cmd.Context())
			data, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(data))

			if report.Status == observability.HealthStatusUnhealthy {
				return errors.New("service is unhealthy")
			}
			return nil
		},
	}
}
