package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newBriefingCmd(o *rootOptions) *cobra.Command {
	var (
		smart bool
		date  string
	)

	cmd := &cobra.Command{
		Use:   "briefing",
		Short: "Print the morning briefing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if date != "" {
				if _, err := time.Parse(time.DateOnly, date); err != nil {
					return fmt.Errorf("invalid --date %q, want YYYY-MM-DD", date)
				}
			}

			a, err := newApp(o.cfg, o.log)
			if err != nil {
				return err
			}
			defer a.close()

			out := cmd.OutOrStdout()
			if smart {
				_, err := fmt.Fprintln(out, a.briefer.Smart(cmd.Context(), date).Text)
				return err
			}

			data, err := json.MarshalIndent(a.briefer.Basic(cmd.Context(), date), "", "  ")
			if err != nil {
				return fmt.Errorf("encode briefing: %w", err)
			}
			_, err = fmt.Fprintln(out, string(data))
			return err
		},
	}

	cmd.Flags().BoolVar(&smart, "smart", false, "generate a conversational briefing")
	cmd.Flags().StringVar(&date, "date", "", "briefing date (YYYY-MM-DD, default today)")
	return cmd
}
