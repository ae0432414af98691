package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aixgo-dev/dailyagent/pkg/tools"
)

// newToolCmd builds a command that runs a single gateway call and prints the
// decoded reply as indented JSON.
func newToolCmd(o *rootOptions, use, short string, call func(context.Context, *tools.Gateway) (any, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(o.cfg, o.log)
			if err != nil {
				return err
			}
			defer a.close()

			v, err := call(cmd.Context(), a.gateway)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(v, "", "  ")
			if err != nil {
				return fmt.Errorf("encode reply: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
}

func newWeatherCmd(o *rootOptions) *cobra.Command {
	var req tools.WeatherRequest
	cmd := newToolCmd(o, "weather", "Print the weather forecast", func(ctx context.Context, gw *tools.Gateway) (any, error) {
		return gw.Weather(ctx, req)
	})
	cmd.Flags().StringVar(&req.Location, "location", "", "location (default from USER_LOCATION)")
	cmd.Flags().StringVar(&req.When, "when", "", "today or tomorrow")
	return cmd
}

func newTodosCmd(o *rootOptions) *cobra.Command {
	var req tools.TodoRequest
	cmd := newToolCmd(o, "todos", "List todo items", func(ctx context.Context, gw *tools.Gateway) (any, error) {
		return gw.Todos(ctx, req)
	})
	cmd.Flags().StringVar(&req.Bucket, "bucket", "", "todo bucket (default every bucket)")
	cmd.Flags().BoolVar(&req.IncludeCompleted, "all", false, "include completed items")
	return cmd
}

func newCommuteCmd(o *rootOptions) *cobra.Command {
	direction := "to_work"
	var departure string
	cmd := newToolCmd(o, "commute", "Compare driving and transit", func(ctx context.Context, gw *tools.Gateway) (any, error) {
		req := tools.NewCommuteOptionsRequest(direction)
		req.DepartureTime = departure
		return gw.CommuteOptions(ctx, req)
	})
	cmd.Flags().StringVar(&direction, "direction", direction, "to_work or from_work")
	cmd.Flags().StringVar(&departure, "depart", "", "departure time (HH:MM or H:MM AM)")
	return cmd
}
